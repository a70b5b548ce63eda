// Package existence implements the Existence Prober (C2): does a name
// currently resolve in its registry?
package existence

import (
	"context"
	"errors"
	"net/http"

	"github.com/phantomscan/phantomscan/internal/httpx"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
)

// Reason is the closed set of reasons a probe can report.
type Reason string

const (
	ReasonOK      Reason = "ok"
	Reason404     Reason = "404"
	ReasonTimeout Reason = "timeout"
	ReasonOffline Reason = "offline"
	ReasonError   Reason = "error"
)

// Prober checks whether a name currently resolves in its registry. It never
// raises; it always returns a decision plus a reason suitable for the
// watchlist.
type Prober struct {
	Client    httpx.BasicClient
	UserAgent string
	Offline   bool
}

// Exists implements §4.2's per-ecosystem existence check.
func (p *Prober) Exists(ctx context.Context, eco ecosystem.Ecosystem, name string) (bool, Reason) {
	if p.Offline {
		return false, ReasonOffline
	}
	switch eco {
	case ecosystem.NPM:
		return p.existsNPM(ctx, name)
	case ecosystem.PyPI:
		return p.existsPyPI(ctx, name)
	default:
		return false, ReasonError
	}
}

func (p *Prober) existsNPM(ctx context.Context, name string) (bool, Reason) {
	ok, reason, rejected := p.probe(ctx, http.MethodHead, "https://registry.npmjs.org/"+name)
	if rejected {
		return p.probe2(ctx, http.MethodGet, "https://registry.npmjs.org/"+name)
	}
	return ok, reason
}

func (p *Prober) existsPyPI(ctx context.Context, name string) (bool, Reason) {
	ok, reason, _ := p.probe(ctx, http.MethodGet, "https://pypi.org/pypi/"+name+"/json")
	return ok, reason
}

// probe issues the request and also reports whether the server appeared to
// reject the method itself (405/501), which triggers the npm HEAD->GET
// fallback.
func (p *Prober) probe(ctx context.Context, method, url string) (exists bool, reason Reason, methodRejected bool) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return false, ReasonError, false
	}
	req.Header.Set("User-Agent", p.UserAgent)
	resp, err := p.Client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return false, ReasonTimeout, false
		}
		return false, ReasonError, false
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, ReasonOK, false
	case http.StatusNotFound:
		return false, Reason404, false
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return false, ReasonError, true
	default:
		return false, ReasonError, false
	}
}

func (p *Prober) probe2(ctx context.Context, method, url string) (bool, Reason) {
	ok, reason, _ := p.probe(ctx, method, url)
	return ok, reason
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
