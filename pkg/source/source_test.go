package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
)

type fakeSource struct {
	names         []string
	discoverErr   error
	discoverCalls int
	failFetch     map[string]bool
}

func (f *fakeSource) DiscoverRecent(ctx context.Context, limit int) ([]string, error) {
	f.discoverCalls++
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.names, nil
}

func (f *fakeSource) FetchCandidate(ctx context.Context, name string) (candidate.PackageCandidate, error) {
	if f.failFetch[name] {
		return candidate.PackageCandidate{}, errFetch
	}
	return candidate.New(ecosystem.PyPI, name, time.Time{}), nil
}

var errFetch = errors.New("fetch failed")

func TestFetchRecentSkipsFailedFetches(t *testing.T) {
	s := &fakeSource{
		names:     []string{"good", "bad"},
		failFetch: map[string]bool{"bad": true},
	}
	got := FetchRecent(context.Background(), ecosystem.PyPI, s, 0)
	if len(got) != 1 || got[0].Name != "good" {
		t.Errorf("FetchRecent() = %v, want one candidate named 'good'", got)
	}
}

func TestFetchRecentDiscoveryFailureAbortsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	s := &fakeSource{discoverErr: errFetch}
	got := FetchRecent(ctx, ecosystem.NPM, s, 0)
	if got != nil {
		t.Errorf("FetchRecent() = %v, want nil once discovery keeps failing and the context expires", got)
	}
	if s.discoverCalls == 0 {
		t.Error("discoverCalls = 0, want at least one discovery attempt")
	}
}
