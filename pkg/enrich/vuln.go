package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/phantomscan/phantomscan/internal/httpx"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
)

type osvQuery struct {
	Package osvPackage `json:"package"`
}
type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}
type osvResponse struct {
	Vulns []json.RawMessage `json:"vulns"`
}

func osvEcosystem(e ecosystem.Ecosystem) string {
	switch e {
	case ecosystem.PyPI:
		return "PyPI"
	case ecosystem.NPM:
		return "npm"
	default:
		return string(e)
	}
}

// VulnerabilityFacts POSTs api.osv.dev/v1/query and reports whether any
// known vulnerability is on record for the name. A hit is surfaced only as
// a reason rather than invented as a thirteenth subscore.
func VulnerabilityFacts(ctx context.Context, client httpx.BasicClient, eco ecosystem.Ecosystem, name, userAgent string) (bool, []string) {
	body, err := json.Marshal(osvQuery{Package: osvPackage{Name: name, Ecosystem: osvEcosystem(eco)}})
	if err != nil {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.osv.dev/v1/query", bytes.NewReader(body))
	if err != nil {
		return false, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var out osvResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, nil
	}
	if len(out.Vulns) > 0 {
		return true, []string{"Known vulnerabilities on record (OSV)"}
	}
	return false, nil
}
