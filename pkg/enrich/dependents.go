package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/phantomscan/phantomscan/internal/httpx"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
)

func librariesIOPlatform(e ecosystem.Ecosystem) string {
	switch e {
	case ecosystem.PyPI:
		return "Pypi"
	case ecosystem.NPM:
		return "NPM"
	default:
		return string(e)
	}
}

// DependentsMultiplier queries libraries.io's dependents count for a
// package, when an API key is configured, and returns the multiplier to
// apply to the maintainer-reputation family per §7 decision 2: 0 dependents
// leaves the score unchanged (1.0), >= the configured high-threshold
// applies a 0.7 multiplier, otherwise 0.85.
func DependentsMultiplier(ctx context.Context, client httpx.BasicClient, eco ecosystem.Ecosystem, name string, highThreshold int) (float64, []string) {
	apiKey := os.Getenv("LIBRARIESIO_API_KEY")
	if apiKey == "" {
		return 1.0, nil
	}
	url := "https://libraries.io/api/" + librariesIOPlatform(eco) + "/" + name + "/dependents?api_key=" + apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1.0, nil
	}
	resp, err := client.Do(req)
	if err != nil {
		return 1.0, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1.0, nil
	}
	count := 0
	if h := resp.Header.Get("X-Total"); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			count = n
		}
	} else {
		var arr []json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&arr); err == nil {
			count = len(arr)
		}
	}
	switch {
	case count == 0:
		return 1.0, nil
	case count >= highThreshold:
		return 0.7, []string{"High dependents count reduces reputation discount"}
	default:
		return 0.85, nil
	}
}
