package enrich

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/phantomscan/phantomscan/internal/httpx"
)

type npmDownloadsResponse struct {
	Downloads int `json:"downloads"`
}

// NPMWeeklyDownloads calls api.npmjs.org/downloads/point/last-week/{name};
// a 404 (package too new to have download stats) yields 0, not an error.
func NPMWeeklyDownloads(ctx context.Context, client httpx.BasicClient, name, userAgent string) (int, []string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.npmjs.org/downloads/point/last-week/"+name, nil)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, nil
	}
	var out npmDownloadsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, nil
	}
	return out.Downloads, nil
}

// DownloadAnomaly implements §4.5's literal thresholds: a brand-new package
// (age < 7d) with a surprising number of weekly downloads is suspicious
// (could indicate bot-inflated download counts to build fake trust), and
// likewise for a slightly-older package with an outsized download count.
func DownloadAnomaly(ageDays float64, downloads int) (float64, []string) {
	switch {
	case ageDays < 7 && downloads >= 1000:
		score := float64(downloads) / 10000
		if score > 1 {
			score = 1
		}
		return score, []string{"Unusually high downloads for a brand-new package"}
	case ageDays >= 7 && ageDays <= 30 && downloads > 10000:
		score := float64(downloads-10000) / 50000
		if score > 1 {
			score = 1
		}
		return score, []string{"Unusually high downloads for package age"}
	default:
		return 0, nil
	}
}
