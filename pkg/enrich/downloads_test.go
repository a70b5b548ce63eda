package enrich

import (
	"context"
	"net/http"
	"testing"

	"github.com/phantomscan/phantomscan/internal/httpx/httpxtest"
)

func TestNPMWeeklyDownloads(t *testing.T) {
	client := &httpxtest.MockClient{
		SkipURLValidation: true,
		Calls: []httpxtest.Call{
			{Response: &http.Response{StatusCode: http.StatusOK, Body: httpxtest.Body(`{"downloads":4200}`)}},
		},
	}
	got, _ := NPMWeeklyDownloads(context.Background(), client, "left-pad", "phantomscan-test")
	if got != 4200 {
		t.Errorf("NPMWeeklyDownloads() = %d, want 4200", got)
	}
}

func TestNPMWeeklyDownloadsNotFoundYieldsZero(t *testing.T) {
	client := &httpxtest.MockClient{
		SkipURLValidation: true,
		Calls: []httpxtest.Call{
			{Response: &http.Response{StatusCode: http.StatusNotFound, Body: httpxtest.Body("")}},
		},
	}
	got, reasons := NPMWeeklyDownloads(context.Background(), client, "brand-new-pkg", "phantomscan-test")
	if got != 0 || reasons != nil {
		t.Errorf("NPMWeeklyDownloads() = (%d, %v), want (0, nil) on 404", got, reasons)
	}
}

func TestDownloadAnomaly(t *testing.T) {
	for _, tc := range []struct {
		name        string
		ageDays     float64
		downloads   int
		wantScore   float64
		wantReason  bool
	}{
		{name: "brand new with huge downloads", ageDays: 1, downloads: 5000, wantScore: 0.5, wantReason: true},
		{name: "brand new with few downloads", ageDays: 1, downloads: 10, wantScore: 0},
		{name: "young package with excess downloads", ageDays: 20, downloads: 20000, wantScore: 0.2, wantReason: true},
		{name: "old package with any downloads", ageDays: 200, downloads: 1000000, wantScore: 0},
		{name: "brand new downloads capped at 1", ageDays: 1, downloads: 50000, wantScore: 1, wantReason: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			score, reasons := DownloadAnomaly(tc.ageDays, tc.downloads)
			if score != tc.wantScore {
				t.Errorf("DownloadAnomaly(%v, %v) score = %v, want %v", tc.ageDays, tc.downloads, score, tc.wantScore)
			}
			if (len(reasons) > 0) != tc.wantReason {
				t.Errorf("DownloadAnomaly(%v, %v) reasons = %v, want present=%v", tc.ageDays, tc.downloads, reasons, tc.wantReason)
			}
		})
	}
}
