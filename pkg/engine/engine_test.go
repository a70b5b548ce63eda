package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/score"
	"github.com/phantomscan/phantomscan/pkg/scorer"
	"github.com/phantomscan/phantomscan/pkg/similarity"
	"github.com/phantomscan/phantomscan/pkg/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	p := policy.Default()
	root := t.TempDir()
	tab, err := store.Open(filepath.Join(root, "phantomscan.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { tab.Close() })
	return &Engine{
		Policy:  p,
		Scorer:  &scorer.Scorer{Policy: p, Offline: true},
		Tabular: tab,
		Files:   &store.FileStore{Root: root},
	}
}

func TestScorePackageOffline(t *testing.T) {
	e := newTestEngine(t)
	c := candidate.New(ecosystem.PyPI, "requests2", time.Now())
	sc, err := e.ScorePackage(context.Background(), c)
	if err != nil {
		t.Fatalf("ScorePackage() error = %v", err)
	}
	if sc.Breakdown.ProvenanceRisk != 1 {
		t.Errorf("ProvenanceRisk = %v, want 1 for an offline score", sc.Breakdown.ProvenanceRisk)
	}
}

func TestGetFeedOrdersByTotalDescending(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	scored := []score.ScoredCandidate{
		{PackageCandidate: candidate.New(ecosystem.PyPI, "low", time.Now()), Total: 0.2, ScoredAt: time.Now()},
		{PackageCandidate: candidate.New(ecosystem.PyPI, "high", time.Now()), Total: 0.9, ScoredAt: time.Now()},
	}
	if err := e.Tabular.PutScored(ctx, "2026-07-31", ecosystem.PyPI, scored); err != nil {
		t.Fatalf("PutScored() error = %v", err)
	}
	feed, err := e.GetFeed(ctx, "2026-07-31")
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if len(feed.Items) != 2 || feed.Items[0].Name != "high" {
		t.Errorf("GetFeed() items = %v, want [high, low]", feed.Items)
	}
}

func TestGetLatestFeedNoFeedsYieldsNotFound(t *testing.T) {
	e := newTestEngine(t)
	if err := os.MkdirAll(filepath.Join(e.Files.Root, "feeds"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := e.GetLatestFeed(context.Background())
	if err == nil {
		t.Error("GetLatestFeed() error = nil, want an error when no dated feed directories exist")
	}
}

func TestGetLatestFeedPicksNewestDate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	for _, date := range []string{"2026-07-01", "2026-07-31"} {
		scored := []score.ScoredCandidate{{PackageCandidate: candidate.New(ecosystem.PyPI, "pkg-"+date, time.Now()), Total: 0.5, ScoredAt: time.Now()}}
		if err := e.Tabular.PutScored(ctx, date, ecosystem.PyPI, scored); err != nil {
			t.Fatalf("PutScored() error = %v", err)
		}
		if err := os.MkdirAll(filepath.Join(e.Files.Root, "feeds", date), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	feed, err := e.GetLatestFeed(ctx)
	if err != nil {
		t.Fatalf("GetLatestFeed() error = %v", err)
	}
	if feed.Date != "2026-07-31" {
		t.Errorf("GetLatestFeed() date = %q, want the lexicographically newest date", feed.Date)
	}
}

func TestSuggestAlternatives(t *testing.T) {
	e := newTestEngine(t)
	e.Policy.Lists.CanonicalNames = map[string][]string{"pypi": {"requests", "numpy"}}
	e.Policy.Thresholds.SuggestionThreshold = 50
	got := e.SuggestAlternatives(ecosystem.PyPI, "reqeusts")
	if len(got) == 0 || got[0].Canonical != "requests" {
		t.Errorf("SuggestAlternatives() = %v, want 'requests' to be suggested", got)
	}
}

func TestDescribeSuggestion(t *testing.T) {
	got := DescribeSuggestion(similarity.Suggestion{Canonical: "requests", Similarity: 96})
	if got == "" {
		t.Error("DescribeSuggestion() = \"\", want a rendered description")
	}
}
