// Package engine exposes PhantomScan's public operations (§6): the only
// surface thin adapters (HTTP handlers, UI, CLI) are meant to call.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/internal/phantomerr"
	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/corpus"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/pipeline"
	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/score"
	"github.com/phantomscan/phantomscan/pkg/scorer"
	"github.com/phantomscan/phantomscan/pkg/similarity"
	"github.com/phantomscan/phantomscan/pkg/store"
)

// Engine bundles the loaded policy/corpus with the pipeline collaborators
// needed to serve the public operations.
type Engine struct {
	Policy       *policy.Policy
	Corpus       *corpus.Corpus
	Scorer       *scorer.Scorer
	Orchestrator *pipeline.Orchestrator
	Tabular      *store.TabularStore
	Files        *store.FileStore
}

// ScorePackage scores a single already-fetched candidate, bounded by the
// policy's overall timeout. On overrun it returns an error wrapping
// ErrTimeout; any other internal failure is collapsed to the opaque
// ErrScoringFailed, per §7's "only the orchestrator may surface fatal
// errors" rule — ScorePackage is the one caller-facing exception.
func (e *Engine) ScorePackage(ctx context.Context, c candidate.PackageCandidate) (score.ScoredCandidate, error) {
	timeout := e.Policy.Timeouts.Overall
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan score.ScoredCandidate, 1)
	go func() {
		done <- e.Scorer.Score(ctx, c)
	}()

	select {
	case sc := <-done:
		if ctx.Err() != nil {
			return score.ScoredCandidate{}, errors.Wrap(phantomerr.ErrTimeout, "scoring exceeded overall deadline")
		}
		return sc, nil
	case <-ctx.Done():
		return score.ScoredCandidate{}, errors.Wrap(phantomerr.ErrTimeout, "scoring exceeded overall deadline")
	}
}

// GetFeed returns the persisted feed for date (YYYY-MM-DD).
func (e *Engine) GetFeed(ctx context.Context, date string) (score.Feed, error) {
	scored, err := e.Tabular.ScoredForDate(ctx, date)
	if err != nil {
		return score.Feed{}, errors.Wrap(phantomerr.ErrInternal, err.Error())
	}
	pipeline.Rank(scored)
	return score.Feed{Date: date, GeneratedAt: time.Now().UTC(), Items: scored}, nil
}

// GetLatestFeed returns the most recently generated feed, by reading the
// feeds/ directory for the newest dated subdirectory.
func (e *Engine) GetLatestFeed(ctx context.Context) (score.Feed, error) {
	root := filepath.Join(e.Files.Root, "feeds")
	entries, err := os.ReadDir(root)
	if err != nil {
		return score.Feed{}, errors.Wrap(phantomerr.ErrInternal, "listing feeds directory")
	}
	var latest string
	for _, ent := range entries {
		if ent.IsDir() && ent.Name() > latest {
			latest = ent.Name()
		}
	}
	if latest == "" {
		return score.Feed{}, errors.Wrap(phantomerr.ErrNotFound, "no feeds persisted yet")
	}
	return e.GetFeed(ctx, latest)
}

// SuggestAlternatives returns the top-5 canonical names most similar to
// name in ecosystem eco, excluding an exact match, above the policy's
// configured similarity threshold.
func (e *Engine) SuggestAlternatives(eco ecosystem.Ecosystem, name string) []similarity.Suggestion {
	canon := e.Policy.CanonicalNames(string(eco))
	return similarity.SuggestAlternatives(name, canon, e.Policy.Thresholds.SuggestionThreshold)
}

// DescribeSuggestion renders a human-readable reason for one suggestion,
// using the supplemented distance-description bucketing.
func DescribeSuggestion(s similarity.Suggestion) string {
	return fmt.Sprintf("%s match to '%s' (similarity: %.1f)", similarity.DistanceDescription(s.Similarity), s.Canonical, s.Similarity)
}

// RunAll drives the full fetch -> exists -> score -> rank -> emit pipeline
// for the requested ecosystems and persists the results under date.
func (e *Engine) RunAll(ctx context.Context, ecosystems []ecosystem.Ecosystem, limit int, date string, topN int) (score.Feed, []score.WatchlistEntry, error) {
	feed, watchlist, err := e.Orchestrator.RunAll(ctx, ecosystems, limit, date, topN)
	if err != nil {
		return feed, watchlist, errors.Wrap(phantomerr.ErrInternal, err.Error())
	}
	return feed, watchlist, nil
}

