// Package pipeline implements the Pipeline Orchestrator (C7): fetch ->
// exists -> score -> rank -> emit, driven with bounded concurrency per
// policy and a deterministic tie-break, using an errgroup-based fan-out.
package pipeline

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/existence"
	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/score"
	"github.com/phantomscan/phantomscan/pkg/scorer"
	"github.com/phantomscan/phantomscan/pkg/source"
	"github.com/phantomscan/phantomscan/pkg/store"
)

// Orchestrator wires the sources, prober, scorer, and persistence layer
// together into the RunAll operation.
type Orchestrator struct {
	Policy  *policy.Policy
	Sources map[ecosystem.Ecosystem]source.Source
	Prober  *existence.Prober
	Scorer  *scorer.Scorer
	Tabular *store.TabularStore
	Files   *store.FileStore
	SeedPath string
	Offline bool
	Now     func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// RunAll implements §4.7's five steps for the given ecosystems and date.
func (o *Orchestrator) RunAll(ctx context.Context, ecosystems []ecosystem.Ecosystem, limit int, date string, topN int) (score.Feed, []score.WatchlistEntry, error) {
	var scored []score.ScoredCandidate
	var watchlist []score.WatchlistEntry

	for _, eco := range ecosystems {
		candidates := o.fetch(ctx, eco, limit)
		candidatesFetchedCounter.WithLabelValues(string(eco)).Add(float64(len(candidates)))
		if err := o.Tabular.PutRawCandidates(ctx, date, eco, candidates); err != nil {
			return score.Feed{}, nil, errors.Wrap(err, "persisting raw candidates")
		}
		if err := o.writeRawFile(date, eco, candidates); err != nil {
			return score.Feed{}, nil, err
		}

		ecoScored, ecoWatch := o.scoreEcosystem(ctx, eco, candidates)
		scored = append(scored, ecoScored...)
		watchlist = append(watchlist, ecoWatch...)

		if err := o.Tabular.PutScored(ctx, date, eco, ecoScored); err != nil {
			return score.Feed{}, nil, errors.Wrap(err, "persisting scored candidates")
		}
		if err := o.Tabular.PutWatchlist(ctx, date, eco, ecoWatch); err != nil {
			return score.Feed{}, nil, errors.Wrap(err, "persisting watchlist")
		}
	}

	Rank(scored)
	feed := score.Feed{RunID: uuid.New(), Date: date, GeneratedAt: o.now(), Items: filterAndTrim(scored, o.Policy.MinScore, topN)}

	if err := o.Files.WriteFeed(feed); err != nil {
		return feed, watchlist, err
	}
	if err := o.Files.WriteWatchlist(date, watchlist); err != nil {
		return feed, watchlist, err
	}
	if err := o.Files.WriteProcessed(date, scored); err != nil {
		return feed, watchlist, err
	}
	return feed, watchlist, nil
}

func (o *Orchestrator) fetch(ctx context.Context, eco ecosystem.Ecosystem, limit int) []candidate.PackageCandidate {
	if o.Offline {
		cands, err := source.LoadSeed(ctx, o.SeedPath, eco, limit)
		if err != nil {
			return nil
		}
		return cands
	}
	src, ok := o.Sources[eco]
	if !ok {
		return nil
	}
	cands := source.FetchRecent(ctx, eco, src, limit)
	if cands == nil {
		// A global source failure falls back to the offline seed so demos
		// produce output, per §4.7 and §9.
		seeded, err := source.LoadSeed(ctx, o.SeedPath, eco, limit)
		if err == nil {
			return seeded
		}
	}
	return cands
}

func (o *Orchestrator) writeRawFile(date string, eco ecosystem.Ecosystem, candidates []candidate.PackageCandidate) error {
	lines := make([][]byte, 0, len(candidates))
	for _, c := range candidates {
		b, err := json.Marshal(c.RawMetadata)
		if err != nil {
			continue
		}
		lines = append(lines, b)
	}
	return o.Files.WriteRaw(date, string(eco), lines)
}

// scoreEcosystem runs existence probing and scoring over a bounded worker
// pool (policy.Concurrency.Scoring), routing not-found candidates to the
// watchlist under strict mode instead of scoring them.
func (o *Orchestrator) scoreEcosystem(ctx context.Context, eco ecosystem.Ecosystem, candidates []candidate.PackageCandidate) ([]score.ScoredCandidate, []score.WatchlistEntry) {
	defer observeScoreEcosystem(string(eco), o.now())
	type result struct {
		scored    *score.ScoredCandidate
		watchlist *score.WatchlistEntry
	}
	results := make([]result, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	limit := o.Policy.Concurrency.Scoring
	if limit <= 0 {
		limit = 8
	}
	g.SetLimit(limit)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			exists, reason := o.Prober.Exists(gctx, eco, c.Name)
			if o.Policy.StrictExistence && !exists {
				notFound := mapReason(reason)
				candidatesWatchlistedCounter.WithLabelValues(string(eco), string(notFound)).Inc()
				results[i] = result{watchlist: &score.WatchlistEntry{
					Ecosystem:      string(eco),
					Name:           c.Name,
					NotFoundReason: notFound,
					FirstSeenAt:    o.now(),
				}}
				return nil
			}
			candidatesScoredCounter.WithLabelValues(string(eco)).Inc()
			sc := o.Scorer.Score(gctx, c)
			b := sc.Breakdown
			existsCopy := exists
			b.ExistsInRegistry = &existsCopy
			if !exists {
				b.NotFoundReason = string(reason)
			}
			sc.Breakdown = b
			results[i] = result{scored: &sc}
			return nil
		})
	}
	g.Wait() // per-item errors are absorbed inside the goroutine; this never fails the run

	var scored []score.ScoredCandidate
	var watchlist []score.WatchlistEntry
	for _, res := range results {
		switch {
		case res.scored != nil:
			scored = append(scored, *res.scored)
		case res.watchlist != nil:
			watchlist = append(watchlist, *res.watchlist)
		}
	}
	return scored, watchlist
}

func mapReason(r existence.Reason) score.NotFoundReason {
	switch r {
	case existence.Reason404:
		return score.Reason404
	case existence.ReasonTimeout:
		return score.ReasonTimeout
	case existence.ReasonOffline:
		return score.ReasonOffline
	default:
		return score.ReasonError
	}
}

// Rank sorts scored in place per §4.7's deterministic tie-break: total
// descending, then newness descending, then "ecosystem:name" ascending.
func Rank(scored []score.ScoredCandidate) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Total != scored[j].Total {
			return scored[i].Total > scored[j].Total
		}
		if scored[i].Breakdown.Newness != scored[j].Breakdown.Newness {
			return scored[i].Breakdown.Newness > scored[j].Breakdown.Newness
		}
		return scored[i].Key() < scored[j].Key()
	})
}

func filterAndTrim(scored []score.ScoredCandidate, minScore float64, topN int) []score.ScoredCandidate {
	var out []score.ScoredCandidate
	for _, sc := range scored {
		if sc.Total < minScore {
			continue
		}
		out = append(out, sc)
		if topN > 0 && len(out) >= topN {
			break
		}
	}
	return out
}
