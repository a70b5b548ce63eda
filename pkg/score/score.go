// Package score holds the scoring data model shared by the signal bank,
// enrichment providers, scorer, and persistence layer: ScoreBreakdown,
// ScoredCandidate, WatchlistEntry, and Feed.
package score

import (
	"time"

	"github.com/google/uuid"

	"github.com/phantomscan/phantomscan/pkg/candidate"
)

// Breakdown carries the twelve subscores plus the reasons that produced
// them. Every subscore is clamped to [0, 1] by the scorer before this
// struct is considered final.
type Breakdown struct {
	NameSuspicion        float64
	KnownHallucination   float64
	ContentRisk          float64
	ScriptRisk           float64
	Newness              float64
	RepoMissing          float64
	MaintainerReputation float64
	DocsAbsence          float64
	ProvenanceRisk       float64
	RepoAsymmetry        float64
	DownloadAnomaly      float64
	VersionFlip          float64

	Reasons []string

	ExistsInRegistry *bool
	NotFoundReason   string
}

// AddReason appends a reason to the breakdown's reason list, the only
// mutation path every signal and enrichment function is allowed to use.
func (b *Breakdown) AddReason(r string) {
	b.Reasons = append(b.Reasons, r)
}

// Clamp pins every subscore into [0, 1].
func (b *Breakdown) Clamp() {
	b.NameSuspicion = clamp01(b.NameSuspicion)
	b.KnownHallucination = clamp01(b.KnownHallucination)
	b.ContentRisk = clamp01(b.ContentRisk)
	b.ScriptRisk = clamp01(b.ScriptRisk)
	b.Newness = clamp01(b.Newness)
	b.RepoMissing = clamp01(b.RepoMissing)
	b.MaintainerReputation = clamp01(b.MaintainerReputation)
	b.DocsAbsence = clamp01(b.DocsAbsence)
	b.ProvenanceRisk = clamp01(b.ProvenanceRisk)
	b.RepoAsymmetry = clamp01(b.RepoAsymmetry)
	b.DownloadAnomaly = clamp01(b.DownloadAnomaly)
	b.VersionFlip = clamp01(b.VersionFlip)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoredCandidate is a PackageCandidate with its breakdown and weighted
// total, produced by the scorer.
type ScoredCandidate struct {
	candidate.PackageCandidate
	Breakdown Breakdown
	Total     float64
	ScoredAt  time.Time
}

// NotFoundReason is the closed set of reasons a name failed to resolve.
type NotFoundReason string

const (
	Reason404     NotFoundReason = "404"
	ReasonTimeout NotFoundReason = "timeout"
	ReasonOffline NotFoundReason = "offline"
	ReasonError   NotFoundReason = "error"
)

// WatchlistEntry records a name observed during ingestion that did not
// resolve in its registry at probe time.
type WatchlistEntry struct {
	Ecosystem      string
	Name           string
	NotFoundReason NotFoundReason
	FirstSeenAt    time.Time
}

// Feed is the day's ranked output: scored candidates ordered by total
// descending with the §4.7 deterministic tie-break already applied. A feed
// built by RunAll holds only items at or above the policy's MinScore, cut
// to its top N.
type Feed struct {
	RunID       uuid.UUID
	Date        string
	GeneratedAt time.Time
	Items       []ScoredCandidate
}
