// Package scorer implements the Scorer (C5): fires the signal bank and
// enrichment providers in a fixed order and folds their subscores into a
// ScoredCandidate.
package scorer

import (
	"context"
	"math"
	"time"

	"github.com/phantomscan/phantomscan/internal/httpx"
	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/content"
	"github.com/phantomscan/phantomscan/pkg/corpus"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/enrich"
	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/registry/npm"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
	"github.com/phantomscan/phantomscan/pkg/score"
	"github.com/phantomscan/phantomscan/pkg/signals"
)

// Scorer holds the dependencies needed to fire enrichment providers; it is
// stateless across calls to Score other than these injected collaborators.
type Scorer struct {
	Policy  *policy.Policy
	Corpus  *corpus.Corpus
	Client  httpx.BasicClient
	PyPI    pypi.Registry
	NPM     npm.Registry
	Offline bool
	Now     func() time.Time
}

func (s *Scorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Score runs the full §4.6 algorithm for one candidate: every metadata
// signal fires in fixed order, then every enabled enrichment fires in fixed
// order (or short-circuits to neutral values if offline), then subscores
// are clamped and folded into a weighted total.
func (s *Scorer) Score(ctx context.Context, c candidate.PackageCandidate) score.ScoredCandidate {
	var b score.Breakdown

	// Signal Bank (C3), fixed order.
	apply(&b.NameSuspicion, &b.Reasons, signals.NameSuspicion(c, s.Policy))
	apply(&b.KnownHallucination, &b.Reasons, signals.KnownHallucination(c, s.Corpus))
	apply(&b.Newness, &b.Reasons, signals.Newness(c, s.Policy, s.now()))
	apply(&b.RepoMissing, &b.Reasons, signals.RepoMissing(c))
	apply(&b.MaintainerReputation, &b.Reasons, signals.MaintainerReputation(c, s.Policy))
	apply(&b.ScriptRisk, &b.Reasons, signals.ScriptRisk(c))
	apply(&b.DocsAbsence, &b.Reasons, signals.DocsAbsence(c))

	// Enrichment Providers (C4.a/C4.b), fixed order, best-effort.
	s.enrich(ctx, c, &b)

	b.Clamp()

	total := s.weightedTotal(b)
	return score.ScoredCandidate{
		PackageCandidate: c,
		Breakdown:        b,
		Total:            total,
		ScoredAt:         s.now(),
	}
}

func apply(field *float64, reasons *[]string, res signals.Result) {
	*field = res.Score
	*reasons = append(*reasons, res.Reasons...)
}

func (s *Scorer) enrich(ctx context.Context, c candidate.PackageCandidate, b *score.Breakdown) {
	if s.Offline {
		b.AddReason("offline")
		b.ProvenanceRisk = 1
		return
	}

	pkgAgeDays := math.Max(0, s.now().Sub(c.CreatedAt).Hours()/24)

	// Content risk (C4.a).
	if s.Policy.Enrichment.ContentScan {
		switch c.Ecosystem {
		case ecosystem.NPM:
			if c.RawMetadata.NPM != nil {
				rel := c.RawMetadata.NPM.Versions[c.Version]
				contentScore, reasons := content.LintScripts(rel.Scripts, s.Policy.Patterns.NPMScriptRisk)
				b.ContentRisk = contentScore
				b.Reasons = append(b.Reasons, reasons...)
			}
		case ecosystem.PyPI:
			if s.PyPI != nil {
				contentScore, reasons := content.PyPIContentRisk(ctx, s.PyPI, c.Name, c.Version, s.Policy.Patterns.PyStaticScan)
				b.ContentRisk = contentScore
				b.Reasons = append(b.Reasons, reasons...)
			}
		}
	}

	// Repo facts + repo asymmetry.
	var repoFacts enrich.RepoFacts
	if s.Policy.Enrichment.GitHubRepoFacts && c.Repository != "" {
		var reasons []string
		repoFacts, reasons = enrich.FetchRepoFacts(ctx, s.Client, c.Repository, s.Policy.UserAgent)
		b.Reasons = append(b.Reasons, reasons...)
	}
	if repoFacts.Found {
		asym, reasons := enrich.RepoAsymmetry(pkgAgeDays, repoFacts.RepoAgeDays)
		b.RepoAsymmetry = asym
		b.Reasons = append(b.Reasons, reasons...)
	}

	// Vulnerability facts (context only; not bound to one of the twelve
	// subscores).
	if s.Policy.Enrichment.OSVVulnerabilities {
		_, reasons := enrich.VulnerabilityFacts(ctx, s.Client, c.Ecosystem, c.Name, s.Policy.UserAgent)
		b.Reasons = append(b.Reasons, reasons...)
	}

	// Dependents hint adjusts the maintainer-reputation family only, per
	// §7 decision 2.
	if s.Policy.Enrichment.LibrariesIODependents {
		mult, reasons := enrich.DependentsMultiplier(ctx, s.Client, c.Ecosystem, c.Name, s.Policy.Thresholds.DependentsHighCount)
		if s.Policy.Enrichment.DependentsAffectsMaintainerRepOnly {
			b.MaintainerReputation *= mult
		}
		b.Reasons = append(b.Reasons, reasons...)
	}

	// npm downloads + download anomaly.
	if c.Ecosystem == ecosystem.NPM && s.Policy.Enrichment.NPMDownloads {
		downloads, reasons := enrich.NPMWeeklyDownloads(ctx, s.Client, c.Name, s.Policy.UserAgent)
		b.Reasons = append(b.Reasons, reasons...)
		anomaly, reasons2 := enrich.DownloadAnomaly(pkgAgeDays, downloads)
		b.DownloadAnomaly = anomaly
		b.Reasons = append(b.Reasons, reasons2...)
	}

	// Provenance.
	if s.Policy.Enrichment.Provenance {
		switch c.Ecosystem {
		case ecosystem.NPM:
			if c.RawMetadata.NPM != nil {
				prov, reasons := enrich.NPMProvenance(c.RawMetadata.NPM, c.Version)
				b.ProvenanceRisk = prov
				b.Reasons = append(b.Reasons, reasons...)
			}
		case ecosystem.PyPI:
			prov, reasons := enrich.PyPIProvenance()
			b.ProvenanceRisk = prov
			b.Reasons = append(b.Reasons, reasons...)
		}
	}

	// Version flip.
	if s.Policy.Enrichment.VersionFlip {
		switch c.Ecosystem {
		case ecosystem.NPM:
			if c.RawMetadata.NPM != nil {
				flip, reasons := enrich.NPMVersionFlip(c.RawMetadata.NPM, s.Policy.Thresholds.VersionFlipWindowDays)
				b.VersionFlip = flip
				b.Reasons = append(b.Reasons, reasons...)
			}
		case ecosystem.PyPI:
			if c.RawMetadata.PyPI != nil && s.PyPI != nil {
				flip, reasons := enrich.PyPIVersionFlip(ctx, s.PyPI, c.Name, c.RawMetadata.PyPI, s.Policy.Thresholds.VersionFlipWindowDays, s.Policy.Thresholds.VersionFlipDepIncrease)
				b.VersionFlip = flip
				b.Reasons = append(b.Reasons, reasons...)
			}
		}
	}
}

func (s *Scorer) weightedTotal(b score.Breakdown) float64 {
	w := s.Policy.Weights
	total := w.NameSuspicion*b.NameSuspicion +
		w.KnownHallucination*b.KnownHallucination +
		w.ContentRisk*b.ContentRisk +
		w.ScriptRisk*b.ScriptRisk +
		w.Newness*b.Newness +
		w.RepoMissing*b.RepoMissing +
		w.MaintainerReputation*b.MaintainerReputation +
		w.DocsAbsence*b.DocsAbsence +
		w.ProvenanceRisk*b.ProvenanceRisk +
		w.RepoAsymmetry*b.RepoAsymmetry +
		w.DownloadAnomaly*b.DownloadAnomaly +
		w.VersionFlip*b.VersionFlip
	if total < 0 {
		return 0
	}
	if total > 1 {
		return 1
	}
	return total
}
