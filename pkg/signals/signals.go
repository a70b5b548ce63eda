// Package signals implements the Heuristic Signal Bank (C3): pure,
// metadata-only subscores that are a function only of a PackageCandidate
// plus policy and corpus. No signal in this package performs I/O.
package signals

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/corpus"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/similarity"
)

// Result is the (score, reasons) pair every signal returns.
type Result struct {
	Score   float64
	Reasons []string
}

func r(score float64, reasons ...string) Result { return Result{Score: score, Reasons: reasons} }

// NameSuspicion scores §4.3's name-suspicion heuristic: suspicious
// prefix/suffix hits, then a fuzzy-match bonus against canonical names in
// the same ecosystem.
func NameSuspicion(c candidate.PackageCandidate, p *policy.Policy) Result {
	name := c.Name
	best := 0.0
	var reasons []string

	for _, prefix := range p.Lists.SuspiciousPrefixes {
		if strings.HasPrefix(name, strings.ToLower(prefix)) {
			if 0.8 > best {
				best = 0.8
			}
			reasons = append(reasons, fmt.Sprintf("Suspicious prefix: %q", prefix))
		}
	}
	for _, suffix := range p.Lists.SuspiciousSuffixes {
		if strings.HasSuffix(name, strings.ToLower(suffix)) {
			if 0.6 > best {
				best = 0.6
			}
			reasons = append(reasons, fmt.Sprintf("Suspicious suffix: %q", suffix))
		}
	}

	threshold := p.Thresholds.FuzzyDistance
	for _, canon := range p.CanonicalNames(string(c.Ecosystem)) {
		if strings.ToLower(canon) == name {
			continue // exact canonical match excluded from the similarity bonus
		}
		ratio := similarity.Ratio(name, canon)
		distance := 100 - ratio
		if distance > 0 && distance <= threshold {
			score := 0.9 * (1 - distance/threshold)
			if score > best {
				best = score
			}
			reasons = append(reasons, fmt.Sprintf("Very similar to '%s' (distance: %.1f)", canon, distance))
		}
	}
	if best > 1 {
		best = 1
	}
	return r(best, reasons...)
}

// KnownHallucination scores 1.0 iff name is in the corpus's exact set or
// matches one of its regex patterns.
func KnownHallucination(c candidate.PackageCandidate, corp *corpus.Corpus) Result {
	if corp == nil {
		return r(0)
	}
	if ok, matched := corp.Matches(c.Name); ok {
		return r(1.0, fmt.Sprintf("Known hallucinated name: %s", matched))
	}
	return r(0)
}

// Newness scores package age against the policy's new-package window.
func Newness(c candidate.PackageCandidate, p *policy.Policy, now time.Time) Result {
	ageDays := math.Floor(now.UTC().Sub(c.CreatedAt).Hours() / 24)
	if ageDays < 0 {
		ageDays = 0
	}
	window := float64(p.Thresholds.NewPackageDays)
	switch {
	case ageDays == 0:
		return r(1.0, "Published today")
	case ageDays <= window:
		score := 1 - ageDays/window
		return r(score, fmt.Sprintf("Published %d days ago (window: %d)", int(ageDays), p.Thresholds.NewPackageDays))
	default:
		return r(0)
	}
}

// RepoMissing scores the absence of homepage/repository metadata.
func RepoMissing(c candidate.PackageCandidate) Result {
	hasHome := c.Homepage != ""
	hasRepo := c.Repository != ""
	switch {
	case !hasHome && !hasRepo:
		return r(1.0, "No homepage or repository listed")
	case hasHome != hasRepo:
		return r(0.5, "Only one of homepage/repository listed")
	default:
		return r(0)
	}
}

// MaintainerReputation scores maintainer count plus ecosystem-specific
// modifiers (disposable email, recently created maintainer account).
func MaintainerReputation(c candidate.PackageCandidate, p *policy.Policy) Result {
	var base float64
	switch {
	case c.MaintainersCount <= 1:
		base = 1.0
	case c.MaintainersCount == 2:
		base = 0.5
	default:
		base = 0
	}
	var reasons []string

	emails := maintainerEmails(c)
	for _, email := range emails {
		if isDisposable(email, p.Lists.DisposableEmailDomains) {
			base = 1.0
			reasons = append(reasons, fmt.Sprintf("Maintainer email uses disposable domain: %s", email))
			break
		}
	}

	if age := c.MaintainerAccountAgeDays; age != nil && *age < p.Thresholds.MaintainerAgeFloorDays {
		base += 0.3
		reasons = append(reasons, fmt.Sprintf("Maintainer account age hint (%d days) below floor (%d days)", *age, p.Thresholds.MaintainerAgeFloorDays))
	}

	if base > 1 {
		base = 1
	}
	if len(reasons) == 0 && c.MaintainersCount <= 1 {
		reasons = append(reasons, "Single or no maintainer")
	}
	return r(base, reasons...)
}

func maintainerEmails(c candidate.PackageCandidate) []string {
	var out []string
	if c.Ecosystem == ecosystem.PyPI && c.RawMetadata.PyPI != nil {
		if e := c.RawMetadata.PyPI.AuthorEmail; e != "" {
			out = append(out, e)
		}
		if e := c.RawMetadata.PyPI.MaintainerEmail; e != "" {
			out = append(out, e)
		}
	}
	if c.Ecosystem == ecosystem.NPM && c.RawMetadata.NPM != nil {
		for _, m := range c.RawMetadata.NPM.Maintainers {
			if m.Email != "" {
				out = append(out, m.Email)
			}
		}
		if c.RawMetadata.NPM.Author != nil && c.RawMetadata.NPM.Author.Email != "" {
			out = append(out, c.RawMetadata.NPM.Author.Email)
		}
	}
	return out
}

func isDisposable(email string, domains []string) bool {
	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return false
	}
	domain := strings.ToLower(parts[1])
	for _, d := range domains {
		if domain == strings.ToLower(d) {
			return true
		}
	}
	return false
}

// ScriptRisk scores npm install-script presence; always 0 for PyPI (the
// PyPI content-risk signal fires separately in the content package).
func ScriptRisk(c candidate.PackageCandidate) Result {
	if c.Ecosystem != ecosystem.NPM {
		return r(0)
	}
	if c.HasInstallScripts {
		return r(1.0, "Package has install/preinstall/postinstall scripts")
	}
	return r(0)
}

// DocsAbsence scores missing documentation links.
func DocsAbsence(c candidate.PackageCandidate) Result {
	if c.Ecosystem == ecosystem.PyPI && c.RawMetadata.PyPI != nil {
		hasDocs := false
		for k := range c.RawMetadata.PyPI.ProjectURLs {
			lk := strings.ToLower(k)
			if strings.Contains(lk, "documentation") || strings.Contains(lk, "docs") {
				hasDocs = true
				break
			}
		}
		hasHomeOrRepo := c.Homepage != "" || c.Repository != ""
		switch {
		case hasDocs:
			return r(0)
		case hasHomeOrRepo:
			return r(0.5, "No dedicated documentation URL, but homepage/repository present")
		default:
			return r(1.0, "No documentation, homepage, or repository")
		}
	}
	// npm: homepage/repo only.
	switch {
	case c.Homepage != "" && c.Repository != "":
		return r(0)
	case c.Homepage != "" || c.Repository != "":
		return r(0.5, "Only one of homepage/repository listed")
	default:
		return r(1.0, "No homepage or repository")
	}
}
