// Package candidate defines the normalised view of a package observed
// during ingestion, independent of which registry it came from.
package candidate

import (
	"strings"
	"time"

	"github.com/package-url/packageurl-go"

	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/registry/npm"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
)

// RawMetadata is a tagged union over the ecosystem-specific registry
// document retained for enrichment and content analysis. Exactly one field
// is set, matching the ecosystem of the candidate it belongs to. Only the
// accessor methods below should be used to reach into it; no other package
// switches on ecosystem to pick a field directly.
type RawMetadata struct {
	PyPI *pypi.Project
	NPM  *npm.NPMPackage
}

// PackageCandidate is a normalised view of one package observed during
// ingestion, built once by a Source adapter and never mutated afterward.
type PackageCandidate struct {
	Ecosystem        ecosystem.Ecosystem
	Name             string // lowercased, non-empty
	Version          string // latest visible release
	CreatedAt        time.Time
	Homepage         string
	Repository       string
	MaintainersCount int
	// MaintainerAccountAgeDays is a best-effort tenure hint for the package's
	// maintainers (npm only today; derived from the earliest version a
	// current maintainer published, not a true account-creation date). Nil
	// when the registry gives no basis for a hint.
	MaintainerAccountAgeDays *int
	HasInstallScripts bool // npm only
	Description      string
	RawMetadata      RawMetadata
}

// New constructs a PackageCandidate, normalising name and defaulting
// CreatedAt to now if the caller didn't supply one.
func New(eco ecosystem.Ecosystem, name string, createdAt time.Time) PackageCandidate {
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return PackageCandidate{
		Ecosystem: eco,
		Name:      NormalizeName(name),
		CreatedAt: createdAt.UTC(),
	}
}

// NormalizeName lowercases and trims a package name for identity purposes.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Key returns the "(ecosystem, name)" identity string, used for tie-break
// sorting and persistence keys.
func (c PackageCandidate) Key() string {
	return string(c.Ecosystem) + ":" + c.Name
}

// PURL returns the package URL identifying this candidate, used in feed and
// watchlist output so downstream tooling can correlate against other
// package-URL-aware systems without re-deriving the ecosystem/name mapping.
func (c PackageCandidate) PURL() string {
	purlType := "pypi"
	if c.Ecosystem == ecosystem.NPM {
		purlType = "npm"
	}
	p := packageurl.PackageURL{Type: purlType, Name: c.Name, Version: c.Version}
	return p.String()
}
