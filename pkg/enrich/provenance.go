package enrich

import (
	"github.com/phantomscan/phantomscan/pkg/registry/npm"
)

// NPMProvenance implements §4.5/§7-decision-5's literal thresholds:
// attestations present is fully trusted (0), a plain signature is a
// weaker signal (0.2), and no provenance data at all is the neutral-worst
// case (1, i.e. no credit given for provenance).
func NPMProvenance(pkg *npm.NPMPackage, version string) (float64, []string) {
	if pkg == nil {
		return 1, nil
	}
	rel, ok := pkg.Versions[version]
	if !ok {
		return 1, nil
	}
	if rel.Dist.SHA512 != "" && hasAttestations(rel) {
		return 0, []string{"Package has provenance attestations"}
	}
	if rel.Dist.SHA1 != "" || rel.Dist.SHA512 != "" {
		return 0.2, []string{"Package has registry signatures but no attestations"}
	}
	return 1, nil
}

// hasAttestations reports whether the version was published with npm
// provenance attestations (`npm publish --provenance`), per dist.attestations
// in the packument.
func hasAttestations(rel npm.Release) bool { return rel.Dist.Attestations != nil }

// PyPIProvenance is intentionally neutral per §7 decision 3: the hook
// exists so a future policy change can wire a real signal in without
// touching the scorer, but no PyPI package is penalised for it today.
func PyPIProvenance() (float64, []string) {
	return 1, nil
}
