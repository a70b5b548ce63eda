package enrich

import (
	"testing"

	"github.com/phantomscan/phantomscan/pkg/registry/npm"
)

func TestNPMProvenanceNilPackage(t *testing.T) {
	score, reasons := NPMProvenance(nil, "1.0.0")
	if score != 1 || reasons != nil {
		t.Errorf("NPMProvenance(nil) = (%v, %v), want (1, nil)", score, reasons)
	}
}

func TestNPMProvenanceMissingVersion(t *testing.T) {
	pkg := &npm.NPMPackage{Versions: map[string]npm.Release{}}
	score, _ := NPMProvenance(pkg, "9.9.9")
	if score != 1 {
		t.Errorf("NPMProvenance() score = %v, want 1 for a version with no release record", score)
	}
}

func TestNPMProvenanceSignedNoAttestations(t *testing.T) {
	pkg := &npm.NPMPackage{Versions: map[string]npm.Release{
		"1.0.0": {Dist: npm.Dist{SHA1: "deadbeef"}},
	}}
	score, reasons := NPMProvenance(pkg, "1.0.0")
	if score != 0.2 {
		t.Errorf("NPMProvenance() score = %v, want 0.2 for a signed-only release", score)
	}
	if len(reasons) == 0 {
		t.Error("NPMProvenance() reasons empty, want a signature reason")
	}
}

func TestNPMProvenanceAttested(t *testing.T) {
	pkg := &npm.NPMPackage{Versions: map[string]npm.Release{
		"1.0.0": {Dist: npm.Dist{SHA512: "deadbeef", Attestations: &npm.Attestations{URL: "https://registry.npmjs.org/-/npm/v1/attestations/pkg@1.0.0"}}},
	}}
	score, reasons := NPMProvenance(pkg, "1.0.0")
	if score != 0 {
		t.Errorf("NPMProvenance() score = %v, want 0 for an attested release", score)
	}
	if len(reasons) == 0 {
		t.Error("NPMProvenance() reasons empty, want an attestation reason")
	}
}

func TestNPMProvenanceNoSignatureAtAll(t *testing.T) {
	pkg := &npm.NPMPackage{Versions: map[string]npm.Release{
		"1.0.0": {},
	}}
	score, _ := NPMProvenance(pkg, "1.0.0")
	if score != 1 {
		t.Errorf("NPMProvenance() score = %v, want 1 with no dist hashes at all", score)
	}
}

func TestPyPIProvenanceIsAlwaysNeutral(t *testing.T) {
	score, reasons := PyPIProvenance()
	if score != 1 || reasons != nil {
		t.Errorf("PyPIProvenance() = (%v, %v), want (1, nil)", score, reasons)
	}
}
