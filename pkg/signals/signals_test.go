package signals

import (
	"strings"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/corpus"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/registry/npm"
)

func testPolicy() *policy.Policy {
	p := policy.Default()
	p.Lists.CanonicalNames = map[string][]string{
		"pypi": {"requests", "numpy"},
	}
	return p
}

func TestNameSuspicion(t *testing.T) {
	p := testPolicy()
	for _, tc := range []struct {
		name     string
		pkgName  string
		wantZero bool
	}{
		{name: "suspicious prefix", pkgName: "python-requests-helper", wantZero: false},
		{name: "clean name", pkgName: "numpy", wantZero: true},
		{name: "fuzzy match to canonical", pkgName: "reqeusts", wantZero: false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := candidate.New(ecosystem.PyPI, tc.pkgName, time.Now())
			got := NameSuspicion(c, p)
			if tc.wantZero && got.Score != 0 {
				t.Errorf("NameSuspicion(%q) = %v, want 0", tc.pkgName, got.Score)
			}
			if !tc.wantZero && got.Score == 0 {
				t.Errorf("NameSuspicion(%q) = 0, want > 0", tc.pkgName)
			}
		})
	}
}

func TestKnownHallucination(t *testing.T) {
	corp, err := corpus.Parse([]byte(`
names:
  - totally-fake-pkg
patterns: []
`))
	if err != nil {
		t.Fatalf("corpus.Parse() failed: %v", err)
	}
	c := candidate.New(ecosystem.PyPI, "totally-fake-pkg", time.Now())
	got := KnownHallucination(c, corp)
	if got.Score != 1.0 {
		t.Errorf("KnownHallucination() = %v, want 1.0", got.Score)
	}

	clean := candidate.New(ecosystem.PyPI, "requests", time.Now())
	if got := KnownHallucination(clean, corp); got.Score != 0 {
		t.Errorf("KnownHallucination(clean) = %v, want 0", got.Score)
	}
}

func TestNewness(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		name      string
		createdAt time.Time
		wantScore float64
	}{
		{name: "published today", createdAt: now, wantScore: 1.0},
		{name: "outside window", createdAt: now.AddDate(0, 0, -90), wantScore: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := candidate.New(ecosystem.PyPI, "pkg", tc.createdAt)
			got := Newness(c, p, now)
			if got.Score != tc.wantScore {
				t.Errorf("Newness() = %v, want %v", got.Score, tc.wantScore)
			}
		})
	}
}

func TestRepoMissing(t *testing.T) {
	c := candidate.New(ecosystem.PyPI, "pkg", time.Now())
	if got := RepoMissing(c); got.Score != 1.0 {
		t.Errorf("RepoMissing() with no homepage/repo = %v, want 1.0", got.Score)
	}
	c.Homepage = "https://example.com"
	c.Repository = "https://github.com/example/pkg"
	if got := RepoMissing(c); got.Score != 0 {
		t.Errorf("RepoMissing() with both = %v, want 0", got.Score)
	}
}

func TestScriptRisk(t *testing.T) {
	pypiC := candidate.New(ecosystem.PyPI, "pkg", time.Now())
	pypiC.HasInstallScripts = true
	if got := ScriptRisk(pypiC); got.Score != 0 {
		t.Errorf("ScriptRisk(pypi) = %v, want 0 (npm-only signal)", got.Score)
	}

	npmC := candidate.New(ecosystem.NPM, "pkg", time.Now())
	npmC.HasInstallScripts = true
	if got := ScriptRisk(npmC); got.Score != 1.0 {
		t.Errorf("ScriptRisk(npm with scripts) = %v, want 1.0", got.Score)
	}
}

func TestMaintainerReputation(t *testing.T) {
	p := testPolicy()

	single := candidate.New(ecosystem.NPM, "pkg", time.Now())
	single.MaintainersCount = 1
	if got := MaintainerReputation(single, p); got.Score != 1.0 {
		t.Errorf("MaintainerReputation(single maintainer) = %v, want 1.0", got.Score)
	}

	two := candidate.New(ecosystem.NPM, "pkg", time.Now())
	two.MaintainersCount = 2
	if got := MaintainerReputation(two, p); got.Score != 0.5 {
		t.Errorf("MaintainerReputation(two maintainers) = %v, want 0.5", got.Score)
	}

	many := candidate.New(ecosystem.NPM, "pkg", time.Now())
	many.MaintainersCount = 8
	if got := MaintainerReputation(many, p); got.Score != 0 {
		t.Errorf("MaintainerReputation(eight maintainers) = %v, want 0", got.Score)
	}

	disposable := candidate.New(ecosystem.NPM, "pkg", time.Now())
	disposable.MaintainersCount = 8
	disposable.RawMetadata.NPM = &npm.NPMPackage{Maintainers: []npm.User{{Name: "m", Email: "a@mailinator.com"}}}
	got := MaintainerReputation(disposable, p)
	if got.Score != 1.0 {
		t.Errorf("MaintainerReputation(disposable email) = %v, want 1.0", got.Score)
	}
	if len(got.Reasons) == 0 {
		t.Error("MaintainerReputation(disposable email) reasons empty, want a disposable-domain reason")
	}

	young := candidate.New(ecosystem.NPM, "pkg", time.Now())
	young.MaintainersCount = 2
	age := 7
	young.MaintainerAccountAgeDays = &age
	got = MaintainerReputation(young, p)
	if got.Score != 0.8 {
		t.Errorf("MaintainerReputation(young account) = %v, want 0.8 (0.5 base + 0.3 modifier)", got.Score)
	}
	if !containsSubstring(got.Reasons, "age hint") {
		t.Errorf("MaintainerReputation(young account) reasons = %v, want an age-hint reason", got.Reasons)
	}

	old := candidate.New(ecosystem.NPM, "pkg", time.Now())
	old.MaintainersCount = 2
	oldAge := 365
	old.MaintainerAccountAgeDays = &oldAge
	if got := MaintainerReputation(old, p); got.Score != 0.5 {
		t.Errorf("MaintainerReputation(old account) = %v, want 0.5 (no young-account modifier)", got.Score)
	}
}

func containsSubstring(reasons []string, substr string) bool {
	for _, r := range reasons {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}

func TestDocsAbsence(t *testing.T) {
	c := candidate.New(ecosystem.NPM, "pkg", time.Now())
	if got := DocsAbsence(c); got.Score != 1.0 {
		t.Errorf("DocsAbsence() with nothing = %v, want 1.0", got.Score)
	}
	c.Homepage = "https://example.com"
	c.Repository = "https://github.com/example/pkg"
	if got := DocsAbsence(c); got.Score != 0 {
		t.Errorf("DocsAbsence() with both = %v, want 0", got.Score)
	}
}
