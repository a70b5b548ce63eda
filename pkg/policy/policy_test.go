package policy

import "testing"

func TestDefaultValidates(t *testing.T) {
	p := Default()
	if err := p.Validate(); err != nil {
		t.Fatalf("Default().Validate() failed: %v", err)
	}
	if len(p.Patterns.NPMScriptRisk) == 0 {
		t.Error("Default() compiled zero npm script-risk patterns")
	}
	if len(p.Patterns.PyStaticScan) == 0 {
		t.Error("Default() compiled zero py static-scan patterns")
	}
	for _, lp := range p.Patterns.NPMScriptRisk {
		if lp.Regexp() == nil {
			t.Errorf("pattern %q has no compiled regexp", lp.Label)
		}
	}
}

func TestParseRejectsInvalidPolicy(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
	}{
		{name: "zero new_package_days", yaml: "thresholds:\n  new_package_days: 0\n  fuzzy_distance: 10\ntop_n: 5\n"},
		{name: "fuzzy_distance out of range", yaml: "thresholds:\n  new_package_days: 14\n  fuzzy_distance: 500\ntop_n: 5\n"},
		{name: "missing top_n", yaml: "thresholds:\n  new_package_days: 14\n  fuzzy_distance: 10\n"},
		{name: "negative weight", yaml: "thresholds:\n  new_package_days: 14\n  fuzzy_distance: 10\ntop_n: 5\nweights:\n  newness: -1\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tc.name)
			}
		})
	}
}

func TestParseCompilesPatternsCaseInsensitively(t *testing.T) {
	p, err := Parse([]byte(`
thresholds:
  new_package_days: 14
  fuzzy_distance: 10
top_n: 5
patterns:
  npm_script_risk:
    - label: curl
      pattern: "\\bcurl\\b"
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if len(p.Patterns.NPMScriptRisk) != 1 {
		t.Fatalf("got %d npm patterns, want 1", len(p.Patterns.NPMScriptRisk))
	}
	re := p.Patterns.NPMScriptRisk[0].Regexp()
	if !re.MatchString("CURL http://evil.example") {
		t.Errorf("compiled pattern did not match case-insensitively")
	}
}

func TestCanonicalNames(t *testing.T) {
	p := Default()
	p.Lists.CanonicalNames = map[string][]string{"pypi": {"requests"}}
	if got := p.CanonicalNames("pypi"); len(got) != 1 || got[0] != "requests" {
		t.Errorf("CanonicalNames(pypi) = %v, want [requests]", got)
	}
	if got := p.CanonicalNames("npm"); got != nil {
		t.Errorf("CanonicalNames(npm) = %v, want nil", got)
	}
}
