// Package content implements the artifact/script static-analysis subscore
// (C4.a): npm lifecycle-script linting and PyPI sdist/wheel comparison plus
// static scanning of extracted Python source.
package content

import (
	"fmt"
	"sort"

	"github.com/phantomscan/phantomscan/pkg/policy"
)

var lifecycleScripts = map[string]bool{
	"install":      true,
	"preinstall":   true,
	"postinstall":  true,
}

// LintScripts implements §4.4's npm content-risk formula over a package's
// script table: `min(hits/15, 0.7)`, plus a 0.3 lifecycle bonus whenever a
// lifecycle script has at least one pattern hit anywhere, and a 0.4 floor
// when lifecycle scripts exist but no pattern fired.
func LintScripts(scripts map[string]string, patterns []policy.LabeledPattern) (float64, []string) {
	if len(scripts) == 0 {
		return 0, nil
	}

	var reasons []string
	hits := 0
	lifecycleHit := false
	hasLifecycle := false

	names := make([]string, 0, len(scripts))
	for name := range scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		body := scripts[name]
		isLifecycle := lifecycleScripts[name]
		if isLifecycle {
			hasLifecycle = true
		}
		for _, lp := range patterns {
			if lp.Regexp().MatchString(body) {
				hits++
				suffix := ""
				if isLifecycle {
					suffix = " (in lifecycle script!)"
					lifecycleHit = true
				}
				reasons = append(reasons, fmt.Sprintf("%s: %q matched in %q script%s", lp.Label, lp.Pattern, name, suffix))
			}
		}
	}

	score := float64(hits) / 15
	if score > 0.7 {
		score = 0.7
	}
	if hasLifecycle && hits > 0 {
		score += 0.3
		if lifecycleHit {
			reasons = append(reasons, "CRITICAL: dangerous pattern auto-runs via lifecycle script")
		} else {
			reasons = append(reasons, "Dangerous pattern in a package with install/preinstall/postinstall scripts")
		}
	} else if hasLifecycle && hits == 0 {
		if score < 0.4 {
			score = 0.4
		}
		reasons = append(reasons, "Lifecycle script present with no recognised pattern (auto-run)")
	}
	if score > 1 {
		score = 1
	}
	return score, reasons
}
