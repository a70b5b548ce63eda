// Package policy loads the weights, thresholds, and pattern catalogues that
// parameterize scoring: a plain Go struct unmarshalled once from YAML at
// start-up and treated as immutable for the run.
package policy

import (
	"os"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/phantomscan/phantomscan/internal/phantomerr"
)

// Weights holds one non-negative weight per subscore. Conventionally sums
// to <= 1 but this is not enforced; missing weights default to 0.
type Weights struct {
	NameSuspicion        float64 `yaml:"name_suspicion"`
	KnownHallucination   float64 `yaml:"known_hallucination"`
	ContentRisk          float64 `yaml:"content_risk"`
	ScriptRisk           float64 `yaml:"script_risk"`
	Newness              float64 `yaml:"newness"`
	RepoMissing          float64 `yaml:"repo_missing"`
	MaintainerReputation float64 `yaml:"maintainer_reputation"`
	DocsAbsence          float64 `yaml:"docs_absence"`
	ProvenanceRisk       float64 `yaml:"provenance_risk"`
	RepoAsymmetry        float64 `yaml:"repo_asymmetry"`
	DownloadAnomaly      float64 `yaml:"download_anomaly"`
	VersionFlip          float64 `yaml:"version_flip"`
}

// Thresholds holds the numeric cutoffs referenced across §4.3-§4.5.
type Thresholds struct {
	NewPackageDays         int     `yaml:"new_package_days"`
	FuzzyDistance          float64 `yaml:"fuzzy_distance"`
	VersionFlipWindowDays  int     `yaml:"version_flip_window_days"`
	VersionFlipDepIncrease int     `yaml:"version_flip_dep_increase"`
	MaintainerAgeFloorDays int     `yaml:"maintainer_age_floor_days"`
	DependentsHighCount    int     `yaml:"dependents_high_count"`
	SuggestionThreshold    float64 `yaml:"suggestion_threshold"`
}

// Enrichment toggles one bit per external service, so a single provider can
// be disabled without touching the others.
type Enrichment struct {
	GitHubRepoFacts              bool `yaml:"github_repo_facts"`
	OSVVulnerabilities           bool `yaml:"osv_vulnerabilities"`
	LibrariesIODependents        bool `yaml:"librariesio_dependents"`
	NPMDownloads                 bool `yaml:"npm_downloads"`
	Provenance                   bool `yaml:"provenance"`
	VersionFlip                  bool `yaml:"version_flip"`
	ContentScan                  bool `yaml:"content_scan"`
	DependentsAffectsMaintainerRepOnly bool `yaml:"dependents_affects_maintainer_rep_only"`
}

// Timeouts bounds every blocking call the engine makes.
type Timeouts struct {
	Registry   time.Duration `yaml:"registry"`
	Existence  time.Duration `yaml:"existence"`
	Enrichment time.Duration `yaml:"enrichment"`
	Artifact   time.Duration `yaml:"artifact"`
	Overall    time.Duration `yaml:"overall"`
}

// Concurrency bounds the worker pools the orchestrator drives. Only Scoring
// is read; the orchestrator fetches one ecosystem at a time.
type Concurrency struct {
	Fetch   int `yaml:"fetch"`
	Scoring int `yaml:"scoring"`
}

// Lists holds the string catalogues used by the name-suspicion and
// maintainer-reputation signals.
type Lists struct {
	SuspiciousPrefixes     []string            `yaml:"suspicious_prefixes"`
	SuspiciousSuffixes     []string            `yaml:"suspicious_suffixes"`
	DisposableEmailDomains []string            `yaml:"disposable_email_domains"`
	CanonicalNames         map[string][]string `yaml:"canonical_names"` // ecosystem -> names
}

// Patterns holds the compiled regex catalogues for content analysis,
// compiled once at load time per the Design Notes.
type Patterns struct {
	NPMScriptRisk []LabeledPattern
	PyStaticScan  []LabeledPattern
}

// LabeledPattern pairs a compiled regex with a human-readable label used in
// reason strings.
type LabeledPattern struct {
	Label   string `yaml:"label"`
	Pattern string `yaml:"pattern"`
	re      *regexp.Regexp
}

// Regexp returns the compiled pattern.
func (p LabeledPattern) Regexp() *regexp.Regexp { return p.re }

type rawPatterns struct {
	NPMScriptRisk []LabeledPattern `yaml:"npm_script_risk"`
	PyStaticScan  []LabeledPattern `yaml:"py_static_scan"`
}

// Policy is the fully loaded, immutable-for-the-run configuration object.
type Policy struct {
	Weights     Weights     `yaml:"weights"`
	Thresholds  Thresholds  `yaml:"thresholds"`
	Enrichment  Enrichment  `yaml:"enrichment"`
	Timeouts    Timeouts    `yaml:"timeouts"`
	Concurrency Concurrency `yaml:"concurrency"`
	Lists       Lists       `yaml:"lists"`
	Patterns    Patterns    `yaml:"-"`
	TopN        int         `yaml:"top_n"`
	MinScore    float64     `yaml:"min_score"`
	RetentionDays int       `yaml:"retention_days"`
	UserAgent   string      `yaml:"user_agent"`
	StrictExistence bool    `yaml:"strict_existence"`
	Offline     bool        `yaml:"-"` // environment-controlled, never from YAML

	rawPatterns rawPatterns `yaml:"patterns"`
}

// Load reads and validates a Policy from a YAML file at path.
func Load(path string) (*Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading policy file")
	}
	return Parse(b)
}

// Parse decodes a Policy from YAML bytes and compiles its pattern
// catalogues.
func Parse(b []byte) (*Policy, error) {
	var p Policy
	type alias Policy
	aux := struct {
		Patterns rawPatterns `yaml:"patterns"`
		*alias   `yaml:",inline"`
	}{alias: (*alias)(&p)}
	if err := yaml.Unmarshal(b, &aux); err != nil {
		return nil, errors.Wrap(err, "parsing policy yaml")
	}
	p.rawPatterns = aux.Patterns
	if err := p.compilePatterns(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) compilePatterns() error {
	compile := func(in []LabeledPattern) ([]LabeledPattern, error) {
		out := make([]LabeledPattern, 0, len(in))
		for _, lp := range in {
			re, err := regexp.Compile("(?i)" + lp.Pattern)
			if err != nil {
				return nil, errors.Wrapf(err, "compiling pattern %q", lp.Label)
			}
			lp.re = re
			out = append(out, lp)
		}
		return out, nil
	}
	var err error
	if p.Patterns.NPMScriptRisk, err = compile(p.rawPatterns.NPMScriptRisk); err != nil {
		return err
	}
	if p.Patterns.PyStaticScan, err = compile(p.rawPatterns.PyStaticScan); err != nil {
		return err
	}
	return nil
}

// Validate rejects structurally invalid policy, a PolicyError per §7 that
// is fatal at start-up only.
func (p *Policy) Validate() error {
	if p.Thresholds.NewPackageDays <= 0 {
		return errors.Wrap(phantomerr.ErrPolicy, "thresholds.new_package_days must be positive")
	}
	if p.Thresholds.FuzzyDistance <= 0 || p.Thresholds.FuzzyDistance > 100 {
		return errors.Wrap(phantomerr.ErrPolicy, "thresholds.fuzzy_distance must be in (0, 100]")
	}
	if p.TopN <= 0 {
		return errors.Wrap(phantomerr.ErrPolicy, "top_n must be positive")
	}
	for _, w := range []float64{
		p.Weights.NameSuspicion, p.Weights.KnownHallucination, p.Weights.ContentRisk,
		p.Weights.ScriptRisk, p.Weights.Newness, p.Weights.RepoMissing,
		p.Weights.MaintainerReputation, p.Weights.DocsAbsence, p.Weights.ProvenanceRisk,
		p.Weights.RepoAsymmetry, p.Weights.DownloadAnomaly, p.Weights.VersionFlip,
	} {
		if w < 0 {
			return errors.Wrap(phantomerr.ErrPolicy, "weights must be non-negative")
		}
	}
	return nil
}

// CanonicalNames returns the canonical-name anchors for an ecosystem.
func (p *Policy) CanonicalNames(eco string) []string {
	return p.Lists.CanonicalNames[eco]
}

// Default returns a reasonable built-in policy, used when no YAML file is
// supplied (e.g. ad-hoc `analyze` CLI invocations). A loaded file is not
// merged with it: Parse starts from an empty Policy.
func Default() *Policy {
	p := &Policy{
		Weights: Weights{
			NameSuspicion:        0.20,
			KnownHallucination:   0.15,
			ContentRisk:          0.15,
			ScriptRisk:           0.10,
			Newness:              0.08,
			RepoMissing:          0.07,
			MaintainerReputation: 0.07,
			DocsAbsence:          0.05,
			ProvenanceRisk:       0.04,
			RepoAsymmetry:        0.04,
			DownloadAnomaly:      0.03,
			VersionFlip:          0.02,
		},
		Thresholds: Thresholds{
			NewPackageDays:         14,
			FuzzyDistance:          15,
			VersionFlipWindowDays:  30,
			VersionFlipDepIncrease: 3,
			MaintainerAgeFloorDays: 30,
			DependentsHighCount:    50,
			SuggestionThreshold:    92,
		},
		Enrichment: Enrichment{
			GitHubRepoFacts:       true,
			OSVVulnerabilities:    true,
			LibrariesIODependents: true,
			NPMDownloads:          true,
			Provenance:            true,
			VersionFlip:           true,
			ContentScan:           true,
			DependentsAffectsMaintainerRepOnly: true,
		},
		Timeouts: Timeouts{
			Registry:   10 * time.Second,
			Existence:  5 * time.Second,
			Enrichment: 8 * time.Second,
			Artifact:   15 * time.Second,
			Overall:    8 * time.Second,
		},
		Concurrency: Concurrency{Fetch: 8, Scoring: 8},
		Lists: Lists{
			SuspiciousPrefixes:     []string{"python-", "py-", "node-", "js-", "npm-"},
			SuspiciousSuffixes:     []string{"-utils", "-helper", "-official", "-sdk", "-tools"},
			DisposableEmailDomains: []string{"mailinator.com", "guerrillamail.com", "10minutemail.com"},
			CanonicalNames:         map[string][]string{},
		},
		TopN:            50,
		MinScore:        0.3,
		RetentionDays:   90,
		UserAgent:       "PhantomScan/1.0 (+https://github.com/phantomscan/phantomscan)",
		StrictExistence: true,
	}
	p.rawPatterns = defaultRawPatterns()
	_ = p.compilePatterns()
	return p
}

func defaultRawPatterns() rawPatterns {
	return rawPatterns{
		NPMScriptRisk: []LabeledPattern{
			{Label: "curl", Pattern: `\bcurl\b`},
			{Label: "wget", Pattern: `\bwget\b`},
			{Label: "powershell-webrequest", Pattern: `Invoke-WebRequest|IWR\b`},
			{Label: "shell-invocation", Pattern: `\b(sh|bash|zsh)\s+-c\b`},
			{Label: "chmod+x", Pattern: `chmod\s+\+x`},
			{Label: "chmod-777", Pattern: `chmod\s+777`},
			{Label: "base64", Pattern: `base64\s+(-d|--decode)`},
			{Label: "eval", Pattern: `\beval\(`},
			{Label: "inline-node-eval", Pattern: `node\s+-e\b`},
			{Label: "credential-env-github", Pattern: `GITHUB_TOKEN`},
			{Label: "credential-env-npm", Pattern: `NPM_TOKEN`},
			{Label: "credential-env-ssh", Pattern: `SSH_[A-Z_]+`},
			{Label: "credential-env-aws", Pattern: `AWS_[A-Z_]+`},
			{Label: "dotenv-read", Pattern: `\.env\b`},
			{Label: "rm-rf", Pattern: `rm\s+-rf`},
			{Label: "dd-if", Pattern: `\bdd\s+if=`},
			{Label: "process-injection", Pattern: `LD_PRELOAD|DYLD_INSERT_LIBRARIES`},
		},
		PyStaticScan: []LabeledPattern{
			{Label: "exec-call", Pattern: `\bexec\(`},
			{Label: "eval-call", Pattern: `\beval\(`},
			{Label: "compile-call", Pattern: `\bcompile\(`},
			{Label: "dunder-import", Pattern: `__import__\(`},
			{Label: "credential-http", Pattern: `requests\.(post|get)\([^)]*token`},
			{Label: "base64-decode", Pattern: `base64\.b64decode`},
			{Label: "subprocess-shell-true", Pattern: `subprocess\.[A-Za-z_]+\([^)]*shell\s*=\s*True`},
			{Label: "os-system", Pattern: `os\.system\(`},
			{Label: "etc-open", Pattern: `open\(\s*['"]/etc/`},
			{Label: "root-open", Pattern: `open\(\s*['"]/root/`},
			{Label: "ssh-open", Pattern: `\.ssh/`},
			{Label: "aws-open", Pattern: `\.aws/`},
			{Label: "environ-credential", Pattern: `os\.(environ|getenv)\([^)]*(TOKEN|SECRET|KEY|PASSWORD)`},
		},
	}
}
