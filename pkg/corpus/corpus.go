// Package corpus loads the known-hallucination list: package names that
// large language models are known to fabricate when asked for a dependency
// that doesn't exist.
package corpus

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/phantomscan/phantomscan/internal/phantomerr"
)

type rawCorpus struct {
	Names    []string `yaml:"names"`
	Patterns []string `yaml:"patterns"`
}

// Corpus is the loaded, immutable-for-the-run known-hallucination list: an
// exact lowercase name set plus compiled case-insensitive regex patterns.
type Corpus struct {
	names    map[string]bool
	patterns []*regexp.Regexp
	sources  []string // pattern source text, parallel to patterns, for reason text
}

// Load reads and compiles a Corpus from a YAML file at path.
func Load(path string) (*Corpus, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading corpus file")
	}
	return Parse(b)
}

// Parse decodes a Corpus from YAML bytes.
func Parse(b []byte) (*Corpus, error) {
	var raw rawCorpus
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing corpus yaml")
	}
	c := &Corpus{names: make(map[string]bool, len(raw.Names))}
	for _, n := range raw.Names {
		c.names[strings.ToLower(strings.TrimSpace(n))] = true
	}
	for _, p := range raw.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, errors.Wrapf(phantomerr.ErrPolicy, "compiling corpus pattern %q: %v", p, err)
		}
		c.patterns = append(c.patterns, re)
		c.sources = append(c.sources, p)
	}
	return c, nil
}

// Matches reports whether name (expected already-lowercased) is a known
// hallucination, and if so the literal pattern or name that matched, used
// verbatim in the reason text.
func (c *Corpus) Matches(name string) (bool, string) {
	name = strings.ToLower(name)
	if c.names[name] {
		return true, name
	}
	for i, re := range c.patterns {
		if re.MatchString(name) {
			return true, c.sources[i]
		}
	}
	return false, ""
}

// Empty returns a Corpus with no entries, used when no corpus file is
// configured.
func Empty() *Corpus {
	return &Corpus{names: map[string]bool{}}
}
