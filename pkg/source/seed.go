package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/registry/npm"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
)

// SeedRecord is one line of the canned newline-delimited JSON offline seed
// file: exactly one of PyPI/NPM is populated, matching Ecosystem.
type SeedRecord struct {
	Ecosystem ecosystem.Ecosystem `json:"ecosystem"`
	Name      string              `json:"name"`
	PyPI      *pypi.Project       `json:"pypi,omitempty"`
	NPM       *npm.NPMPackage     `json:"npm,omitempty"`
}

// LoadSeed reads the offline seed file and parses each record with the same
// per-ecosystem mapping the live adapters use, so offline and online runs
// produce structurally identical candidates.
func LoadSeed(ctx context.Context, path string, eco ecosystem.Ecosystem, limit int) ([]candidate.PackageCandidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening offline seed file")
	}
	defer f.Close()

	var out []candidate.PackageCandidate
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec SeedRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue // one malformed record is skipped, never fatal
		}
		if rec.Ecosystem != eco {
			continue
		}
		switch eco {
		case ecosystem.PyPI:
			if rec.PyPI != nil {
				out = append(out, ToCandidate(rec.Name, rec.PyPI))
			}
		case ecosystem.NPM:
			if rec.NPM != nil {
				out = append(out, ToNPMCandidate(rec.Name, rec.NPM))
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return out, errors.Wrap(err, "reading offline seed file")
	}
	return out, nil
}
