package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/internal/httpx"
	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/registry/npm"
)

type changesFeedResponse struct {
	Results []changesFeedResult `json:"results"`
	LastSeq json.Number         `json:"last_seq"`
}
type changesFeedResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// NPMSource drives npm discovery via the CouchDB-style changes feed plus
// per-name packument fetch.
type NPMSource struct {
	Client    httpx.BasicClient
	Registry  npm.Registry
	UserAgent string
}

// DiscoverRecent polls replicate.npmjs.com/_changes in descending order,
// ignoring design-doc ids (those beginning "_") and deleted entries.
func (s *NPMSource) DiscoverRecent(ctx context.Context, limit int) ([]string, error) {
	url := fmt.Sprintf("https://replicate.npmjs.com/_changes?descending=true&limit=%d", discoverBatchSize(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching npm changes feed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("npm changes feed error: %v", resp.Status)
	}
	var feed changesFeedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, errors.Wrap(err, "parsing npm changes feed")
	}
	var names []string
	seen := make(map[string]bool)
	for _, r := range feed.Results {
		if r.Deleted || strings.HasPrefix(r.ID, "_") {
			continue
		}
		name := strings.ToLower(r.ID)
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
		if limit > 0 && len(names) >= limit {
			break
		}
	}
	return names, nil
}

func discoverBatchSize(limit int) int {
	if limit <= 0 {
		return 200
	}
	return limit * 2 // over-fetch to absorb deleted/design-doc entries
}

// FetchCandidate fetches and normalises one npm package by name, per
// §4.1's field-mapping contract.
func (s *NPMSource) FetchCandidate(ctx context.Context, name string) (candidate.PackageCandidate, error) {
	pkg, err := s.Registry.Package(ctx, name)
	if err != nil {
		return candidate.PackageCandidate{}, err
	}
	return ToNPMCandidate(name, pkg), nil
}

// ToNPMCandidate maps a raw npm.NPMPackage into a normalised
// PackageCandidate.
func ToNPMCandidate(name string, pkg *npm.NPMPackage) candidate.PackageCandidate {
	created := pkg.UploadTimes["created"]
	c := candidate.New(ecosystem.NPM, name, created)

	latest := latestVersion(pkg)
	c.Version = latest
	if rel, ok := pkg.Versions[latest]; ok {
		c.Homepage = rel.Repository.URL // npm packuments rarely separate homepage per-version; repository doubles as the best-effort link
		c.Repository = rel.Repository.URL
		c.HasInstallScripts = hasInstallScripts(rel.Scripts)
	}
	c.MaintainersCount = len(pkg.Maintainers)
	c.MaintainerAccountAgeDays = maintainerAccountAgeHintDays(pkg)
	c.RawMetadata = candidate.RawMetadata{NPM: pkg}
	return c
}

// maintainerAccountAgeHintDays estimates maintainer tenure from the earliest
// version a current maintainer is recorded (via the packument's per-version
// "_npmUser") as having published. This is a hint, not a true account-age
// lookup: npm's packument API exposes no account-creation date.
func maintainerAccountAgeHintDays(pkg *npm.NPMPackage) *int {
	names := make(map[string]bool, len(pkg.Maintainers))
	for _, m := range pkg.Maintainers {
		if m.Name != "" {
			names[m.Name] = true
		}
	}
	if len(names) == 0 {
		return nil
	}
	var earliest time.Time
	for v, rel := range pkg.Versions {
		if rel.NPMUser == nil || !names[rel.NPMUser.Name] {
			continue
		}
		t, ok := pkg.UploadTimes[v]
		if !ok || t.IsZero() {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if earliest.IsZero() {
		return nil
	}
	days := int(time.Now().UTC().Sub(earliest).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

func latestVersion(pkg *npm.NPMPackage) string {
	if pkg.DistTags.Latest != "" {
		return pkg.DistTags.Latest
	}
	for v := range pkg.Versions {
		return v // fallback: first key in versions, per §4.1
	}
	return ""
}

func hasInstallScripts(scripts map[string]string) bool {
	for _, k := range []string{"install", "preinstall", "postinstall"} {
		if _, ok := scripts[k]; ok {
			return true
		}
	}
	return false
}
