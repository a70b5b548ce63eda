// Package enrich implements the Enrichment Providers (C4.b): network-backed,
// best-effort subscores. Every exported function here follows the same
// contract — on any failure (timeout, bad status, parse error, disabled,
// offline) it returns its documented neutral value and an empty (or
// single "offline"/failure) reason list. No function in this package ever
// returns an error; enrichment failures are invisible to the scorer by
// design, collapsing the usual "value, error" shape one level further into
// "value, reasons" for this layer.
package enrich

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/phantomscan/phantomscan/internal/httpx"
)

// RepoFacts is the subset of a GitHub repository's facts the scorer
// consumes.
type RepoFacts struct {
	Found                bool
	RepoAgeDays          float64
	HasTopics            bool
	RecentCommitActivity bool
}

var ownerRepoRe = regexp.MustCompile(`github\.com[:/]([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)

// ParseGitHubOwnerRepo extracts "owner", "repo" from a repository URL, or
// ok=false if it doesn't look like a GitHub URL.
func ParseGitHubOwnerRepo(repoURL string) (owner, repo string, ok bool) {
	m := ownerRepoRe.FindStringSubmatch(repoURL)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

type ghRepoResponse struct {
	CreatedAt time.Time `json:"created_at"`
	PushedAt  time.Time `json:"pushed_at"`
	Topics    []string  `json:"topics"`
}

// FetchRepoFacts calls api.github.com/repos/{owner}/{repo}. A GitHub token
// is read from the GITHUB_TOKEN/PHANTOMSCAN_GITHUB_TOKEN environment
// variables if present.
func FetchRepoFacts(ctx context.Context, client httpx.BasicClient, repoURL, userAgent string) (RepoFacts, []string) {
	owner, repo, ok := ParseGitHubOwnerRepo(repoURL)
	if !ok {
		return RepoFacts{}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.github.com/repos/"+owner+"/"+repo, nil)
	if err != nil {
		return RepoFacts{}, nil
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if tok := githubToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := client.Do(req)
	if err != nil {
		return RepoFacts{}, []string{"repo facts lookup failed: transport error"}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return RepoFacts{}, []string{"repository not found on GitHub"}
	}
	if resp.StatusCode != http.StatusOK {
		return RepoFacts{}, []string{"repo facts lookup failed: unexpected status"}
	}
	var out ghRepoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RepoFacts{}, []string{"repo facts lookup failed: bad response"}
	}
	ageDays := math.Max(0, time.Since(out.CreatedAt).Hours()/24)
	recent := time.Since(out.PushedAt) < 90*24*time.Hour
	return RepoFacts{
		Found:                true,
		RepoAgeDays:          ageDays,
		HasTopics:            len(out.Topics) > 0,
		RecentCommitActivity: recent,
	}, nil
}

func githubToken() string {
	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("PHANTOMSCAN_GITHUB_TOKEN")
}

// RepoAsymmetry implements §4.5/§7-decision-4: a package older than its
// repository is suspicious (e.g. a repo created to backfill history for a
// package that's been squatting the name for longer).
func RepoAsymmetry(pkgAgeDays, repoAgeDays float64) (float64, []string) {
	diff := pkgAgeDays - repoAgeDays
	if diff <= 0 {
		return 0, nil
	}
	score := diff / 30
	if score > 1 {
		score = 1
	}
	return score, []string{"Package predates its repository"}
}
