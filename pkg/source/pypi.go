// Package source implements the Registry Source adapters (C1): turning a
// registry-specific recent-packages view into a normalised candidate
// stream.
package source

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/internal/httpx"
	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
)

// rss mirrors the shape of PyPI's package/updates RSS feeds.
type rss struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}
type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

var pypiFeeds = []string{
	"https://pypi.org/rss/packages.xml",
	"https://pypi.org/rss/updates.xml",
}

// PyPISource drives PyPI discovery + per-name JSON fetch.
type PyPISource struct {
	Client   httpx.BasicClient
	Registry pypi.Registry
	UserAgent string
}

// DiscoverRecent unions and dedups (lowercased) package names from both
// PyPI RSS feeds.
func (s *PyPISource) DiscoverRecent(ctx context.Context, limit int) ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	for _, feedURL := range pypiFeeds {
		items, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			continue // transport failure on one feed degrades to an empty contribution, not fatal
		}
		for _, it := range items {
			name := titleToName(it.Title)
			if name == "" {
				continue
			}
			lname := strings.ToLower(name)
			if seen[lname] {
				continue
			}
			seen[lname] = true
			names = append(names, lname)
			if limit > 0 && len(names) >= limit {
				return names, nil
			}
		}
	}
	return names, nil
}

// titleToName extracts the package name from an RSS item title, which PyPI
// formats as "name version".
func titleToName(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (s *PyPISource) fetchFeed(ctx context.Context, feedURL string) ([]rssItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching pypi rss feed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("pypi rss feed error: %v", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var feed rss
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, errors.Wrap(err, "parsing pypi rss feed")
	}
	return feed.Channel.Items, nil
}

// FetchCandidate fetches and normalises one PyPI package by name, per
// §4.1's field-mapping contract.
func (s *PyPISource) FetchCandidate(ctx context.Context, name string) (candidate.PackageCandidate, error) {
	project, err := s.Registry.Project(ctx, name)
	if err != nil {
		return candidate.PackageCandidate{}, err
	}
	return ToCandidate(name, project), nil
}

// ToCandidate maps a raw pypi.Project into a normalised PackageCandidate.
func ToCandidate(name string, project *pypi.Project) candidate.PackageCandidate {
	created := earliestUploadAcrossReleases(project)
	c := candidate.New(ecosystem.PyPI, name, created)
	c.Version = project.Info.Version
	c.Description = project.Info.Description
	c.Homepage, c.Repository = resolveHomepageRepo(project)
	c.RawMetadata = candidate.RawMetadata{PyPI: project}
	return c
}

func earliestUploadAcrossReleases(project *pypi.Project) time.Time {
	var earliest time.Time
	for _, artifacts := range project.Releases {
		for _, a := range artifacts {
			if a.UploadTime.IsZero() {
				continue
			}
			if earliest.IsZero() || a.UploadTime.Before(earliest) {
				earliest = a.UploadTime
			}
		}
	}
	return earliest
}

var repoURLKeys = []string{"Source", "Repository", "Code", "GitHub", "GitLab"}

func resolveHomepageRepo(project *pypi.Project) (homepage, repository string) {
	for _, k := range repoURLKeys {
		if u, ok := project.Info.ProjectURLs[k]; ok && u != "" {
			repository = u
			break
		}
	}
	homepage = project.Info.Homepage
	if homepage == "" {
		homepage = project.Info.ProjectURL
	}
	return homepage, repository
}
