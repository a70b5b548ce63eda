package enrich

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Masterminds/semver"

	"github.com/phantomscan/phantomscan/pkg/registry/npm"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
)

// maxWheelInspectBytes bounds how much of a wheel we'll buffer in memory to
// check for a console_scripts entry point; wheels larger than this are
// treated as "unknown" rather than risking excessive memory use.
const maxWheelInspectBytes = 32 << 20

// semverPrecedes reports whether a precedes b under semver ordering. Either
// side failing to parse (npm/PyPI both tolerate non-semver versions) falls
// back to true so the upload-time window is the only gate, matching prior
// behavior for non-semver releases.
func semverPrecedes(a, b string) bool {
	va, err := semver.NewVersion(a)
	if err != nil {
		return true
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return true
	}
	return va.LessThan(vb)
}

var npmReservedTimeKeys = map[string]bool{"created": true, "modified": true}

// NPMVersionFlip implements §4.5/§8-scenario-5: within a rolling window
// ending at the latest publish time, find the most recent prior version; if
// the latest version has install scripts and that prior version did not,
// the package just "flipped" from benign to risky.
func NPMVersionFlip(pkg *npm.NPMPackage, windowDays int) (float64, []string) {
	if pkg == nil {
		return 0, nil
	}
	latestVersion := pkg.DistTags.Latest
	if latestVersion == "" {
		return 0, nil
	}
	latestTime, ok := pkg.UploadTimes[latestVersion]
	if !ok {
		return 0, nil
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	var priorVersion string
	var priorTime time.Time
	for v, t := range pkg.UploadTimes {
		if npmReservedTimeKeys[v] || v == latestVersion {
			continue
		}
		if t.After(latestTime) {
			continue
		}
		if latestTime.Sub(t) > window {
			continue
		}
		if t.After(priorTime) {
			priorTime = t
			priorVersion = v
		}
	}
	if priorVersion == "" || !semverPrecedes(priorVersion, latestVersion) {
		return 0, nil
	}

	latestHasScripts := hasInstallScripts(pkg.Versions[latestVersion].Scripts)
	priorHasScripts := hasInstallScripts(pkg.Versions[priorVersion].Scripts)
	if latestHasScripts && !priorHasScripts {
		return 0.7, []string{fmt.Sprintf("Version flip: %s had no install scripts, %s added them", priorVersion, latestVersion)}
	}
	return 0, nil
}

func hasInstallScripts(scripts map[string]string) bool {
	for _, k := range []string{"install", "preinstall", "postinstall"} {
		if _, ok := scripts[k]; ok {
			return true
		}
	}
	return false
}

// PyPIVersionFlip implements §4.5: find the most recent prior release
// within the window; risk rises if dependency count jumps, if console-script
// entry points newly appear, or if the project-URL set changed materially.
// Capped at 0.7.
func PyPIVersionFlip(ctx context.Context, reg pypi.Registry, pkgName string, project *pypi.Project, windowDays, depIncreaseThreshold int) (float64, []string) {
	if project == nil {
		return 0, nil
	}
	latestVersion := project.Info.Version
	latestTime, ok := latestUploadTime(project, latestVersion)
	if !ok {
		return 0, nil
	}
	window := time.Duration(windowDays) * 24 * time.Hour

	var priorVersion string
	var priorTime time.Time
	for v, artifacts := range project.Releases {
		if v == latestVersion || len(artifacts) == 0 {
			continue
		}
		t := earliestUpload(artifacts)
		if t.IsZero() || t.After(latestTime) || latestTime.Sub(t) > window {
			continue
		}
		if t.After(priorTime) {
			priorTime = t
			priorVersion = v
		}
	}
	if priorVersion == "" || !semverPrecedes(priorVersion, latestVersion) {
		return 0, nil
	}

	priorRelease, err := reg.Release(ctx, pkgName, priorVersion)
	if err != nil {
		return 0, nil
	}

	var score float64
	var reasons []string

	depDelta := len(project.Info.RequiresDist) - len(priorRelease.Info.RequiresDist)
	if depDelta >= depIncreaseThreshold {
		score = max(score, 0.6)
		reasons = append(reasons, fmt.Sprintf("Dependency count increased by %d between %s and %s", depDelta, priorVersion, latestVersion))
	}

	if urlSetChanged(project.Info.ProjectURLs, priorRelease.Info.ProjectURLs) {
		score = max(score, 0.5)
		reasons = append(reasons, fmt.Sprintf("Project URLs changed between %s and %s", priorVersion, latestVersion))
	}

	latestHasConsoleScripts := pypiHasConsoleScripts(ctx, reg, pkgName, latestVersion, project.Releases[latestVersion])
	priorHasConsoleScripts := pypiHasConsoleScripts(ctx, reg, pkgName, priorVersion, project.Releases[priorVersion])
	if latestHasConsoleScripts && !priorHasConsoleScripts {
		score = max(score, 0.5)
		reasons = append(reasons, fmt.Sprintf("Console-script entry points newly added between %s and %s", priorVersion, latestVersion))
	}

	if score > 0.7 {
		score = 0.7
	}
	return score, reasons
}

func urlSetChanged(latest, prior map[string]string) bool {
	if len(latest) != len(prior) {
		return true
	}
	for k, v := range latest {
		if prior[k] != v {
			return true
		}
	}
	return false
}

func latestUploadTime(project *pypi.Project, version string) (time.Time, bool) {
	artifacts, ok := project.Releases[version]
	if !ok || len(artifacts) == 0 {
		return time.Time{}, false
	}
	return earliestUpload(artifacts), true
}

func earliestUpload(artifacts []pypi.Artifact) time.Time {
	var earliest time.Time
	for _, a := range artifacts {
		if earliest.IsZero() || a.UploadTime.Before(earliest) {
			earliest = a.UploadTime
		}
	}
	return earliest
}

// pypiHasConsoleScripts reports whether the wheel artifact for pkgName at
// version declares a non-empty [console_scripts] section in its
// entry_points.txt. A release with no wheel, or one that fails to fetch or
// parse, reports false rather than erroring, matching this package's
// best-effort contract.
func pypiHasConsoleScripts(ctx context.Context, reg pypi.Registry, pkgName, version string, artifacts []pypi.Artifact) bool {
	var wheelFilename string
	for _, a := range artifacts {
		if strings.HasSuffix(a.Filename, ".whl") {
			wheelFilename = a.Filename
			break
		}
	}
	if wheelFilename == "" {
		return false
	}
	rc, err := reg.Artifact(ctx, pkgName, version, wheelFilename)
	if err != nil {
		return false
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, maxWheelInspectBytes+1))
	if err != nil || len(body) > maxWheelInspectBytes {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, "entry_points.txt") {
			continue
		}
		rc2, err := f.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc2)
		rc2.Close()
		if err != nil {
			continue
		}
		if hasConsoleScriptsSection(string(content)) {
			return true
		}
	}
	return false
}

// hasConsoleScriptsSection reports whether entry_points.txt content
// (standard setuptools INI format) declares at least one entry under
// [console_scripts].
func hasConsoleScriptsSection(text string) bool {
	inSection := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			inSection = strings.EqualFold(trimmed, "[console_scripts]")
			continue
		}
		if inSection && strings.Contains(trimmed, "=") {
			return true
		}
	}
	return false
}
