package content

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
)

const maxArtifactBytes = 64 << 20 // 64MiB guard against zip/tar bombs during extraction

// PyPIContentRisk downloads the latest release's sdist and wheel artifacts,
// extracts them to a scoped temporary directory (always removed on return),
// compares their contents, and static-scans the extracted Python source per
// §4.4. It never returns an error to the caller: any failure (network,
// parse, missing artifact) degrades to a neutral score with a reason,
// matching the enrichment best-effort contract.
func PyPIContentRisk(ctx context.Context, reg pypi.Registry, pkgName, version string, patterns []policy.LabeledPattern) (float64, []string) {
	release, err := reg.Release(ctx, pkgName, version)
	if err != nil {
		return 0, []string{"content scan skipped: could not fetch release metadata"}
	}

	var sdist, wheel *pypi.Artifact
	for i := range release.Artifacts {
		a := &release.Artifacts[i]
		switch {
		case strings.HasSuffix(a.Filename, ".tar.gz") && sdist == nil:
			sdist = a
		case strings.HasSuffix(a.Filename, ".whl") && wheel == nil:
			wheel = a
		}
	}
	if sdist == nil && wheel == nil {
		return 0, []string{"content scan skipped: no sdist or wheel artifact found"}
	}

	dir, err := os.MkdirTemp("", "phantomscan-content-*")
	if err != nil {
		return 0, []string{"content scan skipped: could not allocate temp directory"}
	}
	defer os.RemoveAll(dir)

	var sdistFiles, wheelFiles map[string]bool
	var reasons []string

	if sdist != nil {
		rc, err := reg.Artifact(ctx, pkgName, version, sdist.Filename)
		if err == nil {
			defer rc.Close()
			sdistFiles, err = extractTarGz(rc, filepath.Join(dir, "sdist"))
			if err != nil {
				reasons = append(reasons, "sdist extraction failed: "+err.Error())
			}
		}
	}
	if wheel != nil {
		rc, err := reg.Artifact(ctx, pkgName, version, wheel.Filename)
		if err == nil {
			defer rc.Close()
			wheelFiles, err = extractZip(rc, filepath.Join(dir, "wheel"))
			if err != nil {
				reasons = append(reasons, "wheel extraction failed: "+err.Error())
			}
		}
	}

	mismatch := false
	if sdistFiles != nil && wheelFiles != nil {
		for f := range wheelFiles {
			if strings.HasSuffix(f, ".py") && !sdistFiles[f] {
				mismatch = true
				reasons = append(reasons, fmt.Sprintf("Wheel contains %q absent from sdist", f))
			}
		}
	}

	hits := 0
	for _, base := range []string{filepath.Join(dir, "sdist"), filepath.Join(dir, "wheel")} {
		n, scanReasons := scanPythonSource(base, patterns)
		hits += n
		reasons = append(reasons, scanReasons...)
	}
	if setupPy := findSetupPy(filepath.Join(dir, "sdist")); setupPy != "" {
		if b, err := os.ReadFile(setupPy); err == nil {
			s := string(b)
			if strings.Contains(s, "exec(") || strings.Contains(s, "eval(") {
				mismatch = true
				reasons = append(reasons, "setup.py contains exec(/eval(")
			}
		}
	}

	score := float64(hits) / 10
	if score > 1 {
		score = 1
	}
	if mismatch {
		score += 0.5
	}
	if score > 1 {
		score = 1
	}
	return score, reasons
}

func scanPythonSource(root string, patterns []policy.LabeledPattern) (int, []string) {
	hits := 0
	var reasons []string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() || !strings.HasSuffix(path, ".py") {
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		body := string(b)
		rel, _ := filepath.Rel(root, path)
		for _, lp := range patterns {
			if lp.Regexp().MatchString(body) {
				hits++
				reasons = append(reasons, fmt.Sprintf("%s matched in %s", lp.Label, rel))
			}
		}
		return nil
	})
	return hits, reasons
}

func findSetupPy(root string) string {
	p := filepath.Join(root, "setup.py")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	var found string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && info != nil && !info.IsDir() && filepath.Base(path) == "setup.py" && found == "" {
			found = path
		}
		return nil
	})
	return found
}

// extractTarGz safely extracts a gzip-compressed tar stream, rejecting
// entries with absolute paths or parent-directory traversal.
func extractTarGz(r io.Reader, dest string) (map[string]bool, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening gzip stream")
	}
	defer gz.Close()
	tr := tar.NewReader(gz)
	files := make(map[string]bool)
	var total int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return files, errors.Wrap(err, "reading tar entry")
		}
		name, err := safeJoin(dest, hdr.Name)
		if err != nil {
			continue // reject and skip, do not abort the whole scan
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			os.MkdirAll(name, 0o755)
		case tar.TypeReg:
			os.MkdirAll(filepath.Dir(name), 0o755)
			total += hdr.Size
			if total > maxArtifactBytes {
				return files, errors.New("artifact exceeds extraction size guard")
			}
			f, err := os.Create(name)
			if err != nil {
				continue
			}
			io.Copy(f, io.LimitReader(tr, hdr.Size))
			f.Close()
			files[normalizeEntry(hdr.Name)] = true
		}
	}
	return files, nil
}

// extractZip safely extracts a zip archive (wheel format), rejecting
// entries with absolute paths or parent-directory traversal.
func extractZip(r io.Reader, dest string) (map[string]bool, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxArtifactBytes))
	if err != nil {
		return nil, errors.Wrap(err, "reading wheel body")
	}
	zr, err := zip.NewReader(strings.NewReader(string(b)), int64(len(b)))
	if err != nil {
		return nil, errors.Wrap(err, "opening zip stream")
	}
	files := make(map[string]bool)
	for _, f := range zr.File {
		name, err := safeJoin(dest, f.Name)
		if err != nil {
			continue
		}
		if f.FileInfo().IsDir() {
			os.MkdirAll(name, 0o755)
			continue
		}
		os.MkdirAll(filepath.Dir(name), 0o755)
		rc, err := f.Open()
		if err != nil {
			continue
		}
		out, err := os.Create(name)
		if err != nil {
			rc.Close()
			continue
		}
		io.Copy(out, io.LimitReader(rc, maxArtifactBytes))
		out.Close()
		rc.Close()
		files[normalizeEntry(f.Name)] = true
	}
	return files, nil
}

func safeJoin(base, name string) (string, error) {
	clean := filepath.Clean(name)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", errors.Errorf("unsafe archive entry: %q", name)
	}
	joined := filepath.Join(base, clean)
	if !strings.HasPrefix(joined, filepath.Clean(base)+string(os.PathSeparator)) {
		return "", errors.Errorf("archive entry escapes extraction root: %q", name)
	}
	return joined, nil
}

func normalizeEntry(name string) string {
	return strings.TrimPrefix(filepath.ToSlash(name), "/")
}
