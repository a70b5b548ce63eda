package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/pkg/score"
)

// FileStore is the directory-tree persistence layer under a root directory:
// feeds/{date}/, raw/{date}/, processed/{date}/.
type FileStore struct {
	Root string
}

func (fs *FileStore) feedDir(date string) string      { return filepath.Join(fs.Root, "feeds", date) }
func (fs *FileStore) rawDir(date string) string        { return filepath.Join(fs.Root, "raw", date) }
func (fs *FileStore) processedDir(date string) string   { return filepath.Join(fs.Root, "processed", date) }

// writeAtomic writes b to a temp file in the same directory as path, then
// renames it into place, so readers never observe a half-written file.
func writeAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// WriteFeed writes topN.json, topN.csv, and feed.md for the day.
func (fs *FileStore) WriteFeed(feed score.Feed) error {
	dir := fs.feedDir(feed.Date)

	j, err := json.MarshalIndent(feed, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshalling feed json")
	}
	if err := writeAtomic(filepath.Join(dir, "topN.json"), j); err != nil {
		return errors.Wrap(err, "writing topN.json")
	}

	var csvBuf strings.Builder
	w := csv.NewWriter(&csvBuf)
	w.Write([]string{"ecosystem", "name", "version", "total", "created_at", "scored_at"})
	for _, item := range feed.Items {
		w.Write([]string{
			string(item.Ecosystem), item.Name, item.Version,
			strconv.FormatFloat(item.Total, 'f', 4, 64),
			item.CreatedAt.Format(time.RFC3339), item.ScoredAt.Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := writeAtomic(filepath.Join(dir, "topN.csv"), []byte(csvBuf.String())); err != nil {
		return errors.Wrap(err, "writing topN.csv")
	}

	if err := writeAtomic(filepath.Join(dir, "feed.md"), []byte(renderMarkdown(feed))); err != nil {
		return errors.Wrap(err, "writing feed.md")
	}
	return nil
}

func renderMarkdown(feed score.Feed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# PhantomScan feed for %s\n\n", feed.Date)
	fmt.Fprintf(&b, "Generated at %s\n\n", feed.GeneratedAt.Format(time.RFC3339))
	for i, item := range feed.Items {
		fmt.Fprintf(&b, "%d. **%s** (`%s`) — total %.3f\n", i+1, item.Key(), item.PURL(), item.Total)
		for _, reason := range item.Breakdown.Reasons {
			fmt.Fprintf(&b, "   - %s\n", reason)
		}
	}
	return b.String()
}

// WriteWatchlist writes watchlist.json and watchlist.csv for the day, only
// when entries is non-empty.
func (fs *FileStore) WriteWatchlist(date string, entries []score.WatchlistEntry) error {
	if len(entries) == 0 {
		return nil
	}
	dir := fs.feedDir(date)

	j, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshalling watchlist json")
	}
	if err := writeAtomic(filepath.Join(dir, "watchlist.json"), j); err != nil {
		return errors.Wrap(err, "writing watchlist.json")
	}

	var csvBuf strings.Builder
	w := csv.NewWriter(&csvBuf)
	w.Write([]string{"ecosystem", "name", "not_found_reason", "first_seen_at"})
	for _, e := range entries {
		w.Write([]string{e.Ecosystem, e.Name, string(e.NotFoundReason), e.FirstSeenAt.Format(time.RFC3339)})
	}
	w.Flush()
	return writeAtomic(filepath.Join(dir, "watchlist.csv"), []byte(csvBuf.String()))
}

// WriteRaw writes one raw candidate per line under raw/{date}/{ecosystem}.jsonl.
func (fs *FileStore) WriteRaw(date, eco string, lines [][]byte) error {
	var buf strings.Builder
	for _, l := range lines {
		buf.Write(l)
		buf.WriteByte('\n')
	}
	return writeAtomic(filepath.Join(fs.rawDir(date), eco+".jsonl"), []byte(buf.String()))
}

// WriteProcessed writes every scored candidate as indented JSON to
// processed/{date}/scored.json.
func (fs *FileStore) WriteProcessed(date string, scored []score.ScoredCandidate) error {
	j, err := json.MarshalIndent(scored, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshalling processed scored dump")
	}
	return writeAtomic(filepath.Join(fs.processedDir(date), "scored.json"), j)
}

// Retain removes feeds/raw/processed directories older than retentionDays.
func (fs *FileStore) Retain(retentionDays int, now time.Time) error {
	cutoff := now.AddDate(0, 0, -retentionDays)
	for _, sub := range []string{"feeds", "raw", "processed"} {
		root := filepath.Join(fs.Root, sub)
		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "listing %s", sub)
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			d, err := time.Parse("2006-01-02", e.Name())
			if err != nil {
				continue
			}
			if d.Before(cutoff) {
				os.RemoveAll(filepath.Join(root, e.Name()))
			}
		}
	}
	return nil
}
