package source

import (
	"context"
	"log"
	"time"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
)

// Source exposes FetchRecent for one ecosystem: a finite, non-restartable
// candidate stream. Exhaustion is normal.
type Source interface {
	DiscoverRecent(ctx context.Context, limit int) ([]string, error)
	FetchCandidate(ctx context.Context, name string) (candidate.PackageCandidate, error)
}

const defaultRetries = 3

// FetchRecent drives discovery then per-name fetch with exponential
// back-off (2^k seconds, default 3 attempts) on the discovery call, per
// §4.1. A failure to parse or fetch one candidate is logged and skipped,
// never fatal; transport failure on discovery (after retries) yields an
// empty sequence, and the caller is expected to fall back to the offline
// seed if every ecosystem's discovery failed.
func FetchRecent(ctx context.Context, eco ecosystem.Ecosystem, s Source, limit int) []candidate.PackageCandidate {
	names, err := discoverWithRetry(ctx, s, limit)
	if err != nil {
		log.Printf("phantomscan: %s discovery failed after retries: %v", eco, err)
		return nil
	}
	out := make([]candidate.PackageCandidate, 0, len(names))
	for _, name := range names {
		c, err := s.FetchCandidate(ctx, name)
		if err != nil {
			log.Printf("phantomscan: %s: skipping %q: %v", eco, name, err)
			continue
		}
		out = append(out, c)
	}
	return out
}

func discoverWithRetry(ctx context.Context, s Source, limit int) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < defaultRetries; attempt++ {
		names, err := s.DiscoverRecent(ctx, limit)
		if err == nil {
			return names, nil
		}
		lastErr = err
		delay := time.Duration(1<<uint(attempt)) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
