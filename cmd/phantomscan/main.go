// Command phantomscan is the thin CLI adapter over the detection engine's
// public operations (§6): fetch, score, feed, run-all, analyze.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/internal/cache"
	"github.com/phantomscan/phantomscan/internal/httpx"
	"github.com/phantomscan/phantomscan/pkg/corpus"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/engine"
	"github.com/phantomscan/phantomscan/pkg/existence"
	"github.com/phantomscan/phantomscan/pkg/pipeline"
	"github.com/phantomscan/phantomscan/pkg/policy"
	"github.com/phantomscan/phantomscan/pkg/registry/npm"
	"github.com/phantomscan/phantomscan/pkg/registry/pypi"
	"github.com/phantomscan/phantomscan/pkg/scorer"
	"github.com/phantomscan/phantomscan/pkg/source"
	"github.com/phantomscan/phantomscan/pkg/store"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitInterrupt = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: phantomscan <fetch|score|feed|run-all|analyze> [flags]")
		return exitFailure
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "fetch":
		err = runFetch(ctx, rest)
	case "score":
		err = runScore(ctx, rest)
	case "feed":
		err = runFeed(ctx, rest)
	case "run-all":
		err = runRunAll(ctx, rest)
	case "analyze":
		err = runAnalyze(ctx, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return exitFailure
	}

	if err != nil {
		if ctx.Err() != nil {
			log.Printf("phantomscan: interrupted: %v", err)
			return exitInterrupt
		}
		log.Print(errors.Wrap(err, "phantomscan"))
		return exitFailure
	}
	return exitOK
}

type commonFlags struct {
	policyPath string
	corpusPath string
	dataDir    string
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.policyPath, "policy", "", "path to policy YAML (defaults to built-in policy)")
	fs.StringVar(&c.corpusPath, "corpus", "", "path to known-hallucination corpus YAML")
	fs.StringVar(&c.dataDir, "data-dir", "./phantomscan-data", "root directory for persisted state")
	return c
}

func isOffline() bool {
	v := strings.ToLower(os.Getenv("PHANTOMSCAN_OFFLINE"))
	return v == "1" || v == "true"
}

func loadPolicy(path string) (*policy.Policy, error) {
	if path == "" {
		return policy.Default(), nil
	}
	return policy.Load(path)
}

func loadCorpus(path string) (*corpus.Corpus, error) {
	if path == "" {
		return corpus.Empty(), nil
	}
	return corpus.Load(path)
}

// buildEngine wires every collaborator as a plain struct literal, no DI
// framework.
func buildEngine(p *policy.Policy, corp *corpus.Corpus, dataDir string, offline bool) (*engine.Engine, func() error, error) {
	base := &httpx.WithUserAgent{BasicClient: http.DefaultClient, UserAgent: p.UserAgent}
	cached := httpx.NewCachedClient(base, &cache.CoalescingMemoryCache{})

	pypiReg := pypi.HTTPRegistry{Client: cached}
	npmReg := npm.HTTPRegistry{Client: cached}

	tabular, err := store.Open(filepath.Join(dataDir, "phantomscan.db"))
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening tabular store")
	}
	files := &store.FileStore{Root: dataDir}

	sc := &scorer.Scorer{
		Policy:  p,
		Corpus:  corp,
		Client:  cached,
		PyPI:    pypiReg,
		NPM:     npmReg,
		Offline: offline,
	}
	prober := &existence.Prober{Client: cached, UserAgent: p.UserAgent, Offline: offline}
	sources := map[ecosystem.Ecosystem]source.Source{
		ecosystem.PyPI: &source.PyPISource{Client: cached, Registry: pypiReg, UserAgent: p.UserAgent},
		ecosystem.NPM:  &source.NPMSource{Client: cached, Registry: npmReg, UserAgent: p.UserAgent},
	}
	orch := &pipeline.Orchestrator{
		Policy:   p,
		Sources:  sources,
		Prober:   prober,
		Scorer:   sc,
		Tabular:  tabular,
		Files:    files,
		SeedPath: filepath.Join(dataDir, "seed.ndjson"),
		Offline:  offline,
	}

	e := &engine.Engine{
		Policy:       p,
		Corpus:       corp,
		Scorer:       sc,
		Orchestrator: orch,
		Tabular:      tabular,
		Files:        files,
	}
	return e, tabular.Close, nil
}

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}
