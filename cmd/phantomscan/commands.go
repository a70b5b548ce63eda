package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/phantomscan/phantomscan/pkg/candidate"
	"github.com/phantomscan/phantomscan/pkg/ecosystem"
	"github.com/phantomscan/phantomscan/pkg/engine"
	"github.com/phantomscan/phantomscan/pkg/score"
)

func parseEcosystems(s string) ([]ecosystem.Ecosystem, error) {
	if s == "" {
		return ecosystem.All(), nil
	}
	var out []ecosystem.Ecosystem
	for _, tok := range strings.Split(s, ",") {
		eco, ok := ecosystem.Parse(strings.TrimSpace(tok))
		if !ok {
			return nil, errors.Errorf("unknown ecosystem %q", tok)
		}
		out = append(out, eco)
	}
	return out, nil
}

func setup(common *commonFlags) (*engine.Engine, func() error, error) {
	p, err := loadPolicy(common.policyPath)
	if err != nil {
		return nil, nil, err
	}
	p.Offline = isOffline()
	corp, err := loadCorpus(common.corpusPath)
	if err != nil {
		return nil, nil, err
	}
	return buildEngine(p, corp, common.dataDir, p.Offline)
}

func printFeed(f score.Feed, top int) {
	items := f.Items
	if top > 0 && len(items) > top {
		items = items[:top]
	}
	for i, item := range items {
		fmt.Printf("%d. %s:%s total=%.3f\n", i+1, item.Ecosystem, item.Name, item.Total)
	}
}

func runFetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	common := bindCommon(fs)
	ecosystems := fs.String("ecosystems", "", "comma-separated ecosystems (default: all)")
	limit := fs.Int("limit", 100, "max candidates per ecosystem")
	date := fs.String("date", today(), "date to persist raw candidates under (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ecos, err := parseEcosystems(*ecosystems)
	if err != nil {
		return err
	}
	e, closeFn, err := setup(common)
	if err != nil {
		return err
	}
	defer closeFn()

	_, _, err = e.RunAll(ctx, ecos, *limit, *date, e.Policy.TopN)
	return err
}

func runScore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	common := bindCommon(fs)
	date := fs.String("date", today(), "date to persist a fresh fetch-and-score run under (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, closeFn, err := setup(common)
	if err != nil {
		return err
	}
	defer closeFn()

	_, _, err = e.RunAll(ctx, ecosystem.All(), 0, *date, e.Policy.TopN)
	return err
}

func runFeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ExitOnError)
	common := bindCommon(fs)
	date := fs.String("date", "", "date to read (default: latest)")
	top := fs.Int("top", 0, "limit printed entries (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	e, closeFn, err := setup(common)
	if err != nil {
		return err
	}
	defer closeFn()

	var f score.Feed
	if *date == "" {
		f, err = e.GetLatestFeed(ctx)
	} else {
		f, err = e.GetFeed(ctx, *date)
	}
	if err != nil {
		return err
	}
	printFeed(f, *top)
	return nil
}

func runRunAll(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run-all", flag.ExitOnError)
	common := bindCommon(fs)
	ecosystems := fs.String("ecosystems", "", "comma-separated ecosystems (default: all)")
	limit := fs.Int("limit", 100, "max candidates per ecosystem")
	top := fs.Int("top", 0, "override policy top-N")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ecos, err := parseEcosystems(*ecosystems)
	if err != nil {
		return err
	}
	e, closeFn, err := setup(common)
	if err != nil {
		return err
	}
	defer closeFn()

	topN := e.Policy.TopN
	if *top > 0 {
		topN = *top
	}
	feed, watchlist, err := e.RunAll(ctx, ecos, *limit, today(), topN)
	if err != nil {
		return err
	}
	fmt.Printf("phantomscan: %d scored, %d watchlisted\n", len(feed.Items), len(watchlist))
	return nil
}

// fetchOne fetches a single named candidate through the same source adapter
// run-all uses, for ad-hoc analysis of one package outside a full run.
func fetchOne(ctx context.Context, e *engine.Engine, eco ecosystem.Ecosystem, name string) (candidate.PackageCandidate, error) {
	src, ok := e.Orchestrator.Sources[eco]
	if !ok {
		return candidate.PackageCandidate{}, errors.Errorf("no source wired for ecosystem %q", eco)
	}
	return src.FetchCandidate(ctx, name)
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	common := bindCommon(fs)
	eco := fs.String("ecosystem", "", "ecosystem (pypi|npm)")
	name := fs.String("name", "", "package name")
	alternatives := fs.Bool("alternatives", false, "also print suggested canonical alternatives")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *eco == "" || *name == "" {
		return errors.New("--ecosystem and --name are required")
	}
	ecoVal, ok := ecosystem.Parse(*eco)
	if !ok {
		return errors.Errorf("unknown ecosystem %q", *eco)
	}
	e, closeFn, err := setup(common)
	if err != nil {
		return err
	}
	defer closeFn()

	c, err := fetchOne(ctx, e, ecoVal, *name)
	if err != nil {
		return err
	}
	sc, err := e.ScorePackage(ctx, c)
	if err != nil {
		return err
	}
	fmt.Printf("%s:%s total=%.3f\n", sc.Ecosystem, sc.Name, sc.Total)
	for _, reason := range sc.Breakdown.Reasons {
		fmt.Println("  -", reason)
	}
	if *alternatives {
		for _, s := range e.SuggestAlternatives(ecoVal, *name) {
			fmt.Println("  alt:", engine.DescribeSuggestion(s))
		}
	}
	return nil
}
