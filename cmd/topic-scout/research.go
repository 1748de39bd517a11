// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/topic-scout/internal/cache"
	"github.com/pdiddy/topic-scout/internal/metrics"
	"github.com/pdiddy/topic-scout/internal/ratelimit"
	"github.com/pdiddy/topic-scout/internal/research"
	"github.com/pdiddy/topic-scout/internal/scoring"
	"github.com/pdiddy/topic-scout/internal/source"
	"github.com/pdiddy/topic-scout/internal/store"
	"github.com/pdiddy/topic-scout/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [topic-id]",
	Short: "Run the research aggregation pipeline for a topic",
	Long: `Research queries every configured provider once per sub-topic, merges
results that describe the same program or keyword across sub-topics,
scores each merged entity, and stores the outcome. Sub-topic failures
are reported but do not abort the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().Bool("hard-abort", false, "discard partial progress if the run is interrupted")
	researchCmd.Flags().Bool("verbose", false, "log provider calls to stderr")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Providers) == 0 {
		return fmt.Errorf("no providers configured: add a providers list to the config file")
	}

	hardAbort, _ := cmd.Flags().GetBool("hard-abort")
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger := slog.New(slog.DiscardHandler)
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	st, err := store.New(cfg.Research.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		return err
	}

	runner := buildRunner(cfg, st, engine, logger)

	// Interrupt propagates as cancellation; received results still land
	// unless --hard-abort was given.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	report, err := runner.Run(ctx, args[0], research.Options{HardAbort: hardAbort}, os.Stderr)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

// buildRunner assembles the searcher chain for every configured provider:
// adapter → rate-limited client → cache.
func buildRunner(cfg types.Config, st *store.Store, engine scoring.Engine, logger *slog.Logger) *research.Runner {
	m := metrics.New(prometheus.NewRegistry())
	responseCache := cache.New(cfg.Cache, m)
	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}

	var searchers []source.Searcher
	for _, pc := range cfg.Providers {
		var adapter source.Searcher
		switch pc.Kind {
		case types.KindKeyword:
			adapter = &source.KeywordStatsProvider{Client: httpClient, Config: pc}
		default:
			adapter = &source.DirectoryProvider{Client: httpClient, Config: pc}
		}
		limited := ratelimit.New(adapter, pc, logger, m)
		searchers = append(searchers, cache.Wrap(limited, responseCache))
	}

	return research.NewRunner(st, searchers, engine, cfg.Research, logger, m)
}

func printReport(report types.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Kind", "Name", "Sub-topics", "Relevance", "Priority"})
	for i, ent := range report.Entities {
		priority := ""
		if ent.Kind == types.KindKeyword {
			priority = fmt.Sprintf("%.2f", ent.Priority)
		}
		t.AppendRow(table.Row{
			i + 1, ent.Kind, ent.Name, len(ent.SubTopics),
			fmt.Sprintf("%.3f", ent.Relevance), priority,
		})
	}
	t.Render()

	fmt.Printf("\n%d merged entities (%d duplicates folded)\n", len(report.Entities), report.DupsFolded)
	if failed := report.FailedSubTopics(); len(failed) > 0 {
		fmt.Printf("%d sub-topic(s) failed: %v\n", len(failed), failed)
	}
}
