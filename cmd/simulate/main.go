package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/leaguemaker/internal/simulate"
	"github.com/okian/leaguemaker/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := simulate.DefaultConfig()
	var logLevel string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play generated matches against a League Maker service",
		Long: `simulate opens sessions, drives the clock, records events (re-sending
some of them to exercise deduplication), finishes and persists each match,
then checks the scores, event listings, careers and scorers ranking the
service reports against what was played.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithLevel(logLevel)); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, err := simulate.Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.StringVar(&cfg.RunID, "run-id", "", "prefix for match and player ids (random when empty)")
	f.IntVarP(&cfg.Matches, "matches", "m", cfg.Matches, "number of matches to play")
	f.IntVarP(&cfg.EventsPerMatch, "events", "e", cfg.EventsPerMatch, "events recorded per match")
	f.IntVar(&cfg.SquadSize, "squad", cfg.SquadSize, "players per side, one of whom is absent")
	f.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "matches played concurrently")
	f.Uint64Var(&cfg.Seed, "seed", 0, "generator seed (0 picks one)")
	f.Float64Var(&cfg.ResendRate, "resend", cfg.ResendRate, "share of events re-sent with the same request id")
	f.BoolVar(&cfg.Persist, "persist", cfg.Persist, "persist matches and check stored records, careers and scorers")
	f.DurationVar(&cfg.PersistWait, "persist-wait", cfg.PersistWait, "how long to wait for a stored record")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.StringVarP(&cfg.OutputFile, "output", "o", "", "write the generated scripts to this JSON file")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every request")
	f.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	cmd.SetContext(context.Background())
	return cmd
}
