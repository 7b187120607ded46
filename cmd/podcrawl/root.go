package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/northfleet/podcrawl/internal/config"
	"github.com/northfleet/podcrawl/internal/coordinator"
	"github.com/northfleet/podcrawl/internal/logging"
	"github.com/northfleet/podcrawl/internal/orchestrator"
	"github.com/northfleet/podcrawl/internal/podstore"
)

// Exit codes, per spec.md §6.
const (
	exitClean          = 0
	exitConfigError    = 2
	exitRuntimeFailure = 3
)

var (
	configPath     string
	resume         bool
	seededOnly     bool
	maxPages       int64
	maxDurationSec int64
	logLevel       string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "podcrawl <seed-file> <operator-contact-email>",
		Short: "Single-host, multi-pod web crawler",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], args[1])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "YAML configuration file")
	cmd.Flags().BoolVar(&resume, "resume", false, "skip seed ingest and resume from existing pod state")
	cmd.Flags().BoolVar(&seededOnly, "seeded-urls-only", false, "fetch only URLs on domains listed in the seed file")
	cmd.Flags().Int64Var(&maxPages, "max-pages", 0, "stop after crawling this many pages (0 = unbounded)")
	cmd.Flags().Int64Var(&maxDurationSec, "max-duration", 0, "stop after this many seconds (0 = unbounded)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if ce, ok := err.(*configError); ok {
			fmt.Fprintln(os.Stderr, ce.Error())
			return exitConfigError
		}
		fmt.Fprintln(os.Stderr, err.Error())
		return exitRuntimeFailure
	}
	return exitClean
}

// configError marks a failure that should map to exit code 2.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func wrapConfigErr(err error) error {
	if err == nil {
		return nil
	}
	return &configError{err: err}
}

func run(ctx context.Context, seedFile, contactEmail string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return wrapConfigErr(fmt.Errorf("podcrawl: %w", err))
	}

	log, err := logging.New(logging.Config{Level: logLevel})
	if err != nil {
		return wrapConfigErr(fmt.Errorf("podcrawl: build logger: %w", err))
	}
	defer log.Sync() //nolint:errcheck

	log.Info("starting podcrawl",
		logging.Int("pods", len(cfg.Pods)),
		logging.Int("coordination_pod", cfg.GlobalCoordinationPod),
	)

	opts := orchestrator.Options{
		ContactEmail:   contactEmail,
		SeededURLsOnly: seededOnly,
		Stop: coordinator.Config{
			MaxPages:    maxPages,
			MaxDuration: time.Duration(maxDurationSec) * time.Second,
		},
	}

	orch, err := orchestrator.New(cfg, opts, openRedisStore, log)
	if err != nil {
		return fmt.Errorf("podcrawl: build orchestrator: %w", err)
	}

	if resume {
		if err := orch.Resume(ctx); err != nil {
			return fmt.Errorf("podcrawl: %w", err)
		}
		log.Info("resumed from persisted pod state")
	} else {
		urls, err := readSeedFile(seedFile)
		if err != nil {
			return wrapConfigErr(fmt.Errorf("podcrawl: read seed file: %w", err))
		}
		result, err := orch.Seed(ctx, urls)
		if err != nil {
			return fmt.Errorf("podcrawl: seed frontier: %w", err)
		}
		log.Info("seeded frontier",
			logging.Int("admitted", result.Admitted),
			logging.Int("duplicates", result.Duplicates),
		)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orch.Run(runCtx); err != nil {
		return fmt.Errorf("podcrawl: %w", err)
	}

	pages, err := orch.Coordinator().PagesCrawled(context.Background())
	if err == nil {
		log.Info("crawl finished", logging.Int64("pages_crawled", pages))
	}
	return nil
}

// openRedisStore adapts orchestrator.StoreOpener to a real Redis-backed
// pod store, parsing kv_url the way go-redis expects
// (redis://[:password@]host:port/db).
func openRedisStore(kvURL string) (podstore.Store, error) {
	opts, err := redis.ParseURL(kvURL)
	if err != nil {
		return nil, fmt.Errorf("parse kv_url %q: %w", kvURL, err)
	}
	return podstore.NewRedisStore(podstore.Config{
		Address:  opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// readSeedFile reads one URL per line, skipping blanks and #-comments.
func readSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}
