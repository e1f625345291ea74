package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/trustmatch/internal/simulate"
	"github.com/okian/trustmatch/pkg/logger"
)

const (
	defaultSubjects    = 200
	defaultSpammers    = 10
	defaultBursters    = 5
	defaultDuplicates  = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultDrain       = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		subjects   = flag.Int("subjects", defaultSubjects, "Number of well-behaved subjects")
		spammers   = flag.Int("spammers", defaultSpammers, "Number of subjects spamming one target")
		bursters   = flag.Int("bursters", defaultBursters, "Number of new accounts sending bursts")
		duplicates = flag.Int("duplicates", defaultDuplicates, "Number of replayed events")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drain      = flag.Duration("drain", defaultDrain, "How long to wait for the queue to drain")
		seed       = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
		outputFile = flag.String("output", "", "Write generated activity to this file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), simulate.Usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	closer, err := simulate.SetupLogging(*logFile, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to setup logging:", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:      *baseURL,
		Subjects:     *subjects,
		Spammers:     *spammers,
		Bursters:     *bursters,
		Duplicates:   *duplicates,
		Workers:      *workers,
		Timeout:      *timeout,
		DrainTimeout: *drain,
		Seed:         *seed,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		cancel()
		stop()
		_ = closer.Close()
		os.Exit(1)
	}
}
