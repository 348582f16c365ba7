package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/castlab/enginerelay/internal/api"
	"github.com/castlab/enginerelay/internal/config"
	"github.com/castlab/enginerelay/internal/engine"
	"github.com/castlab/enginerelay/internal/hub"
	"github.com/castlab/enginerelay/internal/log"
	"github.com/castlab/enginerelay/internal/metrics"
	"github.com/castlab/enginerelay/internal/ongoing"
	"github.com/castlab/enginerelay/internal/registry"
	"github.com/castlab/enginerelay/internal/storage"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "check":
		return runCheck(args)
	case "version", "--version":
		fmt.Printf("enginerelay %s (%s)\n", version, gitCommit)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: enginerelay <command> [flags]

Commands:
  start    Run the relay service
  check    Validate the configuration file (optionally pin its checksum)
  version  Print version information
`)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open registry database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	store := registry.New(db)

	// One hub and one tracker for the process lifetime, shared by every
	// connection through the API server.
	jobs := hub.New[engine.ProviderSelector, *api.Job]()
	inFlight := ongoing.New[engine.JobID, *api.Job]()
	collector := metrics.New(jobs.Len, inFlight.Len)

	server := api.New(api.Config{Listen: cfg.API.Listen}, store, jobs, inFlight, collector, log.WithComponent("api"))

	sweepInterval := cfg.Service.SweepInterval.Std()
	sweepLogger := log.WithComponent("sweep")
	go jobs.Sweep(ctx, sweepInterval, func(n int) {
		collector.RecordEvicted(n)
		sweepLogger.Info("evicted queued jobs", "count", n)
	})
	go inFlight.Sweep(ctx, sweepInterval, func(n int) {
		collector.RecordEvicted(n)
		sweepLogger.Info("evicted in-flight jobs", "count", n)
	})

	logger.Info("relay starting",
		"name", cfg.Service.Name,
		"listen", cfg.API.Listen,
		"sweep_interval", sweepInterval.String(),
	)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", "error", err)
		return 1
	}
	logger.Info("relay stopped")
	return 0
}

func runCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	pin := fs.Bool("pin", false, "Write the checksum pin file after validating")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "check requires --config")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	fmt.Printf("config ok: service=%s listen=%s state=%s sweep=%s\n",
		cfg.Service.Name, cfg.API.Listen, cfg.State.Path, cfg.Service.SweepInterval.Std())

	if *pin {
		hash, err := config.Pin(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Pin error: %v\n", err)
			return 1
		}
		fmt.Printf("pinned %s (%s)\n", config.ChecksumPath(*configPath), hash)
	}
	return 0
}
