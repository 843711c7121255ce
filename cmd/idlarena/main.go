// Command idlarena runs the staking-arena simulator. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and starts the
// application in the configured mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/protocolsim/idlarena/internal/app"
	"github.com/protocolsim/idlarena/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override operating mode (sim, replay, server, full)")
	rounds := flag.Int("rounds", 0, "override number of rounds")
	seed := flag.Int64("seed", 0, "override RNG seed (0 keeps config value)")
	roundDelay := flag.Duration("round-delay", -1, "override wall-clock delay between rounds")
	startingBalance := flag.Int64("starting-balance", 0, "override per-agent starting balance")
	replay := flag.String("replay", "", "replay the given run ID and verify it")
	mock := flag.Bool("mock", false, "force the mock decision backend")
	debug := flag.Bool("debug", false, "force debug logging")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	applyFlags(cfg, flagOverrides{
		mode:            *mode,
		rounds:          *rounds,
		seed:            *seed,
		roundDelay:      *roundDelay,
		startingBalance: *startingBalance,
		replay:          *replay,
		mock:            *mock,
		debug:           *debug,
	})

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("idlarena starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("idlarena stopped")
}

type flagOverrides struct {
	mode            string
	rounds          int
	seed            int64
	roundDelay      time.Duration
	startingBalance int64
	replay          string
	mock            bool
	debug           bool
}

// applyFlags layers command-line overrides on top of file and env config.
func applyFlags(cfg *config.Config, f flagOverrides) {
	if f.mode != "" {
		cfg.Mode = f.mode
	}
	if f.rounds > 0 {
		cfg.Simulation.Rounds = f.rounds
	}
	if f.seed != 0 {
		cfg.Simulation.Seed = f.seed
	}
	if f.roundDelay >= 0 {
		cfg.Simulation.RoundDelay.Duration = f.roundDelay
	}
	if f.startingBalance > 0 {
		cfg.Simulation.StartingBalance = f.startingBalance
	}
	if f.replay != "" {
		cfg.Mode = "replay"
		cfg.Simulation.ReplayRunID = f.replay
	}
	if f.mock {
		cfg.Decision.Provider = "mock"
	}
	if f.debug {
		cfg.LogLevel = "debug"
	}
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
