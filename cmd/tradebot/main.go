// Command tradebot runs the autonomous Hyperliquid perp trading loop
// with its websocket price feed and the metrics/status HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	stdsignal "os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/hyperfarm/internal/adapter"
	"github.com/ajitpratap0/hyperfarm/internal/bot"
	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/hyperliquid"
	"github.com/ajitpratap0/hyperfarm/internal/metrics"
	"github.com/ajitpratap0/hyperfarm/internal/notify"
	"github.com/ajitpratap0/hyperfarm/internal/optimizer"
	"github.com/ajitpratap0/hyperfarm/internal/oracle"
	"github.com/ajitpratap0/hyperfarm/internal/signal"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
	"github.com/ajitpratap0/hyperfarm/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search for hyperfarm.yaml)")
	envFile := flag.String("env-file", ".env", "Path to env file with credentials")
	writeConfig := flag.Bool("write-config", false, "Write a commented default config file and exit")
	flag.Parse()

	if *writeConfig {
		path := *configPath
		if path == "" {
			path = "hyperfarm.yaml"
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	if err := run(*configPath, *envFile); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tradebot: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	env, err := config.NewEnvLoader(envFile)
	if err != nil {
		return err
	}
	if err := env.ApplySecrets(cfg); err != nil {
		return err
	}

	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)
	logger := config.NewLogger("tradebot")

	venue, err := hyperliquid.NewClient(cfg.Venue, logger)
	if err != nil {
		return fmt.Errorf("venue client: %w", err)
	}

	stateDir := cfg.State.Dir
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	tr, err := tracker.New(statefile.NewStore(filepath.Join(stateDir, "trades_history.json")), logger)
	if err != nil {
		return err
	}
	ad, err := adapter.New(statefile.NewStore(filepath.Join(stateDir, "adaptive_config.json")), signal.DefaultThreshold, logger)
	if err != nil {
		return err
	}

	analyst := oracle.NewClient(cfg.Oracle)
	opt, err := optimizer.New(
		statefile.NewStore(filepath.Join(stateDir, "optimizer_state.json")),
		statefile.NewStore(filepath.Join(stateDir, "optimizer_history.json")),
		analyst,
		logger,
	)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	sentiment := oracle.New(analyst, cfg.Oracle, rdb, logger)

	notifier := notify.New(cfg.Telegram, logger)

	mids := hyperliquid.NewMidCache()
	stream := hyperliquid.NewMidStream(cfg.Venue.WSURL, mids, logger)

	b := bot.New(cfg.Trading, bot.Deps{
		Venue:     venue,
		Mids:      mids,
		Sentiment: sentiment,
		Tracker:   tr,
		Adapter:   ad,
		Optimizer: opt,
		Notifier:  notifier,
	}, logger)

	ctx, stop := stdsignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(ctx) })
	g.Go(func() error { return stream.Run(ctx) })

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Port, metrics.Providers{
			Status:    func() any { return b.Status() },
			Positions: func() any { return b.Positions(context.Background()) },
			Stats:     func() any { return b.Stats() },
		}, logger)
		g.Go(func() error { return server.Run(ctx) })
	}

	return g.Wait()
}
