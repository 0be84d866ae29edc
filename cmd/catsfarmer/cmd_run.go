package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/qtosh1/cats-farmer/internal/config"
	"github.com/qtosh1/cats-farmer/internal/database"
	"github.com/qtosh1/cats-farmer/internal/farmer"
	"github.com/qtosh1/cats-farmer/internal/notify"
	"github.com/qtosh1/cats-farmer/internal/proxy"
	"github.com/qtosh1/cats-farmer/internal/runner"
	"github.com/qtosh1/cats-farmer/internal/server"
	"github.com/qtosh1/cats-farmer/internal/status"
	"github.com/qtosh1/cats-farmer/internal/ton"
	"github.com/qtosh1/cats-farmer/internal/useragent"
)

func runFarm(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agents, err := useragent.Load(cfg.UserAgentsFile, useragent.NewGenerator(0), logger.Named("useragent"))
	if err != nil {
		return err
	}

	var proxies []proxy.Proxy
	if cfg.UseProxyFile {
		proxies, err = proxy.LoadFile(cfg.ProxiesFile, logger.Named("proxy"))
		if err != nil {
			return err
		}
		if len(proxies) == 0 {
			logger.Warn("USE_PROXY_FROM_FILE is set but no proxies were loaded", zap.String("file", cfg.ProxiesFile))
		}
	}

	registry := status.NewRegistry()
	reporters := []farmer.Reporter{registry}

	var history server.HistoryStore
	if cfg.DatabaseURL != "" {
		store, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		history = store
		reporters = append(reporters, database.NewReporter(store, logger.Named("database")))
		logger.Info("History database enabled")
	}

	if cfg.NotifyEnabled() {
		n, err := notify.New(cfg.NotifyBotToken, cfg.NotifyChatID, logger.Named("notify"))
		if err != nil {
			return err
		}
		reporters = append(reporters, n)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.StatusAddr != "" {
		opts := server.Options{
			Addr:     cfg.StatusAddr,
			Registry: registry,
			History:  history,
			Wallet:   cfg.WalletAddress,
			Logger:   logger.Named("server"),
		}
		if cfg.WalletAddress != "" {
			opts.TonClient = newTonClient(cfg)
		}
		srv := server.New(opts)
		g.Go(func() error { return srv.Start(ctx) })
	}

	r := runner.New(runner.Options{
		SessionsDir:   cfg.SessionsDir,
		StartDelayMax: cfg.StartDelayMax,
		UserAgents:    agents,
		Proxies:       proxies,
		Registry:      registry,
		Factory:       runner.NewFactory(cfg, farmer.Reporters(reporters...)),
		Logger:        logger,
	})
	g.Go(func() error {
		defer cancel()
		return r.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Farmer stopped")
	return nil
}

func openDatabase(ctx context.Context, cfg config.Config) (*database.Store, error) {
	store, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

func newTonClient(cfg config.Config) *ton.Client {
	return ton.NewClient(ton.Config{Endpoint: cfg.ToncenterEndpoint, APIKey: cfg.ToncenterAPIKey})
}
