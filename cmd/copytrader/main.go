// Package main runs the copy-trade service:
// - session runners polling master accounts and replaying their swaps
// - control API (sessions, websocket event feed, metrics, health)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/api"
	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/config"
	"aptos-copytrade/internal/copytrade"
	"aptos-copytrade/internal/decoder"
	"aptos-copytrade/internal/dex"
	"aptos-copytrade/internal/executor"
	"aptos-copytrade/internal/logging"
	"aptos-copytrade/internal/notify"
	"aptos-copytrade/internal/observability"
	"aptos-copytrade/internal/storage"
	chstore "aptos-copytrade/internal/storage/clickhouse"
	"aptos-copytrade/internal/storage/memory"
	"aptos-copytrade/internal/storage/migrations"
	pgstore "aptos-copytrade/internal/storage/postgres"
	redisstore "aptos-copytrade/internal/storage/redis"
)

const shutdownTimeout = 30 * time.Second

// stores holds the storage backends. Optional ones are nil when not configured.
type stores struct {
	sessions storage.SessionStore
	wallets  storage.WalletStore
	journal  storage.TradeJournal
	decimals decoder.DecimalsStore
}

func main() {
	configPath := flag.String("config", os.Getenv("COPYTRADE_CONFIG"), "Path to YAML config file")
	envFile := flag.String("env-file", ".env", "Optional .env file (never overrides the environment)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL; follower wallets come from the config wallets list")
	httpAddr := flag.String("http-addr", "", "Control API address (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *useMemory {
			c.Storage.UseMemory = true
		}
		if *httpAddr != "" {
			c.HTTP.Addr = *httpAddr
		}
		if *logLevel != "" {
			c.Log.Level = *logLevel
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("copytrader stopped with error")
		logCloser.Close()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer cleanup()

	client := aptos.NewClient(cfg.Aptos.NodeURL,
		aptos.WithTimeout(cfg.Aptos.Timeout),
		aptos.WithMaxRetries(cfg.Aptos.MaxRetries),
		aptos.WithMaxGasAmount(cfg.Aptos.MaxGasAmount),
		aptos.WithExpiration(cfg.Aptos.Expiration),
		aptos.WithConfirmationPoll(cfg.Aptos.ConfirmationPoll),
		aptos.WithLatencyObserver(observability.RecordChainRequest),
	)

	decimals := decoder.NewDecimalsCache(client, st.decimals, logger)
	dec := decoder.New(decimals, decoder.WithMinOutRatio(cfg.Engine.MinOutRatio))

	router := dex.NewLiquidswap(client, dex.WithAccounts(cfg.Liquidswap.ResourceAccount, cfg.Liquidswap.ModuleAccount))
	exec := executor.New(client, router, executor.Options{
		Slippage:   cfg.Engine.Slippage,
		Timeout:    cfg.Engine.ExecutionTimeout,
		LogBalance: cfg.Engine.LogBalance,
		Logger:     logger,
	})

	hub := notify.NewHub(logger)
	notifiers := []notify.Notifier{notify.NewLog(logger), hub}
	if st.journal != nil {
		notifiers = append(notifiers, notify.NewJournal(st.journal))
	}
	if cfg.Telegram.BotToken != "" {
		notifiers = append(notifiers, notify.NewTelegram(cfg.Telegram.BotToken, notify.WithTelegramURL(cfg.Telegram.APIURL)))
		logger.Info("telegram notifications enabled")
	}

	manager := copytrade.NewManager(copytrade.ManagerOptions{
		Sessions:      st.sessions,
		Credentials:   copytrade.NewWalletCredentials(st.wallets),
		Chain:         client,
		Decoder:       dec,
		Executor:      exec,
		Notifier:      notify.NewMulti(notifiers...),
		PollInterval:  cfg.Engine.PollInterval,
		QueueSize:     cfg.Engine.QueueSize,
		NotifyTimeout: cfg.Engine.NotifyTimeout,
		Logger:        logger,
	})

	if _, err := manager.Resume(ctx); err != nil {
		return fmt.Errorf("resume sessions: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.New(api.Options{
			Sessions: manager,
			Events:   hub,
			Metrics:  observability.Handler(),
			Logger:   logger,
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("control API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("initiating graceful shutdown")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Second signal forces exit.
	go func() {
		select {
		case sig := <-sigCh:
			logger.WithField("signal", sig.String()).Warn("forcing immediate shutdown")
			os.Exit(1)
		case <-shutdownCtx.Done():
		}
	}()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	hub.Close()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("runners did not finish before the shutdown timeout")
	}
	return runErr
}

// createStores opens the configured backends and applies migrations.
func createStores(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*stores, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	st := &stores{}
	if cfg.Storage.UseMemory {
		logger.Warn("using in-memory storage; sessions and wallets are lost on restart")
		st.sessions = memory.NewSessionStore()
		wallets := memory.NewWalletStore()
		for _, w := range cfg.SeedWallets() {
			if err := wallets.Put(w); err != nil {
				return nil, nil, fmt.Errorf("seed wallet for %s: %w", w.FollowerID, err)
			}
		}
		if len(cfg.Wallets) == 0 {
			logger.Warn("no wallets configured; sessions cannot start without a follower wallet")
		}
		logger.WithField("wallets", len(cfg.Wallets)).Info("in-memory wallets seeded")
		st.wallets = wallets
		st.journal = memory.NewTradeJournal()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN,
			pgstore.WithMaxConns(cfg.Storage.PostgresMaxConns),
			pgstore.WithHealthCheckPeriod(cfg.Storage.PostgresHealthCheck),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		st.sessions = pgstore.NewSessionStore(pool)
		st.wallets = pgstore.NewWalletStore(pool)
	}

	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		st.journal = chstore.NewTradeJournal(conn)
	}

	if cfg.Storage.RedisAddr != "" {
		client, err := redisstore.NewClient(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		st.decimals = redisstore.NewDecimalsCache(client, "")
	}

	return st, cleanup, nil
}
