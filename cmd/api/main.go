package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/campusgig/backend/internal/auth"
	"github.com/campusgig/backend/internal/bootstrap"
	"github.com/campusgig/backend/internal/chat"
	"github.com/campusgig/backend/internal/config"
	"github.com/campusgig/backend/internal/execution"
	"github.com/campusgig/backend/internal/ledger"
	"github.com/campusgig/backend/internal/lifecycle"
	"github.com/campusgig/backend/internal/observability"
	"github.com/campusgig/backend/internal/reliability"
	"github.com/campusgig/backend/internal/repository"
	"github.com/campusgig/backend/internal/schema"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	shutdownTracing, err := observability.InitTracing(cfg.ServiceName, cfg.OTelExporter)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("cannot reach PostgreSQL, is it running? %w", err)
	}
	slog.Info("connected to PostgreSQL")

	applied, err := repository.Migrate(ctx, pool)
	if err != nil {
		return fmt.Errorf("schema migrate: %w", err)
	}
	slog.Info("schema migrations applied", "files", applied)

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	slog.Info("river migrations applied")

	// Stores
	taskRepo := repository.NewTaskRepo(pool)
	appRepo := repository.NewApplicationRepo(pool)
	walletRepo := repository.NewWalletRepo(pool)
	ledgerRepo := repository.NewLedgerRepo(pool)
	profileRepo := repository.NewProfileRepo(pool)
	messageRepo := repository.NewMessageRepo(pool, cfg.ChatChannel)

	// Core
	ledgerSvc := ledger.NewService(walletRepo, ledgerRepo, logger)
	rater := reliability.NewUpdater(profileRepo)
	chatSvc := chat.NewService(pool, messageRepo, taskRepo, appRepo, logger)
	hub := chat.NewHub(cfg.ChatDedupeSize)

	// The insert func is set after the River client exists (breaks the init cycle).
	var insertMu sync.Mutex
	var insertFn lifecycle.InsertNoticeTxFunc
	insertNotice := func(ctx context.Context, tx pgx.Tx, args execution.TransitionNoticeArgs) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			return errors.New("river insert not wired")
		}
		return fn(ctx, tx, args)
	}

	tasks := lifecycle.NewService(pool, taskRepo, appRepo, ledgerSvc, rater, insertNotice, logger, lifecycle.Options{
		MinBudgetMinor:              cfg.MinBudgetMinor,
		RejectCompetingApplications: cfg.RejectCompetingApplications,
	})

	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewTransitionNoticeWorker(chatSvc))
	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.RiverWorkers},
		},
		Workers: workers,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create river client: %w", err)
	}
	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, args execution.TransitionNoticeArgs) error {
		_, err := riverClient.InsertTx(ctx, tx, args, nil)
		return err
	}
	insertMu.Unlock()

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience)
	if err != nil {
		return err
	}
	initializer := bootstrap.NewInitializer(profileRepo, walletRepo, logger)
	schemas, err := schema.NewValidator()
	if err != nil {
		return fmt.Errorf("load request schemas: %w", err)
	}

	handler := newServer(serverDeps{
		cfg:         cfg,
		logger:      logger,
		verifier:    verifier,
		initializer: initializer,
		tasks:       tasks,
		chat:        chatSvc,
		hub:         hub,
		profiles:    profileRepo,
		wallets:     ledgerSvc,
		schemas:     schemas,
	})

	listener := chat.NewListener(pool, cfg.ChatChannel, hub, logger)
	go func() {
		if err := listener.Run(ctx); err != nil {
			slog.Error("chat listener stopped", "error", err)
		}
	}()

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", cfg.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Warn("river shutdown", "error", err)
	}
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
