package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/hongminglow/vault-be/internal/auth"
	"github.com/hongminglow/vault-be/internal/config"
	"github.com/hongminglow/vault-be/internal/export"
	"github.com/hongminglow/vault-be/internal/ledger"
	"github.com/hongminglow/vault-be/internal/lending"
	"github.com/hongminglow/vault-be/internal/realtime"
	"github.com/hongminglow/vault-be/internal/server"
	"github.com/hongminglow/vault-be/internal/storage"
	"github.com/hongminglow/vault-be/internal/storage/memory"
	"github.com/hongminglow/vault-be/internal/storage/postgres"
	"github.com/hongminglow/vault-be/internal/worker"
)

func main() {
	loadLocalEnv()

	app := &cli.App{
		Name:   "vault-be",
		Usage:  "vault dashboard backend",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP and websocket server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the Postgres schema and exit",
				Action: migrate,
			},
			{
				Name:  "export-transactions",
				Usage: "write users' transactions to an xlsx workbook",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "user", Aliases: []string{"u"}, Usage: "user id to export (repeatable)", Required: true},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "transactions.xlsx", Usage: "output file"},
					&cli.IntFlag{Name: "limit", Value: 0, Usage: "max transactions per user (0 = all)"},
				},
				Action: exportTransactions,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("vault-be failed", "error", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := realtime.NewHub(realtime.NewStoreResolver(store, cfg.LeaderboardLimit))
	defer hub.Close()

	switch st := store.(type) {
	case *memory.Store:
		st.SetNotifier(hub.Publish)
	case *postgres.Store:
		go realtime.NewPgListener(st.Pool(), hub).Run(ctx)
	}

	provider, err := auth.NewProvider(store, auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL), cfg.Strategies)
	if err != nil {
		return fmt.Errorf("init auth provider: %w", err)
	}
	defer provider.Close()

	// Signed-out users lose their live views.
	unregister := provider.OnChange(func(ch auth.Change) {
		if ch.Kind == auth.SignedOut {
			n := hub.DropOwner(ch.UserID)
			slog.Info("dropped subscriptions after sign-out", "user", ch.UserID, "count", n)
		}
	})
	defer unregister()

	go worker.NewHistoryWorker(worker.NewHistorySampler(store), cfg.HistoryWorkerInterval).Run(ctx)

	srv := server.New(cfg, server.Deps{
		Store:    store,
		Provider: provider,
		Cookies:  auth.NewCookieSessions(cfg.SessionSecret, cfg.CookieSecure),
		Hub:      hub,
		Ledger:   ledger.NewService(store, store, cfg.Strategies),
		Lending:  lending.NewService(store),
	})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("vault backend listening", "addr", cfg.HTTPAddress(), "store", cfg.StoreDriver)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown error", "error", err)
	}
	slog.Info("shutdown complete")
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return fmt.Errorf("migrate needs STORE_DRIVER=%s", config.DriverPostgres)
	}
	store, err := postgres.NewStore(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	store.Close()
	slog.Info("migrations applied")
	return nil
}

func exportTransactions(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := os.Create(c.String("out"))
	if err != nil {
		return fmt.Errorf("create %s: %w", c.String("out"), err)
	}
	defer out.Close()

	n, err := export.NewTransactionExporter(store, c.Int("limit")).Export(c.Context, out, c.StringSlice("user"))
	if err != nil {
		return err
	}
	slog.Info("transactions exported", "file", c.String("out"), "rows", n)
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		slog.Warn("using in-memory store with demo data; data is lost on restart")
		st := memory.NewStore()
		st.SeedDemo(ctx)
		return st, nil
	}
	pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	return pg, nil
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found; relying on existing environment")
	}
}
