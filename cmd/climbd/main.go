package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"

	climb "github.com/goliatone/go-climb"
	"github.com/goliatone/go-climb/activitymap"
	"github.com/goliatone/go-climb/config"
	"github.com/goliatone/go-climb/persistence"
	"github.com/goliatone/go-climb/telemetry"
)

type App struct {
	config *config.Config
	db     *bun.DB
	repo   climb.RepositoryManager
	srv    router.Server[*fiber.App]
	logger *climb.SlogLogger
}

func (a *App) GetLogger(name string) climb.Logger {
	return a.logger.With("component", name)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "climbd: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lgr := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(lgr)

	app := &App{
		config: cfg,
		logger: climb.NewSlogLogger(lgr),
	}

	app.GetLogger("config").Debug("configuration loaded", "config", print.MaybePrettyJSON(redacted(cfg)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.ServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			app.GetLogger("telemetry").Warn("tracer shutdown failed", "error", err)
		}
	}()

	if err := WithPersistence(ctx, app); err != nil {
		return err
	}
	defer app.db.Close()

	if err := WithHTTPServer(app); err != nil {
		return err
	}

	errc := make(chan error, 1)
	go func() {
		app.GetLogger("http").Info("listening", "addr", cfg.Addr)
		errc <- app.srv.Serve(cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	app.GetLogger("http").Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return app.srv.Shutdown(sctx)
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := persistence.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return err
	}

	if err := persistence.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	repo := climb.NewRepositoryManager(db, climb.WithRepositoryClock(time.Now))
	repo.MustValidate()

	app.db = db
	app.repo = repo
	return nil
}

func WithHTTPServer(app *App) error {
	cfg := app.config

	tokens, err := climb.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL, cfg.TokenIssuer, app.GetLogger("tokens"))
	if err != nil {
		return err
	}

	credentials := climb.NewCredentialStore(app.repo.Users(),
		climb.WithPasswordCost(cfg.BcryptCost),
		climb.WithPasswordSkew(cfg.PasswordSkew),
		climb.WithHashidUserIDs(cfg.HashidUserIDs),
		climb.WithCredentialLogger(app.GetLogger("credentials")),
	)

	activity := activitymap.NewLogSink(app.GetLogger("activity"))

	auther := climb.NewAuthenticator(credentials, tokens).
		WithLogger(app.GetLogger("auth")).
		WithActivitySink(activity)

	gate := climb.NewGate(tokens, credentials, app.GetLogger("gate"))

	app.srv = climb.NewHTTPServer(cfg.ServiceName, app.GetLogger("http"), telemetry.Middleware())

	// the reset link carries a live secret, it is only logged on request
	notifier := climb.NewLoggerResetNotifier(app.GetLogger("password-reset"), cfg.ResetLinkLog)
	if cfg.ResetLinkLog {
		app.GetLogger("password-reset").Warn("reset links will be written to the debug log")
	}

	climb.RegisterRoutes(app.srv.Router(),
		climb.WithRepositoryManager(app.repo),
		climb.WithAuther(auther),
		climb.WithGate(gate),
		climb.WithControllerLogger(app.GetLogger("controller")),
		climb.WithControllerActivitySink(activity),
		climb.WithResetTTL(cfg.ResetTTL),
		climb.WithResetNotifier(notifier),
	)

	return nil
}

func redacted(cfg *config.Config) config.Config {
	out := *cfg
	if out.JWTSecret != "" {
		out.JWTSecret = "***"
	}
	if out.DatabaseDSN != "" {
		out.DatabaseDSN = "***"
	}
	return out
}
