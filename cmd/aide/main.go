package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/aide/internal/adapter/driven/assistant"
	"github.com/ericfisherdev/aide/internal/adapter/driven/graph"
	sqliteadapter "github.com/ericfisherdev/aide/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/aide/internal/adapter/driving/http"
	"github.com/ericfisherdev/aide/internal/application"
	"github.com/ericfisherdev/aide/internal/cipher"
	"github.com/ericfisherdev/aide/internal/config"
	"github.com/ericfisherdev/aide/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"principal_id", cfg.PrincipalID,
		"scheduler_tick", cfg.SchedulerTick,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Create the cipher for secrets at rest.
	key, err := cipher.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return err
	}
	box, err := cipher.NewAESGCM(key)
	if err != nil {
		return err
	}

	// 6. Wire driven adapters.
	tokenStore := sqliteadapter.NewTokenRepo(db)
	runStore := sqliteadapter.NewRunRepo(db)
	tokenEndpoint := graph.NewTokenEndpoint(
		cfg.OAuth.ClientID,
		cfg.OAuth.ClientSecret,
		cfg.OAuth.TokenURL,
		cfg.OAuth.RevokeURL,
		cfg.OAuth.Scopes,
	)
	graphClient := graph.NewClient(cfg.GraphBaseURL)
	assistantClient := assistant.NewClient(cfg.Assistant.BaseURL, cfg.Assistant.APIKey, cfg.Assistant.Model, cfg.OpTimeout)

	if !cfg.HasOAuthClient() {
		slog.Warn("no oauth client configured, token refresh will fail until credentials are provided")
	}

	// 7. Create the token lifecycle manager.
	tokenSvc := application.NewTokenService(tokenStore, tokenEndpoint, box, slog.Default())
	tokenSvc.SetBuffer(cfg.RefreshBuffer)

	// 8. Create task operations and register the default jobs.
	triageSvc := application.NewTriageService(tokenSvc, graphClient, assistantClient, cfg.TriageLookback, cfg.OpTimeout, slog.Default())
	briefSvc := application.NewBriefService(tokenSvc, graphClient, assistantClient, 24*time.Hour, cfg.OpTimeout, slog.Default())
	digestSvc := application.NewDigestService(tokenSvc, graphClient, assistantClient, 24*time.Hour, cfg.OpTimeout, slog.Default())
	healthSvc := application.NewHealthService(tokenSvc, graphClient, db, cfg.OpTimeout, slog.Default())

	registry := application.NewRegistry()
	registry.Register(application.Job{Name: "triage", Trigger: model.Every{Interval: time.Hour}, Op: triageSvc})
	registry.Register(application.Job{Name: "briefs", Trigger: model.DailyAt{Times: []model.ClockTime{{Hour: 6}, {Hour: 18}}}, Op: briefSvc})
	registry.Register(application.Job{Name: "digest", Trigger: model.DailyAt{Times: []model.ClockTime{{Hour: 8}}}, Op: digestSvc})
	registry.Register(application.Job{Name: "health", Trigger: model.Every{Interval: 30 * time.Minute}, Op: healthSvc})

	// 9. Create the scheduler; autostart only when a credential exists.
	scheduler := application.NewScheduler(registry, runStore, cfg.PrincipalID, slog.Default())
	scheduler.SetTick(cfg.SchedulerTick)

	if status, err := tokenSvc.Status(ctx, cfg.PrincipalID); err == nil && status.Connected {
		scheduler.Start(ctx)
		slog.Info("scheduler autostarted", "principal_id", cfg.PrincipalID)
	} else {
		slog.Info("scheduler idle until started via API", "principal_id", cfg.PrincipalID)
	}

	// 10. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(scheduler, runStore, tokenSvc, db, cfg.PrincipalID, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("aide started", "listen_addr", cfg.ListenAddr)

	// 11. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 12. Graceful shutdown: drain HTTP, then stop the scheduler and wait
	// for in-flight executions so their run records finalize.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	scheduler.Stop()
	scheduler.Wait()

	slog.Info("shutdown complete")
	return nil
}
