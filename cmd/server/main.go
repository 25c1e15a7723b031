package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"taskhub/internal/api"
	"taskhub/internal/api/handlers"
	"taskhub/internal/api/middleware"
	"taskhub/internal/engine/membership"
	"taskhub/internal/engine/workspace"
	"taskhub/internal/pkg/logger"
	"taskhub/internal/platform/audit"
	"taskhub/internal/platform/auth"
	"taskhub/internal/platform/config"
	"taskhub/internal/platform/database"
	"taskhub/internal/platform/preferences"
	"taskhub/internal/platform/provider"
	"taskhub/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if _, err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	prefs, err := preferences.OpenFileStore(cfg.Preferences.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Preferences.Path).Msg("failed to open preferences")
	}

	// Services
	records := provider.NewSQLProvider(db, cfg.Provider.Timeout)
	tokenSvc := auth.NewTokenService(cfg.JWT, cfg.Federation)
	auditLog := audit.NewLogger(db)
	memberships := membership.NewService(records, membership.NewResolver(records), cfg.Invitations).WithAudit(auditLog)
	workspaces := workspace.NewCache(workspace.Deps{
		Provider:    records,
		Verifier:    tokenSvc,
		Preferences: prefs,
		Memberships: memberships,
	}, cfg.Server.WorkspaceTTL)

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultLimits)

	deps := &api.Dependencies{
		AuthHandler:       handlers.NewAuthHandler(workspaces, records, tokenSvc),
		BootstrapHandler:  handlers.NewBootstrapHandler(),
		OrgHandler:        handlers.NewOrgHandler(memberships, auditLog),
		InvitationHandler: handlers.NewInvitationHandler(memberships),
		TaskHandler:       handlers.NewTaskHandler(),
		ProjectHandler:    handlers.NewProjectHandler(),
		HealthHandler:     handlers.NewHealthHandler(db, workspaces),
		AuthMiddleware:    middleware.NewAuthMiddleware(tokenSvc, records, workspaces),
		RateLimiter:       rateLimiter,
		CORS:              cfg.CORS,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go rateLimiter.Run(ctx)
	go workers.Every(ctx, "workspace_sweep", cfg.Server.WorkspaceTTL/2, workers.SweepWorkspaces(workspaces))

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
