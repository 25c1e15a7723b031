package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"taskhub/internal/engine/membership"
	"taskhub/internal/pkg/logger"
	"taskhub/internal/platform/config"
	"taskhub/internal/platform/database"
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

	records := provider.NewSQLProvider(db, cfg.Provider.Timeout)
	memberships := membership.NewService(records, membership.NewResolver(records), cfg.Invitations)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("interval", cfg.Invitations.SweepInterval).Msg("starting background workers")
	workers.Every(ctx, "invitation_expiry", cfg.Invitations.SweepInterval, workers.ExpireInvitations(memberships))
	log.Info().Msg("workers stopped")
}
