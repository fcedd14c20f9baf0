package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/chain"
	"github.com/liquidminer/incentived/internal/claim"
	"github.com/liquidminer/incentived/internal/config"
	"github.com/liquidminer/incentived/internal/intake"
	"github.com/liquidminer/incentived/internal/logger"
	"github.com/liquidminer/incentived/internal/priceoracle"
	"github.com/liquidminer/incentived/internal/ratelimit"
	"github.com/liquidminer/incentived/internal/scheduler"
	"github.com/liquidminer/incentived/internal/snapshot"
	"github.com/liquidminer/incentived/internal/store"
	"github.com/liquidminer/incentived/internal/subgraph"
	"github.com/liquidminer/incentived/internal/version"
	"github.com/liquidminer/incentived/internal/web"
)

// main is the entry point for the incentive-coordination service.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Incentive coordination service starting...")

	if err := version.Load("VERSION"); err != nil {
		log.Fatal().Err(err).Msg("Failed to load VERSION file")
	}
	log.Info().Str("version", version.Current().String()).Msg("Running version.")

	if err := store.InitDB(config.DBPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.CloseDB()
	if err := store.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	chainClient, err := chain.Dial(config.RPCEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to dial chain RPC endpoint")
	}
	defer chainClient.Close()

	holders := snapshot.NewHolders(chainClient, config.SubnetID, config.HolderSnapshotTTL)
	roster := snapshot.NewRoster(chainClient, config.SubnetID, config.RosterTTL)

	ipLimiter := ratelimit.New(config.RateLimitPerIP, config.RateLimitWindow)
	voterLimiter := ratelimit.New(config.RateLimitPerVoter, config.RateLimitWindow)

	sched := scheduler.New(holders, roster, chainClient, ipLimiter, voterLimiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Startup(ctx); err != nil {
		log.Fatal().Err(err).Msg("Startup sequencing failed")
	}

	vi := intake.NewOrchestrator(chainClient, holders, ipLimiter, voterLimiter)
	ac := claim.NewOrchestrator(chainClient, roster)
	pf := subgraph.New(config.SubgraphURL, config.SubgraphAPIKey)
	oracle := priceoracle.New(config.PriceOracleURL)

	server := web.NewServer(config.WebPort, vi, ac, holders, roster, pf, oracle)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	sched.Run(ctx)

	if err := <-serverDone; err != nil {
		log.Error().Err(err).Msg("HTTP server exited with error")
	}

	log.Info().Msg("Incentive coordination service stopped.")
}
