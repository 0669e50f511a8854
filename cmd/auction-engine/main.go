package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"autolot-auction-engine/internal/adapters/broadcaster"
	"autolot-auction-engine/internal/adapters/cache"
	"autolot-auction-engine/internal/adapters/db"
	"autolot-auction-engine/internal/adapters/redis"
	"autolot-auction-engine/internal/adapters/scheduler"
	"autolot-auction-engine/internal/adapters/ws"
	"autolot-auction-engine/internal/app"
	"autolot-auction-engine/internal/config"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting AutoLot auction engine...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	// Create repositories
	listingRepo := db.NewListingRepository(dbConn)
	bidRepo := db.NewBidRepository(dbConn)
	notifRepo := db.NewNotificationRepository(dbConn)
	userRepo := db.NewUserRepository(dbConn)

	log.Info().Msg("Database repositories initialized")

	// Create Redis client
	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	// Create Redis broadcaster
	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})
	log.Info().Msg("Redis broadcaster initialized")

	// Create listing cache
	listingCache := cache.NewListingCache(cache.ListingCacheParams{
		RedisClient: redisClient,
		TTL:         cfg.Cache.TTL,
		Logger:      log.Logger,
	})

	// Create business services
	fanoutService := app.NewFanoutService(app.FanoutServiceParams{
		BidRepo:     bidRepo,
		NotifRepo:   notifRepo,
		UserRepo:    userRepo,
		Broadcaster: redisBroadcaster,
		Logger:      log.Logger,
	})
	bidService := app.NewBidService(app.BidServiceParams{
		ListingRepo:     listingRepo,
		BidRepo:         bidRepo,
		UserRepo:        userRepo,
		Cache:           listingCache,
		Fanout:          fanoutService,
		AntiSnipeWindow: cfg.Engine.AntiSnipeWindow,
		CommitTimeout:   cfg.Engine.BidCommitTimeout,
		Logger:          log.Logger,
	})
	queryService := app.NewQueryService(app.QueryServiceParams{
		ListingRepo: listingRepo,
		BidRepo:     bidRepo,
		Cache:       listingCache,
		Logger:      log.Logger,
	})
	lifecycleService := app.NewLifecycleService(app.LifecycleServiceParams{
		ListingRepo:        listingRepo,
		BidRepo:            bidRepo,
		Cache:              listingCache,
		Fanout:             fanoutService,
		DispositionTimeout: cfg.Engine.DispositionTimeout,
		Logger:             log.Logger,
	})

	log.Info().Msg("Business services initialized")

	// Create and start lifecycle scheduler
	lifecycleScheduler := scheduler.NewLifecycleScheduler(scheduler.LifecycleSchedulerParams{
		Sweeper:  lifecycleService,
		Interval: cfg.Engine.SweepInterval,
		Logger:   log.Logger,
	})
	lifecycleScheduler.Start()
	log.Info().Msg("Lifecycle scheduler started")

	wsServer := ws.NewServer(ws.ServerParams{
		Config:       cfg,
		BidService:   bidService,
		QueryService: queryService,
		Broadcaster:  redisBroadcaster,
		Logger:       log.Logger,
	})

	log.Info().Msg("WebSocket server initialized")

	// Start WebSocket server
	go func() {
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	lifecycleScheduler.Stop()
	log.Info().Msg("Lifecycle scheduler stopped")

	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	fanoutService.Stop()
	log.Info().Msg("Fanout pool drained")

	if err := redisBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing broadcaster")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
