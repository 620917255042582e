package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizarea/internal/amap"
	"bizarea/internal/cache"
	"bizarea/internal/config"
	httphandler "bizarea/internal/http"
	"bizarea/internal/ingest"
	"bizarea/internal/middleware"
	"bizarea/internal/repo"
	"bizarea/internal/services/catalog"
	"bizarea/internal/services/poi"
	"bizarea/internal/services/ranking"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Parse command line flags
	var (
		seed     = flag.Bool("seed", false, "Load seed data into the repository before serving")
		seedPath = flag.String("seed-path", "", "JSON seed file or directory; built-in sample data when empty")
		seedOnly = flag.Bool("seed-only", false, "Exit after seeding")
		port     = flag.String("port", "", "Port to run the server on (overrides PORT)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogging(cfg.Log)
	if *port != "" {
		cfg.Server.Port = *port
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository := openRepository(ctx, cfg.Database)
	defer repository.Close()

	// Redis is optional; without it every read goes to the repository or Amap.
	redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, running without cache")
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	if *seed {
		loader := ingest.NewLoader(repository)
		if *seedPath == "" {
			loader.LoadSampleData(ctx)
		} else if _, err := loader.LoadFromDirectory(ctx, *seedPath); err != nil {
			log.Fatal().Err(err).Str("path", *seedPath).Msg("Failed to load seed data")
		}
		if *seedOnly {
			return
		}
	}

	amapClient := amap.NewClient(cfg.Amap.Key,
		amap.WithBaseURL(cfg.Amap.BaseURL),
		amap.WithTransport(newTransport(cfg.Amap)),
		amap.WithRateLimit(cfg.Amap.RatePerSecond),
		amap.WithDefaults(cfg.Amap.DefaultRadius, cfg.Amap.PageSize),
	)

	// Amap routes get their own deadline, long enough for the slowest aggregate.
	amapRouteTimeout := amap.AggregateTimeout(cfg.Amap.Timeout)
	writeTimeout := cfg.Server.WriteTimeout
	if minWrite := amapRouteTimeout + 5*time.Second; writeTimeout < minWrite {
		log.Warn().Dur("configured", writeTimeout).Dur("using", minWrite).Msg("WRITE_TIMEOUT shorter than Amap route timeout")
		writeTimeout = minWrite
	}

	// Initialize services
	poiService := poi.NewService(amapClient, redisCache, poi.WithFlightTimeout(amapRouteTimeout))
	catalogService := catalog.NewService(repository, redisCache)
	rankingWorker := ranking.NewWorker(repository, redisCache, cfg.Ranking.TTL, cfg.Ranking.Limit)

	if redisCache != nil {
		rankingWorker.Start(ctx, cfg.Ranking.WorkerInterval)
		defer rankingWorker.Stop()
	}

	// Initialize HTTP router
	router := httphandler.NewRouter(middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		BurstSize:         cfg.RateLimit.BurstSize,
	})

	deps := map[string]httphandler.Pinger{"repository": repository}
	if redisCache != nil {
		deps["cache"] = redisCache
	}

	// Register routes
	router.RegisterAmapRoutes(httphandler.NewAmapHandler(poiService), amapRouteTimeout)
	router.RegisterCatalogRoutes(httphandler.NewCatalogHandler(catalogService, rankingWorker))
	router.RegisterHealthRoutes(deps)
	router.RegisterMetricsRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("transport", cfg.Amap.Transport).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) repo.Repository {
	if cfg.URL == "" {
		log.Info().Msg("POSTGRES_URL not set, using in-memory repository")
		return repo.NewMemoryRepository()
	}

	pg, err := repo.NewPostgresRepository(ctx, cfg.URL, cfg.MaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	return pg
}

func newTransport(cfg config.AmapConfig) amap.Transport {
	httpClient := &http.Client{Timeout: cfg.Timeout + 5*time.Second}
	if cfg.Transport == "direct" {
		return amap.NewDirectTransport(httpClient, cfg.Timeout)
	}
	return amap.NewJSONPTransport(httpClient, cfg.Timeout)
}
