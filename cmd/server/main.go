package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/sprinkler/internal/config"
	"github.com/woozymasta/sprinkler/internal/logger"
	"github.com/woozymasta/sprinkler/internal/metrics"
	"github.com/woozymasta/sprinkler/internal/server"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"       env:"CONFIG_FILE"    description:"Path to configuration file" default:"config.yaml"`
	Addr        string `short:"a" long:"addr"         env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	TilesAPIKey string `short:"k" long:"tiles-key"    env:"TILES_API_KEY"  description:"API key substituted for {key} in the tile URL"`
	Port        int    `short:"p" long:"port"         env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
	LocalTiles  bool   `short:"l" long:"local-tiles"  env:"LOCAL_TILES"    description:"Serve prefetched tiles instead of the remote tile URL"`
	NoMetrics   bool   `long:"no-metrics"             env:"NO_METRICS"     description:"Disable the /metrics endpoint"`
}

func main() {
	// .env is optional; values from it feed the env tags below
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", opts.ConfigFile).Msg("Configuration file not found, using defaults")
		cfg = config.Default()
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.TilesAPIKey != "" {
		cfg.Tiles.APIKey = opts.TilesAPIKey
	}
	if opts.LocalTiles {
		cfg.Tiles.Local = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvCtx, err := server.NewServerContext(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	go srvCtx.Sessions.Run(ctx, time.Minute)

	var metricsHandler http.Handler
	if !opts.NoMetrics {
		metricsHandler = metrics.Handler()
	}

	// Routes
	mux := srvCtx.Routes(metricsHandler)
	handler := server.RequestLogger(metrics.Middleware(server.RouteLabel, mux))

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", listenAddr).
		Bool("metrics", !opts.NoMetrics).
		Msg("Web server started")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Web server stopped")
}
