package main

import (
	"context"
	"crypto/tls"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/sprinkler/internal/config"
	"github.com/woozymasta/sprinkler/internal/logger"
	"github.com/woozymasta/sprinkler/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"      env:"CONFIG_FILE"   description:"Path to configuration file" default:"config.yaml"`
	TilesAPIKey string `short:"k" long:"tiles-key"   env:"TILES_API_KEY" description:"API key substituted for {key} in the tile URL"`
	UserAgent   string `short:"u" long:"user-agent"  env:"USER_AGENT"    description:"User-Agent sent to the tile server" default:"sprinkler-loader/1.0"`
	Concurrency int    `short:"p" long:"concurrency" env:"CONCURRENCY"   description:"Concurrency" default:"8"`
	MaxTiles    int    `short:"m" long:"max-tiles"   env:"MAX_TILES"     description:"Refuse areas needing more tiles than this (0 disables)" default:"50000"`
	Force       bool   `short:"f" long:"force"       description:"Force overwrite of existing files"`
	FastCheck   bool   `short:"F" long:"fast-check"  description:"Skip processing if cache exist"`
}

type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(r)
}

func main() {
	_ = godotenv.Load()

	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Str("path", opts.ConfigFile).Msg("Configuration file with a tiles area is required")
	} else if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.TilesAPIKey != "" {
		cfg.Tiles.APIKey = opts.TilesAPIKey
	}

	client := &http.Client{
		Transport: userAgentTransport{
			next: &http.Transport{
				TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
			userAgent: opts.UserAgent,
		},
		Timeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("dir", cfg.Tiles.Dir).
		Int("concurrency", opts.Concurrency).
		Bool("fast_check", opts.FastCheck).
		Msg("Starting loader")

	stats, err := processor.ProcessTiles(ctx, client, cfg.Tiles, processor.Options{
		Concurrency: opts.Concurrency,
		MaxTiles:    opts.MaxTiles,
		Force:       opts.Force,
		FastCheck:   opts.FastCheck,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Tile prefetch failed")
	}

	log.Info().
		Int("saved", stats.Saved).
		Int("skipped", stats.Skipped).
		Int("missing", stats.Missing).
		Int("failed", stats.Failed).
		Msg("Loader finished successfully")
}
