package server

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"

	"github.com/woozymasta/sprinkler/assets"
	"github.com/woozymasta/sprinkler/internal/config"
	"github.com/woozymasta/sprinkler/internal/session"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
)

const tileSize = 256

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config          *config.Config
	Sessions        *session.Store
	IndexETag       string
	IndexHTML       []byte
	Favicon         []byte
	TransparentTile []byte
}

// NewServerContext wires the configuration to a session store living as long as ctx.
func NewServerContext(ctx context.Context, cfg *config.Config) (*ServerContext, error) {
	tile, err := transparentTile()
	if err != nil {
		return nil, err
	}

	index, err := assets.Build()
	if err != nil {
		return nil, fmt.Errorf("build page: %w", err)
	}

	log.Info().
		Float64("lat", cfg.Center.Lat).
		Float64("lng", cfg.Center.Lng).
		Int("zoom", cfg.Zoom).
		Bool("local_tiles", cfg.Tiles.Local).
		Dur("session_ttl", cfg.SessionTTL).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:          cfg,
		Sessions:        session.NewStore(ctx, cfg.SessionTTL, cfg.MaxSessions),
		IndexETag:       contentETag(index),
		IndexHTML:       index,
		Favicon:         assets.Favicon,
		TransparentTile: tile,
	}, nil
}

// contentETag is a strong ETag derived from the bytes served.
func contentETag(b []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return fmt.Sprintf(`"%x"`, h.Sum64())
}

// transparentTile encodes the fallback served for tiles missing from the cache.
func transparentTile() ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, tileSize, tileSize))

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
