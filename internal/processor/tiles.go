// Package processor prefetches base map tiles for offline serving.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/woozymasta/sprinkler/internal/config"
	"github.com/woozymasta/sprinkler/internal/geo"
	"github.com/woozymasta/sprinkler/internal/metrics"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// TileCoordinate represents a specific tile.
type TileCoordinate struct {
	Z, X, Y int
}

// Stats summarises a prefetch run.
type Stats struct {
	Saved   int
	Skipped int
	Missing int
	Failed  int
}

// Options controls a prefetch run.
type Options struct {
	Concurrency int
	MaxTiles    int
	Force       bool
	FastCheck   bool
}

type job struct {
	URLTemplate string
	BaseDir     string
	Coord       TileCoordinate
}

type outcome int

const (
	outcomeSaved outcome = iota
	outcomeSkipped
	outcomeMissing
	outcomeFailed
)

var outcomeLabels = [...]string{"saved", "skipped", "missing", "failed"}

// TileRange lists the tiles at zoom z covering the rectangle sw..ne.
func TileRange(sw, ne geo.GeoPoint, z int) []TileCoordinate {
	x0, y0 := geo.LatLngToTile(geo.GeoPoint{Lat: ne.Lat, Lng: sw.Lng}, z)
	x1, y1 := geo.LatLngToTile(geo.GeoPoint{Lat: sw.Lat, Lng: ne.Lng}, z)

	tiles := make([]TileCoordinate, 0, (x1-x0+1)*(y1-y0+1))
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			tiles = append(tiles, TileCoordinate{Z: z, X: x, Y: y})
		}
	}
	return tiles
}

// ProcessTiles downloads every tile of the configured area for each zoom
// level and stores it as WebP under the tiles directory.
func ProcessTiles(ctx context.Context, client *http.Client, t config.Tiles, opts Options) (Stats, error) {
	var stats Stats

	if !t.HasArea() {
		return stats, fmt.Errorf("tiles.south_west and tiles.north_east are required for prefetch")
	}

	// Fast Check
	if opts.FastCheck {
		if _, err := os.Stat(t.Dir); err == nil {
			log.Info().Str("dir", t.Dir).Msg("Tiles directory exists, skipping (fast-check)")
			return stats, nil
		}
	}

	levels := make([][]TileCoordinate, 0, t.MaxZoom-t.MinZoom+1)
	total := 0
	for z := t.MinZoom; z <= t.MaxZoom; z++ {
		tiles := TileRange(*t.SouthWest, *t.NorthEast, z)
		total += len(tiles)
		levels = append(levels, tiles)
	}

	if opts.MaxTiles > 0 && total > opts.MaxTiles {
		return stats, fmt.Errorf("area needs %d tiles, limit is %d: shrink the area or lower tiles.max_zoom", total, opts.MaxTiles)
	}

	log.Info().
		Int("min_zoom", t.MinZoom).
		Int("max_zoom", t.MaxZoom).
		Int("tiles", total).
		Msg("Starting tile download")

	urlTpl := t.TileURL()
	for _, tiles := range levels {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log.Debug().Int("zoom", tiles[0].Z).Int("count", len(tiles)).Msg("Processing zoom level")

		level := processBatch(ctx, client, opts.Concurrency, tiles, urlTpl, t.Dir, opts.Force)
		stats.Saved += level.Saved
		stats.Skipped += level.Skipped
		stats.Missing += level.Missing
		stats.Failed += level.Failed
	}

	return stats, nil
}

func processBatch(
	ctx context.Context,
	client *http.Client,
	concurrency int,
	tiles []TileCoordinate,
	urlTpl, baseDir string,
	force bool,
) Stats {
	if concurrency <= 0 {
		concurrency = 1
	}

	jobs := make(chan job, len(tiles))
	results := make(chan outcome, len(tiles))

	for _, t := range tiles {
		jobs <- job{Coord: t, URLTemplate: urlTpl, BaseDir: baseDir}
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					results <- outcomeFailed
					continue
				}

				res, err := downloadAndConvert(ctx, client, j, force)
				if err != nil {
					log.Trace().
						Err(err).
						Str("url", buildURL(j.URLTemplate, j.Coord)).
						Msg("Failed to download tile")
				}
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	var stats Stats
	for res := range results {
		metrics.TilesFetched.WithLabelValues(outcomeLabels[res]).Inc()
		switch res {
		case outcomeSaved:
			stats.Saved++
		case outcomeSkipped:
			stats.Skipped++
		case outcomeMissing:
			stats.Missing++
		default:
			stats.Failed++
		}
	}

	return stats
}

// TilePath is where a tile is stored below baseDir.
func TilePath(baseDir string, c TileCoordinate) string {
	return filepath.Join(
		baseDir,
		fmt.Sprintf("%d", c.Z),
		fmt.Sprintf("%d", c.X),
		fmt.Sprintf("%d", c.Y)+".webp")
}

func downloadAndConvert(ctx context.Context, client *http.Client, j job, force bool) (outcome, error) {
	outPath := TilePath(j.BaseDir, j.Coord)

	// Check existence if not forcing overwrite
	if !force {
		if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
			return outcomeSkipped, nil
		}
	}

	url := buildURL(j.URLTemplate, j.Coord)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return outcomeFailed, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return outcomeFailed, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Trace().Str("url", url).Msg("Tile not found (404)")
		return outcomeMissing, nil
	}
	if resp.StatusCode != http.StatusOK {
		return outcomeFailed, fmt.Errorf("status code %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeFailed, err
	}
	img, _, err := image.Decode(bytes.NewReader(bodyBytes))
	if err != nil {
		log.Trace().Err(err).Str("url", url).Msg("Failed to decode image")
		return outcomeMissing, nil // Not an image or corrupted
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		log.Trace().Str("url", url).Msg("Filtered empty tile")
		return outcomeMissing, nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return outcomeFailed, err
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return outcomeFailed, err
	}

	if err := encodeTile(outFile, img); err != nil {
		_ = outFile.Close()
		_ = os.Remove(outPath)
		return outcomeFailed, err
	}
	if err := outFile.Close(); err != nil {
		_ = os.Remove(outPath)
		return outcomeFailed, err
	}

	return outcomeSaved, nil
}

// encodeTile writes img as a lossy WebP tile.
var encodeTile = func(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{Lossless: false, Quality: 80})
}

func buildURL(tpl string, c TileCoordinate) string {
	s := strings.ReplaceAll(tpl, "{z}", fmt.Sprintf("%d", c.Z))
	s = strings.ReplaceAll(s, "{x}", fmt.Sprintf("%d", c.X))
	s = strings.ReplaceAll(s, "{y}", fmt.Sprintf("%d", c.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << c.Z) - 1
		tmsY := maxCoord - c.Y
		s = strings.ReplaceAll(s, "{tms_y}", fmt.Sprintf("%d", tmsY))
	}

	return s
}
