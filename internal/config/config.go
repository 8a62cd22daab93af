// Package config handles configuration loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/woozymasta/sprinkler/internal/geo"

	"gopkg.in/yaml.v3"
)

// Defaults applied to missing configuration values.
const (
	DefaultZoom       = 5
	DefaultTilesDir   = "tiles"
	DefaultTileURL    = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultSessionTTL = 12 * time.Hour
	DefaultMaxZoom    = 19
	DefaultMaxSession = 1000
)

// DefaultCenter is the geographic center of the contiguous United States.
var DefaultCenter = geo.GeoPoint{Lat: 39.8283, Lng: -98.5795}

// Config represents the root configuration file structure.
type Config struct {
	Title       string        `yaml:"title,omitempty" json:"title"`
	Attribution string        `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	Center      *geo.GeoPoint `yaml:"center,omitempty" json:"center"`
	Tiles       Tiles         `yaml:"tiles" json:"tiles"`
	Zoom        int           `yaml:"zoom,omitempty" json:"zoom"`
	SessionTTL  time.Duration `yaml:"session_ttl,omitempty" json:"-"`
	MaxSessions int           `yaml:"max_sessions,omitempty" json:"-"`
}

// Tiles describes the base map tile source and the prefetch area.
type Tiles struct {
	// URL template with {z}, {x}, {y}, optional {tms_y} and {key}
	URL       string        `yaml:"url,omitempty" json:"-"`
	APIKey    string        `yaml:"api_key,omitempty" json:"-"`
	Dir       string        `yaml:"dir,omitempty" json:"-"`
	SouthWest *geo.GeoPoint `yaml:"south_west,omitempty" json:"-"`
	NorthEast *geo.GeoPoint `yaml:"north_east,omitempty" json:"-"`
	MinZoom   int           `yaml:"min_zoom,omitempty" json:"min_zoom"`
	MaxZoom   int           `yaml:"max_zoom,omitempty" json:"max_zoom"`
	Local     bool          `yaml:"local,omitempty" json:"local"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Title == "" {
		c.Title = "Lawn Sprinkler Design"
	}
	if c.Center == nil {
		center := DefaultCenter
		c.Center = &center
	}
	if c.Zoom <= 0 {
		c.Zoom = DefaultZoom
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = DefaultSessionTTL
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSession
	}
	if c.Tiles.URL == "" {
		c.Tiles.URL = DefaultTileURL
		if c.Attribution == "" {
			c.Attribution = "&copy; OpenStreetMap contributors"
		}
	}
	if c.Tiles.Dir == "" {
		c.Tiles.Dir = DefaultTilesDir
	}
	if c.Tiles.MaxZoom <= 0 {
		c.Tiles.MaxZoom = DefaultMaxZoom
	}
}

// Validate checks that configuration values are sane.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Center.Validate(); err != nil {
		errs = append(errs, "center: "+err.Error())
	}
	if c.Tiles.MinZoom < 0 || c.Tiles.MinZoom > c.Tiles.MaxZoom {
		errs = append(errs, fmt.Sprintf("tiles.min_zoom must be 0-%d, got %d", c.Tiles.MaxZoom, c.Tiles.MinZoom))
	}
	if c.Tiles.MaxZoom > 22 {
		errs = append(errs, fmt.Sprintf("tiles.max_zoom must be <= 22, got %d", c.Tiles.MaxZoom))
	}
	if (c.Tiles.SouthWest == nil) != (c.Tiles.NorthEast == nil) {
		errs = append(errs, "tiles.south_west and tiles.north_east must be set together")
	}
	if c.Tiles.SouthWest != nil && c.Tiles.NorthEast != nil {
		if err := c.Tiles.SouthWest.Validate(); err != nil {
			errs = append(errs, "tiles.south_west: "+err.Error())
		}
		if err := c.Tiles.NorthEast.Validate(); err != nil {
			errs = append(errs, "tiles.north_east: "+err.Error())
		}
		if c.Tiles.SouthWest.Lat > c.Tiles.NorthEast.Lat || c.Tiles.SouthWest.Lng > c.Tiles.NorthEast.Lng {
			errs = append(errs, "tiles.south_west must be south-west of tiles.north_east")
		}
	}
	if !strings.Contains(c.Tiles.URL, "{z}") {
		errs = append(errs, "tiles.url must contain {z}")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// TileURL returns the remote tile template with the API key substituted.
func (t Tiles) TileURL() string {
	return strings.ReplaceAll(t.URL, "{key}", t.APIKey)
}

// HasArea reports whether a prefetch area is configured.
func (t Tiles) HasArea() bool {
	return t.SouthWest != nil && t.NorthEast != nil
}
