// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/woozymasta/sprinkler/internal/designer"
	"github.com/woozymasta/sprinkler/internal/geo"
	"github.com/woozymasta/sprinkler/internal/session"

	"github.com/rs/zerolog/log"
)

const (
	etagCap      = 64
	maxBodyBytes = 1 << 20
)

// LocalTileURL is the template the page uses for prefetched tiles.
const LocalTileURL = "/tiles/{z}/{x}/{y}.webp"

type stateResponse struct {
	State   designer.State               `json:"state"`
	Overlay geo.GeoJSONFeatureCollection `json:"overlay"`
}

type catalogEntry struct {
	designer.SprinklerType
	RadiusMeters float64 `json:"radius_m"`
}

type mapConfigResponse struct {
	Title       string       `json:"title"`
	Attribution string       `json:"attribution,omitempty"`
	TileURL     string       `json:"tile_url"`
	Center      geo.GeoPoint `json:"center"`
	Zoom        int          `json:"zoom"`
	MinZoom     int          `json:"min_zoom"`
	MaxZoom     int          `json:"max_zoom"`
}

type boundaryRequest struct {
	Points []geo.GeoPoint `json:"points"`
}

type selectionRequest struct {
	Type string `json:"type"`
}

// Routes registers every handler on a new mux.
func (s *ServerContext) Routes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/catalog", s.HandleCatalog)
	mux.HandleFunc("GET /api/config", s.HandleMapConfig)
	mux.HandleFunc("GET /api/state", s.HandleState)
	mux.HandleFunc("POST /api/boundary", s.HandleBoundary)
	mux.HandleFunc("POST /api/reset", s.HandleReset)
	mux.HandleFunc("PUT /api/selection", s.HandleSelection)
	mux.HandleFunc("POST /api/clicks", s.HandleClick)
	mux.HandleFunc("DELETE /api/sprinklers", s.HandleClear)
	mux.HandleFunc("DELETE /api/sprinklers/{id}", s.HandleDelete)
	mux.HandleFunc("GET /tiles/{z}/{x}/{y}", s.HandleTile)
	mux.HandleFunc("GET /favicon.svg", s.HandleFavicon)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.HandleFunc("GET /", s.HandleIndex)
	return mux
}

// HandleCatalog serves the sprinkler catalog with radii in both units.
func (s *ServerContext) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	types := designer.Catalog()
	out := make([]catalogEntry, 0, len(types))
	for _, t := range types {
		out = append(out, catalogEntry{SprinklerType: t, RadiusMeters: t.RadiusMeters()})
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeJSON(w, http.StatusOK, out)
}

// HandleMapConfig serves the base map settings used by the page.
func (s *ServerContext) HandleMapConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config

	resp := mapConfigResponse{
		Title:       cfg.Title,
		Attribution: cfg.Attribution,
		TileURL:     cfg.Tiles.TileURL(),
		Center:      *cfg.Center,
		Zoom:        cfg.Zoom,
		MinZoom:     0,
		MaxZoom:     cfg.Tiles.MaxZoom,
	}
	if cfg.Tiles.Local {
		resp.TileURL = LocalTileURL
		resp.MinZoom = cfg.Tiles.MinZoom
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleState serves the current design without changing it.
// Callers without a live session get the initial state and no session is started.
func (s *ServerContext) HandleState(w http.ResponseWriter, r *http.Request) {
	st := designer.NewState().Snapshot()

	if c, err := r.Cookie(session.CookieName); err == nil && session.ValidID(c.Value) {
		if loop, ok := s.Sessions.Lookup(c.Value); ok {
			if st, err = loop.Snapshot(r.Context()); err != nil {
				log.Error().Err(err).Msg("Designer snapshot failed")
				writeError(w, http.StatusServiceUnavailable, err)
				return
			}
		}
	}

	writeState(w, st)
}

// HandleBoundary commits a completed polygon.
func (s *ServerContext) HandleBoundary(w http.ResponseWriter, r *http.Request) {
	var req boundaryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Points) < 3 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("boundary needs at least 3 points, got %d", len(req.Points)))
		return
	}
	if err := geo.ValidatePath(req.Points); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.dispatch(w, r, designer.CompleteBoundaryCmd(req.Points))
}

// HandleReset discards the property and returns to drawing mode.
func (s *ServerContext) HandleReset(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, designer.ResetPropertyCmd())
}

// HandleSelection selects a sprinkler type, or leaves placement mode for an empty type.
func (s *ServerContext) HandleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.dispatch(w, r, designer.SelectTypeCmd(req.Type))
}

// HandleClick reports a click on the base map.
func (s *ServerContext) HandleClick(w http.ResponseWriter, r *http.Request) {
	var p geo.GeoPoint
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.dispatch(w, r, designer.MapClickCmd(p))
}

// HandleClear removes every placed sprinkler.
func (s *ServerContext) HandleClear(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, designer.ClearSprinklersCmd())
}

// HandleDelete removes one sprinkler. Unknown ids are not an error.
func (s *ServerContext) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid sprinkler id %q", r.PathValue("id")))
		return
	}

	s.dispatch(w, r, designer.DeleteSprinklerCmd(id))
}

// HandleFavicon serves the site icon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	etag := s.IndexETag

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleTile serves a prefetched WebP tile, or a transparent one when missing.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	z, errZ := strconv.Atoi(r.PathValue("z"))
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(strings.TrimSuffix(r.PathValue("y"), ".webp"))
	if errZ != nil || errX != nil || errY != nil || z < 0 || x < 0 || y < 0 {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.Config.Tiles.Dir, strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y)+".webp")
	if s.serveFile(w, r, path, "image/webp") {
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.TransparentTile)
}

// dispatch routes cmd to the caller's designer, starting one when needed,
// and writes the resulting state.
func (s *ServerContext) dispatch(w http.ResponseWriter, r *http.Request, cmd designer.Command) {
	loop := s.Sessions.Get(sessionID(w, r))

	st, err := loop.Dispatch(r.Context(), cmd)
	switch {
	case errors.Is(err, designer.ErrUnknownType):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		log.Error().Err(err).Str("kind", string(cmd.Kind)).Msg("Designer command failed")
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	writeState(w, st)
}

func writeState(w http.ResponseWriter, st designer.State) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stateResponse{State: st, Overlay: designer.Overlay(st)})
}

// sessionID returns the caller's session id, issuing a cookie when absent.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && session.ValidID(c.Value) {
		return c.Value
	}

	id := session.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return id
}

// RouteLabel names the matched route pattern for metrics.
func RouteLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Warn().Err(err).Int("status", status).Msg("Request rejected")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// serveFile tries to serve a file from disk with ETag generation.
// It returns true if the file was found and served (or 304).
func (s *ServerContext) serveFile(w http.ResponseWriter, r *http.Request, path string, contentType string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	http.ServeFile(w, r, path)
	return true
}
