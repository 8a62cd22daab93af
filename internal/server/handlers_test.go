package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/woozymasta/sprinkler/internal/config"
	"github.com/woozymasta/sprinkler/internal/designer"
	"github.com/woozymasta/sprinkler/internal/geo"
	"github.com/woozymasta/sprinkler/internal/metrics"
)

type testClient struct {
	t    *testing.T
	is   *is.I
	sc   *ServerContext
	srv  *httptest.Server
	http *http.Client
}

func newTestClient(t *testing.T, cfg *config.Config) *testClient {
	t.Helper()
	is := is.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if cfg == nil {
		cfg = config.Default()
	}
	sc, err := NewServerContext(ctx, cfg)
	is.NoErr(err)

	srv := httptest.NewServer(metrics.Middleware(RouteLabel, sc.Routes(metrics.Handler())))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	is.NoErr(err)

	return &testClient{t: t, is: is, sc: sc, srv: srv, http: &http.Client{Jar: jar}}
}

func (c *testClient) do(method, path string, body any) (int, []byte) {
	c.t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		c.is.NoErr(err)
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.srv.URL+path, rd)
	c.is.NoErr(err)
	resp, err := c.http.Do(req)
	c.is.NoErr(err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	c.is.NoErr(err)
	return resp.StatusCode, out
}

func (c *testClient) state(method, path string, body any) stateResponse {
	c.t.Helper()

	status, raw := c.do(method, path, body)
	c.is.Equal(status, http.StatusOK)

	var resp stateResponse
	c.is.NoErr(json.Unmarshal(raw, &resp))
	return resp
}

var yard = []geo.GeoPoint{
	{Lat: 39.999, Lng: -75.002},
	{Lat: 39.999, Lng: -74.999},
	{Lat: 40.002, Lng: -74.999},
	{Lat: 40.002, Lng: -75.002},
}

func TestDesignScenarioOverHTTP(t *testing.T) {
	c := newTestClient(t, nil)
	is := c.is

	st := c.state(http.MethodGet, "/api/state", nil)
	is.True(st.State.DrawingMode)
	is.Equal(len(st.Overlay.Features), 0)

	st = c.state(http.MethodPost, "/api/boundary", boundaryRequest{Points: yard})
	is.Equal(len(st.State.Boundary), 4)
	is.True(!st.State.DrawingMode)
	is.Equal(len(st.Overlay.Features), 1)

	c.state(http.MethodPut, "/api/selection", selectionRequest{Type: designer.Rotor})
	st = c.state(http.MethodPost, "/api/clicks", geo.GeoPoint{Lat: 40.0, Lng: -75.0})
	is.Equal(len(st.State.Sprinklers), 1)
	is.Equal(st.State.Sprinklers[0].Type, designer.Rotor)
	is.Equal(st.State.Sprinklers[0].Position, geo.GeoPoint{Lat: 40.0, Lng: -75.0})

	c.state(http.MethodPut, "/api/selection", selectionRequest{Type: designer.Spray})
	st = c.state(http.MethodPost, "/api/clicks", geo.GeoPoint{Lat: 40.001, Lng: -75.001})
	is.Equal(len(st.State.Sprinklers), 2)
	is.Equal(st.State.Sprinklers[1].Type, designer.Spray)
	is.Equal(len(st.Overlay.Features), 3)

	first := st.State.Sprinklers[0].ID
	st = c.state(http.MethodDelete, fmt.Sprintf("/api/sprinklers/%d", first), nil)
	is.Equal(len(st.State.Sprinklers), 1)
	is.Equal(st.State.Sprinklers[0].Type, designer.Spray)

	// deleting again is a no-op
	st = c.state(http.MethodDelete, fmt.Sprintf("/api/sprinklers/%d", first), nil)
	is.Equal(len(st.State.Sprinklers), 1)

	st = c.state(http.MethodDelete, "/api/sprinklers", nil)
	is.Equal(len(st.State.Sprinklers), 0)
	is.Equal(len(st.State.Boundary), 4)

	st = c.state(http.MethodPost, "/api/reset", nil)
	is.Equal(len(st.State.Boundary), 0)
	is.True(st.State.DrawingMode)
	is.Equal(st.State.Selected, "")
}

func TestClickBeforeBoundaryIsIgnored(t *testing.T) {
	c := newTestClient(t, nil)

	c.state(http.MethodPut, "/api/selection", selectionRequest{Type: designer.Rotor})
	st := c.state(http.MethodPost, "/api/clicks", geo.GeoPoint{Lat: 40, Lng: -75})
	c.is.Equal(len(st.State.Sprinklers), 0)
}

func TestSessionsDoNotShareState(t *testing.T) {
	c := newTestClient(t, nil)
	c.state(http.MethodPost, "/api/boundary", boundaryRequest{Points: yard})

	other := &http.Client{}
	resp, err := other.Get(c.srv.URL + "/api/state")
	c.is.NoErr(err)
	defer resp.Body.Close()

	var st stateResponse
	c.is.NoErr(json.NewDecoder(resp.Body).Decode(&st))
	c.is.True(st.State.DrawingMode)
	c.is.Equal(len(st.State.Boundary), 0)
}

func TestBadRequests(t *testing.T) {
	c := newTestClient(t, nil)
	is := c.is

	status, _ := c.do(http.MethodPut, "/api/selection", selectionRequest{Type: "drip"})
	is.Equal(status, http.StatusBadRequest)

	status, _ = c.do(http.MethodPost, "/api/boundary", boundaryRequest{Points: yard[:2]})
	is.Equal(status, http.StatusBadRequest)

	status, _ = c.do(http.MethodPost, "/api/boundary", boundaryRequest{Points: []geo.GeoPoint{{Lat: 91}, {Lat: 1}, {Lat: 2}}})
	is.Equal(status, http.StatusBadRequest)

	status, _ = c.do(http.MethodPost, "/api/clicks", map[string]any{"lat": 1, "lng": 1, "zoom": 3})
	is.Equal(status, http.StatusBadRequest)

	status, _ = c.do(http.MethodDelete, "/api/sprinklers/abc", nil)
	is.Equal(status, http.StatusBadRequest)

	status, _ = c.do(http.MethodGet, "/nope", nil)
	is.Equal(status, http.StatusNotFound)
}

func TestCatalogAndConfig(t *testing.T) {
	c := newTestClient(t, nil)
	is := c.is

	status, raw := c.do(http.MethodGet, "/api/catalog", nil)
	is.Equal(status, http.StatusOK)

	var cat []catalogEntry
	is.NoErr(json.Unmarshal(raw, &cat))
	is.Equal(len(cat), 2)
	is.Equal(cat[0].Key, designer.Rotor)
	is.Equal(cat[0].RadiusFeet, 30.0)
	is.Equal(cat[0].RadiusMeters, cat[0].SprinklerType.RadiusMeters())

	status, raw = c.do(http.MethodGet, "/api/config", nil)
	is.Equal(status, http.StatusOK)

	var mc mapConfigResponse
	is.NoErr(json.Unmarshal(raw, &mc))
	is.Equal(mc.Center, config.DefaultCenter)
	is.Equal(mc.Zoom, config.DefaultZoom)
	is.Equal(mc.TileURL, config.DefaultTileURL)
}

func TestIndexAndETag(t *testing.T) {
	c := newTestClient(t, nil)
	is := c.is

	resp, err := c.http.Get(c.srv.URL + "/")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)

	etag := resp.Header.Get("ETag")
	is.True(etag != "")

	req, _ := http.NewRequest(http.MethodGet, c.srv.URL+"/", nil)
	req.Header.Set("If-None-Match", etag)
	resp, err = c.http.Do(req)
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNotModified)
	is.Equal(etag, c.sc.IndexETag)
}

func TestContentETagDependsOnBytes(t *testing.T) {
	is := is.New(t)

	a := contentETag([]byte("<p>rotor</p>"))
	b := contentETag([]byte("<p>spray</p>"))
	is.True(a != b)
	is.Equal(a, contentETag([]byte("<p>rotor</p>")))
	is.True(strings.HasPrefix(a, `"`) && strings.HasSuffix(a, `"`))
}

func TestReadingStateDoesNotStartSessions(t *testing.T) {
	c := newTestClient(t, nil)
	is := c.is

	for range 20 {
		resp, err := http.Get(c.srv.URL + "/api/state")
		is.NoErr(err)
		resp.Body.Close()
		is.Equal(resp.StatusCode, http.StatusOK)
		is.Equal(len(resp.Cookies()), 0)
	}
	is.Equal(c.sc.Sessions.Len(), 0)

	st := c.state(http.MethodGet, "/api/state", nil)
	is.True(st.State.DrawingMode)
	is.Equal(c.sc.Sessions.Len(), 0)

	c.state(http.MethodPost, "/api/boundary", boundaryRequest{Points: yard})
	is.Equal(c.sc.Sessions.Len(), 1)

	st = c.state(http.MethodGet, "/api/state", nil)
	is.Equal(len(st.State.Boundary), 4)
	is.Equal(c.sc.Sessions.Len(), 1)
}

func TestSessionLimitFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MaxSessions = 3
	c := newTestClient(t, cfg)
	is := c.is

	for range 10 {
		req, err := http.NewRequest(http.MethodPost, c.srv.URL+"/api/reset", nil)
		is.NoErr(err)
		resp, err := http.DefaultClient.Do(req)
		is.NoErr(err)
		resp.Body.Close()
		is.Equal(resp.StatusCode, http.StatusOK)
	}
	is.Equal(c.sc.Sessions.Len(), 3)
}

func TestTilesFallBackToTransparent(t *testing.T) {
	cfg := config.Default()
	cfg.Tiles.Dir = t.TempDir()
	cfg.Tiles.Local = true
	c := newTestClient(t, cfg)
	is := c.is

	path := filepath.Join(cfg.Tiles.Dir, "3", "1", "2.webp")
	is.NoErr(os.MkdirAll(filepath.Dir(path), 0o755))
	is.NoErr(os.WriteFile(path, []byte("tile"), 0o644))

	status, body := c.do(http.MethodGet, "/tiles/3/1/2.webp", nil)
	is.Equal(status, http.StatusOK)
	is.Equal(string(body), "tile")

	status, body = c.do(http.MethodGet, "/tiles/3/1/3.webp", nil)
	is.Equal(status, http.StatusOK)
	is.True(len(body) > 0)
	is.True(string(body) != "tile")

	status, _ = c.do(http.MethodGet, "/tiles/3/x/2.webp", nil)
	is.Equal(status, http.StatusNotFound)

	status, raw := c.do(http.MethodGet, "/api/config", nil)
	is.Equal(status, http.StatusOK)
	var mc mapConfigResponse
	is.NoErr(json.Unmarshal(raw, &mc))
	is.Equal(mc.TileURL, LocalTileURL)
}

func TestMetricsEndpoint(t *testing.T) {
	c := newTestClient(t, nil)
	c.state(http.MethodGet, "/api/state", nil)

	status, body := c.do(http.MethodGet, "/metrics", nil)
	c.is.Equal(status, http.StatusOK)
	c.is.True(bytes.Contains(body, []byte("sprinkler_http_requests_total")))
}
