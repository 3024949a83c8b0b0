package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarfeed/internal/adapter/repo"
	"jarfeed/internal/domain"
	"jarfeed/internal/http/handlers"
	"jarfeed/internal/infra"
	"jarfeed/internal/ingest"
	"jarfeed/internal/query"
	"jarfeed/internal/realtime"
)

type testServer struct {
	handler  http.Handler
	pipeline *ingest.Pipeline
}

func newTestServer(t *testing.T, mutate func(*infra.Config)) testServer {
	t.Helper()
	db, err := infra.OpenSQLite(":memory:")
	require.NoError(t, err)
	store := repo.NewDonationStoreSQLite(infra.NewSQLDB(db, infra.NopLogger()), db)
	require.NoError(t, store.Init(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "obs.html"), []byte("<h1>obs</h1>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(static, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := &infra.Config{
		DefaultLocale:       "uk",
		StaticDir:           static,
		RateLimitGeneral:    100,
		RateLimitGeneralPer: time.Minute,
		RateLimitTest:       2,
		RateLimitTestPer:    time.Minute,
		RateLimitBank:       5,
		RateLimitBankPer:    time.Minute,
	}
	if mutate != nil {
		mutate(cfg)
	}

	hub := realtime.NewHub(realtime.Options{}, infra.NopLogger())
	t.Cleanup(hub.Close)
	shadow := ingest.NewShadow()
	pipeline := ingest.NewPipeline(store, shadow, hub, infra.NopLogger())
	app := &handlers.App{
		Queries:     query.NewFacade(store, shadow, infra.NopLogger()),
		Ingest:      pipeline,
		JarTarget:   func() (string, string) { return "На фотоапарат", "" },
		Location:    time.UTC,
		Subscribers: hub.Count,
		Logger:      infra.NopLogger(),
	}
	return testServer{
		handler:  NewRouter(Deps{App: app, Config: cfg, Realtime: hub.ServeWS, Logger: infra.NopLogger()}),
		pipeline: pipeline,
	}
}

func (s testServer) get(path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "198.51.100.10:5555"
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouterServesDonationsFromStore(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.pipeline.Ingest(context.Background(), domain.Donation{ID: "a", Name: "X", Amount: decimal.NewFromInt(100), Timestamp: 1000})
	srv.pipeline.Ingest(context.Background(), domain.Donation{ID: "b", Name: "Y", Amount: decimal.NewFromInt(50), Timestamp: 2000})

	rr := srv.get("/api/donations/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Success bool `json:"success"`
		Data    struct {
			TotalAmount  float64 `json:"totalAmount"`
			TotalCount   int     `json:"totalCount"`
			UniqueDonors int     `json:"uniqueDonors"`
		} `json:"data"`
		Meta struct {
			Source string `json:"source"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 150.0, body.Data.TotalAmount)
	assert.Equal(t, 2, body.Data.TotalCount)
	assert.Equal(t, 2, body.Data.UniqueDonors)
	assert.Equal(t, "store", body.Meta.Source)

	rr = srv.get("/api/donations/recent?limit=1")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"id":"b"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouterTestDonationLimiter(t *testing.T) {
	srv := newTestServer(t, nil)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, srv.get("/api/test-donation").Code)
	}
	rr := srv.get("/api/test-donation")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	stats := srv.get("/api/donations/stats")
	assert.Contains(t, stats.Body.String(), `"totalCount":0`)
}

func TestRouterJarEndpointsWithoutBank(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, path := range []string{"/api/jars", "/api/jar/target", "/api/jar/camera"} {
		rr := srv.get(path)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, path)
	}
}

func TestRouterStaticPagesAndHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := srv.get("/obs")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "obs")

	rr = srv.get("/app.js")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = srv.get("/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)

	rr = srv.get("/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "jarfeed_") || strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestRouterCORSPreflight(t *testing.T) {
	srv := newTestServer(t, func(c *infra.Config) { c.AllowedOrigins = []string{"https://overlay.example"} })

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/donations/stats", nil)
	req.Header.Set("Origin", "https://overlay.example")
	srv.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://overlay.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterServesAPIDescription(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := srv.get("/api/openapi.json")
	require.Equal(t, http.StatusOK, rr.Code)
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	for _, path := range []string{"/api/donations/stats", "/api/donations/top", "/api/donations/recent", "/api/donations/latest", "/api/test-donation", "/api/jars", "/api/jar/target"} {
		assert.Contains(t, doc.Paths, path)
	}

	rr = srv.get("/api/docs")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "/api/openapi.json")
}
