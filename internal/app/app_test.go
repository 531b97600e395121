package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/btcarb/internal/config"
	"github.com/alanyoungcy/btcarb/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Defaults()
	return &cfg
}

func TestWireWithoutBackends(t *testing.T) {
	deps, cleanup, err := Wire(context.Background(), testConfig(), testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &service.MarkBook{}, deps.PriceCache)
	assert.Nil(t, deps.Locks)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.AuditStore)
	assert.Nil(t, deps.Journal())
	assert.Nil(t, deps.BlobWriter)
	assert.Nil(t, deps.Notifier)
	assert.Empty(t, deps.Health)
}

func TestWireBuildsNotifier(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.DiscordWebhookURL = "http://127.0.0.1:1/webhook"

	deps, cleanup, err := Wire(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, deps.Notifier)
}

func TestBuildEngine(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	deps, cleanup, err := Wire(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	eng, err := buildEngine(ctx, cfg, deps, false, testLogger())
	require.NoError(t, err)
	assert.NotNil(t, eng.Monitor)
	assert.NotNil(t, eng.Executor)
	assert.Zero(t, eng.Positions.OpenCount())
	assert.NoError(t, eng.Risk.PreTradeCheck(ctx))
}

func TestBuildEngineErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown detector mode", func(c *config.Config) { c.Detector.Mode = "fastest" }},
		{"bad private key", func(c *config.Config) { c.Polymarket.PrivateKey = "not-hex" }},
		{"unknown protocol", func(c *config.Config) { c.Bitcoin.Protocol = "dogecoin" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			deps, cleanup, err := Wire(ctx, cfg, testLogger())
			require.NoError(t, err)
			defer cleanup()

			_, err = buildEngine(ctx, cfg, deps, false, testLogger())
			assert.Error(t, err)
		})
	}
}

func TestBTCMarketSource(t *testing.T) {
	cfg := testConfig()

	src, err := btcMarketSource(cfg)
	require.NoError(t, err)
	assert.Equal(t, "lightning", string(src.Venue()))

	cfg.Bitcoin.Protocol = "stacks"
	_, err = btcMarketSource(cfg)
	assert.True(t, errors.Is(err, errNoBTCSource))
}

func TestBuildServerRoutes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	deps, cleanup, err := Wire(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer cleanup()

	eng, err := buildEngine(ctx, cfg, deps, false, testLogger())
	require.NoError(t, err)

	started := time.Now().UTC().Add(-time.Minute)
	srv, hub := buildServer(cfg, deps, eng, started, testLogger())
	require.NotNil(t, hub)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "monitor", status["mode"])
	assert.Equal(t, "lightning", status["btc_protocol"])
	assert.NotContains(t, status, "last_tick")

	resp, err = http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/positions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// No journal without Postgres.
	resp, err = http.Get(ts.URL + "/api/trades")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "replay"

	a := New(cfg, testLogger())
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}

func TestNextExport(t *testing.T) {
	tests := []struct {
		now  time.Time
		want time.Time
	}{
		{
			now:  time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 5, 0, 5, 0, 0, time.UTC),
		},
		{
			now:  time.Date(2026, 3, 4, 0, 1, 0, 0, time.UTC),
			want: time.Date(2026, 3, 4, 0, 5, 0, 0, time.UTC),
		},
		{
			now:  time.Date(2026, 3, 4, 0, 5, 0, 0, time.UTC),
			want: time.Date(2026, 3, 5, 0, 5, 0, 0, time.UTC),
		},
		{
			now:  time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC),
			want: time.Date(2027, 1, 1, 0, 5, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nextExport(tt.now), tt.now.String())
	}
}
