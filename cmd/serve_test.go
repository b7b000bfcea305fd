package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/title-relay/internal/config"
	"github.com/JakeFAU/title-relay/internal/override"
)

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 6643, ReadHeaderTimeout: 5 * time.Second, ShutdownTimeout: time.Second},
		Fetch: config.FetchConfig{
			MaxPayloadSize:    1_000_000,
			MaxDecodedSize:    10_000_000,
			MaxRedirects:      5,
			Timeout:           3 * time.Second,
			AdminContact:      "ops@example.com",
			PreferredLanguage: "en",
		},
		Watchdog: config.WatchdogConfig{Timeout: 3 * time.Second},
		Metrics:  config.MetricsConfig{Port: 9090},
	}
}

func TestBuildHandler_ServesHealthAndOverrides(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Overrides = []override.Spec{{Pattern: `^https?://intranet\.example/?$`, Title: "Intranet"}}
	handler, err := buildHandler(cfg, zap.NewNop())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Healthy", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/https/intranet.example/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Intranet", rec.Body.String())
}

func TestBuildHandler_RejectsBadOverride(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Overrides = []override.Spec{{Pattern: `(`, Title: "broken"}}
	_, err := buildHandler(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestWatchdogTimeout(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	cfg := config.WatchdogConfig{Timeout: 3 * time.Second}

	require.Equal(t, 3*time.Second, watchdogTimeout(cfg, false, logger))
	require.Zero(t, watchdogTimeout(cfg, true, logger))

	cfg.Disabled = true
	require.Zero(t, watchdogTimeout(cfg, false, logger))
}

func TestAdminServer_ExposesMetrics(t *testing.T) {
	t.Parallel()

	admin := newAdminServer(testConfig())
	require.Equal(t, ":9090", admin.Addr)

	rec := httptest.NewRecorder()
	admin.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "relay_")
}

func TestRootCmd_HasServe(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	require.Equal(t, "serve", serve.Name())
	require.NotNil(t, root.PersistentFlags().Lookup("config"))
}
