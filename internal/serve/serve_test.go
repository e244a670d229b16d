package serve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/swapwatch/swapwatch-backend/internal/crashtracker"
	"github.com/swapwatch/swapwatch-backend/internal/message"
	"github.com/swapwatch/swapwatch-backend/internal/monitor"
)

type mockHTTPServer struct {
	mock.Mock
}

func (m *mockHTTPServer) Run(conf supporthttp.Config) {
	m.Called(conf)
}

func newTestServeOptions(t *testing.T) ServeOptions {
	t.Helper()

	monitorService := monitor.MonitorService{}
	err := monitorService.Start(monitor.MetricOptions{MetricType: monitor.MetricTypePrometheus, Environment: "test"})
	require.NoError(t, err)

	return ServeOptions{
		CrashTrackerClient: &crashtracker.MockCrashTrackerClient{},
		DatabasePath:       filepath.Join(t.TempDir(), "swapwatch.db"),
		Environment:        "test",
		GitCommit:          "1234567890abcdef",
		MonitorService:     &monitorService,
		Port:               8001,
		PushNotifierType:   message.PushNotifierTypeDryRun,
		Version:            "x.y.z",
		WebhookSecret:      "test-webhook-secret",
		WebhookReplayTTL:   5 * time.Minute,
		CorsAllowedOrigins: []string{"*"},
	}
}

func Test_Serve(t *testing.T) {
	opts := newTestServeOptions(t)

	mHTTPServer := mockHTTPServer{}
	mHTTPServer.On("Run", mock.AnythingOfType("http.Config")).Run(func(args mock.Arguments) {
		conf, ok := args.Get(0).(supporthttp.Config)
		require.True(t, ok, "should be of type supporthttp.Config")
		assert.Equal(t, ":8001", conf.ListenAddr)
		assert.Equal(t, time.Minute*3, conf.TCPKeepAlive)
		assert.Equal(t, time.Second*50, conf.ShutdownGracePeriod)
		assert.Equal(t, time.Second*5, conf.ReadTimeout)
		assert.Equal(t, time.Second*35, conf.WriteTimeout)
		assert.Equal(t, time.Minute*2, conf.IdleTimeout)
		assert.Nil(t, conf.TLS)

		// Exercise the shutdown path so the registry and the kv store close.
		conf.OnStopping()
	}).Once()

	err := Serve(opts, &mHTTPServer)
	require.NoError(t, err)
	mHTTPServer.AssertExpectations(t)
}

func Test_handleHTTP_routes(t *testing.T) {
	opts := newTestServeOptions(t)
	require.NoError(t, opts.SetupDependencies())
	t.Cleanup(func() {
		opts.registry.Shutdown()
		require.NoError(t, opts.kv.Close())
	})

	handler := handleHTTP(opts)

	t.Run("GET /health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		wantBody := `{
			"status": "pass",
			"version": "x.y.z",
			"service_id": "serve",
			"release_id": "1234567890abcdef",
			"services": {"kv_store": "pass"}
		}`
		assert.JSONEq(t, wantBody, rr.Body.String())
	})

	t.Run("room lifecycle through the mux", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/rooms", strings.NewReader(`{"code": "abc123"}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		req = httptest.NewRequest(http.MethodGet, "/rooms/abc123", nil)
		rr = httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"code":"abc123"`)
	})

	t.Run("malformed room code is rejected by the middleware", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/rooms/bad%20code", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid room code.")
	})

	t.Run("webhook without a signature is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhook/coinbase", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("options preflight is allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func Test_ServeOptions_SetupDependencies(t *testing.T) {
	opts := newTestServeOptions(t)

	require.NoError(t, opts.SetupDependencies())
	t.Cleanup(func() {
		opts.registry.Shutdown()
		require.NoError(t, opts.kv.Close())
	})

	assert.NotNil(t, opts.Models)
	assert.NotNil(t, opts.registry)
	assert.NotNil(t, opts.ingestService)
	assert.False(t, opts.filterSyncService.IsConfigured())

	// RearmAlarms on an empty store is a no-op.
	codes, err := opts.Models.WalletIndex.AllTrackedWallets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, codes)
}
