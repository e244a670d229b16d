package httphandler

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swapwatch/swapwatch-backend/internal/data"
)

func Test_HealthHandler(t *testing.T) {
	kv, err := data.OpenKV(filepath.Join(t.TempDir(), "swapwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = kv.Close()
	})

	handler := HealthHandler{
		Version:   "x.y.z",
		ServiceID: "swapwatch-backend",
		ReleaseID: "1234567890abcdef",
		KV:        kv,
	}

	t.Run("returns 200 when the kv store is reachable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		wantBody := `{
			"status": "pass",
			"version": "x.y.z",
			"service_id": "swapwatch-backend",
			"release_id": "1234567890abcdef",
			"services": {
				"kv_store": "pass"
			}
		}`
		assert.JSONEq(t, wantBody, rr.Body.String())
	})

	t.Run("returns 503 when the kv store is closed", func(t *testing.T) {
		require.NoError(t, kv.Close())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		wantBody := `{
			"status": "fail",
			"version": "x.y.z",
			"service_id": "swapwatch-backend",
			"release_id": "1234567890abcdef",
			"services": {
				"kv_store": "fail"
			}
		}`
		assert.JSONEq(t, wantBody, rr.Body.String())
	})
}
