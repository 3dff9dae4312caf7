package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sensebox/ttn-osem-integration/internal/config"
	"github.com/sensebox/ttn-osem-integration/internal/storage"
)

func TestMonitoring(t *testing.T) {
	d, mock, err := sqlmock.New()
	require.NoError(t, err)
	storage.SetDB(sqlx.NewDb(d, "sqlmock"))

	var c config.Config
	c.Monitoring.PrometheusEndpoint = true
	c.Monitoring.HealthcheckEndpoint = true
	mux := newMux(c)

	t.Run("metrics", func(t *testing.T) {
		assert := require.New(t)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(http.StatusOK, rec.Code)
		assert.Contains(rec.Body.String(), "go_goroutines")
	})

	t.Run("healthy", func(t *testing.T) {
		assert := require.New(t)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(http.StatusOK, rec.Code)
	})

	t.Run("unhealthy", func(t *testing.T) {
		assert := require.New(t)

		mock.ExpectClose()
		assert.NoError(d.Close())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(http.StatusServiceUnavailable, rec.Code)
		assert.Equal("postgresql ping error: sql: database is closed", rec.Body.String())
	})
}
