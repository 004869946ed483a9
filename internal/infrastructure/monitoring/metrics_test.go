package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecordMeasurement(t *testing.T) {
	m := NewMetrics()

	m.RecordMeasurement(0.01, false)
	m.RecordMeasurement(0.12, true)
	m.RecordMeasurement(0.0, false)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.PacketLoss))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Measurements.WithLabelValues(OutcomeNormal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Measurements.WithLabelValues(OutcomeExceeded)))
}

func TestSetSchedule(t *testing.T) {
	m := NewMetrics()
	at := time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC)

	m.SetSchedule(at)
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.ScheduledAt))

	m.SetSchedule(time.Time{})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ScheduledAt))
}

func TestTimer(t *testing.T) {
	m := NewMetrics()

	NewTimer(m).Stop(ResultFailure)
	NewTimer(m).Stop(ResultSuccess)
	NewTimer(m).Stop(ResultFailure)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RestartAttempts.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RestartAttempts.WithLabelValues(ResultSuccess)))
}

func TestServerEndpoints(t *testing.T) {
	m := NewMetrics()
	m.RecordMeasurement(0.5, true)
	srv := NewServer("127.0.0.1:0", m, zap.NewNop())

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "plwatchdog_packet_loss_ratio 0.5")
	})

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})
}
