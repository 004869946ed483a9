package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PLWD_ROUTER_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "192.168.0.1", cfg.Router.IP)
	assert.Equal(t, "secret", cfg.Router.Password)
	assert.Equal(t, 3, cfg.Router.Attempts)
	assert.Equal(t, time.Duration(0), cfg.Router.Timeout.Duration())
	assert.Equal(t, "1.1.1.1", cfg.Watch.PingTarget)
	assert.Equal(t, 30*time.Minute, cfg.Watch.BetweenMeasurements.Duration())
	assert.Equal(t, 3*time.Minute, cfg.Watch.MeasurementDuration.Duration())
	assert.Equal(t, 0.04, cfg.Watch.TooHighThreshold)
	assert.Equal(t, TimeOfDay{Hour: 5}, cfg.Watch.RestartTime)
	assert.Equal(t, 4, cfg.Watch.CancelAfterNormal)
	assert.Equal(t, 30*time.Minute, cfg.Watch.DelayAfterRestart.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PLWD_ROUTER_PASSWORD", "secret")
	t.Setenv("PLWD_ROUTER_IP", "10.0.0.1")
	t.Setenv("PLWD_DURATION_BETWEEN_MEASUREMENTS_MS", "60000")
	t.Setenv("PLWD_TOO_HIGH_THRESHOLD", "0.1")
	t.Setenv("PLWD_RESTART_TIME", "03:30:15")
	t.Setenv("PLWD_CANCEL_PENDING_AFTER_NORMAL_MEASUREMENTS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", cfg.Router.IP)
	assert.Equal(t, time.Minute, cfg.Watch.BetweenMeasurements.Duration())
	assert.Equal(t, 0.1, cfg.Watch.TooHighThreshold)
	assert.Equal(t, TimeOfDay{Hour: 3, Minute: 30, Second: 15}, cfg.Watch.RestartTime)
	assert.Equal(t, 2, cfg.Watch.CancelAfterNormal)
}

func TestLoadMissingPassword(t *testing.T) {
	t.Setenv("PLWD_ROUTER_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PLWD_ROUTER_PASSWORD")
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "millis not a number", key: "PLWD_MEASUREMENT_DURATION_MS", value: "3m"},
		{name: "bad time of day", key: "PLWD_RESTART_TIME", value: "25:00"},
		{name: "threshold above one", key: "PLWD_TOO_HIGH_THRESHOLD", value: "1.5"},
		{name: "zero cancel count", key: "PLWD_CANCEL_PENDING_AFTER_NORMAL_MEASUREMENTS", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PLWD_ROUTER_PASSWORD", "secret")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestTimeOfDayOn(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	day := time.Date(2024, 3, 9, 17, 45, 0, 0, loc)

	got := TimeOfDay{Hour: 5, Minute: 10}.On(day)
	assert.Equal(t, time.Date(2024, 3, 9, 5, 10, 0, 0, loc), got)
	assert.Equal(t, "05:10", TimeOfDay{Hour: 5, Minute: 10}.String())
	assert.Equal(t, "05:10:07", TimeOfDay{Hour: 5, Minute: 10, Second: 7}.String())
}

func TestUsageListsVariables(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Usage(&buf))

	for _, key := range []string{
		"PLWD_ROUTER_IP",
		"PLWD_ROUTER_PASSWORD",
		"PLWD_PING_TARGET",
		"PLWD_DURATION_BETWEEN_MEASUREMENTS_MS",
		"PLWD_TOO_HIGH_THRESHOLD",
		"PLWD_RESTART_TIME",
		"PLWD_CANCEL_PENDING_AFTER_NORMAL_MEASUREMENTS",
		"PLWD_MEASUREMENT_DELAY_AFTER_RESTART_MS",
	} {
		assert.Contains(t, buf.String(), key)
	}
}

func TestDefaultValidatesWithPassword(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Router.Password = "secret"
	assert.NoError(t, cfg.Validate())
}
