package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "PLWD"

// Config holds all daemon configuration. Sections are embedded so that
// envconfig keeps the variable names flat (PLWD_ROUTER_IP, not
// PLWD_ROUTER_ROUTER_IP).
type Config struct {
	Router
	Watch
	Logging
	Metrics
}

// Router holds router access configuration.
type Router struct {
	IP       string  `envconfig:"ROUTER_IP" default:"192.168.0.1" desc:"Vodafone Station address"`
	Password string  `envconfig:"ROUTER_PASSWORD" required:"true" desc:"Vodafone Station admin password"`
	Attempts int     `envconfig:"RESTART_ATTEMPTS" default:"3" desc:"Immediate restart attempts before giving up until the next cycle"`
	Timeout  Millis  `envconfig:"HTTP_TIMEOUT_MS" default:"0" desc:"Per-request timeout toward the router, 0 keeps the transport default"`
	RPS      float64 `envconfig:"ROUTER_RPS" default:"0" desc:"Request rate limit toward the router, 0 is unlimited"`
}

// Watch holds measurement and scheduling configuration.
type Watch struct {
	PingTarget          string    `envconfig:"PING_TARGET" default:"1.1.1.1" desc:"The host to measure the packet loss with"`
	PingInterval        string    `envconfig:"PING_INTERVAL" default:"0.2" desc:"Seconds between echo requests"`
	BetweenMeasurements Millis    `envconfig:"DURATION_BETWEEN_MEASUREMENTS_MS" default:"1800000" desc:"Delay between measurements"`
	MeasurementDuration Millis    `envconfig:"MEASUREMENT_DURATION_MS" default:"180000" desc:"Duration of a single measurement"`
	TooHighThreshold    float64   `envconfig:"TOO_HIGH_THRESHOLD" default:"0.04" desc:"If this packet loss ratio is reached, a router restart is scheduled"`
	RestartTime         TimeOfDay `envconfig:"RESTART_TIME" default:"05:00" desc:"The time of day at which the router should be restarted"`
	CancelAfterNormal   int       `envconfig:"CANCEL_PENDING_AFTER_NORMAL_MEASUREMENTS" default:"4" desc:"After this number of normal measurements in a row, a pending restart is canceled"`
	DelayAfterRestart   Millis    `envconfig:"MEASUREMENT_DELAY_AFTER_RESTART_MS" default:"1800000" desc:"The duration to wait until measurements are resumed after a router restart"`
}

// Logging holds logging configuration.
type Logging struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" desc:"Log level (debug, info, warn, error)"`
	Development bool   `envconfig:"LOG_DEV" default:"false" desc:"Colored development log output"`
}

// Metrics holds the Prometheus listener configuration.
type Metrics struct {
	Addr string `envconfig:"METRICS_ADDR" default:"" desc:"Listen address for /metrics, empty disables it"`
}

// Millis is a duration given in milliseconds.
type Millis time.Duration

// Decode implements envconfig.Decoder.
func (m *Millis) Decode(value string) error {
	ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid millisecond value %q: %w", value, err)
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

// Duration returns m as a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m)
}

func (m Millis) String() string {
	return time.Duration(m).String()
}

// TimeOfDay is a wall clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// Decode implements envconfig.Decoder. Accepts HH:MM or HH:MM:SS.
func (t *TimeOfDay) Decode(value string) error {
	value = strings.TrimSpace(value)
	var (
		parsed time.Time
		err    error
	)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if parsed, err = time.Parse(layout, value); err == nil {
			*t = TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute(), Second: parsed.Second()}
			return nil
		}
	}
	return fmt.Errorf("invalid time of day %q, expected HH:MM or HH:MM:SS", value)
}

func (t TimeOfDay) String() string {
	if t.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the instant t falls on for the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour, t.Minute, t.Second, 0, day.Location())
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Router.Password == "" {
		errs = append(errs, errors.New("PLWD_ROUTER_PASSWORD environment variable is not set"))
	}
	if c.Router.Attempts < 1 {
		errs = append(errs, errors.New("restart attempts must be at least 1"))
	}
	if c.Router.RPS < 0 {
		errs = append(errs, errors.New("router rate limit must not be negative"))
	}
	if c.Watch.TooHighThreshold <= 0 || c.Watch.TooHighThreshold > 1 {
		errs = append(errs, fmt.Errorf("threshold %v must be within (0, 1]", c.Watch.TooHighThreshold))
	}
	if c.Watch.CancelAfterNormal < 1 {
		errs = append(errs, errors.New("cancel count must be at least 1"))
	}
	if c.Watch.BetweenMeasurements <= 0 || c.Watch.MeasurementDuration <= 0 || c.Watch.DelayAfterRestart <= 0 {
		errs = append(errs, errors.New("durations must be positive"))
	}
	return errors.Join(errs...)
}

// Usage writes the environment variable table.
func Usage(w io.Writer) error {
	var cfg Config
	return envconfig.Usagef(Prefix, &cfg, w, envconfig.DefaultTableFormat)
}

// Default returns the default configuration without a password.
func Default() *Config {
	return &Config{
		Router: Router{
			IP:       "192.168.0.1",
			Attempts: 3,
		},
		Watch: Watch{
			PingTarget:          "1.1.1.1",
			PingInterval:        "0.2",
			BetweenMeasurements: Millis(30 * time.Minute),
			MeasurementDuration: Millis(3 * time.Minute),
			TooHighThreshold:    0.04,
			RestartTime:         TimeOfDay{Hour: 5},
			CancelAfterNormal:   4,
			DelayAfterRestart:   Millis(30 * time.Minute),
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
