// Package config loads and validates scrollprobe configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/scrollprobe/internal/dom"
	"github.com/JakeFAU/scrollprobe/internal/logging"
	"github.com/JakeFAU/scrollprobe/internal/storage/gcs"
	"github.com/JakeFAU/scrollprobe/internal/storage/local"
	"github.com/JakeFAU/scrollprobe/internal/telemetry"
)

// EnvPrefix is prepended to environment overrides, e.g. SCROLLPROBE_SERVER_PORT.
const EnvPrefix = "SCROLLPROBE"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   logging.Config  `mapstructure:"logging"`
	Responder ResponderConfig `mapstructure:"responder"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Sinks     SinksConfig     `mapstructure:"sinks"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`
	Layout    dom.Layout      `mapstructure:"layout"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ResponderConfig mirrors responder.Options.
type ResponderConfig struct {
	// UpperBound fixes the trigger distance in pixels; 0 uses the viewport height.
	UpperBound      float64 `mapstructure:"upper_bound"`
	HideAtScrollTop bool    `mapstructure:"hide_at_scroll_top"`
}

// SweepConfig describes the scroll sweep a run performs.
type SweepConfig struct {
	Start float64 `mapstructure:"start"`
	// End of the sweep; 0 sweeps to the maximum scroll offset.
	End  float64 `mapstructure:"end"`
	Step float64 `mapstructure:"step"`
	// ScrollsPerFrame is how many scroll occurrences are delivered between frames.
	ScrollsPerFrame int `mapstructure:"scrolls_per_frame"`
	// Rate caps sweep steps per second; 0 disables pacing.
	Rate  float64 `mapstructure:"rate"`
	Burst int     `mapstructure:"burst"`
	// ResizeTo triggers a resize halfway through the sweep when > 0.
	ResizeTo float64 `mapstructure:"resize_to"`
}

// LoopConfig configures the host frame loop.
type LoopConfig struct {
	FrameDuration time.Duration `mapstructure:"frame_duration"`
	QueueSize     int           `mapstructure:"queue_size"`
}

// BrowserConfig configures the headless Chrome host.
type BrowserConfig struct {
	ExecPath     string        `mapstructure:"exec_path"`
	Headless     bool          `mapstructure:"headless"`
	WindowWidth  int           `mapstructure:"window_width"`
	WindowHeight int           `mapstructure:"window_height"`
	UserAgent    string        `mapstructure:"user_agent"`
	NavTimeout   time.Duration `mapstructure:"nav_timeout"`
	Selectors    []string      `mapstructure:"selectors"`
	URL          string        `mapstructure:"url"`
}

// ProgressConfig mirrors progress.Config.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// SinksConfig toggles progress sinks.
type SinksConfig struct {
	Log        ToggleConfig   `mapstructure:"log"`
	Prometheus ToggleConfig   `mapstructure:"prometheus"`
	Blob       BlobConfig     `mapstructure:"blob"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
	PubSub     PubSubConfig   `mapstructure:"pubsub"`
}

// ToggleConfig enables a sink that needs no other settings.
type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Blob backends.
const (
	BlobBackendLocal  = "local"
	BlobBackendMemory = "memory"
	BlobBackendGCS    = "gcs"
)

// BlobConfig selects where run traces are written.
type BlobConfig struct {
	Enabled bool         `mapstructure:"enabled"`
	Backend string       `mapstructure:"backend"`
	Prefix  string       `mapstructure:"prefix"`
	Local   local.Config `mapstructure:"local"`
	GCS     gcs.Config   `mapstructure:"gcs"`
}

// PostgresConfig controls the relational progress store.
type PostgresConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// PubSubConfig holds the topic progress batches are published to.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment. With an empty path the
// conventional locations are searched and a missing file is not an error.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("scrollprobe")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.scrollprobe")
		v.AddConfigPath("/etc/scrollprobe/")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadLayout reads a standalone layout file (YAML, JSON or TOML).
func LoadLayout(path string) (dom.Layout, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return dom.Layout{}, fmt.Errorf("read layout: %w", err)
	}
	var layout dom.Layout
	if err := v.Unmarshal(&layout); err != nil {
		return dom.Layout{}, fmt.Errorf("unmarshal layout: %w", err)
	}
	if len(layout.Elements) == 0 {
		return dom.Layout{}, fmt.Errorf("layout %s declares no elements", path)
	}
	return layout, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.encoding", "")
	v.SetDefault("responder.upper_bound", 0)
	v.SetDefault("responder.hide_at_scroll_top", false)
	v.SetDefault("sweep.start", 0)
	v.SetDefault("sweep.end", 0)
	v.SetDefault("sweep.step", 50)
	v.SetDefault("sweep.scrolls_per_frame", 3)
	v.SetDefault("sweep.rate", 0)
	v.SetDefault("sweep.burst", 1)
	v.SetDefault("sweep.resize_to", 0)
	v.SetDefault("loop.frame_duration", "16ms")
	v.SetDefault("loop.queue_size", 1024)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 800)
	v.SetDefault("browser.user_agent", "scrollprobe/0.1")
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("browser.selectors", []string{"[data-scroll]"})
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 500)
	v.SetDefault("progress.max_batch_wait", "250ms")
	v.SetDefault("progress.sink_timeout", "10s")
	v.SetDefault("sinks.log.enabled", true)
	v.SetDefault("sinks.prometheus.enabled", true)
	v.SetDefault("sinks.blob.enabled", false)
	v.SetDefault("sinks.blob.backend", BlobBackendLocal)
	v.SetDefault("sinks.blob.prefix", "scrollprobe")
	v.SetDefault("sinks.blob.local.base_dir", "data/traces")
	v.SetDefault("sinks.postgres.enabled", false)
	v.SetDefault("sinks.postgres.ensure_schema", true)
	v.SetDefault("sinks.pubsub.enabled", false)
	v.SetDefault("sinks.pubsub.topic", "scroll-progress")
	v.SetDefault("telemetry.service_name", "scrollprobe")
	v.SetDefault("telemetry.sample_ratio", 1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.Responder.UpperBound < 0 {
		return errors.New("responder.upper_bound must be >= 0")
	}
	if c.Sweep.Step <= 0 {
		return errors.New("sweep.step must be > 0")
	}
	if c.Sweep.ScrollsPerFrame <= 0 {
		return errors.New("sweep.scrolls_per_frame must be > 0")
	}
	if c.Sweep.End != 0 && c.Sweep.End < c.Sweep.Start {
		return errors.New("sweep.end must be >= sweep.start")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry.sample_ratio must be within [0, 1]")
	}
	if c.Sweep.Rate < 0 {
		return errors.New("sweep.rate must be >= 0")
	}
	if c.Loop.FrameDuration <= 0 {
		return errors.New("loop.frame_duration must be > 0")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return errors.New("browser.window_width and browser.window_height must be > 0")
	}
	if err := c.Sinks.validate(); err != nil {
		return err
	}
	return nil
}

func (s SinksConfig) validate() error {
	if s.Blob.Enabled {
		switch s.Blob.Backend {
		case BlobBackendLocal:
			if s.Blob.Local.BaseDir == "" {
				return errors.New("sinks.blob.local.base_dir is required for the local backend")
			}
		case BlobBackendMemory:
		case BlobBackendGCS:
			if s.Blob.GCS.Bucket == "" {
				return errors.New("sinks.blob.gcs.bucket is required for the gcs backend")
			}
		default:
			return fmt.Errorf("sinks.blob.backend %q must be one of local, memory, gcs", s.Blob.Backend)
		}
	}
	if s.Postgres.Enabled && s.Postgres.DSN == "" {
		return errors.New("sinks.postgres.dsn must be set when postgres is enabled")
	}
	if s.PubSub.Enabled && (s.PubSub.ProjectID == "" || s.PubSub.Topic == "") {
		return errors.New("sinks.pubsub.project_id and sinks.pubsub.topic must be set when pubsub is enabled")
	}
	return nil
}
