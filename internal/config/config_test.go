package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
logging:
  development: false
  level: warn
responder:
  upper_bound: 400
  hide_at_scroll_top: true
sweep:
  step: 25
  end: 2000
  scrolls_per_frame: 5
  rate: 60
loop:
  frame_duration: 8ms
browser:
  window_width: 1024
  window_height: 768
  selectors: [".card", "#hero"]
sinks:
  blob:
    enabled: true
    backend: gcs
    gcs:
      bucket: traces
  pubsub:
    enabled: true
    project_id: demo
layout:
  viewport_height: 800
  elements:
    - id: section
      top: 1000
      height: 200
    - id: child
      parent: section
      top: 20
      height: 50
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 || !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected server/auth overrides, got %+v %+v", cfg.Server, cfg.Auth)
	}
	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides, got %+v", cfg.Logging)
	}
	if cfg.Responder.UpperBound != 400 || !cfg.Responder.HideAtScrollTop {
		t.Fatalf("expected responder overrides, got %+v", cfg.Responder)
	}
	if cfg.Sweep.Step != 25 || cfg.Sweep.End != 2000 || cfg.Sweep.ScrollsPerFrame != 5 || cfg.Sweep.Rate != 60 {
		t.Fatalf("expected sweep overrides, got %+v", cfg.Sweep)
	}
	if cfg.Loop.FrameDuration != 8*time.Millisecond {
		t.Fatalf("expected 8ms frames, got %v", cfg.Loop.FrameDuration)
	}
	if len(cfg.Browser.Selectors) != 2 || cfg.Browser.Selectors[1] != "#hero" {
		t.Fatalf("expected selectors override, got %v", cfg.Browser.Selectors)
	}
	if cfg.Sinks.Blob.GCS.Bucket != "traces" || cfg.Sinks.PubSub.Topic != "scroll-progress" {
		t.Fatalf("expected sink settings, got %+v", cfg.Sinks)
	}
	if len(cfg.Layout.Elements) != 2 || cfg.Layout.Elements[1].Parent != "section" {
		t.Fatalf("expected layout to load, got %+v", cfg.Layout)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeFile(t, "empty.yaml", "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Loop.FrameDuration != 16*time.Millisecond || cfg.Loop.QueueSize != 1024 {
		t.Fatalf("unexpected loop defaults %+v", cfg.Loop)
	}
	if cfg.Progress.MaxBatchWait != 250*time.Millisecond || cfg.Progress.BufferSize != 4096 {
		t.Fatalf("unexpected progress defaults %+v", cfg.Progress)
	}
	if !cfg.Browser.Headless || cfg.Browser.NavTimeout != 30*time.Second {
		t.Fatalf("unexpected browser defaults %+v", cfg.Browser)
	}
	if !cfg.Sinks.Log.Enabled || cfg.Sinks.Blob.Local.BaseDir != "data/traces" {
		t.Fatalf("unexpected sink defaults %+v", cfg.Sinks)
	}
	if cfg.Telemetry.ServiceName != "scrollprobe" || cfg.Telemetry.SampleRatio != 1 {
		t.Fatalf("unexpected telemetry defaults %+v", cfg.Telemetry)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCROLLPROBE_SERVER_PORT", "7070")
	t.Setenv("SCROLLPROBE_SWEEP_STEP", "10")

	cfg, err := Load(writeFile(t, "config.yaml", "sweep:\n  step: 99\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Sweep.Step != 10 {
		t.Fatalf("expected env step 10, got %v", cfg.Sweep.Step)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadLayout(t *testing.T) {
	t.Parallel()

	layout, err := LoadLayout(writeFile(t, "layout.json",
		`{"viewport_height": 800, "elements": [{"id": "a", "top": 1000, "height": 200}]}`))
	if err != nil {
		t.Fatalf("LoadLayout() error = %v", err)
	}
	if layout.ViewportHeight != 800 || layout.Elements[0].ID != "a" || layout.Elements[0].Height != 200 {
		t.Fatalf("unexpected layout %+v", layout)
	}

	if _, err := LoadLayout(writeFile(t, "empty.yaml", "viewport_height: 800\n")); err == nil {
		t.Fatal("expected error for layout without elements")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Sweep:   SweepConfig{Step: 50, ScrollsPerFrame: 1},
		Loop:    LoopConfig{FrameDuration: 16 * time.Millisecond},
		Browser: BrowserConfig{WindowWidth: 1280, WindowHeight: 800},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"negative bound", func(c *Config) { c.Responder.UpperBound = -1 }, "responder.upper_bound"},
		{"zero step", func(c *Config) { c.Sweep.Step = 0 }, "sweep.step"},
		{"zero scrolls per frame", func(c *Config) { c.Sweep.ScrollsPerFrame = 0 }, "sweep.scrolls_per_frame"},
		{"end before start", func(c *Config) { c.Sweep.Start, c.Sweep.End = 500, 100 }, "sweep.end"},
		{"negative rate", func(c *Config) { c.Sweep.Rate = -1 }, "sweep.rate"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "telemetry.sample_ratio"},
		{"zero frame", func(c *Config) { c.Loop.FrameDuration = 0 }, "loop.frame_duration"},
		{"zero window", func(c *Config) { c.Browser.WindowHeight = 0 }, "browser.window_width"},
		{"bad blob backend", func(c *Config) {
			c.Sinks.Blob = BlobConfig{Enabled: true, Backend: "s3"}
		}, "sinks.blob.backend"},
		{"gcs without bucket", func(c *Config) {
			c.Sinks.Blob = BlobConfig{Enabled: true, Backend: BlobBackendGCS}
		}, "sinks.blob.gcs.bucket"},
		{"postgres without dsn", func(c *Config) { c.Sinks.Postgres.Enabled = true }, "sinks.postgres.dsn"},
		{"pubsub without project", func(c *Config) {
			c.Sinks.PubSub = PubSubConfig{Enabled: true, Topic: "t"}
		}, "sinks.pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
