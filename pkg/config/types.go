package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Session   SessionConfig   `yaml:"session"`
	Sync      SyncConfig      `yaml:"sync"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig points at the REST collaborator.
type APIConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// RealtimeConfig holds push channel settings.
type RealtimeConfig struct {
	URL string `yaml:"url"`
	// MaxRetries bounds automatic reconnect attempts; 0 means the
	// package default.
	MaxRetries   int      `yaml:"max_retries"`
	Backoff      Duration `yaml:"backoff"`
	PingInterval Duration `yaml:"ping_interval"`
}

// SessionConfig holds the local session store settings.
type SessionConfig struct {
	Path string `yaml:"path"`
	// MaxCacheBytes caps the encoded size of any single cached snapshot
	// record; oversized writes are rejected. Zero disables the cap.
	MaxCacheBytes SizeBytes `yaml:"max_cache_bytes"`
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	// ReconcileWindow is the time window inside which an incoming server
	// message may confirm a pending placeholder with matching sender and
	// content.
	ReconcileWindow Duration `yaml:"reconcile_window"`
	// ConfirmTimeout is how long a send waits for a racing push echo
	// before force-replacing its placeholder with the REST payload.
	ConfirmTimeout Duration `yaml:"confirm_timeout"`
	// SendRPS/SendBurst throttle outgoing sends.
	SendRPS   float64 `yaml:"send_rps"`
	SendBurst int     `yaml:"send_burst"`
}

// MetricsConfig controls the optional debug/metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RetentionConfig holds configuration for the cache sweep runner.
type RetentionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Cron    string   `yaml:"cron"`
	Period  Duration `yaml:"period"`
	DryRun  bool     `yaml:"dry_run"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration that unmarshals from yaml strings like
// "1500ms" or "10s", or from bare integers interpreted as milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var asInt int64
	if err := value.Decode(&asInt); err == nil {
		*d = Duration(time.Duration(asInt) * time.Millisecond)
		return nil
	}
	var asStr string
	if err := value.Decode(&asStr); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	parsed, err := time.ParseDuration(asStr)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", asStr, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration, or def when unset.
func (d Duration) Std(def time.Duration) time.Duration {
	if d == 0 {
		return def
	}
	return time.Duration(d)
}

// SizeBytes unmarshals humanized sizes such as "4MB" or "512KiB".
type SizeBytes uint64

func (s *SizeBytes) UnmarshalYAML(value *yaml.Node) error {
	var asInt uint64
	if err := value.Decode(&asInt); err == nil {
		*s = SizeBytes(asInt)
		return nil
	}
	var asStr string
	if err := value.Decode(&asStr); err != nil {
		return fmt.Errorf("invalid size value: %w", err)
	}
	n, err := humanize.ParseBytes(asStr)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", asStr, err)
	}
	*s = SizeBytes(n)
	return nil
}
