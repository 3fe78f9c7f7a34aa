// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"firestige.xyz/grbr/internal/core"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `grbr:` root key in YAML.
type GlobalConfig struct {
	Paths        PathsConfig       `mapstructure:"paths"`
	SatelliteKey string            `mapstructure:"satellite_key"` // optional, e.g. G16
	Integrity    IntegrityConfig   `mapstructure:"integrity"`
	Reassembly   ReassemblyConfig  `mapstructure:"reassembly"`
	Worker       WorkerConfig      `mapstructure:"worker"`
	Source       SourceConfig      `mapstructure:"source"`
	PostProcess  PostProcessConfig `mapstructure:"post_process"`
	Tracking     TrackingConfig    `mapstructure:"tracking"`
	Debug        DebugConfig       `mapstructure:"debug"`
	Events       EventsConfig      `mapstructure:"events"`
	Metrics      MetricsConfig     `mapstructure:"metrics"`
	Log          LogConfig         `mapstructure:"log"`
}

// ─── Paths ───

// PathsConfig contains the artifact directories.
type PathsConfig struct {
	Out   string `mapstructure:"out"`   // sealed artifacts
	Tmp   string `mapstructure:"tmp"`   // in-progress artifacts
	Track string `mapstructure:"track"` // tracking files, defaults to tmp
}

// ─── Packet Integrity ───

// IntegrityConfig selects the integrity checks applied to every packet.
type IntegrityConfig struct {
	CRC        CheckConfig `mapstructure:"crc"`
	Validation CheckConfig `mapstructure:"validation"`
}

// CheckConfig controls one check. Toss rejects failing packets instead of
// logging them.
type CheckConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Toss    bool `mapstructure:"toss"`
}

// ReassemblyConfig contains bundle reassembly settings.
type ReassemblyConfig struct {
	PermissiveOrphans bool `mapstructure:"permissive_orphans"`
}

// ─── Workers ───

// WorkerConfig contains product worker settings.
type WorkerConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`      // inactivity deadline, e.g. "30m"
	MailboxSize int           `mapstructure:"mailbox_size"` // buffered references per worker
}

// SourceConfig contains input source settings.
type SourceConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"` // live source retry backoff
}

// PostProcessConfig names the command run on every sealed artifact.
type PostProcessConfig struct {
	Command string `mapstructure:"command"`
}

// TrackingConfig enables image slice tracking files.
type TrackingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debugging switches.
type DebugConfig struct {
	KeepStaging bool `mapstructure:"keep_staging"`
}

// ─── Lifecycle Events ───

// EventsConfig configures the lifecycle event log.
type EventsConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	Path       string            `mapstructure:"path"`
	MaxSizeMB  int               `mapstructure:"max_size_mb"`
	MaxBackups int               `mapstructure:"max_backups"`
	Kafka      EventsKafkaConfig `mapstructure:"kafka"`
}

// EventsKafkaConfig publishes lifecycle events to Kafka.
type EventsKafkaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	Topic       string   `mapstructure:"topic"`
	Compression string   `mapstructure:"compression"` // none | gzip | snappy | lz4 | zstd
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `grbr: ...`.
type configRoot struct {
	GRBR GlobalConfig `mapstructure:"grbr"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment overrides only.
// The YAML file uses `grbr:` as root key; env vars use the GRBR_ prefix
// (e.g., GRBR_WORKER_TIMEOUT).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `grbr.` key prefix maps to `GRBR_` via the key replacer
	// (e.g., key "grbr.log.level" → env "GRBR_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.GRBR

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "grbr." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Artifact defaults
	v.SetDefault("grbr.paths.out", "./out")
	v.SetDefault("grbr.paths.tmp", "./tmp")
	v.SetDefault("grbr.paths.track", "")
	v.SetDefault("grbr.satellite_key", "")

	// Integrity defaults: check everything, toss nothing
	v.SetDefault("grbr.integrity.crc.enabled", true)
	v.SetDefault("grbr.integrity.crc.toss", false)
	v.SetDefault("grbr.integrity.validation.enabled", true)
	v.SetDefault("grbr.integrity.validation.toss", false)
	v.SetDefault("grbr.reassembly.permissive_orphans", false)

	// Worker defaults
	v.SetDefault("grbr.worker.timeout", "30m")
	v.SetDefault("grbr.worker.mailbox_size", 1024)
	v.SetDefault("grbr.source.poll_interval", "5s")

	v.SetDefault("grbr.post_process.command", "")
	v.SetDefault("grbr.tracking.enabled", false)
	v.SetDefault("grbr.debug.keep_staging", false)

	// Event log defaults
	v.SetDefault("grbr.events.enabled", true)
	v.SetDefault("grbr.events.path", "./grbr-events.log")
	v.SetDefault("grbr.events.max_size_mb", 1)
	v.SetDefault("grbr.events.max_backups", 5)
	v.SetDefault("grbr.events.kafka.enabled", false)
	v.SetDefault("grbr.events.kafka.topic", "grbr-events")
	v.SetDefault("grbr.events.kafka.compression", "snappy")

	// Metrics defaults
	v.SetDefault("grbr.metrics.enabled", false)
	v.SetDefault("grbr.metrics.listen", ":9091")
	v.SetDefault("grbr.metrics.path", "/metrics")

	// Log defaults
	v.SetDefault("grbr.log.level", "info")
	v.SetDefault("grbr.log.format", "text")
	v.SetDefault("grbr.log.outputs.file.enabled", false)
	v.SetDefault("grbr.log.outputs.file.path", "./grbr.log")
	v.SetDefault("grbr.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("grbr.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("grbr.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("grbr.log.outputs.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Paths ──
	if cfg.Paths.Out == "" || cfg.Paths.Tmp == "" {
		return fmt.Errorf("%w: paths.out and paths.tmp are required", core.ErrConfigInvalid)
	}
	if cfg.Paths.Track == "" {
		cfg.Paths.Track = cfg.Paths.Tmp
	}
	if strings.ContainsAny(cfg.SatelliteKey, "_/ ") {
		return fmt.Errorf("%w: satellite_key %q must not contain '_', '/' or spaces", core.ErrConfigInvalid, cfg.SatelliteKey)
	}

	// ── Workers ──
	if cfg.Worker.Timeout <= 0 {
		return fmt.Errorf("%w: worker.timeout must be positive", core.ErrConfigInvalid)
	}
	if cfg.Worker.MailboxSize <= 0 {
		return fmt.Errorf("%w: worker.mailbox_size must be positive", core.ErrConfigInvalid)
	}
	if cfg.Source.PollInterval <= 0 {
		return fmt.Errorf("%w: source.poll_interval must be positive", core.ErrConfigInvalid)
	}

	// ── Events ──
	if cfg.Events.Enabled && cfg.Events.Path == "" {
		return fmt.Errorf("%w: events.path is required when events.enabled=true", core.ErrConfigInvalid)
	}
	if cfg.Events.MaxSizeMB <= 0 {
		cfg.Events.MaxSizeMB = 1
	}
	if cfg.Events.Kafka.Enabled {
		if len(cfg.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("%w: events.kafka.brokers is required when events.kafka.enabled=true", core.ErrConfigInvalid)
		}
		if cfg.Events.Kafka.Topic == "" {
			return fmt.Errorf("%w: events.kafka.topic is required when events.kafka.enabled=true", core.ErrConfigInvalid)
		}
	}

	return nil
}
