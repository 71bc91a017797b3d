// Package config loads and validates the harness's YAML configuration,
// filling in defaults the way the teacher's AgentConfig does.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultBlockSizesBytes is the fallback palette when a target omits
// block_sizes: 1/32, 1/16, 1/8, 1/4, 1/2, 1, 2, 4 MB.
var defaultBlockSizesBytes = []int{
	32 * 1024, 64 * 1024, 128 * 1024, 256 * 1024, 512 * 1024,
	1024 * 1024, 2 * 1024 * 1024, 4 * 1024 * 1024,
}

// Config is the top-level on-disk configuration for a loadgen run.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Targets   []TargetGenConfig `yaml:"targets"`
	Blackhole *BlackholeConfig `yaml:"blackhole"`
	Subject   *SubjectConfig   `yaml:"subject"`
	Soak      *SoakConfig      `yaml:"soak"`
}

// LoggingConfig controls the slog backend, mirroring the teacher's
// LoggingInfo shape.
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	File         string `yaml:"file"`
	TargetLogDir string `yaml:"target_log_dir"`
}

// TelemetryConfig selects and configures the metrics backend(s).
type TelemetryConfig struct {
	Prometheus *PrometheusConfig `yaml:"prometheus"`
	Capture    *CaptureConfig    `yaml:"capture"`
	HTTPListen string            `yaml:"http_listen"`
}

// PrometheusConfig enables the pull-style exporter.
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CaptureConfig enables the file-log capture sink.
type CaptureConfig struct {
	Dir           string        `yaml:"dir"`
	Codec         string        `yaml:"codec"` // "gzip" or "zstd"
	RotateSize    string        `yaml:"rotate_size"`
	RotateBytes   int64         `yaml:"-"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	S3            *S3Config     `yaml:"s3"`
}

// S3Config enables archival of rotated capture files.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// TargetGenConfig is one emission engine's configuration. Its field names
// follow the source's on-disk YAML form, but seed is a single uint64 rather
// than a 32-byte array, so the two forms are not byte-for-byte compatible.
type TargetGenConfig struct {
	Name    string `yaml:"name"`
	Seed    uint64 `yaml:"seed"`
	Addr    string `yaml:"addr"`
	Variant struct {
		Kind       string `yaml:"kind"` // "fluent", "syslog5424", "static"
		StaticPath string `yaml:"static_path"`
	} `yaml:"variant"`
	BytesPerSecond  string   `yaml:"bytes_per_second"`
	BlockSizes      []string `yaml:"block_sizes"`
	MaxCacheSize    string   `yaml:"maximum_prebuild_cache_size_bytes"`

	BytesPerSecondRaw int64 `yaml:"-"`
	BlockSizesRaw     []int `yaml:"-"`
	MaxCacheSizeRaw   int   `yaml:"-"`
}

// BlackholeConfig enables the accept-and-discard sink used for local
// experiments that need a target without standing up a real collector.
type BlackholeConfig struct {
	Listen string `yaml:"listen"`
}

// SubjectConfig bounds a subprocess the harness supervises for the
// duration of the run (the thing actually under test).
type SubjectConfig struct {
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// SoakConfig schedules repeated runs on a cron expression.
type SoakConfig struct {
	Schedule string        `yaml:"schedule"`
	Duration time.Duration `yaml:"duration"`
}

// Load reads, parses, and validates path, filling in every default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("targets must have at least one entry")
	}
	for i := range c.Targets {
		if err := c.Targets[i].validate(); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
	}

	if c.Telemetry.Capture != nil {
		capture := c.Telemetry.Capture
		if capture.Dir == "" {
			return fmt.Errorf("telemetry.capture.dir is required when capture is configured")
		}
		if capture.Codec == "" {
			capture.Codec = "gzip"
		}
		if capture.Codec != "gzip" && capture.Codec != "zstd" {
			return fmt.Errorf("telemetry.capture.codec must be gzip or zstd, got %q", capture.Codec)
		}
		if capture.RotateSize == "" {
			capture.RotateSize = "64mb"
		}
		rotateBytes, err := ParseByteSize(capture.RotateSize)
		if err != nil {
			return fmt.Errorf("telemetry.capture.rotate_size: %w", err)
		}
		capture.RotateBytes = rotateBytes
		if capture.FlushInterval <= 0 {
			capture.FlushInterval = 2 * time.Second
		}
		if capture.S3 != nil && capture.S3.Bucket == "" {
			return fmt.Errorf("telemetry.capture.s3.bucket is required when s3 archival is configured")
		}
	}

	if c.Blackhole != nil && c.Blackhole.Listen == "" {
		return fmt.Errorf("blackhole.listen is required when blackhole is configured")
	}

	if c.Subject != nil {
		if len(c.Subject.Command) == 0 {
			return fmt.Errorf("subject.command must have at least one entry")
		}
		if c.Subject.Timeout <= 0 {
			c.Subject.Timeout = 5 * time.Minute
		}
	}

	if c.Soak != nil && c.Soak.Schedule == "" {
		return fmt.Errorf("soak.schedule is required when soak is configured")
	}

	return nil
}

func (t *TargetGenConfig) validate() error {
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if t.Addr == "" {
		return fmt.Errorf("addr is required")
	}

	switch t.Variant.Kind {
	case "fluent", "syslog5424":
	case "static":
		if t.Variant.StaticPath == "" {
			return fmt.Errorf("variant.static_path is required for the static variant")
		}
	default:
		return fmt.Errorf("variant.kind must be one of fluent, syslog5424, static, got %q", t.Variant.Kind)
	}

	if t.BytesPerSecond == "" {
		return fmt.Errorf("bytes_per_second is required")
	}
	bps, err := ParseByteSize(t.BytesPerSecond)
	if err != nil {
		return fmt.Errorf("bytes_per_second: %w", err)
	}
	if bps <= 0 || bps > int64(^uint32(0)) {
		return fmt.Errorf("bytes_per_second must fit a 32-bit unsigned rate, got %d", bps)
	}
	t.BytesPerSecondRaw = bps

	if len(t.BlockSizes) == 0 {
		t.BlockSizesRaw = append([]int(nil), defaultBlockSizesBytes...)
	} else {
		sizes := make([]int, len(t.BlockSizes))
		for i, s := range t.BlockSizes {
			sz, err := ParseByteSize(s)
			if err != nil {
				return fmt.Errorf("block_sizes[%d]: %w", i, err)
			}
			sizes[i] = int(sz)
		}
		t.BlockSizesRaw = sizes
	}

	if t.MaxCacheSize == "" {
		return fmt.Errorf("maximum_prebuild_cache_size_bytes is required")
	}
	maxCache, err := ParseByteSize(t.MaxCacheSize)
	if err != nil {
		return fmt.Errorf("maximum_prebuild_cache_size_bytes: %w", err)
	}
	t.MaxCacheSizeRaw = int(maxCache)

	return nil
}

// ParseByteSize converts human-readable strings like "256mb", "1gb" into a
// byte count.
func ParseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	type suffix struct {
		s string
		m int64
	}
	suffixes := []suffix{
		{"gb", 1024 * 1024 * 1024},
		{"mb", 1024 * 1024},
		{"kb", 1024},
		{"b", 1},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.s) {
			numStr := strings.TrimSuffix(s, sfx.s)
			num, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q: %w", numStr, err)
			}
			return num * sfx.m, nil
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown size format %q", s)
	}
	return num, nil
}
