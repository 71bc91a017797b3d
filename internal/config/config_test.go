package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "loadgen.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MinimalValidConfig(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: primary
    seed: 42
    addr: 127.0.0.1:9000
    variant:
      kind: syslog5424
    bytes_per_second: 1mb
    maximum_prebuild_cache_size_bytes: 8mb
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging config, got %+v", cfg.Logging)
	}
	if len(cfg.Targets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(cfg.Targets))
	}
	target := cfg.Targets[0]
	if target.BytesPerSecondRaw != 1024*1024 {
		t.Fatalf("expected 1MB bytes_per_second, got %d", target.BytesPerSecondRaw)
	}
	if len(target.BlockSizesRaw) != len(defaultBlockSizesBytes) {
		t.Fatalf("expected default block size palette, got %v", target.BlockSizesRaw)
	}
	if target.MaxCacheSizeRaw != 8*1024*1024 {
		t.Fatalf("expected 8MB cache budget, got %d", target.MaxCacheSizeRaw)
	}
}

func TestLoad_RejectsNoTargets(t *testing.T) {
	path := writeConfig(t, "targets: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty targets")
	}
}

func TestLoad_RejectsUnknownVariant(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: primary
    addr: 127.0.0.1:9000
    variant:
      kind: bogus
    bytes_per_second: 1mb
    maximum_prebuild_cache_size_bytes: 8mb
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown variant kind")
	}
}

func TestLoad_RejectsStaticVariantWithoutPath(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: primary
    addr: 127.0.0.1:9000
    variant:
      kind: static
    bytes_per_second: 1mb
    maximum_prebuild_cache_size_bytes: 8mb
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for static variant missing static_path")
	}
}

func TestLoad_RejectsOversizedRate(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: primary
    addr: 127.0.0.1:9000
    variant:
      kind: fluent
    bytes_per_second: 8gb
    maximum_prebuild_cache_size_bytes: 8mb
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a rate exceeding 32-bit capacity")
	}
}

func TestLoad_CaptureDefaults(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: primary
    addr: 127.0.0.1:9000
    variant:
      kind: syslog5424
    bytes_per_second: 1mb
    maximum_prebuild_cache_size_bytes: 8mb
telemetry:
  capture:
    dir: /tmp/captures
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	capture := cfg.Telemetry.Capture
	if capture.Codec != "gzip" {
		t.Fatalf("expected default codec gzip, got %q", capture.Codec)
	}
	if capture.RotateBytes != 64*1024*1024 {
		t.Fatalf("expected default rotate size 64MB, got %d", capture.RotateBytes)
	}
}

func TestLoad_RejectsCaptureS3WithoutBucket(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: primary
    addr: 127.0.0.1:9000
    variant:
      kind: syslog5424
    bytes_per_second: 1mb
    maximum_prebuild_cache_size_bytes: 8mb
telemetry:
  capture:
    dir: /tmp/captures
    s3: {}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for s3 archival without a bucket")
	}
}

func TestParseByteSize(t *testing.T) {
	cases := map[string]int64{
		"0":   0,
		"100": 100,
		"1kb": 1024,
		"4mb": 4 * 1024 * 1024,
		"1gb": 1024 * 1024 * 1024,
		"10b": 10,
	}
	for input, want := range cases {
		got, err := ParseByteSize(input)
		if err != nil {
			t.Fatalf("ParseByteSize(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseByteSize(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParseByteSize_RejectsGarbage(t *testing.T) {
	if _, err := ParseByteSize("not-a-size"); err == nil {
		t.Fatal("expected error for unparseable size")
	}
}
