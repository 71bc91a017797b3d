package telemetry

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	pgzip "github.com/klauspost/pgzip"
)

// captureEvent is one line of the capture log — the Go shape of lading's
// file-backed Telemetry::Log sink.
type captureEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"kind"` // "counter" or "gauge"
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// CaptureConfig configures the file-log telemetry sink.
type CaptureConfig struct {
	// Dir is the directory rotated capture files are written into.
	Dir string
	// Codec selects the compression codec: "gzip" (default) or "zstd".
	Codec string
	// RotateBytes is the uncompressed byte threshold that triggers rotation.
	// Zero disables rotation (a single file grows for the life of the run).
	RotateBytes int64
	// FlushInterval controls how often buffered lines are flushed to disk.
	FlushInterval time.Duration
	// GlobalLabels are attached to every event in addition to its own labels.
	GlobalLabels map[string]string
	// Archive, if non-nil, uploads each rotated file to S3 once it closes.
	Archive *S3Archiver
}

// CaptureSink is a Sink that appends newline-delimited JSON events to a
// compressed, periodically rotated file on disk.
type CaptureSink struct {
	cfg    CaptureConfig
	logger *slog.Logger

	mu         sync.Mutex
	tmpPath    string
	file       *os.File
	compressor io.WriteCloser
	buffered   *bufio.Writer
	written    int64

	wg     sync.WaitGroup
	closed bool
}

// NewCaptureSink creates a CaptureSink rooted at cfg.Dir. It opens the first
// rotation file immediately.
func NewCaptureSink(cfg CaptureConfig, logger *slog.Logger) (*CaptureSink, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("telemetry: capture dir must not be empty")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: creating capture dir: %w", err)
	}

	c := &CaptureSink{cfg: cfg, logger: logger.With("component", "capture_sink")}
	if err := c.openNewFile(); err != nil {
		return nil, err
	}
	return c, nil
}

// Run flushes the capture log on cfg.FlushInterval until ctx is done, then
// performs a final flush and close. Callers pass the shutdown.Broadcaster's
// Context here so the capture sink participates in the cooperative shutdown
// like every other component.
func (c *CaptureSink) Run(ctx context.Context) {
	c.wg.Add(1)
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.closeLocked()
			c.mu.Unlock()
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.buffered != nil {
				c.buffered.Flush()
			}
			c.mu.Unlock()
		}
	}
}

func (c *CaptureSink) IncrCounter(name string, delta uint64, labels Labels) {
	c.write(captureEvent{Kind: "counter", Name: name, Value: float64(delta), Labels: c.mergeLabels(labels)})
}

func (c *CaptureSink) SetGauge(name string, value float64, labels Labels) {
	c.write(captureEvent{Kind: "gauge", Name: name, Value: value, Labels: c.mergeLabels(labels)})
}

func (c *CaptureSink) mergeLabels(labels Labels) map[string]string {
	if len(labels) == 0 && len(c.cfg.GlobalLabels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels)+len(c.cfg.GlobalLabels))
	for k, v := range c.cfg.GlobalLabels {
		out[k] = v
	}
	for _, l := range labels {
		out[l.Key] = l.Value
	}
	return out
}

func (c *CaptureSink) write(ev captureEvent) {
	ev.Timestamp = time.Now().UTC()
	line, err := json.Marshal(ev)
	if err != nil {
		c.logger.Warn("capture sink: failed to marshal event", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	n, err := c.buffered.Write(line)
	if err == nil {
		var nl int
		nl, err = c.buffered.Write([]byte{'\n'})
		n += nl
	}
	if err != nil {
		c.logger.Warn("capture sink: write failed", "error", err)
		return
	}
	c.written += int64(n)

	if c.cfg.RotateBytes > 0 && c.written >= c.cfg.RotateBytes {
		if err := c.rotateLocked(); err != nil {
			c.logger.Error("capture sink: rotation failed", "error", err)
		}
	}
}

func (c *CaptureSink) openNewFile() error {
	f, err := os.CreateTemp(c.cfg.Dir, "capture-*.tmp")
	if err != nil {
		return fmt.Errorf("telemetry: creating capture file: %w", err)
	}

	var compressor io.WriteCloser
	switch strings.ToLower(c.cfg.Codec) {
	case "zstd":
		compressor, err = zstd.NewWriter(f)
	default:
		compressor, err = pgzip.NewWriterLevel(f, gzip.BestSpeed)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("telemetry: creating compressor: %w", err)
	}

	c.tmpPath = f.Name()
	c.file = f
	c.compressor = compressor
	c.buffered = bufio.NewWriterSize(compressor, 64*1024)
	c.written = 0
	return nil
}

// rotateLocked closes the current file under its final timestamped name and
// opens a fresh one, mirroring the teacher's AtomicWriter temp-then-rename
// commit. Callers must hold c.mu.
func (c *CaptureSink) rotateLocked() error {
	finalPath, err := c.commitLocked()
	if err != nil {
		return err
	}
	if c.cfg.Archive != nil {
		go c.cfg.Archive.Upload(context.Background(), finalPath)
	}
	return c.openNewFile()
}

func (c *CaptureSink) commitLocked() (string, error) {
	if err := c.buffered.Flush(); err != nil {
		return "", fmt.Errorf("telemetry: flushing capture buffer: %w", err)
	}
	if err := c.compressor.Close(); err != nil {
		return "", fmt.Errorf("telemetry: closing capture compressor: %w", err)
	}
	if err := c.file.Close(); err != nil {
		return "", fmt.Errorf("telemetry: closing capture file: %w", err)
	}

	ext := "captures.gz"
	if strings.ToLower(c.cfg.Codec) == "zstd" {
		ext = "captures.zst"
	}
	stamp := strings.ReplaceAll(time.Now().UTC().Format("2006-01-02T15-04-05.000"), ".", "-")
	// The temp file's random part keeps names unique when two rotations
	// fall within the same millisecond.
	unique := strings.TrimSuffix(filepath.Base(c.tmpPath), ".tmp")
	finalPath := filepath.Join(c.cfg.Dir, fmt.Sprintf("%s.%s.%s", stamp, unique, ext))
	if err := os.Rename(c.tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("telemetry: committing capture file: %w", err)
	}
	return finalPath, nil
}

func (c *CaptureSink) closeLocked() {
	if c.closed {
		return
	}
	finalPath, err := c.commitLocked()
	if err != nil {
		c.logger.Error("capture sink: final commit failed", "error", err)
	} else if c.cfg.Archive != nil {
		c.cfg.Archive.Upload(context.Background(), finalPath)
	}
	c.closed = true
}

// Close waits for Run's goroutine to finish flushing and committing.
func (c *CaptureSink) Close() {
	c.wg.Wait()
}
