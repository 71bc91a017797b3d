package sysmonitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nishisan-dev/loadgen/internal/telemetry"
)

type recordingSink struct {
	mu     sync.Mutex
	gauges map[string]float64
}

func newRecordingSink() *recordingSink {
	return &recordingSink{gauges: make(map[string]float64)}
}

func (s *recordingSink) IncrCounter(string, uint64, telemetry.Labels) {}

func (s *recordingSink) SetGauge(name string, value float64, _ telemetry.Labels) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges[name] = value
}

func (s *recordingSink) seen(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.gauges[name]
	return ok
}

func TestMonitor_CollectsHostGauges(t *testing.T) {
	sink := newRecordingSink()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(sink, logger, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	m.Run(ctx)

	for _, name := range []string{"host_memory_percent", "host_disk_percent"} {
		if !sink.seen(name) {
			t.Errorf("expected gauge %q to have been reported", name)
		}
	}
}

func TestMonitor_StopsOnContextCancel(t *testing.T) {
	sink := newRecordingSink()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(sink, logger, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
