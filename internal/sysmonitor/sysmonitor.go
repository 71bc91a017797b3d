// Package sysmonitor periodically samples host CPU, memory, disk, and load
// average and reports them through a telemetry.Sink — useful context for
// interpreting a load test (is the bottleneck the target, or the machine
// generating the load?).
package sysmonitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/nishisan-dev/loadgen/internal/telemetry"
)

// Monitor samples host stats on an interval and reports them to a Sink.
type Monitor struct {
	logger   *slog.Logger
	sink     telemetry.Sink
	interval time.Duration
}

// New creates a Monitor. A non-positive interval defaults to 15 seconds,
// matching the teacher's SystemMonitor cadence.
func New(sink telemetry.Sink, logger *slog.Logger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		logger:   logger.With("component", "sysmonitor"),
		sink:     sink,
		interval: interval,
	}
}

// Run samples host stats until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collect()
		}
	}
}

func (m *Monitor) collect() {
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		m.sink.SetGauge("host_cpu_percent", percentages[0], nil)
	} else if err != nil {
		m.logger.Debug("failed to collect cpu stats", "error", err)
	}

	if v, err := mem.VirtualMemory(); err == nil {
		m.sink.SetGauge("host_memory_percent", v.UsedPercent, nil)
	} else {
		m.logger.Debug("failed to collect memory stats", "error", err)
	}

	if d, err := disk.Usage("/"); err == nil {
		m.sink.SetGauge("host_disk_percent", d.UsedPercent, nil)
	} else {
		m.logger.Debug("failed to collect disk stats", "error", err)
	}

	if l, err := load.Avg(); err == nil {
		m.sink.SetGauge("host_load1", l.Load1, nil)
	} else {
		m.logger.Debug("failed to collect load stats", "error", err)
	}
}
