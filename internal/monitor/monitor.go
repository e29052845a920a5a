// Package monitor samples host CPU and memory usage and answers the
// report requests a control plane can send an agent.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/HariBote1110/serveye/internal/protocol"
)

const (
	// DefaultSampleInterval and DefaultHistorySize give ten minutes of
	// history at one sample per ten seconds.
	DefaultSampleInterval = 10 * time.Second
	DefaultHistorySize    = 60
)

// Monitor keeps rolling CPU and memory usage history for the local host.
type Monitor struct {
	interval time.Duration
	cpu      *History
	mem      *History

	cpuPercent func(context.Context) (float64, error)
	memPercent func(context.Context) (float64, error)
}

func New(interval time.Duration, historySize int) *Monitor {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Monitor{
		interval:   interval,
		cpu:        NewHistory(historySize),
		mem:        NewHistory(historySize),
		cpuPercent: sampleCPUPercent,
		memPercent: sampleMemPercent,
	}
}

// Run samples both metrics at the configured interval until the context
// is cancelled. One sample is taken immediately so history is never
// empty after startup.
func (m *Monitor) Run(ctx context.Context) {
	m.sampleOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce(ctx)
		}
	}
}

func (m *Monitor) sampleOnce(ctx context.Context) {
	if v, err := m.cpuPercent(ctx); err != nil {
		slog.Warn("CPU sample failed", "error", err)
	} else {
		m.cpu.Add(v)
	}

	if v, err := m.memPercent(ctx); err != nil {
		slog.Warn("Memory sample failed", "error", err)
	} else {
		m.mem.Add(v)
	}
}

// CPUHistory returns the rolling CPU usage report.
func (m *Monitor) CPUHistory() protocol.HistoryReport {
	return m.report(m.cpu)
}

// MemoryHistory returns the rolling memory usage report.
func (m *Monitor) MemoryHistory() protocol.HistoryReport {
	return m.report(m.mem)
}

func (m *Monitor) report(h *History) protocol.HistoryReport {
	samples := h.Samples()
	return protocol.HistoryReport{
		Samples:         samples,
		IntervalMs:      m.interval.Milliseconds(),
		DurationSeconds: int64(len(samples)) * int64(m.interval.Seconds()),
	}
}

// SystemInfo gathers a point-in-time snapshot of the host.
func (m *Monitor) SystemInfo(ctx context.Context) (protocol.SystemInfo, error) {
	info := protocol.SystemInfo{}

	hostInfo, err := host.InfoWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read host info: %w", err)
	}
	info.Hostname = hostInfo.Hostname
	info.OS = hostInfo.OS
	info.Platform = hostInfo.Platform
	info.UptimeSeconds = hostInfo.Uptime

	if cpuInfos, err := cpu.InfoWithContext(ctx); err == nil && len(cpuInfos) > 0 {
		info.CPUModel = cpuInfos[0].ModelName
	}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUCores = cores
	}
	if usage, err := m.cpuPercent(ctx); err == nil {
		info.CPUUsagePercent = usage
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return info, fmt.Errorf("failed to read memory info: %w", err)
	}
	info.TotalMemoryBytes = vm.Total
	info.UsedMemoryBytes = vm.Used
	info.MemoryUsagePercent = vm.UsedPercent

	return info, nil
}

func sampleCPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("no cpu usage reported")
	}
	return percents[0], nil
}

func sampleMemPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}
