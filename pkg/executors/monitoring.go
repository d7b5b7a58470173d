package executors

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// HostStatus is the structured result backing GET /system/host/status.
type HostStatus struct {
	UptimeSeconds uint64      `json:"uptime_seconds"`
	LoadAverage   [3]float64  `json:"load_average"` // 1m, 5m, 15m
	MemoryUsedPct float64     `json:"memory_used_percent"`
	MemoryTotal   uint64      `json:"memory_total_bytes"`
	DiskUsage     []DiskUsage `json:"disk_usage"`
}

// DiskUsage is one mounted filesystem's space utilization.
type DiskUsage struct {
	Path        string  `json:"path"`
	UsedPercent float64 `json:"used_percent"`
	TotalBytes  uint64  `json:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
}

// MonitoringDeps bundles the host-monitoring tunables. CommandTimeout
// becomes the host_monitoring_status task timeout; BatchSize is carried
// from config but not read by the handler.
type MonitoringDeps struct {
	CommandTimeout time.Duration
	BatchSize      int
	MountPoints    []string
}

// hostMonitoringStatus gathers uptime, load, memory, and disk usage via
// gopsutil, grounded on the teacher pack's disk.Usage/host-stat idiom.
func (m *MonitoringDeps) hostMonitoringStatus(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	status := HostStatus{}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		status.UptimeSeconds = uptime
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		status.LoadAverage = [3]float64{avg.Load1, avg.Load5, avg.Load15}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status.MemoryUsedPct = vm.UsedPercent
		status.MemoryTotal = vm.Total
	}

	mountPoints := m.MountPoints
	if len(mountPoints) == 0 {
		mountPoints = []string{"/"}
	}
	for _, path := range mountPoints {
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			continue
		}
		status.DiskUsage = append(status.DiskUsage, DiskUsage{
			Path:        path,
			UsedPercent: usage.UsedPercent,
			TotalBytes:  usage.Total,
			FreeBytes:   usage.Free,
		})
	}

	return types.HandlerResult{Success: true, Message: "host status sampled", ProgressInfo: progressInfo(status)}
}
