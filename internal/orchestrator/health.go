package orchestrator

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// runHealthLog periodically logs process CPU and memory usage until ctx is
// cancelled. There is no HTTP exposition of this data (this engine has no
// network transport surface); it exists purely as an operator-visible
// heartbeat in the structured logs.
func runHealthLog(ctx context.Context, interval time.Duration, log *slog.Logger) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // PID fits int32 on every supported platform
	if err != nil {
		log.Warn("health log disabled, could not open self process handle", "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logHealthSnapshot(proc, log)
		}
	}
}

func logHealthSnapshot(proc *process.Process, log *slog.Logger) {
	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		log.Warn("health log: cpu read failed", "error", err)
		cpuPercent = 0
	}

	rss := uint64(0)
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	} else if err != nil {
		log.Warn("health log: memory read failed", "error", err)
	}

	sysLoad, err := cpu.Percent(0, false)
	sysCPU := float64(0)
	if err == nil && len(sysLoad) > 0 {
		sysCPU = sysLoad[0]
	}

	log.Info("health", "process_cpu_percent", cpuPercent, "rss_bytes", rss, "system_cpu_percent", sysCPU)
}
