package info

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type SystemStats struct {
	CPUMhz       float64
	CPUCores     int
	CPUPercent   float64
	MemAvailable uint64
	MemTotal     uint64
	MemUsed      uint64
	DiskTotal    uint64
	DiskUsed     uint64
	DiskFree     uint64
	ProcRSS      uint64
	ProcCPU      float64
	ProcThreads  int32
	Goroutines   int
}

// CollectSystem reads host and process stats. Missing readings are left at zero.
func CollectSystem(ctx context.Context) (SystemStats, error) {
	var stats SystemStats
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		stats.CPUMhz = infos[0].Mhz
	}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		stats.CPUCores = cores
	}
	if percent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percent) > 0 {
		stats.CPUPercent = percent[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("read memory: %w", err)
	}
	stats.MemAvailable, stats.MemTotal, stats.MemUsed = vm.Available, vm.Total, vm.Used

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		stats.DiskTotal, stats.DiskUsed, stats.DiskFree = usage.Total, usage.Used, usage.Free
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcRSS = info.RSS
		}
		if percent, err := proc.CPUPercentWithContext(ctx); err == nil {
			stats.ProcCPU = percent
		}
		if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
			stats.ProcThreads = threads
		}
	}
	stats.Goroutines = runtime.NumGoroutine()
	return stats, nil
}

func (b *Builder) System(stats SystemStats) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color: b.color,
		Description: fmt.Sprintf("**System CPU:**\n- Frequency: %.2f Mhz\n- Cores: %d\n- Usage: %.1f%%\n\n"+
			"**System Memory:**\n- Available: %s\n- Total: %s\n- Used: %s\n\n"+
			"**System Disk:**\n- Total: %s\n- Used: %s\n- Free: %s\n\n"+
			"**Process Info:**\n- Memory Usage: %s\n- CPU Usage: %.1f%%\n- Threads: %d\n- Goroutines: %d",
			stats.CPUMhz, stats.CPUCores, stats.CPUPercent,
			humanize.IBytes(stats.MemAvailable), humanize.IBytes(stats.MemTotal), humanize.IBytes(stats.MemUsed),
			humanize.IBytes(stats.DiskTotal), humanize.IBytes(stats.DiskUsed), humanize.IBytes(stats.DiskFree),
			humanize.IBytes(stats.ProcRSS), stats.ProcCPU, stats.ProcThreads, stats.Goroutines),
	}
}
