package system

import (
	"context"
	"fmt"
	"time"

	"ContentFactory/internal/ports"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Sampler reads host cpu and memory usage through gopsutil.
type Sampler struct {
	interval time.Duration
}

var _ ports.ResourceSampler = (*Sampler)(nil)

// NewSampler measures cpu over interval; zero compares against the previous call.
func NewSampler(interval time.Duration) *Sampler {
	return &Sampler{interval: interval}
}

// Sample returns cpu and memory usage in percent.
func (s *Sampler) Sample(ctx context.Context) (float64, float64, error) {
	cpus, err := cpu.PercentWithContext(ctx, s.interval, false)
	if err != nil {
		return 0, 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(cpus) == 0 {
		return 0, 0, fmt.Errorf("cpu percent: no samples")
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("virtual memory: %w", err)
	}

	return cpus[0], vm.UsedPercent, nil
}
