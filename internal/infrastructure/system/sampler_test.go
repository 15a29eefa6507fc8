package system

import (
	"context"
	"testing"
	"time"
)

func TestSamplerReportsPercentages(t *testing.T) {
	t.Parallel()

	cpuPct, memPct, err := NewSampler(50 * time.Millisecond).Sample(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	if cpuPct < 0 || cpuPct > 100 {
		t.Fatalf("cpu out of range: %v", cpuPct)
	}
	if memPct <= 0 || memPct > 100 {
		t.Fatalf("mem out of range: %v", memPct)
	}
}
