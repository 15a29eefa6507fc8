// Package health classifies host load, keeps the daily production counters
// and writes the daily report.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

const (
	criticalPercent = 90.0
	degradedPercent = 70.0
)

// Classify maps a resource sample to a status without history.
func Classify(cpu, mem float64) domain.HealthStatus {
	switch {
	case cpu > criticalPercent || mem > criticalPercent:
		return domain.HealthCritical
	case cpu > degradedPercent || mem > degradedPercent:
		return domain.HealthDegraded
	default:
		return domain.HealthHealthy
	}
}

// Monitor tracks SystemHealth across samples. Leaving critical passes through
// recovered for one sample; maintenance is only entered and left explicitly.
type Monitor struct {
	mu              sync.Mutex
	status          domain.HealthStatus
	cpu             float64
	mem             float64
	lastErr         string
	sampledAt       time.Time
	started         time.Time
	maintenance     bool
	criticalStreak  int
	criticalSamples int
	now             func() time.Time
	logger          *slog.Logger
}

// NewMonitor reports a sustained critical state after criticalSamples
// consecutive critical samples.
func NewMonitor(criticalSamples int, logger *slog.Logger) *Monitor {
	if criticalSamples <= 0 {
		criticalSamples = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		status:          domain.HealthHealthy,
		criticalSamples: criticalSamples,
		started:         time.Now(),
		now:             time.Now,
		logger:          logger,
	}
}

// Observe folds one sample into the state machine and returns the new status.
func (m *Monitor) Observe(cpu, mem float64) domain.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cpu, m.mem = cpu, mem
	m.sampledAt = m.now()

	raw := Classify(cpu, mem)
	if raw == domain.HealthCritical {
		m.criticalStreak++
	} else {
		m.criticalStreak = 0
	}

	if m.maintenance {
		return m.status
	}

	next := raw
	if m.status == domain.HealthCritical && raw != domain.HealthCritical {
		next = domain.HealthRecovered
	}
	if next != m.status {
		m.logger.Info("health status changed", "from", m.status, "to", next, "cpu", cpu, "mem", mem)
	}
	m.status = next
	return next
}

// Sample reads the host through sampler and observes the result. It returns a
// CriticalSystemError once the critical state has been sustained.
func (m *Monitor) Sample(ctx context.Context, sampler ports.ResourceSampler) (domain.HealthStatus, error) {
	cpu, mem, err := sampler.Sample(ctx)
	if err != nil {
		m.RecordError(err)
		return m.Status(), fmt.Errorf("sample resources: %w", err)
	}
	status := m.Observe(cpu, mem)
	if m.SustainedCritical() {
		return status, &domain.CriticalSystemError{
			Reason: fmt.Sprintf("critical load for %d consecutive samples (cpu %.1f%%, mem %.1f%%)", m.criticalSamples, cpu, mem),
		}
	}
	return status, nil
}

// SustainedCritical reports whether the last criticalSamples samples were all critical.
func (m *Monitor) SustainedCritical() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.criticalStreak >= m.criticalSamples
}

// EnterMaintenance pins the status to maintenance until ExitMaintenance.
func (m *Monitor) EnterMaintenance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maintenance {
		return
	}
	m.maintenance = true
	m.logger.Warn("maintenance mode enabled", "previous", m.status)
	m.status = domain.HealthMaintenance
}

// ExitMaintenance resumes classification from the latest sample.
func (m *Monitor) ExitMaintenance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.maintenance {
		return
	}
	m.maintenance = false
	m.status = Classify(m.cpu, m.mem)
	m.logger.Info("maintenance mode disabled", "status", m.status)
}

// InMaintenance reports whether an operator has paused the factory.
func (m *Monitor) InMaintenance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maintenance
}

// RecordError keeps the last error for the health view.
func (m *Monitor) RecordError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err.Error()
}

// MarkCritical forces the critical status, used on the emergency path.
func (m *Monitor) MarkCritical(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = domain.HealthCritical
	m.lastErr = reason
}

// Status returns the current status.
func (m *Monitor) Status() domain.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Health returns the monitor's view. Load fields are filled by the caller.
func (m *Monitor) Health() domain.SystemHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.SystemHealth{
		Status:        m.status,
		CPUPercent:    m.cpu,
		MemoryPercent: m.mem,
		LastError:     m.lastErr,
		Uptime:        m.now().Sub(m.started).Seconds(),
		SampledAt:     m.sampledAt,
	}
}
