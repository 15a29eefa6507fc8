package health

import (
	"sync"

	"ContentFactory/internal/domain"
)

// Stats aggregates the daily production counters.
type Stats struct {
	mu           sync.Mutex
	s            domain.ProductionStats
	qualitySum   float64
	qualityCount int
}

// NewStats starts counting for day.
func NewStats(day string) *Stats {
	st := &Stats{}
	st.reset(day)
	return st
}

func (st *Stats) reset(day string) {
	st.s = domain.ProductionStats{
		Day:                 day,
		PlatformPerformance: map[string]domain.PlatformCounters{},
	}
	st.qualitySum = 0
	st.qualityCount = 0
}

// ResetDaily zeroes every counter and starts a new day.
func (st *Stats) ResetDaily(day string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.reset(day)
}

// TasksPlanned counts newly planned tasks.
func (st *Stats) TasksPlanned(n int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.TasksPlanned += n
}

// ContentCreated counts a rendered item and its quality.
func (st *Stats) ContentCreated(quality float64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.VideosCreatedToday++
	st.qualitySum += quality
	st.qualityCount++
	st.s.AverageQualityScore = st.qualitySum / float64(st.qualityCount)
}

// RenderFailed counts a task the renderer could not finish.
func (st *Stats) RenderFailed() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.RenderFailures++
}

// PublicationRecorded counts a terminal publication result.
func (st *Stats) PublicationRecorded(result domain.PublicationResult) {
	st.mu.Lock()
	defer st.mu.Unlock()

	pc := st.s.PlatformPerformance[result.Platform]
	if result.Success {
		st.s.VideosPublishedToday++
		st.s.SuccessfulPublications++
		pc.Published++
	} else {
		st.s.FailedPublications++
		pc.Failed++
	}
	st.s.PlatformPerformance[result.Platform] = pc
}

// RateLimited counts a dispatch bounced by the rate limiter.
func (st *Stats) RateLimited() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.RateLimited++
}

// Requeued counts an item put back into the publication queue.
func (st *Stats) Requeued() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Requeued++
}

// Snapshot returns a copy of the counters.
func (st *Stats) Snapshot() domain.ProductionStats {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := st.s
	out.PlatformPerformance = make(map[string]domain.PlatformCounters, len(st.s.PlatformPerformance))
	for k, v := range st.s.PlatformPerformance {
		out.PlatformPerformance[k] = v
	}
	return out
}

// SuccessRate is the percentage of successful terminal publications, 0 when none.
func (st *Stats) SuccessRate() float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return successRate(st.s)
}

func successRate(s domain.ProductionStats) float64 {
	total := s.SuccessfulPublications + s.FailedPublications
	if total == 0 {
		return 0
	}
	return float64(s.SuccessfulPublications) / float64(total) * 100
}
