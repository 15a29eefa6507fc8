package optimizer

import (
	"math"

	"ContentFactory/internal/domain"
)

const (
	feedbackKeep = 0.9
	feedbackGain = 0.1
	minPriority  = 0.1
	maxPriority  = 1.0
)

// ApplyFeedback nudges slot priority and expected reach toward measured
// results with an exponential moving average. Feedback for unknown platforms
// or hours is ignored. It returns the number of slots updated.
func (o *Optimizer) ApplyFeedback(items []domain.SlotFeedback) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	updated := 0
	for _, fb := range items {
		sched, ok := o.schedules[fb.Platform]
		if !ok {
			continue
		}
		for i := range sched.Slots {
			slot := &sched.Slots[i]
			if slot.Hour != fb.ScheduledHour {
				continue
			}
			ratio := float64(fb.ActualReach) / math.Max(float64(slot.ExpectedReach), 1)
			slot.Priority = clamp(feedbackKeep*slot.Priority+feedbackGain*ratio, minPriority, maxPriority)
			slot.ExpectedReach = int(feedbackKeep*float64(slot.ExpectedReach) + feedbackGain*float64(fb.ActualReach))
			updated++
		}
	}
	if updated > 0 {
		o.logger.Info("slot weights updated from analytics", "slots", updated)
	}
	return updated
}
