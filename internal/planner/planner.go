// Package planner expands per-account quotas into the day's production tasks.
package planner

import (
	"fmt"
	"sort"
	"time"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

// DateLayout is the date component of task ids.
const DateLayout = "20060102"

// DefaultPriority is assigned to every freshly planned task.
const DefaultPriority = 1.0

// Account is the planning view of one configured account.
type Account struct {
	ID          string
	ContentType string
	DailyQuota  int
}

// TaskID builds the deterministic id {account}_{type}_{index}_{date}.
func TaskID(accountID string, ct domain.ContentType, index int, day time.Time) string {
	return fmt.Sprintf("%s_%s_%d_%s", accountID, ct, index, day.Format(DateLayout))
}

// Plan emits exactly DailyQuota tasks per account for the given day. It has no
// hidden state: the same inputs always yield the same task ids.
func Plan(day time.Time, accounts []Account) ([]domain.ProductionTask, error) {
	createdAt := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	total := 0
	for _, acc := range accounts {
		if acc.DailyQuota > 0 {
			total += acc.DailyQuota
		}
	}

	tasks := make([]domain.ProductionTask, 0, total)
	for _, acc := range accounts {
		ct, err := domain.ParseContentType(acc.ContentType)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", acc.ID, err)
		}
		if acc.DailyQuota < 0 {
			return nil, &domain.ConfigurationError{
				Field: "daily_quota",
				Msg:   fmt.Sprintf("account %s has negative quota %d", acc.ID, acc.DailyQuota),
			}
		}

		for i := 0; i < acc.DailyQuota; i++ {
			spec, err := domain.DefaultSpec(ct)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", acc.ID, err)
			}
			tasks = append(tasks, domain.ProductionTask{
				ID:          TaskID(acc.ID, ct, i, day),
				AccountID:   acc.ID,
				ContentType: ct,
				Spec:        spec,
				Priority:    DefaultPriority,
				CreatedAt:   createdAt,
			})
		}
	}

	return tasks, nil
}

// maxTrendBoost caps how far a trend signal can raise a task priority.
const maxTrendBoost = 0.5

// ApplyTrendBias attaches the strongest trend signals to trend_short tasks and
// raises their priority proportionally to the signal score. Other task types
// pass through unchanged. The input slice is not modified.
func ApplyTrendBias(tasks []domain.ProductionTask, signals []ports.TrendSignal) []domain.ProductionTask {
	out := make([]domain.ProductionTask, len(tasks))
	copy(out, tasks)
	if len(signals) == 0 {
		return out
	}

	ranked := make([]ports.TrendSignal, len(signals))
	copy(ranked, signals)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	next := 0
	for i := range out {
		spec, ok := out[i].Spec.(domain.TrendShortSpec)
		if !ok {
			continue
		}
		signal := ranked[next%len(ranked)]
		next++

		spec.SourceURL = signal.URL
		out[i].Spec = spec
		out[i].Priority = DefaultPriority + clamp(signal.Score, 0, 1)*maxTrendBoost
	}

	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
