package planner

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

var planDay = time.Date(2025, time.March, 14, 6, 0, 0, 0, time.UTC)

func TestPlanEmitsExactQuota(t *testing.T) {
	t.Parallel()

	tasks, err := Plan(planDay, []Account{{ID: "X", ContentType: "ai_video", DailyQuota: 10}})
	require.NoError(t, err)
	require.Len(t, tasks, 10)

	seen := map[string]bool{}
	for _, task := range tasks {
		assert.True(t, strings.HasPrefix(task.ID, "X_ai_video_"), task.ID)
		assert.True(t, strings.HasSuffix(task.ID, "_20250314"), task.ID)
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true

		assert.Equal(t, DefaultPriority, task.Priority)
		assert.Equal(t, domain.ContentAIVideo, task.ContentType)
		_, isAI := task.Spec.(domain.AIVideoSpec)
		assert.True(t, isAI)
	}
}

func TestPlanIsIdempotentForSameDay(t *testing.T) {
	t.Parallel()

	accounts := []Account{
		{ID: "X", ContentType: "ai_video", DailyQuota: 10},
		{ID: "Y", ContentType: "movie_clip", DailyQuota: 3},
	}

	first, err := Plan(planDay, accounts)
	require.NoError(t, err)
	second, err := Plan(planDay.Add(5*time.Hour), accounts)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestPlanRejectsUnknownContentType(t *testing.T) {
	t.Parallel()

	_, err := Plan(planDay, []Account{{ID: "Z", ContentType: "podcast", DailyQuota: 1}})
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestPlanZeroQuota(t *testing.T) {
	t.Parallel()

	tasks, err := Plan(planDay, []Account{{ID: "X", ContentType: "trend_short", DailyQuota: 0}})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestApplyTrendBias(t *testing.T) {
	t.Parallel()

	tasks, err := Plan(planDay, []Account{
		{ID: "T", ContentType: "trend_short", DailyQuota: 3},
		{ID: "A", ContentType: "ai_video", DailyQuota: 1},
	})
	require.NoError(t, err)

	signals := []ports.TrendSignal{
		{URL: "https://example.org/low", Score: 0.2},
		{URL: "https://example.org/high", Score: 0.9},
	}
	biased := ApplyTrendBias(tasks, signals)
	require.Len(t, biased, 4)

	first := biased[0].Spec.(domain.TrendShortSpec)
	assert.Equal(t, "https://example.org/high", first.SourceURL)
	assert.InDelta(t, 1.45, biased[0].Priority, 1e-9)

	second := biased[1].Spec.(domain.TrendShortSpec)
	assert.Equal(t, "https://example.org/low", second.SourceURL)

	assert.Equal(t, DefaultPriority, biased[3].Priority)
	assert.Equal(t, DefaultPriority, tasks[0].Priority, "input must stay untouched")
	assert.Empty(t, tasks[0].Spec.(domain.TrendShortSpec).SourceURL)
}
