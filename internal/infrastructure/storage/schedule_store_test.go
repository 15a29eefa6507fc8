package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentFactory/internal/domain"
)

func sampleSchedules() map[string]domain.PlatformSchedule {
	fri := time.Friday
	return map[string]domain.PlatformSchedule{
		"youtube": {
			Platform: "youtube",
			Timezone: "Europe/Moscow",
			Slots: []domain.TimeSlot{
				{Hour: 18, Priority: 0.95, ExpectedReach: 18000, CompetitionLevel: 0.5},
				{Hour: 9, Weekday: &fri, Priority: 0.8, ExpectedReach: 10000, CompetitionLevel: 0.5},
			},
			BoostHours: map[domain.ContentType][]int{domain.ContentTrendShort: {18, 19}},
		},
	}
}

func TestYAMLScheduleStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewYAMLScheduleStore(filepath.Join(t.TempDir(), "config", "schedules.yaml"), nil)

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Save(ctx, sampleSchedules()))
	got, err := store.Load(ctx)
	require.NoError(t, err)

	yt := got["youtube"]
	require.Len(t, yt.Slots, 2)
	require.NotNil(t, yt.Slots[1].Weekday)
	assert.Equal(t, time.Friday, *yt.Slots[1].Weekday)
	assert.Nil(t, yt.Slots[0].Weekday)
	assert.Equal(t, []int{18, 19}, yt.AlgorithmBoostHours(domain.ContentTrendShort))
}

func TestYAMLScheduleStoreFillsPlatformName(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platforms:\n  tiktok:\n    timezone: UTC\n    slots:\n      - hour: 19\n        priority: 1\n"), 0o644))

	got, err := NewYAMLScheduleStore(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tiktok", got["tiktok"].Platform)
	assert.Equal(t, 19, got["tiktok"].Slots[0].Hour)
}

func TestYAMLScheduleStoreWatch(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	store := NewYAMLScheduleStore(path, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan map[string]domain.PlatformSchedule, 4)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, func(s map[string]domain.PlatformSchedule) { changed <- s })
	}()

	// the watcher needs a moment to register before the first write
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		require.NoError(t, store.Save(context.Background(), sampleSchedules()))
		select {
		case got := <-changed:
			assert.Contains(t, got, "youtube")
			cancel()
			require.NoError(t, <-done)
			return
		case <-deadline:
			t.Fatal("no reload observed")
		case <-tick.C:
		}
	}
}
