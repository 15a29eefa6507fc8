package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ContentFactory/internal/config"
	"ContentFactory/internal/domain"
	"ContentFactory/internal/infrastructure/storage"
	"ContentFactory/internal/optimizer"
)

func TestNewOptimizerSeedsEmptyStore(t *testing.T) {
	t.Parallel()

	store := storage.NewYAMLScheduleStore(filepath.Join(t.TempDir(), "schedules.yaml"), nil)
	opt, err := NewOptimizer(context.Background(), config.Default(), store, nil)
	if err != nil {
		t.Fatalf("new optimizer: %v", err)
	}

	saved, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load seeded store: %v", err)
	}
	for _, name := range []string{"youtube", "instagram", "tiktok"} {
		if len(saved[name].Slots) == 0 {
			t.Fatalf("platform %s was not seeded", name)
		}
	}
	if len(opt.Schedules()) != 3 {
		t.Fatalf("optimizer has %d schedules", len(opt.Schedules()))
	}
}

func TestAudienceConversion(t *testing.T) {
	t.Parallel()

	got := Audience(config.AudienceConfig{
		TimezoneShare:  map[string]float64{"Europe/Moscow": 0.6},
		PreferredHours: map[string][]int{"movie_clip": {20}},
	})
	if got.TimezoneShare["Europe/Moscow"] != 0.6 {
		t.Fatalf("timezone share not copied: %v", got.TimezoneShare)
	}
	if hours := got.PreferredHours[domain.ContentMovieClip]; len(hours) != 1 || hours[0] != 20 {
		t.Fatalf("preferred hours not converted: %v", got.PreferredHours)
	}

	empty := Audience(config.AudienceConfig{})
	if len(empty.PreferredHours) != len(optimizer.DefaultAudience().PreferredHours) {
		t.Fatalf("empty audience should fall back to defaults")
	}
}

func TestNewWiresFallbackAdapters(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.HTTP.Addr = ""
	cfg.Storage.LedgerPath = filepath.Join(dir, "ledger.db")
	cfg.Storage.ResultLogPath = filepath.Join(dir, "results.jsonl")
	cfg.Storage.SchedulePath = filepath.Join(dir, "schedules.yaml")
	cfg.Storage.ReportDir = filepath.Join(dir, "reports")
	quota := 2
	cfg.Accounts = []config.AccountConfig{{ID: "main", ContentType: "ai_video", DailyQuota: &quota, Platforms: []string{"youtube"}}}

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	defer a.Close()

	tasks, err := a.factory.RunPlanningCycle(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("planning: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	again, err := a.factory.RunPlanningCycle(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("re-planning: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("ledger did not dedupe, got %d", len(again))
	}
}
