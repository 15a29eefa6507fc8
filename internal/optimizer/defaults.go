package optimizer

import (
	"time"

	"ContentFactory/internal/domain"
)

func weekday(d time.Weekday) *time.Weekday { return &d }

// DefaultSchedules returns the built-in slot tables used when no schedule file exists.
func DefaultSchedules() map[string]domain.PlatformSchedule {
	return map[string]domain.PlatformSchedule{
		"youtube": {
			Platform: "youtube",
			Timezone: "Europe/Moscow",
			Slots: []domain.TimeSlot{
				{Hour: 12, Priority: 0.9, ExpectedReach: 15000, CompetitionLevel: 0.5},
				{Hour: 15, Priority: 0.85, ExpectedReach: 12000, CompetitionLevel: 0.5},
				{Hour: 18, Priority: 0.95, ExpectedReach: 18000, CompetitionLevel: 0.5},
				{Hour: 21, Priority: 0.9, ExpectedReach: 16000, CompetitionLevel: 0.5},
				{Hour: 9, Weekday: weekday(time.Friday), Priority: 0.8, ExpectedReach: 10000, CompetitionLevel: 0.5},
				{Hour: 14, Weekday: weekday(time.Saturday), Priority: 0.85, ExpectedReach: 14000, CompetitionLevel: 0.5},
				{Hour: 19, Weekday: weekday(time.Sunday), Priority: 0.8, ExpectedReach: 11000, CompetitionLevel: 0.5},
			},
			PeakHours:        []int{12, 15, 18, 21},
			LowActivityHours: []int{2, 3, 4, 5, 6, 7},
			WeekendModifier:  1.1,
			BoostHours: map[domain.ContentType][]int{
				domain.ContentTrendShort: {18, 19, 20, 21},
			},
		},
		"instagram": {
			Platform: "instagram",
			Timezone: "Europe/Moscow",
			Slots: []domain.TimeSlot{
				{Hour: 11, Minute: 30, Priority: 0.9, ExpectedReach: 8000, CompetitionLevel: 0.5},
				{Hour: 14, Priority: 0.85, ExpectedReach: 7500, CompetitionLevel: 0.5},
				{Hour: 17, Minute: 30, Priority: 0.95, ExpectedReach: 9500, CompetitionLevel: 0.5},
				{Hour: 20, Priority: 0.92, ExpectedReach: 9000, CompetitionLevel: 0.5},
				{Hour: 10, Weekday: weekday(time.Saturday), Priority: 0.88, ExpectedReach: 8500, CompetitionLevel: 0.5},
				{Hour: 15, Minute: 30, Weekday: weekday(time.Sunday), Priority: 0.8, ExpectedReach: 7000, CompetitionLevel: 0.5},
			},
			PeakHours:        []int{11, 14, 17, 20},
			LowActivityHours: []int{1, 2, 3, 4, 5, 6, 7, 8},
			WeekendModifier:  1.05,
			BoostHours: map[domain.ContentType][]int{
				domain.ContentMovieClip:  {17, 18, 19, 20},
				domain.ContentTrendShort: {17, 18, 19, 20},
			},
		},
		"tiktok": {
			Platform: "tiktok",
			Timezone: "Europe/Moscow",
			Slots: []domain.TimeSlot{
				{Hour: 13, Priority: 0.9, ExpectedReach: 12000, CompetitionLevel: 0.5},
				{Hour: 16, Minute: 30, Priority: 0.95, ExpectedReach: 15000, CompetitionLevel: 0.5},
				{Hour: 19, Priority: 1.0, ExpectedReach: 18000, CompetitionLevel: 0.5},
				{Hour: 22, Priority: 0.88, ExpectedReach: 14000, CompetitionLevel: 0.5},
				{Hour: 12, Weekday: weekday(time.Friday), Priority: 0.9, ExpectedReach: 13000, CompetitionLevel: 0.5},
				{Hour: 16, Weekday: weekday(time.Saturday), Priority: 0.92, ExpectedReach: 14500, CompetitionLevel: 0.5},
			},
			PeakHours:         []int{13, 16, 19, 22},
			LowActivityHours:  []int{2, 3, 4, 5, 6, 7, 8},
			WeekendModifier:   1.15,
			DefaultBoostHours: []int{16, 17, 18, 19, 20},
		},
	}
}

// DefaultAudience returns the audience distribution used by the scorer.
func DefaultAudience() Audience {
	return Audience{
		TimezoneShare: map[string]float64{
			"Europe/Moscow": 0.45,
			"Europe/Kiev":   0.25,
			"Asia/Almaty":   0.15,
			"Europe/Minsk":  0.15,
		},
		PreferredHours: map[domain.ContentType][]int{
			domain.ContentAIVideo:    {12, 18, 21},
			domain.ContentTrendShort: {15, 18, 19, 22},
			domain.ContentMovieClip:  {19, 20, 21, 22},
		},
	}
}

// defaultHours are the safe fallback publication hours per platform.
var defaultHours = map[string]int{
	"youtube":   18,
	"instagram": 17,
	"tiktok":    19,
}

const fallbackHour = 18

// DefaultHour returns the documented safe publication hour for a platform.
func DefaultHour(platform string) int {
	if h, ok := defaultHours[platform]; ok {
		return h
	}
	return fallbackHour
}
