package domain

import "time"

// TimeSlot is a recurring publication time candidate for one platform.
type TimeSlot struct {
	Hour             int           `yaml:"hour" json:"hour"`
	Minute           int           `yaml:"minute" json:"minute"`
	Weekday          *time.Weekday `yaml:"weekday,omitempty" json:"weekday,omitempty"`
	Priority         float64       `yaml:"priority" json:"priority"`
	ExpectedReach    int           `yaml:"expected_reach" json:"expected_reach"`
	CompetitionLevel float64       `yaml:"competition_level" json:"competition_level"`
}

// PlatformSchedule holds the slot table and activity hints of one platform.
type PlatformSchedule struct {
	Platform          string                `yaml:"platform" json:"platform"`
	Timezone          string                `yaml:"timezone" json:"timezone"`
	Slots             []TimeSlot            `yaml:"slots" json:"slots"`
	PeakHours         []int                 `yaml:"peak_hours" json:"peak_hours"`
	LowActivityHours  []int                 `yaml:"low_activity_hours" json:"low_activity_hours"`
	WeekendModifier   float64               `yaml:"weekend_modifier" json:"weekend_modifier"`
	BoostHours        map[ContentType][]int `yaml:"boost_hours,omitempty" json:"boost_hours,omitempty"`
	DefaultBoostHours []int                 `yaml:"default_boost_hours,omitempty" json:"default_boost_hours,omitempty"`
}

// AlgorithmBoostHours returns the boost hours for a content type, falling back
// to the platform-wide default set.
func (p PlatformSchedule) AlgorithmBoostHours(ct ContentType) []int {
	if hours, ok := p.BoostHours[ct]; ok && len(hours) > 0 {
		return hours
	}
	return p.DefaultBoostHours
}

// ExpectedPerformance is the predicted outcome of a plan.
type ExpectedPerformance struct {
	PredictedReach    int     `json:"predicted_reach"`
	PredictedLikes    int     `json:"predicted_likes"`
	PredictedComments int     `json:"predicted_comments"`
	PredictedShares   int     `json:"predicted_shares"`
	EngagementRate    float64 `json:"engagement_rate"`
	ViralProbability  int     `json:"viral_probability"`
}

// PublicationPlan is the computed schedule for one ContentItem.
type PublicationPlan struct {
	ContentID           string              `json:"content_id"`
	AccountID           string              `json:"account_id"`
	Platform            string              `json:"platform"`
	ScheduledTime       time.Time           `json:"scheduled_time"`
	ConfidenceScore     float64             `json:"confidence_score"`
	ExpectedPerformance ExpectedPerformance `json:"expected_performance"`
	BackupTimes         []time.Time         `json:"backup_times"`
}

// PublicationResult is the terminal, append-only record of a dispatch.
type PublicationResult struct {
	ContentID     string            `json:"content_id"`
	Success       bool              `json:"success"`
	Platform      string            `json:"platform"`
	AccountID     string            `json:"account_id"`
	ExternalID    string            `json:"external_id,omitempty"`
	URL           string            `json:"url,omitempty"`
	Error         string            `json:"error,omitempty"`
	Attempts      int               `json:"attempts"`
	ScheduledTime time.Time         `json:"scheduled_time"`
	PublishedAt   time.Time         `json:"published_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// SlotFeedback reports measured reach for a publication made at a given hour.
type SlotFeedback struct {
	Platform      string
	ScheduledHour int
	ActualReach   int
}
