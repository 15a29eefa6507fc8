package domain

import "time"

// HealthStatus is the coarse classification of the host.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthDegraded    HealthStatus = "degraded"
	HealthCritical    HealthStatus = "critical"
	HealthRecovered   HealthStatus = "recovered"
	HealthMaintenance HealthStatus = "maintenance"
)

// SystemHealth is a point-in-time view of resource usage and load.
type SystemHealth struct {
	Status           HealthStatus `json:"status"`
	CPUPercent       float64      `json:"cpu_usage"`
	MemoryPercent    float64      `json:"memory_usage"`
	ActiveTasks      int          `json:"active_tasks"`
	ConcurrencyLimit int          `json:"concurrency_limit"`
	QueueSize        int          `json:"queue_size"`
	LastError        string       `json:"last_error,omitempty"`
	Uptime           float64      `json:"uptime_seconds"`
	SampledAt        time.Time    `json:"sampled_at"`
}

// PlatformCounters aggregates outcomes per platform.
type PlatformCounters struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// ProductionStats are the daily counters of the factory.
type ProductionStats struct {
	Day                    string                      `json:"day"`
	TasksPlanned           int                         `json:"tasks_planned"`
	VideosCreatedToday     int                         `json:"videos_created_today"`
	RenderFailures         int                         `json:"render_failures"`
	VideosPublishedToday   int                         `json:"videos_published_today"`
	SuccessfulPublications int                         `json:"successful_publications"`
	FailedPublications     int                         `json:"failed_publications"`
	RateLimited            int                         `json:"rate_limited"`
	Requeued               int                         `json:"requeued"`
	AverageQualityScore    float64                     `json:"average_quality_score"`
	PlatformPerformance    map[string]PlatformCounters `json:"platform_performance"`
}

// DailyReport is the JSON document written at day end and on shutdown.
type DailyReport struct {
	Date        string           `json:"date"`
	GeneratedAt time.Time        `json:"generated_at"`
	Reason      string           `json:"reason"`
	Production  ProductionStats  `json:"production_stats"`
	Health      SystemHealth     `json:"system_health"`
	SuccessRate float64          `json:"success_rate"`
	Tasks       map[string]int64 `json:"tasks,omitempty"`
}
