package ports

import (
	"context"
	"time"

	"ContentFactory/internal/domain"
)

// RenderRequest carries everything the media renderer needs for one task.
type RenderRequest struct {
	TaskID       string
	AccountID    string
	ContentType  domain.ContentType
	TemplateID   string
	ScriptText   string
	Platform     string
	QualityLevel string
}

// RenderOutput is what a renderer returns on success.
type RenderOutput struct {
	ArtifactPath string
	Title        string
	Description  string
	Tags         []string
	Duration     time.Duration
	QualityScore float64
	Metadata     map[string]string
}

// Renderer turns a production task into an audio/video artifact.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderOutput, error)
}

// TrendQuery narrows the trend search.
type TrendQuery struct {
	Categories []string
	Platforms  []string
	MinViews   int
	MaxAgeDays int
}

// TrendSignal is one ranked external content item.
type TrendSignal struct {
	Title    string
	URL      string
	Platform string
	Category string
	Views    int
	Score    float64
}

// TrendSignalProvider ranks external content by popularity.
type TrendSignalProvider interface {
	FindTrends(ctx context.Context, q TrendQuery) ([]TrendSignal, error)
}

// PublishRequest is the platform-neutral upload request.
type PublishRequest struct {
	AccountID    string
	ArtifactPath string
	Title        string
	Description  string
	Tags         []string
	Privacy      string
	Credentials  map[string]string
}

// PublishResponse mirrors a backend answer. Retryable only matters when Success is false.
type PublishResponse struct {
	Success    bool
	ExternalID string
	URL        string
	Error      string
	Retryable  bool
}

// PublisherBackend uploads to one destination platform.
type PublisherBackend interface {
	Platform() string
	Publish(ctx context.Context, req PublishRequest) (PublishResponse, error)
}

// AnalyticsSource reports measured reach of past publications.
type AnalyticsSource interface {
	FetchFeedback(ctx context.Context, since time.Time) ([]domain.SlotFeedback, error)
}

// ResultLog is the append-only publication result log.
type ResultLog interface {
	Append(ctx context.Context, result domain.PublicationResult) error
}

// ResultReader lists recorded publication results, newest first.
type ResultReader interface {
	Recent(ctx context.Context, platforms []string, limit int) ([]domain.PublicationResult, error)
}

// TaskLedger remembers planned tasks so re-planning the same day is idempotent.
type TaskLedger interface {
	// Register stores tasks and returns only those not seen before.
	Register(ctx context.Context, tasks []domain.ProductionTask) ([]domain.ProductionTask, error)
	MarkRunning(ctx context.Context, taskID string) error
	MarkFinished(ctx context.Context, taskID string, taskErr error) error
}

// TaskCounter is implemented by ledgers that can summarise a day by task state.
type TaskCounter interface {
	CountByState(ctx context.Context, day string) (map[string]int64, error)
}

// ScheduleStore persists platform schedules.
type ScheduleStore interface {
	Load(ctx context.Context) (map[string]domain.PlatformSchedule, error)
	Save(ctx context.Context, schedules map[string]domain.PlatformSchedule) error
}

// ResourceSampler reports host cpu/memory usage in percent.
type ResourceSampler interface {
	Sample(ctx context.Context) (cpuPct, memPct float64, err error)
}

// ReportWriter persists daily stats reports.
type ReportWriter interface {
	Write(ctx context.Context, report domain.DailyReport) (string, error)
}

// Notifier streams digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when daily jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
