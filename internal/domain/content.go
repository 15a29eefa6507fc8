package domain

import (
	"fmt"
	"time"
)

// ContentType enumerates the kinds of artifacts the factory produces.
type ContentType string

const (
	ContentAIVideo    ContentType = "ai_video"
	ContentTrendShort ContentType = "trend_short"
	ContentMovieClip  ContentType = "movie_clip"
)

// ContentTypes lists every supported content type in a stable order.
var ContentTypes = []ContentType{ContentAIVideo, ContentTrendShort, ContentMovieClip}

// ParseContentType validates a raw config value.
func ParseContentType(raw string) (ContentType, error) {
	switch ContentType(raw) {
	case ContentAIVideo, ContentTrendShort, ContentMovieClip:
		return ContentType(raw), nil
	}
	return "", &ConfigurationError{Field: "content_type", Msg: fmt.Sprintf("unknown content type %q", raw)}
}

// DurationRange is an inclusive min/max in seconds.
type DurationRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// TaskSpec is the content-type specific payload of a ProductionTask.
// Implementations are AIVideoSpec, TrendShortSpec and MovieClipSpec.
type TaskSpec interface {
	ContentType() ContentType
	RenderHints() RenderHints
	isTaskSpec()
}

// RenderHints are the renderer inputs derived from a task spec.
type RenderHints struct {
	TemplateID   string
	Platform     string
	QualityLevel string
}

// AIVideoSpec requests an AI generated video.
type AIVideoSpec struct {
	Duration DurationRange `json:"duration"`
	Quality  string        `json:"quality"`
	Themes   []string      `json:"themes"`
}

func (AIVideoSpec) ContentType() ContentType { return ContentAIVideo }

func (AIVideoSpec) RenderHints() RenderHints {
	return RenderHints{TemplateID: "motivation_viral", Platform: "youtube", QualityLevel: "ultra"}
}

func (AIVideoSpec) isTaskSpec() {}

// TrendShortSpec requests a short built around a trending source.
type TrendShortSpec struct {
	Duration  DurationRange `json:"duration"`
	Quality   string        `json:"quality"`
	Platforms []string      `json:"platforms"`
	SourceURL string        `json:"source_url,omitempty"`
}

func (TrendShortSpec) ContentType() ContentType { return ContentTrendShort }

func (TrendShortSpec) RenderHints() RenderHints {
	return RenderHints{TemplateID: "facts_viral", Platform: "tiktok", QualityLevel: "high"}
}

func (TrendShortSpec) isTaskSpec() {}

// MovieClipSpec requests a cinematic clip.
type MovieClipSpec struct {
	Duration DurationRange `json:"duration"`
	Quality  string        `json:"quality"`
	Genres   []string      `json:"genres"`
}

func (MovieClipSpec) ContentType() ContentType { return ContentMovieClip }

func (MovieClipSpec) RenderHints() RenderHints {
	return RenderHints{TemplateID: "money_viral", Platform: "instagram", QualityLevel: "ultra"}
}

func (MovieClipSpec) isTaskSpec() {}

// DefaultSpec returns the baseline payload for a content type.
func DefaultSpec(ct ContentType) (TaskSpec, error) {
	switch ct {
	case ContentAIVideo:
		return AIVideoSpec{
			Duration: DurationRange{Min: 30, Max: 60},
			Quality:  "high",
			Themes:   []string{"motivational", "educational", "entertainment"},
		}, nil
	case ContentTrendShort:
		return TrendShortSpec{
			Duration:  DurationRange{Min: 15, Max: 30},
			Quality:   "viral",
			Platforms: []string{"youtube", "tiktok", "instagram"},
		}, nil
	case ContentMovieClip:
		return MovieClipSpec{
			Duration: DurationRange{Min: 20, Max: 45},
			Quality:  "cinematic",
			Genres:   []string{"action", "drama", "comedy", "thriller"},
		}, nil
	}
	return nil, &ConfigurationError{Field: "content_type", Msg: fmt.Sprintf("unknown content type %q", ct)}
}

// ProductionTask is one unit of work requesting a single content artifact.
type ProductionTask struct {
	ID          string
	AccountID   string
	ContentType ContentType
	Spec        TaskSpec
	Priority    float64
	CreatedAt   time.Time
}

// ContentItem is a rendered artifact awaiting publication.
type ContentItem struct {
	ContentID    string
	AccountID    string
	ContentType  ContentType
	ArtifactPath string
	Title        string
	Description  string
	Tags         []string
	Duration     time.Duration
	QualityScore float64
	CreatedAt    time.Time
	Metadata     map[string]string
}
