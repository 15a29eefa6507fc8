package renderer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

const fallbackQuality = 0.7

type placeholder struct {
	title       string
	description string
	tags        []string
	duration time.Duration
}

// FallbackRenderer produces placeholder items when no rendering service is
// configured. It never fails for a known content type.
type FallbackRenderer struct {
	outputDir string
}

var _ ports.Renderer = (*FallbackRenderer)(nil)

// NewFallbackRenderer places artifact paths under outputDir.
func NewFallbackRenderer(outputDir string) *FallbackRenderer {
	return &FallbackRenderer{outputDir: outputDir}
}

// Render builds placeholder metadata for the task.
func (f *FallbackRenderer) Render(ctx context.Context, req ports.RenderRequest) (ports.RenderOutput, error) {
	if err := ctx.Err(); err != nil {
		return ports.RenderOutput{}, &domain.RenderError{TaskID: req.TaskID, Err: err}
	}

	p, ok := placeholderFor(req.ContentType, req.TaskID)
	if !ok {
		return ports.RenderOutput{}, &domain.RenderError{
			TaskID: req.TaskID,
			Err:    fmt.Errorf("no placeholder for content type %q", req.ContentType),
		}
	}

	return ports.RenderOutput{
		ArtifactPath: filepath.Join(f.outputDir, req.TaskID+".mp4"),
		Title:        p.title,
		Description:  p.description,
		Tags:         p.tags,
		Duration:     p.duration,
		QualityScore: fallbackQuality,
		Metadata: map[string]string{
			"is_fallback":     "true",
			"fallback_reason": "main generator unavailable",
			"template_id":     req.TemplateID,
		},
	}, nil
}

func placeholderFor(ct domain.ContentType, taskID string) (placeholder, bool) {
	suffix := taskID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}

	switch ct {
	case domain.ContentAIVideo:
		return placeholder{
			title:       "AI content #" + suffix,
			description: "Incredible content made by artificial intelligence!\n\n#AI #Viral #Tech",
			tags:        []string{"AI", "tech", "viral", "content"},
			duration:    30 * time.Second,
		}, true
	case domain.ContentTrendShort:
		return placeholder{
			title:       "Trending content #" + suffix,
			description: "The hottest trends right now!\n\n#Trending #Viral #Hot",
			tags:        []string{"trending", "viral", "hot", "content"},
			duration:    25 * time.Second,
		}, true
	case domain.ContentMovieClip:
		return placeholder{
			title:       "Movie clip #" + suffix,
			description: "The best moments from popular films!\n\n#Movies #Cinema #Viral",
			tags:        []string{"movies", "cinema", "viral", "clips"},
			duration:    35 * time.Second,
		}, true
	}
	return placeholder{}, false
}
