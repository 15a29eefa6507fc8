package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"

	"github.com/google/uuid"
)

// HTTPRenderer talks to an external media rendering service.
type HTTPRenderer struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer creates a reusable HTTP client. Rendering is slow, so the
// timeout is usually minutes rather than seconds.
func NewHTTPRenderer(endpoint, apiKey string, timeout time.Duration) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPRenderer{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type renderPayload struct {
	TaskID       string `json:"task_id"`
	AccountID    string `json:"account_id"`
	ContentType  string `json:"content_type"`
	TemplateID   string `json:"template_id"`
	ScriptText   string `json:"script_text"`
	Platform     string `json:"platform"`
	QualityLevel string `json:"quality_level"`
}

type renderResponse struct {
	Success         bool              `json:"success"`
	Error           string            `json:"error"`
	VideoPath       string            `json:"video_path"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Tags            []string          `json:"tags"`
	DurationSeconds float64           `json:"duration"`
	QualityScore    float64           `json:"quality_score"`
	Metadata        map[string]string `json:"metadata"`
}

// Render posts the task to /render and maps any failure to a RenderError.
func (r *HTTPRenderer) Render(ctx context.Context, req ports.RenderRequest) (ports.RenderOutput, error) {
	payload := renderPayload{
		TaskID:       req.TaskID,
		AccountID:    req.AccountID,
		ContentType:  string(req.ContentType),
		TemplateID:   req.TemplateID,
		ScriptText:   req.ScriptText,
		Platform:     req.Platform,
		QualityLevel: req.QualityLevel,
	}

	var resp renderResponse
	if err := r.post(ctx, "/render", payload, &resp); err != nil {
		return ports.RenderOutput{}, &domain.RenderError{TaskID: req.TaskID, Err: err}
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "renderer reported failure"
		}
		return ports.RenderOutput{}, &domain.RenderError{TaskID: req.TaskID, Err: errors.New(msg)}
	}
	if resp.VideoPath == "" {
		return ports.RenderOutput{}, &domain.RenderError{TaskID: req.TaskID, Err: errors.New("renderer returned no artifact")}
	}

	return ports.RenderOutput{
		ArtifactPath: resp.VideoPath,
		Title:        resp.Title,
		Description:  resp.Description,
		Tags:         resp.Tags,
		Duration:     time.Duration(resp.DurationSeconds * float64(time.Second)),
		QualityScore: resp.QualityScore,
		Metadata:     resp.Metadata,
	}, nil
}

func (r *HTTPRenderer) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
