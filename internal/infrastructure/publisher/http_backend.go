package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"

	"github.com/google/uuid"
)

// HTTPBackend uploads through a publishing gateway that fronts one platform.
// Requests go to {endpoint}/{platform}/publish.
type HTTPBackend struct {
	platform string
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.PublisherBackend = (*HTTPBackend)(nil)
var _ ports.AnalyticsSource = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend for one platform.
func NewHTTPBackend(platform, endpoint, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		platform: platform,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// Platform returns the destination name.
func (b *HTTPBackend) Platform() string { return b.platform }

type publishPayload struct {
	AccountID    string            `json:"account_id"`
	ArtifactPath string            `json:"file_path"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Tags         []string          `json:"tags"`
	Privacy      string            `json:"privacy"`
	Credentials  map[string]string `json:"credentials,omitempty"`
}

type publishAnswer struct {
	Success   bool   `json:"success"`
	VideoID   string `json:"video_id"`
	URL       string `json:"url"`
	Error     string `json:"error"`
	Retryable *bool  `json:"retryable"`
}

// Publish sends one upload. Transport failures come back as errors; HTTP
// answers are mapped to a PublishResponse: 429 and 5xx are retryable, other
// 4xx are not.
func (b *HTTPBackend) Publish(ctx context.Context, req ports.PublishRequest) (ports.PublishResponse, error) {
	body, err := json.Marshal(publishPayload{
		AccountID:    req.AccountID,
		ArtifactPath: req.ArtifactPath,
		Title:        req.Title,
		Description:  req.Description,
		Tags:         req.Tags,
		Privacy:      req.Privacy,
		Credentials:  req.Credentials,
	})
	if err != nil {
		return ports.PublishResponse{}, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/"+b.platform+"/publish", bytes.NewReader(body))
	if err != nil {
		return ports.PublishResponse{}, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	b.authorize(httpReq)

	resp, err := b.http.Do(httpReq)
	if err != nil {
		return ports.PublishResponse{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.PublishResponse{}, fmt.Errorf("read response: %w", err)
	}

	var answer publishAnswer
	_ = json.Unmarshal(raw, &answer)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := answer.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = resp.Status
		}
		return ports.PublishResponse{
			Success:   false,
			Error:     msg,
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}, nil
	}

	if !answer.Success {
		retryable := true
		if answer.Retryable != nil {
			retryable = *answer.Retryable
		}
		return ports.PublishResponse{Success: false, Error: answer.Error, Retryable: retryable}, nil
	}

	return ports.PublishResponse{
		Success:    true,
		ExternalID: answer.VideoID,
		URL:        answer.URL,
	}, nil
}

type feedbackRecord struct {
	Hour        int `json:"hour"`
	ActualReach int `json:"views"`
}

// FetchFeedback returns measured reach per publishing hour since the given time.
func (b *HTTPBackend) FetchFeedback(ctx context.Context, since time.Time) ([]domain.SlotFeedback, error) {
	q := url.Values{}
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint := b.endpoint + "/" + b.platform + "/analytics?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	b.authorize(req)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var records []feedbackRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode analytics: %w", err)
	}

	out := make([]domain.SlotFeedback, 0, len(records))
	for _, r := range records {
		if r.Hour < 0 || r.Hour > 23 {
			continue
		}
		out = append(out, domain.SlotFeedback{
			Platform:      b.platform,
			ScheduledHour: r.Hour,
			ActualReach:   r.ActualReach,
		})
	}
	return out, nil
}

func (b *HTTPBackend) authorize(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
}
