// Package dispatcher publishes scheduled content items: it waits for the
// planned time, enforces per-platform rate limits, retries transient backend
// failures and records every terminal outcome.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

// OperationPublish is the rate-limit operation used for uploads.
const OperationPublish = "publish"

// Config controls waiting, retries and rate limiting.
type Config struct {
	MaxRetryAttempts int
	BaseDelay        time.Duration
	MaxWait          time.Duration
	RateLimitCalls   int
	RateLimitWindow  time.Duration
	Privacy          string
}

// DefaultConfig matches the factory defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetryAttempts: 3,
		BaseDelay:        5 * time.Second,
		MaxWait:          time.Hour,
		RateLimitCalls:   100,
		RateLimitWindow:  time.Hour,
		Privacy:          "public",
	}
}

// Backends resolves the publisher for a platform.
type Backends interface {
	Backend(platform string) (ports.PublisherBackend, bool)
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithSleeper replaces the context-aware sleep used for waits and retry delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// WithRateLimiter shares a limiter between dispatchers.
func WithRateLimiter(l *RateLimiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithCredentials supplies per-account credentials for publish requests.
func WithCredentials(lookup func(accountID string) map[string]string) Option {
	return func(d *Dispatcher) { d.credentials = lookup }
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	cfg         Config
	backends    Backends
	results     ports.ResultLog
	limiter     *RateLimiter
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	credentials func(accountID string) map[string]string
	logger      *slog.Logger
}

// New builds a dispatcher. A nil result log disables recording.
func New(cfg Config, backends Backends, results ports.ResultLog, logger *slog.Logger, opts ...Option) *Dispatcher {
	if cfg.MaxRetryAttempts < 0 {
		cfg.MaxRetryAttempts = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:      cfg,
		backends: backends,
		results:  results,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.limiter == nil {
		d.limiter = NewRateLimiter(cfg.RateLimitCalls, cfg.RateLimitWindow, d.now)
	}
	return d
}

// Dispatch publishes one item according to its plan.
//
// It returns domain.ErrNotDue without side effects when the plan is further
// away than MaxWait, and *domain.RateLimitedError when the platform window is
// full before the first attempt; both mean the caller should re-queue the
// item. Once an attempt has been made the call waits out a full window itself,
// so the retry budget is never reset. Any other outcome is terminal and has
// been appended to the result log.
func (d *Dispatcher) Dispatch(ctx context.Context, item domain.ContentItem, plan domain.PublicationPlan) (domain.PublicationResult, error) {
	if wait := plan.ScheduledTime.Sub(d.now()); wait > 0 {
		if wait > d.cfg.MaxWait {
			return domain.PublicationResult{}, domain.ErrNotDue
		}
		d.logger.Debug("waiting for publication slot", "content_id", item.ContentID, "wait", wait)
		if err := d.sleep(ctx, wait); err != nil {
			return domain.PublicationResult{}, err
		}
	}

	result := domain.PublicationResult{
		ContentID:     item.ContentID,
		Platform:      plan.Platform,
		AccountID:     item.AccountID,
		ScheduledTime: plan.ScheduledTime,
		Metadata:      resultMetadata(item, plan),
	}

	backend, ok := d.backends.Backend(plan.Platform)
	if !ok {
		err := &domain.ConfigurationError{
			Field: "publisher",
			Msg:   fmt.Sprintf("no backend registered for platform %q", plan.Platform),
		}
		return d.finish(ctx, result, err), err
	}

	req := ports.PublishRequest{
		AccountID:    item.AccountID,
		ArtifactPath: item.ArtifactPath,
		Title:        item.Title,
		Description:  item.Description,
		Tags:         item.Tags,
		Privacy:      d.cfg.Privacy,
	}
	if d.credentials != nil {
		req.Credentials = d.credentials(item.AccountID)
	}

	delays := d.newBackOff()
	var lastErr error
	for {
		if allowed, retryAfter := d.limiter.Allow(plan.Platform, OperationPublish); !allowed {
			limited := &domain.RateLimitedError{
				Platform:   plan.Platform,
				Operation:  OperationPublish,
				RetryAfter: retryAfter,
			}
			if result.Attempts == 0 {
				return domain.PublicationResult{}, limited
			}
			// Attempts already spent stay with this call; waiting out the
			// window does not consume one.
			d.logger.Warn("rate limited between retries, waiting",
				"content_id", item.ContentID,
				"platform", plan.Platform,
				"attempts", result.Attempts,
				"retry_after", retryAfter)
			if serr := d.sleep(ctx, retryAfter); serr != nil {
				return d.finish(ctx, result, lastErr), errors.Join(lastErr, limited, serr)
			}
			continue
		}

		result.Attempts++
		err := d.publishOnce(ctx, backend, req, &result)
		lastErr = err
		if err == nil {
			d.logger.Info("content published",
				"content_id", item.ContentID,
				"platform", plan.Platform,
				"external_id", result.ExternalID,
				"attempts", result.Attempts)
			return d.finish(ctx, result, nil), nil
		}

		if !domain.IsRetryable(err) {
			return d.finish(ctx, result, err), err
		}
		if result.Attempts > d.cfg.MaxRetryAttempts {
			d.logger.Error("retries exhausted", "content_id", item.ContentID, "platform", plan.Platform, "attempts", result.Attempts, "error", err)
			return d.finish(ctx, result, err), err
		}

		delay := delays.NextBackOff()
		d.logger.Warn("transient publish failure, retrying",
			"content_id", item.ContentID,
			"platform", plan.Platform,
			"attempt", result.Attempts,
			"delay", delay,
			"error", err)
		if serr := d.sleep(ctx, delay); serr != nil {
			return d.finish(ctx, result, err), errors.Join(err, serr)
		}
	}
}

// publishOnce calls the backend and classifies its answer.
func (d *Dispatcher) publishOnce(ctx context.Context, backend ports.PublisherBackend, req ports.PublishRequest, result *domain.PublicationResult) error {
	resp, err := backend.Publish(ctx, req)
	if err != nil {
		var transient *domain.TransientPublishError
		var permanent *domain.PermanentPublishError
		switch {
		case errors.As(err, &transient), errors.As(err, &permanent):
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return &domain.PermanentPublishError{Platform: backend.Platform(), Err: err}
		default:
			return &domain.TransientPublishError{Platform: backend.Platform(), Err: err}
		}
	}
	if resp.Success {
		result.ExternalID = resp.ExternalID
		result.URL = resp.URL
		return nil
	}

	cause := errors.New(resp.Error)
	if resp.Error == "" {
		cause = errors.New("backend reported failure")
	}
	if resp.Retryable {
		return &domain.TransientPublishError{Platform: backend.Platform(), Err: cause}
	}
	return &domain.PermanentPublishError{Platform: backend.Platform(), Err: cause}
}

// finish stamps the result and appends it to the log.
func (d *Dispatcher) finish(ctx context.Context, result domain.PublicationResult, err error) domain.PublicationResult {
	result.Success = err == nil
	result.PublishedAt = d.now()
	if err != nil {
		result.Error = err.Error()
	}

	if d.results != nil {
		if appendErr := d.results.Append(context.WithoutCancel(ctx), result); appendErr != nil {
			d.logger.Error("failed to record publication result", "content_id", result.ContentID, "error", appendErr)
		}
	}
	return result
}

// newBackOff yields BaseDelay, 2*BaseDelay, 4*BaseDelay, ...
func (d *Dispatcher) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.cfg.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = d.cfg.BaseDelay << 20
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func resultMetadata(item domain.ContentItem, plan domain.PublicationPlan) map[string]string {
	md := make(map[string]string, len(item.Metadata)+4)
	maps.Copy(md, item.Metadata)
	md["content_type"] = string(item.ContentType)
	md["confidence_score"] = strconv.FormatFloat(plan.ConfidenceScore, 'f', 3, 64)
	md["predicted_reach"] = strconv.Itoa(plan.ExpectedPerformance.PredictedReach)
	md["quality_score"] = strconv.FormatFloat(item.QualityScore, 'f', 2, 64)
	return md
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
