package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ContentFactory/internal/config"
	"ContentFactory/internal/domain"
	"ContentFactory/internal/health"
	"ContentFactory/internal/optimizer"
	"ContentFactory/internal/planner"
	"ContentFactory/internal/ports"
)

// Publisher hands a planned item to the platform. It is satisfied by
// *dispatcher.Dispatcher.
type Publisher interface {
	Dispatch(ctx context.Context, item domain.ContentItem, plan domain.PublicationPlan) (domain.PublicationResult, error)
}

// ScheduleWatcher is implemented by schedule stores that can report edits.
type ScheduleWatcher interface {
	Watch(ctx context.Context, onChange func(map[string]domain.PlatformSchedule)) error
}

// Deps wires the driven adapters into the factory. Trends, Ledger, Schedules,
// Analytics and Notifier are optional.
type Deps struct {
	State     *FactoryState
	Renderer  ports.Renderer
	Trends    ports.TrendSignalProvider
	Ledger    ports.TaskLedger
	Optimizer *optimizer.Optimizer
	Publisher Publisher
	Sampler   ports.ResourceSampler
	Analytics []ports.AnalyticsSource
	Schedules ports.ScheduleStore
	Reports   ports.ReportWriter
	Notifier  ports.Notifier
	Logger    *slog.Logger
	Now       func() time.Time
}

// Factory runs the production, publication and monitoring loops.
type Factory struct {
	cfg       config.Config
	state     *FactoryState
	renderer  ports.Renderer
	trends    ports.TrendSignalProvider
	ledger    ports.TaskLedger
	optimizer *optimizer.Optimizer
	publisher Publisher
	sampler   ports.ResourceSampler
	analytics []ports.AnalyticsSource
	schedules ports.ScheduleStore
	reports   ports.ReportWriter
	notifier  ports.Notifier
	logger    *slog.Logger
	now       func() time.Time

	workers   sync.WaitGroup
	mu        sync.Mutex
	cancel    context.CancelFunc
	emergency sync.Once
}

// NewFactory constructs the orchestrator.
func NewFactory(cfg config.Config, deps Deps) *Factory {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	state := deps.State
	if state == nil {
		state = NewFactoryState(nil, nil, now().In(cfg.Scheduler.Location()).Format(planner.DateLayout))
	}
	return &Factory{
		cfg:       cfg,
		state:     state,
		renderer:  deps.Renderer,
		trends:    deps.Trends,
		ledger:    deps.Ledger,
		optimizer: deps.Optimizer,
		publisher: deps.Publisher,
		sampler:   deps.Sampler,
		analytics: deps.Analytics,
		schedules: deps.Schedules,
		reports:   deps.Reports,
		notifier:  deps.Notifier,
		logger:    logger,
		now:       now,
	}
}

// State exposes the owned state, mainly for tests and the status API.
func (f *Factory) State() *FactoryState { return f.state }

// Run drives every loop until ctx ends, Stop is called or a loop fails. A
// failing loop takes the emergency path; otherwise the factory drains and
// writes a final report.
func (f *Factory) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()

	// Render work outlives the loops so shutdown can drain it.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	f.logger.Info("content factory started",
		"accounts", len(f.cfg.Accounts),
		"concurrency_limit", f.cfg.Governor.DefaultLimit)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return f.productionLoop(gctx, workCtx) })
	g.Go(func() error { return f.publicationLoop(gctx) })
	g.Go(func() error { return f.monitoringLoop(gctx) })
	g.Go(func() error { return f.rebalanceLoop(gctx) })
	if len(f.analytics) > 0 && f.cfg.Publisher.AnalyticsInterval > 0 {
		g.Go(func() error { return f.analyticsLoop(gctx) })
	}
	if w, ok := f.schedules.(ScheduleWatcher); ok && f.optimizer != nil {
		g.Go(func() error { return f.watchSchedules(gctx, w) })
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		f.EmergencyShutdown(context.WithoutCancel(ctx), err)
		cancelWork()
		f.workers.Wait()
		return err
	}

	f.shutdown(context.WithoutCancel(ctx), "shutdown")
	cancelWork()
	f.workers.Wait()
	f.logger.Info("content factory stopped")
	return nil
}

// Stop asks the loops to finish their current iteration and exit.
func (f *Factory) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
	}
}

// EmergencyShutdown stops admission, drains briefly and flushes the report
// best-effort. Secondary errors are logged and swallowed.
func (f *Factory) EmergencyShutdown(ctx context.Context, cause error) {
	f.emergency.Do(func() {
		f.logger.Error("emergency shutdown", "cause", cause)
		f.state.Monitor.MarkCritical(cause.Error())
		f.shutdown(ctx, "emergency_shutdown")
		f.Stop()
	})
}

func (f *Factory) shutdown(ctx context.Context, reason string) {
	f.state.Governor.Close()

	drainCtx, cancel := context.WithTimeout(ctx, f.cfg.Governor.DrainTimeout)
	left := f.state.Governor.Drain(drainCtx, f.cfg.Governor.AdmitPoll)
	cancel()
	if left > 0 {
		f.logger.Warn("drain timed out", "active_tasks", left)
	}

	if _, err := f.FlushReport(ctx, reason); err != nil {
		f.logger.Error("final report failed", "reason", reason, "error", err)
	}
}

// RunPlanningCycle plans the day, keeps only tasks not planned before, biases
// them with trend signals and adds them to the backlog. Counters are reset
// when the day changes.
func (f *Factory) RunPlanningCycle(ctx context.Context, day time.Time) ([]domain.ProductionTask, error) {
	day = day.In(f.cfg.Scheduler.Location())
	dayKey := day.Format(planner.DateLayout)
	if f.state.Stats.Snapshot().Day != dayKey {
		f.state.Stats.ResetDaily(dayKey)
		f.logger.Info("daily counters reset", "day", dayKey)
	}

	tasks, err := planner.Plan(day, f.planningAccounts())
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", dayKey, err)
	}

	if f.ledger != nil {
		tasks, err = f.ledger.Register(ctx, tasks)
		if err != nil {
			return nil, fmt.Errorf("register tasks: %w", err)
		}
	}

	if f.trends != nil && f.cfg.Trends.Enabled && len(tasks) > 0 {
		signals, err := f.trends.FindTrends(ctx, ports.TrendQuery{
			Categories: f.cfg.Trends.Categories,
			Platforms:  f.cfg.Trends.Platforms,
			MinViews:   f.cfg.Trends.MinViews,
			MaxAgeDays: f.cfg.Trends.MaxAgeDays,
		})
		if err != nil {
			f.logger.Warn("trend signals unavailable", "error", err)
		} else {
			tasks = planner.ApplyTrendBias(tasks, signals)
		}
	}

	f.state.Stats.TasksPlanned(len(tasks))
	f.state.addTasks(tasks)
	f.logger.Info("planning cycle complete", "day", dayKey, "new_tasks", len(tasks))
	return tasks, nil
}

// FlushReport writes the daily report and pushes its digest to the notifier.
func (f *Factory) FlushReport(ctx context.Context, reason string) (string, error) {
	if f.reports == nil {
		return "", nil
	}
	stats := f.state.Stats.Snapshot()
	report := health.BuildReport(stats, f.Health(), reason, f.now())
	if counter, ok := f.ledger.(ports.TaskCounter); ok {
		counts, err := counter.CountByState(ctx, stats.Day)
		if err != nil {
			f.logger.Warn("count ledger tasks", "error", err)
		} else {
			report.Tasks = counts
		}
	}
	path, err := f.reports.Write(ctx, report)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	f.logger.Info("daily report written", "path", path, "reason", reason)

	if f.notifier != nil {
		if err := f.notifier.PublishDigest(ctx, health.Digest(report)); err != nil {
			f.logger.Warn("report notification failed", "error", err)
		}
	}
	return path, nil
}

// Health merges the monitor view with governor and queue gauges.
func (f *Factory) Health() domain.SystemHealth {
	h := f.state.Monitor.Health()
	h.ActiveTasks, h.ConcurrencyLimit = f.state.Governor.Snapshot()
	h.QueueSize = f.state.QueueSize()
	return h
}

// Stats returns the current daily counters.
func (f *Factory) Stats() domain.ProductionStats {
	return f.state.Stats.Snapshot()
}

// SetMaintenance pauses or resumes production on operator request.
func (f *Factory) SetMaintenance(_ context.Context, enabled bool) {
	if enabled {
		f.state.Monitor.EnterMaintenance()
		return
	}
	f.state.Monitor.ExitMaintenance()
}

func (f *Factory) planningAccounts() []planner.Account {
	out := make([]planner.Account, 0, len(f.cfg.Accounts))
	for _, acc := range f.cfg.Accounts {
		out = append(out, planner.Account{
			ID:          acc.ID,
			ContentType: acc.ContentType,
			DailyQuota:  f.cfg.Quota(acc),
		})
	}
	return out
}

// productionLoop admits backlog tasks through the governor and renders each
// one on its own goroutine.
func (f *Factory) productionLoop(ctx, workCtx context.Context) error {
	poll := f.cfg.Governor.AdmitPoll
	replan := f.cfg.Scheduler.ReplanInterval
	lastPlan := f.now()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if replan > 0 && f.now().Sub(lastPlan) >= replan {
			lastPlan = f.now()
			if _, err := f.RunPlanningCycle(ctx, lastPlan); err != nil {
				f.logger.Error("re-planning failed", "error", err)
				f.state.Monitor.RecordError(err)
			}
		}

		if f.state.Monitor.InMaintenance() {
			if !f.idle(ctx, poll) {
				return nil
			}
			continue
		}

		task, ok := f.state.nextTask()
		if !ok {
			if !f.idle(ctx, poll) {
				return nil
			}
			continue
		}

		if err := f.state.Governor.Admit(ctx, poll); err != nil {
			f.state.pushFront(task)
			if errors.Is(err, domain.ErrShuttingDown) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("admit task %s: %w", task.ID, err)
		}

		f.workers.Add(1)
		go func() {
			defer f.workers.Done()
			defer f.state.Governor.Release()
			f.produce(workCtx, task)
		}()
	}
}

// idle waits for new work or poll, whichever is first. It reports false when ctx ended.
func (f *Factory) idle(ctx context.Context, poll time.Duration) bool {
	timer := time.NewTimer(poll)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-f.state.wake:
		return true
	case <-timer.C:
		return true
	}
}

// produce renders one task. Failures stay at the task boundary.
func (f *Factory) produce(ctx context.Context, task domain.ProductionTask) {
	log := f.logger.With("task_id", task.ID, "account_id", task.AccountID)

	if f.ledger != nil {
		if err := f.ledger.MarkRunning(ctx, task.ID); err != nil {
			log.Debug("ledger mark running", "error", err)
		}
	}

	hints := task.Spec.RenderHints()
	out, err := f.renderer.Render(ctx, ports.RenderRequest{
		TaskID:       task.ID,
		AccountID:    task.AccountID,
		ContentType:  task.ContentType,
		TemplateID:   hints.TemplateID,
		ScriptText:   scriptText(task.Spec),
		Platform:     hints.Platform,
		QualityLevel: hints.QualityLevel,
	})

	var exhausted *domain.ResourceExhaustedError
	if errors.As(err, &exhausted) {
		limit := f.state.Governor.Shed(exhausted)
		log.Warn("renderer out of resources, task re-queued", "limit", limit)
		f.state.addTasks([]domain.ProductionTask{task})
		return
	}

	if f.ledger != nil {
		if lerr := f.ledger.MarkFinished(context.WithoutCancel(ctx), task.ID, err); lerr != nil {
			log.Debug("ledger mark finished", "error", lerr)
		}
	}

	if err != nil {
		f.state.Stats.RenderFailed()
		f.state.Monitor.RecordError(err)
		log.Error("production task failed", "error", err)
		return
	}

	item := domain.ContentItem{
		ContentID:    task.ID,
		AccountID:    task.AccountID,
		ContentType:  task.ContentType,
		ArtifactPath: out.ArtifactPath,
		Title:        out.Title,
		Description:  out.Description,
		Tags:         out.Tags,
		Duration:     out.Duration,
		QualityScore: out.QualityScore,
		CreatedAt:    f.now(),
		Metadata:     out.Metadata,
	}
	if err := f.state.Lifecycle.Enqueue(item.ContentID); err != nil {
		log.Error("content item rejected", "error", err)
		return
	}
	f.state.Stats.ContentCreated(item.QualityScore)
	log.Info("content created", "title", item.Title, "quality", item.QualityScore)

	select {
	case f.state.queue <- item:
	case <-ctx.Done():
		log.Warn("content dropped on shutdown")
	}
}

func scriptText(spec domain.TaskSpec) string {
	switch s := spec.(type) {
	case domain.AIVideoSpec:
		return "themes: " + strings.Join(s.Themes, ", ")
	case domain.TrendShortSpec:
		if s.SourceURL != "" {
			return "source: " + s.SourceURL
		}
		return "platforms: " + strings.Join(s.Platforms, ", ")
	case domain.MovieClipSpec:
		return "genres: " + strings.Join(s.Genres, ", ")
	}
	return ""
}

// publicationLoop pops produced items with a timeout, plans them and hands
// due items to the dispatcher.
func (f *Factory) publicationLoop(ctx context.Context) error {
	timeout := f.cfg.Publisher.QueueTimeout
	for {
		timer := time.NewTimer(timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case item := <-f.state.queue:
			timer.Stop()
			plan := f.plan(item)
			if err := f.state.Lifecycle.Transition(item.ContentID, domain.ItemScheduled); err != nil {
				f.logger.Error("schedule transition", "content_id", item.ContentID, "error", err)
				continue
			}
			f.dispatch(ctx, item, plan)
		case <-timer.C:
		}

		for _, d := range f.state.dueItems(f.now()) {
			f.dispatch(ctx, d.item, d.plan)
		}
	}
}

// plan asks the optimizer for a slot on the account's primary platform,
// falling back to the default plan when the platform has no schedule.
func (f *Factory) plan(item domain.ContentItem) domain.PublicationPlan {
	req := optimizer.Request{
		ContentID:       item.ContentID,
		AccountID:       item.AccountID,
		ContentType:     item.ContentType,
		Platform:        f.primaryPlatform(item.AccountID),
		AccountTimezone: f.cfg.Scheduler.Timezone,
		Priority:        item.QualityScore,
	}
	if acc, ok := f.cfg.Account(item.AccountID); ok && acc.Timezone != "" {
		req.AccountTimezone = acc.Timezone
	}
	if req.Priority <= 0 {
		req.Priority = 1
	}

	plan, err := f.optimizer.Schedule(req)
	if err != nil {
		f.logger.Warn("falling back to default plan", "content_id", item.ContentID, "platform", req.Platform, "error", err)
		plan = f.optimizer.DefaultPlan(req)
	}
	f.logger.Info("publication planned",
		"content_id", item.ContentID,
		"platform", plan.Platform,
		"scheduled_time", plan.ScheduledTime,
		"confidence", plan.ConfidenceScore)
	return plan
}

func (f *Factory) primaryPlatform(accountID string) string {
	if acc, ok := f.cfg.Account(accountID); ok && len(acc.Platforms) > 0 {
		return acc.Platforms[0]
	}
	return ""
}

// dispatch publishes on its own goroutine so one wait never blocks the queue.
func (f *Factory) dispatch(ctx context.Context, item domain.ContentItem, plan domain.PublicationPlan) {
	f.workers.Add(1)
	go func() {
		defer f.workers.Done()
		log := f.logger.With("content_id", item.ContentID, "platform", plan.Platform)

		result, err := f.publisher.Dispatch(ctx, item, plan)

		var limited *domain.RateLimitedError
		switch {
		case errors.Is(err, domain.ErrNotDue):
			f.state.Stats.Requeued()
			f.state.deferItem(item, plan, plan.ScheduledTime.Add(-f.cfg.Publisher.MaxWait))
			log.Debug("publication not due, re-queued", "scheduled_time", plan.ScheduledTime)
			return
		case errors.As(err, &limited):
			f.state.Stats.RateLimited()
			f.state.deferItem(item, plan, f.now().Add(limited.RetryAfter))
			log.Warn("rate limited, re-queued", "retry_after", limited.RetryAfter)
			return
		case err != nil && result.ContentID == "":
			log.Warn("publication abandoned", "error", err)
			return
		}

		f.state.Stats.PublicationRecorded(result)
		next := domain.ItemPublished
		if !result.Success {
			next = domain.ItemFailed
			f.state.Monitor.RecordError(err)
			log.Error("publication failed", "attempts", result.Attempts, "error", err)
		}
		if terr := f.state.Lifecycle.Transition(item.ContentID, next); terr != nil {
			log.Error("terminal transition", "error", terr)
		}
	}()
}

// monitoringLoop samples the host. Single critical samples shed load;
// a sustained critical state ends the run through the emergency path.
func (f *Factory) monitoringLoop(ctx context.Context) error {
	if f.sampler == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(f.cfg.Health.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		status, err := f.state.Monitor.Sample(ctx, f.sampler)
		var critical *domain.CriticalSystemError
		if errors.As(err, &critical) {
			return critical
		}
		if err != nil {
			f.logger.Warn("resource sampling failed", "error", err)
			continue
		}
		if status == domain.HealthCritical {
			h := f.state.Monitor.Health()
			f.state.Governor.Shed(&domain.ResourceExhaustedError{CPUPercent: h.CPUPercent, MemoryPercent: h.MemoryPercent})
		}
	}
}

// rebalanceLoop adapts the concurrency limit to the latest sample.
func (f *Factory) rebalanceLoop(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Governor.RebalanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		h := f.state.Monitor.Health()
		if h.SampledAt.IsZero() {
			continue
		}
		f.state.Governor.Rebalance(h.CPUPercent, h.MemoryPercent)
	}
}

// analyticsLoop feeds measured reach back into the slot tables.
func (f *Factory) analyticsLoop(ctx context.Context) error {
	interval := f.cfg.Publisher.AnalyticsInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	since := f.now().Add(-interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		until := f.now()
		if _, err := f.ApplyAnalytics(ctx, since); err != nil {
			f.logger.Warn("analytics update failed", "error", err)
			continue
		}
		since = until
	}
}

// ApplyAnalytics pulls feedback from every source, updates the optimizer and
// persists the schedules when anything changed.
func (f *Factory) ApplyAnalytics(ctx context.Context, since time.Time) (int, error) {
	var feedback []domain.SlotFeedback
	var errs []error
	for _, src := range f.analytics {
		items, err := src.FetchFeedback(ctx, since)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		feedback = append(feedback, items...)
	}

	updated := f.optimizer.ApplyFeedback(feedback)
	if updated > 0 && f.schedules != nil {
		if err := f.schedules.Save(ctx, f.optimizer.Schedules()); err != nil {
			errs = append(errs, fmt.Errorf("save schedules: %w", err))
		}
	}
	return updated, errors.Join(errs...)
}

func (f *Factory) watchSchedules(ctx context.Context, w ScheduleWatcher) error {
	err := w.Watch(ctx, func(schedules map[string]domain.PlatformSchedule) {
		if len(schedules) == 0 {
			return
		}
		f.optimizer.Replace(schedules)
		f.logger.Info("platform schedules reloaded", "platforms", len(schedules))
	})
	if err != nil && ctx.Err() == nil {
		f.logger.Warn("schedule watch stopped", "error", err)
	}
	return nil
}
