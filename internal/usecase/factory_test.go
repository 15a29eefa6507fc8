package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ContentFactory/internal/config"
	"ContentFactory/internal/domain"
	"ContentFactory/internal/governor"
	"ContentFactory/internal/health"
	"ContentFactory/internal/optimizer"
	"ContentFactory/internal/planner"
	"ContentFactory/internal/ports"
)

type memoryLedger struct {
	mu       sync.Mutex
	seen     map[string]bool
	finished map[string]error
	counted  string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{seen: map[string]bool{}, finished: map[string]error{}}
}

func (l *memoryLedger) Register(_ context.Context, tasks []domain.ProductionTask) ([]domain.ProductionTask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var fresh []domain.ProductionTask
	for _, t := range tasks {
		if l.seen[t.ID] {
			continue
		}
		l.seen[t.ID] = true
		fresh = append(fresh, t)
	}
	return fresh, nil
}

func (l *memoryLedger) MarkRunning(context.Context, string) error { return nil }

func (l *memoryLedger) MarkFinished(_ context.Context, id string, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished[id] = err
	return nil
}

func (l *memoryLedger) CountByState(_ context.Context, day string) (map[string]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counted = day
	counts := map[string]int64{}
	for id := range l.seen {
		err, done := l.finished[id]
		switch {
		case !done:
			counts["planned"]++
		case err != nil:
			counts["failed"]++
		default:
			counts["produced"]++
		}
	}
	return counts, nil
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	fail  map[string]error
}

func (r *fakeRenderer) Render(_ context.Context, req ports.RenderRequest) (ports.RenderOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err, ok := r.fail[req.TaskID]; ok {
		delete(r.fail, req.TaskID)
		return ports.RenderOutput{}, err
	}
	return ports.RenderOutput{
		ArtifactPath: "/out/" + req.TaskID + ".mp4",
		Title:        req.TaskID,
		QualityScore: 0.9,
	}, nil
}

func (r *fakeRenderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakePublisher struct {
	mu     sync.Mutex
	script []error
	plans  []domain.PublicationPlan
}

func (p *fakePublisher) Dispatch(_ context.Context, item domain.ContentItem, plan domain.PublicationPlan) (domain.PublicationResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plans = append(p.plans, plan)
	if len(p.script) > 0 {
		err := p.script[0]
		p.script = p.script[1:]
		if err != nil {
			return domain.PublicationResult{}, err
		}
	}
	return domain.PublicationResult{
		ContentID: item.ContentID,
		AccountID: item.AccountID,
		Platform:  plan.Platform,
		Success:   true,
		Attempts:  1,
	}, nil
}

func (p *fakePublisher) Plans() []domain.PublicationPlan {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.PublicationPlan(nil), p.plans...)
}

type memoryReports struct {
	mu      sync.Mutex
	reports []domain.DailyReport
}

func (m *memoryReports) Write(_ context.Context, report domain.DailyReport) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, report)
	return "mem://" + report.Reason, nil
}

func (m *memoryReports) Last() (domain.DailyReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == 0 {
		return domain.DailyReport{}, false
	}
	return m.reports[len(m.reports)-1], true
}

type fakeNotifier struct {
	mu      sync.Mutex
	digests []string
}

func (n *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.digests = append(n.digests, digest)
	return nil
}

type fixedTrends []ports.TrendSignal

func (f fixedTrends) FindTrends(context.Context, ports.TrendQuery) ([]ports.TrendSignal, error) {
	return f, nil
}

type stuckSampler struct{ cpu, mem float64 }

func (s stuckSampler) Sample(context.Context) (float64, float64, error) { return s.cpu, s.mem, nil }

type memorySchedules struct {
	mu    sync.Mutex
	saves int
}

func (m *memorySchedules) Load(context.Context) (map[string]domain.PlatformSchedule, error) {
	return nil, nil
}

func (m *memorySchedules) Save(context.Context, map[string]domain.PlatformSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

type fixedFeedback struct {
	items []domain.SlotFeedback
	err   error
}

func (f fixedFeedback) FetchFeedback(context.Context, time.Time) ([]domain.SlotFeedback, error) {
	return f.items, f.err
}

func testConfig(accounts ...config.AccountConfig) config.Config {
	cfg := config.Default()
	cfg.Governor.AdmitPoll = 5 * time.Millisecond
	cfg.Governor.DrainTimeout = time.Second
	cfg.Governor.RebalanceInterval = 20 * time.Millisecond
	cfg.Publisher.QueueTimeout = 5 * time.Millisecond
	cfg.Publisher.MaxWait = 48 * time.Hour
	cfg.Publisher.AnalyticsInterval = 0
	cfg.Health.SampleInterval = time.Hour
	cfg.Scheduler.ReplanInterval = 0
	cfg.Accounts = accounts
	return cfg
}

func account(id, contentType string, quota int, platforms ...string) config.AccountConfig {
	return config.AccountConfig{
		ID:          id,
		ContentType: contentType,
		DailyQuota:  &quota,
		Platforms:   platforms,
		Timezone:    "Europe/Moscow",
	}
}

type harness struct {
	factory   *Factory
	renderer  *fakeRenderer
	publisher *fakePublisher
	reports   *memoryReports
	notifier  *fakeNotifier
	ledger    *memoryLedger
}

func newHarness(t *testing.T, cfg config.Config, mutate func(*Deps)) harness {
	t.Helper()
	h := harness{
		renderer:  &fakeRenderer{fail: map[string]error{}},
		publisher: &fakePublisher{},
		reports:   &memoryReports{},
		notifier:  &fakeNotifier{},
		ledger:    newMemoryLedger(),
	}
	deps := Deps{
		State: NewFactoryState(
			governor.New(governor.Config{MinLimit: cfg.Governor.MinLimit, MaxLimit: cfg.Governor.MaxLimit, DefaultLimit: cfg.Governor.DefaultLimit}, nil),
			health.NewMonitor(cfg.Health.CriticalSamples, nil),
			time.Now().In(cfg.Scheduler.Location()).Format(planner.DateLayout),
		),
		Renderer:  h.renderer,
		Ledger:    h.ledger,
		Optimizer: optimizer.New(optimizer.DefaultSchedules(), optimizer.DefaultAudience()),
		Publisher: h.publisher,
		Reports:   h.reports,
		Notifier:  h.notifier,
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.factory = NewFactory(cfg, deps)
	return h
}

func (h harness) start(t *testing.T) (stop func() error) {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- h.factory.Run(context.Background()) }()
	return func() error {
		h.factory.Stop()
		select {
		case err := <-errCh:
			return err
		case <-time.After(5 * time.Second):
			t.Fatalf("factory did not stop")
			return nil
		}
	}
}

func TestPlanningCycleIsIdempotent(t *testing.T) {
	cfg := testConfig(account("X", "ai_video", 10, "youtube"))
	h := newHarness(t, cfg, nil)
	day := time.Date(2026, 10, 15, 6, 0, 0, 0, cfg.Scheduler.Location())

	first, err := h.factory.RunPlanningCycle(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, first, 10)
	for _, task := range first {
		assert.True(t, strings.HasPrefix(task.ID, "X_ai_video_"))
		assert.True(t, strings.HasSuffix(task.ID, "_20261015"))
	}

	second, err := h.factory.RunPlanningCycle(context.Background(), day)
	require.NoError(t, err)
	assert.Empty(t, second)

	assert.Equal(t, 10, h.factory.Stats().TasksPlanned)
	assert.Equal(t, "20261015", h.factory.Stats().Day)
	assert.Equal(t, 10, h.factory.State().Backlog())
}

func TestPlanningCycleAppliesTrendBias(t *testing.T) {
	cfg := testConfig(account("T", "trend_short", 2, "tiktok"))
	cfg.Trends.Enabled = true
	h := newHarness(t, cfg, func(d *Deps) {
		d.Trends = fixedTrends{{URL: "https://trends.example/a", Score: 0.8}}
	})

	tasks, err := h.factory.RunPlanningCycle(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	for _, task := range tasks {
		spec, ok := task.Spec.(domain.TrendShortSpec)
		require.True(t, ok)
		assert.Equal(t, "https://trends.example/a", spec.SourceURL)
		assert.Greater(t, task.Priority, 1.0)
	}
}

func TestPlanningCycleRejectsUnknownContentType(t *testing.T) {
	cfg := testConfig(account("bad", "podcast", 1, "youtube"))
	h := newHarness(t, cfg, nil)

	_, err := h.factory.RunPlanningCycle(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
}

func TestFactoryProducesAndPublishes(t *testing.T) {
	cfg := testConfig(account("main", "ai_video", 3, "youtube"))
	h := newHarness(t, cfg, nil)
	_, err := h.factory.RunPlanningCycle(context.Background(), time.Now())
	require.NoError(t, err)

	stop := h.start(t)
	require.Eventually(t, func() bool {
		return h.factory.Stats().SuccessfulPublications == 3
	}, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	stats := h.factory.Stats()
	assert.Equal(t, 3, stats.VideosCreatedToday)
	assert.Equal(t, 3, stats.PlatformPerformance["youtube"].Published)

	seen := map[int64]bool{}
	for _, plan := range h.publisher.Plans() {
		assert.Equal(t, "youtube", plan.Platform)
		minute := plan.ScheduledTime.Truncate(time.Minute).Unix()
		assert.False(t, seen[minute], "two plans share %v", plan.ScheduledTime)
		seen[minute] = true

		state, ok := h.factory.State().Lifecycle.State(plan.ContentID)
		require.True(t, ok)
		assert.Equal(t, domain.ItemPublished, state)
	}

	report, ok := h.reports.Last()
	require.True(t, ok)
	assert.Equal(t, "shutdown", report.Reason)
	assert.InDelta(t, 100.0, report.SuccessRate, 1e-9)
	assert.Equal(t, map[string]int64{"produced": 3}, report.Tasks)
	h.ledger.mu.Lock()
	assert.Equal(t, stats.Day, h.ledger.counted)
	h.ledger.mu.Unlock()

	active, _ := h.factory.State().Governor.Snapshot()
	assert.Zero(t, active)
}

func TestFactoryRenderFailureStaysAtTaskBoundary(t *testing.T) {
	cfg := testConfig(account("main", "movie_clip", 3, "instagram"))
	h := newHarness(t, cfg, nil)
	tasks, err := h.factory.RunPlanningCycle(context.Background(), time.Now())
	require.NoError(t, err)
	broken := tasks[1].ID
	h.renderer.fail[broken] = &domain.RenderError{TaskID: broken, Err: errors.New("tts offline")}

	stop := h.start(t)
	require.Eventually(t, func() bool {
		return h.factory.Stats().SuccessfulPublications == 2 && h.factory.Stats().RenderFailures == 1
	}, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	h.ledger.mu.Lock()
	defer h.ledger.mu.Unlock()
	assert.Error(t, h.ledger.finished[broken])
	assert.Contains(t, h.factory.Health().LastError, "tts offline")
}

func TestFactoryShedsOnResourceExhaustion(t *testing.T) {
	cfg := testConfig(account("main", "ai_video", 2, "youtube"))
	h := newHarness(t, cfg, nil)
	tasks, err := h.factory.RunPlanningCycle(context.Background(), time.Now())
	require.NoError(t, err)
	h.renderer.fail[tasks[0].ID] = &domain.ResourceExhaustedError{CPUPercent: 97}

	stop := h.start(t)
	require.Eventually(t, func() bool {
		return h.factory.Stats().SuccessfulPublications == 2
	}, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	_, limit := h.factory.State().Governor.Snapshot()
	assert.Equal(t, 3, limit)
	assert.Zero(t, h.factory.Stats().RenderFailures)
	assert.Equal(t, 3, h.renderer.Calls())
}

func TestFactoryRequeuesNotDueAndRateLimited(t *testing.T) {
	cfg := testConfig(account("main", "trend_short", 1, "tiktok"))
	h := newHarness(t, cfg, nil)
	h.publisher.script = []error{
		domain.ErrNotDue,
		&domain.RateLimitedError{Platform: "tiktok", Operation: "publish", RetryAfter: time.Millisecond},
	}
	_, err := h.factory.RunPlanningCycle(context.Background(), time.Now())
	require.NoError(t, err)

	stop := h.start(t)
	require.Eventually(t, func() bool {
		return h.factory.Stats().SuccessfulPublications == 1
	}, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	stats := h.factory.Stats()
	assert.Equal(t, 1, stats.Requeued)
	assert.Equal(t, 1, stats.RateLimited)

	plans := h.publisher.Plans()
	require.Len(t, plans, 3)
	assert.Equal(t, plans[0].ScheduledTime, plans[2].ScheduledTime, "re-queued items keep their plan")
}

func TestFactoryMaintenancePausesProduction(t *testing.T) {
	cfg := testConfig(account("main", "ai_video", 2, "youtube"))
	h := newHarness(t, cfg, nil)
	h.factory.SetMaintenance(context.Background(), true)
	_, err := h.factory.RunPlanningCycle(context.Background(), time.Now())
	require.NoError(t, err)

	stop := h.start(t)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, h.renderer.Calls())
	assert.Equal(t, domain.HealthMaintenance, h.factory.Health().Status)

	h.factory.SetMaintenance(context.Background(), false)
	require.Eventually(t, func() bool {
		return h.factory.Stats().SuccessfulPublications == 2
	}, 3*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
}

func TestFactoryEmergencyShutdownOnSustainedCritical(t *testing.T) {
	cfg := testConfig(account("main", "ai_video", 1, "youtube"))
	cfg.Health.SampleInterval = 5 * time.Millisecond
	cfg.Health.CriticalSamples = 2
	h := newHarness(t, cfg, func(d *Deps) {
		d.Sampler = stuckSampler{cpu: 99, mem: 40}
	})

	err := h.factory.Run(context.Background())
	var critical *domain.CriticalSystemError
	require.ErrorAs(t, err, &critical)

	report, ok := h.reports.Last()
	require.True(t, ok)
	assert.Equal(t, "emergency_shutdown", report.Reason)
	assert.Equal(t, domain.HealthCritical, report.Health.Status)
	assert.True(t, h.factory.State().Governor.Closed())

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	require.Len(t, h.notifier.digests, 1)
	assert.Contains(t, h.notifier.digests[0], "emergency_shutdown")
}

func TestApplyAnalyticsUpdatesAndPersists(t *testing.T) {
	cfg := testConfig()
	store := &memorySchedules{}
	opt := optimizer.New(optimizer.DefaultSchedules(), optimizer.DefaultAudience())
	h := newHarness(t, cfg, func(d *Deps) {
		d.Optimizer = opt
		d.Schedules = store
		d.Analytics = []ports.AnalyticsSource{
			fixedFeedback{items: []domain.SlotFeedback{{Platform: "youtube", ScheduledHour: 18, ActualReach: 30000}}},
			fixedFeedback{err: fmt.Errorf("instagram analytics down")},
		}
	})

	updated, err := h.factory.ApplyAnalytics(context.Background(), time.Now().Add(-time.Hour))
	require.Error(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 1, store.saves)

	for _, slot := range opt.Schedules()["youtube"].Slots {
		if slot.Hour == 18 {
			assert.Equal(t, 19200, slot.ExpectedReach)
		}
	}
}
