// Package optimizer picks publication times: it scores the platform's slot
// table, converts the winner into a concrete future time and keeps plans of
// the same platform from sharing a minute.
package optimizer

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"ContentFactory/internal/domain"
)

const (
	backupCount     = 3
	jitterMinutes   = 15
	neutralTZShare  = 0.5
	reservationKeep = 24 * time.Hour
)

// Audience describes where the audience lives and when each content type performs.
type Audience struct {
	TimezoneShare  map[string]float64
	PreferredHours map[domain.ContentType][]int
}

func (a Audience) share(tz string) float64 {
	if v, ok := a.TimezoneShare[tz]; ok {
		return v
	}
	return neutralTZShare
}

// Request asks for a plan for one content item.
type Request struct {
	ContentID       string
	AccountID       string
	ContentType     domain.ContentType
	Platform        string
	AccountTimezone string
	Priority        float64
}

// ScoredSlot is a slot with its computed scores. Index is the slot's position
// in the platform table and decides ties.
type ScoredSlot struct {
	Slot       domain.TimeSlot
	Index      int
	Score      float64
	FinalScore float64
}

// Option customises an Optimizer.
type Option func(*Optimizer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// WithJitter replaces the random minute offset drawn for each computed time.
func WithJitter(jitter func() int) Option {
	return func(o *Optimizer) { o.jitter = jitter }
}

// WithRand seeds the generator used for jitter and collision fallbacks.
func WithRand(r *rand.Rand) Option {
	return func(o *Optimizer) { o.rng = r }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) { o.logger = logger }
}

// Optimizer is safe for concurrent use.
type Optimizer struct {
	mu        sync.Mutex
	schedules map[string]domain.PlatformSchedule
	audience  Audience
	reserved  map[string]map[int64]struct{}
	now       func() time.Time
	jitter    func() int
	rng       *rand.Rand
	logger    *slog.Logger
}

// New builds an optimizer over the given schedules.
func New(schedules map[string]domain.PlatformSchedule, audience Audience, opts ...Option) *Optimizer {
	o := &Optimizer{
		schedules: cloneSchedules(schedules),
		audience:  audience,
		reserved:  map[string]map[int64]struct{}{},
		now:       time.Now,
		rng:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.jitter == nil {
		o.jitter = func() int { return o.rng.IntN(2*jitterMinutes+1) - jitterMinutes }
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Schedule computes a collision-free plan. It fails with a ConfigurationError
// when the platform has no usable schedule; callers then use DefaultPlan.
func (o *Optimizer) Schedule(req Request) (domain.PublicationPlan, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sched, ok := o.schedules[req.Platform]
	if !ok {
		return domain.PublicationPlan{}, &domain.ConfigurationError{
			Field: "schedule",
			Msg:   fmt.Sprintf("no schedule configured for platform %q", req.Platform),
		}
	}
	loc, err := loadLocation(sched.Timezone)
	if err != nil {
		return domain.PublicationPlan{}, &domain.ConfigurationError{
			Field: "schedule.timezone",
			Msg:   fmt.Sprintf("platform %s: %v", req.Platform, err),
		}
	}

	now := o.now().In(loc)
	ranked := rankSlots(sched, o.audience, req.ContentType, req.AccountTimezone, req.Priority, now)
	if len(ranked) == 0 {
		return domain.PublicationPlan{}, &domain.ConfigurationError{
			Field: "schedule.slots",
			Msg:   fmt.Sprintf("platform %s has no time slots", req.Platform),
		}
	}

	best := ranked[0]
	plan := domain.PublicationPlan{
		ContentID:       req.ContentID,
		AccountID:       req.AccountID,
		Platform:        req.Platform,
		ScheduledTime:   o.slotTime(best.Slot, now, loc),
		ConfidenceScore: min(1, best.FinalScore),
	}
	for _, backup := range ranked[1:min(len(ranked), 1+backupCount)] {
		plan.BackupTimes = append(plan.BackupTimes, o.slotTime(backup.Slot, now, loc))
	}

	plan, backup := o.resolveCollision(plan, now)
	// Shifted and random times keep the primary slot's reach estimate.
	chosen := best.Slot
	if backup >= 0 {
		chosen = ranked[1+backup].Slot
	}
	plan.ExpectedPerformance = predictPerformance(chosen, req.ContentType, req.Platform, plan.ConfidenceScore)

	o.logger.Debug("plan computed",
		"content_id", req.ContentID,
		"platform", req.Platform,
		"slot_hour", chosen.Hour,
		"scheduled_time", plan.ScheduledTime,
		"confidence", plan.ConfidenceScore)

	return plan, nil
}

// DefaultPlan is the safe fallback used when Schedule fails: the platform's
// documented hour with confidence 0.7. It still honours collision avoidance.
func (o *Optimizer) DefaultPlan(req Request) domain.PublicationPlan {
	o.mu.Lock()
	defer o.mu.Unlock()

	tz := req.AccountTimezone
	if sched, ok := o.schedules[req.Platform]; ok && sched.Timezone != "" {
		tz = sched.Timezone
	}
	loc, err := loadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	now := o.now().In(loc)
	at := time.Date(now.Year(), now.Month(), now.Day(), DefaultHour(req.Platform), 0, 0, 0, loc)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}

	plan := domain.PublicationPlan{
		ContentID:       req.ContentID,
		AccountID:       req.AccountID,
		Platform:        req.Platform,
		ScheduledTime:   at,
		ConfidenceScore: 0.7,
		ExpectedPerformance: domain.ExpectedPerformance{
			PredictedReach:    5000,
			PredictedLikes:    300,
			PredictedComments: 45,
			EngagementRate:    6.0,
			ViralProbability:  60,
		},
	}
	plan, _ = o.resolveCollision(plan, now)
	return plan
}

// ScheduleBatch plans several items, highest priority first, falling back to
// DefaultPlan for platforms without a schedule. Plans come back in the order
// they were assigned.
func (o *Optimizer) ScheduleBatch(reqs []Request) []domain.PublicationPlan {
	ordered := make([]Request, len(reqs))
	copy(ordered, reqs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	plans := make([]domain.PublicationPlan, 0, len(ordered))
	for _, req := range ordered {
		plan, err := o.Schedule(req)
		if err != nil {
			o.logger.Warn("falling back to default plan", "platform", req.Platform, "error", err)
			plan = o.DefaultPlan(req)
		}
		plans = append(plans, plan)
	}
	return plans
}

// RankSlots exposes the ranked slot table of a platform.
func (o *Optimizer) RankSlots(req Request) ([]ScoredSlot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	sched, ok := o.schedules[req.Platform]
	if !ok {
		return nil, &domain.ConfigurationError{
			Field: "schedule",
			Msg:   fmt.Sprintf("no schedule configured for platform %q", req.Platform),
		}
	}
	loc, err := loadLocation(sched.Timezone)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "schedule.timezone", Msg: err.Error()}
	}
	return rankSlots(sched, o.audience, req.ContentType, req.AccountTimezone, req.Priority, o.now().In(loc)), nil
}

// Schedules returns a deep copy of the current slot tables.
func (o *Optimizer) Schedules() map[string]domain.PlatformSchedule {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneSchedules(o.schedules)
}

// Replace swaps in new slot tables, e.g. after the schedule file changed.
// Reservations are kept so existing plans stay collision-free.
func (o *Optimizer) Replace(schedules map[string]domain.PlatformSchedule) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.schedules = cloneSchedules(schedules)
}

// rankSlots scores every slot and orders them by final score, descending.
// Equal scores keep table order.
func rankSlots(sched domain.PlatformSchedule, audience Audience, ct domain.ContentType, accountTZ string, priority float64, now time.Time) []ScoredSlot {
	preferred := audience.PreferredHours[ct]
	boost := sched.AlgorithmBoostHours(ct)
	tzFactor := neutralTZShare + audience.share(accountTZ)
	today := now.Weekday()

	scored := make([]ScoredSlot, 0, len(sched.Slots))
	for i, slot := range sched.Slots {
		score := slot.Priority
		if containsHour(preferred, slot.Hour) {
			score += 0.20
		}
		if slot.Weekday != nil && *slot.Weekday == today {
			score += 0.15
		}
		score -= 0.30 * slot.CompetitionLevel
		if containsHour(boost, slot.Hour) {
			score += 0.25
		}
		score *= tzFactor
		score = clamp(score, 0, 1)

		scored = append(scored, ScoredSlot{
			Slot:       slot,
			Index:      i,
			Score:      score,
			FinalScore: score * priority,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})
	return scored
}

// slotTime is the slot's next occurrence plus one jitter draw, at minute precision.
func (o *Optimizer) slotTime(slot domain.TimeSlot, now time.Time, loc *time.Location) time.Time {
	base := NextOccurrence(slot, now, loc)
	jittered := base.Add(time.Duration(o.jitter()) * time.Minute)
	if !jittered.After(now) {
		return base
	}
	return jittered
}

// NextOccurrence returns the first hour:minute strictly after now in loc that
// satisfies the slot's weekday constraint.
func NextOccurrence(slot domain.TimeSlot, now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	at := time.Date(now.Year(), now.Month(), now.Day(), slot.Hour, slot.Minute, 0, 0, loc)

	if slot.Weekday != nil {
		days := (int(*slot.Weekday) - int(now.Weekday()) + 7) % 7
		if days == 0 && !at.After(now) {
			days = 7
		}
		return at.AddDate(0, 0, days)
	}

	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func containsHour(hours []int, hour int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneSchedules(in map[string]domain.PlatformSchedule) map[string]domain.PlatformSchedule {
	out := make(map[string]domain.PlatformSchedule, len(in))
	for name, sched := range in {
		cp := sched
		cp.Slots = make([]domain.TimeSlot, len(sched.Slots))
		for i, slot := range sched.Slots {
			cp.Slots[i] = slot
			if slot.Weekday != nil {
				wd := *slot.Weekday
				cp.Slots[i].Weekday = &wd
			}
		}
		cp.PeakHours = append([]int(nil), sched.PeakHours...)
		cp.LowActivityHours = append([]int(nil), sched.LowActivityHours...)
		cp.DefaultBoostHours = append([]int(nil), sched.DefaultBoostHours...)
		if sched.BoostHours != nil {
			cp.BoostHours = make(map[domain.ContentType][]int, len(sched.BoostHours))
			for ct, hours := range sched.BoostHours {
				cp.BoostHours[ct] = append([]int(nil), hours...)
			}
		}
		out[name] = cp
	}
	return out
}
