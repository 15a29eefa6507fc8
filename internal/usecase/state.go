package usecase

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/governor"
	"ContentFactory/internal/health"
)

const publicationQueueSize = 256

// deferredItem is a scheduled item waiting to be handed to the dispatcher again.
type deferredItem struct {
	item    domain.ContentItem
	plan    domain.PublicationPlan
	retryAt time.Time
}

// FactoryState owns every piece of process-wide mutable state. It is built
// once per factory and handed to the loops by reference.
type FactoryState struct {
	Governor  *governor.Governor
	Monitor   *health.Monitor
	Stats     *health.Stats
	Lifecycle *domain.Lifecycle

	mu       sync.Mutex
	backlog  []domain.ProductionTask
	deferred []deferredItem
	wake     chan struct{}
	queue    chan domain.ContentItem
}

// NewFactoryState builds fresh state for the given day key.
func NewFactoryState(gov *governor.Governor, monitor *health.Monitor, day string) *FactoryState {
	if gov == nil {
		gov = governor.New(governor.DefaultConfig(), slog.Default())
	}
	if monitor == nil {
		monitor = health.NewMonitor(0, slog.Default())
	}
	return &FactoryState{
		Governor:  gov,
		Monitor:   monitor,
		Stats:     health.NewStats(day),
		Lifecycle: domain.NewLifecycle(),
		wake:      make(chan struct{}, 1),
		queue:     make(chan domain.ContentItem, publicationQueueSize),
	}
}

// addTasks merges tasks into the backlog, highest priority first. Equal
// priorities keep planning order.
func (s *FactoryState) addTasks(tasks []domain.ProductionTask) {
	if len(tasks) == 0 {
		return
	}
	s.mu.Lock()
	s.backlog = append(s.backlog, tasks...)
	sort.SliceStable(s.backlog, func(i, j int) bool {
		return s.backlog[i].Priority > s.backlog[j].Priority
	})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextTask pops the highest priority task.
func (s *FactoryState) nextTask() (domain.ProductionTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.backlog) == 0 {
		return domain.ProductionTask{}, false
	}
	task := s.backlog[0]
	s.backlog = s.backlog[1:]
	return task, true
}

// pushFront returns a task that could not be started.
func (s *FactoryState) pushFront(task domain.ProductionTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog = append([]domain.ProductionTask{task}, s.backlog...)
}

// Backlog reports how many planned tasks have not started.
func (s *FactoryState) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

func (s *FactoryState) deferItem(item domain.ContentItem, plan domain.PublicationPlan, retryAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferred = append(s.deferred, deferredItem{item: item, plan: plan, retryAt: retryAt})
}

// dueItems removes and returns the deferred items whose retry time has come.
func (s *FactoryState) dueItems(now time.Time) []deferredItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []deferredItem
	kept := s.deferred[:0]
	for _, d := range s.deferred {
		if !d.retryAt.After(now) {
			due = append(due, d)
			continue
		}
		kept = append(kept, d)
	}
	s.deferred = kept
	return due
}

// QueueSize counts items produced but not yet terminal in the dispatcher's hands.
func (s *FactoryState) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) + len(s.deferred)
}
