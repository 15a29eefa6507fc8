package domain

import (
	"fmt"
	"sync"
)

// ItemState tracks a ContentItem through publication.
type ItemState string

const (
	ItemQueued    ItemState = "queued"
	ItemScheduled ItemState = "scheduled"
	ItemPublished ItemState = "published"
	ItemFailed    ItemState = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ItemState) Terminal() bool {
	return s == ItemPublished || s == ItemFailed
}

func (s ItemState) canMoveTo(next ItemState) bool {
	switch s {
	case ItemQueued:
		return next == ItemScheduled
	case ItemScheduled:
		return next == ItemPublished || next == ItemFailed
	}
	return false
}

// Lifecycle records the state of every item seen by the publication queue.
// Each item moves queued -> scheduled -> {published | failed} exactly once.
type Lifecycle struct {
	mu     sync.Mutex
	states map[string]ItemState
}

// NewLifecycle builds an empty tracker.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{states: map[string]ItemState{}}
}

// Enqueue registers a new item in the queued state.
func (l *Lifecycle) Enqueue(contentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if state, ok := l.states[contentID]; ok {
		return fmt.Errorf("%w: %s already %s", ErrInvalidTransition, contentID, state)
	}
	l.states[contentID] = ItemQueued
	return nil
}

// Transition moves an item to next, rejecting anything outside the allowed path.
func (l *Lifecycle) Transition(contentID string, next ItemState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.states[contentID]
	if !ok {
		return fmt.Errorf("%w: %s is not tracked", ErrInvalidTransition, contentID)
	}
	if !current.canMoveTo(next) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, contentID, current, next)
	}
	l.states[contentID] = next
	return nil
}

// State returns the current state of an item.
func (l *Lifecycle) State(contentID string) (ItemState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.states[contentID]
	return state, ok
}
