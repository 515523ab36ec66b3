// Package backoff tracks consecutive reconcile failures per resource and
// computes the next requeue delay from a capped Fibonacci-minutes sequence.
package backoff

import (
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/types"
)

// sequence is the delay, in minutes, applied after the Nth consecutive
// failure (1-indexed). The final entry repeats for any failure count
// beyond its index.
var sequence = []int{1, 1, 2, 3, 5, 8, 13, 21, 34, 55}

const capMinutes = 60

// state tracks consecutive failures for a single resource.
type state struct {
	failureCount int
	lastFailure  time.Time
}

// Tracker maps namespaced resources to their current backoff state. The
// zero value is ready to use.
type Tracker struct {
	mu    sync.Mutex
	state map[types.NamespacedName]*state
}

// Delay returns the requeue delay that should apply for key given its
// current failure count. A resource with no recorded failures gets the
// first sequence entry.
func (t *Tracker) Delay(key types.NamespacedName) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.state[key]
	if !ok || s.failureCount == 0 {
		return time.Duration(sequence[0]) * time.Minute
	}
	return delayForCount(s.failureCount)
}

func delayForCount(count int) time.Duration {
	idx := count - 1
	if idx >= len(sequence) {
		idx = len(sequence) - 1
	}
	minutes := sequence[idx]
	if minutes > capMinutes {
		minutes = capMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// RecordFailure increments key's consecutive failure count and returns the
// delay that should now be used to requeue it.
func (t *Tracker) RecordFailure(key types.NamespacedName) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		t.state = make(map[types.NamespacedName]*state)
	}
	s, ok := t.state[key]
	if !ok {
		s = &state{}
		t.state[key] = s
	}
	s.failureCount++
	s.lastFailure = time.Now()
	return delayForCount(s.failureCount)
}

// Reset clears key's failure history, e.g. on a successful reconcile.
func (t *Tracker) Reset(key types.NamespacedName) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != nil {
		delete(t.state, key)
	}
}

// FailureCount reports how many consecutive failures are currently
// recorded for key.
func (t *Tracker) FailureCount(key types.NamespacedName) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == nil {
		return 0
	}
	s, ok := t.state[key]
	if !ok {
		return 0
	}
	return s.failureCount
}
