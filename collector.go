/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CollectResult is returned by both wait methods: the items collected so
// far, keyed by player, and the set of players still outstanding.
type CollectResult[T any] struct {
	Collected map[uuid.UUID]T
	Missing   []uuid.UUID
}

// Collector waits for one item per expected participant, with deadlines.
// A single round-loop goroutine owns the Collector for the duration of one
// round; Collect/RemovePlayer are only ever called from that goroutine or
// from the receive-task goroutines that hand moves to it, so the internal
// mutex only guards the item map against that handoff race.
//
// Grounded on spec.md §4.F; the timer-vs-channel-close race mirrors the
// ticker/timeout idiom celebrity.go's GameManager uses for its own
// deadlines (reaperLoop, scheduleRemoval).
type Collector[T any] struct {
	mu          sync.Mutex
	outstanding map[uuid.UUID]struct{}
	items       map[uuid.UUID]T
	done        chan struct{}
	closeOnce   sync.Once
}

func NewCollector[T any](expected []uuid.UUID) *Collector[T] {
	c := &Collector[T]{
		outstanding: make(map[uuid.UUID]struct{}, len(expected)),
		items:       make(map[uuid.UUID]T, len(expected)),
		done:        make(chan struct{}),
	}
	for _, id := range expected {
		c.outstanding[id] = struct{}{}
	}
	if len(expected) == 0 {
		c.closeOnce.Do(func() { close(c.done) })
	}
	return c
}

// Collect stores item for playerID, overwriting any earlier item from the
// same player (idempotent-replace semantics). If outstanding becomes empty,
// waiters are woken.
func (c *Collector[T]) Collect(playerID uuid.UUID, item T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[playerID] = item
	delete(c.outstanding, playerID)
	c.maybeClose()
}

// RemovePlayer treats playerID as satisfied without storing an item, used
// on disconnect.
func (c *Collector[T]) RemovePlayer(playerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.outstanding, playerID)
	c.maybeClose()
}

func (c *Collector[T]) maybeClose() {
	if len(c.outstanding) == 0 {
		c.closeOnce.Do(func() { close(c.done) })
	}
}

func (c *Collector[T]) snapshot() CollectResult[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	collected := make(map[uuid.UUID]T, len(c.items))
	for k, v := range c.items {
		collected[k] = v
	}
	missing := make([]uuid.UUID, 0, len(c.outstanding))
	for id := range c.outstanding {
		missing = append(missing, id)
	}
	return CollectResult[T]{Collected: collected, Missing: missing}
}

// WaitWithGrace completes at the earlier of (all outstanding satisfied AND
// delay has elapsed) OR (delay+grace has elapsed). It never returns before
// delay, even on the fast path, so every client observes the full round
// duration.
func (c *Collector[T]) WaitWithGrace(delay, grace time.Duration) CollectResult[T] {
	delayTimer := time.NewTimer(delay)
	<-delayTimer.C

	select {
	case <-c.done:
		return c.snapshot()
	default:
	}

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	select {
	case <-c.done:
	case <-graceTimer.C:
	}

	return c.snapshot()
}

// WaitUpTo returns as soon as all participants are satisfied or timeout
// elapses, whichever is first. There is no minimum wait.
func (c *Collector[T]) WaitUpTo(timeout time.Duration) CollectResult[T] {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
	}

	return c.snapshot()
}
