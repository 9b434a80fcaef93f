// Package events implements the event-notification scheduler (spec.md
// §5, C9): a single goroutine that coalesces characteristic-value
// changes across a ~1s window per session and wakes each affected
// session's goroutine through its EventNotify channel rather than
// writing to the connection itself, keeping the write side owned by
// one goroutine per connection (SPEC_FULL §0's redesign).
//
// Grounded on pkg/metadata/badger_store.go's background GC loop: a
// ticker-driven goroutine iterating a registry and acting on time-based
// conditions, here coalescing instead of evicting.
package events

import (
	"sync"
	"time"

	"github.com/hapcore/hapd/internal/hap/session"
)

// CoalesceWindow is the nominal delay between a characteristic becoming
// pending and its notification being flushed, unless the characteristic
// is in the immediate-fire set (spec.md §5).
const CoalesceWindow = time.Second

// Raise is one change notification: a characteristic at (aid, iid)
// changed value. Immediate marks characteristics (Programmable Switch
// Event and similar) that bypass coalescing entirely. ExcludeSessionID,
// if non-zero, is the session currently handling the triggering write;
// it is skipped so a controller never receives an echo of its own
// write (spec.md §4.7).
type Raise struct {
	AID, IID         uint64
	Immediate        bool
	ExcludeSessionID uint64
}

// Registry is the minimal view of the session set the scheduler needs.
// internal/hap/engine's session table satisfies this.
type Registry interface {
	// ForEachSubscribed calls fn once for every live session currently
	// subscribed to (aid, iid), except the session identified by
	// excludeSessionID (0 excludes nothing).
	ForEachSubscribed(aid, iid, excludeSessionID uint64, fn func(*session.Session))
}

// Scheduler owns the coalescing loop. One Scheduler serves every session
// on an engine; there is no per-session goroutine for this concern,
// matching spec.md §5's "single shared scheduler" design, only the
// wakeup fan-out is per-session.
type Scheduler struct {
	registry Registry

	mu      sync.Mutex
	raises  chan Raise
	stop    chan struct{}
	stopped chan struct{}
}

// NewScheduler creates a scheduler bound to reg. Call Run in its own
// goroutine to start processing.
func NewScheduler(reg Registry) *Scheduler {
	return &Scheduler{
		registry: reg,
		raises:   make(chan Raise, 256),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Raise enqueues a characteristic-change notification. Safe to call
// from any goroutine (the application's OnWrite handlers call this).
// excludeSessionID is the session currently handling the triggering
// write, if any; pass 0 when the change did not originate from a HAP
// write (e.g. a sensor update).
func (s *Scheduler) Raise(aid, iid uint64, immediate bool, excludeSessionID uint64) {
	select {
	case s.raises <- Raise{AID: aid, IID: iid, Immediate: immediate, ExcludeSessionID: excludeSessionID}:
	case <-s.stop:
	}
}

// Stop halts the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.stopped
}

// Run processes raises until Stop is called. It marks every subscribed
// session's pending bit immediately, then wakes that session (a
// zero-delay send on EventNotify, non-blocking since the channel is
// buffered to 1) either right away (Immediate) or once CoalesceWindow
// has elapsed since the session's last coalesced emission (or, before its
// first emission, since its first pending bit) (spec.md §5: "a session already mid-burst does not reset its own
// timer on every new pending bit").
func (s *Scheduler) Run() {
	defer close(s.stopped)

	ticker := time.NewTicker(CoalesceWindow / 4)
	defer ticker.Stop()

	pendingSessions := map[*session.Session]struct{}{}
	var mu sync.Mutex

	for {
		select {
		case <-s.stop:
			return
		case r := <-s.raises:
			s.registry.ForEachSubscribed(r.AID, r.IID, r.ExcludeSessionID, func(sess *session.Session) {
				fresh := sess.SetPending(r.AID, r.IID)
				if fresh {
					sess.MarkCoalesceStart()
				}
				if r.Immediate {
					wake(sess)
					return
				}
				mu.Lock()
				pendingSessions[sess] = struct{}{}
				mu.Unlock()
			})
		case <-ticker.C:
			mu.Lock()
			for sess := range pendingSessions {
				if sess.PendingCount() == 0 {
					delete(pendingSessions, sess)
					continue
				}
				if sess.PendingSince() >= CoalesceWindow {
					wake(sess)
					delete(pendingSessions, sess)
				}
			}
			mu.Unlock()
		}
	}
}

// wake signals a session's goroutine without blocking; a session that
// hasn't drained a previous wakeup yet doesn't need a second one queued.
func wake(sess *session.Session) {
	select {
	case sess.EventNotify <- struct{}{}:
	default:
	}
}
