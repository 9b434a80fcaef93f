// Package session implements the per-connection session descriptor
// (spec.md §3, C6): connection state, the Idle/Reading/Writing state
// machine, event-notification bookkeeping, and timed-write transaction
// state.
//
// SPEC_FULL §0 redesigns the concurrency model from a single-threaded
// reactor to one goroutine per session (grounded on
// pkg/adapter/nfs/nfs_connection.go's NFSConnection.Serve). This package
// still owns exactly the state spec.md §3 names; internal/hap/engine
// drives it from a per-session goroutine instead of an event-loop
// callback.
package session

import (
	"bufio"
	"net"
	"sync"
	"time"

	"github.com/hapcore/hapd/internal/hap/securesession"
)

// State mirrors spec.md §4.2's three-state machine.
type State int

const (
	StateIdle State = iota
	StateReading
	StateWriting
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateWriting:
		return "writing"
	default:
		return "idle"
	}
}

// MaxEventNotifications bounds the number of (aid, iid) subscriptions a
// single session may hold, matching spec.md §3's "a session holds at
// most max-event-notifications records".
const MaxEventNotifications = 64

// ErrTooManyEventNotifications is returned by Subscribe once
// MaxEventNotifications is reached.
var ErrTooManyEventNotifications = errTooMany{}

type errTooMany struct{}

func (errTooMany) Error() string { return "session: too many event notifications" }

// eventRecord is one (aid, iid, pending) entry (spec.md §3).
type eventRecord struct {
	aid, iid uint64
	pending  bool
}

// Session is the per-connection descriptor. All mutable fields are
// guarded by mu since the event-notification scheduler goroutine (C9)
// and the serializer driven by this session's own goroutine both touch
// pending-event state; everything else (HTTP parsing, buffer contents)
// is touched only by the owning session goroutine and needs no lock.
type Session struct {
	ID   uint64
	Conn net.Conn

	Reader *bufio.Reader
	Writer *bufio.Writer

	Security *securesession.State
	Adapter  securesession.Adapter

	// EventNotify is selected alongside the reader's result channel while
	// Reading with an empty inbound buffer, reproducing "Reading session
	// with empty inbound buffer" as the event-delivery fence from spec.md
	// §5 without a non-blocking socket.
	EventNotify chan struct{}

	mu                   sync.Mutex
	state                State
	lastActivity         time.Time
	events               []eventRecord
	pendingCount         int
	eventCoalesceStamp   time.Time
	timedWriteArmed      bool
	timedWriteExpiration time.Time
	timedWritePID        uint64
}

// New creates a session descriptor for an accepted connection, in the
// Reading state with a fresh, not-yet-secured security session (spec.md
// §4.2: "accept -> Reading; open hap security session (not-yet-secured)").
func New(id uint64, conn net.Conn, adapter securesession.Adapter) *Session {
	return &Session{
		ID:           id,
		Conn:         conn,
		Reader:       bufio.NewReader(conn),
		Writer:       bufio.NewWriter(conn),
		Security:     securesession.NewState(),
		Adapter:      adapter,
		EventNotify:  make(chan struct{}, 1),
		state:        StateReading,
		lastActivity: time.Now(),
	}
}

// IsAdmin satisfies characteristic.SessionContext.
func (s *Session) IsAdmin() bool { return s.Security.IsAdmin() }

// IsSecured reports whether pair-verify has established a security
// session on this connection.
func (s *Session) IsSecured() bool { return s.Security.IsSecured() }

// IsTransient reports whether this session is paired-but-not-promoted.
func (s *Session) IsTransient() bool { return s.Security.IsTransient() }

// State returns the current state-machine state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState transitions the session to the given state.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Touch records activity, resetting the idle-timeout clock.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long the session has gone without activity.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// Subscribe inserts an event-notification record for (aid, iid), or
// reports ErrTooManyEventNotifications if the session is already at
// MaxEventNotifications.
func (s *Session) Subscribe(aid, iid uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].aid == aid && s.events[i].iid == iid {
			return nil
		}
	}
	if len(s.events) >= MaxEventNotifications {
		return ErrTooManyEventNotifications
	}
	s.events = append(s.events, eventRecord{aid: aid, iid: iid})
	return nil
}

// Unsubscribe removes the event-notification record for (aid, iid), if
// present, decrementing pendingCount if it was pending.
func (s *Session) Unsubscribe(aid, iid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(aid, iid)
}

func (s *Session) removeLocked(aid, iid uint64) {
	for i := range s.events {
		if s.events[i].aid == aid && s.events[i].iid == iid {
			if s.events[i].pending {
				s.pendingCount--
			}
			s.events = append(s.events[:i], s.events[i+1:]...)
			return
		}
	}
}

// UnsubscribeAll clears every event-notification record, called on
// disconnect (spec.md §3: "removed on unsubscribe or disconnect").
func (s *Session) UnsubscribeAll() {
	s.mu.Lock()
	s.events = nil
	s.pendingCount = 0
	s.mu.Unlock()
}

// IsSubscribed reports whether this session is subscribed to (aid, iid).
func (s *Session) IsSubscribed(aid, iid uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].aid == aid && s.events[i].iid == iid {
			return true
		}
	}
	return false
}

// SetPending marks (aid, iid) pending if the session is subscribed and
// the bit was previously clear, returning true if it set a new bit (the
// caller, internal/hap/events, uses this to decide whether to call
// MarkCoalesceStart).
func (s *Session) SetPending(aid, iid uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].aid == aid && s.events[i].iid == iid {
			if s.events[i].pending {
				return false
			}
			s.events[i].pending = true
			s.pendingCount++
			return true
		}
	}
	return false
}

// PendingCount returns the population count of pending bits (spec.md §3:
// "the engine maintains this as an O(1) counter").
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingCount
}

// PendingSince returns how long it has been since the last coalesced
// emission, used by the scheduler to enforce the ~1s coalescing window.
func (s *Session) PendingSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventCoalesceStamp.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return time.Since(s.eventCoalesceStamp)
}

// DrainPending clears every pending bit and returns the (aid, iid) pairs
// that were pending, for the scheduler to serialize into one EVENT/1.0
// frame. It also resets the coalescing stamp.
func (s *Session) DrainPending() []struct{ AID, IID uint64 } {
	s.mu.Lock()
	defer s.mu.Unlock()

	var drained []struct{ AID, IID uint64 }
	for i := range s.events {
		if s.events[i].pending {
			drained = append(drained, struct{ AID, IID uint64 }{s.events[i].aid, s.events[i].iid})
			s.events[i].pending = false
		}
	}
	s.pendingCount = 0
	s.eventCoalesceStamp = time.Now()
	return drained
}

// MarkCoalesceStart records "now" as the coalescing stamp if the session
// has none yet, that is, before its first drain. internal/hap/events
// calls this when SetPending reports a fresh bit, so before the first
// emission PendingSince measures from the first pending event. Once
// DrainPending has run, the stamp is the last emission time and this
// call leaves it unchanged.
func (s *Session) MarkCoalesceStart() {
	s.mu.Lock()
	if s.eventCoalesceStamp.IsZero() {
		s.eventCoalesceStamp = time.Now()
	}
	s.mu.Unlock()
}

// ArmTimedWrite records a PUT /prepare transaction (spec.md §4.8).
// Consecutive prepares overwrite any existing transaction.
func (s *Session) ArmTimedWrite(ttl time.Duration, pid uint64) {
	s.mu.Lock()
	s.timedWriteArmed = true
	s.timedWriteExpiration = time.Now().Add(ttl)
	s.timedWritePID = pid
	s.mu.Unlock()
}

// ConsumeTimedWrite reports whether a prepared transaction with the given
// pid is still live, and if so consumes it (clears expiration and pid)
// so a replay of the same pid fails, per spec.md §4.8 and §8 property 10.
func (s *Session) ConsumeTimedWrite(pid uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.timedWriteArmed || s.timedWritePID != pid || !time.Now().Before(s.timedWriteExpiration) {
		return false
	}
	s.timedWriteArmed = false
	s.timedWritePID = 0
	s.timedWriteExpiration = time.Time{}
	return true
}

// Close releases the security adapter's resources for this session and
// closes the underlying connection. The engine (C10) may call it more
// than once for a session (an idle sweep or control-plane close, then the
// session goroutine's own cleanup); later calls return the connection's
// close error, which the engine ignores.
func (s *Session) Close() error {
	_ = s.Adapter.Close(s.Security)
	return s.Conn.Close()
}
