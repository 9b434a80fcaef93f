// Package engine implements the session multiplexer (spec.md §3, C10):
// the accept loop, the goroutine-per-session lifecycle, idle-timeout
// sweeping, and pool-capacity enforcement with immediate-close-on-full
// (SPEC_FULL §0's redesign of the original single-threaded reactor).
//
// Grounded on pkg/adapter/base.go's BaseAdapter.ServeWithFactory: the
// semaphore-gated accept loop, the shutdown channel monitored alongside
// Accept, and the per-connection WaitGroup used to drain graceful
// shutdown, carried over nearly unchanged since the accept-loop shape
// is protocol-agnostic; what differs is the per-connection handler,
// which here is internal/hap/session plus internal/hap/dispatch instead
// of an RPC connection.
package engine

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/hapcore/hapd/internal/controlplane"
	"github.com/hapcore/hapd/internal/hap/characteristic"
	"github.com/hapcore/hapd/internal/hap/dispatch"
	"github.com/hapcore/hapd/internal/hap/events"
	"github.com/hapcore/hapd/internal/hap/securesession"
	"github.com/hapcore/hapd/internal/hap/session"
	"github.com/hapcore/hapd/internal/logger"
	"github.com/hapcore/hapd/pkg/metrics"
)

// Registry is the subset of events.Registry the Engine implements for its
// own sessions.
type Registry interface {
	ForEachSubscribed(aid, iid, excludeSessionID uint64, fn func(*session.Session))
}

// Config controls the accept loop, pool capacity, and idle sweep.
type Config struct {
	Addr string

	// MaxSessions bounds concurrently open sessions. 0 means unlimited.
	// A connection arriving once the pool is full is accepted at the TCP
	// level and immediately closed (spec.md §3's "full pool" behavior),
	// rather than left to queue in the kernel backlog indefinitely.
	MaxSessions int

	// IdleTimeout closes a session that has sat with no request and no
	// pending event this long. 0 disables the sweep.
	IdleTimeout time.Duration

	ListenBacklog int
}

// Engine owns the accessory server's listener and session table.
type Engine struct {
	cfg        Config
	db         *characteristic.Database
	dispatcher *dispatch.Dispatcher
	adapter    securesession.Adapter
	metrics    metrics.HAPMetrics

	listener net.Listener

	mu       sync.Mutex
	sessions map[uint64]*session.Session
	nextID   uint64

	wg       sync.WaitGroup
	shutdown chan struct{}
	once     sync.Once
	ready    chan struct{}

	// events coalesces characteristic value changes into EVENT/1.0
	// frames across every subscribed session (spec.md §5, C9). The
	// Engine is its own Registry: sessions it accepts are exactly the
	// sessions it can notify.
	events *events.Scheduler
}

// New creates an Engine. adapter may be securesession.NoopAdapter{} until a
// real pair-verify-backed Adapter is wired. m may be nil.
func New(cfg Config, db *characteristic.Database, d *dispatch.Dispatcher, adapter securesession.Adapter, m metrics.HAPMetrics) *Engine {
	e := &Engine{
		cfg:        cfg,
		db:         db,
		dispatcher: d,
		adapter:    adapter,
		metrics:    m,
		sessions:   make(map[uint64]*session.Session),
		shutdown:   make(chan struct{}),
		ready:      make(chan struct{}),
	}
	e.events = events.NewScheduler(e)
	return e
}

// Raise notifies every session subscribed to (aid, iid) of a value
// change, coalescing per spec.md §5 unless immediate is set (a
// control-point characteristic such as Programmable Switch Event, which
// spec.md §4.6 requires to bypass the coalescing window).
// excludeSessionID, if non-zero, names the session currently handling
// the triggering write so it is skipped and never receives an echo of
// its own write (spec.md §4.7). Application write handlers call this
// after updating the backing value, passing 0 when the change did not
// originate from a HAP write.
func (e *Engine) Raise(aid, iid uint64, immediate bool, excludeSessionID uint64) {
	e.events.Raise(aid, iid, immediate, excludeSessionID)
}

// Ready is closed once the listener is bound, letting callers (tests, or
// a status command) discover Addr() safely.
func (e *Engine) Ready() <-chan struct{} { return e.ready }

// Addr returns the bound listener address. Only valid after Ready fires.
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return nil
	}
	return e.listener.Addr()
}

// ForEachSubscribed implements events.Registry.
func (e *Engine) ForEachSubscribed(aid, iid, excludeSessionID uint64, fn func(*session.Session)) {
	e.mu.Lock()
	snapshot := make([]*session.Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		snapshot = append(snapshot, s)
	}
	e.mu.Unlock()

	for _, s := range snapshot {
		if s.ID == excludeSessionID {
			continue
		}
		if s.IsSubscribed(aid, iid) {
			fn(s)
		}
	}
}

// ListSessions implements controlplane.SessionRegistry.
func (e *Engine) ListSessions() []controlplane.SessionView {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make([]controlplane.SessionView, 0, len(e.sessions))
	for _, s := range e.sessions {
		views = append(views, controlplane.SessionView{
			ID:            s.ID,
			RemoteAddr:    s.Conn.RemoteAddr().String(),
			State:         s.State().String(),
			Secured:       s.IsSecured(),
			Transient:     s.IsTransient(),
			PendingEvents: s.PendingCount(),
		})
	}
	return views
}

// CloseSession implements controlplane.SessionRegistry.
func (e *Engine) CloseSession(ctx context.Context, id uint64) bool {
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	_ = s.Close()
	return true
}

// AccessoryTree implements controlplane.AccessoryTreeProvider.
func (e *Engine) AccessoryTree() ([]byte, error) {
	return accessoryTreeJSON(e.db)
}

// Serve runs the accept loop until ctx is cancelled. It returns once every
// session goroutine has exited.
func (e *Engine) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", e.cfg.Addr)
	if err != nil {
		return fmt.Errorf("hap engine: listen %s: %w", e.cfg.Addr, err)
	}
	e.mu.Lock()
	e.listener = listener
	e.mu.Unlock()
	close(e.ready)

	logger.Info("hap engine listening", "addr", e.cfg.Addr)

	go e.events.Run()
	defer e.events.Stop()

	go func() {
		<-ctx.Done()
		e.initiateShutdown()
	}()

	if e.cfg.IdleTimeout > 0 {
		go e.sweepIdle(ctx)
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-e.shutdown:
				return e.drain()
			default:
				logger.Debug("hap engine accept error", "error", err)
				continue
			}
		}

		if e.poolFull() {
			logger.Debug("hap engine session pool full, closing connection", "remote", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}

		e.wg.Add(1)
		go e.serveConn(ctx, conn)
	}
}

func (e *Engine) poolFull() bool {
	if e.cfg.MaxSessions <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions) >= e.cfg.MaxSessions
}

func (e *Engine) initiateShutdown() {
	e.once.Do(func() {
		close(e.shutdown)
		e.mu.Lock()
		l := e.listener
		e.mu.Unlock()
		if l != nil {
			_ = l.Close()
		}
	})
}

func (e *Engine) drain() error {
	e.wg.Wait()
	return nil
}

func (e *Engine) serveConn(ctx context.Context, conn net.Conn) {
	defer e.wg.Done()

	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.mu.Unlock()

	sess := session.New(id, conn, e.adapter)

	e.mu.Lock()
	e.sessions[id] = sess
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordSessionAccepted()
		e.setActiveSessionsLocked()
	}

	reason := "client"
	defer func() {
		sess.UnsubscribeAll()
		_ = sess.Close()

		e.mu.Lock()
		delete(e.sessions, id)
		e.setActiveSessionsLocked()
		e.mu.Unlock()

		if e.metrics != nil {
			e.metrics.RecordSessionClosed(reason)
		}
	}()

	driver := newConnDriver(sess, e.dispatcher, e.metrics)
	reason = driver.run(ctx, e.shutdown)
}

// setActiveSessionsLocked updates the active-session gauge; callers must
// hold e.mu.
func (e *Engine) setActiveSessionsLocked() {
	if e.metrics == nil {
		return
	}
	e.metrics.SetActiveSessions(len(e.sessions))
}

// sweepIdle closes sessions that have exceeded cfg.IdleTimeout with no
// activity and no pending events, matching spec.md §3's idle-timeout
// sweep.
func (e *Engine) sweepIdle(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.shutdown:
			return
		case <-ticker.C:
			e.mu.Lock()
			var stale []*session.Session
			for _, s := range e.sessions {
				if s.IdleFor() >= e.cfg.IdleTimeout && s.PendingCount() == 0 {
					stale = append(stale, s)
				}
			}
			e.mu.Unlock()

			for _, s := range stale {
				logger.Debug("hap engine closing idle session", "id", s.ID)
				_ = s.Close()
			}
		}
	}
}
