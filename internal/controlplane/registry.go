package controlplane

import "context"

// SessionView is a point-in-time snapshot of one accessory-server session,
// exposed to the admin API. It deliberately excludes session secrets (the
// shared-secret key schedule, controller identity) — this is an
// operational surface, not a protocol one.
type SessionView struct {
	ID            uint64 `json:"id"`
	RemoteAddr    string `json:"remote_addr"`
	State         string `json:"state"` // "idle", "reading", "writing"
	Secured       bool   `json:"secured"`
	Transient     bool   `json:"transient"`
	PendingEvents int    `json:"pending_events"`
}

// SessionRegistry is implemented by the session engine (internal/hap/engine)
// and queried by the control-plane API. It is never implemented by the
// protocol core itself, keeping the admin surface a one-way observer.
type SessionRegistry interface {
	// ListSessions returns a snapshot of every open session.
	ListSessions() []SessionView

	// CloseSession forcibly closes the session with the given id.
	// Returns false if no such session is open.
	CloseSession(ctx context.Context, id uint64) bool
}

// AccessoryTreeProvider supplies the control-plane's read-only JSON view of
// the accessory database. It is distinct from the HAP-protocol
// GET /accessories endpoint on the accessory port: this one requires no
// pairing and serves operators, not controllers.
type AccessoryTreeProvider interface {
	AccessoryTree() ([]byte, error)
}
