package logger

// Well-known structured field keys, kept short and grep-friendly.
const (
	KeyTraceID    = "trace_id"
	KeySpanID     = "span_id"
	KeyPath       = "path"
	KeySessionID  = "session_id"
	KeyClientIP   = "client_ip"
	KeyAID        = "aid"
	KeyIID        = "iid"
	KeyStatus     = "status"
	KeyMethod     = "method"
	KeyError      = "error"
	KeyActive     = "active"
	KeyPort       = "port"
	KeyEventCount = "events"
)
