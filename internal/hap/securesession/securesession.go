// Package securesession is the boundary spec.md §1 draws around
// pair-verify and the AEAD keystream: "consumed as an opaque
// encrypt/decrypt buffer and is-secured predicate". Nothing in this
// module performs key exchange or AEAD itself; an application supplies
// an Adapter (backed by its own pair-verify implementation) and this
// package only defines the interface and the tagged session-kind variant
// spec.md §9's design notes ask for in place of the original's opaque
// pointer-plus-type-tag.
package securesession

import "fmt"

// Kind tags which security-session variant a session currently holds,
// replacing the original's {type, opaque context} pair with a single
// total value.
type Kind int

const (
	KindNone Kind = iota
	KindHAP
	KindMFiSAP
)

func (k Kind) String() string {
	switch k {
	case KindHAP:
		return "hap"
	case KindMFiSAP:
		return "mfi-sap"
	default:
		return "none"
	}
}

// MaxPlaintextFrameSize is the compile-time constant bounding a single
// encrypted frame's plaintext payload (spec.md §4.4); the serializer
// (C7) chunks its output to this size.
const MaxPlaintextFrameSize = 1024

// State is the per-connection tagged variant: {none | hap | mfi-sap}
// plus the transient/admin flags pair-verify attaches to a promoted
// session. Keys themselves are opaque to this package and owned by
// whatever Adapter implementation is in use; State only carries the
// classification predicates spec.md §4.4 names (is-secured, is-transient,
// is-admin).
type State struct {
	Kind      Kind
	transient bool
	admin     bool
}

// NewState returns a not-yet-secured State, the state every session
// starts in on accept (spec.md §4.2).
func NewState() *State {
	return &State{Kind: KindNone}
}

// Promote transitions State out of KindNone after a successful
// pair-verify, recording whether the resulting session is transient
// (auxiliary, most endpoints forbidden) or admin (the controller that
// completed the original pairing).
func (s *State) Promote(kind Kind, transient, admin bool) {
	s.Kind = kind
	s.transient = transient
	s.admin = admin
}

// IsSecured reports whether a security session has been established.
func (s *State) IsSecured() bool { return s.Kind != KindNone }

// IsTransient reports whether this is a paired-but-not-promoted session
// restricted to auxiliary configuration endpoints.
func (s *State) IsTransient() bool { return s.transient }

// IsAdmin reports whether this session's controller holds admin
// permissions.
func (s *State) IsAdmin() bool { return s.admin }

// Adapter performs the byte-buffer transforms of spec.md §4.4. It is the
// one external collaborator this module depends on for cryptography; the
// pairing package and an injected pair-verify implementation together
// produce it.
type Adapter interface {
	// Decrypt transforms io (an encrypted frame read off the wire) into
	// plaintext, in place where possible.
	Decrypt(state *State, io []byte) ([]byte, error)
	// Encrypt transforms io (a plaintext frame) into its encrypted wire
	// form, in place where possible.
	Encrypt(state *State, io []byte) ([]byte, error)
	// EncryptedSize returns the wire size of a frame carrying
	// plaintextSize bytes of payload.
	EncryptedSize(plaintextSize int) int
	// Close releases any resources (e.g. key material) held for state.
	Close(state *State) error
}

// ErrFrameTooLarge is returned by callers driving Adapter.Encrypt/Decrypt
// when EncryptedSize(payload) would not fit in the available buffer;
// per spec.md §4.4 the caller must reply 500 with {"status":-70407}
// rather than attempt a partial encrypt.
var ErrFrameTooLarge = fmt.Errorf("securesession: frame exceeds buffer capacity")
