// Package characteristic implements the typed characteristic database:
// accessories, services, and characteristics, with per-format
// constraint validation on read and write and the write error mapping
// table that is the sole source of HAP status codes on write.
//
// Grounded on pkg/metadata's typed aid/iid-addressed tree shape, and on
// pkg/adapter/nfs/handlers.go's dispatch-table-by-procedure pattern for
// routing a request to the correct per-format handling path. The four
// characteristic callbacks are plain function fields rather than a
// method-per-format interface: the application constructs each
// Characteristic once at startup and the engine only ever borrows it.
package characteristic

import "context"

// Format is the wire type tag of a characteristic's value.
type Format int

const (
	FormatData Format = iota
	FormatBool
	FormatUInt8
	FormatUInt16
	FormatUInt32
	FormatUInt64
	FormatInt
	FormatFloat
	FormatString
	FormatTLV8
)

// Properties are the per-characteristic capability flags from spec.md §3.
type Properties struct {
	Readable                  bool
	Writable                  bool
	SupportsEventNotification bool
	SupportsWriteResponse     bool
	IsControlPoint            bool
	RequiresTimedWrite        bool
	RequiresAdminRead         bool
	RequiresAdminWrite        bool
}

// NumericConstraints bounds a UInt8/16/32/64, Int, or Float value.
type NumericConstraints struct {
	Minimum float64
	Maximum float64
	Step    float64

	// ValidValues and ValidValuesRanges apply only to Apple-defined UInt8
	// characteristics (spec.md §4.6); a nil slice means "no restriction
	// beyond Minimum/Maximum/Step".
	ValidValues       []uint8
	ValidValuesRanges [][2]uint8
}

// Constraints holds the format-specific limits attached to a
// characteristic. Only the fields relevant to the characteristic's
// Format are consulted.
type Constraints struct {
	Numeric   NumericConstraints
	MaxLength int // Data/String
}

// SessionContext is the minimal view of a session a characteristic needs
// to enforce admin-only access; internal/hap/session.Session satisfies
// this.
type SessionContext interface {
	IsAdmin() bool
}

// ReadContext distinguishes a normal GET /characteristics read from an
// event-notification read, since two invariants (control-point rejection,
// Programmable Switch Event suppression) apply only outside event
// context.
type ReadContext int

const (
	ReadContextNormal ReadContext = iota
	ReadContextEvent
)

// ReadFunc produces the current value of a characteristic. Returning
// ErrInvalidData is a programming error (spec.md §7): the caller panics
// rather than propagating a HAP status, since a read handler has no
// legal way to reject a read with "bad data".
type ReadFunc func(ctx context.Context, session SessionContext) (value any, err error)

// WriteFunc applies a new value. The returned error, if any, must be one
// of the sentinel errors in this package (ErrInvalidData, ErrBusy, etc.)
// to receive its corresponding HAP status; any other error maps to
// ErrUnknown's status.
type WriteFunc func(ctx context.Context, session SessionContext, value any) error

// SubscribeFunc and UnsubscribeFunc register/deregister event-notification
// interest. They are invoked by internal/hap/dispatch (PUT /characteristics
// "ev"), not directly by this package.
type SubscribeFunc func(ctx context.Context, session SessionContext) error
type UnsubscribeFunc func(ctx context.Context, session SessionContext) error

// Characteristic is one addressable, typed, constrained value owned by a
// Service.
type Characteristic struct {
	IID        uint64
	TypeUUID   string
	Format     Format
	Properties Properties
	Constraints Constraints

	// ProgrammableSwitchEvent marks the one Apple-defined characteristic
	// whose value always reads as JSON null outside an event-notification
	// context (spec.md §4.6).
	ProgrammableSwitchEvent bool

	OnRead        ReadFunc
	OnWrite       WriteFunc
	OnSubscribe   SubscribeFunc
	OnUnsubscribe UnsubscribeFunc
}

// Service is identified by a type UUID and an iid unique within its
// accessory, and carries an ordered list of characteristics.
type Service struct {
	IID        uint64
	TypeUUID   string
	SupportsIP bool
	Characteristics []*Characteristic
}

// Find returns the characteristic with the given iid within this
// service, or nil.
func (s *Service) Find(iid uint64) *Characteristic {
	for _, c := range s.Characteristics {
		if c.IID == iid {
			return c
		}
	}
	return nil
}

// Accessory is a node with a unique aid, a category, display metadata,
// and an ordered list of services. IsBridge/BridgedAccessories implement
// the supplemented bridging feature (SPEC_FULL §4): a bridge accessory's
// own aid is 1 (or the bridge's own id) and it additionally enumerates
// the aids of the accessories it bridges, all living in the same
// Database.
type Accessory struct {
	AID      uint64
	Category int
	Name     string
	Model    string
	Firmware string
	Services []*Service

	IsBridge          bool
	BridgedAccessories []uint64
}

// Find returns the service with the given iid within this accessory, or
// nil.
func (a *Accessory) Find(iid uint64) *Service {
	for _, s := range a.Services {
		if s.IID == iid {
			return s
		}
	}
	return nil
}

// Database is the full, immutable-during-engine-lifetime accessory tree.
// It is owned by the application and only borrowed by the engine (spec.md
// §3's "characteristics are borrowed by the engine from an externally
// provided immutable accessory tree").
type Database struct {
	Accessories []*Accessory
}

// FindAccessory returns the accessory with the given aid, or nil.
func (d *Database) FindAccessory(aid uint64) *Accessory {
	for _, a := range d.Accessories {
		if a.AID == aid {
			return a
		}
	}
	return nil
}

// Locator is (aid, iid) packaged for characteristic lookups that cross
// accessory boundaries, as used by the multi-id GET /characteristics
// query (SPEC_FULL §4).
type Locator struct {
	AID uint64
	IID uint64
}

// Find resolves a Locator to its characteristic, walking every service of
// the named accessory. Returns nil if the accessory, or the iid within
// it, does not exist.
func (d *Database) Find(loc Locator) *Characteristic {
	a := d.FindAccessory(loc.AID)
	if a == nil {
		return nil
	}
	for _, s := range a.Services {
		if c := s.Find(loc.IID); c != nil {
			return c
		}
	}
	return nil
}
