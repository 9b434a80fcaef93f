package characteristic

import "errors"

// HAP status codes (spec.md §6, §4.6). Status is the sole vocabulary
// both reads and writes report back to the wire; 0 means success.
const (
	StatusSuccess               = 0
	StatusInvalidStateOrUnknown = -70402
	StatusBusy                  = -70403
	StatusNotWritable           = -70404
	StatusNotReadable           = -70405
	StatusOutOfResources        = -70407
	StatusInvalidData           = -70410
	StatusNotAuthorized         = -70411
)

// Sentinel errors a WriteFunc/ReadFunc may return; Write/Read map them to
// the HAP status table in spec.md §4.6. Any other non-nil error is
// treated as ErrUnknown.
var (
	ErrInvalidState  = errors.New("characteristic: invalid state")
	ErrInvalidData   = errors.New("characteristic: invalid data")
	ErrOutOfResources = errors.New("characteristic: out of resources")
	ErrNotAuthorized = errors.New("characteristic: not authorized")
	ErrBusy          = errors.New("characteristic: busy")
	ErrUnknown       = errors.New("characteristic: unknown error")
)

// statusForWriteError implements the write error mapping table verbatim.
func statusForWriteError(err error) int {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrInvalidData):
		return StatusInvalidData
	case errors.Is(err, ErrOutOfResources):
		return StatusOutOfResources
	case errors.Is(err, ErrNotAuthorized):
		return StatusNotAuthorized
	case errors.Is(err, ErrBusy):
		return StatusBusy
	default:
		// Unknown and InvalidState share -70402 per spec.md §4.6.
		return StatusInvalidStateOrUnknown
	}
}

// statusForReadError is analogous to the write mapping (spec.md §4.6),
// except InvalidData on a read is a programming error the caller must
// treat as fatal rather than reported on the wire; see Read.
func statusForReadError(err error) int {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrOutOfResources):
		return StatusOutOfResources
	case errors.Is(err, ErrNotAuthorized):
		return StatusNotAuthorized
	case errors.Is(err, ErrBusy):
		return StatusBusy
	default:
		return StatusInvalidStateOrUnknown
	}
}
