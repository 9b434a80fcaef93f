// Package pairing defines the storage interface for long-term HomeKit
// controller pairings.
//
// Pair-setup and pair-verify cryptography is an external collaborator
// (injected as a dispatch.PairVerifyHandler in internal/hap/dispatch);
// this package only persists
// the resulting long-term pairing records so a controller that paired
// once is recognized across restarts.
package pairing

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a pairing record does not exist.
var ErrNotFound = errors.New("pairing: record not found")

// Record is a single long-term controller pairing.
type Record struct {
	// ID is the pairing's unique identifier (google/uuid-generated).
	ID string

	// ControllerID is the HAP controller pairing identifier presented
	// during pair-verify (the "iOSDevicePairingID").
	ControllerID []byte

	// ControllerLTPK is the controller's long-term Ed25519 public key.
	ControllerLTPK []byte

	// Admin is true if this controller was the first to pair (has admin
	// permissions over the accessory's pairing database).
	Admin bool
}

// Store persists long-term controller pairings, keyed by controller ID.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the pairing record for a controller ID.
	// Returns ErrNotFound if no such pairing exists.
	Get(ctx context.Context, controllerID []byte) (*Record, error)

	// Put creates or updates a pairing record.
	Put(ctx context.Context, rec *Record) error

	// Delete removes a pairing record. It is not an error to delete a
	// controller ID that was never paired.
	Delete(ctx context.Context, controllerID []byte) error

	// ForEach invokes fn for every stored pairing record, in no
	// particular order. Iteration stops early if fn returns an error;
	// that error is returned from ForEach.
	ForEach(ctx context.Context, fn func(*Record) error) error

	// Count returns the number of stored pairings. The accessory is
	// considered paired (M1 discovery state flips) when Count() > 0.
	Count(ctx context.Context) (int, error)

	// Close releases underlying resources.
	Close() error
}

// IsPaired reports whether s holds at least one controller pairing.
func IsPaired(ctx context.Context, s Store) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
