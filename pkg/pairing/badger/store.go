// Package badger is a BadgerDB-backed implementation of pkg/pairing.Store.
//
// Key namespace design follows pkg/metadata's badger store: prefixed
// keys so pairing records can be range-scanned without a secondary
// index.
//
// Data Type    Prefix   Key Format        Value Type
// ===========================================================
// Pairing      "p:"     p:<controllerID>  Record (JSON)
package badger

import (
	"context"
	"encoding/json"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/hapcore/hapd/pkg/pairing"
)

const prefixPairing = "p:"

func keyPairing(controllerID []byte) []byte {
	return append([]byte(prefixPairing), controllerID...)
}

// Store is a BadgerDB-backed pairing.Store.
type Store struct {
	db *badgerdb.DB
}

var _ pairing.Store = (*Store)(nil)

// Open opens (creating if necessary) a BadgerDB pairing store at path.
func Open(path string) (*Store, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("pairing/badger: open %q: %w", path, err)
	}

	return &Store{db: db}, nil
}

// record is the on-disk representation of pairing.Record.
type record struct {
	ID             string `json:"id"`
	ControllerID   []byte `json:"controller_id"`
	ControllerLTPK []byte `json:"controller_ltpk"`
	Admin          bool   `json:"admin"`
}

func encodeRecord(rec *pairing.Record) ([]byte, error) {
	return json.Marshal(record{
		ID:             rec.ID,
		ControllerID:   rec.ControllerID,
		ControllerLTPK: rec.ControllerLTPK,
		Admin:          rec.Admin,
	})
}

func decodeRecord(data []byte) (*pairing.Record, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &pairing.Record{
		ID:             r.ID,
		ControllerID:   r.ControllerID,
		ControllerLTPK: r.ControllerLTPK,
		Admin:          r.Admin,
	}, nil
}

// Get returns the pairing record for a controller ID.
func (s *Store) Get(ctx context.Context, controllerID []byte) (*pairing.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *pairing.Record
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyPairing(controllerID))
		if err == badgerdb.ErrKeyNotFound {
			return pairing.ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			decoded, decErr := decodeRecord(val)
			if decErr != nil {
				return decErr
			}
			rec = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Put creates or updates a pairing record. An empty ID is assigned a new
// UUID before the record is stored.
func (s *Store) Put(ctx context.Context, rec *pairing.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyPairing(rec.ControllerID), data)
	})
}

// Delete removes a pairing record. Deleting an unknown controller ID is a
// no-op, matching the HAP remove-pairing semantics where the operation is
// idempotent from the controller's point of view.
func (s *Store) Delete(ctx context.Context, controllerID []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		err := txn.Delete(keyPairing(controllerID))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// ForEach invokes fn for every stored pairing record.
func (s *Store) ForEach(ctx context.Context, fn func(*pairing.Record) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPairing)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			if err := item.Value(func(val []byte) error {
				rec, decErr := decodeRecord(val)
				if decErr != nil {
					return decErr
				}
				return fn(rec)
			}); err != nil {
				return err
			}
		}

		return nil
	})
}

// Count returns the number of stored pairings.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	count := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixPairing)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Close releases the underlying BadgerDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}
