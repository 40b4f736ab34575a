// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package state persists small device preferences across power cycles
// (duty slots, backend address) and hosts the shared runtime flags read
// by multiple workers.
//
// BadgerDB is used for the preference store: writes are fsynced and
// atomic, which matters because slot reconfiguration arrives remotely
// and a torn write would brick the duty cycle until re-provisioning.
package state

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var (
	keySlots         = []byte("duty/slots")
	keyServerAddress = []byte("server/address")
)

// ErrNotFound is returned when a preference has never been written.
var ErrNotFound = errors.New("state: key not found")

// Store is the persisted device preference store.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveDutySlots persists the slot table as a packed blob, 4 bytes per
// slot: startHour, startMin, endHour, endMin. The write is atomic; the
// previous table stays intact if the device loses power mid-update.
func (s *Store) SaveDutySlots(quads [][4]int) error {
	buf := make([]byte, 0, len(quads)*4)
	for _, q := range quads {
		buf = append(buf, byte(q[0]), byte(q[1]), byte(q[2]), byte(q[3]))
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keySlots, buf)
	})
	if err != nil {
		return fmt.Errorf("state: save duty slots: %w", err)
	}
	return nil
}

// LoadDutySlots reads the persisted slot table. Returns ErrNotFound when
// the device has never been configured remotely.
func (s *Store) LoadDutySlots() ([][4]int, error) {
	var buf []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keySlots)
		if err != nil {
			return err
		}
		buf, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("state: load duty slots: %w", err)
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("state: duty slot blob has odd length %d", len(buf))
	}
	quads := make([][4]int, 0, len(buf)/4)
	for i := 0; i+3 < len(buf); i += 4 {
		quads = append(quads, [4]int{int(buf[i]), int(buf[i+1]), int(buf[i+2]), int(buf[i+3])})
	}
	return quads, nil
}

// SaveServerAddress persists the backend host:port from provisioning.
func (s *Store) SaveServerAddress(addr string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyServerAddress, []byte(addr))
	})
	if err != nil {
		return fmt.Errorf("state: save server address: %w", err)
	}
	return nil
}

// ServerAddress reads the persisted backend address.
func (s *Store) ServerAddress() (string, error) {
	var addr string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyServerAddress)
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		addr = string(val)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("state: load server address: %w", err)
	}
	return addr, nil
}
