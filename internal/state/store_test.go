// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package state

import (
	"errors"
	"testing"
)

func newTestStoreAt(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDutySlotsRoundTrip(t *testing.T) {
	store := newTestStoreAt(t, t.TempDir())

	in := [][4]int{
		{7, 0, 8, 15},
		{11, 0, 13, 0},
		{17, 0, 21, 0},
	}
	if err := store.SaveDutySlots(in); err != nil {
		t.Fatalf("SaveDutySlots failed: %v", err)
	}

	out, err := store.LoadDutySlots()
	if err != nil {
		t.Fatalf("LoadDutySlots failed: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("slot count = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("slot %d = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDutySlotsOverwrite(t *testing.T) {
	store := newTestStoreAt(t, t.TempDir())

	if err := store.SaveDutySlots([][4]int{{7, 0, 8, 0}}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := store.SaveDutySlots([][4]int{{6, 30, 9, 0}}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	out, err := store.LoadDutySlots()
	if err != nil {
		t.Fatalf("LoadDutySlots failed: %v", err)
	}
	if len(out) != 1 || out[0] != [4]int{6, 30, 9, 0} {
		t.Errorf("slots = %v, want the second table", out)
	}
}

func TestDutySlotsNotFound(t *testing.T) {
	store := newTestStoreAt(t, t.TempDir())

	if _, err := store.LoadDutySlots(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestServerAddressRoundTrip(t *testing.T) {
	store := newTestStoreAt(t, t.TempDir())

	if _, err := store.ServerAddress(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on fresh store, got %v", err)
	}

	if err := store.SaveServerAddress("192.168.137.1:5000"); err != nil {
		t.Fatalf("SaveServerAddress failed: %v", err)
	}
	addr, err := store.ServerAddress()
	if err != nil {
		t.Fatalf("ServerAddress failed: %v", err)
	}
	if addr != "192.168.137.1:5000" {
		t.Errorf("address = %q", addr)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.SaveDutySlots([][4]int{{7, 0, 8, 15}}); err != nil {
		t.Fatalf("SaveDutySlots failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := newTestStoreAt(t, dir)
	out, err := reopened.LoadDutySlots()
	if err != nil {
		t.Fatalf("LoadDutySlots after reopen failed: %v", err)
	}
	if len(out) != 1 || out[0] != [4]int{7, 0, 8, 15} {
		t.Errorf("slots after reopen = %v", out)
	}
}

func TestFlags(t *testing.T) {
	flags := NewFlags()

	if !flags.Awake() {
		t.Error("fresh flags not awake")
	}
	flags.SetAwake(false)
	if flags.Awake() {
		t.Error("SetAwake(false) ignored")
	}

	if flags.Enrolling() {
		t.Error("fresh flags enrolling")
	}
	if !flags.TryBeginEnroll() {
		t.Error("first TryBeginEnroll refused")
	}
	if flags.TryBeginEnroll() {
		t.Error("second TryBeginEnroll succeeded while held")
	}
	flags.EndEnroll()
	if !flags.TryBeginEnroll() {
		t.Error("TryBeginEnroll refused after EndEnroll")
	}
}
