// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package state

import "sync/atomic"

// Flags is the shared runtime state read by multiple workers.
//
// Write ownership is strict: Awake is written only by the duty
// scheduler, Enrolling only by the enrollment path (dispatcher/worker).
// Readers tolerate slight staleness; the flags are advisory
// (skip-a-cycle), not safety-critical. The arbiter, not these flags,
// guarantees exclusive hardware access.
type Flags struct {
	awake     atomic.Bool
	enrolling atomic.Bool
}

// NewFlags returns flags with the device considered awake.
func NewFlags() *Flags {
	f := &Flags{}
	f.awake.Store(true)
	return f
}

// Awake reports whether the duty scheduler wants workers running.
func (f *Flags) Awake() bool { return f.awake.Load() }

// SetAwake is called by the duty scheduler only.
func (f *Flags) SetAwake(v bool) { f.awake.Store(v) }

// Enrolling reports whether an enrollment session is in progress.
func (f *Flags) Enrolling() bool { return f.enrolling.Load() }

// SetEnrolling marks an enrollment session. CompareAndSwap semantics are
// used by the dispatcher so two enroll commands cannot race into two
// concurrent workers.
func (f *Flags) SetEnrolling(v bool) { f.enrolling.Store(v) }

// TryBeginEnroll atomically claims the enrollment flag. Returns false if
// an enrollment is already running.
func (f *Flags) TryBeginEnroll() bool {
	return f.enrolling.CompareAndSwap(false, true)
}

// EndEnroll releases the enrollment flag.
func (f *Flags) EndEnroll() { f.enrolling.Store(false) }
