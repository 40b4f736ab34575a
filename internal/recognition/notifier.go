// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package recognition

import "github.com/chamcong/kioskd/internal/sensor"

// Notifier receives user-facing pipeline events. Display rendering is an
// external collaborator; the pipeline only reports what happened.
type Notifier interface {
	// FaceSeen fires every cycle a face is detected, with its box.
	FaceSeen(face sensor.FaceObservation)

	// RequireCloser fires when the face failed the size gate.
	RequireCloser()

	// Greeting fires on a confirmed identity.
	Greeting(name string)

	// Stranger fires when the recognizer explicitly found no match.
	Stranger()
}

// NopNotifier discards all events. Useful headless and in tests.
type NopNotifier struct{}

// FaceSeen implements Notifier.
func (NopNotifier) FaceSeen(sensor.FaceObservation) {}

// RequireCloser implements Notifier.
func (NopNotifier) RequireCloser() {}

// Greeting implements Notifier.
func (NopNotifier) Greeting(string) {}

// Stranger implements Notifier.
func (NopNotifier) Stranger() {}
