// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package sensor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chamcong/kioskd/internal/metrics"
)

var (
	// ErrAcquireTimeout is returned when the camera/detector resource
	// could not be acquired within the caller's timeout. The caller must
	// skip its cycle; nothing was acquired and nothing needs release.
	ErrAcquireTimeout = errors.New("sensor: acquire timed out")

	// ErrSessionReleased is returned by Session methods invoked after
	// Release. It indicates a lifecycle bug in the calling worker.
	ErrSessionReleased = errors.New("sensor: session already released")

	// ErrArbiterClosed is returned once the arbiter has been shut down.
	ErrArbiterClosed = errors.New("sensor: arbiter closed")
)

// Devices bundles the exclusive-access capabilities behind the arbiter.
type Devices struct {
	Camera     Camera
	Detector   Detector
	Recognizer Recognizer
}

// Arbiter serializes access to the single camera/detector resource.
// Exactly one Session exists at a time; every capture, detection,
// recognition and identity-database operation is a Session method, so
// holding the handle is enforced by construction rather than convention.
type Arbiter struct {
	sem     chan struct{}
	devices Devices
	closed  atomic.Bool
}

// NewArbiter creates an arbiter guarding the given devices.
func NewArbiter(devices Devices) *Arbiter {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	return &Arbiter{sem: sem, devices: devices}
}

// Acquire blocks until the resource is free, the timeout elapses, or the
// context is canceled. On timeout it returns ErrAcquireTimeout and the
// caller abandons the cycle with no partial state.
func (a *Arbiter) Acquire(ctx context.Context, timeout time.Duration) (*Session, error) {
	if a.closed.Load() {
		return nil, ErrArbiterClosed
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-a.sem:
		if a.closed.Load() {
			a.sem <- struct{}{}
			return nil, ErrArbiterClosed
		}
		return &Session{arb: a}, nil
	case <-timer.C:
		metrics.ArbiterTimeouts.Inc()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the arbiter closed and shuts the camera down. It waits for
// the current holder, if any, to release first.
func (a *Arbiter) Close() error {
	a.closed.Store(true)
	<-a.sem
	defer func() { a.sem <- struct{}{} }()
	if a.devices.Camera != nil {
		return a.devices.Camera.Close()
	}
	return nil
}

// Session is the exclusive handle on the camera/detector resource.
// Release must be called on every exit path; it is idempotent.
type Session struct {
	arb      *Arbiter
	released atomic.Bool
	once     sync.Once
}

// Release returns the resource to the arbiter. Safe to call more than
// once and safe to defer alongside an explicit early call.
func (s *Session) Release() {
	s.once.Do(func() {
		s.released.Store(true)
		s.arb.sem <- struct{}{}
	})
}

func (s *Session) guard() error {
	if s.released.Load() {
		return ErrSessionReleased
	}
	return nil
}

// Capture grabs one frame from the camera.
func (s *Session) Capture(ctx context.Context) (*Frame, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.arb.devices.Camera.Capture(ctx)
}

// Detect runs face detection on a frame.
func (s *Session) Detect(ctx context.Context, frame *Frame) (FaceObservation, bool, error) {
	if err := s.guard(); err != nil {
		return FaceObservation{}, false, err
	}
	return s.arb.devices.Detector.Detect(ctx, frame)
}

// Recognize runs the recognizer against a detected face.
func (s *Session) Recognize(ctx context.Context, frame *Frame, face FaceObservation) (Match, error) {
	if err := s.guard(); err != nil {
		return Match{}, err
	}
	return s.arb.devices.Recognizer.Recognize(ctx, frame, face)
}

// EnrollSample submits one enrollment sample for the named identity.
func (s *Session) EnrollSample(ctx context.Context, name string, frame *Frame, face FaceObservation) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.arb.devices.Recognizer.Enroll(ctx, name, frame, face)
}

// ClearDatabase wipes the identity database.
func (s *Session) ClearDatabase(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.arb.devices.Recognizer.Clear(ctx)
}

// DumpDatabase lists the enrolled identity names.
func (s *Session) DumpDatabase(ctx context.Context) ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.arb.devices.Recognizer.Dump(ctx)
}
