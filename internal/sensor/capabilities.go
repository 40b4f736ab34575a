// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package sensor defines the camera/detector capability interfaces and the
// arbiter that serializes all access to them.
//
// The camera, detector and recognizer share one physical resource (the
// sensor plus the on-device inference engine), so every invocation must
// happen under an exclusive Session obtained from the Arbiter. The
// capabilities themselves are external collaborators: kioskd consumes
// them as interfaces and never looks inside.
package sensor

import (
	"context"
	"time"
)

// Frame is one captured image. The pixel buffer is single-owner: whoever
// holds the Frame owns the buffer, and copies are explicit via Clone.
type Frame struct {
	Width      int
	Height     int
	Pixels     []byte
	CapturedAt time.Time
}

// Clone returns a deep copy of the frame. Used when a frame has to
// outlive the arbiter session that produced it (best-shot selection).
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	pixels := make([]byte, len(f.Pixels))
	copy(pixels, f.Pixels)
	return &Frame{
		Width:      f.Width,
		Height:     f.Height,
		Pixels:     pixels,
		CapturedAt: f.CapturedAt,
	}
}

// FaceObservation is one detection result. Produced once per capture
// cycle, immutable, discarded after use.
type FaceObservation struct {
	X          int
	Y          int
	Width      int
	Height     int
	Confidence float64
}

// Center returns the bounding-box center point.
func (o FaceObservation) Center() (int, int) {
	return o.X + o.Width/2, o.Y + o.Height/2
}

// Area returns the bounding-box area in pixels.
func (o FaceObservation) Area() int {
	return o.Width * o.Height
}

// Displacement returns the Chebyshev distance between this observation's
// center and prev's center. The stability counter treats a displacement
// within the configured pixel delta as "still the same, still face".
func (o FaceObservation) Displacement(prev FaceObservation) int {
	cx, cy := o.Center()
	px, py := prev.Center()
	dx := abs(cx - px)
	dy := abs(cy - py)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Match is a recognizer verdict for a single frame.
type Match struct {
	// Matched reports whether the recognizer found a known identity.
	Matched bool

	// Name is the identity name; empty when Matched is false.
	Name string

	// Similarity is the match score in [0,1].
	Similarity float64
}

// Camera captures frames from the image sensor.
type Camera interface {
	Capture(ctx context.Context) (*Frame, error)
	Close() error
}

// Detector locates the most prominent face in a frame.
// The boolean result is false when no face was detected.
type Detector interface {
	Detect(ctx context.Context, frame *Frame) (FaceObservation, bool, error)
}

// Recognizer matches and enrolls faces against the identity database.
type Recognizer interface {
	Recognize(ctx context.Context, frame *Frame, face FaceObservation) (Match, error)
	Enroll(ctx context.Context, name string, frame *Frame, face FaceObservation) error
	Clear(ctx context.Context) error
	Dump(ctx context.Context) ([]string, error)
}

// Compressor crops a face region out of a frame and encodes it to JPEG
// bytes. Pure CPU work, not arbiter-guarded; callers run it after
// releasing the session.
type Compressor interface {
	Compress(frame *Frame, face FaceObservation) ([]byte, error)
}
