// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package sensor

import (
	"context"
	"time"
)

// SimCamera produces flat gray RGBA frames. It stands in for the
// hardware camera on bench setups with no sensor attached, so the rest
// of the daemon can run end to end.
type SimCamera struct {
	Width  int
	Height int
}

// Capture implements Camera.
func (c *SimCamera) Capture(context.Context) (*Frame, error) {
	w, h := c.Width, c.Height
	if w == 0 {
		w = 240
	}
	if h == 0 {
		h = 240
	}
	pixels := make([]byte, w*h*4)
	for i := range pixels {
		pixels[i] = 0x80
	}
	return &Frame{Width: w, Height: h, Pixels: pixels, CapturedAt: time.Now()}, nil
}

// Close implements Camera.
func (c *SimCamera) Close() error { return nil }

// SimDetector never detects a face; the pipeline idles in NoFace.
type SimDetector struct{}

// Detect implements Detector.
func (SimDetector) Detect(context.Context, *Frame) (FaceObservation, bool, error) {
	return FaceObservation{}, false, nil
}
