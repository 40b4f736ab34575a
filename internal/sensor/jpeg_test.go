// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package sensor

import (
	"bytes"
	"image/jpeg"
	"testing"
	"time"
)

func rgbaFrame(w, h int) *Frame {
	pixels := make([]byte, w*h*4)
	for i := 3; i < len(pixels); i += 4 {
		pixels[i] = 0xff // opaque
	}
	return &Frame{Width: w, Height: h, Pixels: pixels, CapturedAt: time.Now()}
}

func TestJPEGCompressorProducesDecodableImage(t *testing.T) {
	comp := &JPEGCompressor{MarginPx: 10}
	frame := rgbaFrame(240, 240)
	face := FaceObservation{X: 80, Y: 80, Width: 60, Height: 60}

	out, err := comp.Compress(frame, face)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output not decodable jpeg: %v", err)
	}
	bounds := img.Bounds()
	// 60px box + 10px margin on each side.
	if bounds.Dx() != 80 || bounds.Dy() != 80 {
		t.Errorf("crop = %dx%d, want 80x80", bounds.Dx(), bounds.Dy())
	}
}

func TestJPEGCompressorClampsAtFrameEdge(t *testing.T) {
	comp := &JPEGCompressor{MarginPx: 20}
	frame := rgbaFrame(240, 240)
	// Face flush against the top-left corner; the margin must clamp.
	face := FaceObservation{X: 0, Y: 0, Width: 60, Height: 60}

	out, err := comp.Compress(frame, face)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output not decodable jpeg: %v", err)
	}
	if img.Bounds().Dx() != 80 || img.Bounds().Dy() != 80 {
		t.Errorf("clamped crop = %dx%d, want 80x80", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestJPEGCompressorRejectsBadInput(t *testing.T) {
	comp := &JPEGCompressor{}

	short := &Frame{Width: 240, Height: 240, Pixels: make([]byte, 16)}
	if _, err := comp.Compress(short, FaceObservation{X: 10, Y: 10, Width: 60, Height: 60}); err == nil {
		t.Error("undersized pixel buffer accepted")
	}

	frame := rgbaFrame(240, 240)
	offscreen := FaceObservation{X: 500, Y: 500, Width: 60, Height: 60}
	if _, err := comp.Compress(frame, offscreen); err == nil {
		t.Error("off-frame face box accepted")
	}
}
