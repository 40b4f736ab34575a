// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package sensor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// JPEGCompressor crops the face region (with margin) out of an RGBA
// frame and encodes it as JPEG. Frames are expected in RGBA order,
// 4 bytes per pixel, row stride Width*4.
type JPEGCompressor struct {
	// Quality is the JPEG quality (1-100). Zero means jpeg.DefaultQuality.
	Quality int

	// MarginPx widens the crop on every side so the upload shows more
	// than the bare bounding box.
	MarginPx int
}

// Compress implements Compressor.
func (c *JPEGCompressor) Compress(frame *Frame, face FaceObservation) ([]byte, error) {
	if frame == nil || len(frame.Pixels) < frame.Width*frame.Height*4 {
		return nil, fmt.Errorf("sensor: frame buffer too small for %dx%d", frame.Width, frame.Height)
	}

	x0 := clamp(face.X-c.MarginPx, 0, frame.Width)
	y0 := clamp(face.Y-c.MarginPx, 0, frame.Height)
	x1 := clamp(face.X+face.Width+c.MarginPx, 0, frame.Width)
	y1 := clamp(face.Y+face.Height+c.MarginPx, 0, frame.Height)
	if x1 <= x0 || y1 <= y0 {
		return nil, fmt.Errorf("sensor: face box %v outside %dx%d frame", face, frame.Width, frame.Height)
	}

	src := &image.RGBA{
		Pix:    frame.Pixels,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	crop := src.SubImage(image.Rect(x0, y0, x1, y1))

	quality := c.Quality
	if quality == 0 {
		quality = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("sensor: jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
