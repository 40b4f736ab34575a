// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package backend

import (
	"context"
	"errors"
	"time"

	"github.com/chamcong/kioskd/internal/sensor"
)

// ErrNotSupported is returned for identity-database operations the
// remote variant cannot perform locally; the database lives server-side.
var ErrNotSupported = errors.New("backend: operation not supported by remote recognizer")

// RemoteRecognizer adapts the AI endpoints to the sensor.Recognizer
// capability for the device variant without on-device recognition.
//
// The server applies its own match threshold and returns only a boolean
// verdict, so Similarity is reported as 1.0 on a match: the pipeline's
// similarity gate then passes and consistency voting still applies.
// Note the HTTP round-trip runs under the arbiter session like any
// recognizer invocation; its timeout is bounded by the client.
type RemoteRecognizer struct {
	client     *Client
	compressor sensor.Compressor
	now        func() time.Time
}

// NewRemoteRecognizer creates the adapter. now may be nil for time.Now.
func NewRemoteRecognizer(client *Client, compressor sensor.Compressor, now func() time.Time) *RemoteRecognizer {
	if now == nil {
		now = time.Now
	}
	return &RemoteRecognizer{client: client, compressor: compressor, now: now}
}

// Recognize implements sensor.Recognizer.
func (r *RemoteRecognizer) Recognize(ctx context.Context, frame *sensor.Frame, face sensor.FaceObservation) (sensor.Match, error) {
	jpeg, err := r.compressor.Compress(frame, face)
	if err != nil {
		return sensor.Match{}, err
	}
	result, err := r.client.Recognize(ctx, jpeg, r.timestamp(), false)
	if err != nil {
		return sensor.Match{}, err
	}
	if !result.Match || result.Name == "" {
		return sensor.Match{}, nil
	}
	return sensor.Match{Matched: true, Name: result.Name, Similarity: 1.0}, nil
}

// Enroll implements sensor.Recognizer.
func (r *RemoteRecognizer) Enroll(ctx context.Context, name string, frame *sensor.Frame, face sensor.FaceObservation) error {
	jpeg, err := r.compressor.Compress(frame, face)
	if err != nil {
		return err
	}
	return r.client.Enroll(ctx, name, jpeg, r.timestamp(), false)
}

// Clear implements sensor.Recognizer.
func (r *RemoteRecognizer) Clear(context.Context) error {
	return ErrNotSupported
}

// Dump implements sensor.Recognizer.
func (r *RemoteRecognizer) Dump(context.Context) ([]string, error) {
	return nil, ErrNotSupported
}

func (r *RemoteRecognizer) timestamp() string {
	return r.now().Format("2006-01-02T15:04:05")
}
