// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package enroll implements the interactive enrollment session. Unlike
// the continuous recognition pipeline this worker is ephemeral: a
// control-channel command starts one session, the session collects its
// samples and reports back, and the worker goroutine exits.
package enroll

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/metrics"
	"github.com/chamcong/kioskd/internal/sensor"
	"github.com/chamcong/kioskd/internal/state"
)

// ErrBusy is returned when an enrollment session is already running.
// Sessions never queue; the operator retries after the current one ends.
var ErrBusy = errors.New("enroll: session already in progress")

// Acker carries progress messages back over the control channel.
// control.Channel satisfies it.
type Acker interface {
	Send(msg string) bool
}

// Worker runs enrollment sessions. A session suspends the recognition
// pipeline via the shared enrolling flag, collects samples one by one
// under short-lived arbiter sessions, and acks progress after every
// sample.
type Worker struct {
	arbiter *sensor.Arbiter
	flags   *state.Flags
	acker   Acker
	cfg     config.EnrollConfig
	logger  zerolog.Logger
}

// NewWorker creates the enrollment worker.
func NewWorker(arbiter *sensor.Arbiter, flags *state.Flags, acker Acker, cfg config.EnrollConfig, logger zerolog.Logger) *Worker {
	return &Worker{
		arbiter: arbiter,
		flags:   flags,
		acker:   acker,
		cfg:     cfg,
		logger:  logger.With().Str("component", "enroll").Logger(),
	}
}

// Enroll runs one full enrollment session for name. It returns ErrBusy
// without side effects when a session is already active. The enrolling
// flag is guaranteed clear on return, whatever the outcome.
func (w *Worker) Enroll(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("enroll: empty identity name")
	}
	if !w.flags.TryBeginEnroll() {
		metrics.EnrollSessions.WithLabelValues("busy").Inc()
		return ErrBusy
	}
	defer w.flags.EndEnroll()

	w.logger.Info().Str("name", name).Int("samples", w.cfg.Samples).Msg("enrollment session started")

	collected := 0
	for i := 0; i < w.cfg.Samples; i++ {
		if err := ctx.Err(); err != nil {
			metrics.EnrollSessions.WithLabelValues("aborted").Inc()
			return err
		}
		if err := w.collectSample(ctx, name); err != nil {
			w.logger.Warn().Err(err).
				Str("name", name).
				Int("sample", i+1).
				Msg("sample not collected")
		} else {
			collected++
		}
		// Progress goes out after every sample; a failed one reports the
		// unchanged count so the operator sees the session is alive.
		w.acker.Send(fmt.Sprintf("progress:%s:%d/%d", name, collected, w.cfg.Samples))
	}

	w.acker.Send(fmt.Sprintf("enroll_done:%s:%d/%d", name, collected, w.cfg.Samples))

	ratio := float64(collected) / float64(w.cfg.Samples)
	if ratio < w.cfg.MinSuccessRatio {
		metrics.EnrollSessions.WithLabelValues("failed").Inc()
		w.logger.Warn().
			Str("name", name).
			Int("collected", collected).
			Float64("ratio", ratio).
			Msg("enrollment below success ratio")
		return fmt.Errorf("enroll: only %d/%d samples collected for %s", collected, w.cfg.Samples, name)
	}

	metrics.EnrollSessions.WithLabelValues("success").Inc()
	w.logger.Info().
		Str("name", name).
		Int("collected", collected).
		Msg("enrollment session complete")
	return nil
}

// collectSample waits for one stable, close-enough face and submits it to
// the recognizer. The whole wait runs under a single arbiter session so
// the frames feeding the stability counter come from an uninterrupted
// stream. SampleTimeout bounds the wait; a person who walks away costs
// one sample, not the session.
func (w *Worker) collectSample(ctx context.Context, name string) error {
	sctx, cancel := context.WithTimeout(ctx, w.cfg.SampleTimeout)
	defer cancel()

	sess, err := w.arbiter.Acquire(sctx, w.cfg.SampleTimeout)
	if err != nil {
		return err
	}
	defer sess.Release()

	var (
		prev     sensor.FaceObservation
		havePrev bool
		stable   int
	)
	for {
		if err := sctx.Err(); err != nil {
			return fmt.Errorf("enroll: sample timed out: %w", err)
		}

		frame, err := sess.Capture(sctx)
		if err != nil {
			return err
		}
		face, found, err := sess.Detect(sctx, frame)
		if err != nil {
			return err
		}
		if !found || face.Area() < w.cfg.MinFaceArea {
			stable = 0
			havePrev = false
			continue
		}

		if havePrev && face.Displacement(prev) <= maxEnrollDisplacementPx {
			stable++
		} else {
			stable = 1
		}
		prev = face
		havePrev = true

		if stable < w.cfg.StableFrames {
			continue
		}

		return sess.EnrollSample(sctx, name, frame, face)
	}
}

// maxEnrollDisplacementPx mirrors the recognition pipeline's stability
// delta. Enrollment wants the same "holding still" criterion.
const maxEnrollDisplacementPx = 5
