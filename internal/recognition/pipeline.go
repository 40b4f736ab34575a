// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package recognition implements the per-cycle recognition state
// machine: NoFace -> Scanning -> Stable -> Cooldown -> attempt.
//
// The machine converts noisy single-frame detector output into
// low-false-positive check-ins through four filters applied in order:
// a size gate, a consecutive-frame stability counter, a post-check-in
// cooldown, and consistency voting over a rolling window. Only a
// confirmed identity produces an upload job.
package recognition

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/metrics"
	"github.com/chamcong/kioskd/internal/sensor"
	"github.com/chamcong/kioskd/internal/state"
	"github.com/chamcong/kioskd/internal/upload"
)

// Pipeline is the continuous recognition worker. All mutable cycle state
// (stability counter, previous face, candidate votes, cooldown stamp) is
// owned by the single Serve goroutine; nothing here is shared.
// Implements suture.Service.
type Pipeline struct {
	arbiter    *sensor.Arbiter
	compressor sensor.Compressor
	queue      *upload.Queue
	flags      *state.Flags
	notifier   Notifier
	cfg        config.RecognitionConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger
	now        func() time.Time

	// Cycle state, single-goroutine.
	prevFace      sensor.FaceObservation
	havePrev      bool
	stableCount   int
	candidate     string
	votes         []time.Time
	lastConfirmed time.Time
}

// NewPipeline creates the recognition worker. now may be nil for
// time.Now (tests inject a fake clock).
func NewPipeline(
	arbiter *sensor.Arbiter,
	compressor sensor.Compressor,
	queue *upload.Queue,
	flags *state.Flags,
	notifier Notifier,
	cfg config.RecognitionConfig,
	logger zerolog.Logger,
	now func() time.Time,
) *Pipeline {
	if now == nil {
		now = time.Now
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Pipeline{
		arbiter:    arbiter,
		compressor: compressor,
		queue:      queue,
		flags:      flags,
		notifier:   notifier,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(cfg.AttemptInterval), 1),
		logger:     logger.With().Str("component", "recognition").Logger(),
		now:        now,
	}
}

// Serve runs capture cycles until the context is canceled. The pipeline
// idles while the duty scheduler has the device asleep or an enrollment
// session owns the sensor.
func (p *Pipeline) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.flags.Awake() || p.flags.Enrolling() {
			p.resetTracking()
			if err := wait(ctx, time.Second); err != nil {
				return err
			}
			continue
		}
		p.cycle(ctx)
		if err := wait(ctx, p.cfg.CycleInterval); err != nil {
			return err
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (p *Pipeline) String() string {
	return "recognition-pipeline"
}

// cycle runs one capture/detect/recognize pass. Every error in here is
// non-fatal by design: the cycle is skipped and the loop cadence bounds
// the retry rate.
func (p *Pipeline) cycle(ctx context.Context) {
	sess, err := p.arbiter.Acquire(ctx, p.cfg.AcquireTimeout)
	if err != nil {
		if errors.Is(err, sensor.ErrAcquireTimeout) {
			p.logger.Debug().Msg("sensor busy, skipping cycle")
		}
		return
	}
	defer sess.Release()

	frame, err := sess.Capture(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("capture failed")
		return
	}

	face, found, err := sess.Detect(ctx, frame)
	if err != nil {
		p.logger.Warn().Err(err).Msg("detection failed")
		return
	}
	if !found {
		p.resetTracking()
		return
	}
	p.notifier.FaceSeen(face)

	if face.Area() < p.cfg.MinFaceArea {
		// Too far away. Scanning state, stability restarts from zero.
		p.stableCount = 0
		p.havePrev = false
		p.notifier.RequireCloser()
		return
	}

	if p.havePrev && face.Displacement(p.prevFace) <= p.cfg.MaxDisplacementPx {
		p.stableCount++
	} else {
		p.stableCount = 1
	}
	p.prevFace = face
	p.havePrev = true

	if p.stableCount < p.cfg.StableFrames {
		return
	}

	now := p.now()
	if !p.lastConfirmed.IsZero() && now.Sub(p.lastConfirmed) < p.cfg.Cooldown {
		// Cooldown: keep the display live but never call the
		// recognizer, so one person cannot double check-in.
		return
	}

	if !p.limiter.AllowN(now, 1) {
		return
	}

	metrics.RecognitionAttempts.Inc()
	match, err := sess.Recognize(ctx, frame, face)
	if err != nil {
		p.logger.Warn().Err(err).Msg("recognizer call failed")
		return
	}
	if !match.Matched || match.Name == "" || match.Similarity < p.cfg.SimilarityThreshold {
		p.resetVotes()
		if match.Matched || match.Name != "" {
			// A weak match is treated as no candidate at all.
			p.logger.Debug().
				Str("name", match.Name).
				Float64("similarity", match.Similarity).
				Msg("match below threshold")
		} else {
			p.notifier.Stranger()
		}
		return
	}

	if !p.vote(match.Name, now) {
		return
	}

	p.confirm(ctx, sess, frame, face, match.Name, now)
}

// vote records one accepted recognizer verdict and reports whether the
// candidate reached confirmation: the same identity on at least
// VotesRequired calls inside the rolling VoteWindow. Votes falling out
// of the window are pruned; an identity change discards everything.
func (p *Pipeline) vote(name string, now time.Time) bool {
	if name != p.candidate {
		p.candidate = name
		p.votes = p.votes[:0]
	}

	p.votes = append(p.votes, now)
	cutoff := now.Add(-p.cfg.VoteWindow)
	kept := p.votes[:0]
	for _, v := range p.votes {
		if v.After(cutoff) || v.Equal(cutoff) {
			kept = append(kept, v)
		}
	}
	p.votes = kept

	return len(p.votes) >= p.cfg.VotesRequired
}

// confirm takes the best-shot burst, hands the winning frame to the
// upload queue and resets the voting and cooldown state.
func (p *Pipeline) confirm(ctx context.Context, sess *sensor.Session, frame *sensor.Frame, face sensor.FaceObservation, name string, now time.Time) {
	bestFrame, bestFace := p.bestShot(ctx, sess, frame, face)

	// The capture buffer belongs to the session; the copy is what
	// outlives it. Compression and queue handoff run without the
	// sensor lock.
	bestFrame = bestFrame.Clone()
	sess.Release()

	metrics.RecognitionsConfirmed.Inc()
	p.notifier.Greeting(name)
	p.lastConfirmed = now
	p.resetVotes()
	p.resetTracking()

	jpeg, err := p.compressor.Compress(bestFrame, bestFace)
	if err != nil {
		p.logger.Error().Err(err).Str("employee", name).Msg("compression failed, check-in image lost")
		metrics.UploadOutcomes.WithLabelValues("dropped").Inc()
		return
	}

	job := upload.NewJob(name, now, jpeg)
	if !p.queue.TryEnqueue(job) {
		p.logger.Error().Str("employee", name).Msg("upload queue full, dropping job")
		metrics.UploadOutcomes.WithLabelValues("dropped").Inc()
		return
	}

	p.logger.Info().
		Str("employee", name).
		Int("image_bytes", len(jpeg)).
		Msg("check-in confirmed")
}

// bestShot captures a short burst under the already-held session and
// returns the frame with the largest face area. The triggering frame is
// the fallback when the burst loses the face entirely.
func (p *Pipeline) bestShot(ctx context.Context, sess *sensor.Session, frame *sensor.Frame, face sensor.FaceObservation) (*sensor.Frame, sensor.FaceObservation) {
	bestFrame, bestFace := frame, face
	bestArea := face.Area()

	for i := 1; i < p.cfg.BurstFrames; i++ {
		f, err := sess.Capture(ctx)
		if err != nil {
			break
		}
		obs, found, err := sess.Detect(ctx, f)
		if err != nil || !found {
			continue
		}
		if obs.Area() > bestArea {
			bestFrame, bestFace, bestArea = f, obs, obs.Area()
		}
	}
	return bestFrame, bestFace
}

func (p *Pipeline) resetVotes() {
	p.candidate = ""
	p.votes = p.votes[:0]
}

func (p *Pipeline) resetTracking() {
	p.stableCount = 0
	p.havePrev = false
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
