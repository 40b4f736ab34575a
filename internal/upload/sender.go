// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/metrics"
)

// Deliverer is the network delivery contract (backend.Client satisfies it).
type Deliverer interface {
	LogAttendance(ctx context.Context, employeeID, timestamp string, image []byte) error
}

// OfflinePersister durably stores a job the network refused
// (offline.Store satisfies it).
type OfflinePersister interface {
	Persist(employeeID, timestamp string, image []byte) error
}

// Sender drains the queue one job at a time: scratch copy to disk,
// bounded delivery retries, then either success cleanup or handoff to
// the offline store. Implements suture.Service.
type Sender struct {
	queue     *Queue
	deliverer Deliverer
	offline   OfflinePersister
	cfg       config.UploadConfig
	logger    zerolog.Logger
}

// NewSender creates the sender worker.
func NewSender(queue *Queue, deliverer Deliverer, offline OfflinePersister, cfg config.UploadConfig, logger zerolog.Logger) *Sender {
	return &Sender{
		queue:     queue,
		deliverer: deliverer,
		offline:   offline,
		cfg:       cfg,
		logger:    logger.With().Str("component", "upload-sender").Logger(),
	}
}

// Serve processes jobs until the context is canceled. A job in flight
// when suspension hits is lost unless already persisted; the duty design
// accepts this bounded gap.
func (s *Sender) Serve(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("upload: create scratch dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-s.queue.Jobs():
			metrics.UploadQueueDepth.Set(float64(s.queue.Len()))
			s.handle(ctx, job)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Sender) String() string {
	return "upload-sender"
}

// handle drives one job to a terminal outcome. Exactly one of
// {delivered, persisted-offline, dropped-with-cause} holds afterward,
// and the image buffer is released exactly once.
func (s *Sender) handle(ctx context.Context, job *Job) {
	scratch := s.writeScratch(job)

	err := s.deliver(ctx, job)
	if err == nil {
		s.logger.Info().
			Str("job", job.ID).
			Str("employee", job.EmployeeID).
			Msg("attendance delivered")
		metrics.UploadOutcomes.WithLabelValues("delivered").Inc()
		s.finish(job, scratch)
		return
	}
	if ctx.Err() != nil {
		// Shutting down mid-job; scratch copy stays behind for the
		// operator, the in-memory job is the accepted loss.
		return
	}

	s.logger.Warn().Err(err).
		Str("job", job.ID).
		Int("attempts", s.cfg.RetryAttempts+1).
		Msg("delivery failed, moving job to offline store")

	if perr := s.offline.Persist(job.EmployeeID, job.Timestamp, job.Image); perr != nil {
		// Storage exhaustion is not retried in-process; the job is the
		// single casualty and the cause is logged.
		s.logger.Error().Err(perr).
			Str("job", job.ID).
			Msg("offline persist failed, dropping job")
		metrics.UploadOutcomes.WithLabelValues("dropped").Inc()
	} else {
		metrics.UploadOutcomes.WithLabelValues("offline").Inc()
	}
	s.finish(job, scratch)
}

// deliver attempts network delivery with a constant inter-attempt delay
// and a bounded attempt count.
func (s *Sender) deliver(ctx context.Context, job *Job) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(s.cfg.RetryDelay),
			uint64(s.cfg.RetryAttempts),
		),
		ctx,
	)
	return backoff.Retry(func() error {
		return s.deliverer.LogAttendance(ctx, job.EmployeeID, job.Timestamp, job.Image)
	}, policy)
}

// writeScratch persists a working copy so a crash mid-send leaves
// evidence on disk. Failure is tolerated; delivery proceeds without the
// crash guard.
func (s *Sender) writeScratch(job *Job) string {
	path := filepath.Join(s.cfg.ScratchDir, job.ID+".jpg")
	if err := os.WriteFile(path, job.Image, 0o644); err != nil {
		s.logger.Warn().Err(err).Str("job", job.ID).Msg("scratch copy failed")
		return ""
	}
	return path
}

// finish removes the scratch copy and releases the image buffer. Called
// exactly once per job on every terminal path.
func (s *Sender) finish(job *Job, scratch string) {
	if scratch != "" {
		if err := os.Remove(scratch); err != nil {
			s.logger.Warn().Err(err).Str("job", job.ID).Msg("scratch cleanup failed")
		}
	}
	job.Image = nil
}
