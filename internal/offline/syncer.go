// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package offline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/metrics"
)

// Deliverer is the network delivery contract, identical to the sender
// worker's wire contract (backend.Client satisfies both).
type Deliverer interface {
	LogAttendance(ctx context.Context, employeeID, timestamp string, image []byte) error
}

// Syncer periodically drains the offline ledger head-first. It never
// advances past a failing head: the earliest-queued job is always the
// next one retried. Implements suture.Service.
type Syncer struct {
	store     *Store
	deliverer Deliverer
	online    func() bool
	awake     func() bool
	enrolling func() bool
	cfg       config.OfflineConfig
	logger    zerolog.Logger
}

// NewSyncer creates the sync worker. online is the connectivity signal
// (control-channel liveness); awake is the duty scheduler's flag, so a
// suspended device never touches the network; enrolling suppresses sync
// while the enrollment worker owns the device.
func NewSyncer(store *Store, deliverer Deliverer, online, awake, enrolling func() bool, cfg config.OfflineConfig, logger zerolog.Logger) *Syncer {
	return &Syncer{
		store:     store,
		deliverer: deliverer,
		online:    online,
		awake:     awake,
		enrolling: enrolling,
		cfg:       cfg,
		logger:    logger.With().Str("component", "offline-syncer").Logger(),
	}
}

// Serve waits out the boot grace delay, then retries the ledger on every
// tick until the context is canceled.
func (s *Syncer) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.InitialDelay):
	}

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Syncer) String() string {
	return "offline-syncer"
}

// syncOnce drains entries from the head until one fails or the ledger is
// empty. Skipped entirely while offline, asleep or enrolling.
func (s *Syncer) syncOnce(ctx context.Context) {
	if !s.online() || !s.awake() || s.enrolling() {
		return
	}

	for ctx.Err() == nil {
		entry, ok, err := s.store.Head()
		if err != nil {
			s.logger.Error().Err(err).Msg("ledger read failed")
			return
		}
		if !ok {
			return
		}

		image, err := os.ReadFile(entry.ImagePath)
		if errors.Is(err, os.ErrNotExist) {
			// Image gone but line present: the coupled lifecycle was
			// broken externally, the line is unprocessable.
			s.logger.Warn().Str("image", entry.ImagePath).Msg("ledger head references missing image, dropping")
			if err := s.store.RemoveHead(); err != nil {
				s.logger.Error().Err(err).Msg("ledger head removal failed")
				return
			}
			continue
		}
		if err != nil {
			s.logger.Error().Err(err).Str("image", entry.ImagePath).Msg("image read failed, retrying next period")
			return
		}

		if err := s.deliverer.LogAttendance(ctx, entry.EmployeeID, entry.Timestamp, image); err != nil {
			metrics.OfflineRetries.Inc()
			s.logger.Warn().Err(err).
				Str("employee", entry.EmployeeID).
				Msg("offline delivery failed, head retained")
			return
		}

		// Delivery confirmed: blob first, then the ledger line. A crash
		// in between leaves a missing-image head that the next pass
		// drops as unprocessable.
		if err := os.Remove(entry.ImagePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("image", entry.ImagePath).Msg("image cleanup failed")
		}
		if err := s.store.RemoveHead(); err != nil {
			s.logger.Error().Err(err).Msg("ledger head removal failed")
			return
		}

		metrics.OfflineDrained.Inc()
		s.logger.Info().
			Str("employee", entry.EmployeeID).
			Str("timestamp", entry.Timestamp).
			Msg("offline entry delivered")
	}
}
