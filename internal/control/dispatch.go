// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package control

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/chamcong/kioskd/internal/config"
)

// Enroller starts enrollment sessions (enroll.Worker satisfies it).
type Enroller interface {
	Enroll(ctx context.Context, name string) error
}

// Restarter performs the orderly process restart.
type Restarter interface {
	Restart()
}

// Maintenance exposes the identity-database administration operations.
type Maintenance interface {
	ClearDatabase(ctx context.Context) error
	DumpDatabase(ctx context.Context) ([]string, error)
}

// SlotConfigurer applies a validated duty-slot replacement
// (duty.Scheduler satisfies it).
type SlotConfigurer interface {
	ReplaceSlots(slots []config.TimeSlot) error
}

// Dispatcher parses inbound control messages and routes them to the
// subsystem owners. Implements Handler.
//
// Handle never blocks the read loop: enrollment, the only long-running
// command, is backgrounded on its own goroutine and serialized by the
// enrollment worker itself.
type Dispatcher struct {
	enroller  Enroller
	restarter Restarter
	maint     Maintenance
	slots     SlotConfigurer
	acker     Acker
	wantSlots int
	logger    zerolog.Logger
}

// Acker mirrors enroll.Acker; the channel's Send satisfies both.
type Acker interface {
	Send(msg string) bool
}

// NewDispatcher wires the command router. wantSlots is the fixed duty
// slot count config_time updates must match.
func NewDispatcher(
	enroller Enroller,
	restarter Restarter,
	maint Maintenance,
	slots SlotConfigurer,
	acker Acker,
	wantSlots int,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		enroller:  enroller,
		restarter: restarter,
		maint:     maint,
		slots:     slots,
		acker:     acker,
		wantSlots: wantSlots,
		logger:    logger.With().Str("component", "dispatch").Logger(),
	}
}

// Handle implements Handler.
func (d *Dispatcher) Handle(ctx context.Context, msg string) {
	cmd, err := Parse(msg, d.wantSlots)
	if err != nil {
		d.logger.Warn().Err(err).Msg("control message rejected")
		return
	}

	switch cmd.Kind {
	case KindEnroll:
		d.logger.Info().Str("name", cmd.Name).Msg("enrollment requested")
		// The inbound ctx dies with the websocket session; a running
		// enrollment must survive a reconnect, its acks ride the send
		// buffer to the next session.
		ectx := context.WithoutCancel(ctx)
		go func() {
			if err := d.enroller.Enroll(ectx, cmd.Name); err != nil {
				d.logger.Warn().Err(err).Str("name", cmd.Name).Msg("enrollment failed")
			}
		}()

	case KindRestart:
		d.logger.Info().Msg("restart requested")
		d.restarter.Restart()

	case KindClearDB:
		if err := d.maint.ClearDatabase(ctx); err != nil {
			d.logger.Error().Err(err).Msg("identity database clear failed")
			return
		}
		d.logger.Info().Msg("identity database cleared")
		d.acker.Send("db_cleared")

	case KindDumpDB:
		names, err := d.maint.DumpDatabase(ctx)
		if err != nil {
			d.logger.Error().Err(err).Msg("identity database dump failed")
			return
		}
		d.logger.Info().Strs("names", names).Msg("identity database dumped")
		d.acker.Send("db_dumped")

	case KindConfigTime:
		if err := d.slots.ReplaceSlots(cmd.Slots); err != nil {
			d.logger.Error().Err(err).Msg("duty slot update failed")
			return
		}
		d.logger.Info().Int("slots", len(cmd.Slots)).Msg("duty slots replaced")
		d.acker.Send("config_success")
	}
}
