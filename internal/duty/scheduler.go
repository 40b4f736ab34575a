// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package duty decides when the kiosk is on duty. Outside the configured
// daily windows the scheduler suspends the device until the next window
// opens; attendance only happens during shift changes, so the hardware
// spends most of the day asleep.
package duty

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/state"
)

// PowerController performs the actual suspend. On hosts where suspend is
// unavailable the implementation may simply sleep the process.
type PowerController interface {
	// Suspend blocks for roughly d (modulo early wake) and returns when
	// the device is running again. A context cancellation aborts it.
	Suspend(ctx context.Context, d time.Duration) error
}

// Scheduler evaluates the duty windows, flips the shared awake flag, and
// orchestrates suspend/resume. Implements suture.Service.
//
// The slot list is the only mutable shared state; config_time updates
// replace it through ReplaceSlots while the evaluation loop reads it.
type Scheduler struct {
	store  *state.Store
	flags  *state.Flags
	power  PowerController
	held   func() bool
	onWake func()
	cfg    config.DutyConfig
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	slots []config.TimeSlot

	bootAt time.Time
}

// NewScheduler creates the duty scheduler. initial is the boot-time slot
// list (persisted copy when present, config defaults otherwise). held
// reports whether the operator hold button is pressed; onWake fires on
// every asleep-to-awake transition so the display can repaint. Both may
// be nil.
func NewScheduler(
	store *state.Store,
	flags *state.Flags,
	power PowerController,
	held func() bool,
	onWake func(),
	initial []config.TimeSlot,
	cfg config.DutyConfig,
	logger zerolog.Logger,
	now func() time.Time,
) *Scheduler {
	if held == nil {
		held = func() bool { return false }
	}
	if onWake == nil {
		onWake = func() {}
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		store:  store,
		flags:  flags,
		power:  power,
		held:   held,
		onWake: onWake,
		cfg:    cfg,
		logger: logger.With().Str("component", "duty").Logger(),
		now:    now,
		slots:  initial,
	}
}

// Slots returns a copy of the current slot list.
func (s *Scheduler) Slots() []config.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]config.TimeSlot, len(s.slots))
	copy(out, s.slots)
	return out
}

// ReplaceSlots installs a new slot list. Persistence comes first: if the
// state store write fails the in-memory schedule is untouched and the
// error propagates, so a config_time update is all-or-nothing.
func (s *Scheduler) ReplaceSlots(slots []config.TimeSlot) error {
	if err := config.ValidateSlots(slots); err != nil {
		return err
	}

	packed := make([][4]int, len(slots))
	for i, sl := range slots {
		packed[i] = [4]int{sl.StartHour, sl.StartMin, sl.EndHour, sl.EndMin}
	}
	if err := s.store.SaveDutySlots(packed); err != nil {
		return fmt.Errorf("duty: persist slots: %w", err)
	}

	s.mu.Lock()
	s.slots = slots
	s.mu.Unlock()

	s.logger.Info().Int("slots", len(slots)).Msg("duty schedule replaced")
	return nil
}

// Serve re-evaluates the duty decision on every tick until the context
// is canceled.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.bootAt = s.now()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Scheduler) String() string {
	return "duty-scheduler"
}

// evaluate runs one duty decision. The hold conditions (boot grace,
// enrollment in progress, operator hold, sub-minimum pause) keep the
// device awake outside a window; none of them ever put it to sleep
// inside one.
func (s *Scheduler) evaluate(ctx context.Context) {
	now := s.now()
	pause := SleepUntilNextSlot(now, s.Slots())

	if pause == 0 {
		if !s.flags.Awake() {
			s.flags.SetAwake(true)
			s.onWake()
			s.logger.Info().Msg("duty window open, device awake")
		}
		return
	}

	switch {
	case now.Sub(s.bootAt) < s.cfg.BootGrace:
		return
	case s.flags.Enrolling():
		return
	case s.held():
		return
	case pause < s.cfg.MinSleep:
		return
	}

	s.logger.Info().Dur("pause", pause).Msg("outside duty windows, suspending")
	s.flags.SetAwake(false)

	if err := s.power.Suspend(ctx, pause); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error().Err(err).Msg("suspend failed")
	}

	s.flags.SetAwake(true)
	s.onWake()
	s.logger.Info().Msg("device resumed")
}

// SleepUntilNextSlot returns how long the device may sleep from now, or
// zero when now falls inside a slot. Slot starts are inclusive and ends
// exclusive. With every slot behind the current time the pause wraps to
// the first slot of the next day.
func SleepUntilNextSlot(now time.Time, slots []config.TimeSlot) time.Duration {
	if len(slots) == 0 {
		return 0
	}

	nowSec := now.Hour()*3600 + now.Minute()*60 + now.Second()

	for _, sl := range slots {
		start := (sl.StartHour*60 + sl.StartMin) * 60
		end := (sl.EndHour*60 + sl.EndMin) * 60
		if nowSec >= start && nowSec < end {
			return 0
		}
		if nowSec < start {
			return time.Duration(start-nowSec) * time.Second
		}
	}

	const daySec = 24 * 3600
	first := (slots[0].StartHour*60 + slots[0].StartMin) * 60
	return time.Duration(daySec-nowSec+first) * time.Second
}
