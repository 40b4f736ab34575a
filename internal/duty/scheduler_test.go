// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package duty

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/logging"
	"github.com/chamcong/kioskd/internal/state"
)

func shiftSlots() []config.TimeSlot {
	return []config.TimeSlot{
		{StartHour: 7, StartMin: 0, EndHour: 8, EndMin: 15},
		{StartHour: 11, StartMin: 0, EndHour: 13, EndMin: 0},
		{StartHour: 17, StartMin: 0, EndHour: 21, EndMin: 0},
	}
}

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 3, 2, hour, min, sec, 0, time.Local)
}

func TestSleepUntilNextSlot(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{
			name: "between morning and midday slots",
			now:  at(9, 0, 0),
			want: 2 * time.Hour,
		},
		{
			name: "inside morning slot",
			now:  at(7, 30, 0),
			want: 0,
		},
		{
			name: "slot start is inclusive",
			now:  at(7, 0, 0),
			want: 0,
		},
		{
			name: "slot end is exclusive",
			now:  at(8, 15, 0),
			want: 2*time.Hour + 45*time.Minute,
		},
		{
			name: "one second before slot end",
			now:  at(12, 59, 59),
			want: 0,
		},
		{
			name: "after last slot wraps to next day",
			now:  at(22, 0, 0),
			want: 9 * time.Hour,
		},
		{
			name: "before first slot",
			now:  at(6, 30, 0),
			want: 30 * time.Minute,
		},
		{
			name: "midnight",
			now:  at(0, 0, 0),
			want: 7 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SleepUntilNextSlot(tt.now, shiftSlots())
			if got != tt.want {
				t.Errorf("SleepUntilNextSlot(%s) = %v, want %v", tt.now.Format("15:04:05"), got, tt.want)
			}
		})
	}
}

func TestSleepUntilNextSlotNoSlots(t *testing.T) {
	if got := SleepUntilNextSlot(at(9, 0, 0), nil); got != 0 {
		t.Errorf("empty slot table should never sleep, got %v", got)
	}
}

type blockingSuspender struct {
	mu       sync.Mutex
	suspends []time.Duration
}

func (s *blockingSuspender) Suspend(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspends = append(s.suspends, d)
	return nil
}

func newTestScheduler(t *testing.T, held func() bool, now func() time.Time) (*Scheduler, *state.Store, *blockingSuspender, *state.Flags) {
	t.Helper()
	store, err := state.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	flags := state.NewFlags()
	power := &blockingSuspender{}
	cfg := config.DutyConfig{
		Slots:         shiftSlots(),
		CheckInterval: time.Minute,
		BootGrace:     time.Minute,
		MinSleep:      time.Minute,
	}
	sched := NewScheduler(store, flags, power, held, nil, shiftSlots(), cfg, logging.NewTestLogger(schedTestWriter{t}), now)
	return sched, store, power, flags
}

type schedTestWriter struct{ t *testing.T }

func (w schedTestWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestEvaluateSuspendsOutsideSlots(t *testing.T) {
	sched, _, power, flags := newTestScheduler(t, nil, func() time.Time { return at(9, 0, 0) })
	sched.bootAt = at(7, 0, 0) // past boot grace

	sched.evaluate(context.Background())

	power.mu.Lock()
	defer power.mu.Unlock()
	if len(power.suspends) != 1 {
		t.Fatalf("expected 1 suspend, got %d", len(power.suspends))
	}
	if power.suspends[0] != 2*time.Hour {
		t.Errorf("suspend duration = %v, want 2h", power.suspends[0])
	}
	if !flags.Awake() {
		t.Error("device must be awake again after suspend returns")
	}
}

func TestEvaluateHoldConditions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(sched *Scheduler, flags *state.Flags)
		held  bool
	}{
		{
			name: "boot grace holds the device awake",
			setup: func(sched *Scheduler, _ *state.Flags) {
				sched.bootAt = at(8, 59, 30) // 30s before now
			},
		},
		{
			name: "enrollment in progress holds the device awake",
			setup: func(sched *Scheduler, flags *state.Flags) {
				sched.bootAt = at(7, 0, 0)
				flags.TryBeginEnroll()
			},
		},
		{
			name: "operator hold button holds the device awake",
			setup: func(sched *Scheduler, _ *state.Flags) {
				sched.bootAt = at(7, 0, 0)
			},
			held: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			held := func() bool { return tt.held }
			sched, _, power, flags := newTestScheduler(t, held, func() time.Time { return at(9, 0, 0) })
			tt.setup(sched, flags)

			sched.evaluate(context.Background())

			power.mu.Lock()
			defer power.mu.Unlock()
			if len(power.suspends) != 0 {
				t.Errorf("device suspended despite hold condition")
			}
			if !flags.Awake() {
				t.Error("device marked asleep despite hold condition")
			}
		})
	}
}

func TestEvaluateSkipsShortPauses(t *testing.T) {
	// 30s before the morning slot: the pause is below MinSleep.
	sched, _, power, _ := newTestScheduler(t, nil, func() time.Time { return at(6, 59, 30) })
	sched.bootAt = at(5, 0, 0)

	sched.evaluate(context.Background())

	power.mu.Lock()
	defer power.mu.Unlock()
	if len(power.suspends) != 0 {
		t.Errorf("suspended for a sub-minimum pause")
	}
}

func TestEvaluateWakesInsideSlot(t *testing.T) {
	sched, _, _, flags := newTestScheduler(t, nil, func() time.Time { return at(7, 30, 0) })
	sched.bootAt = at(5, 0, 0)

	woke := false
	sched.onWake = func() { woke = true }
	flags.SetAwake(false)

	sched.evaluate(context.Background())

	if !flags.Awake() {
		t.Error("device still asleep inside a duty window")
	}
	if !woke {
		t.Error("wake hook not fired on asleep-to-awake transition")
	}
}

func TestReplaceSlotsPersists(t *testing.T) {
	sched, store, _, _ := newTestScheduler(t, nil, nil)

	next := []config.TimeSlot{
		{StartHour: 6, StartMin: 30, EndHour: 8, EndMin: 0},
		{StartHour: 12, StartMin: 0, EndHour: 13, EndMin: 30},
		{StartHour: 18, StartMin: 0, EndHour: 22, EndMin: 0},
	}
	if err := sched.ReplaceSlots(next); err != nil {
		t.Fatalf("ReplaceSlots failed: %v", err)
	}

	got := sched.Slots()
	if len(got) != 3 || got[0] != next[0] || got[2] != next[2] {
		t.Errorf("in-memory slots not replaced: %+v", got)
	}

	quads, err := store.LoadDutySlots()
	if err != nil {
		t.Fatalf("persisted slots unreadable: %v", err)
	}
	if len(quads) != 3 || quads[1] != [4]int{12, 0, 13, 30} {
		t.Errorf("persisted slots wrong: %v", quads)
	}
}

func TestReplaceSlotsRejectsInvalid(t *testing.T) {
	sched, store, _, _ := newTestScheduler(t, nil, nil)
	before := sched.Slots()

	bad := []config.TimeSlot{
		{StartHour: 8, StartMin: 0, EndHour: 7, EndMin: 0}, // end before start
	}
	if err := sched.ReplaceSlots(bad); err == nil {
		t.Fatal("invalid slot table accepted")
	}

	after := sched.Slots()
	if len(after) != len(before) || after[0] != before[0] {
		t.Error("rejected update still modified the schedule")
	}
	if _, err := store.LoadDutySlots(); !errors.Is(err, state.ErrNotFound) {
		t.Error("rejected update reached the state store")
	}
}
