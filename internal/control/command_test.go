// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package control

import (
	"testing"

	"github.com/chamcong/kioskd/internal/config"
)

func TestParsePlainCommands(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantName string
		wantErr  bool
	}{
		{name: "enroll", raw: "enroll:Nguyen Van A", wantKind: KindEnroll, wantName: "Nguyen Van A"},
		{name: "enroll trims whitespace", raw: "  enroll: alice \n", wantKind: KindEnroll, wantName: "alice"},
		{name: "enroll empty name", raw: "enroll:", wantErr: true},
		{name: "restart", raw: "restart", wantKind: KindRestart},
		{name: "clear_db", raw: "clear_db", wantKind: KindClearDB},
		{name: "delete_all alias", raw: "delete_all", wantKind: KindClearDB},
		{name: "dump_db", raw: "dump_db", wantKind: KindDumpDB},
		{name: "dump_faces alias", raw: "dump_faces", wantKind: KindDumpDB},
		{name: "unknown token", raw: "reboot", wantErr: true},
		{name: "empty message", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.raw, 3)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Parse(%q) accepted", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.raw, err)
			}
			if cmd.Kind != tt.wantKind {
				t.Errorf("kind = %d, want %d", cmd.Kind, tt.wantKind)
			}
			if cmd.Name != tt.wantName {
				t.Errorf("name = %q, want %q", cmd.Name, tt.wantName)
			}
		})
	}
}

func TestParseConfigTime(t *testing.T) {
	raw := `{"type":"config_time","data":[[6,30,8,0],[11,0,13,0],[17,30,21,0]]}`

	cmd, err := Parse(raw, 3)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cmd.Kind != KindConfigTime {
		t.Fatalf("kind = %d, want KindConfigTime", cmd.Kind)
	}
	want := []config.TimeSlot{
		{StartHour: 6, StartMin: 30, EndHour: 8, EndMin: 0},
		{StartHour: 11, StartMin: 0, EndHour: 13, EndMin: 0},
		{StartHour: 17, StartMin: 30, EndHour: 21, EndMin: 0},
	}
	for i, w := range want {
		if cmd.Slots[i] != w {
			t.Errorf("slot %d = %+v, want %+v", i, cmd.Slots[i], w)
		}
	}
}

func TestParseConfigTimeRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{
			name: "wrong slot count",
			raw:  `{"type":"config_time","data":[[6,30,8,0],[11,0,13,0]]}`,
		},
		{
			name: "unknown type",
			raw:  `{"type":"config_wifi","data":[]}`,
		},
		{
			name: "malformed json",
			raw:  `{"type":"config_time","data":[[6,30`,
		},
		{
			name: "end before start",
			raw:  `{"type":"config_time","data":[[8,0,7,0],[11,0,13,0],[17,0,21,0]]}`,
		},
		{
			name: "overlapping slots",
			raw:  `{"type":"config_time","data":[[7,0,12,0],[11,0,13,0],[17,0,21,0]]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.raw, 3); err == nil {
				t.Errorf("Parse(%q) accepted", tt.raw)
			}
		})
	}
}
