// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package control

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/chamcong/kioskd/internal/config"
)

// Kind discriminates parsed control commands.
type Kind int

const (
	// KindEnroll starts an enrollment session for Command.Name.
	KindEnroll Kind = iota

	// KindRestart requests an orderly process restart.
	KindRestart

	// KindClearDB wipes the identity database.
	KindClearDB

	// KindDumpDB lists the enrolled identity names.
	KindDumpDB

	// KindConfigTime replaces the duty slots with Command.Slots.
	KindConfigTime
)

// Command is one parsed control message.
type Command struct {
	Kind  Kind
	Name  string
	Slots []config.TimeSlot
}

// configTimeEnvelope is the JSON shape of the slot-update message. Each
// data row is [startHour, startMin, endHour, endMin].
type configTimeEnvelope struct {
	Type string   `json:"type"`
	Data [][4]int `json:"data"`
}

// Parse decodes one inbound text message. Plain-token commands come
// first; anything opening with '{' is treated as a JSON envelope.
// wantSlots is the fixed slot count a config_time update must match
// exactly; a mismatched row count is rejected without touching the
// current schedule.
func Parse(raw string, wantSlots int) (Command, error) {
	msg := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(msg, "enroll:"):
		name := strings.TrimSpace(strings.TrimPrefix(msg, "enroll:"))
		if name == "" {
			return Command{}, fmt.Errorf("control: enroll command with empty name")
		}
		return Command{Kind: KindEnroll, Name: name}, nil

	case msg == "restart":
		return Command{Kind: KindRestart}, nil

	case msg == "clear_db" || msg == "delete_all":
		return Command{Kind: KindClearDB}, nil

	case msg == "dump_db" || msg == "dump_faces":
		return Command{Kind: KindDumpDB}, nil

	case strings.HasPrefix(msg, "{"):
		return parseEnvelope(msg, wantSlots)
	}

	return Command{}, fmt.Errorf("control: unknown command %q", msg)
}

func parseEnvelope(msg string, wantSlots int) (Command, error) {
	var env configTimeEnvelope
	if err := json.Unmarshal([]byte(msg), &env); err != nil {
		return Command{}, fmt.Errorf("control: malformed json command: %w", err)
	}
	if env.Type != "config_time" {
		return Command{}, fmt.Errorf("control: unknown json command type %q", env.Type)
	}
	if len(env.Data) != wantSlots {
		return Command{}, fmt.Errorf("control: config_time wants %d slots, got %d", wantSlots, len(env.Data))
	}

	slots := make([]config.TimeSlot, len(env.Data))
	for i, row := range env.Data {
		slots[i] = config.TimeSlot{
			StartHour: row[0],
			StartMin:  row[1],
			EndHour:   row[2],
			EndMin:    row[3],
		}
	}
	if err := config.ValidateSlots(slots); err != nil {
		return Command{}, fmt.Errorf("control: config_time rejected: %w", err)
	}
	return Command{Kind: KindConfigTime, Slots: slots}, nil
}
