// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package config provides layered configuration for kioskd.
//
// Configuration is loaded via Koanf v2 with three layers (highest wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables
//
// Duty slots configured here are only the factory defaults; the copy
// persisted in the state store (written by the config_time command)
// takes precedence at boot.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the kiosk firmware core.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Recognition RecognitionConfig `koanf:"recognition"`
	Enroll      EnrollConfig      `koanf:"enroll"`
	Upload      UploadConfig      `koanf:"upload"`
	Offline     OfflineConfig     `koanf:"offline"`
	Duty        DutyConfig        `koanf:"duty"`
	Control     ControlConfig     `koanf:"control"`
	State       StateConfig       `koanf:"state"`
	Debug       DebugConfig       `koanf:"debug"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig identifies the attendance backend.
type ServerConfig struct {
	// Address is the backend host:port. A value persisted in the state
	// store (from provisioning) overrides this default.
	Address string `koanf:"address" validate:"required,hostname_port"`

	// Timeout bounds every HTTP round-trip to the backend.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// RecognitionConfig tunes the recognition state machine.
type RecognitionConfig struct {
	// CycleInterval is the idle delay between capture cycles.
	CycleInterval time.Duration `koanf:"cycle_interval" validate:"gt=0"`

	// AcquireTimeout bounds waiting for the camera/detector resource.
	// On expiry the cycle is skipped with no side effects.
	AcquireTimeout time.Duration `koanf:"acquire_timeout" validate:"gt=0"`

	// MinFaceArea is the size gate in pixels^2; smaller detections ask
	// the person to step closer instead of attempting recognition.
	MinFaceArea int `koanf:"min_face_area" validate:"gt=0"`

	// MaxDisplacementPx is the largest center-point movement between
	// consecutive frames still counted toward stability.
	MaxDisplacementPx int `koanf:"max_displacement_px" validate:"gt=0"`

	// StableFrames is the number of consecutive low-displacement frames
	// required before a detection is treated as non-transient.
	StableFrames int `koanf:"stable_frames" validate:"gt=0"`

	// Cooldown suppresses repeat confirmations after a check-in.
	Cooldown time.Duration `koanf:"cooldown" validate:"gt=0"`

	// AttemptInterval rate-limits invocations of the recognizer.
	AttemptInterval time.Duration `koanf:"attempt_interval" validate:"gt=0"`

	// SimilarityThreshold is the minimum accepted match similarity.
	SimilarityThreshold float64 `koanf:"similarity_threshold" validate:"gt=0,lte=1"`

	// VotesRequired and VoteWindow define consistency voting: the same
	// identity must be returned VotesRequired times inside a rolling
	// VoteWindow before it is confirmed.
	VotesRequired int           `koanf:"votes_required" validate:"gt=0"`
	VoteWindow    time.Duration `koanf:"vote_window" validate:"gt=0"`

	// BurstFrames is the size of the best-shot burst taken on a
	// confirmed identity.
	BurstFrames int `koanf:"burst_frames" validate:"gt=0"`
}

// EnrollConfig tunes the enrollment worker. The sample count and the
// required success ratio diverged across firmware revisions, so both are
// configuration rather than constants.
type EnrollConfig struct {
	Samples         int           `koanf:"samples" validate:"gt=0"`
	SampleTimeout   time.Duration `koanf:"sample_timeout" validate:"gt=0"`
	MinSuccessRatio float64       `koanf:"min_success_ratio" validate:"gt=0,lte=1"`
	MinFaceArea     int           `koanf:"min_face_area" validate:"gt=0"`
	StableFrames    int           `koanf:"stable_frames" validate:"gt=0"`
}

// UploadConfig tunes the in-memory job queue and the sender worker.
type UploadConfig struct {
	QueueSize     int           `koanf:"queue_size" validate:"gt=0"`
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=0"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"gt=0"`
	ScratchDir    string        `koanf:"scratch_dir" validate:"required"`
}

// OfflineConfig tunes the durable offline store and its sync worker.
type OfflineConfig struct {
	Dir          string        `koanf:"dir" validate:"required"`
	SyncInterval time.Duration `koanf:"sync_interval" validate:"gt=0"`
	InitialDelay time.Duration `koanf:"initial_delay" validate:"gte=0"`
}

// TimeSlot is one configured daily active window.
type TimeSlot struct {
	StartHour int `koanf:"start_hour" validate:"gte=0,lte=23"`
	StartMin  int `koanf:"start_min" validate:"gte=0,lte=59"`
	EndHour   int `koanf:"end_hour" validate:"gte=0,lte=23"`
	EndMin    int `koanf:"end_min" validate:"gte=0,lte=59"`
}

// DutyConfig tunes the duty-cycle scheduler.
type DutyConfig struct {
	// Slots are the factory-default active windows. The list length is
	// the fixed slot count the config_time command must match.
	Slots []TimeSlot `koanf:"slots" validate:"required,min=1,dive"`

	// CheckInterval is how often the awake decision is re-evaluated.
	CheckInterval time.Duration `koanf:"check_interval" validate:"gt=0"`

	// BootGrace prevents sleeping right after power-on, before the
	// device had a chance to connect and drain offline data.
	BootGrace time.Duration `koanf:"boot_grace" validate:"gte=0"`

	// MinSleep is the smallest pause worth a suspend round-trip.
	MinSleep time.Duration `koanf:"min_sleep" validate:"gt=0"`
}

// ControlConfig tunes the websocket control channel.
type ControlConfig struct {
	Path              string        `koanf:"path" validate:"required"`
	ReconnectInterval time.Duration `koanf:"reconnect_interval" validate:"gt=0"`
	HandshakeTimeout  time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	SendBuffer        int           `koanf:"send_buffer" validate:"gt=0"`
}

// StateConfig locates the persisted device state (BadgerDB).
type StateConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// DebugConfig tunes the loopback metrics/health listener.
type DebugConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr" validate:"required_if=Enabled true"`
}

// LoggingConfig mirrors logging.Config for the config file/env layer.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all factory defaults. The duty
// slots match the shipped three-shift schedule.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "192.168.137.1:5000",
			Timeout: 8 * time.Second,
		},
		Recognition: RecognitionConfig{
			CycleInterval:       50 * time.Millisecond,
			AcquireTimeout:      500 * time.Millisecond,
			MinFaceArea:         3025, // 55x55 px at the 240x240 face resolution
			MaxDisplacementPx:   5,
			StableFrames:        3,
			Cooldown:            10 * time.Second,
			AttemptInterval:     300 * time.Millisecond,
			SimilarityThreshold: 0.95,
			VotesRequired:       3,
			VoteWindow:          2 * time.Second,
			BurstFrames:         3,
		},
		Enroll: EnrollConfig{
			Samples:         5,
			SampleTimeout:   15 * time.Second,
			MinSuccessRatio: 0.70,
			MinFaceArea:     3025,
			StableFrames:    3,
		},
		Upload: UploadConfig{
			QueueSize:     8,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			ScratchDir:    "/var/lib/kioskd/scratch",
		},
		Offline: OfflineConfig{
			Dir:          "/var/lib/kioskd/offline",
			SyncInterval: 10 * time.Second,
			InitialDelay: 30 * time.Second,
		},
		Duty: DutyConfig{
			Slots: []TimeSlot{
				{StartHour: 7, StartMin: 0, EndHour: 8, EndMin: 15},
				{StartHour: 11, StartMin: 0, EndHour: 13, EndMin: 0},
				{StartHour: 17, StartMin: 0, EndHour: 21, EndMin: 0},
			},
			CheckInterval: time.Minute,
			BootGrace:     time.Minute,
			MinSleep:      time.Minute,
		},
		Control: ControlConfig{
			Path:              "/ws",
			ReconnectInterval: 5 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			SendBuffer:        32,
		},
		State: StateConfig{
			Path: "/var/lib/kioskd/state",
		},
		Debug: DebugConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks struct tags plus the cross-field slot invariants.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return ValidateSlots(c.Duty.Slots)
}

// ValidateSlots enforces that slots are chronological and non-overlapping.
// The scheduler resolves overlap by lowest index, but overlapping
// configuration is almost always operator error, so it is rejected here
// and on config_time updates.
func ValidateSlots(slots []TimeSlot) error {
	prevEnd := -1
	for i, s := range slots {
		start := s.StartHour*60 + s.StartMin
		end := s.EndHour*60 + s.EndMin
		if end <= start {
			return fmt.Errorf("duty slot %d: end %02d:%02d not after start %02d:%02d",
				i, s.EndHour, s.EndMin, s.StartHour, s.StartMin)
		}
		if start < prevEnd {
			return fmt.Errorf("duty slot %d overlaps slot %d", i, i-1)
		}
		prevEnd = end
	}
	return nil
}
