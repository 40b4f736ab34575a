// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestDefaultRecognitionTuning(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Recognition.MinFaceArea != 3025 {
		t.Errorf("MinFaceArea = %d, want 3025", cfg.Recognition.MinFaceArea)
	}
	if cfg.Recognition.SimilarityThreshold != 0.95 {
		t.Errorf("SimilarityThreshold = %v, want 0.95", cfg.Recognition.SimilarityThreshold)
	}
	if cfg.Recognition.VotesRequired != 3 {
		t.Errorf("VotesRequired = %d, want 3", cfg.Recognition.VotesRequired)
	}
	if cfg.Recognition.VoteWindow != 2*time.Second {
		t.Errorf("VoteWindow = %v, want 2s", cfg.Recognition.VoteWindow)
	}
	if cfg.Recognition.Cooldown != 10*time.Second {
		t.Errorf("Cooldown = %v, want 10s", cfg.Recognition.Cooldown)
	}
	if len(cfg.Duty.Slots) != 3 {
		t.Errorf("default duty slots = %d, want 3", len(cfg.Duty.Slots))
	}
}

func TestValidateSlots(t *testing.T) {
	tests := []struct {
		name    string
		slots   []TimeSlot
		wantErr bool
	}{
		{
			name: "chronological non-overlapping",
			slots: []TimeSlot{
				{StartHour: 7, EndHour: 8, EndMin: 15},
				{StartHour: 11, EndHour: 13},
			},
		},
		{
			name: "adjacent slots allowed",
			slots: []TimeSlot{
				{StartHour: 7, EndHour: 8},
				{StartHour: 8, EndHour: 9},
			},
		},
		{
			name: "end before start",
			slots: []TimeSlot{
				{StartHour: 8, EndHour: 7},
			},
			wantErr: true,
		},
		{
			name: "zero-length slot",
			slots: []TimeSlot{
				{StartHour: 8, StartMin: 30, EndHour: 8, EndMin: 30},
			},
			wantErr: true,
		},
		{
			name: "overlap",
			slots: []TimeSlot{
				{StartHour: 7, EndHour: 12},
				{StartHour: 11, EndHour: 13},
			},
			wantErr: true,
		},
		{
			name:  "empty table",
			slots: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlots(tt.slots)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateSlots accepted %+v", tt.slots)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateSlots rejected %+v: %v", tt.slots, err)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KIOSKD_SERVER_ADDRESS", "10.0.0.9:8443")
	t.Setenv("KIOSKD_COOLDOWN", "30s")
	t.Setenv("KIOSKD_VOTES_REQUIRED", "5")
	t.Setenv("LOG_LEVEL", "debug")
	// Stray environment noise must not leak into the configuration.
	t.Setenv("KIOSKD_BOGUS_KEY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != "10.0.0.9:8443" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.Recognition.Cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cfg.Recognition.Cooldown)
	}
	if cfg.Recognition.VotesRequired != 5 {
		t.Errorf("votes required = %d, want 5", cfg.Recognition.VotesRequired)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kioskd.yaml")
	yaml := `
server:
  address: "192.168.1.50:5000"
recognition:
  stable_frames: 5
duty:
  slots:
    - start_hour: 6
      start_min: 0
      end_hour: 9
      end_min: 0
    - start_hour: 16
      start_min: 30
      end_hour: 22
      end_min: 0
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Address != "192.168.1.50:5000" {
		t.Errorf("server address = %q", cfg.Server.Address)
	}
	if cfg.Recognition.StableFrames != 5 {
		t.Errorf("stable frames = %d, want 5", cfg.Recognition.StableFrames)
	}
	if len(cfg.Duty.Slots) != 2 || cfg.Duty.Slots[1].StartHour != 16 {
		t.Errorf("duty slots = %+v", cfg.Duty.Slots)
	}
	// Unset values keep their defaults.
	if cfg.Recognition.SimilarityThreshold != 0.95 {
		t.Errorf("similarity threshold lost its default: %v", cfg.Recognition.SimilarityThreshold)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("KIOSKD_SERVER_ADDRESS", "not a host port")

	if _, err := Load(); err == nil {
		t.Fatal("invalid server address accepted")
	}
}
