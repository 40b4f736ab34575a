// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"kioskd.yaml",
	"kioskd.yml",
	"/etc/kioskd/kioskd.yaml",
	"/etc/kioskd/kioskd.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "KIOSKD_CONFIG"

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so stray environment noise cannot leak
// into the configuration.
func envTransformFunc(key string) string {
	envMappings := map[string]string{
		"KIOSKD_SERVER_ADDRESS": "server.address",
		"KIOSKD_SERVER_TIMEOUT": "server.timeout",

		"KIOSKD_MIN_FACE_AREA":        "recognition.min_face_area",
		"KIOSKD_STABLE_FRAMES":        "recognition.stable_frames",
		"KIOSKD_COOLDOWN":             "recognition.cooldown",
		"KIOSKD_ATTEMPT_INTERVAL":     "recognition.attempt_interval",
		"KIOSKD_SIMILARITY_THRESHOLD": "recognition.similarity_threshold",
		"KIOSKD_VOTES_REQUIRED":       "recognition.votes_required",
		"KIOSKD_VOTE_WINDOW":          "recognition.vote_window",
		"KIOSKD_BURST_FRAMES":         "recognition.burst_frames",

		"KIOSKD_ENROLL_SAMPLES":        "enroll.samples",
		"KIOSKD_ENROLL_TIMEOUT":        "enroll.sample_timeout",
		"KIOSKD_ENROLL_SUCCESS_RATIO":  "enroll.min_success_ratio",
		"KIOSKD_ENROLL_MIN_FACE_AREA":  "enroll.min_face_area",
		"KIOSKD_ENROLL_STABLE_FRAMES":  "enroll.stable_frames",

		"KIOSKD_UPLOAD_QUEUE_SIZE":     "upload.queue_size",
		"KIOSKD_UPLOAD_RETRY_ATTEMPTS": "upload.retry_attempts",
		"KIOSKD_UPLOAD_RETRY_DELAY":    "upload.retry_delay",
		"KIOSKD_UPLOAD_SCRATCH_DIR":    "upload.scratch_dir",

		"KIOSKD_OFFLINE_DIR":           "offline.dir",
		"KIOSKD_OFFLINE_SYNC_INTERVAL": "offline.sync_interval",
		"KIOSKD_OFFLINE_INITIAL_DELAY": "offline.initial_delay",

		"KIOSKD_DUTY_CHECK_INTERVAL": "duty.check_interval",
		"KIOSKD_DUTY_BOOT_GRACE":     "duty.boot_grace",
		"KIOSKD_DUTY_MIN_SLEEP":      "duty.min_sleep",

		"KIOSKD_CONTROL_PATH":      "control.path",
		"KIOSKD_CONTROL_RECONNECT": "control.reconnect_interval",

		"KIOSKD_STATE_PATH": "state.path",

		"KIOSKD_DEBUG_ENABLED": "debug.enabled",
		"KIOSKD_DEBUG_ADDR":    "debug.addr",

		"LOG_LEVEL":  "logging.level",
		"LOG_FORMAT": "logging.format",
		"LOG_CALLER": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
