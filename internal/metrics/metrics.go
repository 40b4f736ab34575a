// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package metrics defines the Prometheus collectors for kioskd and the
// loopback listener that exposes them. On a fleet device the collectors
// are scraped through the maintenance tunnel; they are also the cheapest
// way to watch a bench unit during tuning.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecognitionAttempts counts recognizer invocations (post rate limit).
	RecognitionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kioskd_recognition_attempts_total",
		Help: "Number of recognizer invocations",
	})

	// RecognitionsConfirmed counts confirmed check-ins.
	RecognitionsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kioskd_recognitions_confirmed_total",
		Help: "Number of confirmed identity recognitions",
	})

	// UploadOutcomes counts terminal upload-job outcomes by path:
	// delivered, offline, dropped.
	UploadOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kioskd_upload_outcomes_total",
		Help: "Terminal outcomes of upload jobs",
	}, []string{"outcome"})

	// UploadQueueDepth tracks the in-memory job queue depth.
	UploadQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kioskd_upload_queue_depth",
		Help: "Jobs currently waiting in the upload queue",
	})

	// OfflineDrained counts ledger entries delivered by the sync worker.
	OfflineDrained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kioskd_offline_drained_total",
		Help: "Offline ledger entries delivered and removed",
	})

	// OfflineRetries counts failed sync attempts on the ledger head.
	OfflineRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kioskd_offline_retries_total",
		Help: "Failed delivery attempts for the offline ledger head",
	})

	// ArbiterTimeouts counts sensor acquisition timeouts.
	ArbiterTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kioskd_sensor_acquire_timeouts_total",
		Help: "Camera/detector arbiter acquisition timeouts",
	})

	// ControlReconnects counts control-channel reconnect attempts.
	ControlReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kioskd_control_reconnects_total",
		Help: "Control channel reconnect attempts",
	})

	// EnrollSessions counts enrollment sessions by result label
	// (success, failed, busy, aborted).
	EnrollSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kioskd_enroll_sessions_total",
		Help: "Enrollment sessions by result",
	}, []string{"result"})

	// CircuitBreakerState tracks the upload breaker state
	// (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kioskd_upload_breaker_state",
		Help: "Upload circuit breaker state (0=closed, 1=half-open, 2=open)",
	})
)
