// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

// Package main is the entry point for the kioskd attendance kiosk daemon.
//
// Kioskd is the firmware core of a face-recognition attendance kiosk:
// it watches the camera during configured duty windows, confirms
// identities through stability and consistency filtering, uploads
// check-ins to the attendance backend, and stores them durably when the
// network is down.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, environment (Koanf v2)
//  2. State store: BadgerDB device preferences (duty slots, backend address)
//  3. Sensor arbiter: exclusive camera/detector/recognizer access
//  4. Workers: recognition pipeline, upload sender, offline syncer,
//     control channel, duty scheduler
//  5. Supervisor tree: layered suture tree running all workers
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (kioskd.yaml),
// built-in defaults. The backend address and duty slots persisted in the
// state store override the configured defaults at boot.
//
// # Signal Handling
//
// The daemon shuts down gracefully on SIGINT and SIGTERM: workers drain,
// the camera is released, and the state store is closed. A `restart`
// control command triggers the same orderly exit; the service manager
// brings the process back up.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/chamcong/kioskd/internal/backend"
	"github.com/chamcong/kioskd/internal/config"
	"github.com/chamcong/kioskd/internal/control"
	"github.com/chamcong/kioskd/internal/duty"
	"github.com/chamcong/kioskd/internal/enroll"
	"github.com/chamcong/kioskd/internal/logging"
	"github.com/chamcong/kioskd/internal/metrics"
	"github.com/chamcong/kioskd/internal/offline"
	"github.com/chamcong/kioskd/internal/recognition"
	"github.com/chamcong/kioskd/internal/sensor"
	"github.com/chamcong/kioskd/internal/state"
	"github.com/chamcong/kioskd/internal/supervisor"
	"github.com/chamcong/kioskd/internal/upload"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting kioskd with supervisor tree")

	// Open the device preference store. Persisted values (provisioned
	// backend address, remotely configured duty slots) beat config defaults.
	store, err := state.Open(cfg.State.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open state store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing state store")
		}
	}()

	serverAddr := loadServerAddress(store, cfg)
	slots := loadDutySlots(store, cfg)

	logging.Info().
		Str("server", serverAddr).
		Int("duty_slots", len(slots)).
		Str("state_path", cfg.State.Path).
		Msg("Configuration loaded")

	// Backend client shared by every delivery path.
	client := backend.NewClient(serverAddr, cfg.Server.Timeout)
	compressor := &sensor.JPEGCompressor{MarginPx: 20}

	// Assemble the sensor capabilities. Recognition runs server-side via
	// the AI endpoints; camera and detector come from the hardware driver,
	// with the simulated devices standing in on driverless bench builds.
	devices := sensor.Devices{
		Camera:     &sensor.SimCamera{},
		Detector:   sensor.SimDetector{},
		Recognizer: backend.NewRemoteRecognizer(client, compressor, nil),
	}
	arbiter := sensor.NewArbiter(devices)
	defer func() {
		if err := arbiter.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing sensor arbiter")
		}
	}()

	flags := state.NewFlags()
	queue := upload.NewQueue(cfg.Upload.QueueSize)

	offlineStore, err := offline.NewStore(cfg.Offline.Dir, logging.Logger())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open offline store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Control channel first: its liveness is the connectivity signal for
	// the offline syncer, and its Send carries command acks.
	channel := control.NewChannel(serverAddr, cfg.Control, logging.Logger())

	sender := upload.NewSender(queue, client, offlineStore, cfg.Upload, logging.Logger())
	syncer := offline.NewSyncer(offlineStore, client, channel.Connected, flags.Awake, flags.Enrolling, cfg.Offline, logging.Logger())
	pipeline := recognition.NewPipeline(arbiter, compressor, queue, flags, recognition.NopNotifier{}, cfg.Recognition, logging.Logger(), nil)
	enroller := enroll.NewWorker(arbiter, flags, channel, cfg.Enroll, logging.Logger())
	admin := sensor.NewAdmin(arbiter, cfg.Recognition.AcquireTimeout)

	scheduler := duty.NewScheduler(
		store, flags, duty.ProcessSuspender{},
		nil, nil, slots, cfg.Duty, logging.Logger(), nil,
	)

	dispatcher := control.NewDispatcher(
		enroller, restarter{cancel: cancel}, admin, scheduler,
		channel, len(slots), logging.Logger(),
	)
	channel.SetHandler(dispatcher)

	// Bridge zerolog to slog for sutureslog compatibility.
	slogLogger := logging.NewSlogLogger()
	tree := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())

	tree.AddSensingService(pipeline)
	tree.AddDeliveryService(sender)
	tree.AddDeliveryService(syncer)
	tree.AddControlService(channel)
	tree.AddControlService(scheduler)
	if cfg.Debug.Enabled {
		tree.AddControlService(metrics.NewServer(cfg.Debug.Addr))
	}

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Kiosk daemon stopped gracefully")
}

// restarter implements control.Restarter by canceling the run context.
// The process exits cleanly and the service manager restarts it, which
// is the closest orderly equivalent of the firmware reboot.
type restarter struct {
	cancel context.CancelFunc
}

func (r restarter) Restart() {
	logging.Info().Msg("Restart requested over control channel")
	r.cancel()
}

// loadServerAddress prefers the provisioned backend address from the
// state store over the configured default.
func loadServerAddress(store *state.Store, cfg *config.Config) string {
	addr, err := store.ServerAddress()
	if errors.Is(err, state.ErrNotFound) {
		return cfg.Server.Address
	}
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read provisioned server address, using default")
		return cfg.Server.Address
	}
	return addr
}

// loadDutySlots prefers the remotely configured slot table from the
// state store over the configured defaults, falling back when the
// persisted copy is absent or invalid.
func loadDutySlots(store *state.Store, cfg *config.Config) []config.TimeSlot {
	quads, err := store.LoadDutySlots()
	if errors.Is(err, state.ErrNotFound) {
		return cfg.Duty.Slots
	}
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read persisted duty slots, using defaults")
		return cfg.Duty.Slots
	}

	slots := make([]config.TimeSlot, len(quads))
	for i, q := range quads {
		slots[i] = config.TimeSlot{StartHour: q[0], StartMin: q[1], EndHour: q[2], EndMin: q[3]}
	}
	if err := config.ValidateSlots(slots); err != nil {
		logging.Warn().Err(err).Msg("Persisted duty slots invalid, using defaults")
		return cfg.Duty.Slots
	}
	if len(slots) != len(cfg.Duty.Slots) {
		logging.Warn().
			Int("persisted", len(slots)).
			Int("expected", len(cfg.Duty.Slots)).
			Msg("Persisted duty slot count differs from configuration, using defaults")
		return cfg.Duty.Slots
	}
	return slots
}
