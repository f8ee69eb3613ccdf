// Marquee - Playback and Device Session Engine for Unattended Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tomtom215/marquee/internal/api"
	"github.com/tomtom215/marquee/internal/clock"
	"github.com/tomtom215/marquee/internal/config"
	"github.com/tomtom215/marquee/internal/health"
	"github.com/tomtom215/marquee/internal/kiosk"
	"github.com/tomtom215/marquee/internal/kiosk/host"
	"github.com/tomtom215/marquee/internal/logging"
	"github.com/tomtom215/marquee/internal/ping"
	"github.com/tomtom215/marquee/internal/platform"
	"github.com/tomtom215/marquee/internal/playback"
	"github.com/tomtom215/marquee/internal/session"
	"github.com/tomtom215/marquee/internal/supervisor"
	"github.com/tomtom215/marquee/internal/supervisor/services"
	"github.com/tomtom215/marquee/internal/telemetry"
	ws "github.com/tomtom215/marquee/internal/websocket"
)

// localStoreGCInterval paces badger value log collection.
const localStoreGCInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		DisplayID: cfg.Display.ID,
	})

	logging.Info().Str("store_backend", cfg.Store.Backend).Msg("Starting Marquee")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.Real()

	// === DATA ===

	kv, badgerStore, err := openLocalStore(&cfg.LocalStore)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing local store")
		}
	}()

	shared, err := openSharedStore(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to open shared store")
		return
	}
	defer shared.shutdown(cfg.Supervisor.ShutdownTimeout)

	// === ENGINE ===

	sess := session.New(cfg.Display.ID, cfg.Display.OwnerID, clk.Now())
	logging.Info().Str("session_id", sess.ID()).Msg("Session started")

	hub := ws.NewHub()
	bridge := ws.NewBridge(hub)

	caps := platform.Detect(ctx, &cfg.Health, clk)
	caps.Notifier = platform.Notifiers{caps.Notifier, bridge}

	sampler := health.NewSampler(health.ConfigFrom(&cfg.Health), caps, sess, clk)
	emitter := telemetry.New(telemetry.ConfigFrom(&cfg.Telemetry), shared, sess, clk, sampler.LatestLocation)

	recorder := host.NewRecorder(bridge.HostCommand)
	manager := kiosk.NewManager(kiosk.ConfigFrom(&cfg.Kiosk), kv, recorder, clk,
		kiosk.WithObserver(bridge.PublishPolicy))

	var playbackOpts []playback.Option
	if cfg.Playback.PrefetchEnabled {
		playbackOpts = append(playbackOpts, playback.WithPrefetcher(playback.NewHTTPPrefetcher(cfg.Playback.PrefetchTimeout)))
	}
	controller := playback.New(playback.ConfigFrom(&cfg.Playback), shared, sess, emitter, bridge, clk, playbackOpts...)
	bridge.Bind(controller, manager, recorder)

	pusher := health.NewStatusPusher(shared, sampler, sess, clk, cfg.Health.StatusPushInterval, health.StatusSources{
		NowPlaying:  controller.NowPlaying,
		KioskActive: manager.Active,
	})
	responder := ping.NewResponder(ping.ConfigFrom(&cfg.Ping), shared, sampler, sess, clk)

	if err := manager.Resume(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to resume kiosk lockdown")
	}

	// === API ===

	handler := api.NewHandler(api.Deps{
		Session:  sess,
		Kiosk:    manager,
		Playback: controller,
		Samples:  sampler,
		Hub:      hub,
		Clock:    clk,
	}, cfg.Server.AllowedOrigins)
	server := &http.Server{
		Handler:           api.NewRouter(handler, api.RouterConfigFrom(&cfg.Server)),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       2 * cfg.Server.ReadTimeout,
	}
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create supervisor tree")
		return
	}

	if shared.server != nil {
		tree.AddDataService(services.NewNATSServerService(shared.server, 0))
	}
	if badgerStore != nil {
		tree.AddDataService(services.NewRunnerService("local-store-gc", services.RunnerFunc(func(ctx context.Context) error {
			return badgerStore.RunGC(ctx, localStoreGCInterval)
		})))
	}

	tree.AddEngineService(services.NewRunnerService("renderer-hub", hub))
	tree.AddEngineService(services.NewRunnerService("telemetry", emitter))
	tree.AddEngineService(services.NewRunnerService("owner-follow", services.RunnerFunc(func(ctx context.Context) error {
		records, err := shared.WatchDevice(ctx, sess.DisplayID())
		if err != nil {
			return err
		}
		sess.Follow(ctx, records)
		return nil
	})))
	tree.AddEngineService(services.NewRunnerService("health-sampler", sampler))
	tree.AddEngineService(services.NewRunnerService("sample-relay", services.RunnerFunc(func(ctx context.Context) error {
		samples, unsubscribe := sampler.Subscribe()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return nil
			case s, ok := <-samples:
				if !ok {
					return nil
				}
				bridge.PublishSample(s)
			}
		}
	})))
	tree.AddEngineService(services.NewRunnerService("status-pusher", pusher))
	tree.AddEngineService(services.NewRunnerService("ping-responder", responder))
	tree.AddEngineService(services.NewRunnerService("rotation", controller))

	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))

	// === RUN ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Marquee stopped")
}
