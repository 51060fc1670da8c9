// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

// Package main is the entry point for the Relay server.
//
// Relay delivers notifications to pharmacy staff and customers in real time.
// Submissions arrive over the REST API, pass through per-user preference
// evaluation, land in a priority-tiered batching queue, and are fanned out
// over websocket, email, and SMS. All long-running components run under a
// Suture supervision tree and shut down gracefully on SIGINT/SIGTERM.
//
// Configuration is loaded via Koanf v2 in layers (highest wins):
//   - RELAY_ environment variables
//   - config.yaml
//   - built-in defaults
//
// RELAY_SECURITY_JWT_SECRET (32+ characters) is the only required setting.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pharmex/relay/internal/api"
	"github.com/pharmex/relay/internal/auth"
	"github.com/pharmex/relay/internal/cache"
	"github.com/pharmex/relay/internal/config"
	"github.com/pharmex/relay/internal/dispatch"
	"github.com/pharmex/relay/internal/events"
	"github.com/pharmex/relay/internal/hub"
	"github.com/pharmex/relay/internal/logging"
	"github.com/pharmex/relay/internal/preferences"
	"github.com/pharmex/relay/internal/queue"
	"github.com/pharmex/relay/internal/store"
	"github.com/pharmex/relay/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Backend).
		Msg("starting relay")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Preference store.
	prefs, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := prefs.Close(); err != nil {
			logging.Error().Err(err).Msg("store close failed")
		}
	}()

	// Evaluation cache and its sweeper.
	evalCache := cache.New(cache.Options{
		DefaultTTL: cfg.Cache.DefaultTTL,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	janitor := cache.NewJanitor(evalCache, cfg.Cache.SweepInterval)

	evaluator := preferences.NewEvaluator(preferences.Options{
		Store: prefs,
		Cache: evalCache,
	})

	// Realtime hub. The optimizer is built after the hub (dispatch publishes
	// through it), so the live-data hook captures the variable and tolerates
	// nil until wiring completes.
	var optimizer *queue.Optimizer
	h := hub.NewHub(hub.Options{
		SendBuffer:   cfg.Hub.SendBuffer,
		InboundRate:  cfg.Hub.InboundRate,
		InboundBurst: cfg.Hub.InboundBurst,
		LiveData: func(dataType string, _ map[string]string) (interface{}, bool) {
			if dataType == "queue" && optimizer != nil {
				return optimizer.Stats(), true
			}
			return nil, false
		},
	})

	// Delivery channels. The log senders stand in for SMTP/SMS gateways and
	// sit behind circuit breakers like any external dependency would. Email
	// subjects resolve through the template store, cached alongside profiles.
	templates := dispatch.NewTemplateSource(prefs, evalCache)
	router := dispatch.NewRouter(h, prefs,
		dispatch.NewBreakerSender(dispatch.LogEmailSender{Templates: templates}),
		dispatch.NewBreakerSender(dispatch.LogSMSSender{}),
	)

	optimizer = queue.NewOptimizer(queue.Options{
		Dispatcher:        router,
		Archiver:          store.NopArchiver{},
		BatchSize:         cfg.Queue.BatchSize,
		MaxBatchSize:      cfg.Queue.MaxBatchSize,
		BatchDelay:        cfg.Queue.BatchDelay,
		SweepInterval:     cfg.Queue.SweepInterval,
		OptimizeThreshold: cfg.Queue.OptimizeThreshold,
		MaxItemAge:        cfg.Queue.MaxItemAge,
	})

	// Event bus: submissions in, broadcasts out.
	bus, err := events.NewBus()
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	events.NewIngest(bus, evaluator, optimizer)
	events.NewForwarder(bus, h)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, bus, optimizer, prefs, h, jwtManager).Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // websocket connections outlive any write timeout
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	tree.AddMessagingService(h)
	tree.AddMessagingService(bus)
	tree.AddMessagingService(queue.NewSweeper(optimizer))
	tree.AddMessagingService(janitor)
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, 30*time.Second))

	logging.Info().Msg("supervision tree starting")
	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}

	logging.Info().Msg("relay stopped")
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "badger":
		return store.OpenBadgerStore(cfg.Store.Path)
	default:
		return store.NewMemoryStore(), nil
	}
}
