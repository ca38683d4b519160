package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/lmittmann/tint"

	"github.com/tailored-agentic-units/shellpilot/agent"
	"github.com/tailored-agentic-units/shellpilot/api"
	"github.com/tailored-agentic-units/shellpilot/config"
	"github.com/tailored-agentic-units/shellpilot/device"
	"github.com/tailored-agentic-units/shellpilot/history"
	"github.com/tailored-agentic-units/shellpilot/kernel"
	"github.com/tailored-agentic-units/shellpilot/observability"
	"github.com/tailored-agentic-units/shellpilot/service"
)

// app owns the in-process components built from configuration.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	observer  observability.Observer
	producers *agent.Registry
	history   history.Store
	devices   device.Catalog
	service   *service.Service

	closers []func() error
}

func loadConfig(g *Globals) (config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return config.Config{}, err
	}
	cfg.ApplyEnv(nil)

	if g.Server != "" {
		cfg.Server.ServerURL = g.Server
	}
	if g.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch cfg.Format {
	case config.FormatJSON:
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

// newObserver registers the configured sinks and resolves them. The returned
// closer drains the NATS connection when one was opened.
func newObserver(cfg observability.Config, logger *slog.Logger) (observability.Observer, func() error, error) {
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	sinks := slices.Clone(cfg.Sinks)
	closer := func() error { return nil }

	if cfg.NATS.URL != "" {
		obs, nc, err := observability.ConnectNATS(cfg.NATS.URL, cfg.NATS.Prefix,
			observability.WithMinLevel(cfg.NATS.MinLevel),
			observability.WithPublishErrorHandler(func(err error) {
				logger.Warn("event publish failed", "error", err)
			}),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		observability.RegisterObserver("nats", obs)
		if !slices.Contains(sinks, "nats") {
			sinks = append(sinks, "nats")
		}
		closer = nc.Drain
	}

	observer, err := observability.Resolve(sinks...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return observer, closer, nil
}

func newProducers(cfg *config.Config) (*agent.Registry, error) {
	registry := agent.NewRegistry()

	names := []string{config.PlannerProducer, config.ChatProducer}
	for name := range cfg.Producers {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, name := range names {
		if err := registry.Register(name, cfg.Producer(name)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// openApp builds the full in-process stack.
func openApp(g *Globals) (*app, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	observer, closeObserver, err := newObserver(cfg.Observability, logger)
	if err != nil {
		return nil, err
	}
	a.observer = observer
	a.closers = append(a.closers, closeObserver)

	if a.producers, err = newProducers(&cfg); err != nil {
		a.Close()
		return nil, err
	}
	planner, err := a.producers.Get(config.PlannerProducer)
	if err != nil {
		a.Close()
		return nil, err
	}
	chat, err := a.producers.Get(config.ChatProducer)
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.history, err = history.NewStore(&cfg.History); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	a.closers = append(a.closers, a.history.Close)

	if a.devices, err = device.Open(&cfg.Devices); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open devices: %w", err)
	}
	a.closers = append(a.closers, a.devices.Close)

	k, err := kernel.New(&cfg.Kernel,
		kernel.WithProducer(planner),
		kernel.WithObserver(observer),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service, err = service.New(&cfg.Service, service.Dependencies{
		Runner:  k,
		Chat:    chat,
		History: a.history,
		Devices: a.devices,
	}, service.WithObserver(observer))
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// assistant returns a client for the configured server, or the in-process
// service when no server is configured.
func assistant(g *Globals) (api.Assistant, func() error, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Server.ServerURL != "" {
		if _, err := newLogger(cfg.Log); err != nil {
			return nil, nil, err
		}
		return api.NewClient(http.DefaultClient, cfg.Server.ServerURL), func() error { return nil }, nil
	}

	a, err := openApp(g)
	if err != nil {
		return nil, nil, err
	}
	return a.service, a.Close, nil
}

// openCatalog opens only the device catalog.
func openCatalog(g *Globals) (device.Catalog, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	return device.Open(&cfg.Devices)
}
