package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/stanbenchgo/internal/bench"
	"github.com/vk/stanbenchgo/internal/ctxlog"
	"github.com/vk/stanbenchgo/internal/scenario"
	"github.com/vk/stanbenchgo/internal/stan"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	client    *stan.Client
	scenarios []*scenario.Scenario

	results []*bench.Result
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger, the scenarios
// already loaded and resolved, and a client pointed at the configured server.
func NewApp(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	scenarios, err := scenario.NewLoader().LoadPath(ctx, config.GridPath)
	if err != nil {
		// A failure to load scenarios is a fatal startup error.
		panic(fmt.Errorf("failed to load scenarios: %w", err))
	}
	logger.Debug("Scenarios resolved.", "count", len(scenarios))

	client, err := stan.NewClient(config.ServerURL, config.HTTPTimeout)
	if err != nil {
		panic(fmt.Errorf("failed to configure server client: %w", err))
	}
	logger.Debug("Server client configured.", "server", client.BaseURL())

	return &App{
		outW:      outW,
		logger:    logger,
		config:    config,
		client:    client,
		scenarios: scenarios,
	}
}

// Scenarios returns the resolved scenarios. This is primarily for testing.
func (a *App) Scenarios() []*scenario.Scenario {
	return a.scenarios
}

// Results returns the results collected so far. This is primarily for testing.
func (a *App) Results() []*bench.Result {
	return a.results
}
