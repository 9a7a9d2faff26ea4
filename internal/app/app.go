// Package app assembles the process-wide application context: credentials,
// configuration, model binding, agents and dispatchers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finagent/internal/agent"
	"finagent/internal/config"
	"finagent/internal/dispatch"
	"finagent/internal/llm"
	"finagent/internal/tools"
	"finagent/internal/trace"
	"finagent/internal/tracking"
	"finagent/internal/yahoo"
)

type App struct {
	Config  *config.Config
	Binding *llm.Binding
	Agents  *agent.Set
	Tracker tracking.Tracker

	// Dispatcher reaches all three agents; Playground only the two leaves.
	Dispatcher *dispatch.Dispatcher
	Playground *dispatch.Dispatcher

	creds    *config.Credentials
	opts     Options
	shutdown func(context.Context) error
}

// Options replace external services, mainly for tests.
type Options struct {
	ConfigPath string
	Provider   llm.Provider
	Searcher   tools.Searcher
	Market     tools.MarketData
	Tracker    tracking.Tracker
}

// New builds the application. Credentials are checked before anything else
// so that a missing key never leaves a half-built agent behind.
func New(ctx context.Context, env *config.Env, opts Options) (*App, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	tracker := opts.Tracker
	if tracker == nil {
		tracker, err = tracking.New(env.SentryDSN, env.SentryEnvironment)
		if err != nil {
			return nil, fmt.Errorf("initializing sentry: %w", err)
		}
	}

	shutdown, err := trace.Init(ctx, cfg.Trace, creds.PlatformKey)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	a := &App{Tracker: tracker, creds: creds, opts: opts, shutdown: shutdown}
	if err := a.build(cfg); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	slog.Info("application ready",
		"config", cfg.Path,
		"binding", a.Binding,
		"tracing", cfg.Trace.Enabled(),
	)
	return a, nil
}

// Rebuild reloads the config file and builds fresh agents and dispatchers.
// The tracker, the tracer provider and the credentials stay those of a, so
// runs still finishing on a keep reporting. Only a is ever closed.
func (a *App) Rebuild(ctx context.Context) (*App, error) {
	cfg, err := config.Load(a.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Trace != a.Config.Trace {
		slog.Warn("trace settings changed; restart to apply")
	}

	next := &App{Tracker: a.Tracker, creds: a.creds, opts: a.opts}
	if err := next.build(cfg); err != nil {
		return nil, err
	}
	return next, nil
}

// build wires everything that depends on the config file.
func (a *App) build(cfg *config.Config) error {
	binding := llm.NewBinding(cfg.Model, a.creds)

	provider := a.opts.Provider
	if provider == nil {
		provider = llm.NewOpenAI(binding)
	}

	searcher := a.opts.Searcher
	if searcher == nil {
		var err error
		searcher, err = tools.NewBraveSearcher(a.creds.SearchKey)
		if err != nil {
			return err
		}
	}

	var market tools.MarketData = a.opts.Market
	if market == nil {
		market = yahoo.New(cfg.Yahoo)
	}

	web := tools.NewWeb(searcher, cfg.Web)
	finance := tools.NewFinance(market, tools.AllFinanceFeatures(), cfg.Yahoo.NewsCount)
	set := agent.NewFactory(provider, binding, web, finance).Build()

	a.Config = cfg
	a.Binding = binding
	a.Agents = set
	a.Dispatcher = dispatch.New(dispatch.Runners(set.All()...), cfg.Dispatch.Timeout, a.Tracker)
	a.Playground = dispatch.New(dispatch.Runners(set.Leaves()...), cfg.Dispatch.Timeout, a.Tracker)
	return nil
}

// Close flushes the tracker and the trace exporter. A rebuilt App owns no
// exporter; only the App returned by New needs closing.
func (a *App) Close(ctx context.Context) error {
	a.Tracker.Flush(2 * time.Second)
	if a.shutdown == nil {
		return nil
	}
	return a.shutdown(ctx)
}

// IsConfigurationError reports whether err should stop the process at startup.
func IsConfigurationError(err error) bool {
	var ce *config.ConfigurationError
	return errors.As(err, &ce)
}
