package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hurttlocker/filingintel/internal/cache"
	"github.com/hurttlocker/filingintel/internal/config"
	"github.com/hurttlocker/filingintel/internal/cue"
	"github.com/hurttlocker/filingintel/internal/engine"
	"github.com/hurttlocker/filingintel/internal/extract"
	"github.com/hurttlocker/filingintel/internal/observe"
	"github.com/hurttlocker/filingintel/internal/provider"
	"github.com/hurttlocker/filingintel/internal/provider/edgar"
	"github.com/hurttlocker/filingintel/internal/provider/local"
	"github.com/hurttlocker/filingintel/internal/window"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath  string
	provider    string
	dbPath      string
	userAgent   string
	catalogPath string
	logLevel    string
}

func (g *globalOptions) resolve() (config.ResolvedConfig, config.Settings, error) {
	resolved, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath:     g.configPath,
		CLIProvider:    g.provider,
		CLIDBPath:      g.dbPath,
		CLIUserAgent:   g.userAgent,
		CLICatalogPath: g.catalogPath,
		CLILogLevel:    g.logLevel,
	})
	if err != nil {
		return resolved, config.Settings{}, err
	}
	settings, err := resolved.Settings()
	return resolved, settings, err
}

// app is the wired engine with everything it owns.
type app struct {
	settings config.Settings
	logger   *zap.Logger
	engine   *engine.Engine
	cache    *cache.Cache
	corpus   *local.Store // nil unless the local provider is selected
}

func (g *globalOptions) open() (*app, error) {
	_, settings, err := g.resolve()
	if err != nil {
		return nil, err
	}
	logger, err := observe.NewLogger(settings.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, logger: logger}
	var p provider.Provider
	switch settings.Provider {
	case config.ProviderEdgar:
		c, err := edgar.New(settings.UserAgent,
			edgar.WithRateLimit(settings.RateLimit),
			edgar.WithLogger(logger.Named("edgar")),
		)
		if err != nil {
			return nil, fmt.Errorf("creating edgar client: %w", err)
		}
		p = c
	default:
		st, err := local.Open(settings.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening corpus: %w", err)
		}
		a.corpus = st
		p = st
	}

	catalog, err := cue.Load(settings.CatalogPath)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	a.cache = cache.New(cache.Options{
		TTL:           settings.CacheTTL,
		Capacity:      settings.CacheCapacity,
		SweepInterval: settings.SweepInterval,
		Logger:        logger.Named("cache"),
		Meter:         observe.Meter("cache"),
	})
	a.engine = engine.New(p, extract.New(catalog),
		engine.WithCache(a.cache),
		engine.WithLogger(logger.Named("engine")),
		engine.WithWindowOptions(
			window.WithWorkers(settings.Workers),
			window.WithDocumentTimeout(settings.DocumentTimeout),
			window.WithMaxDocuments(settings.MaxWindowDocuments),
		),
	)
	logger.Debug("filingintel: engine ready",
		zap.String("provider", settings.Provider),
		zap.Int("cues", len(catalog.Definition().Cues)))
	return a, nil
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
	if a.corpus != nil {
		_ = a.corpus.Close()
	}
	_ = a.logger.Sync()
}

// stats reports corpus and cache health.
func (a *app) stats(ctx context.Context) (*observe.Stats, error) {
	if a.corpus != nil {
		return observe.GetStats(ctx, a.corpus, a.engine)
	}
	return observe.GetStats(ctx, nil, a.engine)
}
