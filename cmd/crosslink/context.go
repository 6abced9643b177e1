package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"crosslink/internal/catalog/mdl"
	"crosslink/internal/catalog/tmdb"
	"crosslink/internal/config"
	"crosslink/internal/enrichment"
	"crosslink/internal/linkstore"
	"crosslink/internal/logging"
	"crosslink/internal/lookup"
	"crosslink/internal/metrics"
	"crosslink/internal/resolver"
	"crosslink/internal/syncer"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	engineOnce sync.Once
	engine     *engine
	engineErr  error
}

// engine is the fully wired set of collaborators a command may need.
type engine struct {
	cfg          *config.Config
	logger       *slog.Logger
	metrics      *metrics.Metrics
	store        *linkstore.Store
	tmdb         *tmdb.Client
	resolver     *resolver.Resolver
	orchestrator *syncer.Orchestrator
	lookup       *lookup.Service
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// open wires the engine once per process.
func (c *commandContext) open() (*engine, error) {
	c.engineOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.engineErr = err
			return
		}
		c.engine, c.engineErr = buildEngine(cfg)
	})
	return c.engine, c.engineErr
}

func (c *commandContext) close() {
	if c.engine != nil && c.engine.store != nil {
		_ = c.engine.store.Close()
	}
}

func buildEngine(cfg *config.Config) (*engine, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	m := metrics.New(true)

	store, err := linkstore.Open(cfg)
	if err != nil {
		return nil, err
	}

	catalogA, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithRequestsPerSecond(cfg.TMDB.RequestsPerSecond),
		tmdb.WithMetrics(m),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	mdlOpts := []mdl.Option{
		mdl.WithTimeout(cfg.MDLRequestTimeout()),
		mdl.WithLogger(logger),
		mdl.WithMetrics(m),
	}
	if cfg.MDL.BreakerEnabled {
		mdlOpts = append(mdlOpts, mdl.WithCircuitBreaker(uint32(cfg.MDL.BreakerFailureThreshold), cfg.MDLBreakerCooldown()))
	}
	catalogB, err := mdl.New(cfg.MDL.BaseURL, mdlOpts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	res := resolver.New(catalogB, logger, m)
	fetcher := enrichment.New(catalogB, logger)
	return &engine{
		cfg:          cfg,
		logger:       logger,
		metrics:      m,
		store:        store,
		tmdb:         catalogA,
		resolver:     res,
		orchestrator: syncer.New(store, catalogA, res, fetcher, syncer.OptionsFromConfig(cfg), logger, syncer.WithMetrics(m)),
		lookup:       lookup.New(store, res, fetcher, cfg.TitleTTL(), logger, lookup.WithMetrics(m)),
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
