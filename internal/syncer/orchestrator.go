package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"crosslink/internal/catalog/mdl"
	"crosslink/internal/catalog/tmdb"
	"crosslink/internal/config"
	"crosslink/internal/linkstore"
	"crosslink/internal/logging"
	"crosslink/internal/metrics"
	"crosslink/internal/resolver"
	"crosslink/internal/services"
)

// CatalogA is the primary-catalog lookup used to discover seasons.
type CatalogA interface {
	GetDetails(ctx context.Context, key tmdb.Key) (*tmdb.Details, error)
}

// Resolver finds a catalog B match for a title.
type Resolver interface {
	Resolve(ctx context.Context, q resolver.Query) *resolver.Match
}

// Enricher fetches catalog B payloads for resolved keys.
type Enricher interface {
	FetchEnrichment(ctx context.Context, catalogBKey string) *linkstore.Enrichment
	FetchPerson(ctx context.Context, personKey string) *mdl.Person
}

// Options holds the refresh policy.
type Options struct {
	TitleTTL       time.Duration
	PersonTTL      time.Duration
	StaleAge       time.Duration
	Concurrency    int
	RoundDelay     time.Duration
	ItemDelay      time.Duration
	TimeBudget     time.Duration
	ActiveStatuses []string
	LockPath       string
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TitleTTL:       cfg.TitleTTL(),
		PersonTTL:      cfg.PersonTTL(),
		StaleAge:       cfg.StaleSweepAge(),
		Concurrency:    cfg.Warm.Concurrency,
		RoundDelay:     cfg.WarmRoundDelay(),
		ItemDelay:      cfg.SyncItemDelay(),
		TimeBudget:     cfg.SyncTimeBudget(),
		ActiveStatuses: append([]string(nil), cfg.Sync.ActiveStatuses...),
		LockPath:       cfg.LockPath(),
	}
}

// Orchestrator runs warm and sync passes.
type Orchestrator struct {
	store    *linkstore.Store
	catalog  CatalogA
	resolver Resolver
	enricher Enricher
	opts     Options
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	newRunID func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records batch and sync outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock replaces the wall clock and the between-item sleep.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithRunIDs replaces the run id generator.
func WithRunIDs(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newRunID = next
		}
	}
}

// New constructs an Orchestrator.
func New(store *linkstore.Store, catalog CatalogA, res Resolver, enricher Enricher, opts Options, logger *slog.Logger, options ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		catalog:  catalog,
		resolver: res,
		enricher: enricher,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "syncer"),
		now:      time.Now,
		sleep:    sleepContext,
		newRunID: uuid.NewString,
	}
	for _, option := range options {
		option(o)
	}
	return o
}

// acquire takes the run lock. The returned release is always safe to call.
func (o *Orchestrator) acquire() (func(), error) {
	if o.opts.LockPath == "" {
		return func() {}, nil
	}
	lock := flock.New(o.opts.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrBusy, "syncer", "acquire run lock",
			fmt.Sprintf("another warm or sync run holds %s", o.opts.LockPath), nil)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			o.logger.Warn("failed to release run lock", logging.Error(err))
		}
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
