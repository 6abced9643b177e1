package lookup

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"crosslink/internal/linkstore"
	"crosslink/internal/logging"
	"crosslink/internal/metrics"
	"crosslink/internal/resolver"
	"crosslink/internal/services"
)

// Resolver finds a catalog B match for a title.
type Resolver interface {
	Resolve(ctx context.Context, q resolver.Query) *resolver.Match
}

// Enricher fetches secondary-catalog payloads.
type Enricher interface {
	FetchEnrichment(ctx context.Context, catalogBKey string) *linkstore.Enrichment
	FetchCast(ctx context.Context, catalogBKey string) *linkstore.CastBuckets
}

// Read-path results recorded in metrics.
const (
	ResultHit         = "hit"
	ResultMiss        = "miss"
	ResultBackfill    = "cast_backfill"
	ResultBackfillNil = "cast_unavailable"
	ResultFallback    = "season_fallback"
	ResultResolved    = "resolved"
	ResultKnownMiss   = "known_miss"
	ResultUnavailable = "enrichment_unavailable"
)

// Link is the read-path view of a title or one of its seasons.
type Link struct {
	CatalogAKey string `json:"catalog_a_key"`
	Season      int    `json:"season"`
	// SourceSeason is the season whose record supplied the data. It is 1 when
	// a later season fell back to the title record.
	SourceSeason int       `json:"source_season"`
	CatalogBKey  string    `json:"catalog_b_key"`
	CachedAt     time.Time `json:"cached_at"`
	Fresh        bool      `json:"fresh"`
	linkstore.Enrichment
}

// KnownMiss reports whether the title was searched for and not found.
func (l *Link) KnownMiss() bool {
	return l != nil && l.CatalogBKey == ""
}

// Request identifies one title lookup.
type Request struct {
	CatalogAKey string
	Title       string
	NativeTitle string
	Year        int
	Season      int
}

// Service serves cached links and fills gaps on demand.
type Service struct {
	store    *linkstore.Store
	resolver Resolver
	enricher Enricher
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithMetrics records lookup results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces the wall clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. ttl is the read-time freshness window.
func New(store *linkstore.Store, res Resolver, enricher Enricher, ttl time.Duration, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: res,
		enricher: enricher,
		ttl:      ttl,
		logger:   logging.NewComponentLogger(logger, "lookup"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetResolvedLink returns the title record, or nil when none is cached. A
// fresh record with an empty cast gets a cast-only refetch that is written
// back without touching its other fields; if that refetch fails the record
// is returned with a nil cast.
func (s *Service) GetResolvedLink(ctx context.Context, catalogAKey string) (*linkstore.ResolvedLink, error) {
	link, result, err := s.resolvedLink(ctx, catalogAKey)
	if err != nil {
		return nil, err
	}
	s.metrics.Lookup(result)
	return link, nil
}

// resolvedLink reads the title record and reports the read-path result
// without recording it.
func (s *Service) resolvedLink(ctx context.Context, catalogAKey string) (*linkstore.ResolvedLink, string, error) {
	link, err := s.store.GetResolvedLink(ctx, catalogAKey)
	if err != nil {
		return nil, "", err
	}
	if link == nil {
		return nil, ResultMiss, nil
	}
	if link.KnownMiss() || !link.Cast.Empty() || !linkstore.Fresh(link.CachedAt, s.now(), s.ttl) {
		return link, ResultHit, nil
	}
	return link, s.backfillCast(ctx, link), nil
}

func (s *Service) backfillCast(ctx context.Context, link *linkstore.ResolvedLink) string {
	logger := logging.WithContext(ctx, s.logger).With(
		logging.String(logging.FieldCatalogAKey, link.CatalogAKey),
		logging.String(logging.FieldCatalogBKey, link.CatalogBKey),
	)
	cast := s.enricher.FetchCast(ctx, link.CatalogBKey)
	if cast.Empty() {
		link.Cast = nil
		logger.Debug("cast backfill returned nothing")
		return ResultBackfillNil
	}
	link.Cast = cast
	if err := s.store.UpdateResolvedLinkCast(ctx, link.CatalogAKey, cast); err != nil {
		logging.WarnWithContext(logger, "cast backfill not persisted", "cast_backfill_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "cast will be refetched on the next read"),
		)
	}
	return ResultBackfill
}

// GetSeasonLink returns the view for a season. Seasons below 2 read the title
// record. A later season whose row is absent or pending falls back to the
// title record. Nil means nothing is cached for the title. Each call records
// one lookup result.
func (s *Service) GetSeasonLink(ctx context.Context, catalogAKey string, season int) (*Link, error) {
	link, result, err := s.seasonLink(ctx, catalogAKey, season)
	if err != nil {
		return nil, err
	}
	s.metrics.Lookup(result)
	return link, nil
}

func (s *Service) seasonLink(ctx context.Context, catalogAKey string, season int) (*Link, string, error) {
	if season < 1 {
		season = 1
	}
	fallback := false
	if season > 1 {
		row, err := s.store.GetSeasonLink(ctx, catalogAKey, season)
		if err != nil {
			return nil, "", err
		}
		if row != nil && !row.Pending() {
			return &Link{
				CatalogAKey:  row.CatalogAKey,
				Season:       season,
				SourceSeason: season,
				CatalogBKey:  row.CatalogBKey,
				CachedAt:     row.CachedAt,
				Fresh:        linkstore.Fresh(row.CachedAt, s.now(), s.ttl),
				Enrichment:   row.Enrichment,
			}, ResultHit, nil
		}
		fallback = true
	}

	link, result, err := s.resolvedLink(ctx, catalogAKey)
	if err != nil || link == nil {
		return nil, result, err
	}
	if fallback {
		result = ResultFallback
	}
	return &Link{
		CatalogAKey:  link.CatalogAKey,
		Season:       season,
		SourceSeason: 1,
		CatalogBKey:  link.CatalogBKey,
		CachedAt:     link.CachedAt,
		Fresh:        linkstore.Fresh(link.CachedAt, s.now(), s.ttl),
		Enrichment:   link.Enrichment,
	}, result, nil
}

// Lookup serves req from the cache, resolving and enriching the title first
// when its record is missing or stale. Misses are cached as empty-key
// records. Upstream failures leave enrichment absent rather than erroring.
// A refresh outcome takes the place of the cache read's result in metrics.
func (s *Service) Lookup(ctx context.Context, req Request) (*Link, error) {
	req.CatalogAKey = strings.TrimSpace(req.CatalogAKey)
	if req.CatalogAKey == "" {
		return nil, services.Wrap(services.ErrValidation, "lookup", "lookup", "catalog a key required", nil)
	}
	base, err := s.store.GetResolvedLink(ctx, req.CatalogAKey)
	if err != nil {
		return nil, err
	}
	refreshed := ""
	if base == nil || !linkstore.Fresh(base.CachedAt, s.now(), s.ttl) {
		refreshed, err = s.refresh(ctx, req, base)
		if err != nil {
			return nil, err
		}
	}
	link, result, err := s.seasonLink(ctx, req.CatalogAKey, req.Season)
	if err != nil {
		return nil, err
	}
	if refreshed != "" {
		result = refreshed
	}
	s.metrics.Lookup(result)
	return link, nil
}

func (s *Service) refresh(ctx context.Context, req Request, base *linkstore.ResolvedLink) (string, error) {
	logger := logging.WithContext(ctx, s.logger).With(logging.String(logging.FieldCatalogAKey, req.CatalogAKey))
	catalogBKey, result := "", ""
	if base != nil {
		catalogBKey = base.CatalogBKey
	}
	if catalogBKey == "" {
		if strings.TrimSpace(req.Title) == "" {
			logger.Debug("no title to resolve; serving cache as is")
			return "", nil
		}
		match := s.resolver.Resolve(ctx, resolver.Query{Title: req.Title, NativeTitle: req.NativeTitle, Year: req.Year})
		if match == nil {
			return ResultKnownMiss, s.store.UpsertResolvedLink(ctx, req.CatalogAKey, "", linkstore.Enrichment{})
		}
		catalogBKey = match.Candidate.Key
		result = ResultResolved
	}

	enrichment := s.enricher.FetchEnrichment(ctx, catalogBKey)
	if enrichment == nil {
		if base != nil && base.CatalogBKey != "" {
			logger.Debug("enrichment unavailable; keeping stale record")
			return ResultUnavailable, nil
		}
		return ResultUnavailable, s.store.UpsertResolvedLink(ctx, req.CatalogAKey, catalogBKey, linkstore.Enrichment{})
	}
	return result, s.store.UpsertResolvedLink(ctx, req.CatalogAKey, catalogBKey, *enrichment)
}
