package enrichment

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"crosslink/internal/catalog/mdl"
	"crosslink/internal/linkstore"
	"crosslink/internal/logging"
)

// Source is the subset of the catalog B client used here. Implementations
// return nil instead of an error when a call cannot be served.
type Source interface {
	Details(ctx context.Context, key string) *mdl.Details
	Cast(ctx context.Context, key string) *mdl.Cast
	Person(ctx context.Context, personKey string) *mdl.Person
}

// Fetcher builds enrichment records from a Source.
type Fetcher struct {
	source Source
	logger *slog.Logger
}

// New constructs a Fetcher.
func New(source Source, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		logger: logging.NewComponentLogger(logger, "enrichment"),
	}
}

// FetchEnrichment returns the enrichment for catalogBKey, or nil when the
// details call yields nothing.
func (f *Fetcher) FetchEnrichment(ctx context.Context, catalogBKey string) *linkstore.Enrichment {
	var (
		details *mdl.Details
		cast    *mdl.Cast
		g       errgroup.Group
	)
	g.Go(func() error {
		details = f.source.Details(ctx, catalogBKey)
		return nil
	})
	g.Go(func() error {
		cast = f.source.Cast(ctx, catalogBKey)
		return nil
	})
	_ = g.Wait()

	logger := logging.WithContext(ctx, f.logger).With(logging.String(logging.FieldCatalogBKey, catalogBKey))
	if details == nil {
		logger.Debug("details unavailable; enrichment skipped")
		return nil
	}
	enrichment := &linkstore.Enrichment{
		Rating:     ParseRating(details.Rating),
		Rank:       ParseRank(details.Ranked),
		Popularity: ParseRank(details.Popularity),
		Tags:       details.Tags,
		Cast:       NormalizeCast(cast),
	}
	if enrichment.Tags == nil {
		enrichment.Tags = []string{}
	}
	if cast == nil {
		logger.Debug("cast unavailable; stored without cast")
	}
	return enrichment
}

// FetchCast fetches only the cast, or nil when unavailable.
func (f *Fetcher) FetchCast(ctx context.Context, catalogBKey string) *linkstore.CastBuckets {
	return NormalizeCast(f.source.Cast(ctx, catalogBKey))
}

// FetchPerson fetches a person profile, or nil when unavailable.
func (f *Fetcher) FetchPerson(ctx context.Context, personKey string) *mdl.Person {
	return f.source.Person(ctx, personKey)
}
