package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crosslink/internal/batch"
	"crosslink/internal/catalog/tmdb"
	"crosslink/internal/linkstore"
	"crosslink/internal/logging"
	"crosslink/internal/resolver"
	"crosslink/internal/services"
)

// Warm phase names.
const (
	PhaseTitles = "titles"
	PhasePeople = "people"
)

// errEnrichmentUnavailable marks a resolved item whose details could not be fetched.
var errEnrichmentUnavailable = errors.New("enrichment unavailable")

// WarmOptions restricts a warm run to one phase.
type WarmOptions struct {
	Phase1Only bool
	Phase2Only bool
}

// PhaseSummary reports one warm phase.
type PhaseSummary struct {
	Phase      string `json:"phase"`
	Candidates int    `json:"candidates"`
	Misses     int    `json:"misses"`
	batch.Summary
}

// WarmSummary reports a warm run.
type WarmSummary struct {
	RunID          string        `json:"run_id"`
	Titles         *PhaseSummary `json:"titles,omitempty"`
	People         *PhaseSummary `json:"people,omitempty"`
	PersonKeysSeen int           `json:"person_keys_seen"`
	Duration       time.Duration `json:"duration"`
}

type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (s *keySet) add(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	for _, k := range keys {
		s.keys[k] = struct{}{}
	}
}

func (s *keySet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Warm runs the bulk resolution and enrichment job.
func (o *Orchestrator) Warm(ctx context.Context, opts WarmOptions) (*WarmSummary, error) {
	if opts.Phase1Only && opts.Phase2Only {
		return nil, services.Wrap(services.ErrValidation, "syncer", "warm", "phase1-only and phase2-only are mutually exclusive", nil)
	}
	release, err := o.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	runID := o.newRunID()
	ctx = services.WithRunID(ctx, runID)
	start := o.now()
	summary := &WarmSummary{RunID: runID}
	collected := &keySet{}

	if !opts.Phase2Only {
		phase, err := o.warmTitles(services.WithTask(ctx, PhaseTitles), collected)
		if err != nil {
			return nil, err
		}
		summary.Titles = phase
	}
	if !opts.Phase1Only {
		phase, err := o.warmPeople(services.WithTask(ctx, PhasePeople), collected)
		if err != nil {
			return nil, err
		}
		summary.People = phase
	}
	summary.PersonKeysSeen = collected.len()
	summary.Duration = o.now().Sub(start)

	logging.WithContext(ctx, o.logger).Info("warm complete",
		logging.Int("person_keys_seen", summary.PersonKeysSeen),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (o *Orchestrator) batchOptions(phase string) batch.Options {
	return batch.Options{
		Concurrency: o.opts.Concurrency,
		RoundDelay:  o.opts.RoundDelay,
		Phase:       phase,
		Logger:      o.logger,
		Metrics:     o.metrics,
		Sleep:       o.sleep,
	}
}

func (o *Orchestrator) warmTitles(ctx context.Context, collected *keySet) (*PhaseSummary, error) {
	items, err := o.store.ListWatchItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm titles: %w", err)
	}
	var misses atomic.Int32
	summary := batch.Run(ctx, items, o.batchOptions(PhaseTitles), func(ctx context.Context, item linkstore.WatchItem) error {
		return o.warmTitle(ctx, item, collected, &misses)
	})
	return &PhaseSummary{Phase: PhaseTitles, Candidates: len(items), Misses: int(misses.Load()), Summary: summary}, nil
}

// warmTitle refreshes season 1 and, for TV, every later season of one item.
func (o *Orchestrator) warmTitle(ctx context.Context, item linkstore.WatchItem, collected *keySet, misses *atomic.Int32) error {
	key, err := tmdb.ParseKey(item.CatalogAKey)
	if err != nil {
		return services.Wrap(services.ErrValidation, "syncer", "warm title", item.CatalogAKey, err)
	}
	logger := logging.WithContext(ctx, o.logger).With(logging.String(logging.FieldCatalogAKey, item.CatalogAKey))

	link, err := o.store.GetResolvedLink(ctx, item.CatalogAKey)
	if err != nil {
		return err
	}
	titleStale := link == nil || !linkstore.Fresh(link.CachedAt, o.now(), o.opts.TitleTTL)

	var (
		details    *tmdb.Details
		detailsErr error
	)
	if key.Media == tmdb.MediaTV || (titleStale && item.Year == 0) {
		needDetails := titleStale
		if !needDetails && key.Media == tmdb.MediaTV {
			needDetails, err = o.seasonsNeedRefresh(ctx, item.CatalogAKey)
			if err != nil {
				return err
			}
		}
		if needDetails {
			details, err = o.catalog.GetDetails(ctx, key)
			if err != nil {
				if !services.Degrades(err) {
					return fmt.Errorf("%s: catalog details: %w", item.CatalogAKey, err)
				}
				// Season 1 still resolves from the watch list entry.
				detailsErr = fmt.Errorf("%s: catalog details: %w", item.CatalogAKey, err)
			}
		}
	}

	var itemErr error
	if titleStale {
		q := resolver.Query{Title: item.Title, NativeTitle: item.NativeTitle, Year: item.Year}
		if q.Year == 0 && details != nil {
			q.Year = details.Year
		}
		if q.NativeTitle == "" && details != nil && details.OriginalTitle != "" && details.OriginalTitle != details.Title {
			q.NativeTitle = details.OriginalTitle
		}
		existing := ""
		if link != nil {
			existing = link.CatalogBKey
		}
		itemErr = o.refreshLink(ctx, item.CatalogAKey, 1, existing, q, collected, misses)
		if itemErr != nil {
			logger.Debug("season 1 refresh incomplete", logging.Error(itemErr))
		}
	}

	if details == nil {
		return errors.Join(itemErr, detailsErr)
	}
	for _, season := range details.Seasons {
		if season.Number < 2 {
			continue
		}
		existing, err := o.store.GetSeasonLink(ctx, item.CatalogAKey, season.Number)
		if err != nil {
			return err
		}
		if existing != nil && linkstore.Fresh(existing.CachedAt, o.now(), o.opts.TitleTTL) {
			continue
		}
		q := resolver.Query{
			Title: fmt.Sprintf("%s Season %d", item.Title, season.Number),
			Year:  season.AirYear,
		}
		knownKey := ""
		if existing != nil {
			knownKey = existing.CatalogBKey
		}
		if err := o.refreshLink(ctx, item.CatalogAKey, season.Number, knownKey, q, collected, misses); err != nil && itemErr == nil {
			itemErr = err
		}
	}
	return itemErr
}

// seasonsNeedRefresh reports whether a fresh TV title still needs its catalog
// details: some season row is stale, or no season row was ever written. The
// second case re-discovers seasons after a details failure and costs one
// catalog call per warm for single-season shows.
func (o *Orchestrator) seasonsNeedRefresh(ctx context.Context, catalogAKey string) (bool, error) {
	seasons, err := o.store.SeasonLinksFor(ctx, catalogAKey)
	if err != nil {
		return false, err
	}
	if len(seasons) == 0 {
		return true, nil
	}
	for _, s := range seasons {
		if !linkstore.Fresh(s.CachedAt, o.now(), o.opts.TitleTTL) {
			return true, nil
		}
	}
	return false, nil
}

// refreshLink resolves (when no key is known) and enriches one link, then
// persists whatever was obtained. Misses are persisted as empty-key rows.
func (o *Orchestrator) refreshLink(ctx context.Context, catalogAKey string, season int, knownKey string, q resolver.Query, collected *keySet, misses *atomic.Int32) error {
	catalogBKey := knownKey
	if catalogBKey == "" {
		match := o.resolver.Resolve(ctx, q)
		if match == nil {
			misses.Add(1)
			return o.upsert(ctx, catalogAKey, season, "", linkstore.Enrichment{})
		}
		catalogBKey = match.Candidate.Key
	}

	enrichment := o.enricher.FetchEnrichment(ctx, catalogBKey)
	if enrichment == nil {
		if err := o.upsert(ctx, catalogAKey, season, catalogBKey, linkstore.Enrichment{}); err != nil {
			return err
		}
		return fmt.Errorf("%s season %d (%s): %w", catalogAKey, season, catalogBKey, errEnrichmentUnavailable)
	}
	if err := o.upsert(ctx, catalogAKey, season, catalogBKey, *enrichment); err != nil {
		return err
	}
	collected.add(enrichment.Cast.PersonKeys())
	return nil
}

func (o *Orchestrator) upsert(ctx context.Context, catalogAKey string, season int, catalogBKey string, e linkstore.Enrichment) error {
	if season <= 1 {
		return o.store.UpsertResolvedLink(ctx, catalogAKey, catalogBKey, e)
	}
	return o.store.UpsertSeasonLink(ctx, catalogAKey, season, catalogBKey, e)
}

func (o *Orchestrator) warmPeople(ctx context.Context, collected *keySet) (*PhaseSummary, error) {
	referenced, err := o.store.ReferencedPersonKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm people: %w", err)
	}
	collected.add(referenced)

	stamps, err := o.store.PersonCachedAt(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm people: %w", err)
	}
	now := o.now()
	var due []string
	for _, key := range referenced {
		if linkstore.Fresh(stamps[key], now, o.opts.PersonTTL) {
			continue
		}
		due = append(due, key)
	}

	summary := batch.Run(ctx, due, o.batchOptions(PhasePeople), func(ctx context.Context, personKey string) error {
		person := o.enricher.FetchPerson(ctx, personKey)
		if person == nil {
			return fmt.Errorf("person %s: %w", personKey, errEnrichmentUnavailable)
		}
		return o.store.UpsertPersonProfile(ctx, personKey, person.Payload)
	})
	return &PhaseSummary{Phase: PhasePeople, Candidates: len(referenced), Summary: summary}, nil
}
