package resolver

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"crosslink/internal/catalog/mdl"
	"crosslink/internal/logging"
	"crosslink/internal/metrics"
	"crosslink/internal/textutil"
)

// Searcher is the catalog B search call. It returns nil on failure.
type Searcher interface {
	Search(ctx context.Context, query string) []mdl.Candidate
}

// Query describes the title being resolved.
type Query struct {
	Title       string
	NativeTitle string
	// Year is the release year; zero disables the year gate.
	Year int
}

// Match reasons reported by Pick.
const (
	ReasonOnlyCandidate = "only_candidate"
	ReasonExactTitle    = "exact_title"
	ReasonPartialTitle  = "partial_title"
	ReasonFallback      = "fallback_first"
)

// Match is a chosen candidate and why it was chosen.
type Match struct {
	Candidate mdl.Candidate
	Reason    string
}

// Resolver runs searches and picks a match.
type Resolver struct {
	searcher Searcher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New constructs a Resolver.
func New(searcher Searcher, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		searcher: searcher,
		logger:   logging.NewComponentLogger(logger, "resolver"),
		metrics:  m,
	}
}

// Resolve returns the best match for q, or nil when no year-plausible
// candidate exists.
func (r *Resolver) Resolve(ctx context.Context, q Query) *Match {
	primaryQuery := textutil.SearchQuery(q.Title)
	nativeQuery := ""
	if strings.TrimSpace(q.NativeTitle) != "" {
		nativeQuery = textutil.SearchQuery(q.NativeTitle)
	}
	if nativeQuery == primaryQuery {
		nativeQuery = ""
	}

	var (
		native  []mdl.Candidate
		primary []mdl.Candidate
		g       errgroup.Group
	)
	if nativeQuery != "" {
		g.Go(func() error {
			native = r.searcher.Search(ctx, nativeQuery)
			return nil
		})
	}
	if primaryQuery != "" {
		g.Go(func() error {
			primary = r.searcher.Search(ctx, primaryQuery)
			return nil
		})
	}
	_ = g.Wait()

	logger := logging.WithContext(ctx, r.logger)
	match := Pick(native, primary, q)
	if match == nil {
		r.metrics.Resolution(metrics.OutcomeMiss)
		attrs := append(logging.DecisionAttrs("resolve", "miss", "year gate"),
			logging.String("title", q.Title),
			logging.Int("year", q.Year),
			logging.Int("native_hits", len(native)),
			logging.Int("primary_hits", len(primary)),
		)
		logger.Info("no year-plausible candidate", logging.Args(attrs...)...)
		return nil
	}
	r.metrics.Resolution(metrics.OutcomeSuccess)
	attrs := append(logging.DecisionAttrs("resolve", "matched", match.Reason),
		logging.String("title", q.Title),
		logging.Int("year", q.Year),
		logging.String(logging.FieldCatalogBKey, match.Candidate.Key),
		logging.String("candidate_title", match.Candidate.Title),
	)
	logger.Info("title resolved", logging.Args(attrs...)...)
	return match
}

// Pick selects a candidate from the native and primary search results.
func Pick(native, primary []mdl.Candidate, q Query) *Match {
	pool := yearGate(merge(native, primary), q.Year)
	if len(pool) == 0 {
		return nil
	}
	if len(pool) == 1 {
		return &Match{Candidate: pool[0], Reason: ReasonOnlyCandidate}
	}

	queries := priorityQueries(q)
	titles := make([]string, len(pool))
	for i, c := range pool {
		titles[i] = textutil.Normalize(c.Title)
	}

	for _, query := range queries {
		for i, title := range titles {
			if title == query {
				return &Match{Candidate: pool[i], Reason: ReasonExactTitle}
			}
		}
	}
	for _, query := range queries {
		for i, title := range titles {
			if title == "" {
				continue
			}
			if strings.Contains(title, query) || strings.Contains(query, title) {
				return &Match{Candidate: pool[i], Reason: ReasonPartialTitle}
			}
		}
	}
	return &Match{Candidate: pool[0], Reason: ReasonFallback}
}

func merge(native, primary []mdl.Candidate) []mdl.Candidate {
	seen := make(map[string]struct{}, len(native)+len(primary))
	pool := make([]mdl.Candidate, 0, len(native)+len(primary))
	for _, list := range [][]mdl.Candidate{native, primary} {
		for _, c := range list {
			if c.Key == "" {
				continue
			}
			if _, ok := seen[c.Key]; ok {
				continue
			}
			seen[c.Key] = struct{}{}
			pool = append(pool, c)
		}
	}
	return pool
}

func yearGate(pool []mdl.Candidate, year int) []mdl.Candidate {
	if year <= 0 {
		return pool
	}
	exact := filter(pool, func(c mdl.Candidate) bool { return c.Year == year })
	if len(exact) > 0 {
		return exact
	}
	return filter(pool, func(c mdl.Candidate) bool {
		return c.Year > 0 && c.Year >= year-1 && c.Year <= year+1
	})
}

func filter(pool []mdl.Candidate, keep func(mdl.Candidate) bool) []mdl.Candidate {
	var out []mdl.Candidate
	for _, c := range pool {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func priorityQueries(q Query) []string {
	var queries []string
	for _, raw := range []string{q.NativeTitle, q.Title} {
		normalized := textutil.Normalize(raw)
		if normalized == "" {
			continue
		}
		duplicate := false
		for _, existing := range queries {
			if existing == normalized {
				duplicate = true
				break
			}
		}
		if !duplicate {
			queries = append(queries, normalized)
		}
	}
	return queries
}
