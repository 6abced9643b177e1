package linkstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"crosslink/internal/services"
)

const linkEnrichmentColumns = "catalog_b_key, rating, rank, popularity, tags_json, cast_json, cached_at"

// LinkFilter narrows list queries. Zero values disable a predicate.
type LinkFilter struct {
	// NonEmptyKey excludes known misses.
	NonEmptyKey bool
	// CachedBefore keeps rows whose cached_at is strictly earlier.
	CachedBefore time.Time
	// Limit caps the number of rows; zero means unlimited.
	Limit int
}

func (f LinkFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.NonEmptyKey {
		clauses = append(clauses, "catalog_b_key <> ''")
	}
	if !f.CachedBefore.IsZero() {
		clauses = append(clauses, "cached_at < ?")
		args = append(args, f.CachedBefore.UTC().UnixMilli())
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (f LinkFilter) limit() string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", f.Limit)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResolvedLink(scanner rowScanner) (*ResolvedLink, error) {
	var (
		link     ResolvedLink
		cols     enrichmentColumns
		cachedAt int64
	)
	if err := scanner.Scan(&link.CatalogAKey, &link.CatalogBKey, &cols.rating, &cols.rank, &cols.popularity, &cols.tags, &cols.cast, &cachedAt); err != nil {
		return nil, err
	}
	enrichment, err := cols.decode()
	if err != nil {
		return nil, fmt.Errorf("resolved link %s: %w", link.CatalogAKey, err)
	}
	link.Enrichment = enrichment
	link.CachedAt = fromMillis(cachedAt)
	return &link, nil
}

func scanSeasonLink(scanner rowScanner) (*SeasonLink, error) {
	var (
		link     SeasonLink
		cols     enrichmentColumns
		cachedAt int64
	)
	if err := scanner.Scan(&link.CatalogAKey, &link.Season, &link.CatalogBKey, &cols.rating, &cols.rank, &cols.popularity, &cols.tags, &cols.cast, &cachedAt); err != nil {
		return nil, err
	}
	enrichment, err := cols.decode()
	if err != nil {
		return nil, fmt.Errorf("season link %s/%d: %w", link.CatalogAKey, link.Season, err)
	}
	link.Enrichment = enrichment
	link.CachedAt = fromMillis(cachedAt)
	return &link, nil
}

// GetResolvedLink returns the link for catalogAKey, or nil when none is cached.
func (s *Store) GetResolvedLink(ctx context.Context, catalogAKey string) (*ResolvedLink, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT catalog_a_key, "+linkEnrichmentColumns+" FROM resolved_links WHERE catalog_a_key = ?",
		catalogAKey,
	)
	link, err := scanResolvedLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// UpsertResolvedLink creates or replaces the enrichment fields of a link and
// stamps cached_at with the current time. An existing non-empty catalog B key
// is kept; use Relink to change it.
func (s *Store) UpsertResolvedLink(ctx context.Context, catalogAKey, catalogBKey string, e Enrichment) error {
	if strings.TrimSpace(catalogAKey) == "" {
		return services.Wrap(services.ErrValidation, "linkstore", "upsert resolved link", "catalog a key required", nil)
	}
	cols, err := encodeEnrichment(e)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `
		INSERT INTO resolved_links (catalog_a_key, `+linkEnrichmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(catalog_a_key) DO UPDATE SET
			catalog_b_key = CASE WHEN resolved_links.catalog_b_key = '' THEN excluded.catalog_b_key ELSE resolved_links.catalog_b_key END,
			rating = excluded.rating,
			rank = excluded.rank,
			popularity = excluded.popularity,
			tags_json = excluded.tags_json,
			cast_json = excluded.cast_json,
			cached_at = excluded.cached_at`,
		catalogAKey, catalogBKey, cols.rating, cols.rank, cols.popularity, cols.tags, cols.cast, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert resolved link %s: %w", catalogAKey, err)
	}
	return nil
}

// UpdateResolvedLinkCast replaces only the cast of an existing link. cached_at
// and every other field are left untouched.
func (s *Store) UpdateResolvedLinkCast(ctx context.Context, catalogAKey string, cast *CastBuckets) error {
	encoded, err := encodeCast(cast)
	if err != nil {
		return err
	}
	res, err := s.exec(ctx, "UPDATE resolved_links SET cast_json = ? WHERE catalog_a_key = ?", encoded, catalogAKey)
	if err != nil {
		return fmt.Errorf("update cast %s: %w", catalogAKey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "linkstore", "update cast", catalogAKey, nil)
	}
	return nil
}

// Relink replaces the catalog B key of a link and clears its enrichment so the
// next sync refreshes it. This is the only path that overwrites a non-empty key.
func (s *Store) Relink(ctx context.Context, catalogAKey, catalogBKey string) error {
	if strings.TrimSpace(catalogAKey) == "" || strings.TrimSpace(catalogBKey) == "" {
		return services.Wrap(services.ErrValidation, "linkstore", "relink", "both keys required", nil)
	}
	_, err := s.exec(ctx, `
		INSERT INTO resolved_links (catalog_a_key, catalog_b_key, cached_at) VALUES (?, ?, 0)
		ON CONFLICT(catalog_a_key) DO UPDATE SET
			catalog_b_key = excluded.catalog_b_key,
			rating = NULL, rank = NULL, popularity = NULL, tags_json = NULL, cast_json = NULL,
			cached_at = 0`,
		catalogAKey, catalogBKey,
	)
	if err != nil {
		return fmt.Errorf("relink %s: %w", catalogAKey, err)
	}
	return nil
}

// ListResolvedLinks returns links matching filter ordered by cached_at, oldest first.
func (s *Store) ListResolvedLinks(ctx context.Context, filter LinkFilter) ([]ResolvedLink, error) {
	where, args := filter.where()
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT catalog_a_key, "+linkEnrichmentColumns+" FROM resolved_links"+where+" ORDER BY cached_at, catalog_a_key"+filter.limit(),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list resolved links: %w", err)
	}
	defer rows.Close()

	var links []ResolvedLink
	for rows.Next() {
		link, err := scanResolvedLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// GetSeasonLink returns the override row for (catalogAKey, season), or nil.
func (s *Store) GetSeasonLink(ctx context.Context, catalogAKey string, season int) (*SeasonLink, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT catalog_a_key, season, "+linkEnrichmentColumns+" FROM season_links WHERE catalog_a_key = ? AND season = ?",
		catalogAKey, season,
	)
	link, err := scanSeasonLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// UpsertSeasonLink creates or replaces a season override. Season 1 belongs to
// the resolved link and is rejected.
func (s *Store) UpsertSeasonLink(ctx context.Context, catalogAKey string, season int, catalogBKey string, e Enrichment) error {
	if season < 2 {
		return services.Wrap(services.ErrValidation, "linkstore", "upsert season link",
			fmt.Sprintf("season %d is stored on the resolved link", season), nil)
	}
	if strings.TrimSpace(catalogAKey) == "" {
		return services.Wrap(services.ErrValidation, "linkstore", "upsert season link", "catalog a key required", nil)
	}
	cols, err := encodeEnrichment(e)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `
		INSERT INTO season_links (catalog_a_key, season, `+linkEnrichmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(catalog_a_key, season) DO UPDATE SET
			catalog_b_key = CASE WHEN season_links.catalog_b_key = '' THEN excluded.catalog_b_key ELSE season_links.catalog_b_key END,
			rating = excluded.rating,
			rank = excluded.rank,
			popularity = excluded.popularity,
			tags_json = excluded.tags_json,
			cast_json = excluded.cast_json,
			cached_at = excluded.cached_at`,
		catalogAKey, season, catalogBKey, cols.rating, cols.rank, cols.popularity, cols.tags, cols.cast, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert season link %s/%d: %w", catalogAKey, season, err)
	}
	return nil
}

// ListSeasonLinks returns season overrides matching filter, oldest first.
func (s *Store) ListSeasonLinks(ctx context.Context, filter LinkFilter) ([]SeasonLink, error) {
	where, args := filter.where()
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT catalog_a_key, season, "+linkEnrichmentColumns+" FROM season_links"+where+" ORDER BY cached_at, catalog_a_key, season"+filter.limit(),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list season links: %w", err)
	}
	defer rows.Close()

	var links []SeasonLink
	for rows.Next() {
		link, err := scanSeasonLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

// SeasonLinksFor returns every season override of catalogAKey ordered by season.
func (s *Store) SeasonLinksFor(ctx context.Context, catalogAKey string) ([]SeasonLink, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT catalog_a_key, season, "+linkEnrichmentColumns+" FROM season_links WHERE catalog_a_key = ? ORDER BY season",
		catalogAKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list seasons of %s: %w", catalogAKey, err)
	}
	defer rows.Close()

	var links []SeasonLink
	for rows.Next() {
		link, err := scanSeasonLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}
