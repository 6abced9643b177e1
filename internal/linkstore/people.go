package linkstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crosslink/internal/services"
)

// GetPersonProfile returns the cached profile for personKey, or nil.
func (s *Store) GetPersonProfile(ctx context.Context, personKey string) (*PersonProfile, error) {
	var (
		profile  PersonProfile
		payload  string
		cachedAt int64
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT person_key, payload, cached_at FROM person_profiles WHERE person_key = ?",
		personKey,
	).Scan(&profile.PersonKey, &payload, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person %s: %w", personKey, err)
	}
	if !json.Valid([]byte(payload)) {
		return nil, services.Wrap(services.ErrCorruptRecord, "linkstore", "get person", personKey, nil)
	}
	profile.Payload = json.RawMessage(payload)
	profile.CachedAt = fromMillis(cachedAt)
	return &profile, nil
}

// UpsertPersonProfile stores payload for personKey and stamps cached_at.
func (s *Store) UpsertPersonProfile(ctx context.Context, personKey string, payload json.RawMessage) error {
	if strings.TrimSpace(personKey) == "" {
		return services.Wrap(services.ErrValidation, "linkstore", "upsert person", "person key required", nil)
	}
	if !json.Valid(payload) {
		return services.Wrap(services.ErrValidation, "linkstore", "upsert person", "payload must be JSON", nil)
	}
	_, err := s.exec(ctx, `
		INSERT INTO person_profiles (person_key, payload, cached_at) VALUES (?, ?, ?)
		ON CONFLICT(person_key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		personKey, string(payload), s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert person %s: %w", personKey, err)
	}
	return nil
}

// PersonCachedAt returns cached_at for every stored profile.
func (s *Store) PersonCachedAt(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT person_key, cached_at FROM person_profiles")
	if err != nil {
		return nil, fmt.Errorf("list person timestamps: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			key string
			ts  int64
		)
		if err := rows.Scan(&key, &ts); err != nil {
			return nil, err
		}
		out[key] = fromMillis(ts)
	}
	return out, rows.Err()
}

// ReferencedPersonKeys returns the sorted union of person keys referenced by
// the cast of every cached resolved link and season link.
func (s *Store) ReferencedPersonKeys(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, table := range []string{"resolved_links", "season_links"} {
		if err := s.collectPersonKeys(ctx, table, seen); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) collectPersonKeys(ctx context.Context, table string, seen map[string]struct{}) error {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT cast_json FROM "+table+" WHERE cast_json IS NOT NULL AND catalog_b_key <> ''")
	if err != nil {
		return fmt.Errorf("scan %s cast: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		cast, err := decodeCast(raw)
		if err != nil {
			return err
		}
		for _, key := range cast.PersonKeys() {
			seen[key] = struct{}{}
		}
	}
	return rows.Err()
}
