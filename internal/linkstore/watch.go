package linkstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"crosslink/internal/services"
)

// UpsertWatchItem records a title and its watch status.
func (s *Store) UpsertWatchItem(ctx context.Context, item WatchItem) error {
	item.CatalogAKey = strings.TrimSpace(item.CatalogAKey)
	item.Title = strings.TrimSpace(item.Title)
	item.Status = strings.ToLower(strings.TrimSpace(item.Status))
	if item.CatalogAKey == "" || item.Title == "" {
		return services.Wrap(services.ErrValidation, "linkstore", "upsert watch item", "catalog a key and title required", nil)
	}
	if !ValidStatus(item.Status) {
		return services.Wrap(services.ErrValidation, "linkstore", "upsert watch item", fmt.Sprintf("unknown status %q", item.Status), nil)
	}
	_, err := s.exec(ctx, `
		INSERT INTO watch_progress (catalog_a_key, title, native_title, year, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(catalog_a_key) DO UPDATE SET
			title = excluded.title,
			native_title = excluded.native_title,
			year = excluded.year,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		item.CatalogAKey, item.Title, strings.TrimSpace(item.NativeTitle), item.Year, item.Status, s.stamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert watch item %s: %w", item.CatalogAKey, err)
	}
	return nil
}

// GetWatchItem returns the watch entry for catalogAKey, or nil.
func (s *Store) GetWatchItem(ctx context.Context, catalogAKey string) (*WatchItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT catalog_a_key, title, native_title, year, status, updated_at FROM watch_progress WHERE catalog_a_key = ?",
		catalogAKey,
	)
	item, err := scanWatchItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

// ListWatchItems returns watch entries, optionally limited to statuses, most
// recently updated first.
func (s *Store) ListWatchItems(ctx context.Context, statuses ...string) ([]WatchItem, error) {
	query := "SELECT catalog_a_key, title, native_title, year, status, updated_at FROM watch_progress"
	var args []any
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY updated_at DESC, catalog_a_key"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list watch items: %w", err)
	}
	defer rows.Close()

	var items []WatchItem
	for rows.Next() {
		item, err := scanWatchItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanWatchItem(scanner rowScanner) (*WatchItem, error) {
	var (
		item      WatchItem
		updatedAt int64
	)
	if err := scanner.Scan(&item.CatalogAKey, &item.Title, &item.NativeTitle, &item.Year, &item.Status, &updatedAt); err != nil {
		return nil, err
	}
	item.UpdatedAt = fromMillis(updatedAt)
	return &item, nil
}
