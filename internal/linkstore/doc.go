// Package linkstore persists resolved cross-catalog links in SQLite.
//
// It owns five tables: resolved_links (one row per primary-catalog key,
// season 1), season_links (seasons two and up), person_profiles,
// watch_progress (the primary-catalog item list and the user's watch state),
// and sync_runs (the scheduled-sync audit trail).
//
// The store is a keyed map with timestamps. It never decides freshness on its
// own; callers compare CachedAt against their TTL with Fresh. Cast and tag
// payloads are stored as versioned JSON documents and are validated on read,
// so a malformed row surfaces as services.ErrCorruptRecord at this boundary.
//
// A resolved link whose CatalogBKey is empty records a known miss. Once a
// non-empty CatalogBKey is written it is only replaced through Relink.
package linkstore
