package linkstore

import (
	"encoding/json"
	"time"
)

// Role buckets of a cast list.
const (
	RoleMain    = "main"
	RoleSupport = "support"
	RoleGuest   = "guest"
)

// CastEntry is one credited person on a title.
type CastEntry struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	PersonKey string `json:"person_key"`
	Character string `json:"character"`
	RoleType  string `json:"role_type"`
}

// CastBuckets groups a cast list by role.
type CastBuckets struct {
	Main    []CastEntry `json:"main"`
	Support []CastEntry `json:"support"`
	Guest   []CastEntry `json:"guest"`
}

// Empty reports whether every bucket is empty. A nil receiver is empty.
func (c *CastBuckets) Empty() bool {
	return c == nil || len(c.Main)+len(c.Support)+len(c.Guest) == 0
}

// PersonKeys returns the distinct non-empty person keys in bucket order.
func (c *CastBuckets) PersonKeys() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var keys []string
	for _, bucket := range [][]CastEntry{c.Main, c.Support, c.Guest} {
		for _, entry := range bucket {
			if entry.PersonKey == "" {
				continue
			}
			if _, ok := seen[entry.PersonKey]; ok {
				continue
			}
			seen[entry.PersonKey] = struct{}{}
			keys = append(keys, entry.PersonKey)
		}
	}
	return keys
}

// Enrichment holds the secondary-catalog fields attached to a link.
type Enrichment struct {
	Rating     *float64     `json:"rating"`
	Rank       *int         `json:"rank"`
	Popularity *int         `json:"popularity"`
	Tags       []string     `json:"tags"`
	Cast       *CastBuckets `json:"cast"`
}

// Pending reports whether no enrichment field has been populated yet.
func (e Enrichment) Pending() bool {
	return e.Rating == nil && e.Rank == nil && e.Popularity == nil && len(e.Tags) == 0 && e.Cast.Empty()
}

// ResolvedLink is the primary cache record for a catalog A key (season 1).
type ResolvedLink struct {
	CatalogAKey string    `json:"catalog_a_key"`
	CatalogBKey string    `json:"catalog_b_key"`
	CachedAt    time.Time `json:"cached_at"`
	Enrichment
}

// KnownMiss reports whether resolution was attempted and found nothing.
func (l ResolvedLink) KnownMiss() bool {
	return l.CatalogBKey == ""
}

// SeasonLink overrides the resolved link for seasons two and up.
type SeasonLink struct {
	CatalogAKey string    `json:"catalog_a_key"`
	Season      int       `json:"season"`
	CatalogBKey string    `json:"catalog_b_key"`
	CachedAt    time.Time `json:"cached_at"`
	Enrichment
}

// Pending reports whether the row carries no usable data yet. Readers treat
// a pending row as absent and fall back to season 1.
func (l SeasonLink) Pending() bool {
	return l.CatalogBKey == "" || l.Enrichment.Pending()
}

// PersonProfile is a cached person document. Payload is opaque to the store.
type PersonProfile struct {
	PersonKey string          `json:"person_key"`
	Payload   json.RawMessage `json:"payload"`
	CachedAt  time.Time       `json:"cached_at"`
}

// Watch statuses.
const (
	StatusWatching  = "watching"
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
	StatusOnHold    = "on_hold"
	StatusDropped   = "dropped"
)

// ValidStatus reports whether status is one of the known watch statuses.
func ValidStatus(status string) bool {
	switch status {
	case StatusWatching, StatusPlanned, StatusCompleted, StatusOnHold, StatusDropped:
		return true
	default:
		return false
	}
}

// WatchItem is one primary-catalog title on the user's list.
type WatchItem struct {
	CatalogAKey string    `json:"catalog_a_key"`
	Title       string    `json:"title"`
	NativeTitle string    `json:"native_title,omitempty"`
	Year        int       `json:"year"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SyncRun is one persisted scheduled-sync sub-task result.
type SyncRun struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Task       string    `json:"task"`
	Success    bool      `json:"success"`
	Count      int       `json:"count"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
