package api

import (
	"time"

	"crosslink/internal/linkstore"
	"crosslink/internal/lookup"
	"crosslink/internal/syncer"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// LinkResponse is the transport form of a cached link.
type LinkResponse struct {
	CatalogAKey  string                 `json:"catalogAKey"`
	Season       int                    `json:"season"`
	SourceSeason int                    `json:"sourceSeason"`
	CatalogBKey  string                 `json:"catalogBKey"`
	KnownMiss    bool                   `json:"knownMiss"`
	Fresh        bool                   `json:"fresh"`
	CachedAt     string                 `json:"cachedAt,omitempty"`
	Rating       *float64               `json:"rating"`
	Rank         *int                   `json:"rank"`
	Popularity   *int                   `json:"popularity"`
	Tags         []string               `json:"tags"`
	Cast         *linkstore.CastBuckets `json:"cast"`
}

// SyncResponse reports one scheduled sync.
type SyncResponse struct {
	RunID   string              `json:"runId"`
	Results []syncer.TaskResult `json:"results"`
}

// SyncRun is one audit row.
type SyncRun struct {
	RunID      string `json:"runId"`
	Task       string `json:"task"`
	Success    bool   `json:"success"`
	Count      int    `json:"count"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

// SyncRunsResponse lists audit rows, newest first.
type SyncRunsResponse struct {
	Runs []SyncRun `json:"runs"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FromLink converts a read-path view.
func FromLink(link *lookup.Link) LinkResponse {
	if link == nil {
		return LinkResponse{}
	}
	tags := link.Tags
	if tags == nil {
		tags = []string{}
	}
	return LinkResponse{
		CatalogAKey:  link.CatalogAKey,
		Season:       link.Season,
		SourceSeason: link.SourceSeason,
		CatalogBKey:  link.CatalogBKey,
		KnownMiss:    link.KnownMiss(),
		Fresh:        link.Fresh,
		CachedAt:     formatTime(link.CachedAt),
		Rating:       link.Rating,
		Rank:         link.Rank,
		Popularity:   link.Popularity,
		Tags:         tags,
		Cast:         link.Cast,
	}
}

// FromSyncRuns converts stored audit rows.
func FromSyncRuns(runs []linkstore.SyncRun) SyncRunsResponse {
	out := SyncRunsResponse{Runs: make([]SyncRun, 0, len(runs))}
	for _, run := range runs {
		out.Runs = append(out.Runs, SyncRun{
			RunID:      run.RunID,
			Task:       run.Task,
			Success:    run.Success,
			Count:      run.Count,
			Error:      run.Error,
			DurationMS: run.DurationMS,
			CreatedAt:  formatTime(run.CreatedAt),
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
