package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crosslink/internal/linkstore"
	"crosslink/internal/logging"
	"crosslink/internal/services"
)

// Scheduled sync task names.
const (
	TaskPriority = "priority"
	TaskStale    = "stale"
)

// TaskResult reports one sub-task of a scheduled sync.
type TaskResult struct {
	Task       string `json:"task"`
	Success    bool   `json:"success"`
	Count      int    `json:"count"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// SyncReport is the outcome of one scheduled sync.
type SyncReport struct {
	RunID   string       `json:"run_id"`
	Results []TaskResult `json:"results"`
}

// AuditRows converts the report into sync_runs rows.
func (r *SyncReport) AuditRows() []linkstore.SyncRun {
	if r == nil {
		return nil
	}
	rows := make([]linkstore.SyncRun, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, linkstore.SyncRun{
			RunID:      r.RunID,
			Task:       res.Task,
			Success:    res.Success,
			Count:      res.Count,
			Error:      res.Error,
			DurationMS: res.DurationMS,
		})
	}
	return rows
}

// target is one already-resolved link scheduled for refresh. cast is the
// stored cast, carried over when the refetch returns none.
type target struct {
	catalogAKey string
	season      int
	catalogBKey string
	cast        *linkstore.CastBuckets
}

func (t target) id() string {
	return fmt.Sprintf("%s#%d", t.catalogAKey, t.season)
}

// RunScheduledSync refreshes priority links then stale links until budget is
// spent. A budget of zero uses the configured default.
func (o *Orchestrator) RunScheduledSync(ctx context.Context, budget time.Duration) (*SyncReport, error) {
	if budget <= 0 {
		budget = o.opts.TimeBudget
	}
	release, err := o.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	report := &SyncReport{RunID: o.newRunID()}
	ctx = services.WithRunID(ctx, report.RunID)
	start := o.now()
	deadline := start.Add(budget)

	priority, priorityErr := o.priorityTargets(ctx)
	seen := make(map[string]struct{}, len(priority))
	for _, t := range priority {
		seen[t.id()] = struct{}{}
	}
	stale, staleErr := o.staleTargets(ctx, start, seen)

	first := true
	for _, tier := range []struct {
		task    string
		targets []target
		err     error
	}{
		{TaskPriority, priority, priorityErr},
		{TaskStale, stale, staleErr},
	} {
		taskCtx := services.WithTask(ctx, tier.task)
		taskStart := o.now()
		result := TaskResult{Task: tier.task}
		if tier.err != nil {
			result.Error = tier.err.Error()
		} else {
			result = o.refreshTier(taskCtx, tier.task, tier.targets, deadline, &first)
		}
		result.DurationMS = o.now().Sub(taskStart).Milliseconds()
		o.metrics.SyncTask(tier.task, result.Success, o.now().Sub(taskStart))
		report.Results = append(report.Results, result)
	}

	logging.WithContext(ctx, o.logger).Info("scheduled sync complete",
		logging.Duration("budget", budget),
		logging.Duration("elapsed", o.now().Sub(start)),
		logging.Int("priority_targets", len(priority)),
		logging.Int("stale_targets", len(stale)),
	)
	return report, nil
}

func (o *Orchestrator) refreshTier(ctx context.Context, task string, targets []target, deadline time.Time, first *bool) TaskResult {
	result := TaskResult{Task: task}
	logger := logging.WithContext(ctx, o.logger)
	var (
		failed    int
		processed int
		exhausted bool
	)
	for _, t := range targets {
		if !*first {
			if err := o.sleep(ctx, o.opts.ItemDelay); err != nil {
				exhausted = true
				break
			}
		}
		if !o.now().Before(deadline) {
			exhausted = true
			break
		}
		*first = false
		processed++

		enrichment := o.enricher.FetchEnrichment(ctx, t.catalogBKey)
		if enrichment == nil {
			failed++
			logging.WarnWithContext(logger, "sync item enrichment unavailable", "sync_item_failed",
				logging.String(logging.FieldCatalogAKey, t.catalogAKey),
				logging.Int(logging.FieldSeason, max(t.season, 1)),
				logging.String(logging.FieldCatalogBKey, t.catalogBKey),
				logging.String(logging.FieldImpact, "link keeps its previous enrichment"),
			)
			continue
		}
		refreshed := *enrichment
		if refreshed.Cast == nil && t.cast != nil {
			logger.Debug("cast unavailable; keeping stored cast",
				logging.String(logging.FieldCatalogAKey, t.catalogAKey),
				logging.Int(logging.FieldSeason, max(t.season, 1)),
			)
			refreshed.Cast = t.cast
		}
		if err := o.upsert(ctx, t.catalogAKey, t.season, t.catalogBKey, refreshed); err != nil {
			failed++
			logging.WarnWithContext(logger, "sync item persist failed", "sync_item_failed",
				logging.String(logging.FieldCatalogAKey, t.catalogAKey),
				logging.Error(err),
			)
			continue
		}
		result.Count++
	}

	var problems []string
	if failed > 0 {
		problems = append(problems, fmt.Sprintf("%d of %d items failed", failed, processed))
	}
	if exhausted {
		problems = append(problems, fmt.Sprintf("time budget exhausted with %d of %d items left", len(targets)-processed, len(targets)))
	}
	result.Success = len(problems) == 0
	result.Error = strings.Join(problems, "; ")
	return result
}

// priorityTargets lists every resolved link and season link of titles in an
// active watch state, in watch-list order.
func (o *Orchestrator) priorityTargets(ctx context.Context) ([]target, error) {
	if len(o.opts.ActiveStatuses) == 0 {
		return nil, nil
	}
	items, err := o.store.ListWatchItems(ctx, o.opts.ActiveStatuses...)
	if err != nil {
		return nil, err
	}
	var targets []target
	for _, item := range items {
		link, err := o.store.GetResolvedLink(ctx, item.CatalogAKey)
		if err != nil {
			return nil, err
		}
		if link != nil && link.CatalogBKey != "" {
			targets = append(targets, target{catalogAKey: link.CatalogAKey, season: 1, catalogBKey: link.CatalogBKey, cast: link.Cast})
		}
		seasons, err := o.store.SeasonLinksFor(ctx, item.CatalogAKey)
		if err != nil {
			return nil, err
		}
		for _, s := range seasons {
			if s.CatalogBKey == "" {
				continue
			}
			targets = append(targets, target{catalogAKey: s.CatalogAKey, season: s.Season, catalogBKey: s.CatalogBKey, cast: s.Cast})
		}
	}
	return targets, nil
}

// staleTargets lists non-miss links older than the sweep age, oldest first,
// skipping anything already scheduled.
func (o *Orchestrator) staleTargets(ctx context.Context, now time.Time, skip map[string]struct{}) ([]target, error) {
	filter := linkstore.LinkFilter{NonEmptyKey: true, CachedBefore: now.Add(-o.opts.StaleAge)}
	links, err := o.store.ListResolvedLinks(ctx, filter)
	if err != nil {
		return nil, err
	}
	seasons, err := o.store.ListSeasonLinks(ctx, filter)
	if err != nil {
		return nil, err
	}

	var targets []target
	add := func(t target) {
		if _, ok := skip[t.id()]; ok {
			return
		}
		targets = append(targets, t)
	}
	for _, l := range links {
		add(target{catalogAKey: l.CatalogAKey, season: 1, catalogBKey: l.CatalogBKey, cast: l.Cast})
	}
	for _, s := range seasons {
		add(target{catalogAKey: s.CatalogAKey, season: s.Season, catalogBKey: s.CatalogBKey, cast: s.Cast})
	}
	return targets, nil
}
