package logging

import (
	"context"
	"log/slog"

	"crosslink/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized structured logging key for warm/sync run identifiers.
	FieldRunID = "run_id"
	// FieldTask is the standardized structured logging key for orchestrator tasks (phase or tier).
	FieldTask = "task"
	// FieldCatalogAKey identifies a primary-catalog title (e.g. tv:96162).
	FieldCatalogAKey = "catalog_a_key"
	// FieldCatalogBKey identifies a resolved secondary-catalog slug.
	FieldCatalogBKey = "catalog_b_key"
	// FieldPersonKey identifies a secondary-catalog person profile.
	FieldPersonKey = "person_key"
	// FieldSeason is the season number of a season-scoped link.
	FieldSeason = "season"
	// FieldEventType is the standardized key for machine-filterable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized key for the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldDecisionType is the standardized key for decision logs.
	FieldDecisionType = "decision_type"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if task, ok := services.TaskFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTask, task))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
