// Package metrics exposes Prometheus instrumentation for the sync engine.
//
// A Metrics value owns its own registry so that tests and embedded callers can
// construct independent instances. All recording methods are nil-safe, which
// lets packages accept an optional *Metrics without guarding every call site.
//
// Exported series:
//
//	crosslink_upstream_requests_total{catalog,operation,outcome}
//	crosslink_resolutions_total{outcome}
//	crosslink_batch_items_total{phase,outcome}
//	crosslink_sync_tasks_total{task,outcome}
//	crosslink_sync_task_duration_seconds{task}
//	crosslink_lookups_total{result}
//	crosslink_circuit_breaker_state{name}
package metrics
