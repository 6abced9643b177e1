// Package api serves the HTTP surface: the scheduled-sync trigger, the link
// read path, and Prometheus metrics.
//
// # Routes
//
//	POST /api/cron/sync                      run one scheduled sync
//	GET  /api/links/{key}                    read a title link
//	GET  /api/links/{key}/seasons/{season}   read a season link
//	GET  /api/sync/runs                      recent sync audit rows
//	GET  /metrics                            Prometheus exposition
//
// Every /api route requires "Authorization: Bearer <token>" when a token is
// configured. Link reads accept optional title, native and year query
// parameters; when a title is supplied a missing or stale link is resolved
// on the spot.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// A busy run lock maps to 409 so an external scheduler can tell an
// overlapping trigger from a failure.
package api
