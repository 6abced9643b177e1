// Package mdl is the Catalog B client, a wrapper around a scraping proxy for
// MyDramaList that exposes search, details, cast, and person endpoints.
//
// The proxy is unreliable, so every public method degrades to a nil result
// on timeout, non-200 status, or malformed JSON, and logs the cause. Callers
// never see transport errors. Each call is bounded by its own timeout and can
// optionally pass through a circuit breaker that rejects calls for a cooldown
// after consecutive failures.
//
// Responses are parsed once here into typed values (Candidate, Details, Cast)
// so nothing downstream walks untyped JSON.
package mdl
