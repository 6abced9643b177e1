// Package enrichment turns a resolved catalog B key into the typed fields the
// link store persists: rating, rank, popularity, tags, and a role-bucketed cast.
//
// FetchEnrichment issues the details and cast calls concurrently. Details are
// required; without them the whole result is nil. A missing cast only leaves
// Cast nil so the read path can backfill it later.
package enrichment
