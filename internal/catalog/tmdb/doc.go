// Package tmdb is the Catalog A client: a small read-only TMDB API wrapper.
//
// Items are addressed by string keys of the form "tv:<id>" or "movie:<id>".
// GetDetails returns the display title, the original-language title, the
// first release year, and for TV the season list with per-season air years.
// Requests are throttled by a token-bucket limiter so warm runs over large
// watch lists stay inside TMDB's request allowance.
package tmdb
