// Package textutil canonicalizes titles for cross-catalog comparison.
//
// Normalize produces a comparison key (lowercase, ASCII punctuation and
// whitespace removed, non-Latin characters kept verbatim) that is only ever
// used for equality and substring checks. SanitizeForSearch prepares a title
// for the secondary catalog's search endpoint, which misbehaves when a query
// starts with symbols such as "#".
package textutil
