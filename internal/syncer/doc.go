// Package syncer decides what to refresh and drives the resolver and
// enrichment fetcher over it.
//
// Warm mode is the operator-triggered bulk job. Phase one resolves and
// enriches every watched title whose link is missing or stale, seasons
// included. Phase two fetches every person profile referenced by any cached
// link that is missing or stale. Both phases run through the batch package.
//
// Sync mode is the scheduled, time-boxed refresh of already-resolved links.
// Titles in an active watch state are refreshed first regardless of age. Links
// older than the sweep threshold follow. Items run one at a time with a fixed
// delay between them, and the wall-clock budget is checked before each item.
//
// Both modes hold a file lock for their duration, so a second run in another
// process fails fast with services.ErrBusy.
package syncer
