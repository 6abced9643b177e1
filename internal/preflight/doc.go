// Package preflight provides readiness checks for the directories, database
// and catalogs crosslink depends on.
//
// The CLI "crosslink status" command and the HTTP health route run RunAll.
// Catalog checks make a single request each with a short timeout and never
// retry, so a slow upstream shows up as a failed check instead of a hang.
package preflight
