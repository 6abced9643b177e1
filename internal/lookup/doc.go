// Package lookup is the read path consumers use to obtain cached links.
//
// Reads never fail because the secondary catalog is down: missing
// enrichment shows up as absent fields. A fresh title link whose cast was
// never populated is backfilled on read, and later seasons fall back to the
// season 1 record while their own row is missing or pending. Session wraps
// the service with a memo scoped to one inbound request.
package lookup
