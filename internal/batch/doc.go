// Package batch runs jobs in fixed-size concurrent rounds.
//
// Items are split into consecutive chunks of Concurrency items. Each chunk
// runs concurrently and must fully settle before the next one starts, and a
// fixed RoundDelay separates chunks. Together these bound the peak load on the
// scraped upstream to exactly one chunk. An item's error or panic is counted
// and logged, never propagated to its siblings.
package batch
