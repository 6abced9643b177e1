// Package resolver finds the catalog B record that corresponds to a catalog A
// title when the two catalogs share no identifier.
//
// Resolve searches with the native title and the primary title concurrently,
// then Pick narrows the merged pool:
//
//  1. keep candidates from the target year, or from one year either side when
//     none match exactly; give up when neither window has candidates
//  2. a single survivor wins outright
//  3. otherwise an exact normalized-title match wins, native query first
//  4. otherwise a substring match in either direction wins, native query first
//  5. otherwise the first survivor is returned as a low-confidence default
//
// Pick is a pure function of its inputs.
package resolver
