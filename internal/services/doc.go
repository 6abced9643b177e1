// Package services defines shared utilities consumed by the catalog clients,
// the link store, and the sync orchestrator.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, task names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     degradable upstream miss from a corrupt record or a misconfiguration.
//
// Use these helpers when wiring new components so failure classification
// stays uniform across the engine.
package services
