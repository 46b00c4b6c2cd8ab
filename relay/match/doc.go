// Package match holds the in-memory match state of the relay.
//
// The match package implements:
//   - Snapshot: the latest full state pushed by a scoreboard for one match
//   - Store: a process-wide map from canonical match ID to Snapshot
//   - Canonical match IDs that tolerate numeric and string representations
//   - PIN rules used to expose a match to referee and bench tablets
//
// Consistency:
//
// The store applies a last-writer-wins policy per match ID. A sync from the
// scoreboard replaces the stored snapshot wholesale; nothing is merged and
// no version is tracked. Two connections claiming scoreboard authority for
// the same match at the same time is treated as misuse.
//
// Snapshots are never mutated after they are stored, so readers on other
// goroutines always observe a complete snapshot.
package match
