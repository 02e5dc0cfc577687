// Package store provides the SQLite-backed write journal.
//
// Every successful Set made through a journaled varstore.Store is recorded
// with its path, the value as stored, and the address it landed at under the
// layout active at the time:
//   - Sessions: one per process, stamped with the layout hash and source
//   - Writes: append-only, keyed by a content-addressed ID
//
// # Ordering
//
// All queries order by seq ASC, id ASC COLLATE BINARY. Seq is the session's
// logical clock, so results are identical however often they are read.
//
// # Replay
//
// Replay re-applies a session by path, not by address. Paths are resolved
// against the current layout, so a session recorded before a relink lands
// at the relocated addresses.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
