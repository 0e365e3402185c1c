// Package store provides the SQLite-backed run journal.
//
// The scheduler core never persists anything itself. The CLI drives a
// simulation and records what happened here:
//   - Runs: one row per simulation run (id, scenario, tick duration, status)
//   - Ticks: per-tick telemetry (elapsed, consumers, invocations)
//   - Resource snapshots: node stocks captured at a tick
//   - Module state: opaque per-module payloads (skill progress)
//
// # Ordering
//
//   - Runs are ordered by seq INTEGER (insertion order), NEVER by started_at
//   - Ticks and snapshots are ordered by tick_index, then node_id COLLATE BINARY
//
// Writes are idempotent: re-writing the same (run, tick) or (run, tick, node)
// is a no-op, so a retried flush never duplicates rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
