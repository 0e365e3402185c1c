// Package resources implements the deterministic resource graph.
//
// A Graph owns a set of named scalar stocks (nodes) and directed, rate-limited,
// lossy conversion channels between them (edges). Advance moves the whole
// graph forward by a wall-clock delta in two phases:
//
//  1. Generation: every node adds GenerationPerSecond*seconds and is clamped
//     to [Minimum, Capacity]. All nodes generate before any edge runs.
//  2. Transfer: edges run in id order. Each moves up to RatePerSecond*seconds
//     out of its source, capped at what the source holds, and deposits the
//     amount times Efficiency into its target (clamped).
//
// Edges sharing a source compete first-come-first-served in id order. Supply
// is never split proportionally; the earlier edge id drains first.
//
// Rates are expressed per second and converted with delta.Seconds(), so the
// economy is independent of the scheduler's tick duration.
//
// Identifiers are case-insensitive: ids are NFC-normalized and Unicode
// case-folded before comparison. Snapshots report the id as last supplied.
//
// All mutation and reads share one mutex; a reader never observes a
// partially-advanced graph.
package resources
