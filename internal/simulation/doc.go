// Package simulation assembles runnable simulations from scenarios.
//
// Build wires a scenario into live components:
//
//   - a resources.Graph holding the scenario's nodes and edges
//   - an economy.Module when the scenario has an economy block
//   - a skills.Service when the scenario declares skills or runs a skill
//     consumer, and a skills.Module driving it when a skill consumer runs
//   - a scheduler.Scheduler with one consumer per declared consumer
//
// When a scenario declares no consumers, Build registers the defaults: the
// economy consumer if the economy is enabled, otherwise a graph consumer if
// any nodes exist, plus the skill loop at skills.DefaultPriority. The skill
// loop always carries the idle skill, so it has something to train even when
// the scenario declares no skills.
//
// # Deterministic runs
//
// Run executes a scenario's batch of ticks and returns a Result: one trace
// entry per tick (tick index, consumer and invocation counts, stocks after
// the tick), the final stocks and the skill snapshot. Wall-clock elapsed
// time is deliberately absent from the trace so that the same scenario
// produces byte-identical output on every run.
//
// Stocks and skill values are rounded to nine decimal places in results.
//
// # Golden files
//
// AssertGolden compares a Result's canonical JSON against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/simulation/... -update
package simulation
