package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/idlecore/internal/clock"
	"github.com/roach88/idlecore/internal/economy"
	"github.com/roach88/idlecore/internal/resources"
	"github.com/roach88/idlecore/internal/scenario"
	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/skills"
)

// Simulation is a scenario wired into live components.
type Simulation struct {
	Scenario  *scenario.Scenario
	Graph     *resources.Graph
	Scheduler *scheduler.Scheduler

	// Economy is nil unless the scenario enables it.
	Economy *economy.Module

	// Skills is nil when the scenario neither declares skills nor runs a
	// skill consumer.
	Skills *skills.Service

	// SkillLoop drives Skills from the scheduler. It is nil when no skill
	// consumer runs.
	SkillLoop *skills.Module
}

type config struct {
	clock  clock.Clock
	logger *slog.Logger
	store  skills.StateStore
	sinks  []scheduler.TelemetrySink
}

// Option configures Build and Run.
type Option func(*config)

// WithClock sets the scheduler clock. Default: clock.System for Build,
// a clock.Deterministic at the Unix epoch for Run.
func WithClock(c clock.Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = l
	}
}

// WithStateStore persists skill progress. The service restores from it
// before skills are registered.
func WithStateStore(s skills.StateStore) Option {
	return func(cfg *config) {
		cfg.store = s
	}
}

// WithTelemetry adds scheduler telemetry sinks.
func WithTelemetry(sinks ...scheduler.TelemetrySink) Option {
	return func(cfg *config) {
		cfg.sinks = append(cfg.sinks, sinks...)
	}
}

func newConfig(opts []Option) config {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// Build wires sc into a Simulation. sc must have passed Validate (Parse and
// Load do this).
func Build(ctx context.Context, sc *scenario.Scenario, opts ...Option) (*Simulation, error) {
	cfg := newConfig(opts)
	if cfg.clock == nil {
		cfg.clock = clock.System{}
	}
	return build(ctx, sc, cfg)
}

func build(ctx context.Context, sc *scenario.Scenario, cfg config) (*Simulation, error) {
	if sc.Interval() <= 0 {
		return nil, fmt.Errorf("scenario %q has not been validated", sc.Name)
	}

	sim := &Simulation{
		Scenario: sc,
		Graph:    resources.NewGraph(),
	}

	for _, n := range sc.Nodes {
		if err := sim.Graph.UpsertNode(n.Definition(), resources.WithInitialValue(n.Initial)); err != nil {
			return nil, fmt.Errorf("node %q: %w", n.ID, err)
		}
	}

	// Economy nodes must exist before scenario edges that reference them.
	if sc.Economy != nil {
		sim.Economy = economy.New(sim.Graph, *sc.Economy, economy.WithLogger(cfg.logger))
		if err := sim.Economy.Initialize(); err != nil {
			return nil, fmt.Errorf("initialize economy: %w", err)
		}
	}

	for _, e := range sc.Edges {
		if err := sim.Graph.UpsertEdge(e.Definition()); err != nil {
			return nil, fmt.Errorf("edge %q: %w", e.ID, err)
		}
	}

	if len(sc.Skills) > 0 || runsSkills(sc) {
		if err := sim.buildSkills(ctx, sc, cfg); err != nil {
			return nil, err
		}
	}

	sched, err := scheduler.New(sc.Interval(),
		scheduler.WithClock(cfg.clock),
		scheduler.WithLogger(cfg.logger),
		scheduler.WithTelemetry(cfg.sinks...),
	)
	if err != nil {
		return nil, err
	}
	sim.Scheduler = sched

	for _, c := range sim.consumers() {
		speed := c.RelativeSpeed
		if speed == 0 {
			speed = scheduler.NormalRate.RelativeSpeed()
		}
		if c.Kind == scenario.KindSkills {
			sim.SkillLoop = skills.NewModule(sim.Skills, sched,
				skills.WithConsumerID(c.ID),
				skills.WithPriority(c.Priority),
				skills.WithTickMultiplier(speed),
			)
			if err := sim.SkillLoop.Initialize(ctx); err != nil {
				return nil, fmt.Errorf("consumer %q: %w", c.ID, err)
			}
			continue
		}

		profile, err := scheduler.NewRateProfile(speed, "")
		if err != nil {
			return nil, fmt.Errorf("consumer %q: %w", c.ID, err)
		}
		if err := sched.RegisterConsumer(named{id: c.ID, Consumer: sim.consumerFor(c.Kind)},
			scheduler.WithPriority(c.Priority),
			scheduler.WithRate(profile),
		); err != nil {
			return nil, fmt.Errorf("consumer %q: %w", c.ID, err)
		}
	}

	return sim, nil
}

func (sim *Simulation) buildSkills(ctx context.Context, sc *scenario.Scenario, cfg config) error {
	sopts := []skills.Option{skills.WithLogger(cfg.logger)}
	if cfg.store != nil {
		sopts = append(sopts, skills.WithStateStore(cfg.store))
	}
	sim.Skills = skills.New(sopts...)
	if cfg.store != nil {
		sim.Skills.Restore(ctx)
	}

	for _, sk := range sc.Skills {
		if err := sim.Skills.RegisterSkill(ctx, skills.Definition{
			ID:                sk.ID,
			Name:              sk.Name,
			Description:       sk.Description,
			CurrencyPerSecond: sk.CurrencyPerSecond,
		}); err != nil {
			return fmt.Errorf("skill %q: %w", sk.ID, err)
		}
	}
	if sc.ActiveSkill != "" {
		if err := sim.Skills.Activate(ctx, sc.ActiveSkill); err != nil {
			return fmt.Errorf("activate skill: %w", err)
		}
	}
	return nil
}

// runsSkills reports whether a skill consumer will be registered: one is
// declared, or no consumers are declared and the defaults include it.
func runsSkills(sc *scenario.Scenario) bool {
	if len(sc.Consumers) == 0 {
		return true
	}
	for _, c := range sc.Consumers {
		if c.Kind == scenario.KindSkills {
			return true
		}
	}
	return false
}

// consumers returns the declared consumers, or the defaults when none are
// declared.
func (sim *Simulation) consumers() []scenario.Consumer {
	sc := sim.Scenario
	if len(sc.Consumers) > 0 {
		return sc.Consumers
	}

	var out []scenario.Consumer
	switch {
	case sim.Economy != nil:
		out = append(out, scenario.Consumer{ID: economy.ConsumerID, Kind: scenario.KindEconomy, RelativeSpeed: 1})
	case len(sc.Nodes) > 0:
		out = append(out, scenario.Consumer{ID: GraphConsumerID, Kind: scenario.KindGraph, RelativeSpeed: 1})
	}
	if sim.Skills != nil {
		out = append(out, scenario.Consumer{
			ID:            skills.ConsumerID,
			Kind:          scenario.KindSkills,
			Priority:      skills.DefaultPriority,
			RelativeSpeed: 1,
		})
	}
	return out
}

func (sim *Simulation) consumerFor(kind string) scheduler.Consumer {
	switch kind {
	case scenario.KindEconomy:
		return sim.Economy.Consumer()
	default:
		return NewGraphConsumer(GraphConsumerID, sim.Graph)
	}
}

// named overrides a consumer's id with the one the scenario declares.
type named struct {
	id string
	scheduler.Consumer
}

func (n named) ID() string { return n.id }

// GraphConsumerID is the default id of a scenario graph consumer.
const GraphConsumerID = "resources.graph"

// GraphConsumer advances a graph by each invocation's effective duration.
type GraphConsumer struct {
	id    string
	graph *resources.Graph
}

// NewGraphConsumer returns a consumer advancing graph under id.
func NewGraphConsumer(id string, graph *resources.Graph) *GraphConsumer {
	return &GraphConsumer{id: id, graph: graph}
}

// ID returns the consumer id.
func (c *GraphConsumer) ID() string { return c.id }

// OnTick advances the graph.
func (c *GraphConsumer) OnTick(_ context.Context, tc scheduler.TickContext) error {
	_, err := c.graph.Advance(tc.EffectiveDuration)
	return err
}
