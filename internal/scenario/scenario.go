// Package scenario loads simulation scenarios from YAML or CUE.
//
// Both formats are validated against the embedded CUE schema (schema.cue),
// which also supplies defaults (tick duration, tick count, edge efficiency,
// consumer priority and speed). Structural checks that the schema cannot
// express (unique ids, edge endpoints, consumer/module consistency) run
// afterwards in Validate.
package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/idlecore/internal/economy"
	"github.com/roach88/idlecore/internal/resources"
)

// Consumer kinds.
const (
	KindEconomy = "economy"
	KindSkills  = "skills"
	KindGraph   = "graph"
)

// Scenario describes one simulation setup.
type Scenario struct {
	// Name identifies the scenario in run journals.
	Name string `json:"name" yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// TickDuration is the baseline tick as a Go duration string ("100ms").
	TickDuration string `json:"tick_duration,omitempty" yaml:"tick_duration,omitempty"`

	// Ticks is the batch length used by deterministic runs.
	Ticks int `json:"ticks,omitempty" yaml:"ticks,omitempty"`

	Nodes     []Node     `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Edges     []Edge     `json:"edges,omitempty" yaml:"edges,omitempty"`
	Consumers []Consumer `json:"consumers,omitempty" yaml:"consumers,omitempty"`

	// Economy enables the built-in ore/gold module when present.
	Economy *economy.Config `json:"economy,omitempty" yaml:"economy,omitempty"`

	// Skills registers skills with the skill service.
	Skills []Skill `json:"skills,omitempty" yaml:"skills,omitempty"`

	// ActiveSkill, if set, is activated after registration.
	ActiveSkill string `json:"active_skill,omitempty" yaml:"active_skill,omitempty"`

	interval time.Duration
}

// Node is a resource node definition plus its initial stock.
type Node struct {
	ID                  string  `json:"id" yaml:"id"`
	Capacity            float64 `json:"capacity" yaml:"capacity"`
	GenerationPerSecond float64 `json:"generation_per_second" yaml:"generation_per_second"`
	Minimum             float64 `json:"minimum" yaml:"minimum"`
	Initial             float64 `json:"initial" yaml:"initial"`
}

// Definition converts n into a graph node definition.
func (n Node) Definition() resources.NodeDefinition {
	return resources.NodeDefinition{
		ID:                  n.ID,
		Capacity:            n.Capacity,
		GenerationPerSecond: n.GenerationPerSecond,
		Minimum:             n.Minimum,
	}
}

// Edge is a resource edge definition. A nil Efficiency defaults to 1.
type Edge struct {
	ID            string   `json:"id" yaml:"id"`
	Source        string   `json:"source" yaml:"source"`
	Target        string   `json:"target" yaml:"target"`
	RatePerSecond float64  `json:"rate_per_second" yaml:"rate_per_second"`
	Efficiency    *float64 `json:"efficiency,omitempty" yaml:"efficiency,omitempty"`
}

// Definition converts e into a graph edge definition.
func (e Edge) Definition() resources.EdgeDefinition {
	def := resources.NewEdge(e.ID, e.Source, e.Target, e.RatePerSecond)
	if e.Efficiency != nil {
		def.Efficiency = *e.Efficiency
	}
	return def
}

// Consumer registers one module with the scheduler.
type Consumer struct {
	ID            string  `json:"id" yaml:"id"`
	Kind          string  `json:"kind" yaml:"kind"`
	Priority      int     `json:"priority,omitempty" yaml:"priority,omitempty"`
	RelativeSpeed float64 `json:"relative_speed,omitempty" yaml:"relative_speed,omitempty"`
}

// Skill is a skill definition.
type Skill struct {
	ID                string  `json:"id" yaml:"id"`
	Name              string  `json:"name" yaml:"name"`
	Description       string  `json:"description,omitempty" yaml:"description,omitempty"`
	CurrencyPerSecond float64 `json:"currency_per_second" yaml:"currency_per_second"`
}

// Interval returns the parsed tick duration. Valid after Validate succeeds.
func (s *Scenario) Interval() time.Duration {
	return s.interval
}

// Validate performs the structural checks the schema cannot express and
// parses the tick duration. All problems are reported together.
func (s *Scenario) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	d, err := time.ParseDuration(s.TickDuration)
	switch {
	case err != nil:
		fail("tick_duration: %v", err)
	case d <= 0:
		fail("tick_duration: must be positive, got %s", s.TickDuration)
	default:
		s.interval = d
	}

	if s.Ticks <= 0 {
		fail("ticks: must be positive, got %d", s.Ticks)
	}

	nodes := make(map[string]bool, len(s.Nodes))
	for i, n := range s.Nodes {
		k := resources.Key(n.ID)
		if nodes[k] {
			fail("nodes[%d]: duplicate node id %q", i, n.ID)
		}
		nodes[k] = true
		if n.Minimum > n.Capacity {
			fail("nodes[%d]: minimum %v exceeds capacity %v", i, n.Minimum, n.Capacity)
		}
	}

	if s.Economy != nil {
		for _, id := range []string{economy.OreNode, economy.GoldNode} {
			if nodes[resources.Key(id)] {
				fail("nodes: %q is reserved by the economy module", id)
			}
			nodes[resources.Key(id)] = true
		}
	}

	edges := make(map[string]bool, len(s.Edges))
	for i, e := range s.Edges {
		if edges[e.ID] {
			fail("edges[%d]: duplicate edge id %q", i, e.ID)
		}
		edges[e.ID] = true
		if !nodes[resources.Key(e.Source)] {
			fail("edges[%d]: unknown source node %q", i, e.Source)
		}
		if !nodes[resources.Key(e.Target)] {
			fail("edges[%d]: unknown target node %q", i, e.Target)
		}
	}

	skills := make(map[string]bool, len(s.Skills))
	for i, sk := range s.Skills {
		k := resources.Key(sk.ID)
		if skills[k] {
			fail("skills[%d]: duplicate skill id %q", i, sk.ID)
		}
		skills[k] = true
	}
	if s.ActiveSkill != "" && !skills[resources.Key(s.ActiveSkill)] {
		fail("active_skill: %q is not a declared skill", s.ActiveSkill)
	}

	ids := make(map[string]bool, len(s.Consumers))
	kinds := make(map[string]bool, len(s.Consumers))
	for i, c := range s.Consumers {
		if ids[c.ID] {
			fail("consumers[%d]: duplicate consumer id %q", i, c.ID)
		}
		ids[c.ID] = true
		if kinds[c.Kind] {
			fail("consumers[%d]: only one %s consumer is allowed", i, c.Kind)
		}
		kinds[c.Kind] = true

		switch c.Kind {
		case KindEconomy:
			if s.Economy == nil {
				fail("consumers[%d]: economy consumer requires an economy block", i)
			}
		case KindSkills, KindGraph:
		default:
			fail("consumers[%d]: unknown kind %q", i, c.Kind)
		}
	}
	if kinds[KindEconomy] && kinds[KindGraph] {
		fail("consumers: economy and graph consumers both advance the graph; declare one")
	}

	return errors.Join(errs...)
}
