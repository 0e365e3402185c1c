// Package economy implements the built-in ore/gold resource economy.
//
// The module owns three graph elements: nodes "ore" and "gold" and the lossy
// conversion edge "ore-to-gold". Tunables are clamped on assignment and, once
// the module is initialized, pushed into the graph immediately. Existing
// stocks survive reconfiguration.
package economy

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/roach88/idlecore/internal/resources"
	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simerr"
)

// Graph element ids owned by the module.
const (
	OreNode  = "ore"
	GoldNode = "gold"
	OreEdge  = "ore-to-gold"
)

// ConsumerID is the scheduler id of the module's tick consumer.
const ConsumerID = "economy.resources"

// Module identity reported by Describe.
const (
	Name    = "CoreEngine"
	Version = "0.1.0"
)

// Tunable bounds.
const (
	MinOreTransferRate = 0.1
	MaxOreTransferRate = 25.0

	MinOreToGoldEfficiency = 0.01
	MaxOreToGoldEfficiency = 10.0

	MinOreCapacity = 100.0
	MaxOreCapacity = 10_000_000.0

	MinGoldCapacity = 10_000.0
	MaxGoldCapacity = 100_000_000.0
)

// Config holds the economy tunables. Zero fields take the defaults from
// DefaultConfig.
type Config struct {
	OreTransferRate     float64 `json:"ore_transfer_rate" yaml:"ore_transfer_rate"`
	OreToGoldEfficiency float64 `json:"ore_to_gold_efficiency" yaml:"ore_to_gold_efficiency"`
	OreCapacity         float64 `json:"ore_capacity" yaml:"ore_capacity"`
	GoldCapacity        float64 `json:"gold_capacity" yaml:"gold_capacity"`
	OreGeneration       float64 `json:"ore_generation" yaml:"ore_generation"`
	GoldGeneration      float64 `json:"gold_generation" yaml:"gold_generation"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		OreTransferRate:     1,
		OreToGoldEfficiency: 0.1,
		OreCapacity:         1_000,
		GoldCapacity:        1_000_000,
		OreGeneration:       5,
		GoldGeneration:      1.5,
	}
}

// normalized fills zero fields with defaults and clamps the bounded ones.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.OreTransferRate == 0 {
		c.OreTransferRate = d.OreTransferRate
	}
	if c.OreToGoldEfficiency == 0 {
		c.OreToGoldEfficiency = d.OreToGoldEfficiency
	}
	if c.OreCapacity == 0 {
		c.OreCapacity = d.OreCapacity
	}
	if c.GoldCapacity == 0 {
		c.GoldCapacity = d.GoldCapacity
	}
	if c.OreGeneration == 0 {
		c.OreGeneration = d.OreGeneration
	}
	if c.GoldGeneration == 0 {
		c.GoldGeneration = d.GoldGeneration
	}

	c.OreTransferRate = clamp(c.OreTransferRate, MinOreTransferRate, MaxOreTransferRate)
	c.OreToGoldEfficiency = clamp(c.OreToGoldEfficiency, MinOreToGoldEfficiency, MaxOreToGoldEfficiency)
	c.OreCapacity = clamp(c.OreCapacity, MinOreCapacity, MaxOreCapacity)
	c.GoldCapacity = clamp(c.GoldCapacity, MinGoldCapacity, MaxGoldCapacity)
	return c
}

// HealthStatus reports whether the module has been initialized.
type HealthStatus string

const (
	Healthy  HealthStatus = "healthy"
	Degraded HealthStatus = "degraded"
)

// Descriptor summarizes the module for listings.
type Descriptor struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	Telemetry    []string `json:"telemetry"`
	Summary      string   `json:"summary"`
}

// Module is the ore/gold economy bound to a resource graph.
//
// Thread-safety: all methods are safe for concurrent use.
type Module struct {
	mu          sync.Mutex
	graph       *resources.Graph
	cfg         Config
	initialized bool
	logger      *slog.Logger
}

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the module's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates an uninitialized module. cfg is normalized (defaults, clamps).
func New(graph *resources.Graph, cfg Config, opts ...Option) *Module {
	m := &Module{
		graph:  graph,
		cfg:    cfg.normalized(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize configures the graph nodes and edge. Idempotent.
func (m *Module) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}
	if err := m.configureNodes(nil, nil); err != nil {
		return err
	}
	if err := m.configureEdge(); err != nil {
		return err
	}
	m.initialized = true

	m.logger.Info("economy initialized",
		"ore_capacity", m.cfg.OreCapacity,
		"gold_capacity", m.cfg.GoldCapacity,
		"transfer_rate", m.cfg.OreTransferRate,
		"efficiency", m.cfg.OreToGoldEfficiency,
	)
	return nil
}

// Config returns the effective, normalized tunables.
func (m *Module) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// SetOreTransferRate clamps v to [MinOreTransferRate, MaxOreTransferRate]
// and returns the applied value.
func (m *Module) SetOreTransferRate(v float64) (float64, error) {
	return m.setEdge(func(c *Config) float64 {
		c.OreTransferRate = clamp(v, MinOreTransferRate, MaxOreTransferRate)
		return c.OreTransferRate
	}, v)
}

// SetOreToGoldEfficiency clamps v to
// [MinOreToGoldEfficiency, MaxOreToGoldEfficiency] and returns the applied value.
func (m *Module) SetOreToGoldEfficiency(v float64) (float64, error) {
	return m.setEdge(func(c *Config) float64 {
		c.OreToGoldEfficiency = clamp(v, MinOreToGoldEfficiency, MaxOreToGoldEfficiency)
		return c.OreToGoldEfficiency
	}, v)
}

// SetOreCapacity clamps v to [MinOreCapacity, MaxOreCapacity] and returns the
// applied value.
func (m *Module) SetOreCapacity(v float64) (float64, error) {
	return m.setNodes(func(c *Config) float64 {
		c.OreCapacity = clamp(v, MinOreCapacity, MaxOreCapacity)
		return c.OreCapacity
	}, v)
}

// SetGoldCapacity clamps v to [MinGoldCapacity, MaxGoldCapacity] and returns
// the applied value.
func (m *Module) SetGoldCapacity(v float64) (float64, error) {
	return m.setNodes(func(c *Config) float64 {
		c.GoldCapacity = clamp(v, MinGoldCapacity, MaxGoldCapacity)
		return c.GoldCapacity
	}, v)
}

func (m *Module) setEdge(apply func(*Config) float64, raw float64) (float64, error) {
	if !finite(raw) {
		return 0, simerr.InvalidArgument("economy.Set", "value must be finite")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	applied := apply(&m.cfg)
	if !m.initialized {
		return applied, nil
	}
	return applied, m.configureEdge()
}

func (m *Module) setNodes(apply func(*Config) float64, raw float64) (float64, error) {
	if !finite(raw) {
		return 0, simerr.InvalidArgument("economy.Set", "value must be finite")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	applied := apply(&m.cfg)
	if !m.initialized {
		return applied, nil
	}
	return applied, m.configureNodes(nil, nil)
}

// Reseed replaces both stocks with explicit values (clamped to capacity).
func (m *Module) Reseed(ore, gold float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.configureNodes(&ore, &gold); err != nil {
		return err
	}
	m.logger.Info("economy reseeded", "ore", ore, "gold", gold)
	return nil
}

// Snapshot returns the current graph state.
func (m *Module) Snapshot() map[string]float64 {
	return m.graph.ExportState()
}

// Health reports Healthy once Initialize has succeeded.
func (m *Module) Health() HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return Healthy
	}
	return Degraded
}

// Describe returns the module descriptor.
func (m *Module) Describe() Descriptor {
	return Descriptor{
		Name:         Name,
		Version:      Version,
		Capabilities: []string{"tick", "resources"},
		Telemetry:    []string{"engine.tick.duration", "engine.resources.snapshot"},
		Summary:      "Primary deterministic scheduler and resource economy",
	}
}

// Consumer returns the tick consumer that advances the graph by each
// invocation's effective duration.
func (m *Module) Consumer() scheduler.Consumer {
	return consumer{m: m}
}

type consumer struct {
	m *Module
}

func (c consumer) ID() string { return ConsumerID }

func (c consumer) OnTick(_ context.Context, tc scheduler.TickContext) error {
	if c.m.Health() != Healthy {
		return simerr.InvalidOperation("economy.OnTick", "module not initialized")
	}
	_, err := c.m.graph.Advance(tc.EffectiveDuration)
	return err
}

// configureNodes upserts ore and gold. Nil overrides keep current stock.
// Caller must hold m.mu.
func (m *Module) configureNodes(ore, gold *float64) error {
	gopts := nodeOpts(gold)
	if err := m.graph.UpsertNode(resources.NodeDefinition{
		ID:                  GoldNode,
		Capacity:            m.cfg.GoldCapacity,
		GenerationPerSecond: m.cfg.GoldGeneration,
	}, gopts...); err != nil {
		return err
	}

	oopts := nodeOpts(ore)
	return m.graph.UpsertNode(resources.NodeDefinition{
		ID:                  OreNode,
		Capacity:            m.cfg.OreCapacity,
		GenerationPerSecond: m.cfg.OreGeneration,
	}, oopts...)
}

// configureEdge upserts the conversion edge. Caller must hold m.mu.
func (m *Module) configureEdge() error {
	return m.graph.UpsertEdge(resources.EdgeDefinition{
		ID:            OreEdge,
		SourceID:      OreNode,
		TargetID:      GoldNode,
		RatePerSecond: m.cfg.OreTransferRate,
		Efficiency:    m.cfg.OreToGoldEfficiency,
	})
}

func nodeOpts(v *float64) []resources.NodeOption {
	if v == nil {
		return nil
	}
	return []resources.NodeOption{resources.WithInitialValue(*v)}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
