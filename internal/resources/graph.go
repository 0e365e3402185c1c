package resources

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/roach88/idlecore/internal/simerr"
)

// Graph is the deterministic resource graph.
//
// Thread-safety: all methods are safe for concurrent use. UpsertNode,
// UpsertEdge, RemoveEdge and Advance are mutually exclusive; readers observe
// only the result of complete operations.
//
// INVARIANTS:
//   - minimum <= stock <= capacity for every node after every operation
//   - edges is sorted by edge id in byte order; edge ids are case-sensitive
//   - every edge endpoint references a node present in nodes
type Graph struct {
	mu       sync.Mutex
	nodes    map[string]NodeDefinition // normalized id -> definition
	stock    map[string]float64        // normalized id -> current stock
	nodeKeys []string                  // sorted normalized node ids
	edges    []edge                    // sorted by def.ID
}

// edge is an accepted edge definition with resolved endpoint keys.
type edge struct {
	sourceKey string
	targetKey string
	def       EdgeDefinition
}

// NodeOption configures a single UpsertNode call.
type NodeOption func(*nodeUpsert)

type nodeUpsert struct {
	initial    float64
	hasInitial bool
}

// WithInitialValue sets the node's stock explicitly (clamped to bounds).
//
// Without it a new node starts at zero (clamped) and a replaced node keeps
// its current stock, re-clamped against the new definition.
func WithInitialValue(v float64) NodeOption {
	return func(u *nodeUpsert) {
		u.initial = v
		u.hasInitial = true
	}
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]NodeDefinition),
		stock: make(map[string]float64),
	}
}

// UpsertNode inserts or replaces a node definition.
func (g *Graph) UpsertNode(def NodeDefinition, opts ...NodeOption) error {
	if err := def.validate(); err != nil {
		return err
	}

	var u nodeUpsert
	for _, opt := range opts {
		opt(&u)
	}
	if u.hasInitial && !finite(u.initial) {
		return simerr.InvalidArgument("UpsertNode", "initial value must be finite", "node", def.ID)
	}

	key := Key(def.ID)

	g.mu.Lock()
	defer g.mu.Unlock()

	current, exists := g.stock[key]
	switch {
	case u.hasInitial:
		current = u.initial
	case !exists:
		current = 0
	}

	if !exists {
		g.nodeKeys = insertSorted(g.nodeKeys, key)
	}
	g.nodes[key] = def
	g.stock[key] = def.Clamp(current)
	return nil
}

// UpsertEdge inserts or replaces an edge.
//
// Returns an invalid-operation error if either endpoint is unknown; the edge
// table is left unchanged in that case.
func (g *Graph) UpsertEdge(def EdgeDefinition) error {
	def, err := def.normalize()
	if err != nil {
		return err
	}

	e := edge{
		sourceKey: Key(def.SourceID),
		targetKey: Key(def.TargetID),
		def:       def,
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[e.sourceKey]; !ok {
		return simerr.InvalidOperation("UpsertEdge", "edge references unknown node",
			"edge", def.ID, "node", def.SourceID)
	}
	if _, ok := g.nodes[e.targetKey]; !ok {
		return simerr.InvalidOperation("UpsertEdge", "edge references unknown node",
			"edge", def.ID, "node", def.TargetID)
	}

	if i, found := g.findEdge(def.ID); found {
		g.edges[i] = e
		return nil
	}

	g.edges = append(g.edges, e)
	sort.Slice(g.edges, func(i, j int) bool {
		return g.edges[i].def.ID < g.edges[j].def.ID
	})
	return nil
}

// RemoveEdge deletes an edge by exact id. Returns whether an edge was removed.
func (g *Graph) RemoveEdge(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	i, found := g.findEdge(id)
	if !found {
		return false
	}
	g.edges = append(g.edges[:i], g.edges[i+1:]...)
	return true
}

// Advance moves the graph forward by delta and returns the resulting stocks.
//
// Returns an invalid-argument error if delta is not positive.
func (g *Graph) Advance(delta time.Duration) (map[string]Snapshot, error) {
	if delta <= 0 {
		return nil, simerr.InvalidArgument("Advance", "delta must be positive", "delta", delta.String())
	}
	seconds := delta.Seconds()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Generation: every node before any edge.
	for _, key := range g.nodeKeys {
		def := g.nodes[key]
		g.stock[key] = def.Clamp(g.stock[key] + def.GenerationPerSecond*seconds)
	}

	// Transfer: fixed id order, each edge sees the effect of earlier edges.
	// A source never drains below max(minimum, 0).
	for _, e := range g.edges {
		floor := math.Max(g.nodes[e.sourceKey].Minimum, 0)
		available := g.stock[e.sourceKey] - floor
		transferable := math.Min(available, e.def.RatePerSecond*seconds)
		if transferable <= 0 {
			continue
		}

		g.stock[e.sourceKey] = math.Max(g.stock[e.sourceKey]-transferable, floor)
		target := g.nodes[e.targetKey]
		g.stock[e.targetKey] = target.Clamp(g.stock[e.targetKey] + transferable*e.def.Efficiency)
	}

	out := make(map[string]Snapshot, len(g.nodeKeys))
	for _, key := range g.nodeKeys {
		id := g.nodes[key].ID
		out[id] = Snapshot{ID: id, Value: g.stock[key]}
	}
	return out, nil
}

// ExportState returns a point-in-time copy of all stocks keyed by node id.
func (g *Graph) ExportState() map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]float64, len(g.nodeKeys))
	for _, key := range g.nodeKeys {
		out[g.nodes[key].ID] = g.stock[key]
	}
	return out
}

// Value returns a single node's stock.
func (g *Graph) Value(id string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.stock[Key(id)]
	return v, ok
}

// ListNodes returns node definitions sorted by normalized id.
func (g *Graph) ListNodes() []NodeDefinition {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]NodeDefinition, len(g.nodeKeys))
	for i, key := range g.nodeKeys {
		out[i] = g.nodes[key]
	}
	return out
}

// ListEdges returns edge definitions in advancement order.
func (g *Graph) ListEdges() []EdgeDefinition {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]EdgeDefinition, len(g.edges))
	for i, e := range g.edges {
		out[i] = e.def
	}
	return out
}

// findEdge locates an edge by exact id. Caller must hold g.mu.
func (g *Graph) findEdge(id string) (int, bool) {
	for i, e := range g.edges {
		if e.def.ID == id {
			return i, true
		}
	}
	return -1, false
}

func insertSorted(keys []string, key string) []string {
	i := sort.SearchStrings(keys, key)
	keys = append(keys, "")
	copy(keys[i+1:], keys[i:])
	keys[i] = key
	return keys
}
