package resources

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/idlecore/internal/simerr"
)

// NodeDefinition describes one resource stock (e.g. "ore", "gold").
type NodeDefinition struct {
	ID                  string  `json:"id"`
	Capacity            float64 `json:"capacity"`
	GenerationPerSecond float64 `json:"generation_per_second"`
	Minimum             float64 `json:"minimum"`
}

// Clamp bounds v to [Minimum, Capacity].
func (d NodeDefinition) Clamp(v float64) float64 {
	return math.Min(math.Max(v, d.Minimum), d.Capacity)
}

// validate rejects structurally invalid node definitions.
func (d NodeDefinition) validate() error {
	const op = "UpsertNode"
	if strings.TrimSpace(d.ID) == "" {
		return simerr.InvalidArgument(op, "node id must not be empty")
	}
	if !finite(d.Capacity) || !finite(d.GenerationPerSecond) || !finite(d.Minimum) {
		return simerr.InvalidArgument(op, "node values must be finite", "node", d.ID)
	}
	if d.Capacity < 0 {
		return simerr.InvalidArgument(op, "node capacity must not be negative", "node", d.ID)
	}
	if d.Minimum > d.Capacity {
		return simerr.InvalidArgument(op, "node minimum exceeds capacity", "node", d.ID)
	}
	return nil
}

// EdgeDefinition describes a one-directional conversion channel.
//
// Efficiency multiplies the amount deposited into the target; 1 is lossless.
// Use NewEdge for a definition with the default efficiency.
type EdgeDefinition struct {
	ID            string  `json:"id"`
	SourceID      string  `json:"source_id"`
	TargetID      string  `json:"target_id"`
	RatePerSecond float64 `json:"rate_per_second"`
	Efficiency    float64 `json:"efficiency"`
}

// NewEdge returns a lossless edge definition.
func NewEdge(id, sourceID, targetID string, ratePerSecond float64) EdgeDefinition {
	return EdgeDefinition{
		ID:            id,
		SourceID:      sourceID,
		TargetID:      targetID,
		RatePerSecond: ratePerSecond,
		Efficiency:    1,
	}
}

// normalize validates the edge and clamps out-of-range numeric values.
// Negative rates and efficiencies become zero.
func (d EdgeDefinition) normalize() (EdgeDefinition, error) {
	const op = "UpsertEdge"
	if strings.TrimSpace(d.ID) == "" {
		return d, simerr.InvalidArgument(op, "edge id must not be empty")
	}
	if strings.TrimSpace(d.SourceID) == "" || strings.TrimSpace(d.TargetID) == "" {
		return d, simerr.InvalidArgument(op, "edge endpoints must not be empty", "edge", d.ID)
	}
	if !finite(d.RatePerSecond) || !finite(d.Efficiency) {
		return d, simerr.InvalidArgument(op, "edge values must be finite", "edge", d.ID)
	}
	d.RatePerSecond = math.Max(d.RatePerSecond, 0)
	d.Efficiency = math.Max(d.Efficiency, 0)
	return d, nil
}

// Snapshot is one node's stock after an advancement.
type Snapshot struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// Key returns the comparison key for a node id. Edge ids are compared
// exactly and are not folded.
func Key(id string) string {
	return cases.Fold().String(norm.NFC.String(id))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
