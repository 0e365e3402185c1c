package resources

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestGraphInvariants uses property-based testing to verify that the
// clamping and conservation invariants hold for arbitrary inputs.
func TestGraphInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// Property 1: stocks stay within [minimum, capacity] after every advance.
	properties.Property("advance preserves node bounds", prop.ForAll(
		func(generations []float64, rates []float64, deltasMs []int) bool {
			g := NewGraph()
			defs := make([]NodeDefinition, len(generations))
			for i, perSecond := range generations {
				defs[i] = NodeDefinition{
					ID:                  fmt.Sprintf("n%d", i),
					Capacity:            float64(50 + 25*i),
					GenerationPerSecond: perSecond,
					Minimum:             float64(i % 3 * 5),
				}
				if err := g.UpsertNode(defs[i]); err != nil {
					return false
				}
			}
			for i, rate := range rates {
				src := defs[i%len(defs)].ID
				dst := defs[(i+1)%len(defs)].ID
				edge := EdgeDefinition{
					ID:            fmt.Sprintf("e%02d", i),
					SourceID:      src,
					TargetID:      dst,
					RatePerSecond: rate,
					Efficiency:    float64(i%4) * 0.75,
				}
				if err := g.UpsertEdge(edge); err != nil {
					return false
				}
			}

			for _, ms := range deltasMs {
				if _, err := g.Advance(time.Duration(ms) * time.Millisecond); err != nil {
					return false
				}
				for _, def := range defs {
					v, _ := g.Value(def.ID)
					if v < def.Minimum || v > def.Capacity {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.Float64Range(-40, 40)),
		gen.SliceOfN(6, gen.Float64Range(-5, 60)),
		gen.SliceOfN(10, gen.IntRange(1, 5000)),
	))

	// Property 2: a lossless edge between unbounded nodes conserves the total.
	properties.Property("lossless transfer conserves stock", prop.ForAll(
		func(initial float64, rate float64, ms int) bool {
			g := NewGraph()
			if err := g.UpsertNode(NodeDefinition{ID: "src", Capacity: 1e12}, WithInitialValue(initial)); err != nil {
				return false
			}
			if err := g.UpsertNode(NodeDefinition{ID: "dst", Capacity: 1e12}); err != nil {
				return false
			}
			if err := g.UpsertEdge(NewEdge("pipe", "src", "dst", rate)); err != nil {
				return false
			}

			snapshot, err := g.Advance(time.Duration(ms) * time.Millisecond)
			if err != nil {
				return false
			}
			moved := snapshot["dst"].Value
			return moved <= initial && snapshot["src"].Value == initial-moved
		},
		gen.Float64Range(0, 1e6),
		gen.Float64Range(0, 1e4),
		gen.IntRange(1, 60000),
	))

	properties.TestingRun(t)
}
