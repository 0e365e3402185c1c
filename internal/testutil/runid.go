package testutil

// FixedRunIDGenerator returns the same run id every time.
//
// This enables byte-identical journals for the same scenario, which golden
// comparisons of stored runs rely on.
//
// If id is empty, Generate returns "test-run-default".
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a new fixed run id generator.
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run id.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
