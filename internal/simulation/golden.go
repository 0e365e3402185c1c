package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/idlecore/internal/scenario"
)

// Canonical returns the golden-file encoding of r: indented JSON with a
// trailing newline. Map keys are sorted by encoding/json.
func Canonical(r *Result) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return append(data, '\n'), nil
}

// AssertGolden compares r against testdata/golden/<name>.golden.
//
// Run with -update to regenerate the file.
func AssertGolden(t *testing.T, name string, r *Result) error {
	t.Helper()

	data, err := Canonical(r)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// RunWithGolden runs sc and compares the result against the golden file
// named after the scenario.
func RunWithGolden(t *testing.T, sc *scenario.Scenario, opts ...Option) *Result {
	t.Helper()

	result, err := Run(context.Background(), sc, opts...)
	if err != nil {
		t.Fatalf("run scenario %q: %v", sc.Name, err)
	}
	if err := AssertGolden(t, sc.Name, result); err != nil {
		t.Fatalf("golden %q: %v", sc.Name, err)
	}
	return result
}
