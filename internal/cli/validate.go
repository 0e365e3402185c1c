package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/idlecore/internal/scenario"
)

// ValidationResult summarizes a valid scenario.
type ValidationResult struct {
	Valid        bool     `json:"valid"`
	Name         string   `json:"name"`
	TickDuration string   `json:"tick_duration"`
	Ticks        int      `json:"ticks"`
	Nodes        int      `json:"nodes"`
	Edges        int      `json:"edges"`
	Consumers    []string `json:"consumers"`
	Economy      bool     `json:"economy"`
	Skills       int      `json:"skills"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Scenario %q valid\n", r.Name)
	fmt.Fprintf(&b, "  tick: %s x %d\n", r.TickDuration, r.Ticks)
	fmt.Fprintf(&b, "  nodes: %d, edges: %d, skills: %d, economy: %t", r.Nodes, r.Edges, r.Skills, r.Economy)
	if len(r.Consumers) > 0 {
		fmt.Fprintf(&b, "\n  consumers: %s", strings.Join(r.Consumers, ", "))
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>",
		Short: "Validate a scenario without running it",
		Long: `Validate a YAML or CUE scenario against the embedded schema.

Checks syntax, schema constraints (types, defaults, allowed consumer kinds)
and structural rules: unique node, edge, skill and consumer ids, edge
endpoints, and consumers that reference enabled modules.

Exit codes:
  0 - scenario valid
  1 - scenario invalid
  2 - file missing or unreadable`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	sc, err := loadOrFail(formatter, path)
	if err != nil {
		return err
	}
	return formatter.Success(summarize(sc))
}

func summarize(sc *scenario.Scenario) ValidationResult {
	consumers := make([]string, 0, len(sc.Consumers))
	for _, c := range sc.Consumers {
		consumers = append(consumers, fmt.Sprintf("%s(%s)", c.ID, c.Kind))
	}
	return ValidationResult{
		Valid:        true,
		Name:         sc.Name,
		TickDuration: sc.Interval().String(),
		Ticks:        sc.Ticks,
		Nodes:        len(sc.Nodes),
		Edges:        len(sc.Edges),
		Consumers:    consumers,
		Economy:      sc.Economy != nil,
		Skills:       len(sc.Skills),
	}
}
