package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/idlecore/internal/scheduler"
	"github.com/roach88/idlecore/internal/simulation"
	"github.com/roach88/idlecore/internal/skills"
	"github.com/roach88/idlecore/internal/store"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Ticks    int
	Database string

	// RunIDGenerator allows overriding run ids (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	RunIDGenerator store.RunIDGenerator
}

// SimulateResult is the outcome of a batch simulation.
type SimulateResult struct {
	RunID    string             `json:"run_id,omitempty"`
	Scenario string             `json:"scenario"`
	Ticks    int                `json:"ticks"`
	Final    map[string]float64 `json:"final"`
	Skills   *skills.State      `json:"skills,omitempty"`
}

func (r SimulateResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario %q: %d tick(s)", r.Scenario, r.Ticks)
	if r.RunID != "" {
		fmt.Fprintf(&b, " [run %s]", r.RunID)
	}
	writeStocks(&b, r.Final)
	if r.Skills != nil {
		fmt.Fprintf(&b, "\nSkills (active: %s, total currency: %g)", orNone(r.Skills.ActiveSkillID), r.Skills.TotalCurrency)
		for _, p := range r.Skills.Skills {
			fmt.Fprintf(&b, "\n  %-16s level %-3d xp %g", p.SkillID, p.Level, p.Experience)
		}
	}
	return b.String()
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario>",
		Short: "Run a scenario for a fixed number of ticks",
		Long: `Run a scenario deterministically, back to back, without sleeping.

The same scenario always produces the same final state. With --db the run,
its per-tick telemetry and a resource snapshot after every tick are written
to the journal.

Example:
  idlecore simulate scenarios/smelter.yaml
  idlecore simulate --ticks 600 --db ./idle.db scenarios/economy.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Ticks, "ticks", 0, "number of ticks (default: the scenario's ticks)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (optional)")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	logger := configureLogging(opts.RootOptions)
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	if opts.Ticks < 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("--ticks must be positive, got %d", opts.Ticks), nil)
	}

	sc, err := loadOrFail(formatter, path)
	if err != nil {
		return err
	}
	if opts.Ticks > 0 {
		sc.Ticks = opts.Ticks
	}

	var telemetry []scheduler.Telemetry
	collect := scheduler.SinkFunc(func(t scheduler.Telemetry) {
		telemetry = append(telemetry, t)
	})

	result, runErr := simulation.Run(ctx, sc,
		simulation.WithLogger(logger),
		simulation.WithTelemetry(collect, scheduler.LogSink{Logger: logger}),
	)
	if result == nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to build simulation", runErr)
	}

	out := SimulateResult{
		Scenario: result.Scenario,
		Ticks:    result.Ticks,
		Final:    result.Final,
		Skills:   result.Skills,
	}

	if opts.Database != "" {
		runID, err := journalBatch(ctx, opts, sc.Name, sc.Interval(), result, telemetry, runErr)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to write journal", err)
		}
		out.RunID = runID
	}

	if runErr != nil {
		return formatter.Fail(ExitFailure, ErrCodeRunFailed, "simulation failed", runErr)
	}
	return formatter.Success(out)
}

func writeStocks(b *strings.Builder, stocks map[string]float64) {
	ids := make([]string, 0, len(stocks))
	for id := range stocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(b, "\n  %-16s %g", id, stocks[id])
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
