package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/idlecore/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunList is the history listing.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

func (l RunList) String() string {
	if len(l.Runs) == 0 {
		return "No runs recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s  %-16s  %-9s  %8s  %s", "RUN", "SCENARIO", "STATUS", "TICKS", "STARTED")
	for _, r := range l.Runs {
		fmt.Fprintf(&b, "\n%-36s  %-16s  %-9s  %8d  %s",
			r.ID, r.Scenario, r.Status, r.TicksCompleted, r.StartedAt.Format(time.RFC3339))
	}
	return b.String()
}

// RunDetail is one run with its journaled tick count and latest snapshot.
type RunDetail struct {
	Run            store.Run       `json:"run"`
	JournaledTicks int64           `json:"journaled_ticks"`
	Snapshot       *store.Snapshot `json:"snapshot,omitempty"`
}

func (d RunDetail) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", d.Run.ID)
	fmt.Fprintf(&b, "  scenario: %s\n", d.Run.Scenario)
	fmt.Fprintf(&b, "  status:   %s\n", d.Run.Status)
	fmt.Fprintf(&b, "  tick:     %s\n", d.Run.TickDuration)
	fmt.Fprintf(&b, "  ticks:    %d completed, %d journaled", d.Run.TicksCompleted, d.JournaledTicks)
	if d.Run.Error != "" {
		fmt.Fprintf(&b, "\n  error:    %s", d.Run.Error)
	}
	if d.Snapshot == nil {
		b.WriteString("\nNo snapshot recorded.")
		return b.String()
	}
	fmt.Fprintf(&b, "\nSnapshot after tick %d:", d.Snapshot.TickIndex)
	writeStocks(&b, d.Snapshot.Values)
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs or show one run",
		Long: `Read the run journal written by simulate and run.

Without --run, lists every run in the order it was started. With --run,
shows the run's status, tick counts and latest resource snapshot.

Example:
  idlecore history --db ./idle.db
  idlecore history --db ./idle.db --run 019a...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	if _, err := os.Stat(opts.Database); errors.Is(err, os.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}

	st, closeStore, err := openStore(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to open database", err)
	}
	defer closeStore()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to list runs", err)
		}
		return formatter.Success(RunList{Runs: runs})
	}

	run, ok, err := st.GetRun(ctx, opts.RunID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read run", err)
	}
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
	}

	count, err := st.TickCount(ctx, run.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to count ticks", err)
	}

	detail := RunDetail{Run: run, JournaledTicks: count}
	snap, ok, err := st.LatestSnapshot(ctx, run.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStoreFailed, "failed to read snapshot", err)
	}
	if ok {
		detail.Snapshot = &snap
	}
	return formatter.Success(detail)
}
