package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func scenarioPath(name string) string {
	return filepath.Join("..", "..", "scenarios", name)
}

// bareCommand returns a command that captures output, for calling run*
// functions directly with hand-built options.
func bareCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, buf
}
