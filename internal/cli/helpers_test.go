package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	plansDir     = filepath.Join("..", "..", "testdata", "plans")
	scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")
)

const chainPlan = `
plans: chain: {
	id:   "p2"
	kind: "project"
	assignments: [{symbol: "y", expr: "x + 1"}]
	source: {
		id:   "p1"
		kind: "project"
		assignments: [{symbol: "x", expr: "a * 2"}]
		source: {
			id:    "s"
			kind:  "scan"
			table: "t"
			outputs: [{symbol: "a", type: "bigint"}]
		}
	}
}
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
