package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/projmerge/internal/compiler"
)

const unresolvedPlans = `
plans: ok: {kind: "scan", table: "t", outputs: ["a"]}
plans: unresolved: {
	id: "p2", kind: "project"
	assignments: [{symbol: "y", expr: "z"}]
	source: {
		id: "p1", kind: "project"
		assignments: [{symbol: "x", expr: "w"}]
		source: {id: "s", kind: "scan", table: "t", outputs: ["a"]}
	}
}
`

func TestValidateValidPlans(t *testing.T) {
	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), plansDir)
	require.NoError(t, err)
	assert.Equal(t, "✓ All 3 plan(s) valid\n", output)
}

func TestValidateValidPlansJSON(t *testing.T) {
	output, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), plansDir)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 3, resp.Data.Plans)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateNonExistentPath(t *testing.T) {
	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/plans")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, output, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plans.cue", unresolvedPlans)

	output, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")

	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "plans.unresolved.nodes.p2.z")
	assert.Contains(t, output, "plans.unresolved.nodes.p1.w")
}

func TestValidateReportsEveryProblemJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plans.cue", unresolvedPlans)

	output, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnresolvedSymbol, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	for _, e := range resp.Data.Errors {
		assert.Equal(t, compiler.ErrUnresolvedSymbol, e.Code)
		assert.Positive(t, e.Line)
	}
}

func TestValidatePlans(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.cue", chainPlan)

	result, err := ValidatePlans(dir)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Plans)
}

func TestValidatePlans_LoadError(t *testing.T) {
	_, err := ValidatePlans("/nonexistent/plans")
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeNotFound, loadErr.Code)
}

func TestToValidationError(t *testing.T) {
	got := toValidationError(&LoadError{Code: "E105", Message: "duplicate"})
	assert.Equal(t, compiler.ValidationError{Field: "load", Message: "duplicate", Code: "E105"}, got)

	got = toValidationError(&LoadError{Code: "E120", Field: "plans.p.nodes.p1.b", Message: "missing"})
	assert.Equal(t, "plans.p.nodes.p1.b", got.Field)
	assert.Equal(t, 0, got.Line)
}
