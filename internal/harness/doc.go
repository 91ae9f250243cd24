// Package harness provides scenario testing for the projection optimizer.
//
// The harness compiles a CUE plan, optimizes it with a chosen rule set,
// and checks the firing trace and the final plan against the scenario's
// assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	plan_file: ../plans/projections.cue
//	plan: three_level
//	rules: [InlineProjections, RemoveIdentityProjections]
//	disable: [PruneProjectColumns]
//	max_steps: 10
//	tables:
//	  t:
//	    columns: [a]
//	    rows:
//	      - [1]
//	assertions:
//	  - type: fired
//	    rule: InlineProjections
//	    count: 3
//	  - type: assignment
//	    node: p3
//	    symbol: d
//	    expr: ((a * 2) + 1) * 3
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - fired: A rule fired exactly count times
//   - assignment: A project node assigns symbol to expr in the final plan
//   - no_assignment: A project node does not assign symbol
//   - outputs: A node's output symbols, in order
//   - final_plan: The rendered final plan
//   - unchanged: No rule fired
//   - equivalent: The input and final plans return the same rows over tables
//   - error: Optimization stopped with the given runtime error code
//
// The equivalent assertion runs both plans in SQLite, which cannot show
// the TRY effect boundary: it yields NULL for integer division by zero
// whether or not the division is under TRY, and it has no way to
// suppress an error inside TRY. A plan with TRY over an expression that
// can fail makes the assertion fail as not checkable.
//
// # Reproducibility
//
// Two runs of a scenario produce byte-identical snapshots: the run id
// comes from scenario.run_id (default "test-run-default"), firing seqs
// come from a testutil.DeterministicClock that restarts at 1, and the
// trace is read back from a private in-memory store so the snapshot
// reflects what a --db recording would contain. Snapshot renders the
// result as canonical JSON for golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/three_level.yaml")
//	if err != nil {
//	    return err
//	}
//	result, err := harness.RunContext(ctx, scenario)
//	if err != nil {
//	    return err
//	}
//	for _, msg := range result.Errors {
//	    fmt.Println(msg)
//	}
package harness
