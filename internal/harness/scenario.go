package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines an optimizer test scenario.
// A scenario compiles one plan, optimizes it with a chosen rule set, and
// asserts on the firing trace and the final plan.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// PlanFile is the CUE plan file to compile.
	// Relative paths are resolved against the scenario file's directory.
	PlanFile string `yaml:"plan_file"`

	// Plan selects a plan in PlanFile by name. Defaults to the first plan.
	Plan string `yaml:"plan,omitempty"`

	// Rules restricts the optimizer to the named rules, in this order.
	// Defaults to every rule.
	Rules []string `yaml:"rules,omitempty"`

	// Disable switches rules off through the session, leaving the rule
	// list unchanged.
	Disable []string `yaml:"disable,omitempty"`

	// MaxSteps overrides the optimizer's step quota when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Tables are loaded into an in-memory database for equivalent
	// assertions, keyed by table name.
	Tables map[string]Table `yaml:"tables,omitempty"`

	// Assertions validate the trace and the final plan.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id for deterministic traces.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Table is the content of one scanned table.
type Table struct {
	Columns []string `yaml:"columns"`
	Rows    [][]any  `yaml:"rows"`
}

// Assertion validates the trace or the final plan.
type Assertion struct {
	// Type specifies the assertion type:
	// - "fired": Rule fired exactly Count times
	// - "assignment": Node assigns Symbol to Expr in the final plan
	// - "no_assignment": Node does not assign Symbol in the final plan
	// - "outputs": Node's output symbols equal Symbols, in order
	// - "final_plan": The final plan renders as Text
	// - "unchanged": No rule fired
	// - "equivalent": Input and final plan return the same rows over Tables
	// - "error": Optimization failed with runtime error Code
	Type string `yaml:"type"`

	// Rule is the rule name (used by fired).
	Rule string `yaml:"rule,omitempty"`

	// Count is the expected number of firings (used by fired).
	Count int `yaml:"count,omitempty"`

	// Node is a plan node id (used by assignment, no_assignment, outputs).
	Node string `yaml:"node,omitempty"`

	// Symbol is the assigned symbol (used by assignment, no_assignment).
	Symbol string `yaml:"symbol,omitempty"`

	// Expr is the expected expression in plan file syntax (used by assignment).
	Expr string `yaml:"expr,omitempty"`

	// Symbols is the expected output list (used by outputs).
	Symbols []string `yaml:"symbols,omitempty"`

	// Text is the expected plan rendering (used by final_plan).
	Text string `yaml:"text,omitempty"`

	// Code is the expected runtime error code (used by error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertFired        = "fired"
	AssertAssignment   = "assignment"
	AssertNoAssignment = "no_assignment"
	AssertOutputs      = "outputs"
	AssertFinalPlan    = "final_plan"
	AssertUnchanged    = "unchanged"
	AssertEquivalent   = "equivalent"
	AssertError        = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// PlanFile is resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the plan path relative to the scenario BEFORE validation
	if scenario.PlanFile != "" && !filepath.IsAbs(scenario.PlanFile) {
		scenario.PlanFile = filepath.Join(filepath.Dir(path), scenario.PlanFile)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes scenario YAML without resolving or checking the
// plan file path.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml scenario in dir, sorted by
// file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.PlanFile == "" {
		return fmt.Errorf("plan_file is required")
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := os.Stat(s.PlanFile); os.IsNotExist(err) {
		return fmt.Errorf("plan file not found: %s", s.PlanFile)
	}

	for name, table := range s.Tables {
		if len(table.Columns) == 0 {
			return fmt.Errorf("tables.%s: columns list is required", name)
		}
		for i, row := range table.Rows {
			if len(row) != len(table.Columns) {
				return fmt.Errorf("tables.%s.rows[%d]: has %d values, want %d", name, i, len(row), len(table.Columns))
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for fired", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fired", index)
		}
	case AssertAssignment:
		if a.Node == "" || a.Symbol == "" || a.Expr == "" {
			return fmt.Errorf("assertions[%d]: node, symbol and expr are required for assignment", index)
		}
	case AssertNoAssignment:
		if a.Node == "" || a.Symbol == "" {
			return fmt.Errorf("assertions[%d]: node and symbol are required for no_assignment", index)
		}
	case AssertOutputs:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for outputs", index)
		}
		if len(a.Symbols) == 0 {
			return fmt.Errorf("assertions[%d]: symbols list is required for outputs", index)
		}
	case AssertFinalPlan:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for final_plan", index)
		}
	case AssertUnchanged, AssertEquivalent:
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
