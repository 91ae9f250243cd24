package rule

import (
	"fmt"
	"strings"

	"github.com/roach88/projmerge/internal/plan"
)

// Rule is a single plan rewrite.
type Rule interface {
	// Name identifies the rule in traces, session properties and the CLI.
	Name() string

	// Pattern is the structural shape of nodes the rule may apply to.
	Pattern() Pattern

	// Apply rewrites node. It returns (replacement, true) when the rule
	// applies and (nil, false) otherwise.
	Apply(node plan.PlanNode, ctx *Context) (plan.PlanNode, bool)
}

// Context carries the collaborators every rule receives.
//
// IDs and Symbols are part of the uniform rule signature even for rules
// that never allocate.
type Context struct {
	Lookup  plan.Lookup
	IDs     *plan.IDAllocator
	Symbols *plan.SymbolAllocator
	Session Session
}

// NewContext creates a context with fresh allocators over lookup.
func NewContext(lookup plan.Lookup) *Context {
	return &Context{
		Lookup:  lookup,
		IDs:     plan.NewIDAllocator(),
		Symbols: plan.NewSymbolAllocator(),
	}
}

// Resolve dereferences a source through the context's Lookup.
func (c *Context) Resolve(node plan.PlanNode) plan.PlanNode {
	if c == nil || c.Lookup == nil {
		return plan.NoLookup.Resolve(node)
	}
	return c.Lookup.Resolve(node)
}

// Session holds per-run properties. Rules are switched off with
// "<RuleName>.enabled=false".
type Session struct {
	Properties map[string]string
}

// EnabledProperty returns the session property that toggles a rule.
func EnabledProperty(ruleName string) string {
	return ruleName + ".enabled"
}

// RuleEnabled reports whether the named rule may fire. Rules are enabled
// unless their property is set to "false".
func (s Session) RuleEnabled(name string) bool {
	v, ok := s.Properties[EnabledProperty(name)]
	return !ok || !strings.EqualFold(v, "false")
}

// WithDisabled returns a copy of s with the named rules switched off.
func (s Session) WithDisabled(names ...string) Session {
	props := make(map[string]string, len(s.Properties)+len(names))
	for k, v := range s.Properties {
		props[k] = v
	}
	for _, n := range names {
		props[EnabledProperty(n)] = "false"
	}
	return Session{Properties: props}
}

// DefaultRules returns the projection rules in the order the optimizer
// tries them.
func DefaultRules() []Rule {
	return []Rule{
		NewInlineProjections(),
		NewPruneProjectColumns(),
		NewRemoveIdentityProjections(),
	}
}

// ByName selects rules from DefaultRules, in the requested order.
func ByName(names ...string) ([]Rule, error) {
	known := make(map[string]Rule)
	for _, r := range DefaultRules() {
		known[r.Name()] = r
	}

	out := make([]Rule, 0, len(names))
	for _, n := range names {
		r, ok := known[n]
		if !ok {
			return nil, fmt.Errorf("unknown rule %q (known: %s)", n, strings.Join(Names(DefaultRules()), ", "))
		}
		out = append(out, r)
	}
	return out, nil
}

// Names returns the names of rules, in order.
func Names(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Name()
	}
	return out
}
