package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/projmerge/internal/ir"
	"github.com/roach88/projmerge/internal/plan"
)

// Node kinds accepted in plan files.
const (
	KindProject = "project"
	KindFilter  = "filter"
	KindScan    = "scan"
	KindValues  = "values"
)

// Compiled is one named plan compiled from a plan file, together with the
// symbol allocator that holds its symbol types.
type Compiled struct {
	Name    string
	Plan    plan.PlanNode
	Symbols *plan.SymbolAllocator
}

// CompileFile reads and compiles every plan in a CUE file.
func CompileFile(path string) ([]Compiled, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	ctx := cuecontext.New()
	return CompilePlans(ctx.CompileBytes(data, cue.Filename(path)))
}

// CompileString compiles every plan in src. filename is used in error
// positions only.
func CompileString(filename, src string) ([]Compiled, error) {
	ctx := cuecontext.New()
	return CompilePlans(ctx.CompileString(src, cue.Filename(filename)))
}

// CompilePlans compiles the plans declared under the top-level "plans"
// struct, in declaration order:
//
//	plans: example: {
//		id: "p1", kind: "project"
//		assignments: [{symbol: "x", expr: "a * 2"}]
//		source: {kind: "scan", table: "t", outputs: ["a"]}
//	}
func CompilePlans(v cue.Value) ([]Compiled, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	plansVal := v.LookupPath(cue.ParsePath("plans"))
	if !plansVal.Exists() {
		return nil, &CompileError{
			Code:    ErrMissingField,
			Field:   "plans",
			Message: "plans is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := plansVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var compiled []Compiled
	for iter.Next() {
		c, err := CompilePlan(iter.Value())
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}

	if len(compiled) == 0 {
		return nil, &CompileError{
			Code:    ErrMissingField,
			Field:   "plans",
			Message: "at least one plan is required",
			Pos:     plansVal.Pos(),
		}
	}
	return compiled, nil
}

// CompilePlan compiles a single plan value. The plan name is the value's
// last path selector. Nodes without an explicit id get allocator ids that
// never collide with the explicit ones.
func CompilePlan(v cue.Value) (Compiled, error) {
	compiled, errs := compilePlan(v)
	if len(errs) > 0 {
		return Compiled{}, errs[0]
	}
	return compiled, nil
}

// CheckPlans compiles every plan under "plans" and returns all problems
// found, instead of stopping at the first one. A plan with a structural
// error contributes that error only.
func CheckPlans(v cue.Value) []error {
	if err := v.Err(); err != nil {
		return []error{formatCUEError(err)}
	}

	plansVal := v.LookupPath(cue.ParsePath("plans"))
	if !plansVal.Exists() {
		return []error{&CompileError{
			Code:    ErrMissingField,
			Field:   "plans",
			Message: "plans is required",
			Pos:     v.Pos(),
		}}
	}

	iter, err := plansVal.Fields()
	if err != nil {
		return []error{formatCUEError(err)}
	}

	var errs []error
	count := 0
	for iter.Next() {
		count++
		_, planErrs := compilePlan(iter.Value())
		errs = append(errs, planErrs...)
	}
	if count == 0 {
		errs = append(errs, &CompileError{
			Code:    ErrMissingField,
			Field:   "plans",
			Message: "at least one plan is required",
			Pos:     plansVal.Pos(),
		})
	}
	return errs
}

func compilePlan(v cue.Value) (Compiled, []error) {
	if err := v.Err(); err != nil {
		return Compiled{}, []error{formatCUEError(err)}
	}

	var name string
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}

	c := &planCompiler{
		ids:       plan.NewIDAllocator(),
		syms:      plan.NewSymbolAllocator(),
		positions: make(map[plan.NodeID]token.Pos),
	}
	c.observeIDs(v)

	root, err := c.node(v)
	if err != nil {
		return Compiled{}, []error{err}
	}

	lines := make(map[plan.NodeID]int, len(c.positions))
	for id, pos := range c.positions {
		lines[id] = pos.Line()
	}
	problems := Validate(root, lines)
	if len(problems) == 0 {
		return Compiled{Name: name, Plan: root, Symbols: c.syms}, nil
	}

	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = &CompileError{
			Code:    p.Code,
			Field:   fmt.Sprintf("plans.%s.%s", name, p.Field),
			Message: p.Message,
			Pos:     c.positions[p.Node],
		}
	}
	return Compiled{}, errs
}

// planCompiler holds the per-plan allocators.
type planCompiler struct {
	ids       *plan.IDAllocator
	syms      *plan.SymbolAllocator
	positions map[plan.NodeID]token.Pos
}

// observeIDs reserves every explicit id in the tree before any id is
// allocated.
func (c *planCompiler) observeIDs(v cue.Value) {
	for v.Exists() {
		if id, err := v.LookupPath(cue.ParsePath("id")).String(); err == nil {
			c.ids.Observe(plan.NodeID(id))
		}
		v = v.LookupPath(cue.ParsePath("source"))
	}
}

func (c *planCompiler) node(v cue.Value) (plan.PlanNode, error) {
	kind, _, err := requireString(v, "kind")
	if err != nil {
		return nil, err
	}

	var node plan.PlanNode
	switch kind {
	case KindProject:
		node, err = c.project(v)
	case KindFilter:
		node, err = c.filter(v)
	case KindScan:
		node, err = c.scan(v)
	case KindValues:
		node, err = c.values(v)
	default:
		return nil, &CompileError{
			Code:    ErrUnknownKind,
			Field:   pathOf(v, "kind"),
			Message: fmt.Sprintf("unknown node kind %q, must be project, filter, scan or values", kind),
			Pos:     v.LookupPath(cue.ParsePath("kind")).Pos(),
		}
	}
	if err != nil {
		return nil, err
	}

	c.positions[node.ID()] = v.Pos()
	return node, nil
}

// id returns the node's explicit id, or a fresh one.
func (c *planCompiler) id(v cue.Value) (plan.NodeID, error) {
	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return c.ids.Next(), nil
	}
	id, err := idVal.String()
	if err != nil || id == "" {
		return "", &CompileError{
			Code:    ErrInvalidValue,
			Field:   pathOf(v, "id"),
			Message: "id must be a non-empty string",
			Pos:     idVal.Pos(),
		}
	}
	return plan.NodeID(id), nil
}

func (c *planCompiler) source(v cue.Value) (plan.PlanNode, error) {
	sourceVal := v.LookupPath(cue.ParsePath("source"))
	if !sourceVal.Exists() {
		return nil, missing(v, "source")
	}
	return c.node(sourceVal)
}

func (c *planCompiler) project(v cue.Value) (plan.PlanNode, error) {
	source, err := c.source(v)
	if err != nil {
		return nil, err
	}
	id, err := c.id(v)
	if err != nil {
		return nil, err
	}

	listVal := v.LookupPath(cue.ParsePath("assignments"))
	if !listVal.Exists() {
		return nil, missing(v, "assignments")
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	b := plan.NewAssignmentsBuilder()
	seen := make(map[ir.Symbol]bool)
	for iter.Next() {
		entry := iter.Value()

		name, nameVal, err := requireString(entry, "symbol")
		if err != nil {
			return nil, err
		}
		symbol := ir.Symbol(name)
		if seen[symbol] {
			return nil, &CompileError{
				Code:    ErrDuplicateName,
				Field:   pathOf(entry, "symbol"),
				Message: fmt.Sprintf("symbol %q is assigned twice", name),
				Pos:     nameVal.Pos(),
			}
		}
		seen[symbol] = true

		expr, err := c.expression(entry, "expr")
		if err != nil {
			return nil, err
		}
		if err := c.declare(entry, symbol, expr); err != nil {
			return nil, err
		}
		b.Put(symbol, expr)
	}

	return plan.NewProjectNode(id, source, b.Build()), nil
}

func (c *planCompiler) filter(v cue.Value) (plan.PlanNode, error) {
	source, err := c.source(v)
	if err != nil {
		return nil, err
	}
	id, err := c.id(v)
	if err != nil {
		return nil, err
	}
	predicate, err := c.expression(v, "predicate")
	if err != nil {
		return nil, err
	}
	return plan.NewFilterNode(id, source, predicate), nil
}

func (c *planCompiler) scan(v cue.Value) (plan.PlanNode, error) {
	id, err := c.id(v)
	if err != nil {
		return nil, err
	}
	table, _, err := requireString(v, "table")
	if err != nil {
		return nil, err
	}
	outputs, types, err := c.outputs(v)
	if err != nil {
		return nil, err
	}
	for i, s := range outputs {
		if err := c.declareType(v, s, types[i]); err != nil {
			return nil, err
		}
	}
	return plan.NewTableScanNode(id, table, outputs), nil
}

func (c *planCompiler) values(v cue.Value) (plan.PlanNode, error) {
	id, err := c.id(v)
	if err != nil {
		return nil, err
	}
	outputs, types, err := c.outputs(v)
	if err != nil {
		return nil, err
	}

	var rows [][]ir.Expression
	if rowsVal := v.LookupPath(cue.ParsePath("rows")); rowsVal.Exists() {
		rowIter, err := rowsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for rowIter.Next() {
			cellIter, err := rowIter.Value().List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			var row []ir.Expression
			for cellIter.Next() {
				cell, err := cellExpression(cellIter.Value())
				if err != nil {
					return nil, err
				}
				row = append(row, cell)
			}
			rows = append(rows, row)
		}
	}

	for i, s := range outputs {
		t := types[i]
		if t == ir.TypeUnknown {
			t = columnType(rows, i)
		}
		if err := c.declareType(v, s, t); err != nil {
			return nil, err
		}
	}
	return plan.NewValuesNode(id, outputs, rows), nil
}

// columnType is the type of the first non-null literal in column i.
func columnType(rows [][]ir.Expression, i int) ir.Type {
	for _, row := range rows {
		if i >= len(row) {
			continue
		}
		if lit, ok := row[i].(*ir.Literal); ok {
			if t := valueType(lit.Value); t != ir.TypeUnknown {
				return t
			}
		}
	}
	return ir.TypeUnknown
}

// outputs reads an outputs list whose elements are either symbol names or
// {symbol, type} structs.
func (c *planCompiler) outputs(v cue.Value) ([]ir.Symbol, []ir.Type, error) {
	listVal := v.LookupPath(cue.ParsePath("outputs"))
	if !listVal.Exists() {
		return nil, nil, missing(v, "outputs")
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	var symbols []ir.Symbol
	var types []ir.Type
	for iter.Next() {
		entry := iter.Value()
		if name, err := entry.String(); err == nil {
			symbols = append(symbols, ir.Symbol(name))
			types = append(types, ir.TypeUnknown)
			continue
		}

		name, _, err := requireString(entry, "symbol")
		if err != nil {
			return nil, nil, err
		}
		t, err := declaredType(entry)
		if err != nil {
			return nil, nil, err
		}
		symbols = append(symbols, ir.Symbol(name))
		types = append(types, t)
	}
	return symbols, types, nil
}

func (c *planCompiler) expression(v cue.Value, field string) (ir.Expression, error) {
	src, srcVal, err := requireString(v, field)
	if err != nil {
		return nil, err
	}
	expr, err := ParseExpression(src)
	if err != nil {
		return nil, &CompileError{
			Code:    ErrInvalidExpression,
			Field:   pathOf(v, field),
			Message: fmt.Sprintf("invalid expression %q: %v", src, err),
			Pos:     srcVal.Pos(),
		}
	}
	return expr, nil
}

// declare records an assigned symbol with its declared type, or the type
// inferred from expr when none is given.
func (c *planCompiler) declare(entry cue.Value, s ir.Symbol, expr ir.Expression) error {
	t, err := declaredType(entry)
	if err != nil {
		return err
	}
	if t == ir.TypeUnknown {
		t = inferType(expr, c.syms)
	}
	return c.declareType(entry, s, t)
}

func (c *planCompiler) declareType(v cue.Value, s ir.Symbol, t ir.Type) error {
	if err := c.syms.Declare(s, t); err != nil {
		return &CompileError{
			Code:    ErrInvalidFieldType,
			Field:   v.Path().String(),
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return nil
}

func declaredType(entry cue.Value) (ir.Type, error) {
	typeVal := entry.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return ir.TypeUnknown, nil
	}
	name, err := typeVal.String()
	if err != nil {
		return "", &CompileError{
			Code:    ErrInvalidValue,
			Field:   pathOf(entry, "type"),
			Message: "type must be a string",
			Pos:     typeVal.Pos(),
		}
	}
	t, code, err := parseType(name)
	if err != nil {
		return "", &CompileError{
			Code:    code,
			Field:   pathOf(entry, "type"),
			Message: err.Error(),
			Pos:     typeVal.Pos(),
		}
	}
	return t, nil
}

// cellExpression converts a concrete CUE scalar in a values row.
func cellExpression(v cue.Value) (ir.Expression, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.NullLit(), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IntLit(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.StringLit(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.BoolLit(b), nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Code:    ErrFloatTypeForbidden,
			Field:   v.Path().String(),
			Message: "float values are forbidden, use an integer",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Code:    ErrInvalidValue,
			Field:   v.Path().String(),
			Message: fmt.Sprintf("row values must be concrete scalars, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requireString(v cue.Value, field string) (string, cue.Value, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", f, missing(v, field)
	}
	s, err := f.String()
	if err != nil {
		return "", f, &CompileError{
			Code:    ErrInvalidValue,
			Field:   pathOf(v, field),
			Message: fmt.Sprintf("%s must be a string", field),
			Pos:     f.Pos(),
		}
	}
	return s, f, nil
}

func missing(v cue.Value, field string) error {
	return &CompileError{
		Code:    ErrMissingField,
		Field:   pathOf(v, field),
		Message: field + " is required",
		Pos:     v.Pos(),
	}
}

func pathOf(v cue.Value, field string) string {
	if p := v.Path().String(); p != "" {
		return p + "." + field
	}
	return field
}
