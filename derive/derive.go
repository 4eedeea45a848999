// Package derive computes channels from arithmetic expressions over fetched
// channels, evaluated row by row.
//
//	e, _ := derive.Parse("UL1N=UL12/sqrt(3)")
//	m, _ := e.Eval(map[string]measx.Block{"UL12": ul12})
//
// Inside an expression a channel name refers to its first item. Item j of a
// multi-item channel is NAME_j, e.g. UL12_h_3.
package derive

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/hupe1980/measx"
)

var (
	// ErrSyntax is returned for a malformed NAME=EXPR definition.
	ErrSyntax = errors.New("derive: invalid definition")

	// ErrRowMismatch is returned when input channels disagree on the row count.
	ErrRowMismatch = errors.New("derive: row count mismatch")
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// itemPattern splits NAME_j item references.
var itemPattern = regexp.MustCompile(`^(.+)_([0-9]+)$`)

// constants are available in every expression.
var constants = map[string]float64{
	"pi":    math.Pi,
	"sqrt3": math.Sqrt(3),
}

// Expr is a parsed derived channel definition.
type Expr struct {
	Name   string
	Source string
	idents []string
}

// Parse parses a definition of the form NAME=EXPR.
func Parse(def string) (*Expr, error) {
	name, src, ok := strings.Cut(def, "=")
	if !ok {
		return nil, fmt.Errorf("%w: %q: missing '='", ErrSyntax, def)
	}
	return New(strings.TrimSpace(name), strings.TrimSpace(src))
}

// New parses source and names the result name.
func New(name, source string) (*Expr, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: name %q", ErrSyntax, name)
	}
	tree, err := parser.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSyntax, name, err)
	}

	v := &identCollector{}
	ast.Walk(&tree.Node, v)
	return &Expr{Name: name, Source: source, idents: v.names()}, nil
}

// identCollector gathers variable identifiers. Function names appear as
// identifiers too and are removed through the callee set.
type identCollector struct {
	seen    map[string]struct{}
	callees map[string]struct{}
}

func (v *identCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if v.seen == nil {
			v.seen = make(map[string]struct{})
		}
		v.seen[n.Value] = struct{}{}
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			if v.callees == nil {
				v.callees = make(map[string]struct{})
			}
			v.callees[id.Value] = struct{}{}
		}
	}
}

func (v *identCollector) names() []string {
	out := make([]string, 0, len(v.seen))
	for name := range v.seen {
		if _, isCall := v.callees[name]; isCall {
			continue
		}
		if _, isConst := constants[name]; isConst {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Identifiers returns the variable names the expression references, sorted.
func (e *Expr) Identifiers() []string {
	return slices.Clone(e.idents)
}

// Channels maps the referenced identifiers to channel names: an identifier
// that is a known channel is used as is, NAME_j resolves to NAME when NAME is
// known. Unresolvable identifiers are returned as they are so the caller can
// report them.
func (e *Expr) Channels(known func(string) bool) []string {
	set := make(map[string]struct{}, len(e.idents))
	for _, id := range e.idents {
		set[resolve(id, known)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func resolve(id string, known func(string) bool) string {
	if known(id) {
		return id
	}
	if m := itemPattern.FindStringSubmatch(id); m != nil && known(m[1]) {
		return m[1]
	}
	return id
}

// Eval evaluates the expression for every row of inputs and returns a
// rows x 1 matrix. All inputs must have the same number of rows.
func (e *Expr) Eval(inputs map[string]measx.Block) (*measx.Matrix[float64], error) {
	rows, err := rowCount(inputs)
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(constants)+len(inputs))
	for k, v := range constants {
		env[k] = v
	}
	type binding struct {
		key   string
		block measx.Block
		col   int
	}
	var binds []binding
	for name, b := range inputs {
		_, cols := b.Shape()
		if cols > 0 {
			binds = append(binds, binding{name, b, 0})
			env[name] = 0.0
		}
		if cols > 1 {
			for j := 0; j < cols; j++ {
				key := name + "_" + strconv.Itoa(j)
				binds = append(binds, binding{key, b, j})
				env[key] = 0.0
			}
		}
	}

	prog, err := expr.Compile(e.Source, append(functions(), expr.Env(env), expr.AsFloat64())...)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", e.Name, err)
	}

	out := measx.NewMatrix[float64](rows, 1)
	for i := 0; i < rows; i++ {
		for _, bd := range binds {
			env[bd.key] = bd.block.Float64(i, bd.col)
		}
		res, err := expr.Run(prog, env)
		if err != nil {
			return nil, fmt.Errorf("derive %s: row %d: %w", e.Name, i, err)
		}
		out.Data[i] = res.(float64)
	}
	return out, nil
}

func rowCount(inputs map[string]measx.Block) (int, error) {
	rows := -1
	for name, b := range inputs {
		r, _ := b.Shape()
		if rows >= 0 && r != rows {
			return 0, fmt.Errorf("%w: %s has %d rows, expected %d", ErrRowMismatch, name, r, rows)
		}
		rows = r
	}
	return max(rows, 0), nil
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		return fn(params[0].(float64)), nil
	}, new(func(float64) float64))
}

func binary(name string, fn func(float64, float64) float64) expr.Option {
	return expr.Function(name, func(params ...any) (any, error) {
		return fn(params[0].(float64), params[1].(float64)), nil
	}, new(func(float64, float64) float64))
}

func functions() []expr.Option {
	return []expr.Option{
		unary("sqrt", math.Sqrt),
		unary("sin", math.Sin),
		unary("cos", math.Cos),
		unary("tan", math.Tan),
		unary("exp", math.Exp),
		unary("log", math.Log),
		unary("log10", math.Log10),
		binary("atan2", math.Atan2),
		binary("hypot", math.Hypot),
		binary("pow", math.Pow),
	}
}
