// Package cel compiles CEL expressions used to filter transport reports.
package cel

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// ErrNotBoolean is returned when an expression does not evaluate to a bool.
var ErrNotBoolean = errors.New("filter expression must evaluate to bool")

// Var declares a typed variable visible to filter expressions.
type Var struct {
	Name string
	Type *cel.Type
}

// String declares a string variable.
func String(name string) Var { return Var{Name: name, Type: cel.StringType} }

// Bool declares a bool variable.
func Bool(name string) Var { return Var{Name: name, Type: cel.BoolType} }

// Filter is a compiled boolean CEL expression.
type Filter struct {
	expr    string
	program cel.Program
}

// Compile parses and type-checks expr against vars. Expressions referencing
// undeclared names or yielding a non-bool result are rejected here, not at
// evaluation time.
func Compile(expr string, vars ...Var) (*Filter, error) {
	opts := make([]cel.EnvOption, 0, len(vars))
	for _, v := range vars {
		opts = append(opts, cel.Variable(v.Name, v.Type))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("cel compile: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("cel compile %q: %w (got %s)", expr, ErrNotBoolean, ast.OutputType())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("cel program: %w", err)
	}

	return &Filter{expr: expr, program: prog}, nil
}

// String returns the source expression.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the filter against attrs. A nil filter matches everything.
// Missing attributes and evaluation errors yield false.
func (f *Filter) Match(attrs map[string]any) bool {
	if f == nil {
		return true
	}
	out, _, err := f.program.Eval(attrs)
	if err != nil {
		return false
	}
	if out.Type() != types.BoolType {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
