package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/Sternrassler/ishmael-client/pkg/pagination"
)

// RowFilter is a compiled boolean expression over a row's fields,
// e.g. `prob > 0.6 && outcome == "home"`.
type RowFilter struct {
	expression string
	program    *vm.Program
}

// CompileFilter compiles expression. An empty expression yields a nil
// filter that matches everything.
func CompileFilter(expression string) (*RowFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}

	program, err := expr.Compile(expression,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}

	return &RowFilter{expression: expression, program: program}, nil
}

// Match evaluates the filter against row.
func (f *RowFilter) Match(row pagination.Row) (bool, error) {
	if f == nil {
		return true, nil
	}

	env := make(map[string]any, len(row))
	for k, v := range row {
		env[k] = plainValue(v)
	}

	result, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.expression, err)
	}
	matched, _ := result.(bool)
	return matched, nil
}

// plainValue converts json.Number into int or float64 so expressions can
// compare numbers, recursing into nested values.
func plainValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
