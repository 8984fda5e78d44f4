package sources

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/infracollect/s3zip/internal/engine"
)

// Filter selects objects with a CEL expression. The expression sees the
// variables key, name (string), size (int) and modified (timestamp) and must
// evaluate to a bool, e.g. `name.endsWith(".json") && size < 1048576`.
type Filter struct {
	expr    string
	program cel.Program
}

// NewFilter compiles expr. An empty expression matches every object.
func NewFilter(expr string) (*Filter, error) {
	if expr == "" {
		return &Filter{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("modified", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("failed to compile filter %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter program: %w", err)
	}

	return &Filter{expr: expr, program: program}, nil
}

// Match reports whether obj passes the filter.
func (f *Filter) Match(obj engine.Object) (bool, error) {
	if f.program == nil {
		return true, nil
	}

	out, _, err := f.program.Eval(map[string]any{
		"key":      obj.Key,
		"name":     obj.Name,
		"size":     obj.Size,
		"modified": obj.LastModified,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate filter on %s: %w", obj.Key, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter returned %T for %s, expected bool", out.Value(), obj.Key)
	}
	return matched, nil
}

// Apply returns the objects that pass the filter, preserving order.
func (f *Filter) Apply(objects []engine.Object) ([]engine.Object, error) {
	if f.program == nil {
		return objects, nil
	}

	matched := make([]engine.Object, 0, len(objects))
	for _, obj := range objects {
		ok, err := f.Match(obj)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, obj)
		}
	}
	return matched, nil
}
