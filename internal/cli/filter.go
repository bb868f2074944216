package cli

import (
	"encoding/json"
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// whereFilter keeps the items for which a boolean expr expression holds.
// Item fields are exposed by their JSON names, e.g. `schoolYear >= 2025`.
type whereFilter struct {
	expression string
	program    *exprvm.Program
}

func compileWhere(expression string) (*whereFilter, error) {
	if expression == "" {
		return nil, nil
	}
	program, err := exprlang.Compile(expression,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --where expression", err)
	}
	return &whereFilter{expression: expression, program: program}, nil
}

// match evaluates the filter against one item.
func (f *whereFilter) match(item any) (bool, error) {
	if f == nil {
		return true, nil
	}
	env, err := fieldsOf(item)
	if err != nil {
		return false, err
	}
	out, err := exprlang.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", f.expression, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

// apply returns the items that match. items may be cached data and is
// never modified.
func apply[T any](f *whereFilter, items []T) ([]T, error) {
	if f == nil {
		return items, nil
	}
	kept := make([]T, 0, len(items))
	for _, item := range items {
		ok, err := f.match(item)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

func fieldsOf(item any) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	env := map[string]any{}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env, nil
}
