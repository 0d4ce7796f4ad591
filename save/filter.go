package save

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// ExprFilter compiles an expr-lang boolean expression into an EntityFilter.
// The expression sees:
//
//	type         the entity type name
//	state        "Added", "Modified" or "Deleted"
//	forceUpdate  the aspect's force-update flag
//	entity       the entity's fields
//
// For example: state != "Deleted" && entity.archived != true
func ExprFilter(expression string) (EntityFilter, error) {
	if expression == "" {
		return nil, fmt.Errorf("filter expression must not be empty")
	}
	program, err := expr.Compile(expression, expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expression, err)
	}
	return func(e *Entity) (bool, error) {
		out, err := expr.Run(program, filterEnv(e))
		if err != nil {
			return false, fmt.Errorf("filter %q: %w", expression, err)
		}
		keep, _ := out.(bool)
		return keep, nil
	}, nil
}

func filterEnv(e *Entity) map[string]any {
	return map[string]any{
		"type":        e.Aspect.TypeName,
		"state":       string(e.Aspect.State),
		"forceUpdate": e.Aspect.ForceUpdate,
		"entity":      e.Fields,
	}
}
