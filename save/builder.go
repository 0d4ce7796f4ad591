package save

// buildGroups partitions entities by type name, in first-seen type order,
// keeping only entities the filter accepts. A filter error aborts the build.
func buildGroups(entities []*Entity, filter EntityFilter) (map[string][]*Entity, []string, error) {
	groups := make(map[string][]*Entity)
	var order []string
	for _, e := range entities {
		if e == nil {
			continue
		}
		if filter != nil {
			keep, err := callFilter(filter, e)
			if err != nil {
				return nil, nil, &Error{Kind: KindInternal, Op: "build change set", TypeName: e.Aspect.TypeName,
					Msg: "entity filter failed", Err: err}
			}
			if !keep {
				continue
			}
		}
		order = appendGroup(groups, order, e)
	}
	return groups, order, nil
}

// appendGroup adds e to its type group, extending order for a new type.
func appendGroup(groups map[string][]*Entity, order []string, e *Entity) []string {
	name := e.Aspect.TypeName
	if _, seen := groups[name]; !seen {
		order = append(order, name)
	}
	groups[name] = append(groups[name], e)
	return order
}
