// Package orderer computes a creation order for resolved tables.
package orderer

import (
	"sort"
	"strings"

	"github.com/tordrt/metaddl/internal/schema"
)

// Order returns the qualified table names so that every table comes after the
// tables its foreign keys reference.
//
// Ties are broken lexicographically, so the order is fully determined by the
// schema. Self references never block a table. A cycle among two or more tables
// fails with a CyclicSchema error whose Tables field lists the cycle path, first
// member repeated at the end.
func Order(rs *schema.ResolvedSchema) ([]string, error) {
	names := rs.Names()
	pending := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))

	for _, name := range names {
		deps := rs.Tables[name].Dependencies()
		for _, dep := range deps {
			if _, ok := rs.Tables[dep]; !ok {
				return nil, &schema.Error{
					Kind:   schema.UnknownReferenceTarget,
					Table:  name,
					Target: dep,
				}
			}
			dependents[dep] = append(dependents[dep], name)
		}
		pending[name] = len(deps)
	}

	var ready []string
	for _, name := range names {
		if pending[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]string, 0, len(names))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		delete(pending, next)

		for _, dependent := range dependents[next] {
			pending[dependent]--
			if pending[dependent] == 0 {
				ready = insertSorted(ready, dependent)
			}
		}
	}

	if len(pending) > 0 {
		cycle := findCycle(rs, pending)
		return nil, &schema.Error{
			Kind:   schema.CyclicSchema,
			Table:  cycle[0],
			Tables: cycle,
			Detail: "tables reference each other: " + strings.Join(cycle, " -> "),
		}
	}
	return order, nil
}

func insertSorted(list []string, name string) []string {
	i := sort.SearchStrings(list, name)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = name
	return list
}

// findCycle walks unplaced dependencies from the smallest unplaced table. Every
// unplaced table still waits on another unplaced table, so the walk must revisit
// a node; the revisited stretch is the cycle, rotated to start at its smallest
// member.
func findCycle(rs *schema.ResolvedSchema, pending map[string]int) []string {
	remaining := make([]string, 0, len(pending))
	for name := range pending {
		remaining = append(remaining, name)
	}
	sort.Strings(remaining)

	seen := make(map[string]int)
	var path []string
	current := remaining[0]
	for {
		if at, ok := seen[current]; ok {
			path = path[at:]
			break
		}
		seen[current] = len(path)
		path = append(path, current)

		for _, dep := range rs.Tables[current].Dependencies() {
			if _, waiting := pending[dep]; waiting {
				current = dep
				break
			}
		}
	}

	start := 0
	for i, name := range path {
		if name < path[start] {
			start = i
		}
	}
	cycle := append(append([]string(nil), path[start:]...), path[:start]...)
	return append(cycle, cycle[0])
}
