package graph

import (
	"maps"
	"slices"
)

// Component represents a connected component of tables.
type Component struct {
	Tables []string
}

// FindComponents groups tables connected by any relationship, ignoring
// direction. Components come in order of their smallest table name.
func FindComponents(g *Graph) []Component {
	seen := make(map[string]bool, len(g.Tables))
	var components []Component
	for _, start := range g.TableNames() {
		if !seen[start] {
			components = append(components, Component{Tables: g.reachable(start, seen)})
		}
	}
	return components
}

// reachable walks Adjacency breadth-first from start, visiting neighbours in
// name order, and returns the sorted members. Visited tables are marked in seen.
func (g *Graph) reachable(start string, seen map[string]bool) []string {
	seen[start] = true
	members := []string{start}
	for i := 0; i < len(members); i++ {
		for _, next := range slices.Sorted(maps.Keys(g.Adjacency[members[i]])) {
			if !seen[next] {
				seen[next] = true
				members = append(members, next)
			}
		}
	}
	slices.Sort(members)
	return members
}
