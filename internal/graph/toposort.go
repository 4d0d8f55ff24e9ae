package graph

import (
	"fmt"
	"sort"
)

// TopoResult holds the result of topological sorting.
type TopoResult struct {
	// Order is the topological order (referenced tables before referencing ones).
	Order []string
	// HasCycle is true if the FK edges contain a cycle.
	HasCycle bool
	// CycleTables lists tables involved in cycles (if any).
	CycleTables []string
}

// TopoSort performs Kahn's algorithm over the FK-direction edges restricted
// to tables. Ties are broken by name so the order is reproducible.
func TopoSort(g *Graph, tables []string) TopoResult {
	tableSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableSet[t] = true
	}

	inDegree := make(map[string]int, len(tables))
	for _, t := range tables {
		inDegree[t] = 0
	}

	// Build local maps (only edges within the subset)
	localChildren := make(map[string][]string)
	for child, parents := range g.dependencyEdges() {
		if !tableSet[child] {
			continue
		}
		for _, p := range parents {
			if tableSet[p] {
				localChildren[p] = append(localChildren[p], child)
				inDegree[child]++
			}
		}
	}

	var queue []string
	for _, t := range tables {
		if inDegree[t] == 0 {
			queue = append(queue, t)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		children := localChildren[node]
		sort.Strings(children)
		for _, child := range children {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	result := TopoResult{Order: order}

	if len(order) < len(tables) {
		result.HasCycle = true
		for _, t := range tables {
			if inDegree[t] > 0 {
				result.CycleTables = append(result.CycleTables, t)
			}
		}
		sort.Strings(result.CycleTables)
	}

	return result
}

// TopoSortAll performs topological sort across all tables in the graph.
func TopoSortAll(g *Graph) TopoResult {
	return TopoSort(g, g.TableNames())
}

// ValidateCycles checks for cycles and returns a descriptive error if found.
func ValidateCycles(result TopoResult) error {
	if !result.HasCycle {
		return nil
	}
	return fmt.Errorf("circular dependency detected among tables: %v", result.CycleTables)
}
