package graph

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hurou927/pg-relsub/internal/relation"
)

// WriteMermaid writes the graph as a Mermaid erDiagram. Inverse records are
// implied by their ManyToOne counterpart, and each ManyToMany pair is drawn once.
func WriteMermaid(w io.Writer, g *Graph) error {
	if _, err := fmt.Fprintln(w, "erDiagram"); err != nil {
		return err
	}

	linked := make(map[string]bool)
	for _, r := range g.rels {
		var glyph, label string
		switch r.Cardinality {
		case relation.ManyToOne:
			glyph, label = "}o--||", strings.Join(r.SourceColumns, ", ")
		case relation.OneToOne:
			glyph, label = "|o--||", strings.Join(r.SourceColumns, ", ")
		case relation.ManyToMany:
			if r.Junction.FromConstraint > r.Junction.ToConstraint {
				continue
			}
			glyph, label = "}o--o{", "via "+r.Junction.Table
		default:
			continue
		}
		linked[r.Source()], linked[r.Target()] = true, true
		if _, err := fmt.Fprintf(w, "    %s %s %s : \"%s\"\n",
			mermaidID(r.Source()), glyph, mermaidID(r.Target()), label); err != nil {
			return err
		}
	}

	// Write standalone nodes
	for _, t := range g.TableNames() {
		if linked[t] {
			continue
		}
		if _, err := fmt.Fprintf(w, "    %s {\n    }\n", mermaidID(t)); err != nil {
			return err
		}
	}

	return nil
}

// WriteText writes a text summary of the graph to w.
func WriteText(w io.Writer, g *Graph) error {
	components := FindComponents(g)

	counts := make(map[relation.Cardinality]int)
	for _, r := range g.rels {
		counts[r.Cardinality]++
	}

	fmt.Fprintf(w, "Tables: %d\n", len(g.Tables))
	fmt.Fprintf(w, "Relationships: %d (many_to_one %d, one_to_one %d, one_to_many %d, many_to_many %d)\n",
		len(g.rels), counts[relation.ManyToOne], counts[relation.OneToOne],
		counts[relation.OneToMany], counts[relation.ManyToMany])
	fmt.Fprintf(w, "Connected Components: %d\n\n", len(components))

	topoResult := TopoSortAll(g)
	if topoResult.HasCycle {
		fmt.Fprintf(w, "WARNING: Circular dependencies detected: %v\n\n", topoResult.CycleTables)
	}

	if selfRefs := selfRelationTables(g); len(selfRefs) > 0 {
		fmt.Fprintf(w, "Self-referencing tables: %v\n\n", selfRefs)
	}

	if junctions := junctionTables(g); len(junctions) > 0 {
		fmt.Fprintf(w, "Junction tables: %v\n\n", junctions)
	}

	for i, comp := range components {
		fmt.Fprintf(w, "=== Component %d (%d tables) ===\n", i+1, len(comp.Tables))

		topoComp := TopoSort(g, comp.Tables)
		if topoComp.HasCycle {
			fmt.Fprintf(w, "  Topological order (partial, has cycle):\n")
		} else {
			fmt.Fprintf(w, "  Topological order:\n")
		}
		for j, t := range topoComp.Order {
			fmt.Fprintf(w, "    %d. %s\n", j+1, t)
		}
		if topoComp.HasCycle {
			fmt.Fprintf(w, "  Cycle tables: %v\n", topoComp.CycleTables)
		}

		fmt.Fprintf(w, "  Relationships:\n")
		for _, t := range comp.Tables {
			schemaName, table, _ := strings.Cut(t, ".")
			for _, r := range g.From(schemaName, table) {
				fmt.Fprintf(w, "    %s\n", r)
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}

// mermaidID converts a schema.table name to a Mermaid-safe node ID.
func mermaidID(fullName string) string {
	return strings.ReplaceAll(fullName, ".", "_")
}

func selfRelationTables(g *Graph) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range g.rels {
		if r.IsSelfRelation && r.Cardinality != relation.ManyToMany && !seen[r.Source()] {
			seen[r.Source()] = true
			out = append(out, r.Source())
		}
	}
	return out
}

func junctionTables(g *Graph) []string {
	var out []string
	seen := make(map[string]bool)
	for _, r := range g.rels {
		if r.Junction == nil || seen[r.Junction.FullName()] {
			continue
		}
		seen[r.Junction.FullName()] = true
		out = append(out, r.Junction.FullName())
	}
	sort.Strings(out)
	return out
}
