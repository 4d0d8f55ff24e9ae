package relation

// Invert returns a OneToMany relationship for every ManyToOne in rels.
// OneToOne edges are left alone; the graph serves them from both ends.
func Invert(rels []Relationship) []Relationship {
	var out []Relationship
	for _, r := range rels {
		if r.Cardinality != ManyToOne {
			continue
		}
		out = append(out, Relationship{
			SourceSchema:   r.TargetSchema,
			SourceTable:    r.TargetTable,
			SourceColumns:  r.TargetColumns,
			TargetSchema:   r.SourceSchema,
			TargetTable:    r.SourceTable,
			TargetColumns:  r.SourceColumns,
			Cardinality:    OneToMany,
			ConstraintName: r.ConstraintName,
			IsSelfRelation: r.IsSelfRelation,
		})
	}
	return out
}
