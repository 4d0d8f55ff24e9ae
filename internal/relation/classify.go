package relation

import "github.com/hurou927/pg-relsub/internal/schema"

// Classify turns each foreign key into a ManyToOne or OneToOne relationship.
// A foreign key whose source columns equal (as a set) a primary or unique
// key of its source table is one-to-one. keys maps "schema.table" to the
// key constraints of that table.
func Classify(fks []schema.ForeignKey, keys map[string][]schema.KeyConstraint) []Relationship {
	rels := make([]Relationship, 0, len(fks))
	for _, fk := range fks {
		card := ManyToOne
		for _, k := range keys[fk.Source()] {
			if fk.SourceColumns.Equal(k.Columns) {
				card = OneToOne
				break
			}
		}
		rels = append(rels, Relationship{
			SourceSchema:   fk.SourceSchema,
			SourceTable:    fk.SourceTable,
			SourceColumns:  fk.SourceColumns,
			TargetSchema:   fk.TargetSchema,
			TargetTable:    fk.TargetTable,
			TargetColumns:  fk.TargetColumns,
			Cardinality:    card,
			ConstraintName: fk.Name,
			IsSelfRelation: fk.IsSelfRef,
		})
	}
	return rels
}
