package plan

import "errors"

var (
	// ErrInvalidQuery is returned when a query tree fails validation.
	ErrInvalidQuery = errors.New("relsub/plan: invalid query")

	// ErrUnresolvedRelation is returned in strict mode when a nested relation
	// matches no relationship.
	ErrUnresolvedRelation = errors.New("relsub/plan: unresolved relation")

	// ErrAmbiguousRelationship is returned under AmbiguityError when a nested
	// relation matches more than one relationship.
	ErrAmbiguousRelationship = errors.New("relsub/plan: ambiguous relationship")

	// ErrRelationCycle is returned in strict mode when a nested relation
	// resolves to a table already on its ancestor path.
	ErrRelationCycle = errors.New("relsub/plan: relation cycle")

	// ErrMaxDepth is returned when the query tree is deeper than allowed.
	ErrMaxDepth = errors.New("relsub/plan: query too deep")
)

// IsUnresolvedRelationErr returns true if err is or wraps ErrUnresolvedRelation.
func IsUnresolvedRelationErr(err error) bool {
	return errors.Is(err, ErrUnresolvedRelation)
}

// IsAmbiguousRelationshipErr returns true if err is or wraps ErrAmbiguousRelationship.
func IsAmbiguousRelationshipErr(err error) bool {
	return errors.Is(err, ErrAmbiguousRelationship)
}
