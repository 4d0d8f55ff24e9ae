package schema

import (
	"context"
	"errors"
	"fmt"
)

// Catalog is a read-only view over the live schema. Implementations return
// a consistent point-in-time view and never partial results.
type Catalog interface {
	// ListForeignKeys returns every FK whose source or target schema is in schemas.
	ListForeignKeys(ctx context.Context, schemas []string) ([]ForeignKey, error)
	// ListKeyConstraints returns the primary and unique keys of one table.
	ListKeyConstraints(ctx context.Context, schemaName, table string) ([]KeyConstraint, error)
}

var (
	// ErrCatalogAccess is matched by every error returned from a Catalog.
	ErrCatalogAccess = errors.New("relsub/schema: catalog access failed")

	// ErrInconsistentCatalog is returned when catalog rows contradict each other.
	ErrInconsistentCatalog = errors.New("relsub/schema: inconsistent catalog data")
)

// CatalogError wraps a failed catalog read.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

// Is makes every CatalogError match ErrCatalogAccess.
func (e *CatalogError) Is(target error) bool {
	return target == ErrCatalogAccess
}

// IsCatalogAccessErr returns true if err is or wraps a catalog failure.
func IsCatalogAccessErr(err error) bool {
	return errors.Is(err, ErrCatalogAccess)
}

func catalogErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CatalogError{Op: op, Err: err}
}

// CheckForeignKey validates the structural invariants of a foreign key.
func CheckForeignKey(fk ForeignKey) error {
	switch {
	case fk.Name == "":
		return fmt.Errorf("%w: foreign key on %s has no name", ErrInconsistentCatalog, fk.Source())
	case len(fk.SourceColumns) == 0:
		return fmt.Errorf("%w: foreign key %s has no columns", ErrInconsistentCatalog, fk.Name)
	case len(fk.SourceColumns) != len(fk.TargetColumns):
		return fmt.Errorf("%w: foreign key %s maps %d columns to %d",
			ErrInconsistentCatalog, fk.Name, len(fk.SourceColumns), len(fk.TargetColumns))
	}
	return nil
}
