package vault

import (
	"errors"
	"fmt"

	"iiifvault/pkg/iiif"
)

// ErrNotFound is returned when an operation references an id absent from the
// type index. Primitives return the input state unchanged alongside it so a
// chain of operations on stale ids degrades gracefully.
type ErrNotFound struct {
	Type iiif.EntityType
	ID   string
}

func (e ErrNotFound) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("entity %s not found", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Type, e.ID)
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// DuplicateIDError is returned when normalization encounters the same id
// twice. Normalization fails hard rather than silently overwriting.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate entity id %s", e.ID)
}

// InvalidShapeError reports a structurally invalid request: a reorder that is
// not a permutation, an action missing required fields, a move that would
// create an ownership cycle.
type InvalidShapeError struct {
	Reason string
}

func (e InvalidShapeError) Error() string {
	return "invalid shape: " + e.Reason
}

// IntegrityError aggregates integrity-rule violations. It indicates a bug in
// a mutation primitive, not a normal runtime condition.
type IntegrityError struct {
	Result Result
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("state integrity violated: %d violation(s)", len(e.Result.Violations))
}
