package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDependency is matched by MissingDependencyError
	ErrMissingDependency = errors.New("missing dependency")
	// ErrDuplicateDefinition is matched by DuplicateDefinitionError
	ErrDuplicateDefinition = errors.New("duplicate entity definition")
	// ErrRelationshipResolution is matched by RelationshipResolutionError
	ErrRelationshipResolution = errors.New("unresolved relationship")
	// ErrNotInitialized is matched by NotInitializedError
	ErrNotInitialized = errors.New("entities not initialized")
	// ErrNotFound is matched by NotFoundError
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidDefinition is returned when a definition is incomplete
	ErrInvalidDefinition = errors.New("invalid entity definition")
	// ErrNilEntity is returned when a build function produces no entity
	ErrNilEntity = errors.New("build function returned nil entity")
)

// MissingDependencyError is returned when a definition is reached before one
// of its declared dependencies has been built.
type MissingDependencyError struct {
	Entity            string
	MissingDependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("entity %q depends on %q which has not been built", e.Entity, e.MissingDependency)
}

// Is reports whether target is ErrMissingDependency
func (*MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

// DuplicateDefinitionError is returned when a name is defined twice with
// conflicting build functions or dependencies.
type DuplicateDefinitionError struct {
	Entity string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("entity %q is already defined with a different build function", e.Entity)
}

// Is reports whether target is ErrDuplicateDefinition
func (*DuplicateDefinitionError) Is(target error) bool {
	return target == ErrDuplicateDefinition
}

// RelationshipResolutionError is returned when a built entity declares a
// relationship whose target is not in the registry.
type RelationshipResolutionError struct {
	Entity       string
	Relationship string
	Target       string
}

func (e *RelationshipResolutionError) Error() string {
	return fmt.Sprintf("entity %q relationship %q references unknown entity %q",
		e.Entity, e.Relationship, e.Target)
}

// Is reports whether target is ErrRelationshipResolution
func (*RelationshipResolutionError) Is(target error) bool {
	return target == ErrRelationshipResolution
}

// NotInitializedError is returned when an entity is requested before
// initialization has completed.
type NotInitializedError struct {
	Entity string
	State  State
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("cannot access entity %q: initialization state is %s", e.Entity, e.State)
}

// Is reports whether target is ErrNotInitialized
func (*NotInitializedError) Is(target error) bool {
	return target == ErrNotInitialized
}

// NotFoundError is returned when a requested entity was never defined.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found", e.Entity)
}

// Is reports whether target is ErrNotFound
func (*NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
