package entity

import "fmt"

// Accessor is the read path route handlers use to reach built entities.
//
//go:generate mockgen -destination=mocks/mock_accessor.go -package=mocks -source=accessor.go Accessor
type Accessor interface {
	// GetEntity returns the named entity, or a NotInitializedError or
	// NotFoundError.
	GetEntity(name string) (Entity, error)
	// State returns the initialization state behind the accessor
	State() State
}

type registryAccessor struct {
	registry *Registry
}

// NewAccessor returns an Accessor backed by the given registry
func NewAccessor(r *Registry) Accessor {
	return &registryAccessor{registry: r}
}

func (a *registryAccessor) GetEntity(name string) (Entity, error) {
	return a.registry.Get(name)
}

func (a *registryAccessor) State() State {
	return a.registry.State()
}

// Lookup fetches the named entity and asserts its concrete type
func Lookup[T Entity](a Accessor, name string) (T, error) {
	var zero T
	e, err := a.GetEntity(name)
	if err != nil {
		return zero, err
	}
	t, ok := e.(T)
	if !ok {
		return zero, fmt.Errorf("entity %q has unexpected type %T", name, e)
	}
	return t, nil
}
