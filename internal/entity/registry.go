package entity

import (
	"slices"
	"sync"
)

// Registry holds built entities by name together with the initialization state.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]Entity
	order    []string
	state    State
}

// NewRegistry creates an empty registry in the NotStarted state
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]Entity)}
}

// Register inserts or overwrites the entity stored under name
func (r *Registry) Register(name string, e Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[name]; !ok {
		r.order = append(r.order, name)
	}
	r.entities[name] = e
}

// Get returns the entity stored under name once initialization has completed
func (r *Registry) Get(name string) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state != Completed {
		return nil, &NotInitializedError{Entity: name, State: r.state}
	}
	e, ok := r.entities[name]
	if !ok {
		return nil, &NotFoundError{Entity: name}
	}
	return e, nil
}

// Lookup returns the entity stored under name regardless of state. It backs
// the Built view used while initialization is in progress.
func (r *Registry) Lookup(name string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	return e, ok
}

// Clear empties the registry and resets it to NotStarted
func (r *Registry) Clear() {
	r.reset(NotStarted)
}

// State returns the current initialization state
func (r *Registry) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Len returns the number of registered entities
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Names returns registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func (r *Registry) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

func (r *Registry) reset(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]Entity)
	r.order = nil
	r.state = s
}

// snapshot returns the registered entities in registration order
func (r *Registry) snapshot() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entity, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entities[name])
	}
	return out
}
