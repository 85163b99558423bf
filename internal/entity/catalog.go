package entity

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// Catalog is the ordered set of entity definitions. Order is the build order;
// it is never rearranged to satisfy dependencies.
type Catalog struct {
	mu    sync.RWMutex
	defs  []Definition
	index map[string]int
}

// NewCatalog creates a catalog and defines every given definition in order
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(defs))}
	for _, def := range defs {
		if err := c.Define(def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Define appends a definition. Defining an existing name again with the same
// build function and dependencies is a no-op; anything else is a
// DuplicateDefinitionError.
func (c *Catalog) Define(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if def.Build == nil {
		return fmt.Errorf("%w: %s has no build function", ErrInvalidDefinition, def.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i, ok := c.index[def.Name]; ok {
		if sameDefinition(c.defs[i], def) {
			return nil
		}
		return &DuplicateDefinitionError{Entity: def.Name}
	}

	def.DependsOn = slices.Clone(def.DependsOn)
	c.index[def.Name] = len(c.defs)
	c.defs = append(c.defs, def)
	return nil
}

// Definitions returns a copy of the definitions in declared order
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.defs)
}

// Len returns the number of definitions
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.defs)
}

// Funcs are not comparable, so identity is the code pointer of the build function.
func sameDefinition(a, b Definition) bool {
	return reflect.ValueOf(a.Build).Pointer() == reflect.ValueOf(b.Build).Pointer() &&
		slices.Equal(a.DependsOn, b.DependsOn)
}
