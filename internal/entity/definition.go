// Package entity contains the entity registry, the dependency-ordered
// initializer that fills it, and the accessor route handlers read through.
package entity

// Entity is a constructed runtime entity owned by the registry once built.
type Entity interface {
	EntityName() string
}

// Relationship is a reference from one entity to another, possibly declared
// before the target exists. Targets are checked after every entity is built.
type Relationship struct {
	Name   string
	Target string
}

// Relater is implemented by entities that reference other entities
type Relater interface {
	Relationships() []Relationship
}

// Built is the read-only view of already constructed entities handed to a
// build function.
type Built interface {
	Lookup(name string) (Entity, bool)
}

// BuildFunc constructs an entity from the entities built before it
type BuildFunc func(built Built) (Entity, error)

// Definition describes how to build one named entity and which entities
// must exist before it can be built.
type Definition struct {
	Name      string
	DependsOn []string
	Build     BuildFunc
}
