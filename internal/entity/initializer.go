package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const initializeKey = "initialize"

// SchemaCreator creates storage for the built entities. It runs once per
// successful build pass and must be idempotent.
//
//go:generate mockgen -destination=mocks/mock_schema_creator.go -package=mocks -source=initializer.go SchemaCreator,Observer
type SchemaCreator interface {
	CreateSchema(ctx context.Context, entities []Entity) error
}

// Observer is notified when an initialization attempt finishes
type Observer interface {
	InitializationFinished(ctx context.Context, duration time.Duration, entities int, err error)
}

// InitializerOption configures an Initializer
type InitializerOption func(*Initializer) error

// WithSchemaCreator sets the schema creator invoked after all entities are built
func WithSchemaCreator(sc SchemaCreator) InitializerOption {
	return func(i *Initializer) error {
		if sc == nil {
			return fmt.Errorf("schema creator cannot be nil")
		}
		i.schema = sc
		return nil
	}
}

// WithObserver sets an observer for initialization attempts
func WithObserver(o Observer) InitializerOption {
	return func(i *Initializer) error {
		if o == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		i.observer = o
		return nil
	}
}

// Initializer builds every catalog definition exactly once, in catalog
// order, into a Registry.
type Initializer struct {
	catalog  *Catalog
	registry *Registry
	schema   SchemaCreator
	observer Observer
	group    singleflight.Group

	mu      sync.Mutex
	current *attempt
	seq     uint64
	runMu   sync.Mutex
}

// NewInitializer creates an initializer that fills registry from catalog
func NewInitializer(catalog *Catalog, registry *Registry, opts ...InitializerOption) (*Initializer, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	i := &Initializer{
		catalog:  catalog,
		registry: registry,
	}
	for _, opt := range opts {
		if err := opt(i); err != nil {
			return nil, fmt.Errorf("failed to apply initializer option: %w", err)
		}
	}
	return i, nil
}

// Initialize builds all definitions. Concurrent callers share a single
// attempt and its result. Once Completed, further calls do nothing; after a
// failure the next call starts again from an empty registry.
//
// A caller whose ctx is done stops waiting without failing the others. The
// shared attempt is cancelled only when every caller waiting on it is done,
// and the last of them returns once the partial state has been discarded.
func (i *Initializer) Initialize(ctx context.Context) error {
	a, w := i.join(ctx)
	ch := i.group.DoChan(a.key, func() (any, error) {
		defer i.finish(a)
		return nil, i.initialize(a)
	})

	select {
	case res := <-ch:
		a.leave(w)
		return i.result(ctx, res)
	case <-ctx.Done():
		if a.Err() != nil {
			return i.result(ctx, <-ch)
		}
		return fmt.Errorf("stopped waiting for entity initialization: %w", ctx.Err())
	}
}

func (i *Initializer) result(ctx context.Context, res singleflight.Result) error {
	if res.Shared {
		slog.DebugContext(ctx, "Joined in-flight entity initialization")
	}
	var p *buildPanic
	if errors.As(res.Err, &p) {
		panic(p)
	}
	return res.Err
}

func (i *Initializer) join(ctx context.Context) (*attempt, *waiter) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current == nil {
		i.seq++
		i.current = newAttempt(ctx, fmt.Sprintf("%s-%d", initializeKey, i.seq))
	}
	return i.current, i.current.add(ctx)
}

func (i *Initializer) finish(a *attempt) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current == a {
		i.current = nil
	}
}

// State returns the state of the underlying registry
func (i *Initializer) State() State {
	return i.registry.State()
}

func (i *Initializer) initialize(ctx context.Context) error {
	i.runMu.Lock()
	defer i.runMu.Unlock()

	if i.registry.State() == Completed {
		slog.InfoContext(ctx, "Entities already initialized, skipping",
			"entities", i.registry.Len())
		return nil
	}

	attemptID := uuid.NewString()
	start := time.Now()
	i.registry.reset(InProgress)
	slog.InfoContext(ctx, "Initializing entities",
		"attempt_id", attemptID,
		"definitions", i.catalog.Len())

	err := i.run(ctx)
	duration := time.Since(start)

	if err != nil {
		i.registry.reset(Failed)
		slog.ErrorContext(ctx, "Entity initialization failed",
			"attempt_id", attemptID,
			"duration", duration,
			"error", err)
	} else {
		i.registry.setState(Completed)
		slog.InfoContext(ctx, "Entity initialization completed",
			"attempt_id", attemptID,
			"entities", i.registry.Len(),
			"duration", duration)
	}

	if i.observer != nil {
		i.observer.InitializationFinished(ctx, duration, i.registry.Len(), err)
	}
	return err
}

func (i *Initializer) run(ctx context.Context) error {
	for _, def := range i.catalog.Definitions() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("initialization cancelled before entity %s: %w", def.Name, err)
		}
		if err := i.build(def); err != nil {
			return fmt.Errorf("failed to initialize entity %s: %w", def.Name, err)
		}
	}

	if err := i.resolveRelationships(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("initialization cancelled before schema creation: %w", err)
	}
	if i.schema != nil {
		if err := i.schema.CreateSchema(ctx, i.registry.snapshot()); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

func (i *Initializer) build(def Definition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &buildPanic{entity: def.Name, value: r, stack: debug.Stack()}
		}
	}()

	for _, dep := range def.DependsOn {
		if _, ok := i.registry.Lookup(dep); !ok {
			return &MissingDependencyError{Entity: def.Name, MissingDependency: dep}
		}
	}

	e, err := def.Build(i.registry)
	if err != nil {
		return err
	}
	if e == nil {
		return ErrNilEntity
	}
	i.registry.Register(def.Name, e)
	slog.Debug("Built entity", "entity", def.Name, "depends_on", def.DependsOn)
	return nil
}

func (i *Initializer) resolveRelationships() error {
	var errs []error
	for _, name := range i.registry.Names() {
		e, _ := i.registry.Lookup(name)
		rel, ok := e.(Relater)
		if !ok {
			continue
		}
		for _, r := range rel.Relationships() {
			if _, ok := i.registry.Lookup(r.Target); !ok {
				errs = append(errs, fmt.Errorf("failed to resolve relationships of entity %s: %w", name,
					&RelationshipResolutionError{Entity: name, Relationship: r.Name, Target: r.Target}))
			}
		}
	}
	return errors.Join(errs...)
}

// buildPanic carries a panic out of a build function so that the registry
// is reset before the panic resumes in the callers.
type buildPanic struct {
	entity string
	value  any
	stack  []byte
}

func (p *buildPanic) Error() string {
	return fmt.Sprintf("build of entity %s panicked: %v\n\n%s", p.entity, p.value, p.stack)
}

// attempt is the context of one shared initialization run. It carries the
// values of the caller that started it and is done once every caller
// waiting on it is done.
type attempt struct {
	context.Context
	key string

	mu      sync.Mutex
	waiters []*waiter
	done    chan struct{}
	err     error
}

type waiter struct {
	ctx  context.Context
	stop func() bool
}

func newAttempt(ctx context.Context, key string) *attempt {
	return &attempt{
		Context: context.WithoutCancel(ctx),
		key:     key,
		done:    make(chan struct{}),
	}
}

func (a *attempt) add(ctx context.Context) *waiter {
	w := &waiter{ctx: ctx}
	a.mu.Lock()
	a.waiters = append(a.waiters, w)
	a.mu.Unlock()
	w.stop = context.AfterFunc(ctx, func() { _ = a.Err() })
	return w
}

// leave forgets a waiter that received the result
func (a *attempt) leave(w *waiter) {
	w.stop()
	a.mu.Lock()
	defer a.mu.Unlock()
	for n, other := range a.waiters {
		if other == w {
			a.waiters = append(a.waiters[:n], a.waiters[n+1:]...)
			return
		}
	}
}

func (a *attempt) Done() <-chan struct{} {
	return a.done
}

func (a *attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil || len(a.waiters) == 0 {
		return a.err
	}
	var err error
	for _, w := range a.waiters {
		if err = w.ctx.Err(); err == nil {
			return nil
		}
	}
	a.err = err
	close(a.done)
	return err
}
