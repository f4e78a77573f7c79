// Package kinship provides the core types for a relationship-aware ORM:
// entity instances carried through the load pipeline, the error taxonomy
// shared by the schema registry and the loader, and the loader contract
// used by lazy relationship accessors.
//
// The package is intentionally small. Entity metadata lives in
// [github.com/syssam/kinship/schema], relationship descriptors in
// [github.com/syssam/kinship/schema/rel], and the planning/loading engine
// in [github.com/syssam/kinship/load].
package kinship

import (
	"context"
	"sync"
)

// RelationLoader resolves a named relationship for a single owner instance.
// It is implemented by load.Loader and consumed by the lazy accessors on
// Instance; the indirection keeps the root package free of a dependency on
// the loading engine.
type RelationLoader interface {
	// LoadLazy resolves the named relationship for the owner. It returns
	// either a single *Instance (to-one shapes, nil when absent) or a
	// []*Instance (to-many shapes, possibly empty).
	LoadLazy(ctx context.Context, owner *Instance, name string) (any, error)
}

// Instance is a single entity row flowing through the pipeline: the entity
// name, its column values, and the relationship values attached to it.
// Column values are mutable data; attached relationships are memoized per
// instance and guarded by a per-instance lock so a concurrent first access
// triggers the underlying load at most once.
type Instance struct {
	entity string
	values map[string]any

	mu      sync.Mutex
	loader  RelationLoader
	related map[string]any
}

// NewInstance returns an Instance for the given entity name and column values.
// The values map is retained as-is; callers hand over ownership.
func NewInstance(entity string, values map[string]any) *Instance {
	if values == nil {
		values = make(map[string]any)
	}
	return &Instance{entity: entity, values: values}
}

// Entity returns the entity name this instance belongs to.
func (in *Instance) Entity() string { return in.entity }

// Get returns the value of the named column. Missing columns and SQL NULLs
// both report ok == false.
func (in *Instance) Get(column string) (any, bool) {
	v, ok := in.values[column]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Set assigns the value of the named column.
func (in *Instance) Set(column string, v any) {
	in.values[column] = v
}

// Values returns the underlying column values. The map is shared with the
// instance; mutating it mutates the instance.
func (in *Instance) Values() map[string]any { return in.values }

// Bind associates the instance with a loader so lazy accessors can resolve
// relationships on first access.
func (in *Instance) Bind(l RelationLoader) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.loader = l
}

// SetRelated attaches an already-resolved relationship value and marks it
// loaded. Used by the eager loader; subsequent accessor calls return the
// attached value without issuing queries.
func (in *Instance) SetRelated(name string, v any) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.related == nil {
		in.related = make(map[string]any)
	}
	in.related[name] = v
}

// Related returns the attached value of the named relationship, without
// triggering a load. ok reports whether the relationship was loaded.
func (in *Instance) Related(name string) (any, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	v, ok := in.related[name]
	return v, ok
}

// RelatedLoaded reports whether the named relationship was loaded.
func (in *Instance) RelatedLoaded(name string) bool {
	_, ok := in.Related(name)
	return ok
}

// One resolves a to-one relationship. The first access triggers a lazy
// load through the bound loader and memoizes the result; a nil instance
// means the relationship is absent for this owner.
func (in *Instance) One(ctx context.Context, name string) (*Instance, error) {
	v, err := in.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	rv, ok := v.(*Instance)
	if !ok {
		return nil, NewUnknownRelationshipError(in.entity, name)
	}
	return rv, nil
}

// Many resolves a to-many relationship. The first access triggers a lazy
// load through the bound loader and memoizes the result.
func (in *Instance) Many(ctx context.Context, name string) ([]*Instance, error) {
	v, err := in.load(ctx, name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	rv, ok := v.([]*Instance)
	if !ok {
		return nil, NewUnknownRelationshipError(in.entity, name)
	}
	return rv, nil
}

// load returns the memoized relationship value or resolves it through the
// loader. The instance lock is held across the load so concurrent first
// accesses are serialized and the query runs at most once.
func (in *Instance) load(ctx context.Context, name string) (any, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if v, ok := in.related[name]; ok {
		return v, nil
	}
	if in.loader == nil {
		return nil, NewUnknownRelationshipError(in.entity, name)
	}
	v, err := in.loader.LoadLazy(ctx, in, name)
	if err != nil {
		return nil, err
	}
	if in.related == nil {
		in.related = make(map[string]any)
	}
	in.related[name] = v
	return v, nil
}
