// Package schema holds the runtime entity metadata of a kinship
// application: the entity registry, relationship definitions, and the
// polymorphic type resolver.
//
// The registry is write-once-then-read-only: all entities, relationships
// and morph tags are registered at startup, and the loader freezes the
// registry before its first plan. Concurrent reads after that point need
// no locking. Dynamic re-registration goes through [Versioned], which
// swaps a whole replacement registry atomically.
package schema

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/go-openapi/inflect"

	"github.com/syssam/kinship"
	"github.com/syssam/kinship/schema/field"
	"github.com/syssam/kinship/schema/rel"
)

// Entity is the immutable metadata of one registered record type: its
// table, single-column primary key, and column set. Pivot and morph tables
// are never registered as entities; the loader addresses them directly.
type Entity struct {
	Name    string
	Table   string
	ID      string
	Columns map[string]field.Type
}

// HasColumn reports whether the entity declares the given column.
func (e *Entity) HasColumn(name string) bool {
	_, ok := e.Columns[name]
	return ok
}

// Column returns the type of the given column.
func (e *Entity) Column(name string) (field.Type, bool) {
	t, ok := e.Columns[name]
	return t, ok
}

// Relationship is a named, validated relationship bound to its registered
// entities. Descriptors are immutable after definition; the key-name
// defaults have been filled in.
type Relationship struct {
	Owner   *Entity
	Name    string
	Desc    *rel.Descriptor
	Target  *Entity // nil for MorphTo
	Through *Entity // non-nil for through shapes
}

// Registry holds the registered entities, relationships, and morph tags.
// It is safe for concurrent reads; writes are rejected once frozen.
type Registry struct {
	mu     sync.RWMutex
	frozen atomic.Bool

	entities map[string]*Entity
	rels     map[string]map[string]*Relationship
	morphs   map[string]string // discriminator tag -> entity name
	tags     map[string]string // entity name -> discriminator tag
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]*Entity),
		rels:     make(map[string]map[string]*Relationship),
		morphs:   make(map[string]string),
		tags:     make(map[string]string),
	}
}

// Freeze marks the registry read-only. The loader calls it before its
// first plan; calling it again is a no-op.
func (r *Registry) Freeze() { r.frozen.Store(true) }

// Frozen reports whether the registry was frozen.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Register adds an entity to the registry. It fails with a duplicate-entity
// error if the name was registered before, and with an invalid-schema error
// if the metadata is inconsistent.
func (r *Registry) Register(e *Entity) error {
	if r.Frozen() {
		return kinship.ErrRegistryFrozen
	}
	switch {
	case e.Name == "":
		return kinship.NewInvalidSchemaError(e.Name, "entity name is empty")
	case e.Table == "":
		return kinship.NewInvalidSchemaError(e.Name, "table name is empty")
	case len(e.Columns) == 0:
		return kinship.NewInvalidSchemaError(e.Name, "entity has no columns")
	case e.ID == "":
		return kinship.NewInvalidSchemaError(e.Name, "primary key is empty")
	}
	if _, ok := e.Columns[e.ID]; !ok {
		return kinship.NewInvalidSchemaError(e.Name, "primary key "+e.ID+" is not a column")
	}
	for name, t := range e.Columns {
		if !t.Valid() {
			return kinship.NewInvalidSchemaError(e.Name, "column "+name+" has an invalid type")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.Name]; ok {
		return kinship.NewDuplicateEntityError(e.Name)
	}
	cp := *e
	cp.Columns = make(map[string]field.Type, len(e.Columns))
	for name, t := range e.Columns {
		cp.Columns[name] = t
	}
	r.entities[e.Name] = &cp
	return nil
}

// Entity returns the registered entity with the given name.
func (r *Registry) Entity(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	if !ok {
		return nil, kinship.NewUnknownEntityError(name)
	}
	return e, nil
}

// Entities returns the names of all registered entities.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entities))
	for name := range r.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterMorphType associates a discriminator tag with a concrete entity.
// Tags are opaque strings chosen by the application; they are never derived
// from type names.
func (r *Registry) RegisterMorphType(tag, entity string) error {
	if r.Frozen() {
		return kinship.ErrRegistryFrozen
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[entity]; !ok {
		return kinship.NewUnknownEntityError(entity)
	}
	if _, ok := r.morphs[tag]; ok {
		return kinship.NewDuplicateEntityError(tag)
	}
	r.morphs[tag] = entity
	r.tags[entity] = tag
	return nil
}

// MorphEntity resolves a discriminator tag to its registered entity.
func (r *Registry) MorphEntity(tag string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.morphs[tag]
	if !ok {
		return nil, kinship.NewUnregisteredMorphTypeError(tag)
	}
	return r.entities[name], nil
}

// MorphTag returns the discriminator tag registered for the entity.
func (r *Registry) MorphTag(entity string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tags[entity]
	return tag, ok
}

// Define validates and stores a relationship under (owner, name). Key
// names missing from the definition are filled with their conventional
// defaults; all cross-references are checked eagerly so load operations
// never observe an invalid descriptor.
func (r *Registry) Define(owner, name string, def rel.Definition) error {
	if r.Frozen() {
		return kinship.ErrRegistryFrozen
	}
	d := def.Descriptor()
	r.mu.Lock()
	defer r.mu.Unlock()
	oe, ok := r.entities[owner]
	if !ok {
		return kinship.NewUnknownEntityError(owner)
	}
	if _, ok := r.rels[owner][name]; ok {
		return kinship.NewInvalidSchemaError(owner, "relationship "+name+" already defined")
	}
	bound := &Relationship{Owner: oe, Name: name, Desc: d}
	if d.Rel != rel.MorphTo {
		te, ok := r.entities[d.Target]
		if !ok {
			return kinship.NewUnknownEntityError(d.Target)
		}
		bound.Target = te
	}
	if err := r.bind(bound, owner, name); err != nil {
		return err
	}
	if r.rels[owner] == nil {
		r.rels[owner] = make(map[string]*Relationship)
	}
	r.rels[owner][name] = bound
	return nil
}

// bind fills key-name defaults and validates the descriptor columns
// against the registered entities. Pivot tables are not entities, so their
// columns are only defaulted, never checked.
func (r *Registry) bind(b *Relationship, owner, name string) error {
	d, oe, te := b.Desc, b.Owner, b.Target
	switch d.Rel {
	case rel.O2O, rel.O2M:
		defaults(&d.LocalKey, oe.ID)
		defaults(&d.ForeignKey, foreignKey(oe.Name))
		if !oe.HasColumn(d.LocalKey) {
			return kinship.NewUnknownColumnError(oe.Name, d.LocalKey)
		}
		if !te.HasColumn(d.ForeignKey) {
			return kinship.NewUnknownColumnError(te.Name, d.ForeignKey)
		}
	case rel.M2O:
		defaults(&d.ForeignKey, foreignKey(te.Name))
		defaults(&d.OwnerKey, te.ID)
		if !oe.HasColumn(d.ForeignKey) {
			return kinship.NewUnknownColumnError(oe.Name, d.ForeignKey)
		}
		if !te.HasColumn(d.OwnerKey) {
			return kinship.NewUnknownColumnError(te.Name, d.OwnerKey)
		}
	case rel.M2M:
		defaults(&d.LocalKey, oe.ID)
		defaults(&d.PivotTable, pivotTable(oe.Table, te.Table))
		defaults(&d.PivotOwnerKey, foreignKey(oe.Name))
		defaults(&d.PivotTargetKey, foreignKey(te.Name))
		if !oe.HasColumn(d.LocalKey) {
			return kinship.NewUnknownColumnError(oe.Name, d.LocalKey)
		}
	case rel.O2OThrough, rel.O2MThrough:
		if len(d.Throughs) != 1 {
			return kinship.NewUnsupportedDepthError(owner, name, len(d.Throughs))
		}
		me, ok := r.entities[d.Throughs[0]]
		if !ok {
			return kinship.NewUnknownEntityError(d.Throughs[0])
		}
		b.Through = me
		defaults(&d.LocalKey, oe.ID)
		defaults(&d.FirstKey, foreignKey(oe.Name))
		defaults(&d.SecondKey, foreignKey(me.Name))
		if !oe.HasColumn(d.LocalKey) {
			return kinship.NewUnknownColumnError(oe.Name, d.LocalKey)
		}
		if !me.HasColumn(d.FirstKey) {
			return kinship.NewUnknownColumnError(me.Name, d.FirstKey)
		}
		if !te.HasColumn(d.SecondKey) {
			return kinship.NewUnknownColumnError(te.Name, d.SecondKey)
		}
	case rel.MorphO2M:
		defaults(&d.LocalKey, oe.ID)
		if _, ok := r.tags[oe.Name]; !ok {
			return kinship.NewUnregisteredMorphEntityError(oe.Name)
		}
		if !oe.HasColumn(d.LocalKey) {
			return kinship.NewUnknownColumnError(oe.Name, d.LocalKey)
		}
		if !te.HasColumn(d.MorphIDColumn()) {
			return kinship.NewUnknownColumnError(te.Name, d.MorphIDColumn())
		}
		if !te.HasColumn(d.MorphTypeColumn()) {
			return kinship.NewUnknownColumnError(te.Name, d.MorphTypeColumn())
		}
	case rel.MorphM2M:
		defaults(&d.LocalKey, oe.ID)
		defaults(&d.PivotTable, inflect.Pluralize(d.Morph))
		defaults(&d.PivotTargetKey, foreignKey(te.Name))
		if _, ok := r.tags[oe.Name]; !ok {
			return kinship.NewUnregisteredMorphEntityError(oe.Name)
		}
		if !oe.HasColumn(d.LocalKey) {
			return kinship.NewUnknownColumnError(oe.Name, d.LocalKey)
		}
	case rel.MorphTo:
		if !oe.HasColumn(d.MorphIDColumn()) {
			return kinship.NewUnknownColumnError(oe.Name, d.MorphIDColumn())
		}
		if !oe.HasColumn(d.MorphTypeColumn()) {
			return kinship.NewUnknownColumnError(oe.Name, d.MorphTypeColumn())
		}
	default:
		return kinship.NewInvalidSchemaError(owner, "relationship "+name+" has an unknown shape")
	}
	return nil
}

// Relationship resolves a relationship defined under (owner, name).
func (r *Registry) Relationship(owner, name string) (*Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.rels[owner][name]
	if !ok {
		return nil, kinship.NewUnknownRelationshipError(owner, name)
	}
	return b, nil
}

// Relationships returns the names of all relationships defined on the owner.
func (r *Registry) Relationships(owner string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rels[owner]))
	for name := range r.rels[owner] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// foreignKey returns the conventional foreign-key column for an entity
// name: the snake-cased singular name suffixed with "_id".
func foreignKey(entity string) string {
	return inflect.Underscore(inflect.Singularize(entity)) + "_id"
}

// pivotTable returns the conventional pivot table for two entity tables:
// the singularized names in alphabetical order joined by an underscore.
func pivotTable(a, b string) string {
	s := []string{inflect.Singularize(a), inflect.Singularize(b)}
	sort.Strings(s)
	return s[0] + "_" + s[1]
}

func defaults(s *string, v string) {
	if *s == "" {
		*s = v
	}
}
