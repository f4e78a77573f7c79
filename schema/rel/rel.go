// Package rel provides the declarative builders for entity relationships.
//
// A relationship is described by its shape (the Rel tag), the target
// entity, and the key columns that connect the two sides. Builders produce
// plain descriptors; validation against registered entities and filling of
// key-name defaults happen when the descriptor is defined on a
// schema.Registry, never at query time.
//
//	reg.Define("User", "posts", rel.HasMany("Post"))
//	reg.Define("User", "roles", rel.ManyToMany("Role").Pivot("role_user"))
//	reg.Define("Post", "comments", rel.MorphMany("Comment", "commentable"))
package rel

// A Rel is the tag of a relationship shape. Every consumer switches
// exhaustively over the tag; there is no dispatch hierarchy behind it.
type Rel int

// Relationship shapes.
const (
	Unk Rel = iota // Unknown.
	O2O            // One-to-one, foreign key on the target.
	O2M            // One-to-many, foreign key on the target.
	M2O            // Many-to-one, foreign key on the owner (inverse of O2M).
	M2M            // Many-to-many through a pivot table.
	O2OThrough     // One-to-one across exactly one intermediate entity.
	O2MThrough     // One-to-many across exactly one intermediate entity.
	MorphO2M       // One-to-many filtered by a discriminator type column.
	MorphM2M       // Many-to-many through a discriminator-typed pivot.
	MorphTo        // Inverse polymorphic: owner row names its target type.
)

// String returns the relationship shape name.
func (r Rel) String() string {
	switch r {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2O:
		return "M2O"
	case M2M:
		return "M2M"
	case O2OThrough:
		return "O2OThrough"
	case O2MThrough:
		return "O2MThrough"
	case MorphO2M:
		return "MorphO2M"
	case MorphM2M:
		return "MorphM2M"
	case MorphTo:
		return "MorphTo"
	default:
		return "Unknown"
	}
}

// Unique reports whether the shape resolves to at most one target instance
// per owner.
func (r Rel) Unique() bool {
	return r == O2O || r == M2O || r == O2OThrough || r == MorphTo
}

// Pivoted reports whether the shape traverses a pivot table.
func (r Rel) Pivoted() bool {
	return r == M2M || r == MorphM2M
}

// Through reports whether the shape traverses an intermediate entity.
func (r Rel) Through() bool {
	return r == O2OThrough || r == O2MThrough
}

// Polymorphic reports whether the shape carries a discriminator column.
func (r Rel) Polymorphic() bool {
	return r == MorphO2M || r == MorphM2M || r == MorphTo
}

// Descriptor is the flat, immutable record describing one relationship.
// Zero key names are filled with conventional defaults at definition time.
type Descriptor struct {
	Rel    Rel    // relationship shape
	Target string // target entity name (empty for MorphTo)

	// Direct shapes.
	LocalKey   string // column on the owner matched by the far side
	ForeignKey string // column on the target (O2O/O2M) or owner (M2O)
	OwnerKey   string // column on the target matched by M2O's foreign key

	// Pivot shapes.
	PivotTable     string // join table name
	PivotOwnerKey  string // pivot column referencing the owner
	PivotTargetKey string // pivot column referencing the target

	// Through shapes. Throughs holds the declared intermediate entities;
	// definition fails unless exactly one was supplied.
	Throughs  []string
	FirstKey  string // column on the intermediate referencing the owner
	SecondKey string // column on the target referencing the intermediate

	// Polymorphic shapes.
	Morph string // discriminator base name, e.g. "commentable"
}

// MorphIDColumn returns the discriminator id column name.
func (d *Descriptor) MorphIDColumn() string { return d.Morph + "_id" }

// MorphTypeColumn returns the discriminator type column name.
func (d *Descriptor) MorphTypeColumn() string { return d.Morph + "_type" }

// A Definition supplies a relationship descriptor. It is implemented by
// the package builders.
type Definition interface {
	Descriptor() *Descriptor
}

// Builder is the fluent configurator returned by the shape constructors.
type Builder struct {
	d Descriptor
}

// Descriptor implements the Definition interface.
func (b *Builder) Descriptor() *Descriptor {
	d := b.d
	return &d
}

// HasOne declares a one-to-one relationship where the target table carries
// the foreign key.
func HasOne(target string) *Builder {
	return &Builder{d: Descriptor{Rel: O2O, Target: target}}
}

// HasMany declares a one-to-many relationship where the target table
// carries the foreign key.
func HasMany(target string) *Builder {
	return &Builder{d: Descriptor{Rel: O2M, Target: target}}
}

// BelongsTo declares a many-to-one relationship, the inverse of HasOne and
// HasMany: the owner table carries the foreign key.
func BelongsTo(target string) *Builder {
	return &Builder{d: Descriptor{Rel: M2O, Target: target}}
}

// ManyToMany declares a many-to-many relationship through a pivot table.
// The pivot carries only the two foreign keys; it is never registered as a
// first-class entity.
func ManyToMany(target string) *Builder {
	return &Builder{d: Descriptor{Rel: M2M, Target: target}}
}

// HasOneThrough declares a one-to-one relationship across intermediate
// entities. Exactly one intermediate is supported; any other count fails
// at definition time.
func HasOneThrough(target string, through ...string) *Builder {
	return &Builder{d: Descriptor{Rel: O2OThrough, Target: target, Throughs: through}}
}

// HasManyThrough declares a one-to-many relationship across intermediate
// entities. Exactly one intermediate is supported; any other count fails
// at definition time.
func HasManyThrough(target string, through ...string) *Builder {
	return &Builder{d: Descriptor{Rel: O2MThrough, Target: target, Throughs: through}}
}

// MorphMany declares a one-to-many relationship to a target whose rows
// carry the discriminator columns morph+"_id" and morph+"_type".
func MorphMany(target, morph string) *Builder {
	return &Builder{d: Descriptor{Rel: MorphO2M, Target: target, Morph: morph}}
}

// MorphToMany declares a many-to-many relationship through a pivot whose
// rows carry the discriminator columns morph+"_id" and morph+"_type".
func MorphToMany(target, morph string) *Builder {
	return &Builder{d: Descriptor{Rel: MorphM2M, Target: target, Morph: morph}}
}

// MorphOf declares the inverse polymorphic relationship: the owner row
// carries morph+"_id" and morph+"_type" naming its concrete target.
func MorphOf(morph string) *Builder {
	return &Builder{d: Descriptor{Rel: MorphTo, Morph: morph}}
}

// LocalKey overrides the owner column matched by the far side. Defaults to
// the owner's primary key.
func (b *Builder) LocalKey(column string) *Builder {
	b.d.LocalKey = column
	return b
}

// ForeignKey overrides the foreign-key column. For HasOne/HasMany it lives
// on the target and defaults to the snake-cased owner name suffixed with
// "_id"; for BelongsTo it lives on the owner.
func (b *Builder) ForeignKey(column string) *Builder {
	b.d.ForeignKey = column
	return b
}

// OwnerKey overrides the target column a BelongsTo foreign key references.
// Defaults to the target's primary key.
func (b *Builder) OwnerKey(column string) *Builder {
	b.d.OwnerKey = column
	return b
}

// Pivot overrides the pivot table name. Defaults to the two singularized
// table names in alphabetical order joined by an underscore.
func (b *Builder) Pivot(table string) *Builder {
	b.d.PivotTable = table
	return b
}

// PivotOwnerKey overrides the pivot column referencing the owner.
func (b *Builder) PivotOwnerKey(column string) *Builder {
	b.d.PivotOwnerKey = column
	return b
}

// PivotTargetKey overrides the pivot column referencing the target.
func (b *Builder) PivotTargetKey(column string) *Builder {
	b.d.PivotTargetKey = column
	return b
}

// FirstKey overrides the intermediate column referencing the owner in a
// through relationship.
func (b *Builder) FirstKey(column string) *Builder {
	b.d.FirstKey = column
	return b
}

// SecondKey overrides the target column referencing the intermediate in a
// through relationship.
func (b *Builder) SecondKey(column string) *Builder {
	b.d.SecondKey = column
	return b
}
