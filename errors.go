package kinship

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for registration and load operations.
var (
	// ErrDuplicateEntity is returned when an entity or morph tag is
	// registered more than once under the same name.
	ErrDuplicateEntity = errors.New("kinship: duplicate entity")

	// ErrInvalidSchema is returned when entity metadata is internally
	// inconsistent, e.g. a primary key that is not part of the column set.
	ErrInvalidSchema = errors.New("kinship: invalid schema")

	// ErrUnknownEntity is returned when a lookup names an entity that was
	// never registered.
	ErrUnknownEntity = errors.New("kinship: unknown entity")

	// ErrUnknownColumn is returned when a relationship key references a
	// column that does not exist on the entity.
	ErrUnknownColumn = errors.New("kinship: unknown column")

	// ErrUnknownRelationship is returned when resolving a relationship
	// name that was never defined on the owner entity.
	ErrUnknownRelationship = errors.New("kinship: unknown relationship")

	// ErrUnsupportedDepth is returned when a through-relationship is
	// defined with a hop count other than one. Deeper chains are a stated
	// scope boundary.
	ErrUnsupportedDepth = errors.New("kinship: unsupported through depth")

	// ErrUnregisteredMorphType is returned when a discriminator tag has no
	// registered target entity.
	ErrUnregisteredMorphType = errors.New("kinship: unregistered morph type")

	// ErrQueryFailed is returned when the query executor reports a failure
	// while resolving a relationship.
	ErrQueryFailed = errors.New("kinship: query execution failed")

	// ErrRegistryFrozen is returned when registering metadata after the
	// first load operation has frozen the registry.
	ErrRegistryFrozen = errors.New("kinship: registry is frozen")
)

// DuplicateEntityError reports a second registration of an entity name or
// morph discriminator tag.
type DuplicateEntityError struct {
	Name string
}

// Error returns the error string.
func (e *DuplicateEntityError) Error() string {
	return fmt.Sprintf("kinship: entity %q already registered", e.Name)
}

// Is reports whether the target error matches DuplicateEntityError.
func (e *DuplicateEntityError) Is(err error) bool {
	return err == ErrDuplicateEntity
}

// NewDuplicateEntityError returns a new DuplicateEntityError for the given name.
func NewDuplicateEntityError(name string) *DuplicateEntityError {
	return &DuplicateEntityError{Name: name}
}

// IsDuplicateEntity returns true if the error is a DuplicateEntityError.
func IsDuplicateEntity(err error) bool {
	return errors.Is(err, ErrDuplicateEntity)
}

// InvalidSchemaError reports inconsistent entity metadata.
type InvalidSchemaError struct {
	Entity string
	Reason string
}

// Error returns the error string.
func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("kinship: invalid schema for entity %q: %s", e.Entity, e.Reason)
}

// Is reports whether the target error matches InvalidSchemaError.
func (e *InvalidSchemaError) Is(err error) bool {
	return err == ErrInvalidSchema
}

// NewInvalidSchemaError returns a new InvalidSchemaError for the given entity.
func NewInvalidSchemaError(entity, reason string) *InvalidSchemaError {
	return &InvalidSchemaError{Entity: entity, Reason: reason}
}

// IsInvalidSchema returns true if the error is an InvalidSchemaError.
func IsInvalidSchema(err error) bool {
	return errors.Is(err, ErrInvalidSchema)
}

// UnknownEntityError reports a lookup for an entity that was never registered.
type UnknownEntityError struct {
	Name string
}

// Error returns the error string.
func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("kinship: entity %q is not registered", e.Name)
}

// Is reports whether the target error matches UnknownEntityError.
func (e *UnknownEntityError) Is(err error) bool {
	return err == ErrUnknownEntity
}

// NewUnknownEntityError returns a new UnknownEntityError for the given name.
func NewUnknownEntityError(name string) *UnknownEntityError {
	return &UnknownEntityError{Name: name}
}

// IsUnknownEntity returns true if the error is an UnknownEntityError.
func IsUnknownEntity(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}

// UnknownColumnError reports a relationship key that does not resolve to a
// column on the referenced entity.
type UnknownColumnError struct {
	Entity string
	Column string
}

// Error returns the error string.
func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("kinship: column %q does not exist on entity %q", e.Column, e.Entity)
}

// Is reports whether the target error matches UnknownColumnError.
func (e *UnknownColumnError) Is(err error) bool {
	return err == ErrUnknownColumn
}

// NewUnknownColumnError returns a new UnknownColumnError.
func NewUnknownColumnError(entity, column string) *UnknownColumnError {
	return &UnknownColumnError{Entity: entity, Column: column}
}

// IsUnknownColumn returns true if the error is an UnknownColumnError.
func IsUnknownColumn(err error) bool {
	return errors.Is(err, ErrUnknownColumn)
}

// UnknownRelationshipError reports a relationship name that was never
// defined on the owner entity.
type UnknownRelationshipError struct {
	Owner string
	Name  string
}

// Error returns the error string.
func (e *UnknownRelationshipError) Error() string {
	return fmt.Sprintf("kinship: relationship %q is not defined on entity %q", e.Name, e.Owner)
}

// Is reports whether the target error matches UnknownRelationshipError.
func (e *UnknownRelationshipError) Is(err error) bool {
	return err == ErrUnknownRelationship
}

// NewUnknownRelationshipError returns a new UnknownRelationshipError.
func NewUnknownRelationshipError(owner, name string) *UnknownRelationshipError {
	return &UnknownRelationshipError{Owner: owner, Name: name}
}

// IsUnknownRelationship returns true if the error is an UnknownRelationshipError.
func IsUnknownRelationship(err error) bool {
	return errors.Is(err, ErrUnknownRelationship)
}

// UnsupportedDepthError reports a through-relationship defined with a hop
// count other than exactly one intermediate entity.
type UnsupportedDepthError struct {
	Owner string
	Name  string
	Hops  int
}

// Error returns the error string.
func (e *UnsupportedDepthError) Error() string {
	return fmt.Sprintf("kinship: relationship %q on entity %q declares %d intermediate hops, exactly 1 is supported",
		e.Name, e.Owner, e.Hops)
}

// Is reports whether the target error matches UnsupportedDepthError.
func (e *UnsupportedDepthError) Is(err error) bool {
	return err == ErrUnsupportedDepth
}

// NewUnsupportedDepthError returns a new UnsupportedDepthError.
func NewUnsupportedDepthError(owner, name string, hops int) *UnsupportedDepthError {
	return &UnsupportedDepthError{Owner: owner, Name: name, Hops: hops}
}

// IsUnsupportedDepth returns true if the error is an UnsupportedDepthError.
func IsUnsupportedDepth(err error) bool {
	return errors.Is(err, ErrUnsupportedDepth)
}

// UnregisteredMorphTypeError reports a discriminator tag with no registered
// target entity, or an entity participating in a polymorphic relationship
// without a registered tag.
type UnregisteredMorphTypeError struct {
	Tag    string
	Entity string
}

// Error returns the error string.
func (e *UnregisteredMorphTypeError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("kinship: entity %q has no registered morph tag", e.Entity)
	}
	return fmt.Sprintf("kinship: morph type %q has no registered entity", e.Tag)
}

// Is reports whether the target error matches UnregisteredMorphTypeError.
func (e *UnregisteredMorphTypeError) Is(err error) bool {
	return err == ErrUnregisteredMorphType
}

// NewUnregisteredMorphTypeError returns a new UnregisteredMorphTypeError
// for a discriminator tag with no registered entity.
func NewUnregisteredMorphTypeError(tag string) *UnregisteredMorphTypeError {
	return &UnregisteredMorphTypeError{Tag: tag}
}

// NewUnregisteredMorphEntityError returns a new UnregisteredMorphTypeError
// for an entity with no registered discriminator tag.
func NewUnregisteredMorphEntityError(entity string) *UnregisteredMorphTypeError {
	return &UnregisteredMorphTypeError{Entity: entity}
}

// IsUnregisteredMorphType returns true if the error is an UnregisteredMorphTypeError.
func IsUnregisteredMorphType(err error) bool {
	return errors.Is(err, ErrUnregisteredMorphType)
}

// QueryError wraps a failure reported by the query executor together with
// the shape of the failing query for diagnostics.
type QueryError struct {
	Table  string // target table of the failing query
	Column string // match column of the failing query
	Keys   int    // number of key values in the match set
	Err    error  // underlying executor error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	return fmt.Sprintf("kinship: query on table %q (match %q, %d keys) failed: %v",
		e.Table, e.Column, e.Keys, e.Err)
}

// Is reports whether the target error matches QueryError.
func (e *QueryError) Is(err error) bool {
	return err == ErrQueryFailed
}

// Unwrap returns the underlying executor error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError wrapping the executor failure.
func NewQueryError(table, column string, keys int, err error) *QueryError {
	return &QueryError{Table: table, Column: column, Keys: keys, Err: err}
}

// IsQueryFailed returns true if the error is a QueryError.
func IsQueryFailed(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}
