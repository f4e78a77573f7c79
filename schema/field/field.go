// Package field defines the column value kinds used by entity metadata.
package field

// A Type represents the value kind of a column.
type Type uint8

// List of column types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat64
	TypeString
	TypeTime
	TypeUUID
	TypeBytes
	endTypes
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeInt64:   "int64",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeTime:    "time",
	TypeUUID:    "uuid",
	TypeBytes:   "bytes",
}

// String returns the string representation of the type.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return typeNames[TypeInvalid]
}

// Valid reports if the given type is a valid column type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeFloat64
}

// ParseType returns the Type for the given name as it appears in schema
// documents. Unknown names map to TypeInvalid.
func ParseType(name string) Type {
	for t, n := range typeNames {
		if n == name && Type(t) != TypeInvalid {
			return Type(t)
		}
	}
	return TypeInvalid
}
