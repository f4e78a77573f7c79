package load

import (
	"time"

	"github.com/syssam/kinship"
	"github.com/syssam/kinship/dialect"
)

// matchKey normalizes a key value so values read back from a store compare
// equal to the values they were matched against: all signed and unsigned
// integer widths collapse to int64, float32 to float64, and byte slices to
// strings. Times and everything else compare as-is.
func matchKey(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	case time.Time:
		return x
	default:
		return v
	}
}

// keySet returns the distinct, normalized, non-absent values of the given
// column over the owner batch, preserving first-seen order. Owners with a
// null or missing value are excluded from the match set; they resolve to
// an absent value or empty collection, never an error.
func keySet(owners []*kinship.Instance, column string) []any {
	seen := make(map[any]struct{}, len(owners))
	keys := make([]any, 0, len(owners))
	for _, o := range owners {
		v, ok := o.Get(column)
		if !ok {
			continue
		}
		k := matchKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// rowKeySet returns the distinct, normalized, non-null values of the given
// column over a set of result rows, preserving first-seen order. It feeds
// the second query of pivot and through shapes.
func rowKeySet(rows []dialect.Row, column string) []any {
	seen := make(map[any]struct{}, len(rows))
	keys := make([]any, 0, len(rows))
	for _, r := range rows {
		v, ok := r[column]
		if !ok || v == nil {
			continue
		}
		k := matchKey(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// ownerIndex groups owners by the normalized value of the given column.
// Several owners may share a key; each receives the matching rows.
func ownerIndex(owners []*kinship.Instance, column string) map[any][]*kinship.Instance {
	idx := make(map[any][]*kinship.Instance, len(owners))
	for _, o := range owners {
		v, ok := o.Get(column)
		if !ok {
			continue
		}
		k := matchKey(v)
		idx[k] = append(idx[k], o)
	}
	return idx
}

// rowValue returns the normalized value of a row column, reporting false
// for SQL NULLs and missing columns.
func rowValue(r dialect.Row, column string) (any, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return nil, false
	}
	return matchKey(v), true
}
