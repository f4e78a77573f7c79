package dialect

import "context"

// Dialect names for the supported SQL backends.
const (
	// MySQL is the dialect name registered by go-sql-driver/mysql.
	MySQL = "mysql"
	// SQLite is the dialect name registered by modernc.org/sqlite.
	SQLite = "sqlite"
	// Postgres is the dialect name registered by lib/pq.
	Postgres = "postgres"
)

// Row is a single result row as a column-name to value mapping.
type Row map[string]any

// Op is a predicate operator over a named column.
type Op int

// Predicate operators.
const (
	// OpEQ matches rows whose column equals a single value.
	OpEQ Op = iota
	// OpIn matches rows whose column is a member of a value set.
	OpIn
)

// String returns the operator name.
func (o Op) String() string {
	switch o {
	case OpEQ:
		return "="
	case OpIn:
		return "IN"
	default:
		return "<invalid>"
	}
}

// Cond is a single predicate condition over a named column.
type Cond struct {
	Column string
	Op     Op
	Values []any
}

// EQ returns an equality condition on the given column.
func EQ(column string, v any) Cond {
	return Cond{Column: column, Op: OpEQ, Values: []any{v}}
}

// In returns a set-membership condition on the given column.
func In(column string, vs ...any) Cond {
	return Cond{Column: column, Op: OpIn, Values: vs}
}

// Join names a second table to traverse in the same round trip, matching
// Left on the primary table against Right on the joined table. When a
// query carries a join, its predicate conditions refer to columns of the
// joined table, and the named Select columns of the joined table are
// returned alongside the primary table's columns.
type Join struct {
	Table  string   // joined table name
	Left   string   // column on the primary table
	Right  string   // column on the joined table
	Select []string // joined-table columns to include in result rows
}

// Query is one abstract read issued by the planner: a target table, a
// conjunction of predicate conditions, and an optional join. When Columns
// is empty, implementations return every column of the primary table; a
// joined query additionally returns the joined table's columns so result
// grouping can observe the join keys.
type Query struct {
	Table   string
	Columns []string
	Preds   []Cond
	Join    *Join
}

// Querier is the external query-execution interface. Implementations must
// be safe for concurrent use; the loader issues independent queries from
// multiple goroutines.
type Querier interface {
	Query(ctx context.Context, q Query) ([]Row, error)
}

// The QuerierFunc type is an adapter to allow the use of ordinary functions
// as Queriers.
type QuerierFunc func(ctx context.Context, q Query) ([]Row, error)

// Query calls f(ctx, q).
func (f QuerierFunc) Query(ctx context.Context, q Query) ([]Row, error) {
	return f(ctx, q)
}
