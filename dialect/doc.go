// Package dialect defines the abstract query-execution interface the
// kinship core loads through, decoupled from any concrete database.
//
// # Supported Dialects
//
// The concrete SQL implementation in [github.com/syssam/kinship/dialect/sql]
// supports the following dialects, identified by constant strings:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Querier Interface
//
// The core requires a single collaborator:
//
//	type Querier interface {
//	    Query(ctx context.Context, q Query) ([]Row, error)
//	}
//
// A Query names a table, a conjunction of predicates supporting equality
// and set membership over named columns, and an optional join through a
// second table. Rows come back as column-name to value mappings; failures
// surface as a single opaque error.
package dialect
