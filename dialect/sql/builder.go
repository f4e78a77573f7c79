package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/syssam/kinship/dialect"
)

// builder renders one abstract query into a SQL statement for a dialect.
// Identifier quoting and placeholder style are the only dialect-specific
// parts: MySQL quotes with backticks and binds with "?", PostgreSQL quotes
// with double quotes and binds with "$n", SQLite follows PostgreSQL
// quoting with "?" binding.
type builder struct {
	dialect string
	sb      strings.Builder
	args    []any
}

// render returns the SQL statement and bind arguments for the query.
func render(dialectName string, q dialect.Query) (string, []any, error) {
	if err := validate(q); err != nil {
		return "", nil, err
	}
	b := &builder{dialect: dialectName}
	if q.Join != nil {
		b.renderJoined(q)
	} else {
		b.renderPlain(q)
	}
	return b.sb.String(), b.args, nil
}

// validate rejects queries whose identifiers are not safe to quote.
func validate(q dialect.Query) error {
	idents := []string{q.Table}
	idents = append(idents, q.Columns...)
	for _, p := range q.Preds {
		idents = append(idents, p.Column)
	}
	if j := q.Join; j != nil {
		idents = append(idents, j.Table, j.Left, j.Right)
		idents = append(idents, j.Select...)
	}
	for _, ident := range idents {
		if !isValidIdentifier(ident) {
			return fmt.Errorf("dialect/sql: invalid identifier %q", ident)
		}
	}
	return nil
}

func (b *builder) renderPlain(q dialect.Query) {
	b.sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		b.sb.WriteString("*")
	} else {
		for i, c := range q.Columns {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			b.ident(c)
		}
	}
	b.sb.WriteString(" FROM ")
	b.ident(q.Table)
	b.where(q.Preds, "")
}

// renderJoined renders the single-round-trip pivot traversal: the primary
// table joined against the pivot, predicates applied to the pivot, and the
// pivot's selected columns returned alongside the primary columns.
func (b *builder) renderJoined(q dialect.Query) {
	j := q.Join
	b.sb.WriteString("SELECT ")
	b.ident(q.Table)
	b.sb.WriteString(".*")
	for _, c := range j.Select {
		b.sb.WriteString(", ")
		b.qualified(j.Table, c)
	}
	b.sb.WriteString(" FROM ")
	b.ident(q.Table)
	b.sb.WriteString(" JOIN ")
	b.ident(j.Table)
	b.sb.WriteString(" ON ")
	b.qualified(q.Table, j.Left)
	b.sb.WriteString(" = ")
	b.qualified(j.Table, j.Right)
	b.where(q.Preds, j.Table)
}

// where renders the predicate conjunction. A non-empty qualifier prefixes
// every predicate column with the given table.
func (b *builder) where(preds []dialect.Cond, qualifier string) {
	if len(preds) == 0 {
		return
	}
	b.sb.WriteString(" WHERE ")
	for i, p := range preds {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		if qualifier != "" {
			b.qualified(qualifier, p.Column)
		} else {
			b.ident(p.Column)
		}
		switch p.Op {
		case dialect.OpEQ:
			b.sb.WriteString(" = ")
			b.arg(p.Values[0])
		case dialect.OpIn:
			b.sb.WriteString(" IN (")
			for k, v := range p.Values {
				if k > 0 {
					b.sb.WriteString(", ")
				}
				b.arg(v)
			}
			b.sb.WriteString(")")
		}
	}
}

func (b *builder) arg(v any) {
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.sb.WriteString("$")
		b.sb.WriteString(strconv.Itoa(len(b.args)))
		return
	}
	b.sb.WriteString("?")
}

func (b *builder) ident(name string) {
	quote := `"`
	if b.dialect == dialect.MySQL {
		quote = "`"
	}
	b.sb.WriteString(quote)
	b.sb.WriteString(name)
	b.sb.WriteString(quote)
}

func (b *builder) qualified(table, column string) {
	b.ident(table)
	b.sb.WriteString(".")
	b.ident(column)
}
