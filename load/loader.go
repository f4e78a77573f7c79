// Package load implements relationship resolution: planning the minimal
// set of abstract queries for a relationship over a batch of owners,
// executing them through the external query interface, and attaching the
// grouped results back onto the owners.
//
// Eager loading resolves a relationship for a whole batch in a bounded
// number of queries, independent of batch size. Lazy loading resolves a
// single owner on first accessor use and is memoized on that instance.
package load

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/kinship"
	"github.com/syssam/kinship/dialect"
	"github.com/syssam/kinship/schema"
)

// Graph is the result of an eager load: the owner instances, each
// annotated with the related instances of the requested relationships.
// The graph is owned by the caller; the loader retains no references to it
// after returning.
type Graph struct {
	Owners []*kinship.Instance
}

// Loader resolves relationships through an external query executor. It is
// stateless with respect to individual loads and safe for concurrent use.
type Loader struct {
	src       func() *schema.Registry
	q         dialect.Querier
	log       *slog.Logger
	pivotJoin bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for per-query debug logging.
func WithLogger(log *slog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithPivotJoin makes pivot-shape plans traverse the pivot table in the
// same round trip as the target table, one joined query instead of two.
// This is an optimization over the same semantics; the default two
// round-trip mode works against any executor.
func WithPivotJoin() Option {
	return func(l *Loader) { l.pivotJoin = true }
}

// New returns a Loader resolving against a fixed registry. The registry is
// frozen on the first load operation.
func New(reg *schema.Registry, q dialect.Querier, opts ...Option) *Loader {
	return newLoader(func() *schema.Registry { return reg }, q, opts)
}

// NewVersioned returns a Loader resolving against a swappable registry
// reference. Every load operation plans against the snapshot current at
// its start.
func NewVersioned(v *schema.Versioned, q dialect.Querier, opts ...Option) *Loader {
	return newLoader(v.Load, q, opts)
}

func newLoader(src func() *schema.Registry, q dialect.Querier, opts []Option) *Loader {
	l := &Loader{src: src, q: q, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithRelated eagerly resolves the named relationships for the whole owner
// batch. Each relationship costs a bounded number of queries regardless of
// batch size; independent relationships are loaded concurrently. The
// attachment is all-or-nothing: on any failure no owner is mutated and the
// failure surfaces with the failing query's shape attached. An empty batch
// returns immediately without issuing queries.
func (l *Loader) WithRelated(ctx context.Context, owners []*kinship.Instance, names ...string) (*Graph, error) {
	g := &Graph{Owners: owners}
	if len(owners) == 0 || len(names) == 0 {
		return g, nil
	}
	reg := l.registry()
	entity := owners[0].Entity()
	for _, o := range owners[1:] {
		if o.Entity() != entity {
			return nil, kinship.NewInvalidSchemaError(entity, "owner batch mixes entities")
		}
	}
	attach := make([]map[*kinship.Instance]any, len(names))
	grp, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		grp.Go(func() error {
			m, err := l.loadOne(gctx, reg, entity, owners, name)
			if err != nil {
				return err
			}
			attach[i] = m
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	for i, name := range names {
		for owner, v := range attach[i] {
			owner.SetRelated(name, v)
		}
	}
	return g, nil
}

// LoadLazy resolves the named relationship for a single owner. It is the
// loading half of the lazy accessors on kinship.Instance, which memoize
// the returned value under the instance lock.
func (l *Loader) LoadLazy(ctx context.Context, owner *kinship.Instance, name string) (any, error) {
	reg := l.registry()
	owners := []*kinship.Instance{owner}
	m, err := l.loadOne(ctx, reg, owner.Entity(), owners, name)
	if err != nil {
		return nil, err
	}
	return m[owner], nil
}

// Query fetches instances of an entity matching the given conditions and
// binds them to the loader so their lazy accessors resolve. It is the
// entry point that produces owner batches for eager loading.
func (l *Loader) Query(ctx context.Context, entity string, conds ...dialect.Cond) ([]*kinship.Instance, error) {
	reg := l.registry()
	e, err := reg.Entity(entity)
	if err != nil {
		return nil, err
	}
	rows, err := l.query(ctx, dialect.Query{Table: e.Table, Preds: conds})
	if err != nil {
		return nil, err
	}
	owners := make([]*kinship.Instance, len(rows))
	for i, row := range rows {
		owners[i] = l.instantiate(e, row)
	}
	return owners, nil
}

// registry returns the current registry snapshot, frozen so plan
// construction never observes metadata mutation mid-batch.
func (l *Loader) registry() *schema.Registry {
	reg := l.src()
	reg.Freeze()
	return reg
}

// loadOne plans and executes a single relationship load over the batch,
// returning the complete attachment map. It mutates nothing.
func (l *Loader) loadOne(ctx context.Context, reg *schema.Registry, entity string, owners []*kinship.Instance, name string) (map[*kinship.Instance]any, error) {
	r, err := reg.Relationship(entity, name)
	if err != nil {
		return nil, err
	}
	pl := planner{reg: reg, pivotJoin: l.pivotJoin}
	p, err := pl.plan(r, owners)
	if err != nil {
		return nil, err
	}
	results, err := l.execute(ctx, p)
	if err != nil {
		return nil, err
	}
	return p.group(results, l.instantiate), nil
}

// execute runs the plan's steps in order. Steps whose key set is empty,
// fixed or derived, issue no query at all: an empty set-membership
// predicate is either invalid or vacuously empty depending on the store,
// so it is never emitted.
func (l *Loader) execute(ctx context.Context, p *Plan) ([][]dialect.Row, error) {
	results := make([][]dialect.Row, len(p.steps))
	for i := range p.steps {
		step := &p.steps[i]
		keys := step.Keys
		if step.KeyFrom != "" {
			keys = rowKeySet(results[i-1], step.KeyFrom)
		}
		if len(keys) == 0 {
			results[i] = nil
			continue
		}
		rows, err := l.query(ctx, step.query(keys))
		if err != nil {
			return nil, kinship.NewQueryError(step.Table, step.Column, len(keys), err)
		}
		results[i] = rows
	}
	return results, nil
}

// query issues one abstract query with debug logging.
func (l *Loader) query(ctx context.Context, q dialect.Query) ([]dialect.Row, error) {
	start := time.Now()
	rows, err := l.q.Query(ctx, q)
	if err != nil {
		l.log.Debug("query failed",
			"table", q.Table, "preds", len(q.Preds), "error", err)
		return nil, err
	}
	l.log.Debug("query executed",
		"table", q.Table, "preds", len(q.Preds), "rows", len(rows),
		"elapsed", time.Since(start))
	return rows, nil
}

// instantiate wraps a result row in a loader-bound instance.
func (l *Loader) instantiate(e *schema.Entity, row dialect.Row) *kinship.Instance {
	in := kinship.NewInstance(e.Name, row)
	in.Bind(l)
	return in
}

var _ kinship.RelationLoader = (*Loader)(nil)
