package load

import (
	"github.com/syssam/kinship"
	"github.com/syssam/kinship/dialect"
	"github.com/syssam/kinship/schema"
	"github.com/syssam/kinship/schema/rel"
)

// A Step is one abstract query of a load plan: a target table and a
// set-membership predicate over a batch of key values. The key set is
// either fixed at planning time or derived from the previous step's rows.
type Step struct {
	Table   string         // table to query
	Column  string         // set-membership column
	Keys    []any          // fixed key set; nil when KeyFrom is set
	KeyFrom string         // previous-step column feeding this step's key set
	Extra   []dialect.Cond // additional equality conditions (discriminator type)
	Join    *dialect.Join  // optional single-round-trip pivot traversal
	Entity  *schema.Entity // entity the returned rows instantiate; nil for pivot rows
}

// query materializes the step into an abstract query over the given keys.
func (s *Step) query(keys []any) dialect.Query {
	preds := make([]dialect.Cond, 0, len(s.Extra)+1)
	preds = append(preds, dialect.In(s.Column, keys...))
	preds = append(preds, s.Extra...)
	return dialect.Query{Table: s.Table, Preds: preds, Join: s.Join}
}

// instantiate is a factory turning a result row into a loader-bound
// entity instance.
type instantiate func(e *schema.Entity, row dialect.Row) *kinship.Instance

// A Plan is the ephemeral product of planning one relationship load for one
// owner batch: the ordered steps to execute and the grouping that attaches
// result rows back onto owners. It is constructed per call and discarded.
//
// The number of steps is bounded by the relationship shape, never by the
// batch size: one for direct and morph-many shapes, two for pivot and
// through shapes (one in pivot-join mode), and one per distinct
// discriminator value for polymorphic inverse resolution.
type Plan struct {
	rel    *schema.Relationship
	owners []*kinship.Instance
	steps  []Step
	group  func(results [][]dialect.Row, mk instantiate) map[*kinship.Instance]any
}

// Steps returns the planned steps.
func (p *Plan) Steps() []Step { return p.steps }

// planner turns a relationship and an owner batch into a load plan. It is
// stateless; a single planner serves concurrent loads.
type planner struct {
	reg       *schema.Registry
	pivotJoin bool
}

// plan builds the load plan for one relationship over one owner batch.
// Owners whose local key is null are excluded from every key set; the
// grouping still covers them with an absent value or empty collection.
func (pl *planner) plan(r *schema.Relationship, owners []*kinship.Instance) (*Plan, error) {
	p := &Plan{rel: r, owners: owners}
	d := r.Desc
	switch d.Rel {
	case rel.O2O, rel.O2M:
		pl.planDirect(p, d.LocalKey, d.ForeignKey, nil)
	case rel.M2O:
		pl.planDirect(p, d.ForeignKey, d.OwnerKey, nil)
	case rel.MorphO2M:
		tag, _ := pl.reg.MorphTag(r.Owner.Name)
		pl.planDirect(p, d.LocalKey, d.MorphIDColumn(), []dialect.Cond{
			dialect.EQ(d.MorphTypeColumn(), tag),
		})
	case rel.M2M:
		pl.planPivot(p, d.PivotOwnerKey, nil)
	case rel.MorphM2M:
		tag, _ := pl.reg.MorphTag(r.Owner.Name)
		pl.planPivot(p, d.MorphIDColumn(), []dialect.Cond{
			dialect.EQ(d.MorphTypeColumn(), tag),
		})
	case rel.O2OThrough, rel.O2MThrough:
		pl.planThrough(p)
	case rel.MorphTo:
		if err := pl.planMorphTo(p); err != nil {
			return nil, err
		}
	default:
		return nil, kinship.NewUnknownRelationshipError(r.Owner.Name, r.Name)
	}
	return p, nil
}

// planDirect covers the single-query shapes: the target table is matched
// on one column against the owners' local key values.
func (pl *planner) planDirect(p *Plan, localKey, matchColumn string, extra []dialect.Cond) {
	r := p.rel
	p.steps = []Step{{
		Table:  r.Target.Table,
		Column: matchColumn,
		Keys:   keySet(p.owners, localKey),
		Extra:  extra,
		Entity: r.Target,
	}}
	p.group = func(results [][]dialect.Row, mk instantiate) map[*kinship.Instance]any {
		idx := ownerIndex(p.owners, localKey)
		grouped := newAttachment(p.owners, r.Desc.Rel.Unique())
		for _, row := range results[0] {
			k, ok := rowValue(row, matchColumn)
			if !ok {
				continue
			}
			for _, owner := range idx[k] {
				grouped.add(owner, mk(r.Target, row))
			}
		}
		return grouped.done()
	}
}

// planPivot covers the two-query pivot shapes: pivot rows matched on the
// owner foreign key, then target rows matched on their primary key against
// the pivot's target foreign keys. In pivot-join mode both round trips
// collapse into one joined query.
func (pl *planner) planPivot(p *Plan, pivotOwnerKey string, extra []dialect.Cond) {
	r := p.rel
	d := r.Desc
	keys := keySet(p.owners, d.LocalKey)
	if pl.pivotJoin {
		sel := []string{pivotOwnerKey}
		p.steps = []Step{{
			Table:  r.Target.Table,
			Column: pivotOwnerKey,
			Keys:   keys,
			Extra:  extra,
			Join: &dialect.Join{
				Table:  d.PivotTable,
				Left:   r.Target.ID,
				Right:  d.PivotTargetKey,
				Select: sel,
			},
			Entity: r.Target,
		}}
		p.group = func(results [][]dialect.Row, mk instantiate) map[*kinship.Instance]any {
			idx := ownerIndex(p.owners, d.LocalKey)
			grouped := newAttachment(p.owners, false)
			for _, row := range results[0] {
				k, ok := rowValue(row, pivotOwnerKey)
				if !ok {
					continue
				}
				delete(row, pivotOwnerKey)
				for _, owner := range idx[k] {
					grouped.add(owner, mk(r.Target, row))
				}
			}
			return grouped.done()
		}
		return
	}
	p.steps = []Step{
		{
			Table:  d.PivotTable,
			Column: pivotOwnerKey,
			Keys:   keys,
			Extra:  extra,
		},
		{
			Table:   r.Target.Table,
			Column:  r.Target.ID,
			KeyFrom: d.PivotTargetKey,
			Entity:  r.Target,
		},
	}
	p.group = func(results [][]dialect.Row, mk instantiate) map[*kinship.Instance]any {
		idx := ownerIndex(p.owners, d.LocalKey)
		targets := make(map[any]dialect.Row, len(results[1]))
		for _, row := range results[1] {
			if k, ok := rowValue(row, r.Target.ID); ok {
				targets[k] = row
			}
		}
		grouped := newAttachment(p.owners, false)
		// Pivot row order drives the attachment order; duplicate pivot
		// rows attach the target again, mirroring the stored data.
		for _, pivot := range results[0] {
			ownerKey, ok1 := rowValue(pivot, pivotOwnerKey)
			targetKey, ok2 := rowValue(pivot, d.PivotTargetKey)
			if !ok1 || !ok2 {
				continue
			}
			row, ok := targets[targetKey]
			if !ok {
				continue
			}
			for _, owner := range idx[ownerKey] {
				grouped.add(owner, mk(r.Target, row))
			}
		}
		return grouped.done()
	}
}

// planThrough covers the two-hop shapes: intermediate rows matched on the
// owner key, then target rows matched against the intermediate primary
// keys. Grouping composes both hops so callers never see the intermediate
// rows.
func (pl *planner) planThrough(p *Plan) {
	r := p.rel
	d := r.Desc
	p.steps = []Step{
		{
			Table:  r.Through.Table,
			Column: d.FirstKey,
			Keys:   keySet(p.owners, d.LocalKey),
		},
		{
			Table:   r.Target.Table,
			Column:  d.SecondKey,
			KeyFrom: r.Through.ID,
			Entity:  r.Target,
		},
	}
	p.group = func(results [][]dialect.Row, mk instantiate) map[*kinship.Instance]any {
		idx := ownerIndex(p.owners, d.LocalKey)
		// intermediate primary key -> owners on the near side of hop one.
		via := make(map[any][]*kinship.Instance, len(results[0]))
		for _, row := range results[0] {
			ownerKey, ok1 := rowValue(row, d.FirstKey)
			interKey, ok2 := rowValue(row, r.Through.ID)
			if !ok1 || !ok2 {
				continue
			}
			via[interKey] = append(via[interKey], idx[ownerKey]...)
		}
		grouped := newAttachment(p.owners, d.Rel.Unique())
		for _, row := range results[1] {
			k, ok := rowValue(row, d.SecondKey)
			if !ok {
				continue
			}
			for _, owner := range via[k] {
				grouped.add(owner, mk(r.Target, row))
			}
		}
		return grouped.done()
	}
}

// planMorphTo covers polymorphic inverse resolution: owners are bucketed
// by stored discriminator value and the plan fans out one query per
// distinct target entity present in the batch. An unknown discriminator
// value fails the load; it can never be resolved to an entity.
func (pl *planner) planMorphTo(p *Plan) error {
	r := p.rel
	d := r.Desc
	type bucket struct {
		entity *schema.Entity
		owners []*kinship.Instance
	}
	var buckets []*bucket
	byTag := make(map[string]*bucket)
	for _, owner := range p.owners {
		tagv, ok1 := owner.Get(d.MorphTypeColumn())
		_, ok2 := owner.Get(d.MorphIDColumn())
		if !ok1 || !ok2 {
			continue
		}
		tag, ok := tagv.(string)
		if !ok {
			tag = ""
		}
		b := byTag[tag]
		if b == nil {
			e, err := pl.reg.MorphEntity(tag)
			if err != nil {
				return err
			}
			b = &bucket{entity: e}
			byTag[tag] = b
			buckets = append(buckets, b)
		}
		b.owners = append(b.owners, owner)
	}
	for _, b := range buckets {
		p.steps = append(p.steps, Step{
			Table:  b.entity.Table,
			Column: b.entity.ID,
			Keys:   keySet(b.owners, d.MorphIDColumn()),
			Entity: b.entity,
		})
	}
	p.group = func(results [][]dialect.Row, mk instantiate) map[*kinship.Instance]any {
		grouped := newAttachment(p.owners, true)
		for i, b := range buckets {
			targets := make(map[any]dialect.Row, len(results[i]))
			for _, row := range results[i] {
				if k, ok := rowValue(row, b.entity.ID); ok {
					targets[k] = row
				}
			}
			for _, owner := range b.owners {
				v, ok := owner.Get(d.MorphIDColumn())
				if !ok {
					continue
				}
				if row, ok := targets[matchKey(v)]; ok {
					grouped.add(owner, mk(b.entity, row))
				}
			}
		}
		return grouped.done()
	}
	return nil
}

// attachment accumulates the grouped related values, guaranteeing every
// owner in the batch ends up with a value: nil for absent to-one results,
// an empty slice for empty to-many results.
type attachment struct {
	unique bool
	values map[*kinship.Instance]any
}

func newAttachment(owners []*kinship.Instance, unique bool) *attachment {
	a := &attachment{unique: unique, values: make(map[*kinship.Instance]any, len(owners))}
	for _, o := range owners {
		if unique {
			a.values[o] = (*kinship.Instance)(nil)
		} else {
			a.values[o] = []*kinship.Instance{}
		}
	}
	return a
}

// add attaches one related instance to an owner. For unique shapes the
// first attached instance wins; row order is the executor's natural order
// and deliberately left unspecified.
func (a *attachment) add(owner *kinship.Instance, in *kinship.Instance) {
	if a.unique {
		if cur, ok := a.values[owner].(*kinship.Instance); ok && cur == nil {
			a.values[owner] = in
		}
		return
	}
	a.values[owner] = append(a.values[owner].([]*kinship.Instance), in)
}

// done normalizes absent to-one values to untyped nil so callers see a
// plain nil instance.
func (a *attachment) done() map[*kinship.Instance]any {
	for o, v := range a.values {
		if in, ok := v.(*kinship.Instance); ok && in == nil {
			a.values[o] = nil
		}
	}
	return a.values
}
