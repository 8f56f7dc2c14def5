package dsstub

import (
	"slices"
)

// QueryResult is returned by RunQuery and Next. RunQuery never fills
// Results; entities are fetched with Next.
type QueryResult struct {
	Cursor      Cursor
	Results     []*Entity
	MoreResults bool
}

// RunQuery evaluates q against the current storage and registers a cursor
// holding the full result list.
func (e *Engine) RunQuery(q *Query) (*QueryResult, error) {
	results, err := e.runQuery(q)
	if err != nil {
		return nil, err
	}
	cursor := e.registerCursor(results)
	return &QueryResult{Cursor: cursor, MoreResults: len(results) > 0}, nil
}

// Count runs q and returns the number of results without registering a
// cursor.
func (e *Engine) Count(q *Query) (int64, error) {
	results, err := e.runQuery(q)
	if err != nil {
		return 0, err
	}
	return int64(len(results)), nil
}

func (e *Engine) runQuery(q *Query) ([]*Entity, error) {
	if q == nil {
		return nil, badRequestf("missing query")
	}
	if e.inTransaction() {
		return nil, badRequestf("can't query inside a transaction")
	}
	q = e.normalizeQuery(q)
	if err := q.validate(); err != nil {
		return nil, err
	}
	if e.requireIndexes {
		if err := e.checkIndexFor(q); err != nil {
			return nil, err
		}
	}

	if err := e.recordQuery(q); err != nil {
		return nil, err
	}

	results := e.execute(q)
	if e.verbose {
		e.logger.Debug("dsstub: QUERY", "app", q.App, "query", q.String(), "results", len(results))
	}
	return results, nil
}

// execute runs the filter, order and offset/limit pipeline. Entities are
// immutable once stored, so only candidate collection needs the lock.
func (e *Engine) execute(q *Query) []*Entity {
	e.entitiesLock.Lock()
	var candidates []*Entity
	if q.Kind != "" {
		for _, ent := range e.store.table(kindRef{q.App, q.Kind}) {
			candidates = append(candidates, ent)
		}
	} else {
		for _, kind := range e.store.kindsOf(q.App) {
			for _, ent := range e.store.table(kindRef{q.App, kind}) {
				candidates = append(candidates, ent)
			}
		}
	}
	e.entitiesLock.Unlock()

	matched := candidates[:0]
	for _, ent := range candidates {
		if ent.Key.Namespace != q.Namespace {
			continue
		}
		if q.Ancestor != nil && !ent.Key.HasAncestor(q.Ancestor) {
			continue
		}
		if !matchesFilters(ent, q.Filters) {
			continue
		}
		matched = append(matched, ent)
	}

	results := sortEntities(matched, q.Orders)

	if off := int(q.Offset); off > 0 {
		if off >= len(results) {
			results = nil
		} else {
			results = results[off:]
		}
	}
	if q.HasLimit && int(q.Limit) < len(results) {
		results = results[:q.Limit]
	}
	return results
}

func matchesFilters(ent *Entity, filters []Filter) bool {
	for i := range filters {
		if !filters[i].matches(ent) {
			return false
		}
	}
	return true
}

// matches reports whether any indexable value of the filtered property
// satisfies the filter. A raw filter value matches nothing.
func (f *Filter) matches(ent *Entity) bool {
	if !f.Value.Indexable() {
		return false
	}
	for _, v := range ent.Values(f.Property) {
		if !v.Indexable() {
			continue
		}
		if f.Op.matches(Compare(v, f.Value)) {
			return true
		}
	}
	return false
}

type sortRow struct {
	ent  *Entity
	keys []Value
}

// sortEntities drops entities lacking an indexable value for any order
// property and sorts the rest by the orders, then by key. A multi-valued
// property sorts by its smallest value ascending and its largest descending.
func sortEntities(ents []*Entity, orders []Order) []*Entity {
	rows := make([]sortRow, 0, len(ents))
	for _, ent := range ents {
		row := sortRow{ent: ent, keys: make([]Value, len(orders))}
		ok := true
		for i, o := range orders {
			vals := ent.indexedValues(o.Property)
			if len(vals) == 0 {
				ok = false
				break
			}
			if o.Direction == Descending {
				row.keys[i] = slices.MaxFunc(vals, Compare)
			} else {
				row.keys[i] = slices.MinFunc(vals, Compare)
			}
		}
		if ok {
			rows = append(rows, row)
		}
	}

	slices.SortStableFunc(rows, func(a, b sortRow) int {
		for i, o := range orders {
			c := Compare(a.keys[i], b.keys[i])
			if o.Direction == Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return a.ent.Key.Compare(b.ent.Key)
	})

	result := make([]*Entity, len(rows))
	for i, row := range rows {
		result[i] = row.ent
	}
	return result
}
