package dsstub

import (
	"slices"
)

// requiredIndex is the composite index a query would be served from.
// The first numEq properties come from equality filters.
type requiredIndex struct {
	Kind       string
	Ancestor   bool
	Properties []IndexProperty
	NumEq      int
}

// compositeIndexForQuery computes the index q needs and whether the
// built-in indexes already cover it.
func compositeIndexForQuery(q *Query) (req requiredIndex, required bool) {
	req.Kind = q.Kind
	req.Ancestor = q.Ancestor != nil
	required = q.Kind != ""

	var eqNames []string
	var ineqNames []string
	for _, f := range q.Filters {
		if f.Op == OpEqual {
			eqNames = append(eqNames, f.Property)
		} else {
			ineqNames = append(ineqNames, f.Property)
		}
	}

	// equality-only queries on a kind are served by the single-property
	// indexes, unless they touch __key__
	if q.Kind != "" && len(ineqNames) == 0 && len(q.Orders) == 0 && !slices.Contains(eqNames, KeyProperty) {
		required = false
	}

	for _, name := range eqNames {
		req.Properties = append(req.Properties, IndexProperty{name, Ascending})
	}
	req.NumEq = len(eqNames)

	var orders []Order
	for _, o := range q.Orders {
		if !slices.ContainsFunc(orders, func(x Order) bool { return x.Property == o.Property }) {
			orders = append(orders, o)
		}
	}
	hasProp := func(props []IndexProperty, name string) bool {
		return slices.ContainsFunc(props, func(p IndexProperty) bool { return p.Name == name })
	}

	var rest []IndexProperty
	for _, name := range ineqNames {
		if hasProp(rest, name) {
			continue
		}
		// an order on the inequality property decides its direction
		dir := Ascending
		if j := slices.IndexFunc(orders, func(o Order) bool { return o.Property == name }); j >= 0 {
			dir = orders[j].Direction
		}
		rest = append(rest, IndexProperty{name, dir})
	}
	for _, o := range orders {
		if !hasProp(rest, o.Property) {
			rest = append(rest, IndexProperty{o.Property, o.Direction})
		}
	}
	req.Properties = append(req.Properties, rest...)

	if q.Kind != "" && !req.Ancestor && len(req.Properties) <= 1 {
		required = false
		if len(req.Properties) == 1 {
			p := req.Properties[0]
			if p.Name == KeyProperty && p.Direction == Descending {
				required = true
			}
		}
	}
	return req, required
}

// matches reports whether def can serve the query. Besides an exact match,
// with two or more equality filters the equality prefix may come in any
// order.
func (req *requiredIndex) matches(def *IndexDefinition) bool {
	if def.Kind != req.Kind || def.Ancestor != req.Ancestor {
		return false
	}
	if slices.Equal(def.Properties, req.Properties) {
		return true
	}
	if req.NumEq <= 1 || len(def.Properties) < req.NumEq {
		return false
	}
	if !sameSet(def.Properties[:req.NumEq], req.Properties[:req.NumEq]) {
		return false
	}
	return slices.Equal(def.Properties[req.NumEq:], req.Properties[req.NumEq:])
}

func sameSet(a, b []IndexProperty) bool {
	for _, p := range a {
		if !slices.Contains(b, p) {
			return false
		}
	}
	for _, p := range b {
		if !slices.Contains(a, p) {
			return false
		}
	}
	return true
}

// checkIndexFor fails with CodeNeedIndex when q needs a composite index
// that the app has not defined. Deleted indexes do not count.
func (e *Engine) checkIndexFor(q *Query) error {
	req, required := compositeIndexForQuery(q)
	if !required {
		return nil
	}
	defs := e.usableIndexes(q.App)
	if len(defs) == 0 {
		return needIndexf("This query requires a composite index, but none are defined. You must create an index for %s.", describeRequired(&req))
	}
	for i := range defs {
		if req.matches(&defs[i]) {
			return nil
		}
	}
	return needIndexf("This query requires a composite index that is not defined. You must define an index for %s.", describeRequired(&req))
}

func describeRequired(req *requiredIndex) string {
	def := IndexDefinition{Kind: req.Kind, Ancestor: req.Ancestor, Properties: req.Properties}
	return def.String()
}
