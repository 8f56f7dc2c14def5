package dsstub

import (
	"cmp"
	"slices"
)

// KindSchema describes the properties observed on the entities of a kind.
type KindSchema struct {
	App        string
	Kind       string
	Properties []PropertySchema
}

// PropertySchema lists one placeholder value per type observed under
// the property name. Placeholders carry sentinel contents, not real data.
type PropertySchema struct {
	Name   string
	Values []Value
}

func (ks *KindSchema) clone() *KindSchema {
	c := *ks
	c.Properties = make([]PropertySchema, len(ks.Properties))
	for i, ps := range ks.Properties {
		c.Properties[i] = PropertySchema{Name: ps.Name, Values: slices.Clone(ps.Values)}
	}
	return &c
}

// GetSchema returns a schema for every kind of the app, in kind order.
// Schemas are cached until the kind is next written.
func (e *Engine) GetSchema(app string) []*KindSchema {
	app = e.resolveApp(app)

	e.entitiesLock.Lock()
	defer e.entitiesLock.Unlock()
	var result []*KindSchema
	for _, kind := range e.store.kindsOf(app) {
		ref := kindRef{app, kind}
		ks := e.schemaCache[ref]
		if ks == nil {
			ks = buildKindSchema(ref, e.store.table(ref))
			e.schemaCache[ref] = ks
		}
		result = append(result, ks.clone())
	}
	return result
}

func buildKindSchema(ref kindRef, tbl kindTable) *KindSchema {
	types := make(map[string]map[ValueType]bool)
	for _, ent := range tbl {
		for _, p := range ent.Properties {
			set := types[p.Name]
			if set == nil {
				set = make(map[ValueType]bool)
				types[p.Name] = set
			}
			set[p.Value.Type] = true
		}
	}

	ks := &KindSchema{App: ref.App, Kind: ref.Kind}
	for name, set := range types {
		ps := PropertySchema{Name: name}
		for t := range set {
			ps.Values = append(ps.Values, Value{Type: t}.schemaSentinel())
		}
		slices.SortFunc(ps.Values, func(a, b Value) int {
			return cmp.Compare(a.Type, b.Type)
		})
		ks.Properties = append(ks.Properties, ps)
	}
	slices.SortFunc(ks.Properties, func(a, b PropertySchema) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return ks
}
