package dsstub

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// kindRef names a kind table: all entities of one kind within one app.
type kindRef struct {
	App  string
	Kind string
}

func (r kindRef) compare(another kindRef) int {
	if c := cmp.Compare(r.App, another.App); c != 0 {
		return c
	}
	return cmp.Compare(r.Kind, another.Kind)
}

// kindTable maps encoded keys to entities.
type kindTable map[string]*Entity

// store is the two-level (app, kind) → key → entity mapping. Stored
// entities are never mutated; writes replace them wholesale, which is what
// makes the shallow clone a valid snapshot.
type store struct {
	kinds map[kindRef]kindTable
}

func newStore() *store {
	return &store{kinds: make(map[kindRef]kindTable)}
}

func refOf(k *Key) kindRef {
	return kindRef{k.App, k.Kind()}
}

func (s *store) get(k *Key) *Entity {
	tbl := s.kinds[refOf(k)]
	if tbl == nil {
		return nil
	}
	return tbl[k.encode()]
}

func (s *store) put(e *Entity) {
	ref := refOf(e.Key)
	tbl := s.kinds[ref]
	if tbl == nil {
		tbl = make(kindTable)
		s.kinds[ref] = tbl
	}
	tbl[e.Key.encode()] = e
}

// delete removes k and prunes the kind table once it becomes empty.
func (s *store) delete(k *Key) bool {
	ref := refOf(k)
	tbl := s.kinds[ref]
	if tbl == nil {
		return false
	}
	ek := k.encode()
	if _, found := tbl[ek]; !found {
		return false
	}
	delete(tbl, ek)
	if len(tbl) == 0 {
		delete(s.kinds, ref)
	}
	return true
}

func (s *store) table(ref kindRef) kindTable {
	return s.kinds[ref]
}

// kindsOf returns the sorted kind names that have entities in app.
func (s *store) kindsOf(app string) []string {
	var result []string
	for ref := range s.kinds {
		if ref.App == app {
			result = append(result, ref.Kind)
		}
	}
	slices.Sort(result)
	return result
}

func (s *store) count() int {
	var n int
	for _, tbl := range s.kinds {
		n += len(tbl)
	}
	return n
}

// clone copies the outer and inner maps. Entities are shared.
func (s *store) clone() *store {
	c := &store{kinds: make(map[kindRef]kindTable, len(s.kinds))}
	for ref, tbl := range s.kinds {
		c.kinds[ref] = maps.Clone(tbl)
	}
	return c
}

// all yields every entity ordered by (app, kind) and then by key.
func (s *store) all() iter.Seq[*Entity] {
	return func(yield func(*Entity) bool) {
		refs := slices.SortedFunc(maps.Keys(s.kinds), kindRef.compare)
		for _, ref := range refs {
			for _, e := range sortedEntities(s.kinds[ref]) {
				if !yield(e) {
					return
				}
			}
		}
	}
}

func sortedEntities(tbl kindTable) []*Entity {
	result := slices.Collect(maps.Values(tbl))
	slices.SortFunc(result, func(a, b *Entity) int {
		return a.Key.Compare(b.Key)
	})
	return result
}
