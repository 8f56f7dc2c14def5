package dsstub

import (
	"math"
	"testing"
)

func TestGetSchema(t *testing.T) {
	eng := setup(t)
	putAll(t, eng,
		NewEntity(book("a")).Set("title", String("A")).Set("pages", Int(10)),
		NewEntity(book("b")).Set("pages", Double(2.5)).Set("body", Text("...")),
		NewEntity(NewKey("", "Shelf", "s", 0, nil)).Set("owner", UserValue(User{Email: "x@example.com"})),
		NewEntity(NewKey("other", "Hidden", "h", 0, nil)).Set("x", Int(1)),
	)

	kinds := eng.GetSchema("")
	if len(kinds) != 2 {
		t.Fatalf("GetSchema = %v, wanted Book and Shelf", kinds)
	}
	bk := kinds[0]
	deepEqual(t, bk.Kind, "Book")
	var names []string
	for _, ps := range bk.Properties {
		names = append(names, ps.Name)
	}
	deepEqual(t, names, []string{"body", "pages", "title"})

	pages := bk.Properties[1].Values
	if len(pages) != 2 || !pages[0].Equal(Int(math.MinInt64)) || !pages[1].Equal(Double(math.Inf(-1))) {
		t.Errorf("pages schema = %v, wanted int and double sentinels", pages)
	}
	deepEqual(t, bk.Properties[2].Values[0].Str, "")

	owner := kinds[1].Properties[0].Values[0]
	if owner.Type != TypeUser || owner.User.Email != "" || owner.User.GaiaID != math.MinInt64 {
		t.Errorf("owner schema = %v, wanted the user sentinel", owner)
	}
}

func TestGetSchema_cacheInvalidation(t *testing.T) {
	eng := setup(t)
	putAll(t, eng, NewEntity(book("a")).Set("n", Int(1)))
	deepEqual(t, len(eng.GetSchema("")[0].Properties), 1)
	if eng.schemaCache[kindRef{testApp, "Book"}] == nil {
		t.Fatal("schema not cached")
	}

	// callers cannot corrupt the cache
	eng.GetSchema("")[0].Properties[0].Name = "zzz"
	deepEqual(t, eng.GetSchema("")[0].Properties[0].Name, "n")

	putAll(t, eng, NewEntity(book("b")).Set("m", Bool(true)))
	deepEqual(t, len(eng.GetSchema("")[0].Properties), 2)

	ensure(eng.Delete([]*Key{book("b")}, nil))
	deepEqual(t, len(eng.GetSchema("")[0].Properties), 1)

	tx := must(eng.BeginTransaction())
	must(eng.Put([]*Entity{NewEntity(book("c")).Set("q", Int(1))}, tx))
	ensure(eng.Rollback(tx))
	deepEqual(t, len(eng.GetSchema("")[0].Properties), 1)
}
