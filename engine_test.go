package dsstub

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/dsstub/recfile"
)

func TestPutGet(t *testing.T) {
	eng := setup(t)
	k := NewKey("app", "Book", "hg2g", 0, nil)
	ent := NewEntity(k).
		Set("title", String("HG2G")).
		Set("pages", Int(42)).
		SetMulti("tags", String("a"), String("b"))

	keys := putAll(t, eng, ent)
	deepEqual(t, keys[0].String(), k.String())

	got := must(eng.Get([]*Key{k}))
	if len(got) != 1 || got[0] == nil {
		t.Fatalf("Get = %v, wanted one entity", got)
	}
	ent.EntityGroup = NewKey("app", "Book", "hg2g", 0, nil)
	if !got[0].Equal(ent) {
		t.Errorf("Get = %v, wanted %v", got[0], ent)
	}
	if root := got[0].EntityGroup.Leaf(); root.Kind != "Book" || root.Name != "hg2g" {
		t.Errorf("EntityGroup = %v, wanted Book,hg2g", got[0].EntityGroup)
	}
}

func TestPut_doesNotModifyCallerEntity(t *testing.T) {
	eng := setup(t)
	ent := NewEntity(NewKey("", "Book", "", 0, nil)).Set("title", String("A"))
	keys := putAll(t, eng, ent)
	if ent.Key.App != "" || !ent.Key.Incomplete() || ent.EntityGroup != nil {
		t.Errorf("caller entity modified: %#v", ent.Key)
	}
	if keys[0].App != testApp || keys[0].Incomplete() {
		t.Errorf("Put key = %v, wanted a complete key in %s", keys[0], testApp)
	}
}

func TestGet_resultsDoNotAliasStorage(t *testing.T) {
	eng := setup(t)
	raw := []byte("abc")
	owner := User{Email: "x@example.com"}
	author := NewKey("", "Author", "adams", 0, nil)
	putAll(t, eng, NewEntity(book("a")).
		Set("data", Bytes(raw)).
		Set("owner", UserValue(owner)).
		Set("author", Ref(author)))
	raw[0] = 'Z'

	got := must(eng.Get([]*Key{book("a")}))[0]
	got.Properties[0].Value.Bytes[0] = 'X'
	got.Properties[1].Value.User.Email = "evil@example.com"
	got.Properties[2].Value.Ref.Path[0].Name = "evil"

	again := must(eng.Get([]*Key{book("a")}))[0]
	deepEqual(t, string(again.Properties[0].Value.Bytes), "abc")
	deepEqual(t, again.Properties[1].Value.User.Email, "x@example.com")
	deepEqual(t, again.Properties[2].Value.Ref.Path[0].Name, "adams")
}

func TestPut_maxIDDoesNotBreakAllocation(t *testing.T) {
	eng := setup(t)
	putAll(t, eng, NewEntity(NewKey("", "Book", "", math.MaxInt64, nil)))

	_, err := eng.Put([]*Entity{NewEntity(NewKey("", "Book", "", 0, nil))}, nil)
	wantCode(t, err, CodeInternalError)
	_, _, err = eng.AllocateIds(book("a"), 1)
	wantCode(t, err, CodeInternalError)

	got := must(eng.Get([]*Key{NewKey("", "Book", "", math.MaxInt64, nil)}))
	if got[0] == nil {
		t.Fatal("entity with the largest id is missing")
	}
	deepEqual(t, eng.Stats().Entities, 1)
}

func TestPut_allocatesIncreasingIDs(t *testing.T) {
	eng := setup(t)
	var last int64
	for range 5 {
		k := putAll(t, eng, NewEntity(NewKey("", "Book", "", 0, nil)))[0]
		id := k.Leaf().ID
		if id <= last {
			t.Fatalf("allocated id %d after %d", id, last)
		}
		last = id
		if next := eng.ids.peek(); next <= id {
			t.Fatalf("next id = %d after allocating %d", next, id)
		}
	}
}

func TestPut_explicitIDsAreNeverReallocated(t *testing.T) {
	eng := setup(t)
	putAll(t, eng, NewEntity(NewKey("", "Book", "", 100, nil)))
	k := putAll(t, eng, NewEntity(NewKey("", "Book", "", 0, nil)))[0]
	if id := k.Leaf().ID; id <= 100 {
		t.Errorf("allocated id = %d, wanted > 100", id)
	}
}

func TestPut_rejectsInvalidKeys(t *testing.T) {
	eng := setup(t)
	tests := []struct {
		name string
		key  *Key
	}{
		{"nil", nil},
		{"empty path", &Key{}},
		{"no kind", &Key{Path: []PathElement{{Name: "x"}}}},
		{"id and name", &Key{Path: []PathElement{{Kind: "Book", ID: 1, Name: "x"}}}},
		{"negative id", &Key{Path: []PathElement{{Kind: "Book", ID: -1}}}},
		{"incomplete parent", &Key{Path: []PathElement{{Kind: "Shelf"}, {Kind: "Book", Name: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Put([]*Entity{{Key: tt.key}}, nil)
			wantCode(t, err, CodeBadRequest)
		})
	}
	if n := eng.store.count(); n != 0 {
		t.Errorf("store has %d entities after failed puts", n)
	}
}

func TestGet_missingKeysYieldNil(t *testing.T) {
	eng := setup(t)
	putAll(t, eng, NewEntity(book("a")))
	got := must(eng.Get([]*Key{book("x"), book("a"), book("y")}))
	if len(got) != 3 || got[0] != nil || got[1] == nil || got[2] != nil {
		t.Fatalf("Get = %v, wanted [nil, a, nil]", got)
	}
	deepEqual(t, got[1].Key.Leaf().Name, "a")
}

func TestDelete(t *testing.T) {
	eng := setup(t)
	putAll(t, eng, NewEntity(book("a")), NewEntity(book("b")))
	ensure(eng.Delete([]*Key{book("a"), book("missing")}, nil))

	got := must(eng.Get([]*Key{book("a"), book("b")}))
	if got[0] != nil || got[1] == nil {
		t.Fatalf("Get after Delete = %v", got)
	}

	ensure(eng.Delete([]*Key{book("b")}, nil))
	if tbl := eng.store.table(kindRef{testApp, "Book"}); tbl != nil {
		t.Errorf("empty kind table was not pruned: %v", tbl)
	}
}

func TestSnapshot_roundTrip(t *testing.T) {
	for _, backend := range []recfile.Backend{recfile.BackendFile, recfile.BackendBolt} {
		for _, compress := range []bool{false, true} {
			t.Run(fmt.Sprintf("%v/compress=%v", backend, compress), func(t *testing.T) {
				dir := t.TempDir()
				opt := Options{
					EntityFile:  filepath.Join(dir, "entities.snap"),
					HistoryFile: filepath.Join(dir, "history.snap"),
					Backend:     backend,
					Compress:    compress,
				}
				eng := setupWith(t, opt)
				putAll(t, eng,
					NewEntity(book("a")).Set("title", String("A")).Set("price", Double(9.5)),
					NewEntity(NewKey("", "Page", "", 7, book("a"))).Set("n", Int(1)).Set("body", Text("...")),
					NewEntity(NewKey("", "Shelf", "", 0, nil)).Set("owner", UserValue(User{Email: "x@example.com"})),
					NewEntity(&Key{Namespace: "ns", Path: []PathElement{{Kind: "Book", Name: "b"}}}).Set("loc", GeoPoint(1, 2)),
				)
				query(t, eng, NewQuery("Book").Order("title", Ascending))
				before := storeContents(eng.store)
				nextID := eng.ids.peek()
				ensure(eng.Close())

				eng2 := setupWith(t, opt)
				deepEqual(t, storeContents(eng2.store), before)
				if got := eng2.ids.peek(); got < nextID {
					t.Errorf("next id after reload = %d, wanted >= %d", got, nextID)
				}
				deepEqual(t, len(eng2.QueryHistory()), 1)
			})
		}
	}
}

func TestOpen_corruptSnapshotFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "entities.snap")
	ensure(os.WriteFile(path, []byte("definitely not a snapshot file"), 0o644))

	_, err := Open(Options{AppID: testApp, EntityFile: path, HistoryFile: recfile.DevNull})
	wantCode(t, err, CodeInternalError)
	if !strings.Contains(err.Error(), "clear the datastore") {
		t.Errorf("Open error = %v, wanted a hint to clear the datastore", err)
	}
}

func TestOpen_requiresAppID(t *testing.T) {
	_, err := Open(Options{})
	if err == nil {
		t.Fatal("Open without app id succeeded")
	}
}

func TestOpen_devNullDisablesFiles(t *testing.T) {
	eng := setupWith(t, Options{EntityFile: recfile.DevNull, HistoryFile: recfile.DevNull})
	putAll(t, eng, NewEntity(book("a")))
	query(t, eng, NewQuery("Book"))
	deepEqual(t, eng.Stats().Entities, 1)
}

func TestPut_writeFailureIsInternalError(t *testing.T) {
	dir := t.TempDir()
	eng := setupWith(t, Options{
		EntityFile:  filepath.Join(dir, "missing", "entities.snap"),
		HistoryFile: recfile.DevNull,
	})
	_, err := eng.Put([]*Entity{NewEntity(book("a"))}, nil)
	wantCode(t, err, CodeInternalError)
}

func TestClear(t *testing.T) {
	eng := setup(t)
	putAll(t, eng, NewEntity(book("a")))
	res := must(eng.RunQuery(NewQuery("Book")))
	_ = must(eng.CreateIndex(&CompositeIndex{Definition: IndexDefinition{Kind: "Book", Properties: []IndexProperty{{"a", Ascending}, {"b", Ascending}}}}))

	eng.Clear()
	deepEqual(t, eng.store.count(), 0)
	isempty(t, eng.QueryHistory())
	_, err := eng.Next(res.Cursor, 1)
	wantCode(t, err, CodeBadRequest)
	deepEqual(t, len(eng.GetIndices("")), 1)
	deepEqual(t, eng.ids.peek(), int64(1))
}

func TestAllocateIds(t *testing.T) {
	eng := setup(t)
	start, end := must2(eng.AllocateIds(book("a"), 10))
	if end-start != 10 || start < 1 {
		t.Fatalf("AllocateIds = [%d, %d), wanted 10 ids", start, end)
	}
	k := putAll(t, eng, NewEntity(NewKey("", "Book", "", 0, nil)))[0]
	if id := k.Leaf().ID; id < end {
		t.Errorf("Put allocated %d inside reserved range [%d, %d)", id, start, end)
	}

	_, _, err := eng.AllocateIds(book("a"), 0)
	wantCode(t, err, CodeBadRequest)
	_, _, err = eng.AllocateIds(nil, 1)
	wantCode(t, err, CodeBadRequest)
}

func must2[T1, T2 any](v1 T1, v2 T2, err error) (T1, T2) {
	if err != nil {
		panic(err)
	}
	return v1, v2
}
