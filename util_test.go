package dsstub

import (
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"
)

func init() {
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

const testApp = "app"

func setup(t testing.TB) *Engine {
	t.Helper()
	return setupWith(t, Options{})
}

// setupWith opens an engine over fresh snapshot files in a temp dir, unless
// opt names its own files.
func setupWith(t testing.TB, opt Options) *Engine {
	t.Helper()
	if opt.AppID == "" {
		opt.AppID = testApp
	}
	if opt.EntityFile == "" {
		dir := t.TempDir()
		opt.EntityFile = filepath.Join(dir, "entities.snap")
		opt.HistoryFile = filepath.Join(dir, "history.snap")
	}
	opt.Verbose = true
	eng := must(Open(opt))
	t.Cleanup(func() {
		eng.Close()
	})
	return eng
}

func reopen(t testing.TB, eng *Engine) *Engine {
	t.Helper()
	return setupWith(t, Options{
		AppID:       eng.appID,
		EntityFile:  eng.entityFile.Path(),
		HistoryFile: eng.historyFile.Path(),
	})
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isempty[T any, S ~[]T](t testing.TB, a S) {
	if len(a) > 0 {
		t.Helper()
		t.Errorf("** got %v, wanted empty slice", a)
	}
}

func wantCode(t testing.TB, err error, code Code) {
	if c := ErrorCode(err); c != code {
		t.Helper()
		t.Fatalf("** error code = %v (%v), wanted %v", c, err, code)
	}
}

func book(name string) *Key {
	return NewKey("", "Book", name, 0, nil)
}

func putAll(t testing.TB, eng *Engine, ents ...*Entity) []*Key {
	t.Helper()
	keys, err := eng.Put(ents, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return keys
}

// query runs q and drains its cursor.
func query(t testing.TB, eng *Engine, q *Query) []*Entity {
	t.Helper()
	res, err := eng.RunQuery(q)
	if err != nil {
		t.Fatalf("RunQuery(%v): %v", q, err)
	}
	var result []*Entity
	for more := res.MoreResults; more; {
		page := must(eng.Next(res.Cursor, 100))
		result = append(result, page.Results...)
		more = page.MoreResults
	}
	return result
}

func keyNames(ents []*Entity) []string {
	result := make([]string, len(ents))
	for i, ent := range ents {
		result[i] = ent.Key.Leaf().Name
	}
	return result
}

// storeContents flattens a store into encoded key → entity for comparison.
func storeContents(s *store) map[string]string {
	result := make(map[string]string)
	for ent := range s.all() {
		result[ent.Key.encode()] = string(encodeRecord(nil, ent))
	}
	return result
}
