package dsstub

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
)

type historyEntry struct {
	Query *Query
	Count int64
}

// QueryHistoryEntry is one distinct query with the number of times it ran.
type QueryHistoryEntry struct {
	Query *Query
	Count int64
}

// historyKey fingerprints the canonical encoding of q, so queries that
// differ only by hint share an entry.
func historyKey(q *Query) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(encodeRecord(nil, q.canonical())))
}

func addHistory(history map[string]*historyEntry, q *Query, n int64) {
	key := historyKey(q)
	if he := history[key]; he != nil {
		he.Count += n
		return
	}
	history[key] = &historyEntry{Query: q.canonical(), Count: n}
}

// recordQuery counts an execution of q and rewrites the history file.
func (e *Engine) recordQuery(q *Query) error {
	e.historyLock.Lock()
	addHistory(e.history, q, 1)
	e.historyLock.Unlock()
	return e.writeHistory()
}

// QueryHistory returns the queries recorded for the engine's own app, most
// frequent first.
func (e *Engine) QueryHistory() []QueryHistoryEntry {
	e.historyLock.Lock()
	var result []QueryHistoryEntry
	for _, he := range e.history {
		if he.Query.App != e.appID {
			continue
		}
		c := *he.Query
		result = append(result, QueryHistoryEntry{Query: &c, Count: he.Count})
	}
	e.historyLock.Unlock()

	slices.SortFunc(result, func(a, b QueryHistoryEntry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query.String(), b.Query.String())
	})
	return result
}
