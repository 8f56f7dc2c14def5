package dsstub

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

type DumpFlags uint64

const (
	DumpKindHeaders = DumpFlags(1 << iota)
	DumpEntities
	DumpStats
	DumpIndices
	DumpHistory

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the engine state as text, one section per kind.
func (e *Engine) Dump(f DumpFlags) string {
	var buf strings.Builder

	e.entitiesLock.Lock()
	snap := e.store.clone()
	e.entitiesLock.Unlock()

	var stats map[kindRef]KindStats
	if f.Contains(DumpStats) {
		stats = make(map[kindRef]KindStats)
		for _, ks := range e.Stats().Kinds {
			stats[kindRef{ks.App, ks.Kind}] = ks
		}
	}

	var cur kindRef
	var pos int
	for ent := range snap.all() {
		ref := refOf(ent.Key)
		if ref != cur || pos == 0 {
			cur, pos = ref, 0
			prefix := ref.App + "." + ref.Kind
			if f.Contains(DumpKindHeaders) {
				fmt.Fprintln(&buf, dumpSep1)
				fmt.Fprintf(&buf, "%s (%d entities)\n", prefix, len(snap.table(ref)))
			}
			if f.Contains(DumpStats) {
				ks := stats[ref]
				fmt.Fprintf(&buf, "%s.stats: entities = %d, data_size = %d\n", prefix, ks.Entities, ks.DataSize)
			}
			if f.Contains(DumpEntities) && f.Contains(DumpStats) {
				fmt.Fprintln(&buf, dumpSep2)
			}
		}
		pos++
		if f.Contains(DumpEntities) {
			fmt.Fprintf(&buf, "%s.%s.%d = %s\n", ref.App, ref.Kind, pos, ent.String())
		}
	}

	if f.Contains(DumpIndices) {
		e.indexesLock.Lock()
		for _, app := range slices.Sorted(maps.Keys(e.indexes)) {
			for _, ci := range e.indexes[app] {
				fmt.Fprintf(&buf, "%s.i.%d (%v) %s\n", app, ci.ID, ci.State, ci.Definition.String())
			}
		}
		e.indexesLock.Unlock()
	}

	if f.Contains(DumpHistory) {
		for _, he := range e.QueryHistory() {
			fmt.Fprintf(&buf, "%s.q (%dx) %s\n", e.appID, he.Count, he.Query.String())
		}
	}
	return buf.String()
}

// DescribeTransaction reports the open transaction, if any. The stack where
// it began is included when Options.TrackTransactions is set and it has been
// open for at least 100 ms.
func (e *Engine) DescribeTransaction() string {
	e.txHandleLock.Lock()
	otx := e.tx
	e.txHandleLock.Unlock()

	if otx == nil {
		return "NO OPEN TRANSACTION"
	}
	ms := time.Since(otx.startTime).Milliseconds()
	if !e.trackTxns {
		return fmt.Sprintf("transaction %d open for %d ms (stack tracking disabled)", otx.handle, ms)
	}
	if ms < 100 {
		return fmt.Sprintf("transaction %d open for %d ms", otx.handle, ms)
	}
	return fmt.Sprintf("transaction %d open for %d ms:\n%s", otx.handle, ms, otx.stack)
}
