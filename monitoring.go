package dsstub

import (
	"slices"
)

type KindStats struct {
	App      string
	Kind     string
	Entities int

	// DataSize is the total size of the encoded entity records.
	DataSize int
}

type Stats struct {
	Kinds       []KindStats
	Entities    int
	DataSize    int
	OpenCursors int
	Indexes     int
	Queries     int
	InTx        bool
}

// Stats reports storage sizes per kind, ordered by (app, kind).
func (e *Engine) Stats() Stats {
	e.entitiesLock.Lock()
	snap := e.store.clone()
	e.entitiesLock.Unlock()

	var result Stats
	refs := make([]kindRef, 0, len(snap.kinds))
	for ref := range snap.kinds {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, kindRef.compare)

	var buf []byte
	for _, ref := range refs {
		ks := KindStats{App: ref.App, Kind: ref.Kind}
		for _, ent := range snap.table(ref) {
			buf = encodeRecord(buf[:0], ent)
			ks.Entities++
			ks.DataSize += len(buf)
		}
		result.Kinds = append(result.Kinds, ks)
		result.Entities += ks.Entities
		result.DataSize += ks.DataSize
	}

	e.cursorsLock.Lock()
	result.OpenCursors = len(e.cursors)
	e.cursorsLock.Unlock()

	e.indexesLock.Lock()
	for _, list := range e.indexes {
		result.Indexes += len(list)
	}
	e.indexesLock.Unlock()

	e.historyLock.Lock()
	result.Queries = len(e.history)
	e.historyLock.Unlock()

	result.InTx = e.inTransaction()
	return result
}
