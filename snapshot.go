package dsstub

import (
	"fmt"
	"maps"
	"slices"

	"github.com/andreyvit/dsstub/recfile"
)

type historyRecord struct {
	Query *Query `msgpack:"q"`
	Count int64  `msgpack:"c"`
}

func snapshotLoadErr(path string, err error) error {
	return internalErrorf(err, "data in %s is corrupt or a different version; clear the datastore and try again", path)
}

// load replaces in-memory entities and query history with the content of
// the snapshot files.
func (e *Engine) load() error {
	e.fileLock.Lock()
	defer e.fileLock.Unlock()

	st := newStore()
	var maxID int64
	err := e.entityFile.ReadAll(func(rec []byte) error {
		ent := new(Entity)
		if err := decodeRecord(rec, ent); err != nil {
			return err
		}
		if err := ent.Key.validate(false); err != nil {
			return err
		}
		if st.get(ent.Key) != nil {
			return fmt.Errorf("duplicate entity %v", ent.Key)
		}
		ent.EntityGroup = ent.Key.EntityGroup()
		st.put(ent)
		for _, el := range ent.Key.Path {
			maxID = max(maxID, el.ID)
		}
		return nil
	})
	if err != nil {
		return snapshotLoadErr(e.entityFile.Path(), err)
	}

	history := make(map[string]*historyEntry)
	err = e.historyFile.ReadAll(func(rec []byte) error {
		var hr historyRecord
		if err := decodeRecord(rec, &hr); err != nil {
			return err
		}
		if hr.Query == nil {
			return fmt.Errorf("history record without a query")
		}
		addHistory(history, hr.Query, hr.Count)
		return nil
	})
	if err != nil {
		return snapshotLoadErr(e.historyFile.Path(), err)
	}

	e.entitiesLock.Lock()
	e.store = st
	clear(e.schemaCache)
	e.noteEntityCount()
	e.entitiesLock.Unlock()
	e.ids.observe(maxID)

	e.historyLock.Lock()
	e.history = history
	e.historyLock.Unlock()

	e.logger.Debug("dsstub: loaded snapshot", "app", e.appID, "entities", st.count(), "queries", len(history), "next_id", e.ids.peek())
	return nil
}

// writeEntities rewrites the entity file from the current storage.
func (e *Engine) writeEntities() error {
	e.fileLock.Lock()
	defer e.fileLock.Unlock()
	if recfile.IsDisabled(e.entityFile) {
		return nil
	}

	e.entitiesLock.Lock()
	snap := e.store.clone()
	e.entitiesLock.Unlock()

	var buf []byte
	err := e.entityFile.WriteAll(func(yield func([]byte) bool) {
		for ent := range snap.all() {
			buf = encodeRecord(buf[:0], ent)
			if !yield(buf) {
				return
			}
		}
	})
	if err != nil {
		e.logger.Error("dsstub: failed to write entities", "file", e.entityFile.Path(), "err", err)
		return internalErrorf(err, "writing %s", e.entityFile.Path())
	}
	if e.verbose {
		e.logger.Debug("dsstub: wrote entities", "file", e.entityFile.Path(), "entities", snap.count())
	}
	return nil
}

// writeHistory rewrites the query history file.
func (e *Engine) writeHistory() error {
	e.fileLock.Lock()
	defer e.fileLock.Unlock()
	if recfile.IsDisabled(e.historyFile) {
		return nil
	}

	e.historyLock.Lock()
	records := make([]historyRecord, 0, len(e.history))
	for _, fp := range slices.Sorted(maps.Keys(e.history)) {
		he := e.history[fp]
		records = append(records, historyRecord{Query: he.Query, Count: he.Count})
	}
	e.historyLock.Unlock()

	var buf []byte
	err := e.historyFile.WriteAll(func(yield func([]byte) bool) {
		for i := range records {
			buf = encodeRecord(buf[:0], &records[i])
			if !yield(buf) {
				return
			}
		}
	})
	if err != nil {
		e.logger.Error("dsstub: failed to write query history", "file", e.historyFile.Path(), "err", err)
		return internalErrorf(err, "writing %s", e.historyFile.Path())
	}
	return nil
}
