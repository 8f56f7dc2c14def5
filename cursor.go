package dsstub

// Cursor identifies a registered query result. Cursor ids are never reused.
type Cursor int64

type cursorState struct {
	results []*Entity
	total   int
}

func (e *Engine) registerCursor(results []*Entity) Cursor {
	c := Cursor(e.nextCursor.Add(1))
	e.cursorsLock.Lock()
	e.cursors[c] = &cursorState{results: results, total: len(results)}
	e.cursorsLock.Unlock()
	promOpenCursors.Inc()
	return c
}

// disposeCursor drops a cursor and returns its original result count.
func (e *Engine) disposeCursor(c Cursor) int {
	e.cursorsLock.Lock()
	defer e.cursorsLock.Unlock()
	cs := e.cursors[c]
	if cs == nil {
		return 0
	}
	delete(e.cursors, c)
	promOpenCursors.Dec()
	return cs.total
}

// Next pops up to count entities from the front of the cursor. A zero count
// fetches one entity. Cursors stay registered after they are drained.
func (e *Engine) Next(cursor Cursor, count int) (*QueryResult, error) {
	if count < 0 {
		return nil, badRequestf("negative count %d", count)
	}
	if count == 0 {
		count = 1
	}

	e.cursorsLock.Lock()
	cs := e.cursors[cursor]
	if cs == nil {
		e.cursorsLock.Unlock()
		return nil, badRequestf("cursor %d not found", cursor)
	}
	n := min(count, len(cs.results))
	batch := cs.results[:n]
	cs.results = cs.results[n:]
	more := len(cs.results) > 0
	e.cursorsLock.Unlock()

	result := &QueryResult{
		Cursor:      cursor,
		Results:     make([]*Entity, n),
		MoreResults: more,
	}
	for i, ent := range batch {
		result.Results[i] = ent.Clone()
	}
	return result, nil
}

// CloseCursor disposes a cursor. Unknown cursors are ignored.
func (e *Engine) CloseCursor(cursor Cursor) {
	e.disposeCursor(cursor)
}
