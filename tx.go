package dsstub

import (
	"runtime/debug"
	"time"
)

// Transaction is the handle returned by BeginTransaction.
type Transaction struct {
	Handle int64 `msgpack:"h"`
}

type openTx struct {
	handle    int64
	snapshot  *store
	startTime time.Time
	stack     string
}

// BeginTransaction waits until no other transaction is open, captures a
// snapshot of storage and returns a fresh handle. The snapshot copies the
// kind tables; entities are shared because writes replace them wholesale.
func (e *Engine) BeginTransaction() (*Transaction, error) {
	e.txLock.Lock()

	e.entitiesLock.Lock()
	snap := e.store.clone()
	e.entitiesLock.Unlock()

	otx := &openTx{
		handle:    e.nextTx.Add(1),
		snapshot:  snap,
		startTime: time.Now(),
	}
	if e.trackTxns {
		otx.stack = string(debug.Stack())
	}

	e.txHandleLock.Lock()
	e.tx = otx
	e.txHandleLock.Unlock()

	if e.verbose {
		e.logger.Debug("dsstub: BEGIN", "tx", otx.handle)
	}
	return &Transaction{Handle: otx.handle}, nil
}

// Commit writes the entity snapshot and ends the transaction. The
// transaction lock is released even when the write fails.
func (e *Engine) Commit(tx *Transaction) error {
	otx, err := e.finishTx(tx)
	if err != nil {
		return err
	}
	defer e.txLock.Unlock()

	err = e.writeEntities()
	if e.verbose {
		e.logger.Debug("dsstub: COMMIT", "tx", otx.handle, "dur", time.Since(otx.startTime), "err", err)
	}
	return err
}

// Rollback restores the storage captured at BeginTransaction.
func (e *Engine) Rollback(tx *Transaction) error {
	otx, err := e.finishTx(tx)
	if err != nil {
		return err
	}
	defer e.txLock.Unlock()

	e.entitiesLock.Lock()
	e.store = otx.snapshot
	clear(e.schemaCache)
	e.noteEntityCount()
	e.entitiesLock.Unlock()

	if e.verbose {
		e.logger.Debug("dsstub: ROLLBACK", "tx", otx.handle, "dur", time.Since(otx.startTime))
	}
	return nil
}

// finishTx retires the open transaction if tx names it.
func (e *Engine) finishTx(tx *Transaction) (*openTx, error) {
	e.txHandleLock.Lock()
	defer e.txHandleLock.Unlock()
	if err := e.checkTxLocked(tx); err != nil {
		return nil, err
	}
	otx := e.tx
	e.tx = nil
	return otx, nil
}

func (e *Engine) checkTx(tx *Transaction) error {
	e.txHandleLock.Lock()
	defer e.txHandleLock.Unlock()
	return e.checkTxLocked(tx)
}

func (e *Engine) checkTxLocked(tx *Transaction) error {
	if tx == nil {
		return badRequestf("missing transaction handle")
	}
	if e.tx == nil || e.tx.handle != tx.Handle {
		return badRequestf("transaction handle %d not found", tx.Handle)
	}
	return nil
}

// inTransaction reports whether a transaction is currently open.
func (e *Engine) inTransaction() bool {
	e.txHandleLock.Lock()
	defer e.txHandleLock.Unlock()
	return e.tx != nil
}

// beginWrite serializes a write against transactions. Writes that carry a
// transaction handle already own the transaction lock through it.
func (e *Engine) beginWrite(tx *Transaction) (end func(), err error) {
	if tx != nil {
		if err := e.checkTx(tx); err != nil {
			return nil, err
		}
		return func() {}, nil
	}
	e.txLock.Lock()
	return e.txLock.Unlock, nil
}
