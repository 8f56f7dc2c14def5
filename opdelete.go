package dsstub

// Delete removes the given keys. Missing keys are ignored. Without a
// transaction the entity file is rewritten before Delete returns.
func (e *Engine) Delete(keys []*Key, tx *Transaction) error {
	for _, k := range keys {
		if err := k.validate(false); err != nil {
			return err
		}
	}

	end, err := e.beginWrite(tx)
	if err != nil {
		return err
	}
	defer end()

	e.entitiesLock.Lock()
	var deleted int
	for _, k := range keys {
		k = e.resolveKey(k)
		if e.store.delete(k) {
			deleted++
			delete(e.schemaCache, refOf(k))
		}
	}
	e.noteEntityCount()
	e.entitiesLock.Unlock()

	if e.verbose {
		e.logger.Debug("dsstub: DELETE", "keys", len(keys), "deleted", deleted, "tx", tx != nil)
	}

	if tx == nil {
		return e.writeEntities()
	}
	return nil
}
