package dsstub

// Get looks up each key and returns a slice of the same length. Missing
// keys yield nil slots. Returned entities are copies.
func (e *Engine) Get(keys []*Key) ([]*Entity, error) {
	for _, k := range keys {
		if err := k.validate(false); err != nil {
			return nil, err
		}
	}

	result := make([]*Entity, len(keys))
	e.entitiesLock.Lock()
	defer e.entitiesLock.Unlock()
	for i, k := range keys {
		result[i] = e.store.get(e.resolveKey(k)).Clone()
	}
	return result, nil
}
