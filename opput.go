package dsstub

// Put stores entities, allocating ids for incomplete leaf keys, and returns
// the final keys in request order. Existing entities are replaced. Without
// a transaction the entity file is rewritten before Put returns.
//
// The caller's entities are not modified.
func (e *Engine) Put(entities []*Entity, tx *Transaction) ([]*Key, error) {
	clones := make([]*Entity, len(entities))
	for i, ent := range entities {
		if ent == nil {
			return nil, badRequestf("entity %d is nil", i)
		}
		if err := ent.Key.validate(true); err != nil {
			return nil, err
		}
		c := ent.Clone()
		if c.Key.App == "" {
			c.Key.App = e.appID
		}
		for j := range c.Properties {
			if v := &c.Properties[j].Value; v.Type == TypeReference && v.Ref != nil {
				v.Ref = e.resolveKey(v.Ref)
			}
		}
		clones[i] = c
	}

	end, err := e.beginWrite(tx)
	if err != nil {
		return nil, err
	}
	defer end()

	keys := make([]*Key, len(clones))
	for i, c := range clones {
		leaf := &c.Key.Path[len(c.Key.Path)-1]
		if !leaf.Complete() {
			leaf.ID, err = e.ids.allocate()
			if err != nil {
				return nil, err
			}
		}
		for _, el := range c.Key.Path {
			e.ids.observe(el.ID)
		}
		c.EntityGroup = c.Key.EntityGroup()
		keys[i] = c.Key.Clone()
	}

	e.entitiesLock.Lock()
	for _, c := range clones {
		e.store.put(c)
		delete(e.schemaCache, refOf(c.Key))
	}
	e.noteEntityCount()
	e.entitiesLock.Unlock()

	if e.verbose {
		for _, c := range clones {
			e.logger.Debug("dsstub: PUT", "key", c.Key.String(), "tx", tx != nil, "entity", loggable(c.Properties))
		}
	}

	if tx == nil {
		if err := e.writeEntities(); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
