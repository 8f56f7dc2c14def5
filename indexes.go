package dsstub

import (
	"fmt"
	"slices"
)

type IndexState int

const (
	IndexWriteOnly IndexState = iota + 1
	IndexReadWrite
	IndexDeleted
)

func (s IndexState) String() string {
	switch s {
	case IndexWriteOnly:
		return "WRITE_ONLY"
	case IndexReadWrite:
		return "READ_WRITE"
	case IndexDeleted:
		return "DELETED"
	default:
		return fmt.Sprintf("IndexState(%d)", int(s))
	}
}

type IndexProperty struct {
	Name      string
	Direction Direction
}

type IndexDefinition struct {
	Kind       string
	Ancestor   bool
	Properties []IndexProperty
}

func (d *IndexDefinition) Equal(another *IndexDefinition) bool {
	return d.Kind == another.Kind && d.Ancestor == another.Ancestor && slices.Equal(d.Properties, another.Properties)
}

func (d *IndexDefinition) String() string {
	s := d.Kind
	if d.Ancestor {
		s += " (ancestor)"
	}
	for i, p := range d.Properties {
		if i == 0 {
			s += ": "
		} else {
			s += ", "
		}
		s += p.Name + " " + p.Direction.String()
	}
	return s
}

// CompositeIndex is a registered index definition. ID is assigned by
// CreateIndex.
type CompositeIndex struct {
	App        string
	ID         int64
	State      IndexState
	Definition IndexDefinition
}

func (ci *CompositeIndex) clone() *CompositeIndex {
	c := *ci
	c.Definition.Properties = slices.Clone(ci.Definition.Properties)
	return &c
}

func (e *Engine) checkIndexDefinition(ci *CompositeIndex) error {
	if ci == nil {
		return badRequestf("missing index")
	}
	if ci.Definition.Kind == "" {
		return badRequestf("index without a kind")
	}
	for _, p := range ci.Definition.Properties {
		if p.Name == "" {
			return badRequestf("index property without a name")
		}
		if p.Direction != Ascending && p.Direction != Descending {
			return badRequestf("unknown index direction %v on %s", p.Direction, p.Name)
		}
	}
	return nil
}

// findIndex returns the position of the index with the same definition in
// the app's list, or -1. Caller holds indexesLock.
func (e *Engine) findIndex(app string, def *IndexDefinition) int {
	return slices.IndexFunc(e.indexes[app], func(ci *CompositeIndex) bool {
		return ci.Definition.Equal(def)
	})
}

// CreateIndex registers a new composite index and returns its id. The
// index must not carry an id yet. A zero state means WRITE_ONLY.
func (e *Engine) CreateIndex(ci *CompositeIndex) (int64, error) {
	if err := e.checkIndexDefinition(ci); err != nil {
		return 0, err
	}
	if ci.ID != 0 {
		return 0, badRequestf("new index id must be 0, got %d", ci.ID)
	}
	if ci.State == 0 {
		ci = ci.clone()
		ci.State = IndexWriteOnly
	} else if ci.State < IndexWriteOnly || ci.State > IndexDeleted {
		return 0, badRequestf("unknown index state %v", ci.State)
	}
	app := e.resolveApp(ci.App)

	e.indexesLock.Lock()
	defer e.indexesLock.Unlock()
	if e.findIndex(app, &ci.Definition) >= 0 {
		return 0, badRequestf("index already exists: %v", &ci.Definition)
	}
	stored := ci.clone()
	stored.App = app
	stored.ID = e.nextIndexID.Add(1)
	e.indexes[app] = append(e.indexes[app], stored)

	e.logger.Debug("dsstub: created index", "app", app, "id", stored.ID, "def", stored.Definition.String())
	return stored.ID, nil
}

// UpdateIndex changes the state of an existing index. Only a step forward
// (WRITE_ONLY to READ_WRITE to DELETED) or staying put is allowed.
func (e *Engine) UpdateIndex(ci *CompositeIndex) error {
	if err := e.checkIndexDefinition(ci); err != nil {
		return err
	}
	app := e.resolveApp(ci.App)

	e.indexesLock.Lock()
	defer e.indexesLock.Unlock()
	i := e.findIndex(app, &ci.Definition)
	if i < 0 {
		return badRequestf("index does not exist: %v", &ci.Definition)
	}
	stored := e.indexes[app][i]
	if ci.State != stored.State && ci.State != stored.State+1 {
		return badRequestf("cannot move index %d from %v to %v", stored.ID, stored.State, ci.State)
	}
	if ci.State > IndexDeleted {
		return badRequestf("unknown index state %v", ci.State)
	}
	updated := stored.clone()
	updated.State = ci.State
	e.indexes[app][i] = updated

	e.logger.Debug("dsstub: updated index", "app", app, "id", stored.ID, "state", updated.State)
	return nil
}

func (e *Engine) DeleteIndex(ci *CompositeIndex) error {
	if err := e.checkIndexDefinition(ci); err != nil {
		return err
	}
	app := e.resolveApp(ci.App)

	e.indexesLock.Lock()
	defer e.indexesLock.Unlock()
	i := e.findIndex(app, &ci.Definition)
	if i < 0 {
		return badRequestf("index does not exist: %v", &ci.Definition)
	}
	id := e.indexes[app][i].ID
	e.indexes[app] = slices.Delete(e.indexes[app], i, i+1)
	if len(e.indexes[app]) == 0 {
		delete(e.indexes, app)
	}

	e.logger.Debug("dsstub: deleted index", "app", app, "id", id)
	return nil
}

// GetIndices returns copies of the app's indexes in creation order.
func (e *Engine) GetIndices(app string) []*CompositeIndex {
	app = e.resolveApp(app)
	e.indexesLock.Lock()
	defer e.indexesLock.Unlock()
	result := make([]*CompositeIndex, 0, len(e.indexes[app]))
	for _, ci := range e.indexes[app] {
		result = append(result, ci.clone())
	}
	return result
}

// usableIndexes returns the app's definitions that can serve queries.
func (e *Engine) usableIndexes(app string) []IndexDefinition {
	e.indexesLock.Lock()
	defer e.indexesLock.Unlock()
	var result []IndexDefinition
	for _, ci := range e.indexes[app] {
		if ci.State != IndexDeleted {
			result = append(result, ci.Definition)
		}
	}
	return result
}
