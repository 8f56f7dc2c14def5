package dsstub

// Message is a request or response passed through MakeSyncCall. A message
// that is not initialized is missing a required field.
type Message interface {
	IsInitialized() bool
}

type PutRequest struct {
	Entities    []*Entity
	Transaction *Transaction
}

func (m *PutRequest) IsInitialized() bool {
	for _, ent := range m.Entities {
		if ent == nil || ent.Key == nil {
			return false
		}
	}
	return true
}

type PutResponse struct {
	Keys []*Key
}

func (m *PutResponse) IsInitialized() bool {
	return allKeys(m.Keys)
}

type GetRequest struct {
	Keys []*Key
}

func (m *GetRequest) IsInitialized() bool {
	return allKeys(m.Keys)
}

// GetResponse has one slot per requested key; missing entities are nil.
type GetResponse struct {
	Entities []*Entity
}

func (m *GetResponse) IsInitialized() bool {
	return true
}

type DeleteRequest struct {
	Keys        []*Key
	Transaction *Transaction
}

func (m *DeleteRequest) IsInitialized() bool {
	return allKeys(m.Keys)
}

type QueryRequest struct {
	Query *Query
}

func (m *QueryRequest) IsInitialized() bool {
	return m.Query != nil
}

func (m *QueryResult) IsInitialized() bool {
	for _, ent := range m.Results {
		if ent == nil || ent.Key == nil {
			return false
		}
	}
	return true
}

type NextRequest struct {
	Cursor Cursor
	Count  int
}

func (m *NextRequest) IsInitialized() bool {
	return m.Cursor != 0
}

type CountResponse struct {
	Count int64
}

func (m *CountResponse) IsInitialized() bool {
	return true
}

func (m *Transaction) IsInitialized() bool {
	return true
}

type AllocateIdsRequest struct {
	Key  *Key
	Size int64
}

func (m *AllocateIdsRequest) IsInitialized() bool {
	return m.Key != nil
}

type AllocateIdsResponse struct {
	Start int64
	End   int64
}

func (m *AllocateIdsResponse) IsInitialized() bool {
	return true
}

// AppRequest names the app for GetSchema and GetIndices. An empty App means
// the engine's own.
type AppRequest struct {
	App string
}

func (m *AppRequest) IsInitialized() bool {
	return true
}

type SchemaResponse struct {
	Kinds []*KindSchema
}

func (m *SchemaResponse) IsInitialized() bool {
	return true
}

func (m *CompositeIndex) IsInitialized() bool {
	return m.Definition.Kind != ""
}

type IndexIDResponse struct {
	ID int64
}

func (m *IndexIDResponse) IsInitialized() bool {
	return true
}

type IndicesResponse struct {
	Indices []*CompositeIndex
}

func (m *IndicesResponse) IsInitialized() bool {
	for _, ci := range m.Indices {
		if ci == nil || !ci.IsInitialized() {
			return false
		}
	}
	return true
}

// VoidMessage is the empty request or response.
type VoidMessage struct{}

func (m *VoidMessage) IsInitialized() bool {
	return true
}

func allKeys(keys []*Key) bool {
	for _, k := range keys {
		if k == nil {
			return false
		}
	}
	return true
}
