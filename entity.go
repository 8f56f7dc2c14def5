package dsstub

import (
	"strings"
)

// Meaning is an optional hint attached to a property value. It does not
// affect indexing; raw-ness is decided by the value type alone.
type Meaning int32

const (
	MeaningNone          Meaning = 0
	MeaningAtomCategory  Meaning = 1
	MeaningAtomLink      Meaning = 2
	MeaningAtomTitle     Meaning = 3
	MeaningAtomContent   Meaning = 4
	MeaningAtomSummary   Meaning = 5
	MeaningAtomAuthor    Meaning = 6
	MeaningGDWhen        Meaning = 7
	MeaningGDEmail       Meaning = 8
	MeaningGeoRSSPoint   Meaning = 9
	MeaningGDIM          Meaning = 10
	MeaningGDPhoneNumber Meaning = 11
	MeaningGDPostalAddr  Meaning = 12
	MeaningGDRating      Meaning = 13
	MeaningBlob          Meaning = 14
	MeaningText          Meaning = 15
	MeaningByteString    Meaning = 16
)

// KeyProperty is the special property name that filters and orders on
// the entity key itself.
const KeyProperty = "__key__"

type Property struct {
	Name     string  `msgpack:"n"`
	Value    Value   `msgpack:"v"`
	Meaning  Meaning `msgpack:"m,omitempty"`
	Multiple bool    `msgpack:"mu,omitempty"`
}

// Entity is a key plus an ordered property list. A name may recur to
// represent a multi-valued property.
type Entity struct {
	Key         *Key       `msgpack:"k"`
	EntityGroup *Key       `msgpack:"g"`
	Properties  []Property `msgpack:"p"`
}

func NewEntity(key *Key) *Entity {
	return &Entity{Key: key}
}

// Set appends a property value. Calling it several times with the same
// name makes the property multi-valued.
func (e *Entity) Set(name string, v Value) *Entity {
	e.Properties = append(e.Properties, Property{Name: name, Value: v})
	return e
}

// SetMulti appends one property entry per value, all marked multiple.
func (e *Entity) SetMulti(name string, vs ...Value) *Entity {
	for _, v := range vs {
		e.Properties = append(e.Properties, Property{Name: name, Value: v, Multiple: true})
	}
	return e
}

// Values returns every value stored under name in declaration order.
func (e *Entity) Values(name string) []Value {
	if name == KeyProperty {
		return []Value{Ref(e.Key)}
	}
	var result []Value
	for _, p := range e.Properties {
		if p.Name == name {
			result = append(result, p.Value)
		}
	}
	return result
}

// Value returns the first value stored under name.
func (e *Entity) Value(name string) (Value, bool) {
	if name == KeyProperty {
		return Ref(e.Key), true
	}
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}

// indexedValues is Values with raw-typed entries dropped.
func (e *Entity) indexedValues(name string) []Value {
	vals := e.Values(name)
	n := 0
	for _, v := range vals {
		if v.Indexable() {
			vals[n] = v
			n++
		}
	}
	return vals[:n]
}

// Clone deep-copies the entity, including value payloads.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	props := make([]Property, len(e.Properties))
	for i, p := range e.Properties {
		p.Value = p.Value.Clone()
		props[i] = p
	}
	return &Entity{
		Key:         e.Key.Clone(),
		EntityGroup: e.EntityGroup.Clone(),
		Properties:  props,
	}
}

func (e *Entity) Equal(another *Entity) bool {
	if e == nil || another == nil {
		return e == another
	}
	if !e.Key.Equal(another.Key) || !e.EntityGroup.Equal(another.EntityGroup) || len(e.Properties) != len(another.Properties) {
		return false
	}
	for i, p := range e.Properties {
		q := another.Properties[i]
		if p.Name != q.Name || p.Meaning != q.Meaning || p.Multiple != q.Multiple || !p.Value.Equal(q.Value) {
			return false
		}
	}
	return true
}

func (e *Entity) String() string {
	var buf strings.Builder
	buf.WriteString(e.Key.String())
	buf.WriteString(" {")
	for i, p := range e.Properties {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Name)
		buf.WriteByte('=')
		buf.WriteString(p.Value.String())
	}
	buf.WriteByte('}')
	return buf.String()
}
