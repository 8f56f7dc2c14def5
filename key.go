package dsstub

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Key identifies an entity: an app partition, an optional namespace and
// a non-empty path of (kind, id-or-name) elements. The first path element
// identifies the entity group.
type Key struct {
	App       string        `msgpack:"a"`
	Namespace string        `msgpack:"ns,omitempty"`
	Path      []PathElement `msgpack:"p"`
}

// PathElement is one step of a key path. An element with neither ID nor
// Name set is incomplete; Put allocates an ID for an incomplete leaf.
type PathElement struct {
	Kind string `msgpack:"k"`
	ID   int64  `msgpack:"i,omitempty"`
	Name string `msgpack:"n,omitempty"`
}

// NewKey builds a single-element key under parent. Pass an empty app to
// have the engine substitute its own app id.
func NewKey(app, kind, name string, id int64, parent *Key) *Key {
	k := &Key{App: app}
	if parent != nil {
		k.App = parent.App
		k.Namespace = parent.Namespace
		k.Path = append(k.Path, parent.Path...)
	}
	k.Path = append(k.Path, PathElement{Kind: kind, ID: id, Name: name})
	return k
}

func (el PathElement) Complete() bool {
	return el.ID != 0 || el.Name != ""
}

func (el PathElement) Compare(another PathElement) int {
	if c := strings.Compare(el.Kind, another.Kind); c != 0 {
		return c
	}
	// numeric ids sort before names
	aNamed, bNamed := el.Name != "", another.Name != ""
	switch {
	case aNamed && bNamed:
		return strings.Compare(el.Name, another.Name)
	case aNamed:
		return 1
	case bNamed:
		return -1
	default:
		return cmp.Compare(el.ID, another.ID)
	}
}

func (el PathElement) String() string {
	if el.Name != "" {
		return el.Kind + "," + strconv.Quote(el.Name)
	} else if el.ID != 0 {
		return el.Kind + "," + strconv.FormatInt(el.ID, 10)
	} else {
		return el.Kind + ",?"
	}
}

func (k *Key) Leaf() PathElement {
	return k.Path[len(k.Path)-1]
}

func (k *Key) Root() PathElement {
	return k.Path[0]
}

// Kind returns the kind of the leaf element.
func (k *Key) Kind() string {
	return k.Leaf().Kind
}

func (k *Key) Incomplete() bool {
	return !k.Leaf().Complete()
}

// Parent returns the key without its leaf element, or nil for root keys.
func (k *Key) Parent() *Key {
	if len(k.Path) <= 1 {
		return nil
	}
	return &Key{App: k.App, Namespace: k.Namespace, Path: k.Path[:len(k.Path)-1]}
}

// EntityGroup returns the single-element key of the root.
func (k *Key) EntityGroup() *Key {
	return &Key{App: k.App, Namespace: k.Namespace, Path: []PathElement{k.Root()}}
}

func (k *Key) Clone() *Key {
	if k == nil {
		return nil
	}
	c := *k
	c.Path = append([]PathElement(nil), k.Path...)
	return &c
}

func (k *Key) Equal(another *Key) bool {
	if k == nil || another == nil {
		return k == another
	}
	if k.App != another.App || k.Namespace != another.Namespace || len(k.Path) != len(another.Path) {
		return false
	}
	for i, el := range k.Path {
		if el != another.Path[i] {
			return false
		}
	}
	return true
}

// Compare orders keys by app, namespace, then path element by element,
// with a shorter path (an ancestor) before its descendants.
func (k *Key) Compare(another *Key) int {
	if c := strings.Compare(k.App, another.App); c != 0 {
		return c
	}
	if c := strings.Compare(k.Namespace, another.Namespace); c != 0 {
		return c
	}
	n := min(len(k.Path), len(another.Path))
	for i := 0; i < n; i++ {
		if c := k.Path[i].Compare(another.Path[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(k.Path), len(another.Path))
}

// HasAncestor reports whether anc's path is a prefix of k's path within
// the same app and namespace. A key is its own ancestor.
func (k *Key) HasAncestor(anc *Key) bool {
	if k.App != anc.App || k.Namespace != anc.Namespace || len(anc.Path) > len(k.Path) {
		return false
	}
	for i, el := range anc.Path {
		if k.Path[i] != el {
			return false
		}
	}
	return true
}

func (k *Key) validate(allowIncompleteLeaf bool) error {
	if k == nil {
		return badRequestf("missing key")
	}
	if len(k.Path) == 0 {
		return badRequestf("key %v has empty path", k)
	}
	last := len(k.Path) - 1
	for i, el := range k.Path {
		if el.Kind == "" {
			return badRequestf("key %v: element %d has no kind", k, i)
		}
		if el.ID != 0 && el.Name != "" {
			return badRequestf("key %v: element %d has both id and name", k, i)
		}
		if el.ID < 0 {
			return badRequestf("key %v: element %d has negative id", k, i)
		}
		if !el.Complete() && (i != last || !allowIncompleteLeaf) {
			return badRequestf("key %v: element %d is incomplete", k, i)
		}
	}
	return nil
}

func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	var buf strings.Builder
	buf.WriteString(k.App)
	if k.Namespace != "" {
		buf.WriteByte('!')
		buf.WriteString(k.Namespace)
	}
	buf.WriteByte(':')
	for _, el := range k.Path {
		buf.WriteByte('/')
		buf.WriteString(el.String())
	}
	return buf.String()
}

func (k *Key) GoString() string {
	return fmt.Sprintf("dsstub.Key(%s)", k.String())
}

// encode returns the storage identity of the key. Two keys encode to the
// same string iff they are Equal.
func (k *Key) encode() string {
	buf := make([]byte, 0, 16+8*len(k.Path))
	buf = appendVarstring(buf, k.App)
	buf = appendVarstring(buf, k.Namespace)
	buf = appendUvarint(buf, uint64(len(k.Path)))
	for _, el := range k.Path {
		buf = appendVarstring(buf, el.Kind)
		buf = appendUvarint(buf, uint64(el.ID))
		buf = appendVarstring(buf, el.Name)
	}
	return string(buf)
}
