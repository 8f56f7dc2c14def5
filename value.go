package dsstub

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType is the tag of a property value.
type ValueType uint8

const (
	TypeNull ValueType = iota
	TypeInt64
	TypeBool
	TypeString
	TypeBytes
	TypeDouble
	TypePoint
	TypeUser
	TypeReference

	// Raw types are stored but never indexed.
	TypeBlob
	TypeText
)

var typeNames = [...]string{
	TypeNull:      "null",
	TypeInt64:     "int64",
	TypeBool:      "bool",
	TypeString:    "string",
	TypeBytes:     "bytes",
	TypeDouble:    "double",
	TypePoint:     "point",
	TypeUser:      "user",
	TypeReference: "reference",
	TypeBlob:      "blob",
	TypeText:      "text",
}

func (t ValueType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "ValueType(" + strconv.Itoa(int(t)) + ")"
}

// Raw reports whether values of this type are excluded from filters and orders.
func (t ValueType) Raw() bool {
	return t == TypeBlob || t == TypeText
}

// rank is the cross-type sort order. Strings and short byte strings share
// a rank and compare bytewise against each other.
func (t ValueType) rank() int {
	switch t {
	case TypeNull:
		return 0
	case TypeInt64:
		return 1
	case TypeBool:
		return 2
	case TypeString, TypeBytes:
		return 3
	case TypeDouble:
		return 4
	case TypePoint:
		return 5
	case TypeUser:
		return 6
	case TypeReference:
		return 7
	default:
		return 8
	}
}

type Point struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

type User struct {
	GaiaID     int64  `msgpack:"g"`
	Email      string `msgpack:"e"`
	AuthDomain string `msgpack:"d"`
	Nickname   string `msgpack:"n,omitempty"`
}

// Value is a tagged variant over the property value types. Only the field
// matching Type is meaningful. Values are treated as immutable once stored.
type Value struct {
	Type   ValueType `msgpack:"t"`
	Int    int64     `msgpack:"i,omitempty"`
	Bool   bool      `msgpack:"b,omitempty"`
	Str    string    `msgpack:"s,omitempty"`
	Bytes  []byte    `msgpack:"y,omitempty"`
	Double float64   `msgpack:"d,omitempty"`
	Point  Point     `msgpack:"pt,omitempty"`
	User   *User     `msgpack:"u,omitempty"`
	Ref    *Key      `msgpack:"r,omitempty"`
}

func Null() Value                 { return Value{Type: TypeNull} }
func Int(v int64) Value           { return Value{Type: TypeInt64, Int: v} }
func Bool(v bool) Value           { return Value{Type: TypeBool, Bool: v} }
func String(v string) Value       { return Value{Type: TypeString, Str: v} }
func Bytes(v []byte) Value        { return Value{Type: TypeBytes, Bytes: v} }
func Double(v float64) Value      { return Value{Type: TypeDouble, Double: v} }
func GeoPoint(x, y float64) Value { return Value{Type: TypePoint, Point: Point{x, y}} }
func Blob(v []byte) Value         { return Value{Type: TypeBlob, Bytes: v} }
func Text(v string) Value         { return Value{Type: TypeText, Str: v} }

func UserValue(u User) Value {
	return Value{Type: TypeUser, User: &u}
}

func Ref(k *Key) Value {
	return Value{Type: TypeReference, Ref: k}
}

func (v Value) Indexable() bool {
	return !v.Type.Raw()
}

// Compare is a total order over values. Values of different types compare
// by type rank; NaN sorts below every other double.
func Compare(a, b Value) int {
	ra, rb := a.Type.rank(), b.Type.rank()
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch a.Type {
	case TypeNull:
		return 0
	case TypeInt64:
		return cmp.Compare(a.Int, b.Int)
	case TypeBool:
		return compareBool(a.Bool, b.Bool)
	case TypeString, TypeBytes, TypeText, TypeBlob:
		return bytes.Compare(a.byteString(), b.byteString())
	case TypeDouble:
		return cmp.Compare(a.Double, b.Double)
	case TypePoint:
		if c := cmp.Compare(a.Point.X, b.Point.X); c != 0 {
			return c
		}
		return cmp.Compare(a.Point.Y, b.Point.Y)
	case TypeUser:
		return compareUsers(a.User, b.User)
	case TypeReference:
		return compareKeys(a.Ref, b.Ref)
	default:
		panic(fmt.Errorf("unknown value type %v", a.Type))
	}
}

func (v Value) byteString() []byte {
	if v.Type == TypeString || v.Type == TypeText {
		return []byte(v.Str)
	}
	return v.Bytes
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func compareUsers(a, b *User) int {
	if a == nil || b == nil {
		return compareBool(a != nil, b != nil)
	}
	if c := strings.Compare(a.Email, b.Email); c != 0 {
		return c
	}
	if c := strings.Compare(a.AuthDomain, b.AuthDomain); c != 0 {
		return c
	}
	if c := strings.Compare(a.Nickname, b.Nickname); c != 0 {
		return c
	}
	return cmp.Compare(a.GaiaID, b.GaiaID)
}

func compareKeys(a, b *Key) int {
	if a == nil || b == nil {
		return compareBool(a != nil, b != nil)
	}
	return a.Compare(b)
}

// Clone copies the byte slice, user and reference payloads.
func (v Value) Clone() Value {
	if v.Bytes != nil {
		v.Bytes = bytes.Clone(v.Bytes)
	}
	if v.User != nil {
		u := *v.User
		v.User = &u
	}
	v.Ref = v.Ref.Clone()
	return v
}

func (v Value) Equal(another Value) bool {
	return v.Type == another.Type && Compare(v, another) == 0
}

// schemaSentinel returns the canonical placeholder reported by GetSchema
// for a property of this value's type.
func (v Value) schemaSentinel() Value {
	switch v.Type {
	case TypeInt64:
		return Int(math.MinInt64)
	case TypeBool:
		return Bool(false)
	case TypeDouble:
		return Double(math.Inf(-1))
	case TypePoint:
		return GeoPoint(0, 0)
	case TypeUser:
		return UserValue(User{GaiaID: math.MinInt64})
	default:
		return Value{Type: v.Type}
	}
}

func (v Value) String() string {
	switch v.Type {
	case TypeNull:
		return "null"
	case TypeInt64:
		return strconv.FormatInt(v.Int, 10)
	case TypeBool:
		return strconv.FormatBool(v.Bool)
	case TypeString:
		return strconv.Quote(v.Str)
	case TypeText:
		return "text(" + strconv.Itoa(len(v.Str)) + ")"
	case TypeBytes:
		return fmt.Sprintf("bytes(%x)", v.Bytes)
	case TypeBlob:
		return "blob(" + strconv.Itoa(len(v.Bytes)) + ")"
	case TypeDouble:
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	case TypePoint:
		return fmt.Sprintf("point(%g,%g)", v.Point.X, v.Point.Y)
	case TypeUser:
		if v.User == nil {
			return "user()"
		}
		return fmt.Sprintf("user(%s)", v.User.Email)
	case TypeReference:
		return "ref(" + v.Ref.String() + ")"
	default:
		return v.Type.String()
	}
}
