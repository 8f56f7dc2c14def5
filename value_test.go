package dsstub

import (
	"math"
	"testing"
)

func TestCompare_crossTypeRanks(t *testing.T) {
	ordered := []Value{
		Null(),
		Int(math.MinInt64),
		Int(5),
		Bool(false),
		Bool(true),
		String(""),
		Bytes([]byte("a")),
		String("b"),
		Double(math.NaN()),
		Double(math.Inf(-1)),
		Double(0),
		GeoPoint(0, 1),
		GeoPoint(1, 0),
		UserValue(User{Email: "a@example.com"}),
		UserValue(User{Email: "b@example.com"}),
		Ref(NewKey("app", "A", "x", 0, nil)),
		Ref(NewKey("app", "B", "", 1, nil)),
		Text("raw"),
	}
	for i := range ordered {
		for j := range ordered {
			got := Compare(ordered[i], ordered[j])
			var want int
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			if sign(got) != want {
				t.Errorf("Compare(%v, %v) = %d, wanted %d", ordered[i], ordered[j], got, want)
			}
		}
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}

func TestValue_Equal(t *testing.T) {
	if String("a").Equal(Bytes([]byte("a"))) {
		t.Error("string and bytes with the same content are Equal")
	}
	if !Ref(NewKey("app", "A", "x", 0, nil)).Equal(Ref(NewKey("app", "A", "x", 0, nil))) {
		t.Error("equal references are not Equal")
	}
}

func TestValue_Indexable(t *testing.T) {
	for _, v := range []Value{Blob([]byte{1}), Text("x")} {
		if v.Indexable() {
			t.Errorf("%v is indexable", v)
		}
	}
	for _, v := range []Value{Null(), Int(1), String("x"), Bytes([]byte{1}), Ref(NewKey("app", "A", "x", 0, nil))} {
		if !v.Indexable() {
			t.Errorf("%v is not indexable", v)
		}
	}
}

func TestValue_schemaSentinel(t *testing.T) {
	tests := []struct {
		v    Value
		want Value
	}{
		{Int(42), Int(math.MinInt64)},
		{Bool(true), Bool(false)},
		{String("hello"), String("")},
		{Double(3), Double(math.Inf(-1))},
		{GeoPoint(1, 2), GeoPoint(0, 0)},
		{UserValue(User{GaiaID: 7, Email: "x"}), UserValue(User{GaiaID: math.MinInt64})},
		{Ref(NewKey("app", "A", "x", 0, nil)), Value{Type: TypeReference}},
	}
	for _, tt := range tests {
		if got := tt.v.schemaSentinel(); !got.Equal(tt.want) {
			t.Errorf("schemaSentinel(%v) = %v, wanted %v", tt.v, got, tt.want)
		}
	}
}
