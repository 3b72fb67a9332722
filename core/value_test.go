package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFromAny_Coercions(t *testing.T) {
	cases := map[string]struct {
		in   any
		want Value
	}{
		"int":     {in: 3, want: NumberVal(3)},
		"int64":   {in: int64(-7), want: NumberVal(-7)},
		"uint32":  {in: uint32(12), want: NumberVal(12)},
		"float32": {in: float32(0.5), want: NumberVal(0.5)},
		"float64": {in: 1.25, want: NumberVal(1.25)},
		"string":  {in: "phase3", want: StringVal("phase3")},
		"bool":    {in: true, want: BoolVal(true)},
		"value":   {in: NumberVal(2), want: NumberVal(2)},
	}

	for name, tc := range cases {
		got, err := FromAny(tc.in)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !got.Equal(tc.want) {
			t.Fatalf("%s: got %v want %v", name, got, tc.want)
		}
	}
}

func TestFromAny_RejectsNonScalars(t *testing.T) {
	for _, in := range []any{nil, []int{1}, map[string]any{"a": 1}, struct{}{}} {
		if _, err := FromAny(in); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("expected ErrInvalidParameter for %T, got %v", in, err)
		}
	}
}

func TestValue_NumericNormalization(t *testing.T) {
	a, _ := FromAny(1)
	b, _ := FromAny(1.0)
	if !a.Equal(b) {
		t.Fatalf("1 and 1.0 should be the same value")
	}

	s, _ := FromAny("1")
	if s.Equal(a) {
		t.Fatalf("string \"1\" must stay distinct from number 1")
	}
}

func TestValue_JSONRoundTripPreservesKind(t *testing.T) {
	for _, v := range []Value{NumberVal(0.001), StringVal("true"), BoolVal(true)} {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !back.Equal(v) {
			t.Fatalf("round trip changed value: %v -> %v", v, back)
		}
		if back.Kind() != v.Kind() {
			t.Fatalf("round trip changed kind: %v -> %v", v.Kind(), back.Kind())
		}
	}
}

func TestValue_Ordering(t *testing.T) {
	if !NumberVal(1).Less(NumberVal(2)) {
		t.Error("1 < 2 expected")
	}
	if !StringVal("a").Less(StringVal("b")) {
		t.Error("a < b expected")
	}
	if !BoolVal(false).Less(BoolVal(true)) {
		t.Error("false < true expected")
	}
	// kinds rank number < string < bool
	if !NumberVal(9e9).Less(StringVal("")) {
		t.Error("numbers sort before strings")
	}
}

func TestParamSet_CloneAndEqual(t *testing.T) {
	ps, err := ParamSetFromAny(map[string]any{"x": 1, "label": "scan"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cp := ps.Clone()
	cp["x"] = NumberVal(99)

	if ps["x"].Num() != 1 {
		t.Fatalf("clone mutation leaked into original: %+v", ps)
	}
	if ps.Equal(cp) {
		t.Fatalf("sets with different values compared equal")
	}
	if !ps.Equal(ps.Clone()) {
		t.Fatalf("identical sets compared unequal")
	}
}
