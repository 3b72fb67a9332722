package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind discriminates the scalar type carried by a Value.
type Kind uint8

const (
	// KindNumber is a numeric parameter value, stored as float64.
	KindNumber Kind = iota
	// KindString is a textual parameter value.
	KindString
	// KindBool is a boolean parameter value.
	KindBool
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Value is an immutable scalar parameter value. All numeric inputs normalize
// to float64 at construction so that 1 and 1.0 denote the same grid point,
// while the string "1" stays a distinct value.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// NumberVal returns a numeric Value.
func NumberVal(v float64) Value { return Value{kind: KindNumber, num: v} }

// StringVal returns a textual Value.
func StringVal(v string) Value { return Value{kind: KindString, str: v} }

// BoolVal returns a boolean Value.
func BoolVal(v bool) Value { return Value{kind: KindBool, b: v} }

// FromAny coerces a Go scalar into a Value. Integers and floats of any width
// normalize to float64. Everything else fails with ErrInvalidParameter.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case Value:
		return t, nil
	case bool:
		return BoolVal(t), nil
	case string:
		return StringVal(t), nil
	case int:
		return NumberVal(float64(t)), nil
	case int8:
		return NumberVal(float64(t)), nil
	case int16:
		return NumberVal(float64(t)), nil
	case int32:
		return NumberVal(float64(t)), nil
	case int64:
		return NumberVal(float64(t)), nil
	case uint:
		return NumberVal(float64(t)), nil
	case uint8:
		return NumberVal(float64(t)), nil
	case uint16:
		return NumberVal(float64(t)), nil
	case uint32:
		return NumberVal(float64(t)), nil
	case uint64:
		return NumberVal(float64(t)), nil
	case float32:
		return NumberVal(float64(t)), nil
	case float64:
		return NumberVal(t), nil
	case nil:
		return Value{}, fmt.Errorf("%w: nil value", ErrInvalidParameter)
	default:
		return Value{}, fmt.Errorf("%w: unsupported value type %T", ErrInvalidParameter, v)
	}
}

// Kind returns the scalar kind.
func (v Value) Kind() Kind { return v.kind }

// Num returns the numeric payload. Valid only for KindNumber.
func (v Value) Num() float64 { return v.num }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.str }

// Bool returns the boolean payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.b }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	default:
		return v.num == o.num
	}
}

// Less defines a total order used for sorted axis values: values order by
// kind first (number, string, bool), then by payload.
func (v Value) Less(o Value) bool {
	if v.kind != o.kind {
		return v.kind < o.kind
	}
	switch v.kind {
	case KindString:
		return v.str < o.str
	case KindBool:
		return !v.b && o.b
	default:
		return v.num < o.num
	}
}

// String renders the value for display and canonical encoding. Numbers use
// the shortest representation that round-trips (1, 0.001, 1.85e+06).
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
}

// canon returns the kind tag byte and canonical text fed into key digests.
func (v Value) canon() (byte, string) {
	switch v.kind {
	case KindString:
		return 's', v.str
	case KindBool:
		return 'b', v.String()
	default:
		return 'n', v.String()
	}
}

// MarshalJSON encodes the value as its native JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.num)
	}
}

// UnmarshalJSON decodes a JSON scalar, preserving its kind.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParamSet maps parameter names to scalar values.
type ParamSet map[string]Value

// ParamSetFromAny coerces a raw map into a ParamSet, normalizing every value
// through FromAny. A failing value is reported with its parameter name.
func ParamSetFromAny(params map[string]any) (ParamSet, error) {
	ps := make(ParamSet, len(params))
	for name, raw := range params {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		ps[name] = v
	}
	return ps, nil
}

// Clone returns an independent copy of the set.
func (p ParamSet) Clone() ParamSet {
	out := make(ParamSet, len(p))
	for name, v := range p {
		out[name] = v
	}
	return out
}

// Names returns the parameter names in sorted order.
func (p ParamSet) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether two sets hold the same names and values.
func (p ParamSet) Equal(o ParamSet) bool {
	if len(p) != len(o) {
		return false
	}
	for name, v := range p {
		ov, ok := o[name]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
