package domain

import (
	"encoding/json"
	"strconv"
)

// ParamKind tags the variant held by a ParamValue.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamNumber
	ParamBool
)

// ParamValue is a scalar action parameter: a string, a number or a boolean.
type ParamValue struct {
	Kind ParamKind
	Str  string
	Num  float64
	Bool bool
}

// StringParam returns a string-valued parameter.
func StringParam(s string) ParamValue { return ParamValue{Kind: ParamString, Str: s} }

// NumberParam returns a number-valued parameter.
func NumberParam(n float64) ParamValue { return ParamValue{Kind: ParamNumber, Num: n} }

// BoolParam returns a bool-valued parameter.
func BoolParam(b bool) ParamValue { return ParamValue{Kind: ParamBool, Bool: b} }

// ParamFromAny converts a decoded JSON value into a ParamValue. Objects and
// arrays are kept as their JSON text.
func ParamFromAny(v any) ParamValue {
	switch x := v.(type) {
	case nil:
		return StringParam("")
	case string:
		return StringParam(x)
	case bool:
		return BoolParam(x)
	case float64:
		return NumberParam(x)
	case int:
		return NumberParam(float64(x))
	case int64:
		return NumberParam(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return NumberParam(f)
		}
		return StringParam(x.String())
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return StringParam("")
		}
		return StringParam(string(b))
	}
}

// String renders the value the way it appears in URLs and query strings.
func (v ParamValue) String() string {
	switch v.Kind {
	case ParamNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ParamBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// Any returns the native Go value.
func (v ParamValue) Any() any {
	switch v.Kind {
	case ParamNumber:
		return v.Num
	case ParamBool:
		return v.Bool
	default:
		return v.Str
	}
}

// MarshalJSON encodes the value as a JSON scalar.
func (v ParamValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes any JSON value into a ParamValue.
func (v *ParamValue) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = ParamFromAny(raw)
	return nil
}

// Params is the parameter set of one action invocation.
type Params map[string]ParamValue

// Clone returns a shallow copy that can be mutated independently.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Values returns the parameters as native Go values.
func (p Params) Values() map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v.Any()
	}
	return out
}
