package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParameterType names a route parameter kind.
type ParameterType string

const (
	BoolParam          ParameterType = "Bool"
	U8Param            ParameterType = "U8"
	U16Param           ParameterType = "U16"
	U32Param           ParameterType = "U32"
	U64Param           ParameterType = "U64"
	F32Param           ParameterType = "F32"
	F64Param           ParameterType = "F64"
	RangeU32Param      ParameterType = "RangeU32"
	RangeU64Param      ParameterType = "RangeU64"
	RangeF64Param      ParameterType = "RangeF64"
	CharsSequenceParam ParameterType = "CharsSequence"
)

// ParameterKind is the schema of one route input parameter: its kind plus
// default and, where applicable, min/max/step limits.
//
// On the wire it is an externally tagged union, for example:
//
//	{"RangeU64": {"min": 0, "max": 20, "step": 1, "default": 5}}
type ParameterKind struct {
	Type ParameterType

	// BoolDefault holds the default for Bool parameters.
	BoolDefault bool
	// UintDefault and its limits hold U8..U64 and unsigned range data.
	UintDefault uint64
	UintMin     uint64
	UintMax     uint64
	UintStep    uint64
	// FloatDefault and its limits hold F32/F64 and float range data.
	FloatDefault float64
	FloatMin     float64
	FloatMax     float64
	FloatStep    float64
	// StringDefault holds the default for CharsSequence parameters.
	StringDefault string
}

// AsType returns the runtime value type the parameter accepts, used when
// validating caller-supplied values.
func (p ParameterKind) AsType() string {
	switch p.Type {
	case BoolParam:
		return "bool"
	case U8Param:
		return "u8"
	case U16Param:
		return "u16"
	case U32Param, RangeU32Param:
		return "u32"
	case U64Param, RangeU64Param:
		return "u64"
	case F32Param:
		return "f32"
	case F64Param, RangeF64Param:
		return "f64"
	case CharsSequenceParam:
		return "String"
	default:
		return "unknown"
	}
}

// DefaultString renders the parameter default the way it travels in a path
// segment or parameter map.
func (p ParameterKind) DefaultString() string {
	switch p.Type {
	case BoolParam:
		return strconv.FormatBool(p.BoolDefault)
	case U8Param, U16Param, U32Param, U64Param, RangeU32Param, RangeU64Param:
		return strconv.FormatUint(p.UintDefault, 10)
	case F32Param, F64Param, RangeF64Param:
		return strconv.FormatFloat(p.FloatDefault, 'g', -1, 64)
	case CharsSequenceParam:
		return p.StringDefault
	default:
		return ""
	}
}

// Bool creates a Bool parameter kind.
func Bool(def bool) ParameterKind {
	return ParameterKind{Type: BoolParam, BoolDefault: def}
}

// U64 creates a U64 parameter kind without limits.
func U64(def uint64) ParameterKind {
	return ParameterKind{Type: U64Param, UintDefault: def}
}

// F64 creates an F64 parameter kind without limits.
func F64(def float64) ParameterKind {
	return ParameterKind{Type: F64Param, FloatDefault: def}
}

// RangeU64 creates an unsigned range parameter kind.
func RangeU64(min, max, step, def uint64) ParameterKind {
	return ParameterKind{Type: RangeU64Param, UintDefault: def, UintMin: min, UintMax: max, UintStep: step}
}

// RangeF64 creates a float range parameter kind.
func RangeF64(min, max, step, def float64) ParameterKind {
	return ParameterKind{Type: RangeF64Param, FloatDefault: def, FloatMin: min, FloatMax: max, FloatStep: step}
}

// CharsSequence creates a character sequence parameter kind.
func CharsSequence(def string) ParameterKind {
	return ParameterKind{Type: CharsSequenceParam, StringDefault: def}
}

type boolPayload struct {
	Default bool `json:"default"`
}

type uintPayload struct {
	Default uint64 `json:"default"`
	Min     uint64 `json:"min,omitempty"`
	Max     uint64 `json:"max,omitempty"`
	Step    uint64 `json:"step,omitempty"`
}

type floatPayload struct {
	Default float64 `json:"default"`
	Min     float64 `json:"min,omitempty"`
	Max     float64 `json:"max,omitempty"`
	Step    float64 `json:"step,omitempty"`
}

type stringPayload struct {
	Default string `json:"default"`
}

// MarshalJSON encodes the externally tagged union.
func (p ParameterKind) MarshalJSON() ([]byte, error) {
	var payload any
	switch p.Type {
	case BoolParam:
		payload = boolPayload{Default: p.BoolDefault}
	case U8Param, U16Param, U32Param, U64Param, RangeU32Param, RangeU64Param:
		payload = uintPayload{Default: p.UintDefault, Min: p.UintMin, Max: p.UintMax, Step: p.UintStep}
	case F32Param, F64Param, RangeF64Param:
		payload = floatPayload{Default: p.FloatDefault, Min: p.FloatMin, Max: p.FloatMax, Step: p.FloatStep}
	case CharsSequenceParam:
		payload = stringPayload{Default: p.StringDefault}
	default:
		return nil, fmt.Errorf("unknown parameter type %q", p.Type)
	}
	return json.Marshal(map[ParameterType]any{p.Type: payload})
}

// UnmarshalJSON decodes the externally tagged union.
func (p *ParameterKind) UnmarshalJSON(data []byte) error {
	var tagged map[ParameterType]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("parameter kind must have exactly one tag, got %d", len(tagged))
	}
	for typ, raw := range tagged {
		p.Type = typ
		switch typ {
		case BoolParam:
			var v boolPayload
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			p.BoolDefault = v.Default
		case U8Param, U16Param, U32Param, U64Param, RangeU32Param, RangeU64Param:
			var v uintPayload
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			p.UintDefault, p.UintMin, p.UintMax, p.UintStep = v.Default, v.Min, v.Max, v.Step
		case F32Param, F64Param, RangeF64Param:
			var v floatPayload
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			p.FloatDefault, p.FloatMin, p.FloatMax, p.FloatStep = v.Default, v.Min, v.Max, v.Step
		case CharsSequenceParam:
			var v stringPayload
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			p.StringDefault = v.Default
		default:
			return fmt.Errorf("unknown parameter type %q", typ)
		}
	}
	return nil
}

// ParametersData maps parameter names to their kinds, preserving the order
// declared by the device. Order matters: GET requests against OS-class
// devices append one path segment per schema entry, in schema order.
type ParametersData struct {
	names []string
	kinds map[string]ParameterKind
}

// NewParametersData creates an empty parameter schema.
func NewParametersData() *ParametersData {
	return &ParametersData{kinds: make(map[string]ParameterKind)}
}

// Add inserts a parameter, replacing a previous entry with the same name.
func (d *ParametersData) Add(name string, kind ParameterKind) *ParametersData {
	if _, ok := d.kinds[name]; !ok {
		d.names = append(d.names, name)
	}
	d.kinds[name] = kind
	return d
}

// Get returns the kind for a parameter name.
func (d *ParametersData) Get(name string) (ParameterKind, bool) {
	if d == nil {
		return ParameterKind{}, false
	}
	k, ok := d.kinds[name]
	return k, ok
}

// Names returns the parameter names in declaration order.
func (d *ParametersData) Names() []string {
	if d == nil {
		return nil
	}
	return d.names
}

// Len returns the number of parameters.
func (d *ParametersData) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// IsEmpty reports whether the schema declares no parameters.
func (d *ParametersData) IsEmpty() bool {
	return d.Len() == 0
}

// MarshalJSON encodes the schema as a JSON object in declaration order.
func (d *ParametersData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(d.kinds[name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (d *ParametersData) UnmarshalJSON(data []byte) error {
	d.names = nil
	d.kinds = make(map[string]ParameterKind)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("parameters must be a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var kind ParameterKind
		if err := dec.Decode(&kind); err != nil {
			return err
		}
		d.Add(name, kind)
	}
	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Value is a caller-supplied parameter value with its runtime type.
type Value struct {
	typ string
	b   bool
	u   uint64
	f   float64
	s   string
}

// TypeName returns the runtime type of the value ("bool", "u64", ...).
func (v Value) TypeName() string {
	return v.typ
}

// MatchesKind reports whether the value's runtime type matches the schema
// kind, including the numeric sub-kind.
func (v Value) MatchesKind(kind ParameterKind) bool {
	return v.typ == kind.AsType()
}

// String renders the value the way it travels in a path segment or
// parameter map.
func (v Value) String() string {
	switch v.typ {
	case "bool":
		return strconv.FormatBool(v.b)
	case "u8", "u16", "u32", "u64":
		return strconv.FormatUint(v.u, 10)
	case "f32", "f64":
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case "String":
		return v.s
	default:
		return ""
	}
}

// Values collects caller-supplied parameter values by name.
type Values struct {
	names []string
	vals  map[string]Value
}

// NewValues creates an empty value collection.
func NewValues() *Values {
	return &Values{vals: make(map[string]Value)}
}

func (v *Values) add(name string, val Value) *Values {
	if _, ok := v.vals[name]; !ok {
		v.names = append(v.names, name)
	}
	v.vals[name] = val
	return v
}

// Bool adds a bool value.
func (v *Values) Bool(name string, value bool) *Values {
	return v.add(name, Value{typ: "bool", b: value})
}

// U8 adds an u8 value.
func (v *Values) U8(name string, value uint8) *Values {
	return v.add(name, Value{typ: "u8", u: uint64(value)})
}

// U16 adds an u16 value.
func (v *Values) U16(name string, value uint16) *Values {
	return v.add(name, Value{typ: "u16", u: uint64(value)})
}

// U32 adds an u32 value.
func (v *Values) U32(name string, value uint32) *Values {
	return v.add(name, Value{typ: "u32", u: uint64(value)})
}

// U64 adds an u64 value.
func (v *Values) U64(name string, value uint64) *Values {
	return v.add(name, Value{typ: "u64", u: value})
}

// F32 adds a f32 value.
func (v *Values) F32(name string, value float32) *Values {
	return v.add(name, Value{typ: "f32", f: float64(value)})
}

// F64 adds a f64 value.
func (v *Values) F64(name string, value float64) *Values {
	return v.add(name, Value{typ: "f64", f: value})
}

// Str adds a character sequence value.
func (v *Values) Str(name string, value string) *Values {
	return v.add(name, Value{typ: "String", s: value})
}

// Get returns the value for a name.
func (v *Values) Get(name string) (Value, bool) {
	if v == nil {
		return Value{}, false
	}
	val, ok := v.vals[name]
	return val, ok
}

// Names returns the value names in insertion order.
func (v *Values) Names() []string {
	if v == nil {
		return nil
	}
	return v.names
}

// Len returns the number of values.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.names)
}
