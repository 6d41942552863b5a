package model

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Kind is the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a JSON-like tagged union used for node configuration.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	l    []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Bool wraps b.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps i.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps f.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps s.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List builds a list Value from items.
func List(items ...Value) Value { return Value{kind: KindList, l: items} }

// Map builds a map Value. A nil map gives an empty one.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}

	return Value{kind: KindMap, m: m}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return int64(v.f), true
		}
	}

	return 0, false
}

// AsFloat accepts both numeric variants.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}

	return 0, false
}

func (v Value) AsString() (string, bool)        { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)         { return v.l, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Interface converts v to plain Go values: nil, bool, int64, float64, string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.l))
		for i, item := range v.l {
			out[i] = item.Interface()
		}

		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}

		return out
	}

	return nil
}

// Equal reports whether v and o hold the same variant and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}

		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}

		return true
	}

	return false
}

func (v Value) String() string {
	raw, err := json.Marshal(v.Interface())
	if err != nil {
		return fmt.Sprintf("%v", v.Interface())
	}

	return string(raw)
}

type number interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

// FromAny converts a decoded JSON/YAML tree or plain Go value into a Value.
func FromAny(raw any) (Value, error) {
	switch val := raw.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(int64(val)), nil
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		if val > math.MaxInt64 {
			return Value{}, errors.Errorf("integer %d overflows int64", val)
		}

		return Int(int64(val)), nil
	case float32:
		return Float(float64(val)), nil
	case float64:
		return Float(val), nil
	case string:
		return String(val), nil
	case number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return Value{}, errors.Wrap(err, "invalid number")
		}

		return Float(f), nil
	case []string:
		out := make([]Value, len(val))
		for i, s := range val {
			out[i] = String(s)
		}

		return List(out...), nil
	case []float64:
		out := make([]Value, len(val))
		for i, f := range val {
			out[i] = Float(f)
		}

		return List(out...), nil
	case []int:
		out := make([]Value, len(val))
		for i, n := range val {
			out[i] = Int(int64(n))
		}

		return List(out...), nil
	case []any:
		out := make([]Value, len(val))
		for i, item := range val {
			conv, err := FromAny(item)
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			out[i] = conv
		}

		return List(out...), nil
	case map[string]any:
		out := make(map[string]Value, len(val))
		for k, item := range val {
			conv, err := FromAny(item)
			if err != nil {
				return Value{}, errors.Wrapf(err, "key %q", k)
			}
			out[k] = conv
		}

		return Map(out), nil
	case map[any]any:
		out := make(map[string]Value, len(val))
		for k, item := range val {
			conv, err := FromAny(item)
			if err != nil {
				return Value{}, errors.Wrapf(err, "key %v", k)
			}
			out[fmt.Sprint(k)] = conv
		}

		return Map(out), nil
	}

	return Value{}, errors.Errorf("unsupported config value of type %T", raw)
}

// MarshalJSON implements json.Marshaler. Floats always carry a fraction or exponent so they decode as KindFloat.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, errors.Errorf("unsupported float value %v", v.f)
		}

		return []byte(formatFloat(v.f)), nil
	case KindList:
		if v.l == nil {
			return []byte("[]"), nil
		}

		return json.Marshal(v.l)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}

		return json.Marshal(v.m)
	}

	return json.Marshal(v.Interface())
}

func formatFloat(f float64) string {
	out := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(out, ".eE") {
		out += ".0"
	}

	return out
}

// UnmarshalJSON implements json.Unmarshaler. Integral numbers decode as KindInt.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return errors.Wrap(err, "unable to decode config value")
	}

	conv, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = conv

	return nil
}

// MarshalYAML implements yaml.Marshaler. Floats are tagged so integral values decode as KindFloat.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case KindFloat:
		node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float"}

		switch {
		case math.IsNaN(v.f):
			node.Value = ".nan"
		case math.IsInf(v.f, 1):
			node.Value = ".inf"
		case math.IsInf(v.f, -1):
			node.Value = "-.inf"
		default:
			node.Value = formatFloat(v.f)
		}

		return node, nil
	case KindList:
		if v.l == nil {
			return []Value{}, nil
		}

		return v.l, nil
	case KindMap:
		if v.m == nil {
			return map[string]Value{}, nil
		}

		return v.m, nil
	}

	return v.Interface(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return errors.Wrap(err, "unable to decode config value")
	}

	conv, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = conv

	return nil
}

// Config holds node-type specific settings.
type Config map[string]Value

// UnmarshalJSON implements json.Unmarshaler. Keys set to null are kept.
func (c *Config) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return errors.Wrap(err, "unable to decode config")
	}

	out := make(Config, len(raw))
	for k, item := range raw {
		conv, err := FromAny(item)
		if err != nil {
			return errors.Wrapf(err, "key %q", k)
		}
		out[k] = conv
	}
	*c = out

	return nil
}

// Clone returns a shallow copy of c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}

	return out
}

// Keys returns the sorted config keys.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Has reports whether key is set to a non-null value.
func (c Config) Has(key string) bool {
	v, ok := c[key]

	return ok && !v.IsNull()
}

func (c Config) mismatch(key string, want Kind) error {
	return errors.Errorf("config %q: expected %s, got %s", key, want, c[key].Kind())
}

// Float returns the numeric value stored at key, def when unset, or an error when the shape is wrong.
func (c Config) Float(key string, def float64) (float64, error) {
	if !c.Has(key) {
		return def, nil
	}
	f, ok := c[key].AsFloat()
	if !ok {
		return 0, c.mismatch(key, KindFloat)
	}

	return f, nil
}

// Int reads an integer entry, def when absent.
func (c Config) Int(key string, def int64) (int64, error) {
	if !c.Has(key) {
		return def, nil
	}
	i, ok := c[key].AsInt()
	if !ok {
		return 0, c.mismatch(key, KindInt)
	}

	return i, nil
}

// Bool reads a boolean entry, def when absent.
func (c Config) Bool(key string, def bool) (bool, error) {
	if !c.Has(key) {
		return def, nil
	}
	b, ok := c[key].AsBool()
	if !ok {
		return false, c.mismatch(key, KindBool)
	}

	return b, nil
}

// Text reads a string entry, def when absent.
func (c Config) Text(key, def string) (string, error) {
	if !c.Has(key) {
		return def, nil
	}
	s, ok := c[key].AsString()
	if !ok {
		return "", c.mismatch(key, KindString)
	}

	return s, nil
}

// List returns nil when key is unset.
func (c Config) List(key string) ([]Value, error) {
	if !c.Has(key) {
		return nil, nil
	}
	l, ok := c[key].AsList()
	if !ok {
		return nil, c.mismatch(key, KindList)
	}

	return l, nil
}

// Map returns nil when key is unset.
func (c Config) Map(key string) (map[string]Value, error) {
	if !c.Has(key) {
		return nil, nil
	}
	m, ok := c[key].AsMap()
	if !ok {
		return nil, c.mismatch(key, KindMap)
	}

	return m, nil
}
