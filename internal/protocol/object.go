package protocol

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// Object is a loosely-typed JSON object. Every accessor takes a list of
// candidate keys and uses the first one present with a usable value.
type Object map[string]interface{}

func (o Object) Get(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := o[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (o Object) String(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := asString(o[k]); ok {
			return s, true
		}
	}
	return "", false
}

func (o Object) Int(keys ...string) (int, bool) {
	for _, k := range keys {
		if n, ok := asInt(o[k]); ok {
			return n, true
		}
	}
	return 0, false
}

func (o Object) Bool(keys ...string) (bool, bool) {
	for _, k := range keys {
		if b, ok := o[k].(bool); ok {
			return b, true
		}
	}
	return false, false
}

func (o Object) Object(keys ...string) (Object, bool) {
	for _, k := range keys {
		if m, ok := asObject(o[k]); ok {
			return m, true
		}
	}
	return nil, false
}

// List returns the first array found under keys. Non-object elements are
// dropped.
func (o Object) List(keys ...string) ([]Object, bool) {
	for _, k := range keys {
		arr, ok := o[k].([]interface{})
		if !ok {
			continue
		}
		out := make([]Object, 0, len(arr))
		for _, el := range arr {
			if m, ok := asObject(el); ok {
				out = append(out, m)
			}
		}
		return out, true
	}
	return nil, false
}

// Values returns the first raw array found under keys.
func (o Object) Values(keys ...string) ([]interface{}, bool) {
	for _, k := range keys {
		if arr, ok := o[k].([]interface{}); ok {
			return arr, true
		}
	}
	return nil, false
}

func asObject(v interface{}) (Object, bool) {
	switch m := v.(type) {
	case Object:
		return m, true
	case map[string]interface{}:
		return Object(m), true
	}
	return nil, false
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	}
	return "", false
}

// saturate rounds f to an int, pinning values outside the int range to its
// bounds. exact carries the value when f came from an int64.
func saturate(f float64, exact int64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	case exact != 0:
		return int(exact), true
	}
	return int(math.Round(f)), true
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return saturate(float64(i), i)
		}
		if f, err := n.Float64(); err == nil || errors.Is(err, strconv.ErrRange) {
			return saturate(f, 0)
		}
	case float64:
		return saturate(n, 0)
	case int:
		return n, true
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i, true
		}
	}
	return 0, false
}
