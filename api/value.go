package api

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ResolveKeyPath walks a dotted key path through nested mappings and
// sequences. Sequence segments must be numeric indexes.
func ResolveKeyPath(value interface{}, keyPath string) (interface{}, bool) {
	if keyPath == "" {
		return nil, false
	}
	current := value
	for _, part := range strings.Split(keyPath, ".") {
		switch t := current.(type) {
		case map[string]interface{}:
			v, ok := t[part]
			if !ok {
				return nil, false
			}
			current = v
		case DocumentProperties:
			v, ok := t[part]
			if !ok {
				return nil, false
			}
			current = v
		case *Document:
			v, ok := t.ValueForKeyPath(part)
			if !ok {
				return nil, false
			}
			current = v
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return nil, false
			}
			current = t[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// Number converts any numeric value to float64.
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Equal compares two values of the document variant tree. Numbers are equal
// when their float64 values are.
func Equal(a, b interface{}) bool {
	if na, ok := Number(a); ok {
		nb, ok := Number(b)
		return ok && na == nb
	}
	switch ta := a.(type) {
	case nil:
		return b == nil
	case string:
		tb, ok := b.(string)
		return ok && ta == tb
	case bool:
		tb, ok := b.(bool)
		return ok && ta == tb
	case []interface{}:
		tb, ok := b.([]interface{})
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		tb, ok := b.(map[string]interface{})
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	}
	return false
}
