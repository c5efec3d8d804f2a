package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// AttrMap is the dynamic attribute bag carried by spec objects ("values")
// and spec relations ("properties"). Values are restricted to scalar
// strings, integers, floats, and booleans.
//
// The persisted form is a JSON array of [key, tag, value] triples sorted by
// key, with a one-letter type tag per value. Tagging keeps the int/float
// distinction that a plain JSON object would lose, and the sorted triples
// make the encoding deterministic: encoding the same map twice yields
// byte-identical text.
type AttrMap map[string]any

// Value type tags used in the encoded form.
const (
	tagString = "s"
	tagInt    = "i"
	tagFloat  = "f"
	tagBool   = "b"
)

// Encode serializes the map into its deterministic text form. Integer
// values of any width are normalized to int64; float32 is widened to
// float64. A value outside the supported scalar types is an error.
func (m AttrMap) Encode() (string, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	triples := make([][3]string, 0, len(m))
	for _, k := range keys {
		tag, text, err := EncodeScalar(m[k])
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", k, err)
		}
		triples = append(triples, [3]string{k, tag, text})
	}

	data, err := json.Marshal(triples)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeScalar returns the type tag and text form of a single attribute
// value. Shared with the interchange codecs so every surface uses the same
// tagging.
func EncodeScalar(v any) (tag, text string, err error) {
	switch val := v.(type) {
	case string:
		return tagString, val, nil
	case int:
		return tagInt, strconv.FormatInt(int64(val), 10), nil
	case int32:
		return tagInt, strconv.FormatInt(int64(val), 10), nil
	case int64:
		return tagInt, strconv.FormatInt(val, 10), nil
	case float32:
		return tagFloat, strconv.FormatFloat(float64(val), 'g', -1, 64), nil
	case float64:
		return tagFloat, strconv.FormatFloat(val, 'g', -1, 64), nil
	case bool:
		return tagBool, strconv.FormatBool(val), nil
	default:
		return "", "", fmt.Errorf("unsupported value type %T", v)
	}
}

// DecodeAttrMap parses text produced by Encode. Integers come back as
// int64 and floats as float64 regardless of the width they were encoded
// from, so decode(encode(m)) == m holds for maps built from the
// normalized types.
func DecodeAttrMap(text string) (AttrMap, error) {
	var triples [][]string
	if err := json.Unmarshal([]byte(text), &triples); err != nil {
		return nil, fmt.Errorf("parse attribute text: %w", err)
	}

	m := make(AttrMap, len(triples))
	for i, t := range triples {
		if len(t) != 3 {
			return nil, fmt.Errorf("entry %d: expected [key, tag, value], got %d elements", i, len(t))
		}
		key, tag, text := t[0], t[1], t[2]
		if _, ok := m[key]; ok {
			return nil, fmt.Errorf("entry %d: duplicate attribute key %q", i, key)
		}
		val, err := DecodeScalar(tag, text)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", key, err)
		}
		m[key] = val
	}
	return m, nil
}

// DecodeScalar parses a single tagged value back into its Go type.
func DecodeScalar(tag, text string) (any, error) {
	switch tag {
	case tagString:
		return text, nil
	case tagInt:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer %q: %w", text, err)
		}
		return n, nil
	case tagFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float %q: %w", text, err)
		}
		return f, nil
	case tagBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("bad bool %q: %w", text, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown type tag %q", tag)
	}
}

// MarshalJSON emits the deterministic triple form so that JSON exports
// survive round-trips without losing value types.
func (m AttrMap) MarshalJSON() ([]byte, error) {
	text, err := m.Encode()
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// UnmarshalJSON parses the triple form.
func (m *AttrMap) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeAttrMap(string(data))
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

// Clone returns a shallow copy. Values are scalars, so a shallow copy is a
// deep copy.
func (m AttrMap) Clone() AttrMap {
	if m == nil {
		return nil
	}
	out := make(AttrMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
