package vector

import (
	"fmt"
	"sort"
)

// IsScalar reports whether v can be stored as a metadata value.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool:
		return true
	}
	_, ok := AsFloat(v)
	return ok
}

// Flatten turns nested maps into dotted keys under prefix, so
// {"age": 30} with prefix "structured_data" becomes
// {"structured_data.age": 30}. Nil values are dropped.
func Flatten(prefix string, data map[string]any) Metadata {
	out := Metadata{}
	flattenInto(out, prefix, data)
	return out
}

func flattenInto(out Metadata, prefix string, data map[string]any) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case nil:
		case map[string]any:
			flattenInto(out, key, val)
		case Metadata:
			flattenInto(out, key, val)
		default:
			out[key] = val
		}
	}
}

// Validate rejects empty keys and non-scalar values.
func (m Metadata) Validate() error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("metadata key must not be empty")
		}
		if !IsScalar(m[k]) {
			return fmt.Errorf("metadata %q must be a string, number or boolean", k)
		}
	}
	return nil
}

// Merge returns a copy of m overlaid with other.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
