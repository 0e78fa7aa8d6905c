package batch

import "maps"

// Metadata is the free-form JSON object attached to a batch
type Metadata map[string]any

// Clone returns a deep copy of nested objects and lists
func (m Metadata) Clone() Metadata {
	if m == nil {
		return Metadata{}
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a copy of m with patch applied.
// Nested objects merge key by key, a nil value deletes the key, anything else replaces.
func (m Metadata) Merge(patch map[string]any) Metadata {
	out := m.Clone()
	mergeInto(out, patch)
	return out
}

func mergeInto(dst map[string]any, patch map[string]any) {
	for k, v := range patch {
		if v == nil {
			delete(dst, k)
			continue
		}
		pv, ok := asObject(v)
		if !ok {
			dst[k] = cloneValue(v)
			continue
		}
		cur, ok := asObject(dst[k])
		if !ok {
			dst[k] = cloneValue(pv)
			continue
		}
		next := maps.Clone(cur)
		mergeInto(next, pv)
		dst[k] = next
	}
}

// Append adds v to the list stored under key, creating it if needed
func (m Metadata) Append(key string, v any) Metadata {
	out := m.Clone()
	list, _ := out[key].([]any)
	out[key] = append(list, cloneValue(v))
	return out
}

func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case Metadata:
		return o, true
	}
	return nil, false
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case Metadata:
		return map[string]any(t.Clone())
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	}
	return v
}
