// persistence/doc.go
package persistence

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// encodeDoc normalizes an arbitrary document into the map form every backend
// stores. Going through JSON keeps struct documents and map documents
// indistinguishable on disk.
func encodeDoc(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return m, nil
}

func decodeDoc(m map[string]any, dest any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func cloneDoc(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, err := encodeDoc(m)
	if err != nil {
		// A stored document always round-trips; this is unreachable for
		// anything that came through encodeDoc.
		panic(err)
	}
	return out
}

// normalizeValue converts a value to its JSON shape so that equality checks
// against stored documents behave the same for structs and maps.
func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeUpdate applies a partial update onto base, resolving ArrayUnion and
// Increment sentinels. base may be nil when the document does not exist yet.
func mergeUpdate(base map[string]any, fields map[string]any) (map[string]any, error) {
	out := cloneDoc(base)
	if out == nil {
		out = make(map[string]any)
	}
	for field, value := range fields {
		switch v := value.(type) {
		case arrayUnion:
			existing, _ := out[field].([]any)
			for _, elem := range v.elems {
				norm, err := normalizeValue(elem)
				if err != nil {
					return nil, fmt.Errorf("array union on %q: %w", field, err)
				}
				if !containsValue(existing, norm) {
					existing = append(existing, norm)
				}
			}
			out[field] = existing
		case increment:
			current, _ := out[field].(float64)
			out[field] = current + float64(v.delta)
		default:
			norm, err := normalizeValue(value)
			if err != nil {
				return nil, fmt.Errorf("update field %q: %w", field, err)
			}
			out[field] = norm
		}
	}
	return out, nil
}

func containsValue(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}
