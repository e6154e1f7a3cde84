package core

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/maps"
)

// Theme is free-form design data shared by rules and variants. Nested
// objects are map[string]any once the theme has been through MergeTheme.
type Theme map[string]any

// Get looks up a dotted path such as "colors.red.500".
func (t Theme) Get(path string) any {
	if len(t) == 0 || path == "" {
		return nil
	}
	return maps.Search(map[string]any(t), strings.Split(path, "."))
}

// String looks up a dotted path and formats scalar values as strings.
func (t Theme) String(path string) (string, bool) {
	switch v := t.Get(path).(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case map[string]any, []any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}

// Map looks up a dotted path that holds an object.
func (t Theme) Map(path string) map[string]any {
	m, _ := asMap(t.Get(path))
	return m
}

// Clone returns a deep copy.
func (t Theme) Clone() Theme {
	if t == nil {
		return Theme{}
	}
	return Theme(maps.Copy(map[string]any(t)))
}

// MergeTheme deep-merges patch over base and returns a new theme; neither
// input is modified. Within patch, a nil value deletes the key and an empty
// object replaces the previous value instead of merging into it. Arrays and
// scalars replace.
func MergeTheme(base, patch Theme) Theme {
	out, _ := normalize(map[string]any(base)).(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return Theme(mergeMaps(out, map[string]any(patch)))
}

func mergeMaps(out, patch map[string]any) map[string]any {
	for key, pv := range patch {
		if pv == nil {
			delete(out, key)
			continue
		}
		pm, isMap := asMap(pv)
		if !isMap {
			out[key] = normalize(pv)
			continue
		}
		if len(pm) == 0 {
			out[key] = map[string]any{}
			continue
		}
		if bm, ok := out[key].(map[string]any); ok {
			out[key] = mergeMaps(bm, pm)
			continue
		}
		out[key] = normalize(pm)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Theme:
		return map[string]any(m), true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// normalize deep-copies maps and slices, turning every nested object into a
// plain map[string]any so path lookups can walk it.
func normalize(v any) any {
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, mv := range m {
			out[k] = normalize(mv)
		}
		return out
	}
	switch s := v.(type) {
	case []any:
		out := make([]any, len(s))
		for i, sv := range s {
			out[i] = normalize(sv)
		}
		return out
	case []string:
		out := make([]any, len(s))
		for i, sv := range s {
			out[i] = sv
		}
		return out
	}
	return v
}
