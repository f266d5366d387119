package domain

import "strings"

// AnswerSet holds the wizard's in-progress answers as a nested map keyed by
// dot-delimited field paths (e.g. "businessDetails.country"). A missing key
// means "unanswered", which is distinct from an explicit empty string.
type AnswerSet map[string]any

// NewAnswerSet creates an empty answer set.
func NewAnswerSet() AnswerSet {
	return make(AnswerSet)
}

// Get resolves a dot-delimited path. The second return value reports whether
// the path is present at all.
func (a AnswerSet) Get(path string) (any, bool) {
	if a == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current any = map[string]any(a)

	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Set writes a value at a dot-delimited path, creating intermediate objects
// as needed. A scalar in the middle of the path is replaced by an object.
func (a AnswerSet) Set(path string, value any) {
	if a == nil || path == "" {
		return
	}

	parts := strings.Split(path, ".")
	m := map[string]any(a)

	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// String returns the value at path as a string. Non-string values and absent
// paths return "".
func (a AnswerSet) String(path string) string {
	v, ok := a.Get(path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool reports whether the value at path is truthy: a true bool, or one of
// the strings "true", "yes", "1" (case-insensitive).
func (a AnswerSet) Bool(path string) bool {
	v, ok := a.Get(path)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		clean := strings.ToLower(strings.TrimSpace(t))
		return clean == "true" || clean == "yes" || clean == "1"
	}
	return false
}

// Clone returns a deep copy. Mutating the copy never affects the original.
func (a AnswerSet) Clone() AnswerSet {
	return AnswerSet(deepCopyMap(a))
}

// Merge deep-merges other into a. Nested objects are merged key by key;
// scalars and arrays from other win.
func (a AnswerSet) Merge(other map[string]any) {
	deepMerge(a, other)
}

func deepCopyMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if m, ok := v.(map[string]any); ok {
			dst[k] = deepCopyMap(m)
			continue
		}
		dst[k] = v
	}
	return dst
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		sv, svOK := v.(map[string]any)
		dv, dvOK := dst[k].(map[string]any)
		if svOK && dvOK {
			deepMerge(dv, sv)
			continue
		}
		if svOK {
			dst[k] = deepCopyMap(sv)
			continue
		}
		dst[k] = v
	}
}
