package draft

// Clone deep-copies a draft tree. Every accessor that hands a tree to a
// consumer goes through Clone so in-place mutation (the engine strips
// transient fields from steps) can never corrupt the shared cached draft.
func Clone(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	default:
		// Scalars are immutable; share them.
		return v
	}
}

// CloneMap is Clone specialized for the common top-level shape.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Clone(m).(map[string]any)
}

// StringSlice coerces a []any of step keys into []string, skipping
// anything that is not a string. Draft authors occasionally mix scalar
// types; non-strings cannot name steps and are ignored.
func StringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
