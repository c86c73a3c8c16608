package draft

import (
	"fmt"
	"slices"
)

// ValueKey is the draft key whose contents are hidden from clients.
const ValueKey = "value"

// DefaultExclusions lists subtrees ExtractValues must not descend into.
// gui_options carries presentation hints whose "value" fields are
// client-facing, not answers.
var DefaultExclusions = []string{"gui_options"}

// Lookup maps a content hash back to the original value it replaced.
// It lives only in process memory for the active draft and is rebuilt
// deterministically from the draft text on every load.
type Lookup map[string]any

// Resolve returns the original value for a submitted hash.
func (l Lookup) Resolve(hash string) (any, bool) {
	v, ok := l[hash]
	return v, ok
}

// ExtractValues walks a draft tree and replaces every value under keyName
// with the hex digest of its canonical serialization, except inside
// subtrees keyed by an exclusion. It is a pure transform: the returned
// tree shares no structure with the input, and the side-collected lookup
// maps each digest back to the original value.
//
// Structurally equal values collapse to a single lookup entry. The walk
// itself is order-independent; determinism comes from the canonical
// serialization, not from map iteration order.
func ExtractValues(tree any, keyName string, exclusions []string) (any, Lookup, error) {
	lookup := make(Lookup)
	out, err := extractValues(tree, keyName, exclusions, lookup)
	if err != nil {
		return nil, nil, err
	}
	return out, lookup, nil
}

func extractValues(node any, keyName string, exclusions []string, lookup Lookup) (any, error) {
	switch val := node.(type) {
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			replaced, err := extractValues(elem, keyName, exclusions, lookup)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = replaced
		}
		return out, nil

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			switch {
			case slices.Contains(exclusions, k):
				// Excluded subtree is copied verbatim, never hashed.
				out[k] = Clone(elem)
			case k != keyName:
				replaced, err := extractValues(elem, keyName, exclusions, lookup)
				if err != nil {
					return nil, fmt.Errorf("%q: %w", k, err)
				}
				out[k] = replaced
			default:
				hash, err := HashValue(elem)
				if err != nil {
					return nil, fmt.Errorf("%q: %w", k, err)
				}
				lookup[hash] = Clone(elem)
				out[k] = hash
			}
		}
		return out, nil

	default:
		return val, nil
	}
}
