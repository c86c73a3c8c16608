package draft

// Fields stripped from a step before it leaves the server. They drive
// navigation and bookkeeping and must stay invisible to clients.
var internalStepFields = []string{"handlers", "next_steps", "stats", "body_hidden_keys"}

// SanitizeStep returns a client-safe copy of a step definition: internal
// navigation fields are removed, and any body field named by
// body_hidden_keys is dropped from the step's body. The input is never
// mutated.
func SanitizeStep(step map[string]any) map[string]any {
	out := CloneMap(step)
	if out == nil {
		return nil
	}

	hidden := StringSlice(out["body_hidden_keys"])
	if body, ok := out["body"].(map[string]any); ok {
		for _, k := range hidden {
			delete(body, k)
		}
	}
	for _, field := range internalStepFields {
		delete(out, field)
	}
	return out
}

// NextSteps returns a step's declared follow-on step keys.
func NextSteps(step map[string]any) []string {
	return StringSlice(step["next_steps"])
}

// StepStats returns the statistics fields configured on a step, used to
// snapshot per-step stats into the history record.
func StepStats(step map[string]any) []any {
	stats, _ := step["stats"].([]any)
	return stats
}

// StepHandlerRef is one entry of a step's handlers list.
type StepHandlerRef struct {
	Name   string
	Args   []any
	Kwargs map[string]any
}

// StepHandlers returns the handler references declared on a step, in
// declaration order. Malformed entries are dropped.
func StepHandlers(step map[string]any) []StepHandlerRef {
	raw, _ := step["handlers"].([]any)
	refs := make([]StepHandlerRef, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, ok := entry["name"].(string)
		if !ok || name == "" {
			continue
		}
		args, _ := entry["args"].([]any)
		kwargs, _ := entry["kwargs"].(map[string]any)
		refs = append(refs, StepHandlerRef{Name: name, Args: args, Kwargs: kwargs})
	}
	return refs
}
