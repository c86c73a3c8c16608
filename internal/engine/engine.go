// Package engine is the per-session step state machine. An advance call
// resolves submitted value hashes against the active draft's lookup,
// pops the served step off the session's pending stack, merges follow-on
// steps, persists the new state plus a history record, and returns a
// client-safe view of the step.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/mkarpov/readquiz/internal/content"
	"github.com/mkarpov/readquiz/internal/draft"
	"github.com/mkarpov/readquiz/internal/metrics"
	"github.com/mkarpov/readquiz/internal/store"
)

// Response is one submitted response entry for a step. Clients echo the
// server-issued hash under "value"; any other fields ride along into the
// raw history record untouched.
type Response map[string]any

// StepView is the client-safe result of an advance: the served step's
// key and its sanitized definition, with answer values still hashed.
type StepView struct {
	Key   string
	Draft string
	Step  map[string]any
}

// Engine drives session advances over the durable store and the shared
// draft snapshot.
type Engine struct {
	store    *store.Store
	drafts   *content.Drafts
	log      *slog.Logger
	handlers map[string]HandlerFunc
}

// New builds an engine. Handlers are registered separately at wiring
// time.
func New(st *store.Store, drafts *content.Drafts, log *slog.Logger) *Engine {
	return &Engine{
		store:    st,
		drafts:   drafts,
		log:      log,
		handlers: make(map[string]HandlerFunc),
	}
}

// Advance runs one step transition for a session.
//
// Returns ErrExhausted when the pending stack is empty (terminal, no
// write performed), a *ValidationError when a submitted value is not a
// server-issued hash (no state mutation), or a store error when
// persistence could not complete. On success the session's state has
// been durably advanced and the served step's sanitized view is
// returned.
func (e *Engine) Advance(ctx context.Context, sessionID int64, responses map[string][]Response, tracking any) (*StepView, error) {
	view, err := e.advance(ctx, sessionID, responses, tracking)
	metrics.Advances.WithLabelValues(advanceOutcome(err)).Inc()
	return view, err
}

func (e *Engine) advance(ctx context.Context, sessionID int64, responses map[string][]Response, tracking any) (*StepView, error) {
	state, err := e.store.GetState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("advance session %d: %w", sessionID, err)
	}

	snap, err := e.sessionSnapshot(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("advance session %d: %w", sessionID, err)
	}

	// A fresh session has no stack at all and is seeded from the draft's
	// root order. An empty stack means every pending step has been
	// served: terminal, and nothing is written.
	rawStack, started := state.Data["steps_stack"]
	stack := draft.StringSlice(rawStack)
	if !started {
		stack = snap.RootSteps()
	}
	if len(stack) == 0 {
		return nil, ErrExhausted
	}
	trace := draft.StringSlice(state.Data["steps_trace"])

	stack, summary, err := e.resolveResponses(snap, stack, responses)
	if err != nil {
		return nil, err
	}

	current := stack[0]
	stack = stack[1:]
	trace = append(trace, current)

	stepDef, ok := snap.Step(current)
	if !ok {
		return nil, fmt.Errorf("advance session %d: draft %q has no step %q",
			sessionID, snap.Name(), current)
	}
	stack = prependSteps(stack, draft.NextSteps(stepDef))

	state.Data["steps_stack"] = anySlice(stack)
	state.Data["steps_trace"] = anySlice(trace)
	state.Data["draft_name"] = snap.Name()

	// Trace and stack move durably or not at all; a conflicting
	// concurrent advance loses here before any history is written.
	if err := e.store.SetState(ctx, sessionID, state.Data, state.Version); err != nil {
		return nil, fmt.Errorf("advance session %d: persist state: %w", sessionID, err)
	}

	if err := e.recordHistory(ctx, sessionID, snap, trace, responses, summary, tracking); err != nil {
		return nil, fmt.Errorf("advance session %d: %w", sessionID, err)
	}

	hc := HandlerContext{SessionID: sessionID, Snapshot: snap, Store: e.store}
	view, _ := snap.ObfuscatedStep(current)
	view = e.runHandlers(ctx, hc, stepDef, view)

	e.log.Info("session advanced",
		"session", sessionID, "step", current, "draft", snap.Name(), "pending", len(stack))
	return &StepView{Key: current, Draft: snap.Name(), Step: draft.SanitizeStep(view)}, nil
}

// sessionSnapshot resolves the draft a session runs on. Sessions pin the
// draft name on their first advance so a later activation never moves
// them mid-quiz.
func (e *Engine) sessionSnapshot(ctx context.Context, state store.SessionState) (*content.Snapshot, error) {
	if name, ok := state.Data["draft_name"].(string); ok && name != "" {
		return e.drafts.Get(ctx, name)
	}
	return e.drafts.Active()
}

// resolveResponses maps every submitted value hash back to its original
// value and prepends any next_steps the resolved values carry. An
// unrecognized hash rejects the whole call: clients may only submit
// hashes the server itself issued.
func (e *Engine) resolveResponses(snap *content.Snapshot, stack []string, responses map[string][]Response) ([]string, map[string]any, error) {
	summary := make(map[string]any)
	for stepKey, entries := range responses {
		var resolved []any
		for _, entry := range entries {
			raw, ok := entry["value"]
			if !ok || isFalsy(raw) {
				continue
			}
			hash, ok := raw.(string)
			if !ok {
				return nil, nil, validationf("value", "submitted value for %q is not a string", stepKey)
			}
			value, ok := snap.Resolve(hash)
			if !ok {
				return nil, nil, validationf("value", "unknown value %q for step %q", hash, stepKey)
			}
			resolved = append(resolved, value)

			if obj, ok := value.(map[string]any); ok {
				if next := draft.StringSlice(obj["next_steps"]); len(next) > 0 {
					stack = prependSteps(stack, next)
				}
			}
		}
		if len(resolved) > 0 {
			summary[stepKey] = resolved
		}
	}
	return stack, summary, nil
}

// recordHistory appends one step record per advance, keyed by the step
// the responses pertain to: the one served by the previous advance. The
// very first advance records an empty prior key so its tracking payload
// still gets a parent row. Telemetry is at-least-once and never fails
// the call.
func (e *Engine) recordHistory(ctx context.Context, sessionID int64, snap *content.Snapshot, trace []string, responses map[string][]Response, summary map[string]any, tracking any) error {
	var prior string
	if len(trace) >= 2 {
		prior = trace[len(trace)-2]
	}
	priorDef, _ := snap.Step(prior)

	recordID, err := e.store.AddStepRecord(ctx, store.StepRecord{
		AdvanceID:   uuid.NewString(),
		PassageID:   sessionID,
		Key:         prior,
		FullData:    rawResponses(responses),
		SummaryData: summary,
		DraftName:   snap.Name(),
		Stats:       draft.StepStats(priorDef),
	})
	if err != nil {
		return fmt.Errorf("record history for %q: %w", prior, err)
	}

	if tracking != nil {
		if err := e.store.AddTracking(ctx, recordID, tracking, nil); err != nil {
			e.log.Warn("tracking write failed", "session", sessionID, "error", err)
		}
	}
	return nil
}

// prependSteps puts new keys ahead of the queued ones; a key already
// anywhere in the stack keeps its position and is not re-inserted.
// Both value-resolved and step-declared next_steps jump the queue this
// way, so a branch plays out before the previously pending steps.
func prependSteps(stack, next []string) []string {
	out := make([]string, 0, len(next)+len(stack))
	for _, key := range next {
		if !slices.Contains(stack, key) && !slices.Contains(out, key) {
			out = append(out, key)
		}
	}
	return append(out, stack...)
}

// isFalsy reports whether a submitted value carries no content and is
// skipped without touching the stack.
func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case bool:
		return !val
	default:
		return false
	}
}

func anySlice(keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func rawResponses(responses map[string][]Response) map[string]any {
	out := make(map[string]any, len(responses))
	for key, entries := range responses {
		items := make([]any, len(entries))
		for i, entry := range entries {
			items[i] = map[string]any(entry)
		}
		out[key] = items
	}
	return out
}

func advanceOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isExhausted(err):
		return "exhausted"
	case isValidation(err):
		return "rejected"
	default:
		return "failed"
	}
}
