package engine

import (
	"context"

	"github.com/mkarpov/readquiz/internal/content"
	"github.com/mkarpov/readquiz/internal/draft"
	"github.com/mkarpov/readquiz/internal/store"
)

// HandlerContext carries the ambient state a step handler may need.
type HandlerContext struct {
	SessionID int64
	Snapshot  *content.Snapshot
	Store     *store.Store
}

// HandlerFunc transforms a step definition before it is returned to the
// caller. The returned map becomes the input of the next handler in the
// step's declared chain.
type HandlerFunc func(ctx context.Context, hc HandlerContext, step map[string]any, ref draft.StepHandlerRef) (map[string]any, error)

// RegisterHandler binds a handler name used in draft text to its
// implementation. Registration happens at wiring time, before any
// advance runs; the map is not synchronized.
func (e *Engine) RegisterHandler(name string, fn HandlerFunc) {
	e.handlers[name] = fn
}

// runHandlers applies a step's declared handler chain in order. Dispatch
// fails closed: an unknown name or a handler error skips that entry with
// an operator-visible log line, never failing the advance.
func (e *Engine) runHandlers(ctx context.Context, hc HandlerContext, stepDef, view map[string]any) map[string]any {
	for _, ref := range draft.StepHandlers(stepDef) {
		fn, ok := e.handlers[ref.Name]
		if !ok {
			e.log.Warn("step references unknown handler",
				"handler", ref.Name, "draft", hc.Snapshot.Name())
			continue
		}
		out, err := fn(ctx, hc, view, ref)
		if err != nil {
			e.log.Error("step handler failed",
				"handler", ref.Name, "session", hc.SessionID, "error", err)
			continue
		}
		if out != nil {
			view = out
		}
	}
	return view
}
