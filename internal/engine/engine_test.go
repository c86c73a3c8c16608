package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarpov/readquiz/internal/content"
	"github.com/mkarpov/readquiz/internal/draft"
	"github.com/mkarpov/readquiz/internal/store"
)

const testDraftYAML = `
router_politics:
  steps_stack: [welcome]
steps:
  welcome:
    title: Welcome
    type: info
    next_steps: [q1]
  q1:
    title: First question
    type: question
    next_steps: [final]
    stats: [age_group]
    handlers:
      - name: attach_greeting
      - name: not_registered
    body:
      question: Which do you prefer?
      answers:
        - label: Adventure
          value:
            next_steps: [bonus]
        - label: Calm
          value: calm
        - label: Both
          value:
            next_steps: [bonus, q1]
    gui_options:
      answers:
        - value: adventure-icon
  bonus:
    title: Bonus question
    type: question
  final:
    title: Your results
    type: results
    body_hidden_keys: [debug_note]
    body:
      debug_note: internal
      headline: Done!
results:
  explorer:
    headline: The Explorer
    books:
      - name: The Long Walk
        author: A. Wanderer
        pitch: A walk worth taking.
        quotes:
          - The road itself is the destination.
`

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	return newTestEngineWith(t, testDraftYAML)
}

func newTestEngineWith(t *testing.T, draftYAML string) (*Engine, *store.Store) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "engine-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	id, err := s.AddDraft(ctx, draftYAML, "demo", "Pub", "https://example.com/buy", "admin")
	require.NoError(t, err)
	require.NoError(t, s.SetActiveDraft(ctx, id))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	drafts := content.New(s, log)
	require.NoError(t, drafts.LoadActive(ctx))

	return New(s, drafts, log), s
}

func newTestSession(t *testing.T, s *store.Store) int64 {
	t.Helper()
	id, err := s.CreateSession(context.Background(), "test-token")
	require.NoError(t, err)
	return id
}

func sessionNav(t *testing.T, s *store.Store, id int64) (stack, trace []string) {
	t.Helper()
	state, err := s.GetState(context.Background(), id)
	require.NoError(t, err)
	return draft.StringSlice(state.Data["steps_stack"]), draft.StringSlice(state.Data["steps_trace"])
}

func TestAdvance_FirstCallServesRootStep(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)

	view, err := e.Advance(context.Background(), sid, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "welcome", view.Key)
	assert.Equal(t, "demo", view.Draft)

	stack, trace := sessionNav(t, s, sid)
	assert.Equal(t, []string{"q1"}, stack)
	assert.Equal(t, []string{"welcome"}, trace)
}

func TestAdvance_ResolvedNextStepsArePrepended(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, nil) // welcome
	require.NoError(t, err)
	_, err = e.Advance(ctx, sid, nil, nil) // q1; stack now [final]
	require.NoError(t, err)

	// The Adventure answer resolves to {next_steps: [bonus]}, which
	// jumps the queue ahead of final.
	hash := draft.MustHashValue(map[string]any{"next_steps": []any{"bonus"}})
	view, err := e.Advance(ctx, sid, map[string][]Response{
		"q1": {{"value": hash}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "bonus", view.Key)

	stack, trace := sessionNav(t, s, sid)
	assert.Equal(t, []string{"final"}, stack)
	assert.Equal(t, []string{"welcome", "q1", "bonus"}, trace)
}

func TestAdvance_DeclaredNextStepsJumpTheQueue(t *testing.T) {
	// A served step's own next_steps go to the front of the stack, the
	// same way value-resolved branches do, so a detour plays out before
	// the steps that were already pending.
	e, s := newTestEngineWith(t, `
router_politics:
  steps_stack: [intro, outro]
steps:
  intro:
    title: Intro
    type: info
    next_steps: [detour]
  detour:
    title: Detour
    type: info
  outro:
    title: Outro
    type: info
`)
	sid := newTestSession(t, s)
	ctx := context.Background()

	view, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "intro", view.Key)

	stack, trace := sessionNav(t, s, sid)
	assert.Equal(t, []string{"detour", "outro"}, stack)
	assert.Equal(t, []string{"intro"}, trace)

	for _, want := range []string{"detour", "outro"} {
		view, err = e.Advance(ctx, sid, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, want, view.Key)
	}
}

func TestAdvance_UnknownValueRejectsWithoutMutation(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)
	stackBefore, traceBefore := sessionNav(t, s, sid)
	recordsBefore, err := s.GetStepRecords(ctx, sid)
	require.NoError(t, err)

	_, err = e.Advance(ctx, sid, map[string][]Response{
		"welcome": {{"value": "not-a-hash"}},
	}, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "value", verr.Field)
	assert.Contains(t, verr.Message, "not-a-hash")

	stack, trace := sessionNav(t, s, sid)
	assert.Equal(t, stackBefore, stack)
	assert.Equal(t, traceBefore, trace)

	records, err := s.GetStepRecords(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, records, len(recordsBefore), "rejected advance must not write history")
}

func TestAdvance_FalsyValueIsSkipped(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)

	view, err := e.Advance(ctx, sid, map[string][]Response{
		"welcome": {{"value": ""}, {"value": nil}, {"other": "field"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.Key)
}

func TestAdvance_ExhaustionIsTerminalNotAnError(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	calm := draft.MustHashValue("calm")
	for _, want := range []string{"welcome", "q1", "final"} {
		view, err := e.Advance(ctx, sid, map[string][]Response{
			"any": {{"value": calm}},
		}, nil)
		require.NoError(t, err)
		require.Equal(t, want, view.Key)
	}

	records, _ := s.GetStepRecords(ctx, sid)
	before := len(records)

	_, err := e.Advance(ctx, sid, nil, nil)
	require.ErrorIs(t, err, ErrExhausted)

	// Exhaustion performs no writes.
	records, _ = s.GetStepRecords(ctx, sid)
	assert.Len(t, records, before)
	_, trace := sessionNav(t, s, sid)
	assert.Equal(t, []string{"welcome", "q1", "final"}, trace)
}

func TestAdvance_StackNeverHoldsDuplicates(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, nil) // stack [q1]
	require.NoError(t, err)

	// The Both answer queues bonus and q1; q1 is already pending and
	// submitting the same value twice must not queue bonus twice either.
	hash := draft.MustHashValue(map[string]any{"next_steps": []any{"bonus", "q1"}})
	_, err = e.Advance(ctx, sid, map[string][]Response{
		"welcome": {{"value": hash}, {"value": hash}},
	}, nil)
	require.NoError(t, err)

	stack, _ := sessionNav(t, s, sid)
	seen := map[string]int{}
	for _, key := range stack {
		seen[key]++
	}
	for key, n := range seen {
		assert.Equalf(t, 1, n, "step %q appears %d times in the stack", key, n)
	}
}

func TestAdvance_HistoryRecordsPriorStep(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, "клик")
	require.NoError(t, err)

	// Every advance writes a row; the first has no prior step yet, but
	// its tracking payload still needs the parent record.
	records, err := s.GetStepRecords(ctx, sid)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].Key)

	calm := draft.MustHashValue("calm")
	_, err = e.Advance(ctx, sid, map[string][]Response{
		"welcome": {{"value": calm, "elapsed_ms": float64(1200)}},
	}, nil)
	require.NoError(t, err)

	records, err = s.GetStepRecords(ctx, sid)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "welcome", records[1].Key)
	assert.Equal(t, "demo", records[1].DraftName)
	assert.Contains(t, records[1].FullData, "elapsed_ms")
	assert.Contains(t, records[1].SummaryData, "calm")
}

func TestAdvance_HandlersTransformTheServedStep(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	e.RegisterHandler("attach_greeting", func(_ context.Context, hc HandlerContext, step map[string]any, _ draft.StepHandlerRef) (map[string]any, error) {
		step["greeting"] = "hello"
		return step, nil
	})

	_, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)

	// q1 declares attach_greeting plus a handler nobody registered;
	// the unknown one is skipped, not fatal.
	view, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.Key)
	assert.Equal(t, "hello", view.Step["greeting"])
}

func TestAdvance_ViewIsSanitizedAndObfuscated(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)
	view, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)

	assert.NotContains(t, view.Step, "handlers")
	assert.NotContains(t, view.Step, "next_steps")
	assert.NotContains(t, view.Step, "stats")

	answers := view.Step["body"].(map[string]any)["answers"].([]any)
	value := answers[1].(map[string]any)["value"].(string)
	assert.Equal(t, draft.MustHashValue("calm"), value)

	// gui_options values are presentation hints and stay readable.
	guiAnswers := view.Step["gui_options"].(map[string]any)["answers"].([]any)
	assert.Equal(t, "adventure-icon", guiAnswers[0].(map[string]any)["value"])
}

func TestAdvance_ServedStepViewGolden(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)
	view, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "q1", view.Key)

	viewJSON, err := draft.MarshalCanonical(view.Step)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "served_step_q1", viewJSON)
}

func TestAdvance_SessionPinsItsDraft(t *testing.T) {
	e, s := newTestEngine(t)
	sid := newTestSession(t, s)
	ctx := context.Background()

	_, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)

	// Activating a replacement draft must not move the in-flight
	// session off the version it started on.
	replacement := "router_politics:\n  steps_stack: [alone]\nsteps:\n  alone:\n    title: Other\n"
	id, err := s.AddDraft(ctx, replacement, "sequel", "", "", "admin")
	require.NoError(t, err)
	require.NoError(t, s.SetActiveDraft(ctx, id))
	require.NoError(t, e.drafts.LoadActive(ctx))

	view, err := e.Advance(ctx, sid, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "q1", view.Key)
	assert.Equal(t, "demo", view.Draft)
}

func TestAdvance_UnknownSession(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Advance(context.Background(), 9999, nil, nil)
	require.True(t, errors.Is(err, store.ErrNotFound))
}
