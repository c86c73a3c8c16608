// Package content keeps parsed draft snapshots in memory and tracks
// which draft is active. A snapshot bundles the validated tree, its
// value-obfuscated twin, and the hash lookup rebuilt on every load;
// nothing secret is ever persisted outside the raw draft text.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mkarpov/readquiz/internal/draft"
	"github.com/mkarpov/readquiz/internal/metrics"
	"github.com/mkarpov/readquiz/internal/store"
)

// ActiveAlias is the reserved draft name that always resolves to the
// currently active snapshot. Sessions created against it follow the
// active draft instead of pinning a version.
const ActiveAlias = "(active_draft)"

// ErrNoActiveDraft is returned when no draft has been activated yet.
var ErrNoActiveDraft = errors.New("content: no active draft")

// Source is the slice of the durable store the content layer needs.
type Source interface {
	GetActiveDraft(ctx context.Context) (store.DraftVersion, error)
	GetDraftByName(ctx context.Context, draftName string) (store.DraftVersion, error)
	AddQuote(ctx context.Context, quoteID string) error
	RotateDailyDraft(ctx context.Context) (store.DraftVersion, error)
}

// Snapshot is one fully parsed draft version. Immutable after build;
// accessors hand out clones so callers cannot reach shared state.
type Snapshot struct {
	name       string
	versionID  int64
	tree       map[string]any
	obfuscated map[string]any
	lookup     draft.Lookup
	quotes     []draft.Quote
	publisher  string
	link       string
}

// Name returns the snapshot's draft name.
func (s *Snapshot) Name() string { return s.name }

// VersionID returns the draft_version row the snapshot was built from.
func (s *Snapshot) VersionID() int64 { return s.versionID }

// Publisher returns the draft's publisher attribution.
func (s *Snapshot) Publisher() string { return s.publisher }

// PurchaseLink returns the draft's purchase link.
func (s *Snapshot) PurchaseLink() string { return s.link }

// Step returns the unobfuscated definition of one step.
func (s *Snapshot) Step(key string) (map[string]any, bool) {
	step, ok := draft.Steps(s.tree)[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return draft.CloneMap(step), true
}

// ObfuscatedStep returns a step with every answer value replaced by its
// content hash. This is the only form of a step that may leave the
// server.
func (s *Snapshot) ObfuscatedStep(key string) (map[string]any, bool) {
	step, ok := draft.Steps(s.obfuscated)[key].(map[string]any)
	if !ok {
		return nil, false
	}
	return draft.CloneMap(step), true
}

// RootSteps returns the step order a fresh session's stack starts from.
func (s *Snapshot) RootSteps() []string {
	return draft.RootSteps(s.tree)
}

// Resolve maps a submitted content hash back to the original value.
func (s *Snapshot) Resolve(hash string) (any, bool) {
	v, ok := s.lookup.Resolve(hash)
	if !ok {
		return nil, false
	}
	return draft.Clone(v), true
}

// Result returns one result subtree by id.
func (s *Snapshot) Result(id string) (map[string]any, bool) {
	result, ok := draft.Results(s.tree)[id].(map[string]any)
	if !ok {
		return nil, false
	}
	return draft.CloneMap(result), true
}

// Quotes returns the draft's quotes, sorted by result id then text.
func (s *Snapshot) Quotes() []draft.Quote {
	out := make([]draft.Quote, len(s.quotes))
	copy(out, s.quotes)
	return out
}

// HasQuote reports whether a quote id belongs to this draft.
func (s *Snapshot) HasQuote(quoteID string) bool {
	for _, q := range s.quotes {
		if q.ID == quoteID {
			return true
		}
	}
	return false
}

// Drafts owns the active snapshot and resolves pinned draft names for
// sessions that started on an earlier version. The active pointer is
// swapped atomically so readers never see a half-built snapshot.
type Drafts struct {
	src    Source
	log    *slog.Logger
	retry  time.Duration
	active atomic.Pointer[Snapshot]

	mu     sync.Mutex
	pinned map[string]*Snapshot
}

// Option configures a Drafts store.
type Option func(*Drafts)

// WithRetryInterval sets the pause between load attempts in WaitActive.
func WithRetryInterval(d time.Duration) Option {
	return func(ds *Drafts) { ds.retry = d }
}

// New builds a Drafts store over a durable source. No draft is loaded
// yet; call LoadActive or WaitActive first.
func New(src Source, log *slog.Logger, opts ...Option) *Drafts {
	ds := &Drafts{
		src:    src,
		log:    log,
		retry:  5 * time.Second,
		pinned: make(map[string]*Snapshot),
	}
	for _, opt := range opts {
		opt(ds)
	}
	return ds
}

// Active returns the current snapshot, or ErrNoActiveDraft before the
// first successful load.
func (ds *Drafts) Active() (*Snapshot, error) {
	snap := ds.active.Load()
	if snap == nil {
		return nil, ErrNoActiveDraft
	}
	return snap, nil
}

// Get resolves a draft name to a snapshot. The active alias and the
// active draft's own name both yield the active snapshot; any other
// name is loaded from the store on first use and cached, so old
// sessions keep advancing on the version they started with.
func (ds *Drafts) Get(ctx context.Context, name string) (*Snapshot, error) {
	if active := ds.active.Load(); active != nil {
		if name == ActiveAlias || name == active.name {
			return active, nil
		}
	} else if name == ActiveAlias {
		return nil, ErrNoActiveDraft
	}

	ds.mu.Lock()
	snap, ok := ds.pinned[name]
	ds.mu.Unlock()
	if ok {
		return snap, nil
	}

	version, err := ds.src.GetDraftByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get draft %q: %w", name, err)
	}
	snap, err = buildSnapshot(version)
	if err != nil {
		return nil, err
	}

	ds.mu.Lock()
	ds.pinned[name] = snap
	ds.mu.Unlock()
	return snap, nil
}

// LoadActive makes one attempt to load the active draft from the store
// and swap it in. On failure the previous snapshot, if any, stays
// served.
func (ds *Drafts) LoadActive(ctx context.Context) error {
	version, err := ds.src.GetActiveDraft(ctx)
	if err != nil {
		metrics.DraftReloads.WithLabelValues("failed").Inc()
		return fmt.Errorf("load active draft: %w", err)
	}

	if current := ds.active.Load(); current != nil && current.versionID == version.ID {
		return nil
	}

	snap, err := buildSnapshot(version)
	if err != nil {
		metrics.DraftReloads.WithLabelValues("failed").Inc()
		return err
	}

	ds.registerQuotes(ctx, snap)
	ds.active.Store(snap)
	metrics.DraftReloads.WithLabelValues("ok").Inc()
	ds.log.Info("active draft loaded",
		"draft", snap.name, "version", snap.versionID, "quotes", len(snap.quotes))
	return nil
}

// WaitActive retries LoadActive at a fixed interval until a snapshot is
// in place or the context ends. Used at startup so the process comes up
// even while the database or the draft content is still missing.
func (ds *Drafts) WaitActive(ctx context.Context) error {
	for {
		err := ds.LoadActive(ctx)
		if err == nil {
			return nil
		}
		ds.log.Warn("active draft not loadable yet", "error", err, "retry_in", ds.retry)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ds.retry):
		}
	}
}

// RotateDaily advances the daily draft selection and returns the newly
// selected version. The choice is made durably by the store in one
// transaction.
func (ds *Drafts) RotateDaily(ctx context.Context) (store.DraftVersion, error) {
	next, err := ds.src.RotateDailyDraft(ctx)
	if err != nil {
		return store.DraftVersion{}, fmt.Errorf("rotate daily draft: %w", err)
	}
	ds.log.Info("daily draft rotated", "draft", next.Name, "version", next.ID)
	return next, nil
}

// registerQuotes seeds the durable like-counter registry with the
// snapshot's quote ids. Seeding is best effort: counters for ids that
// fail to register simply start at zero on first like.
func (ds *Drafts) registerQuotes(ctx context.Context, snap *Snapshot) {
	for _, id := range draft.QuoteIDs(snap.quotes) {
		if err := ds.src.AddQuote(ctx, id); err != nil {
			ds.log.Warn("quote registration failed", "quote", id, "error", err)
		}
	}
}

func buildSnapshot(version store.DraftVersion) (*Snapshot, error) {
	tree, err := draft.Parse(version.Text)
	if err != nil {
		return nil, &draft.ContentError{DraftName: version.Name, Reason: "parse", Err: err}
	}

	obfuscated, lookup, err := draft.ExtractValues(tree, draft.ValueKey, draft.DefaultExclusions)
	if err != nil {
		return nil, &draft.ContentError{DraftName: version.Name, Reason: "value extraction", Err: err}
	}
	obfuscatedTree, ok := obfuscated.(map[string]any)
	if !ok {
		return nil, &draft.ContentError{DraftName: version.Name, Reason: "value extraction returned non-map"}
	}

	quotes, err := draft.ExtractQuotes(tree)
	if err != nil {
		return nil, &draft.ContentError{DraftName: version.Name, Reason: "quote extraction", Err: err}
	}

	return &Snapshot{
		name:       version.Name,
		versionID:  version.ID,
		tree:       tree,
		obfuscated: obfuscatedTree,
		lookup:     lookup,
		quotes:     quotes,
		publisher:  version.Publisher,
		link:       version.PurchaseLink,
	}, nil
}
