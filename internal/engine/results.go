package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mkarpov/readquiz/internal/content"
	"github.com/mkarpov/readquiz/internal/draft"
	"github.com/mkarpov/readquiz/internal/store"
)

const (
	maxCommentLength = 1000
	maxPageSize      = 100
	latestComments   = 5
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// QuoteView is one quote expanded with its live social counters.
type QuoteView struct {
	ID       string
	Text     string
	Likes    int64
	Liked    bool
	Comments []store.Comment
}

// BookView is one recommended book with its quotes expanded.
type BookView struct {
	Name    string
	Author  string
	Pitch   string
	CoverID string
	Quotes  []QuoteView
}

// ResultView is the assembled result page content for one result id.
type ResultView struct {
	ResultID     string
	Draft        string
	Publisher    string
	PurchaseLink string
	Body         map[string]any
	Books        []BookView
}

// BuildResult assembles the result view for a session: the result
// subtree from the session's draft with every quote expanded to its
// like count, its latest comments, and whether this session already
// liked it.
func (e *Engine) BuildResult(ctx context.Context, sessionID int64, resultID string) (*ResultView, error) {
	state, err := e.store.GetState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("build result for session %d: %w", sessionID, err)
	}
	snap, err := e.sessionSnapshot(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("build result for session %d: %w", sessionID, err)
	}

	result, ok := snap.Result(resultID)
	if !ok {
		return nil, validationf("result_id", "unknown result %q", resultID)
	}
	books, err := draft.ResultBooks(result)
	if err != nil {
		return nil, fmt.Errorf("build result %q: %w", resultID, err)
	}

	view := &ResultView{
		ResultID:     resultID,
		Draft:        snap.Name(),
		Publisher:    snap.Publisher(),
		PurchaseLink: snap.PurchaseLink(),
		Body:         resultBody(result),
	}
	for _, book := range books {
		bv := BookView{Name: book.Name, Author: book.Author, Pitch: book.Pitch, CoverID: book.CoverID}
		for _, text := range book.Quotes {
			qv, err := e.quoteView(ctx, sessionID, draft.QuoteID(text), text)
			if err != nil {
				return nil, fmt.Errorf("build result %q: %w", resultID, err)
			}
			bv.Quotes = append(bv.Quotes, qv)
		}
		view.Books = append(view.Books, bv)
	}
	return view, nil
}

func (e *Engine) quoteView(ctx context.Context, sessionID int64, quoteID, text string) (QuoteView, error) {
	likes, err := e.store.GetQuoteLikes(ctx, quoteID)
	if err != nil {
		return QuoteView{}, err
	}
	liked, err := e.store.IsAlreadyLiked(ctx, sessionID, quoteID)
	if err != nil {
		return QuoteView{}, err
	}
	comments, err := e.store.GetLatestComments(ctx, quoteID, latestComments)
	if err != nil {
		return QuoteView{}, err
	}
	return QuoteView{ID: quoteID, Text: text, Likes: likes, Liked: liked, Comments: comments}, nil
}

// resultBody returns the result subtree minus the books hierarchy,
// which is delivered expanded instead.
func resultBody(result map[string]any) map[string]any {
	body := draft.CloneMap(result)
	delete(body, "books")
	return body
}

// LikeQuote records a session's like on a quote and returns the new
// total. One like per session per quote.
func (e *Engine) LikeQuote(ctx context.Context, sessionID int64, quoteID string) (int64, error) {
	snap, err := e.drafts.Active()
	if err != nil {
		return 0, err
	}
	if verr := validateQuoteID(snap, quoteID); verr != nil {
		return 0, verr
	}

	liked, err := e.store.IsAlreadyLiked(ctx, sessionID, quoteID)
	if err != nil {
		return 0, fmt.Errorf("like quote %s: %w", quoteID, err)
	}
	if liked {
		return 0, validationf("quote_id", "quote already liked")
	}

	likes, err := e.store.IncrementQuoteLikes(ctx, quoteID)
	if err != nil {
		return 0, fmt.Errorf("like quote %s: %w", quoteID, err)
	}
	if err := e.store.AddUserLike(ctx, sessionID, quoteID); err != nil {
		return 0, fmt.Errorf("like quote %s: %w", quoteID, err)
	}
	return likes, nil
}

// CommentQuote records a session's comment on a quote. One comment per
// session per quote.
func (e *Engine) CommentQuote(ctx context.Context, sessionID int64, quoteID, text string) error {
	snap, err := e.drafts.Active()
	if err != nil {
		return err
	}
	if verr := validateQuoteID(snap, quoteID); verr != nil {
		return verr
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return validationf("content", "comment is empty")
	}
	if len(text) > maxCommentLength {
		return validationf("content", "comment exceeds %d characters", maxCommentLength)
	}

	commented, err := e.store.IsAlreadyCommented(ctx, sessionID, quoteID)
	if err != nil {
		return fmt.Errorf("comment quote %s: %w", quoteID, err)
	}
	if commented {
		return validationf("quote_id", "quote already commented")
	}
	if err := e.store.AddComment(ctx, sessionID, quoteID, text); err != nil {
		return fmt.Errorf("comment quote %s: %w", quoteID, err)
	}
	return nil
}

// ListComments pages through a quote's comments, oldest first.
func (e *Engine) ListComments(ctx context.Context, quoteID string, limit, offset int) ([]store.Comment, error) {
	if limit < 1 || limit > maxPageSize {
		return nil, validationf("limit", "must be between 1 and %d", maxPageSize)
	}
	if offset < 0 {
		return nil, validationf("offset", "must not be negative")
	}
	comments, err := e.store.GetQuoteComments(ctx, quoteID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list comments for %s: %w", quoteID, err)
	}
	return comments, nil
}

// SubmitFeedback validates and stores a session's one feedback entry.
func (e *Engine) SubmitFeedback(ctx context.Context, sessionID int64, email, name, text string) error {
	if !emailPattern.MatchString(email) {
		return validationf("email", "not a valid address")
	}
	if strings.TrimSpace(name) == "" {
		return validationf("name", "must not be empty")
	}
	if strings.TrimSpace(text) == "" {
		return validationf("main_text", "must not be empty")
	}

	err := e.store.AddFeedback(ctx, sessionID, email, name, text)
	if errors.Is(err, store.ErrDuplicateFeedback) {
		return validationf("feedback", "already submitted for this session")
	}
	if err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	return nil
}

// validateQuoteID checks that an id is a well-formed content hash
// belonging to the active draft. Tampered ids never reach the store.
func validateQuoteID(snap *content.Snapshot, quoteID string) *ValidationError {
	raw, err := hex.DecodeString(quoteID)
	if err != nil || len(raw) != 32 {
		return validationf("quote_id", "malformed quote identifier")
	}
	if !snap.HasQuote(quoteID) {
		return validationf("quote_id", "unknown quote")
	}
	return nil
}
