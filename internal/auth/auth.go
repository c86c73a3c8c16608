// Package auth issues and resolves session tokens. The token encoding
// itself belongs to an external collaborator; this package pins its
// contract as TokenCodec and ships a plain hex reference codec used by
// tests and the CLI.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mkarpov/readquiz/internal/store"
)

// ErrInvalidToken rejects a token that does not decode or does not
// match a stored session. The caller gets no detail beyond this.
var ErrInvalidToken = errors.New("auth: invalid token")

// Credentials is the decoded content of a session token.
type Credentials struct {
	SessionID int64
	HashToken string
}

// TokenCodec converts credentials to an opaque client token and back.
// Production deployments plug in their own cipher; HexCodec is the
// reference implementation.
type TokenCodec interface {
	Encode(c Credentials) (string, error)
	Decode(token string) (Credentials, error)
}

// HexCodec encodes credentials as hex("id:hash"). It hides nothing and
// exists for tests and local tooling only.
type HexCodec struct{}

func (HexCodec) Encode(c Credentials) (string, error) {
	return hex.EncodeToString([]byte(fmt.Sprintf("%d:%s", c.SessionID, c.HashToken))), nil
}

func (HexCodec) Decode(token string) (Credentials, error) {
	raw, err := hex.DecodeString(token)
	if err != nil {
		return Credentials{}, ErrInvalidToken
	}
	id, hash, ok := strings.Cut(string(raw), ":")
	if !ok {
		return Credentials{}, ErrInvalidToken
	}
	sessionID, err := strconv.ParseInt(id, 10, 64)
	if err != nil || hash == "" {
		return Credentials{}, ErrInvalidToken
	}
	return Credentials{SessionID: sessionID, HashToken: hash}, nil
}

// Sessions issues fresh sessions and resolves tokens back to session
// ids against the durable store.
type Sessions struct {
	store *store.Store
	codec TokenCodec
	log   *slog.Logger
}

// NewSessions builds the session service over a store and a codec.
func NewSessions(st *store.Store, codec TokenCodec, log *slog.Logger) *Sessions {
	return &Sessions{store: st, codec: codec, log: log}
}

// Create issues a new session with empty state and returns its client
// token and id. The hash token is a fresh uuid; its only purpose is to
// make tokens unforgeable without the stored row.
func (s *Sessions) Create(ctx context.Context) (string, int64, error) {
	hash := uuid.NewString()
	id, err := s.store.CreateSession(ctx, hash)
	if err != nil {
		return "", 0, fmt.Errorf("create session: %w", err)
	}
	token, err := s.codec.Encode(Credentials{SessionID: id, HashToken: hash})
	if err != nil {
		return "", 0, fmt.Errorf("create session: encode token: %w", err)
	}
	s.log.Info("session created", "session", id)
	return token, id, nil
}

// Resolve turns a client token into a session id, or ErrInvalidToken.
func (s *Sessions) Resolve(ctx context.Context, token string) (int64, error) {
	creds, err := s.codec.Decode(token)
	if err != nil {
		return 0, ErrInvalidToken
	}
	ok, err := s.store.Login(ctx, creds.SessionID, creds.HashToken)
	if err != nil {
		return 0, fmt.Errorf("resolve session: %w", err)
	}
	if !ok {
		return 0, ErrInvalidToken
	}
	return creds.SessionID, nil
}
