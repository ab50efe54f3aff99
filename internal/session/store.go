package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no session exists for the id.
var ErrNotFound = errors.New("session: not found")

// Store persists session state keyed by the transport-supplied session id.
// Implementations need not survive process restarts; sessions are ephemeral.
type Store interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, sessionID string, state *State) error
	Delete(ctx context.Context, sessionID string) error
}
