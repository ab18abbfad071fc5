package session

import (
	"context"

	"github.com/hupe1980/agentrun/item"
)

// Store persists the ordered item history of conversations. Implementations
// must be safe for concurrent use.
type Store interface {
	// Items returns the stored history for the session, oldest first. An
	// unknown session yields an empty slice, not an error.
	Items(ctx context.Context, sessionID string) ([]item.Item, error)

	// Append adds items to the end of the session history.
	Append(ctx context.Context, sessionID string, items []item.Item) error

	// Clear removes all stored items for the session.
	Clear(ctx context.Context, sessionID string) error
}
