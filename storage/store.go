// Package storage persists conversations. Backends share one interface so
// the conversation manager is indifferent to whether state lives in Redis,
// SQLite, or memory.
package storage

import (
	"context"

	"umsagent/model"
)

// Store holds conversation records addressed by conversation id. The
// conversation manager does read-modify-write per turn; intra-conversation
// turns are serialized above this layer, so last-writer-wins semantics here
// are safe.
type Store interface {
	// SaveConversation creates or replaces the record.
	SaveConversation(ctx context.Context, conv *model.Conversation) error

	// GetConversation returns the record, or nil when absent.
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)

	// ListConversations returns summaries sorted by last update, newest
	// first.
	ListConversations(ctx context.Context) ([]model.ConversationSummary, error)

	// DeleteConversation removes the record, reporting whether it existed.
	DeleteConversation(ctx context.Context, id string) (bool, error)

	// Ping verifies the backend is reachable; called at startup.
	Ping(ctx context.Context) error

	Close() error
}
