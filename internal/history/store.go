// Package history persists chat transcripts keyed by session. Writes
// are fire-and-forget from the pipeline's perspective: a failed append
// is logged and swallowed, never altering an already-computed answer.
package history

import (
	"context"
	"time"

	"github.com/irdesk/ir-assist/internal/model"
)

// Message is one persisted chat turn.
type Message struct {
	ID         string                    `json:"id"`
	SessionID  string                    `json:"session_id"`
	Role       string                    `json:"role"`
	Content    string                    `json:"content"`
	Confidence float64                   `json:"confidence"`
	Sources    []model.DocumentReference `json:"sources,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
}

// Store defines the chat-history persistence interface.
type Store interface {
	AppendMessage(ctx context.Context, msg Message) error
	// ListMessages returns every message of a session, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
	// RecentMessages returns the newest limit messages, oldest first.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	Migrate(ctx context.Context) error
	Close() error
}
