// Package memory_service provides the persistent per-conversation memory
// backing the assistant: a rolling message window plus a durable summary
// that is regenerated whenever the window grows past the compaction
// threshold.
package memory_service //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"time"
)

// Message roles stored in conversation records.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StoredMessage is a single persisted conversation turn.
type StoredMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationRecord is the durable state of one conversation, keyed by the
// counterpart identity (an email address or an HTTP session key).
type ConversationRecord struct {
	Identity  string          `json:"identity"`
	Summary   string          `json:"summary"`
	Messages  []StoredMessage `json:"messages"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Summarizer condenses a conversation into a replacement summary.
// Implementations must return an error rather than an empty string when the
// condensation cannot be produced.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, messages []StoredMessage) (string, error)
}
