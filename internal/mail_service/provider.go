// Package mail_service provides the inbound email transport: a Provider
// abstraction over the mailbox plus the Processor that turns unread mail
// into orchestrated replies.
package mail_service //nolint:revive // var-naming: using underscores for domain clarity

import "context"

// MessageRef identifies an unread message in the mailbox.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Message is a fully read inbound email.
type Message struct {
	ID       string
	ThreadID string

	// Sender is the bare address parsed from the From header. Empty when
	// the header is missing or unparseable.
	Sender string

	Subject  string
	BodyText string

	// MessageID is the RFC 2822 Message-ID header, used for reply
	// threading.
	MessageID string
}

// Reply is an outbound reply to an inbound message.
type Reply struct {
	To        string
	Subject   string
	Body      string
	ThreadID  string
	InReplyTo string
}

// Provider is the mailbox contract the processor drives.
type Provider interface {
	// FetchUnread lists unread messages addressed to the configured
	// target, up to maxResults.
	FetchUnread(ctx context.Context, maxResults int) ([]MessageRef, error)

	// ReadMessage fetches and decodes a single message.
	ReadMessage(ctx context.Context, id string) (*Message, error)

	// SendReply sends a threaded reply.
	SendReply(ctx context.Context, reply Reply) error

	// MarkProcessed removes the unread marker and applies the processed
	// label so the message is never answered twice.
	MarkProcessed(ctx context.Context, id string) error
}
