package mail_service

import (
	"context"
	"fmt"

	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
	"github.com/tiempoactualizado/mail-assistant/pkg/metrics"
)

const (
	// DefaultReplySubject is the subject line of generated replies.
	DefaultReplySubject = "Tiempo Actual"

	defaultMaxResults = 10
)

// Replier generates a reply for an identity. Implemented by the
// orchestrator.
type Replier interface {
	Reply(ctx context.Context, identity, text string) string
}

// ProcessorConfig holds configuration for the inbox processor.
type ProcessorConfig struct {
	Provider Provider
	Replier  Replier
	Logger   logger.Logger

	// Metrics is optional; email counters are skipped when nil.
	Metrics *metrics.Metrics

	// MaxResults bounds one poll batch. Defaults to 10.
	MaxResults int

	// ReplySubject defaults to DefaultReplySubject.
	ReplySubject string
}

// Processor drives one inbox poll: read unread mail, orchestrate replies
// keyed by sender address, send and mark processed.
type Processor struct {
	provider Provider
	replier  Replier
	log      logger.Logger
	metrics  *metrics.Metrics

	maxResults   int
	replySubject string
}

// NewProcessor creates a new inbox processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("mail provider is required")
	}
	if cfg.Replier == nil {
		return nil, fmt.Errorf("replier is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	replySubject := cfg.ReplySubject
	if replySubject == "" {
		replySubject = DefaultReplySubject
	}

	return &Processor{
		provider:     cfg.Provider,
		replier:      cfg.Replier,
		log:          cfg.Logger,
		metrics:      cfg.Metrics,
		maxResults:   maxResults,
		replySubject: replySubject,
	}, nil
}

// ProcessInbox answers one batch of unread mail and returns the sender
// addresses that were replied to. Per-message failures are logged and do
// not abort the batch; only the initial listing can fail the whole poll.
func (p *Processor) ProcessInbox(ctx context.Context) ([]string, error) {
	refs, err := p.provider.FetchUnread(ctx, p.maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unread messages: %w", err)
	}

	processed := make([]string, 0, len(refs))
	for _, ref := range refs {
		sender, ok := p.processMessage(ctx, ref)
		if ok {
			processed = append(processed, sender)
		}
	}

	p.log.Info("Inbox poll finished",
		logger.IntField("unread", len(refs)),
		logger.IntField("processed", len(processed)))

	return processed, nil
}

func (p *Processor) processMessage(ctx context.Context, ref MessageRef) (string, bool) {
	msg, err := p.provider.ReadMessage(ctx, ref.ID)
	if err != nil {
		p.log.Error("Failed to read message, leaving unread",
			logger.StringField("message_id", ref.ID),
			logger.ErrorField(err))
		return "", false
	}

	if msg.Sender == "" {
		// Nothing to reply to. Mark processed so the message is not
		// retried forever.
		p.log.Warn("Message has no resolvable sender, skipping",
			logger.StringField("message_id", ref.ID))
		if err := p.provider.MarkProcessed(ctx, ref.ID); err != nil {
			p.log.Error("Failed to mark senderless message processed",
				logger.StringField("message_id", ref.ID),
				logger.ErrorField(err))
		}
		if p.metrics != nil && p.metrics.EmailsSkippedCounter != nil {
			p.metrics.EmailsSkippedCounter.Inc()
		}
		return "", false
	}

	reply := p.replier.Reply(ctx, msg.Sender, msg.BodyText)

	err = p.provider.SendReply(ctx, Reply{
		To:        msg.Sender,
		Subject:   p.replySubject,
		Body:      reply,
		ThreadID:  msg.ThreadID,
		InReplyTo: msg.MessageID,
	})
	if err != nil {
		// Leave unread so the next poll retries.
		p.log.Error("Failed to send reply",
			logger.SenderField(msg.Sender),
			logger.StringField("message_id", ref.ID),
			logger.ErrorField(err))
		return "", false
	}

	if err := p.provider.MarkProcessed(ctx, ref.ID); err != nil {
		p.log.Error("Reply sent but marking processed failed",
			logger.SenderField(msg.Sender),
			logger.StringField("message_id", ref.ID),
			logger.ErrorField(err))
	}

	p.log.Info("Replied to message",
		logger.SenderField(msg.Sender),
		logger.StringField("message_id", ref.ID))
	if p.metrics != nil && p.metrics.EmailsProcessedCounter != nil {
		p.metrics.EmailsProcessedCounter.Inc()
	}

	return msg.Sender, true
}
