package memory_service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tiempoactualizado/mail-assistant/internal/storage_manager"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
	"github.com/tiempoactualizado/mail-assistant/pkg/metrics"
)

const (
	// DefaultCompactionThreshold is the message count past which the
	// record is condensed into its summary.
	DefaultCompactionThreshold = 12

	// DefaultRetainedTail is how many trailing messages survive a
	// compaction.
	DefaultRetainedTail = 5

	// DefaultRecentWindow is how many trailing messages feed the prompt.
	DefaultRecentWindow = 5
)

// Store owns conversation records and serializes all access per identity.
type Store struct {
	fileProvider storage_manager.FileProvider
	summarizer   Summarizer
	userLocks    map[string]*sync.Mutex // Per-identity locks
	userLockMux  sync.Mutex
	log          logger.Logger
	metrics      *metrics.Metrics

	compactionThreshold int
	retainedTail        int
}

// Config holds configuration for the memory store.
type Config struct {
	FileProvider storage_manager.FileProvider

	// Summarizer drives compaction. When nil, records grow unbounded and
	// compaction is skipped with a debug log.
	Summarizer Summarizer

	Logger logger.Logger

	// Metrics is optional; compaction counters are skipped when nil.
	Metrics *metrics.Metrics

	// CompactionThreshold defaults to DefaultCompactionThreshold.
	CompactionThreshold int

	// RetainedTail defaults to DefaultRetainedTail.
	RetainedTail int
}

// New creates a new memory store with the given configuration.
func New(cfg Config) *Store {
	if cfg.FileProvider == nil {
		panic("file provider cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}

	threshold := cfg.CompactionThreshold
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}
	tail := cfg.RetainedTail
	if tail <= 0 {
		tail = DefaultRetainedTail
	}

	return &Store{
		fileProvider:        cfg.FileProvider,
		summarizer:          cfg.Summarizer,
		userLocks:           make(map[string]*sync.Mutex),
		log:                 cfg.Logger,
		metrics:             cfg.Metrics,
		compactionThreshold: threshold,
		retainedTail:        tail,
	}
}

// Load returns the conversation record for an identity. A missing or
// unreadable record yields a fresh empty one; corruption never aborts a turn.
func (s *Store) Load(ctx context.Context, identity string) (*ConversationRecord, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity cannot be empty")
	}

	lock := s.getUserLock(identity)
	lock.Lock()
	defer lock.Unlock()

	return s.loadRecord(ctx, identity), nil
}

// Append adds a message to the record, compacts when the window has grown
// past the threshold and persists the result synchronously. Compaction
// failures are logged and never surfaced; persistence failures are returned.
func (s *Store) Append(ctx context.Context, identity, role, content string) error {
	if identity == "" {
		return fmt.Errorf("identity cannot be empty")
	}

	lock := s.getUserLock(identity)
	lock.Lock()
	defer lock.Unlock()

	record := s.loadRecord(ctx, identity)
	record.Messages = append(record.Messages, StoredMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})

	if len(record.Messages) > s.compactionThreshold {
		s.compact(ctx, record)
	}

	record.UpdatedAt = time.Now().UTC()
	if err := s.writeRecord(ctx, record); err != nil {
		return fmt.Errorf("failed to persist conversation record: %w", err)
	}

	return nil
}

// Recent returns the last n messages in chronological order. n <= 0 falls
// back to the default window.
func (s *Store) Recent(ctx context.Context, identity string, n int) ([]StoredMessage, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity cannot be empty")
	}
	if n <= 0 {
		n = DefaultRecentWindow
	}

	lock := s.getUserLock(identity)
	lock.Lock()
	defer lock.Unlock()

	record := s.loadRecord(ctx, identity)
	if len(record.Messages) <= n {
		return append([]StoredMessage(nil), record.Messages...), nil
	}
	return append([]StoredMessage(nil), record.Messages[len(record.Messages)-n:]...), nil
}

// Summary returns the current durable summary for an identity.
func (s *Store) Summary(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("identity cannot be empty")
	}

	lock := s.getUserLock(identity)
	lock.Lock()
	defer lock.Unlock()

	return s.loadRecord(ctx, identity).Summary, nil
}

// compact condenses the record through the summarizer. The record is only
// mutated on success so a failed summarization leaves it untouched.
func (s *Store) compact(ctx context.Context, record *ConversationRecord) {
	if s.summarizer == nil {
		s.log.Debug("No summarizer configured, skipping compaction",
			logger.IdentityField(record.Identity),
			logger.IntField("messages_count", len(record.Messages)))
		return
	}

	summary, err := s.summarizer.Summarize(ctx, record.Summary, record.Messages)
	if err != nil {
		s.log.Warn("Conversation compaction failed, keeping full window",
			logger.IdentityField(record.Identity),
			logger.IntField("messages_count", len(record.Messages)),
			logger.ErrorField(err))
		if s.metrics != nil && s.metrics.CompactionFailuresCounter != nil {
			s.metrics.CompactionFailuresCounter.Inc()
		}
		return
	}

	record.Summary = summary
	if len(record.Messages) > s.retainedTail {
		record.Messages = append([]StoredMessage(nil), record.Messages[len(record.Messages)-s.retainedTail:]...)
	}

	s.log.Info("Compacted conversation record",
		logger.IdentityField(record.Identity),
		logger.IntField("retained_messages", len(record.Messages)))
	if s.metrics != nil && s.metrics.CompactionsCounter != nil {
		s.metrics.CompactionsCounter.Inc()
	}
}

// loadRecord reads a record from storage, treating missing or corrupt state
// as a fresh empty record.
func (s *Store) loadRecord(ctx context.Context, identity string) *ConversationRecord {
	fresh := &ConversationRecord{Identity: identity}

	path := s.recordPath(identity)
	exists, err := s.fileProvider.Exists(ctx, path)
	if err != nil {
		s.log.Warn("Failed to check conversation record, starting fresh",
			logger.IdentityField(identity),
			logger.ErrorField(err))
		return fresh
	}
	if !exists {
		return fresh
	}

	data, err := s.fileProvider.Read(ctx, path)
	if err != nil {
		s.log.Warn("Failed to read conversation record, starting fresh",
			logger.IdentityField(identity),
			logger.ErrorField(err))
		return fresh
	}

	var record ConversationRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.log.Warn("Corrupt conversation record, starting fresh",
			logger.IdentityField(identity),
			logger.ErrorField(err))
		return fresh
	}

	record.Identity = identity
	return &record
}

// writeRecord persists a record as indented JSON.
func (s *Store) writeRecord(ctx context.Context, record *ConversationRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation record: %w", err)
	}

	return s.fileProvider.Write(ctx, s.recordPath(record.Identity), data)
}

// getUserLock returns an identity-specific lock, creating it if necessary.
func (s *Store) getUserLock(identity string) *sync.Mutex {
	s.userLockMux.Lock()
	defer s.userLockMux.Unlock()

	if lock, exists := s.userLocks[identity]; exists {
		return lock
	}

	lock := &sync.Mutex{}
	s.userLocks[identity] = lock
	return lock
}

// recordPath returns the storage path for an identity's record.
func (s *Store) recordPath(identity string) string {
	return fmt.Sprintf("records/%s.json", sanitizeIdentity(identity))
}

// sanitizeIdentity maps an identity to a filesystem and S3 safe file name.
func sanitizeIdentity(identity string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '@', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, identity)
}
