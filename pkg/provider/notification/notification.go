// Package notification delivers operator and reviewer messages.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Severity string

const (
	SeverityInfo Severity = "info"
	SeverityHigh Severity = "high"
)

// Message is one notification.
type Message struct {
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Severity  Severity          `json:"severity"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notifier delivers messages. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the log; high severity logs at error level.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	level := slog.LevelInfo
	if msg.Severity == SeverityHigh {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, msg.Subject, "body", msg.Body, "severity", msg.Severity, "metadata", msg.Metadata)
	return nil
}

// Recorder keeps every message in memory, for tests.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}
