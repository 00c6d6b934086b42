package rtledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rtledger/rtledger/model"
)

const systemActor = "system"

// AuditSink accepts audit entries without blocking. Failing to record an entry never
// affects the operation that produced it.
type AuditSink interface {
	Record(entry model.ActionLog)
}

type actionLogWriter interface {
	RecordActionLog(ctx context.Context, entry model.ActionLog) error
}

// channelAuditSink buffers entries and writes them from a single goroutine.
type channelAuditSink struct {
	entries chan model.ActionLog
	writer  actionLogWriter
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newChannelAuditSink(writer actionLogWriter, size int) *channelAuditSink {
	if size <= 0 {
		size = 1
	}
	s := &channelAuditSink{
		entries: make(chan model.ActionLog, size),
		writer:  writer,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Record queues entry. A full buffer drops it with a warning.
func (s *channelAuditSink) Record(entry model.ActionLog) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logrus.WithField("description", entry.Description).Warn("audit sink closed, entry dropped")
		return
	}
	select {
	case s.entries <- entry:
	default:
		logrus.WithField("description", entry.Description).Warn("audit buffer full, entry dropped")
	}
}

func (s *channelAuditSink) run() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.writer.RecordActionLog(ctx, entry); err != nil {
			logrus.WithError(err).WithField("description", entry.Description).Warn("failed to record audit entry")
		}
		cancel()
	}
}

// Close stops accepting entries and waits for the buffer to drain.
func (s *channelAuditSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()
	<-s.done
}

func (l *RTLedger) logAction(actor, format string, args ...interface{}) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = systemActor
	}
	l.audit.Record(model.ActionLog{
		ID:          model.GenerateUUIDWithSuffix("log"),
		Actor:       actor,
		Description: fmt.Sprintf(format, args...),
		CreatedAt:   time.Now(),
	})
}

// ListActionLogs returns the newest audit entries, up to limit (the configured list
// limit when limit is not positive).
func (l *RTLedger) ListActionLogs(ctx context.Context, limit int) ([]model.ActionLog, error) {
	if limit <= 0 || limit > l.config.Audit.ListLimit {
		limit = l.config.Audit.ListLimit
	}
	return l.datasource.GetActionLogs(ctx, limit)
}

func (l *RTLedger) ClearActionLogs(ctx context.Context, actor string) error {
	if err := l.datasource.ClearActionLogs(ctx); err != nil {
		return err
	}
	l.logAction(actor, "Cleared the action log")
	return nil
}
