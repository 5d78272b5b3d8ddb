package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
)

var _ repository.RequestLogRepository = (*RequestLog)(nil)

// RequestLog keeps the most recent entries in a bounded ring.
type RequestLog struct {
	mu      sync.Mutex
	entries []model.RequestLogEntry
	max     int
}

func NewRequestLog(max int) *RequestLog {
	if max <= 0 {
		max = 1000
	}
	return &RequestLog{max: max}
}

func (l *RequestLog) Append(ctx context.Context, tx repository.Tx, e *model.RequestLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *e)
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append([]model.RequestLogEntry(nil), l.entries[over:]...)
	}
	return nil
}

// Entries returns a copy, oldest first.
func (l *RequestLog) Entries() []model.RequestLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.RequestLogEntry(nil), l.entries...)
}
