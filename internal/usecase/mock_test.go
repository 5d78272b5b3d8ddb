//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock NotificationChannel ----

type sentMessage struct {
	Address string
	Text    string
}

type MockChannel struct {
	mu   sync.Mutex
	Sent []sentMessage

	SendFunc func(ctx context.Context, address, text string) error
}

var _ adapter.NotificationChannel = (*MockChannel)(nil)

func (m *MockChannel) Send(ctx context.Context, address, text string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, sentMessage{Address: address, Text: text})
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, address, text)
	}
	return nil
}

func (m *MockChannel) Calls() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.Sent...)
}

// ---- Mock AddressDirectory ----

type MockDirectory struct {
	RecordFunc func(ctx context.Context, userID, address string) error
	LookupFunc func(ctx context.Context, userID string) (string, bool, error)
	EvictFunc  func(ctx context.Context, userID string) error
}

var _ repository.AddressDirectory = (*MockDirectory)(nil)

func (m *MockDirectory) RecordAddress(ctx context.Context, userID, address string) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, userID, address)
	}
	return nil
}

func (m *MockDirectory) LookupAddress(ctx context.Context, userID string) (string, bool, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, userID)
	}
	return "", false, nil
}

func (m *MockDirectory) EvictAddress(ctx context.Context, userID string) error {
	if m.EvictFunc != nil {
		return m.EvictFunc(ctx, userID)
	}
	return nil
}

// ---- Mock NotificationUseCase ----

type MockNotifier struct {
	mu    sync.Mutex
	Calls []sentMessage

	NotifyFunc func(ctx context.Context, userID, message string) (model.DeliveryResult, error)
}

func (m *MockNotifier) Notify(ctx context.Context, userID, message string) (model.DeliveryResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, sentMessage{Address: userID, Text: message})
	m.mu.Unlock()
	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, userID, message)
	}
	return model.Delivered(), nil
}

func (m *MockNotifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// ---- Mock RequestLogRepository ----

type MockRequestLog struct {
	mu      sync.Mutex
	Entries []model.RequestLogEntry
}

func (m *MockRequestLog) Append(ctx context.Context, tx repository.Tx, e *model.RequestLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, *e)
	return nil
}
