package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/infra/logging"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs messages instead of sending them. Used in dev and when bot.mode is noop.
// Every address is accepted.
type NoopBotAdapter struct {
	log   *zerolog.Logger
	delay time.Duration
	dev   bool
}

func NewNoopBotAdapter(logger *zerolog.Logger, dev bool) *NoopBotAdapter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &NoopBotAdapter{log: logging.Component(logger, "noop_telegram"), delay: 100 * time.Millisecond, dev: dev}
}

// Send simulates a short network call and respects ctx.
func (b *NoopBotAdapter) Send(ctx context.Context, address, text string) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Str("address", logging.Redact(address, b.dev)).Str("text", text).Msg("send")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, address, text string, rows [][]adapter.InlineButton) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	b.log.Info().Str("address", logging.Redact(address, b.dev)).Str("text", text).Int("button_rows", len(rows)).Msg("send buttons")
	return nil
}

// StartPolling has no updates to read; it blocks until ctx is done.
func (b *NoopBotAdapter) StartPolling(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *NoopBotAdapter) StopPolling() {}

func (b *NoopBotAdapter) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
