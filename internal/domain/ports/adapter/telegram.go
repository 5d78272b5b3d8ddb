package adapter

import (
	"context"
	"errors"
)

// ErrAddressInvalid is wrapped by NotificationChannel.Send when the channel has
// definitively rejected the address (chat deleted, bot blocked, unknown peer).
// Any other error is treated as transient.
var ErrAddressInvalid = errors.New("delivery address is no longer valid")

// NotificationChannel is the outbound transport. address is an opaque, channel-specific handle.
type NotificationChannel interface {
	Send(ctx context.Context, address, text string) error
}

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// TelegramBotAdapter extends the channel with Telegram-only rendering.
type TelegramBotAdapter interface {
	NotificationChannel
	SendButtons(ctx context.Context, address, text string, rows [][]InlineButton) error
}
