package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
)

// BotFacade composes usecases into high-level bot commands.
// Methods return strings so the Telegram adapter just forwards them to the chat.
type BotFacade struct {
	Directory repository.AddressDirectory
	Notifier  NotifierIface
	Services  ServiceHandlerIface
}

func NewBotFacade(directory repository.AddressDirectory, notifier NotifierIface, services ServiceHandlerIface) *BotFacade {
	return &BotFacade{Directory: directory, Notifier: notifier, Services: services}
}

// RememberChat records the chat the user just wrote from. Called for every inbound update.
func (b *BotFacade) RememberChat(ctx context.Context, tgID, chatID int64) error {
	if b.Directory == nil {
		return fmt.Errorf("address directory not available")
	}
	return b.Directory.RecordAddress(ctx, strconv.FormatInt(tgID, 10), strconv.FormatInt(chatID, 10))
}

// HandleStart returns the welcome text. The address itself is recorded by RememberChat.
func (b *BotFacade) HandleStart(ctx context.Context, firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hello %s!\nYou will now receive updates from the Mini App here.\nUse /stop to turn them off.", name)
}

// HandleStop forgets the user's chat so no further notifications are sent.
func (b *BotFacade) HandleStop(ctx context.Context, tgID int64) (string, error) {
	if b.Directory == nil {
		return "", fmt.Errorf("address directory not available")
	}
	if err := b.Directory.EvictAddress(ctx, strconv.FormatInt(tgID, 10)); err != nil {
		return "", fmt.Errorf("evict address: %w", err)
	}
	return "Notifications are off. Send /start to turn them back on.", nil
}

// HandleStatus tells the user whether the bot can reach them.
func (b *BotFacade) HandleStatus(ctx context.Context, tgID int64) (string, error) {
	if b.Directory == nil {
		return "", fmt.Errorf("address directory not available")
	}
	_, found, err := b.Directory.LookupAddress(ctx, strconv.FormatInt(tgID, 10))
	if err != nil {
		return "", fmt.Errorf("lookup address: %w", err)
	}
	if !found {
		return "Notifications are off. Send /start to turn them on.", nil
	}
	return "Notifications are on.", nil
}

// HandleService runs a Mini App service on behalf of a chat user.
func (b *BotFacade) HandleService(ctx context.Context, user model.MiniAppUser, service model.ServiceType) (string, error) {
	if b.Services == nil {
		return "", fmt.Errorf("service usecase not available")
	}
	resp, err := b.Services.Handle(ctx, &model.ServiceRequest{Service: service, User: user})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySubscribed) {
			return "You're already subscribed!", nil
		}
		return "", err
	}
	if resp.URL != "" {
		return resp.Message + "\n" + resp.URL, nil
	}
	return resp.Message, nil
}

// HandleAdminNotify parses "<user_id> <text>" and reports the delivery outcome.
func (b *BotFacade) HandleAdminNotify(ctx context.Context, args string) (string, error) {
	if b.Notifier == nil {
		return "", fmt.Errorf("notification usecase not available")
	}
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return "Usage: /notify <user_id> <message>", nil
	}
	res, err := b.Notifier.Notify(ctx, parts[0], parts[1])
	if err != nil {
		return "", err
	}
	if res.Delivered {
		return fmt.Sprintf("Delivered to %s.", parts[0]), nil
	}
	return fmt.Sprintf("Not delivered to %s (%s).", parts[0], res.Reason), nil
}
