package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/logging"
	"telegram-miniapp/internal/infra/metrics"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

// NotificationUseCase delivers a message to a user through the chat address last seen for them.
type NotificationUseCase interface {
	// Notify never returns an error for delivery failures; only blank arguments fail.
	Notify(ctx context.Context, userID, message string) (model.DeliveryResult, error)
}

type notificationUC struct {
	directory repository.AddressDirectory
	channel   adapter.NotificationChannel
	log       *zerolog.Logger
	dev       bool
}

func NewNotificationUseCase(directory repository.AddressDirectory, channel adapter.NotificationChannel, logger *zerolog.Logger, dev bool) NotificationUseCase {
	return &notificationUC{directory: directory, channel: channel, log: logger, dev: dev}
}

func (n *notificationUC) Notify(ctx context.Context, userID, message string) (model.DeliveryResult, error) {
	defer logging.TraceDuration(n.log, "NotificationUC.Notify")()

	userID = strings.TrimSpace(userID)
	if userID == "" || strings.TrimSpace(message) == "" {
		return model.DeliveryResult{}, domain.ErrInvalidArgument
	}
	log := logging.With(ctx, n.log).With().Str("user_id", userID).Logger()

	address, found, err := n.directory.LookupAddress(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("address lookup failed, treating as absent")
		found = false
	}
	if !found {
		log.Info().Msg("no chat address recorded for user")
		return n.done(model.NotDelivered(model.DeliveryNoAddress)), nil
	}

	err = n.channel.Send(ctx, address, message)
	switch {
	case err == nil:
		log.Debug().Str("address", logging.Redact(address, n.dev)).Msg("notification delivered")
		return n.done(model.Delivered()), nil

	case errors.Is(err, adapter.ErrAddressInvalid):
		log.Info().Err(err).Str("address", logging.Redact(address, n.dev)).Msg("chat address rejected, evicting")
		if evErr := n.directory.EvictAddress(ctx, userID); evErr != nil {
			log.Error().Err(evErr).Msg("failed to evict stale chat address")
		}
		return n.done(model.NotDelivered(model.DeliveryInvalidAddress)), nil

	default:
		log.Warn().Err(err).Msg("notification channel failed")
		return n.done(model.NotDelivered(model.DeliveryChannelError)), nil
	}
}

func (n *notificationUC) done(res model.DeliveryResult) model.DeliveryResult {
	metrics.IncNotification(string(res.Reason))
	return res
}
