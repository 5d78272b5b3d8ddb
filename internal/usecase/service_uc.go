package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/logging"
	"telegram-miniapp/internal/infra/metrics"
)

var _ ServiceUseCase = (*serviceUC)(nil)

const (
	msgBookReady        = "Your book is ready for download."
	msgOneOnOneReceived = "Your 1:1 request has been received! We'll contact you soon."
	msgNewsletterOK     = "Newsletter subscription confirmed"
	msgStartBotHint     = " Open the bot and press Start to get updates in Telegram."
)

// ServiceUseCase handles requests posted by the Mini App frontend.
type ServiceUseCase interface {
	Handle(ctx context.Context, req *model.ServiceRequest) (*model.ServiceResponse, error)
}

type ServiceOptions struct {
	BookURL  string
	AdminIDs []int64
}

type serviceUC struct {
	notifier NotificationUseCase
	channel  adapter.NotificationChannel
	subs     repository.SubscriberRepository
	requests repository.RequestLogRepository
	opts     ServiceOptions
	log      *zerolog.Logger
}

func NewServiceUseCase(
	notifier NotificationUseCase,
	channel adapter.NotificationChannel,
	subs repository.SubscriberRepository,
	requests repository.RequestLogRepository,
	opts ServiceOptions,
	logger *zerolog.Logger,
) ServiceUseCase {
	return &serviceUC{
		notifier: notifier,
		channel:  channel,
		subs:     subs,
		requests: requests,
		opts:     opts,
		log:      logger,
	}
}

func (uc *serviceUC) Handle(ctx context.Context, req *model.ServiceRequest) (resp *model.ServiceResponse, err error) {
	defer logging.TraceDuration(uc.log, "ServiceUC.Handle")()
	if req == nil || req.User.ID <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	defer func() {
		status := model.StatusSuccess
		if err != nil {
			status = model.StatusError
		}
		uc.record(ctx, req, status)
	}()

	switch req.Service {
	case model.ServiceBookDownload:
		return uc.bookDownload(ctx, req.User)
	case model.ServiceOneOnOne:
		return uc.oneOnOne(ctx, req.User)
	case model.ServiceNewsletter:
		return uc.newsletter(ctx, req.User)
	default:
		return nil, domain.ErrUnknownService
	}
}

func (uc *serviceUC) bookDownload(ctx context.Context, user model.MiniAppUser) (*model.ServiceResponse, error) {
	if uc.opts.BookURL == "" {
		return nil, fmt.Errorf("book download is not configured: %w", domain.ErrNotFound)
	}
	res := uc.notifyUser(ctx, user, fmt.Sprintf("%s\n%s", msgBookReady, uc.opts.BookURL))
	return success(msgBookReady, res, uc.opts.BookURL), nil
}

func (uc *serviceUC) oneOnOne(ctx context.Context, user model.MiniAppUser) (*model.ServiceResponse, error) {
	res := uc.notifyUser(ctx, user, msgOneOnOneReceived)

	text := fmt.Sprintf("New 1:1 request from %s (%s)", user.FirstName, user.DisplayUsername())
	for _, id := range uc.opts.AdminIDs {
		if err := uc.channel.Send(ctx, strconv.FormatInt(id, 10), text); err != nil {
			uc.log.Warn().Err(err).Int64("admin_id", id).Msg("failed to notify admin about 1:1 request")
		}
	}
	return success(msgOneOnOneReceived, res, ""), nil
}

func (uc *serviceUC) newsletter(ctx context.Context, user model.MiniAppUser) (*model.ServiceResponse, error) {
	sub, err := model.NewSubscriber(user.Email, user.FirstName, user.UserID())
	if err != nil {
		return nil, err
	}
	exists, err := uc.subs.ExistsByEmail(ctx, repository.NoTX, sub.Email)
	if err != nil {
		return nil, fmt.Errorf("check subscriber: %w", err)
	}
	if exists {
		return nil, domain.ErrAlreadySubscribed
	}
	if err := uc.subs.Save(ctx, repository.NoTX, sub); err != nil {
		if errors.Is(err, domain.ErrAlreadySubscribed) {
			return nil, err
		}
		return nil, fmt.Errorf("save subscriber: %w", err)
	}
	res := uc.notifyUser(ctx, user, msgNewsletterOK)
	return success(msgNewsletterOK, res, ""), nil
}

// notifyUser swallows argument errors; a missing address is reported through the result.
func (uc *serviceUC) notifyUser(ctx context.Context, user model.MiniAppUser, text string) model.DeliveryResult {
	res, err := uc.notifier.Notify(ctx, user.UserID(), text)
	if err != nil {
		uc.log.Error().Err(err).Int64("tg_id", user.ID).Msg("notify failed")
	}
	return res
}

func (uc *serviceUC) record(ctx context.Context, req *model.ServiceRequest, status string) {
	metrics.IncServiceRequest(string(req.Service), status)
	if uc.requests == nil {
		return
	}
	entry := &model.RequestLogEntry{
		UserID:    req.User.UserID(),
		FirstName: strings.TrimSpace(req.User.FirstName),
		Service:   string(req.Service),
		Status:    status,
	}
	if err := uc.requests.Append(ctx, repository.NoTX, entry); err != nil {
		uc.log.Warn().Err(err).Str("service", entry.Service).Msg("failed to append request log")
	}
}

func success(message string, res model.DeliveryResult, url string) *model.ServiceResponse {
	if !res.Delivered {
		message += msgStartBotHint
	}
	return &model.ServiceResponse{
		Status:    model.StatusSuccess,
		Message:   message,
		URL:       url,
		Delivered: res.Delivered,
	}
}
