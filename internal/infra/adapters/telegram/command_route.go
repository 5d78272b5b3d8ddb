package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":  r.handleStartCommand,
		"status": r.handleStatusCommand,
		"stop":   r.handleStopCommand,
		"help":   r.handleHelpCommand,

		"notify": r.adminOnly(r.handleNotifyCommand),
	}
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.isAdmin(message.From.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			return r.reply(ctx, message.Chat.ID, r.translator.T("error_unauthorized"))
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

// /start: the address was already recorded by handleUpdate.
func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	return r.sendMainMenu(ctx, message.Chat.ID, r.facade.HandleStart(ctx, message.From.FirstName))
}

func (r *RealTelegramBotAdapter) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStatus(ctx, message.From.ID)
	if err != nil {
		r.log.Warn().Err(err).Msg("status lookup failed")
		text = r.translator.T("error_status")
	}
	return r.reply(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleStopCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleStop(ctx, message.From.ID)
	if err != nil {
		r.log.Warn().Err(err).Msg("stop failed")
		text = r.translator.T("error_stop")
	}
	return r.reply(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleHelpCommand(ctx context.Context, message *tgbotapi.Message) error {
	text := r.translator.T("help")
	if r.isAdmin(message.From.ID) {
		text += r.translator.T("help_admin")
	}
	return r.reply(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) handleNotifyCommand(ctx context.Context, message *tgbotapi.Message) error {
	text, err := r.facade.HandleAdminNotify(ctx, message.CommandArguments())
	if err != nil {
		text = r.translator.T("notify_failed", err.Error())
	}
	return r.reply(ctx, message.Chat.ID, text)
}

func (r *RealTelegramBotAdapter) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	rows := [][]adapter.InlineButton{
		{{Text: r.translator.T("button_book"), Data: "svc:book_download"}},
		{{Text: r.translator.T("button_one_on_one"), Data: "svc:one_on_one"}},
		{{Text: r.translator.T("button_stop"), Data: "cmd:stop"}},
	}
	return r.SendButtons(ctx, strconv.FormatInt(chatID, 10), intro, rows)
}
