package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-miniapp/internal/application"
	"telegram-miniapp/internal/config"
	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/infra/i18n"
	"telegram-miniapp/internal/infra/logging"
	"telegram-miniapp/internal/infra/metrics"
	red "telegram-miniapp/internal/infra/redis"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// botClient is the part of *tgbotapi.BotAPI the adapter uses.
type botClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RealTelegramBotAdapter polls updates, records the chat each user writes from,
// and delivers notifications to recorded chats.
type RealTelegramBotAdapter struct {
	bot         botClient
	cfg         *config.BotConfig
	facade      *application.BotFacade
	rateLimiter *red.RateLimiter
	translator  *i18n.Translator
	log         *zerolog.Logger

	adminIDsMap   map[int64]struct{}
	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealTelegramBotAdapter(cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, translator *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return newAdapter(bot, cfg, facade, rateLimiter, translator, logger)
}

func newAdapter(bot botClient, cfg *config.BotConfig, facade *application.BotFacade, rateLimiter *red.RateLimiter, translator *i18n.Translator, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if facade == nil {
		return nil, errors.New("bot facade is nil")
	}
	if translator == nil {
		return nil, errors.New("translator is nil")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	adminMap := make(map[int64]struct{}, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	return &RealTelegramBotAdapter{
		bot:           bot,
		cfg:           cfg,
		facade:        facade,
		rateLimiter:   rateLimiter,
		translator:    translator,
		log:           logging.Component(logger, "telegram"),
		adminIDsMap:   adminMap,
		updateWorkers: workers,
	}, nil
}

// StartPolling blocks until ctx is cancelled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context) error {
	if err := r.SetMenuCommands(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to set bot menu commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Warn().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				cancel()
				continue
			}
			select {
			case updateChan <- up:
			case <-ctx.Done():
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// Send delivers text to a chat id. Errors wrapping adapter.ErrAddressInvalid mean the
// chat can never be reached again.
func (r *RealTelegramBotAdapter) Send(ctx context.Context, address, text string) error {
	chatID, err := parseAddress(address)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err = r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return classifySendError(err)
}

// SendButtons sends a message with inline buttons.
// A button with URL opens a link, with Data sends callback data; otherwise its text is the data.
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, address, text string, rows [][]adapter.InlineButton) error {
	chatID, err := parseAddress(address)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kr)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if len(kbRows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	}
	_, err = r.bot.Send(msg)
	return classifySendError(err)
}

// SetMenuCommands publishes the command list shown in the Telegram client.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context) error {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Turn on notifications"},
		tgbotapi.BotCommand{Command: "status", Description: "Are notifications on?"},
		tgbotapi.BotCommand{Command: "stop", Description: "Turn off notifications"},
		tgbotapi.BotCommand{Command: "help", Description: "Show help"},
	)
	_, err := r.bot.Request(cmds)
	return err
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		metrics.IncTelegramUpdate("callback")
		return r.handleQuery(ctx, update.CallbackQuery)
	}

	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return nil
	}
	metrics.IncTelegramUpdate("message")
	ctx = logging.WithTgID(ctx, message.From.ID)
	if !isReadOnlyCommand(message) {
		r.rememberChat(ctx, message.From.ID, message.Chat.ID)
	}

	command := "message"
	if message.IsCommand() {
		command = "/" + message.Command()
	}
	if !r.allow(ctx, message.From.ID, command, 20) {
		return r.reply(ctx, message.Chat.ID, r.translator.T("rate_limited"))
	}

	if message.IsCommand() {
		if h, ok := r.commandRoutes()[message.Command()]; ok {
			return h(ctx, message)
		}
		return r.reply(ctx, message.Chat.ID, r.translator.T("unknown_command"))
	}
	return r.reply(ctx, message.Chat.ID, r.translator.T("plain_message"))
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query == nil || query.From == nil {
		return errors.New("invalid callback query")
	}

	// Stop the telegram spinner when we return
	defer func() { _, _ = r.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	if chatID == 0 {
		return nil
	}
	ctx = logging.WithTgID(ctx, query.From.ID)
	r.rememberChat(ctx, query.From.ID, chatID)

	data := strings.TrimSpace(query.Data)
	if !r.allow(ctx, query.From.ID, "cb:"+data, 30) {
		return r.reply(ctx, chatID, r.translator.T("rate_limited"))
	}

	if fn, ok := r.cbRoutes()[data]; ok {
		return fn(ctx, query.From, chatID, data)
	}
	for _, pr := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, pr.Prefix) {
			return pr.Fn(ctx, query.From, chatID, data)
		}
	}
	return fmt.Errorf("unknown callback data %q", data)
}

// isReadOnlyCommand reports commands that inspect the recorded address and so must not refresh it.
func isReadOnlyCommand(message *tgbotapi.Message) bool {
	return message.IsCommand() && message.Command() == "status"
}

// rememberChat records the inbound chat; failures must not block the reply.
func (r *RealTelegramBotAdapter) rememberChat(ctx context.Context, tgID, chatID int64) {
	if err := r.facade.RememberChat(ctx, tgID, chatID); err != nil {
		logging.With(ctx, r.log).Warn().Err(err).Msg("failed to record chat address")
	}
}

func (r *RealTelegramBotAdapter) allow(ctx context.Context, tgID int64, command string, limit int) bool {
	if r.rateLimiter == nil {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(tgID, command), limit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !allowed {
		metrics.IncRateLimitTriggered()
	}
	return allowed
}

func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, text string) error {
	return r.Send(ctx, strconv.FormatInt(chatID, 10), text)
}

func (r *RealTelegramBotAdapter) isAdmin(tgID int64) bool {
	_, ok := r.adminIDsMap[tgID]
	return ok
}
