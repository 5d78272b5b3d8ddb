package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-miniapp/internal/domain/model"
)

type cbHandler func(ctx context.Context, from *tgbotapi.User, chatID int64, data string) error
type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	return map[string]cbHandler{
		"cmd:menu": r.menuCBRoute,
		"cmd:stop": r.stopCBRoute,
	}
}

// Prefix-match callbacks
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	return []prefixCB{
		{Prefix: "svc:", Fn: r.servicePrefixCBRoute},
	}
}

func (r *RealTelegramBotAdapter) menuCBRoute(ctx context.Context, from *tgbotapi.User, chatID int64, _ string) error {
	return r.sendMainMenu(ctx, chatID, r.translator.T("menu_intro"))
}

func (r *RealTelegramBotAdapter) stopCBRoute(ctx context.Context, from *tgbotapi.User, chatID int64, _ string) error {
	text, err := r.facade.HandleStop(ctx, from.ID)
	if err != nil {
		text = r.translator.T("error_stop")
	}
	return r.reply(ctx, chatID, text)
}

// servicePrefixCBRoute runs a Mini App service from an inline button. The newsletter
// needs an email address, so it is only offered in the Mini App.
func (r *RealTelegramBotAdapter) servicePrefixCBRoute(ctx context.Context, from *tgbotapi.User, chatID int64, data string) error {
	service := model.ServiceType(strings.TrimPrefix(data, "svc:"))
	if service == model.ServiceNewsletter {
		return r.reply(ctx, chatID, r.translator.T("newsletter_in_app"))
	}
	user := model.MiniAppUser{ID: from.ID, FirstName: from.FirstName, Username: from.UserName}
	text, err := r.facade.HandleService(ctx, user, service)
	if err != nil {
		r.log.Warn().Err(err).Str("service", string(service)).Msg("service request from chat failed")
		text = r.translator.T("error_generic")
	}
	// The service already notified the user; only reply when it has something extra.
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return r.reply(ctx, chatID, text)
}
