package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-miniapp/internal/domain/ports/adapter"
)

// Bot API descriptions returned with 400 when the chat can never be reached.
var goneChatDescriptions = []string{
	"chat not found",
	"chat_id is empty",
	"peer_id_invalid",
	"user not found",
}

// classifySendError wraps definitive rejections with adapter.ErrAddressInvalid.
// 403 always means the bot lost access to the chat (blocked, kicked, user deactivated).
// 429, 5xx and transport errors stay transient.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	code, desc, ok := apiError(err)
	if !ok {
		return err
	}
	switch {
	case code == http.StatusForbidden:
		return fmt.Errorf("telegram %d %s: %w", code, desc, adapter.ErrAddressInvalid)
	case code == http.StatusBadRequest && isGoneChat(desc):
		return fmt.Errorf("telegram %d %s: %w", code, desc, adapter.ErrAddressInvalid)
	default:
		return err
	}
}

func apiError(err error) (int, string, bool) {
	var pe *tgbotapi.Error
	if errors.As(err, &pe) {
		return pe.Code, pe.Message, true
	}
	var ve tgbotapi.Error
	if errors.As(err, &ve) {
		return ve.Code, ve.Message, true
	}
	return 0, "", false
}

func isGoneChat(desc string) bool {
	desc = strings.ToLower(desc)
	for _, d := range goneChatDescriptions {
		if strings.Contains(desc, d) {
			return true
		}
	}
	return false
}

// parseAddress turns a stored address back into a chat id. A malformed address can never
// be delivered to, so it is reported as invalid.
func parseAddress(address string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(address), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("malformed chat address %q: %w", address, adapter.ErrAddressInvalid)
	}
	return id, nil
}
