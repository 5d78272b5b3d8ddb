package repository

import (
	"context"

	"telegram-miniapp/internal/domain/model"
)

// -----------------------------
// Service request log
// -----------------------------

type RequestLogRepository interface {
	Append(ctx context.Context, tx Tx, e *model.RequestLogEntry) error
}
