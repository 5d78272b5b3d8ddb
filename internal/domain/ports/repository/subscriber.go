package repository

import (
	"context"

	"telegram-miniapp/internal/domain/model"
)

// -----------------------------
// Newsletter subscribers
// -----------------------------

type SubscriberRepository interface {
	// Save returns domain.ErrAlreadySubscribed when the email is already present.
	Save(ctx context.Context, tx Tx, s *model.Subscriber) error
	ExistsByEmail(ctx context.Context, tx Tx, email string) (bool, error)
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.Subscriber, error)
}
