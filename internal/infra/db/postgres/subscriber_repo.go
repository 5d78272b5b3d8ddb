package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
)

var _ repository.SubscriberRepository = (*subscriberRepo)(nil)

type subscriberRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepo(pool *pgxpool.Pool) repository.SubscriberRepository {
	return &subscriberRepo{pool: pool}
}

func (r *subscriberRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscriber) error {
	const q = `
INSERT INTO newsletter_subscribers (email, first_name, user_id, subscribed_at)
VALUES ($1, $2, $3, $4)`

	// The primary key on email rejects duplicates.
	_, err := execSQL(ctx, r.pool, tx, q, s.Email, s.FirstName, s.UserID, s.SubscribedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadySubscribed
		}
		return fmt.Errorf("save subscriber: %w", err)
	}
	return nil
}

func (r *subscriberRepo) ExistsByEmail(ctx context.Context, tx repository.Tx, email string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM newsletter_subscribers WHERE email = $1)`
	row, err := pickRow(ctx, r.pool, tx, q, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

// List returns subscribers ordered by signup time. limit <= 0 means no limit.
func (r *subscriberRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.Subscriber, error) {
	q := `
SELECT email, first_name, user_id, subscribed_at
  FROM newsletter_subscribers
 ORDER BY subscribed_at, email
OFFSET $1`
	args := []interface{}{offset}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []*model.Subscriber
	for rows.Next() {
		var s model.Subscriber
		if err := rows.Scan(&s.Email, &s.FirstName, &s.UserID, &s.SubscribedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
