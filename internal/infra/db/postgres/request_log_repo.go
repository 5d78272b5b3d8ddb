package postgres

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
)

var _ repository.RequestLogRepository = (*requestLogRepo)(nil)

type requestLogRepo struct {
	pool *pgxpool.Pool
}

func NewRequestLogRepo(pool *pgxpool.Pool) repository.RequestLogRepository {
	return &requestLogRepo{pool: pool}
}

// Append writes one row. IDs are ULIDs so rows sort by creation time.
func (r *requestLogRepo) Append(ctx context.Context, tx repository.Tx, e *model.RequestLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.CreatedAt), rand.Reader).String()
	}
	const q = `
INSERT INTO service_requests (id, created_at, user_id, first_name, service, status)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.CreatedAt, e.UserID, e.FirstName, e.Service, e.Status)
	return err
}
