package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/metrics"
)

var _ repository.AddressDirectory = (*AddressRepo)(nil)

// AddressRepo stores chat addresses in chat_addresses, keyed by user_id.
type AddressRepo struct {
	pool *pgxpool.Pool
}

func NewAddressRepo(pool *pgxpool.Pool) *AddressRepo {
	return &AddressRepo{pool: pool}
}

func (r *AddressRepo) RecordAddress(ctx context.Context, userID, address string) error {
	e, err := model.NewAddressEntry(userID, address)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO chat_addresses (user_id, address, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET address = EXCLUDED.address, updated_at = EXCLUDED.updated_at;`
	if _, err := execSQL(ctx, r.pool, repository.NoTX, q, e.UserID, e.Address, e.UpdatedAt); err != nil {
		metrics.IncDirectoryOp("postgres", "error")
		return fmt.Errorf("record address: %w", err)
	}
	metrics.IncDirectoryOp("postgres", "record")
	return nil
}

func (r *AddressRepo) LookupAddress(ctx context.Context, userID string) (string, bool, error) {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return "", false, err
	}
	row, err := pickRow(ctx, r.pool, repository.NoTX, `SELECT address FROM chat_addresses WHERE user_id = $1;`, userID)
	if err != nil {
		return "", false, err
	}
	var addr string
	if err := row.Scan(&addr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			metrics.IncDirectoryOp("postgres", "lookup_miss")
			return "", false, nil
		}
		metrics.IncDirectoryOp("postgres", "error")
		return "", false, fmt.Errorf("lookup address: %w", err)
	}
	metrics.IncDirectoryOp("postgres", "lookup_hit")
	return addr, true, nil
}

func (r *AddressRepo) EvictAddress(ctx context.Context, userID string) error {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return err
	}
	if _, err := execSQL(ctx, r.pool, repository.NoTX, `DELETE FROM chat_addresses WHERE user_id = $1;`, userID); err != nil {
		metrics.IncDirectoryOp("postgres", "error")
		return fmt.Errorf("evict address: %w", err)
	}
	metrics.IncDirectoryOp("postgres", "evict")
	return nil
}
