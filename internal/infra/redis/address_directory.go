package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/metrics"
)

var _ repository.AddressDirectory = (*AddressDirectory)(nil)

const addressHashKey = "chat_address"

// AddressDirectory keeps user id -> chat address in a single Redis hash.
// HSET/HGET/HDEL are atomic per field, which gives per-key atomicity for free.
type AddressDirectory struct {
	cli *redis.Client
	key string
}

func NewAddressDirectory(c *Client) *AddressDirectory {
	return &AddressDirectory{cli: c.cli, key: addressHashKey}
}

func (d *AddressDirectory) RecordAddress(ctx context.Context, userID, address string) error {
	e, err := model.NewAddressEntry(userID, address)
	if err != nil {
		return err
	}
	if err := d.cli.HSet(ctx, d.key, e.UserID, e.Address).Err(); err != nil {
		metrics.IncDirectoryOp("redis", "error")
		return fmt.Errorf("record address: %w", err)
	}
	metrics.IncDirectoryOp("redis", "record")
	return nil
}

func (d *AddressDirectory) LookupAddress(ctx context.Context, userID string) (string, bool, error) {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return "", false, err
	}
	addr, err := d.cli.HGet(ctx, d.key, userID).Result()
	if errors.Is(err, redis.Nil) {
		metrics.IncDirectoryOp("redis", "lookup_miss")
		return "", false, nil
	}
	if err != nil {
		metrics.IncDirectoryOp("redis", "error")
		return "", false, fmt.Errorf("lookup address: %w", err)
	}
	metrics.IncDirectoryOp("redis", "lookup_hit")
	return addr, true, nil
}

func (d *AddressDirectory) EvictAddress(ctx context.Context, userID string) error {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return err
	}
	if err := d.cli.HDel(ctx, d.key, userID).Err(); err != nil {
		metrics.IncDirectoryOp("redis", "error")
		return fmt.Errorf("evict address: %w", err)
	}
	metrics.IncDirectoryOp("redis", "evict")
	return nil
}
