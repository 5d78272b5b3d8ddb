package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/metrics"
	red "telegram-miniapp/internal/infra/redis"
)

var _ repository.AddressDirectory = (*addressRepoCacheDecorator)(nil)

// addressRepoCacheDecorator puts a Redis read-through cache in front of another directory.
// Absent users are not cached, so a fresh RecordAddress is visible on the next lookup.
// Every write bumps a per-user version; a lookup that saw the version change while it
// was reading the inner directory drops the value it just cached.
type addressRepoCacheDecorator struct {
	inner repository.AddressDirectory
	cache red.RedisClient
	ttl   time.Duration
}

func NewAddressRepoCacheDecorator(inner repository.AddressDirectory, cache red.RedisClient, ttl time.Duration) repository.AddressDirectory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &addressRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func addressCacheKey(userID string) string { return fmt.Sprintf("chat_address:%s", userID) }

func addressVersionKey(userID string) string { return fmt.Sprintf("chat_address_ver:%s", userID) }

// Writes invalidate before and after the inner write.
func (d *addressRepoCacheDecorator) RecordAddress(ctx context.Context, userID, address string) error {
	if err := model.ValidateAddress(userID, address); err != nil {
		return err
	}
	id, _ := model.NormalizeUserID(userID)
	key := addressCacheKey(id)
	_ = d.cache.Del(ctx, key)
	if err := d.inner.RecordAddress(ctx, userID, address); err != nil {
		return err
	}
	d.bumpVersion(ctx, id)
	_ = d.cache.Del(ctx, key)
	return nil
}

func (d *addressRepoCacheDecorator) LookupAddress(ctx context.Context, userID string) (string, bool, error) {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return "", false, err
	}
	key := addressCacheKey(userID)
	val, err := d.cache.Get(ctx, key)
	if err == nil && val != "" {
		metrics.IncDirectoryCacheLookup("hit")
		return val, true, nil
	}
	if err != nil && !errors.Is(err, red.Nil) {
		metrics.IncDirectoryCacheLookup("error")
	} else {
		metrics.IncDirectoryCacheLookup("miss")
	}

	version, verErr := d.version(ctx, userID)
	addr, found, err := d.inner.LookupAddress(ctx, userID)
	if err != nil || !found || verErr != nil {
		return addr, found, err
	}
	_ = d.cache.Set(ctx, key, addr, d.ttl)
	if now, err := d.version(ctx, userID); err != nil || now != version {
		metrics.IncDirectoryCacheLookup("stale")
		_ = d.cache.Del(ctx, key)
	}
	return addr, true, nil
}

func (d *addressRepoCacheDecorator) EvictAddress(ctx context.Context, userID string) error {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return err
	}
	key := addressCacheKey(userID)
	_ = d.cache.Del(ctx, key)
	if err := d.inner.EvictAddress(ctx, userID); err != nil {
		return err
	}
	d.bumpVersion(ctx, userID)
	_ = d.cache.Del(ctx, key)
	return nil
}

// version returns "" when no write has been seen within the version TTL.
func (d *addressRepoCacheDecorator) version(ctx context.Context, userID string) (string, error) {
	v, err := d.cache.Get(ctx, addressVersionKey(userID))
	if errors.Is(err, red.Nil) {
		return "", nil
	}
	return v, err
}

// The version must outlive any cached value, hence twice the cache TTL.
func (d *addressRepoCacheDecorator) bumpVersion(ctx context.Context, userID string) {
	key := addressVersionKey(userID)
	if _, err := d.cache.Incr(ctx, key); err != nil {
		return
	}
	_ = d.cache.Expire(ctx, key, 2*d.ttl)
}
