package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go-warehouse-fulfillment/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const itemCachePrefix = "warehouse:item:"

// cachedItemRepo is a read-through redis cache in front of the item master.
type cachedItemRepo struct {
	next   ItemRepository
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedItemRepo wraps next with a redis cache. A nil client disables caching.
func NewCachedItemRepo(next ItemRepository, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) ItemRepository {
	if rdb == nil {
		return next
	}
	return &cachedItemRepo{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (r *cachedItemRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	key := itemCachePrefix + id.String()

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var item model.Item
		if jsonErr := json.Unmarshal(raw, &item); jsonErr == nil {
			return &item, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// cache outage must not fail the lookup
		r.logger.Warn("item cache read failed", zap.String("item_id", id.String()), zap.Error(err))
	}

	item, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payload, jsonErr := json.Marshal(item); jsonErr == nil {
		if setErr := r.rdb.Set(ctx, key, payload, r.ttl).Err(); setErr != nil {
			r.logger.Warn("item cache write failed", zap.String("item_id", id.String()), zap.Error(setErr))
		}
	}
	return item, nil
}

func (r *cachedItemRepo) Create(ctx context.Context, item *model.Item) error {
	if err := r.next.Create(ctx, item); err != nil {
		return err
	}
	r.rdb.Del(ctx, itemCachePrefix+item.ID.String())
	return nil
}
