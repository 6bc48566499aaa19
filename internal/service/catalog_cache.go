package service

import (
	"context"
	"encoding/json"
	"time"

	"tiendapos/internal/dto"
	"tiendapos/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const catalogCacheTTL = 30 * time.Second

// CatalogCache keeps a per-user snapshot of the active catalog in Redis and
// fans out change notifications over pub/sub. Consumers of Watch receive a
// lazy, restartable sequence of FULL catalog snapshots — one per mutation —
// and re-derive their views on each emission; unsubscribing is the returned
// cancel func. With a nil Redis client the cache degrades to a straight repo
// passthrough (unit test mode).
type CatalogCache struct {
	rdb  *redis.Client
	repo repository.ProductRepository
}

func NewCatalogCache(rdb *redis.Client, repo repository.ProductRepository) *CatalogCache {
	return &CatalogCache{rdb: rdb, repo: repo}
}

func catalogKey(userID uuid.UUID) string     { return "catalog:snapshot:" + userID.String() }
func catalogChannel(userID uuid.UUID) string { return "catalog:updates:" + userID.String() }

// Snapshot returns the full active catalog for the user, served from Redis
// when fresh.
func (c *CatalogCache) Snapshot(ctx context.Context, userID uuid.UUID) ([]dto.ProductResponse, error) {
	if c != nil && c.rdb != nil {
		if raw, err := c.rdb.Get(ctx, catalogKey(userID)).Bytes(); err == nil {
			var snap []dto.ProductResponse
			if json.Unmarshal(raw, &snap) == nil {
				return snap, nil
			}
		}
	}

	products, err := c.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		snap = append(snap, *productToResponse(&products[i]))
	}

	if c != nil && c.rdb != nil {
		if raw, err := json.Marshal(snap); err == nil {
			if err := c.rdb.Set(ctx, catalogKey(userID), raw, catalogCacheTTL).Err(); err != nil {
				log.Debug().Err(err).Msg("catalog snapshot cache write failed")
			}
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot and notifies subscribers. Called after
// every product or stock write; best-effort, a Redis hiccup must never fail
// the write that triggered it.
func (c *CatalogCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, catalogKey(userID)).Err(); err != nil {
		log.Debug().Err(err).Msg("catalog cache invalidation failed")
	}
	if err := c.rdb.Publish(ctx, catalogChannel(userID), "changed").Err(); err != nil {
		log.Debug().Err(err).Msg("catalog change publish failed")
	}
}

// Watch subscribes to the user's catalog. The first emission is the current
// snapshot; every subsequent mutation produces a fresh full snapshot. Slow
// consumers skip intermediate snapshots rather than blocking the pipeline.
func (c *CatalogCache) Watch(ctx context.Context, userID uuid.UUID) (<-chan []dto.ProductResponse, func(), error) {
	if c == nil || c.rdb == nil {
		return nil, nil, ErrStoreUnavailable
	}

	pubsub := c.rdb.Subscribe(ctx, catalogChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan []dto.ProductResponse, 1)
	emit := func() {
		snap, err := c.Snapshot(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("catalog snapshot failed during watch")
			return
		}
		select {
		case out <- snap:
		default:
			// drop: a newer snapshot will follow
		}
	}

	go func() {
		defer close(out)
		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				emit()
			}
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return out, cancel, nil
}
