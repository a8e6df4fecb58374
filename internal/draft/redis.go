package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/domain"
	"github.com/redis/go-redis/v9"
)

// maxUpdateAttempts bounds optimistic retries of one Update. Every failed
// attempt means another update of the same draft committed.
const maxUpdateAttempts = 25

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// RedisStore keeps drafts as JSON with a sliding TTL; every Save pushes the
// expiry forward.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (r RedisStore) Get(ctx context.Context, id string) (*domain.OrderDraft, error) {
	data, err := r.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var d domain.OrderDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft failed: %w", err)
	}
	return &d, nil
}

func (r RedisStore) Save(ctx context.Context, d *domain.OrderDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft failed: %w", err)
	}
	if err := r.client.Set(ctx, draftKey(d.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Update runs fn inside WATCH/MULTI on the draft key and retries when another
// client changed the draft in between.
func (r RedisStore) Update(ctx context.Context, id string, fn func(*domain.OrderDraft) error) (*domain.OrderDraft, error) {
	key := draftKey(id)
	var updated *domain.OrderDraft

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperr.ErrDraftNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get failed: %w", err)
		}

		var d domain.OrderDraft
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("unmarshal draft failed: %w", err)
		}
		if err := fn(&d); err != nil {
			return err
		}
		data, err = json.Marshal(&d)
		if err != nil {
			return fmt.Errorf("marshal draft failed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = &d
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update draft %s: %w", id, apperr.ErrConflict)
}

func (r RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func draftKey(id string) string {
	return fmt.Sprintf("draft:%s", id)
}
