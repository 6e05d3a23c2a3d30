// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey prefixes the keys used by RedisStore.
const DefaultRedisKey = "adsession:outbox"

// RedisStore schedules entries in a sorted set scored by next attempt
// (unix milliseconds) and keeps their payloads in a hash.
type RedisStore struct {
	client  *redis.Client
	zkey    string
	hashKey string
}

func OpenRedisStore(addr, key string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("outbox: redis backend requires an address")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("outbox: redis connection failed: %w", err)
	}
	return &RedisStore{client: client, zkey: key + ":due", hashKey: key + ":entries"}, nil
}

func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return ErrInvalidKey
	}
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.hashKey, e.ID, buf)
		p.ZAdd(ctx, s.zkey, redis.Z{Score: float64(e.NextAttempt.UnixMilli()), Member: e.ID})
		return nil
	})
	return err
}

func (s *RedisStore) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	by := &redis.ZRangeBy{Min: "-inf", Max: strconv.FormatInt(now.UnixMilli(), 10)}
	if limit > 0 {
		by.Count = int64(limit)
	}
	ids, err := s.client.ZRangeByScore(ctx, s.zkey, by).Result()
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	vals, err := s.client.HMGet(ctx, s.hashKey, ids...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisStore) get(ctx context.Context, id string) (Entry, error) {
	var e Entry
	raw, err := s.client.HGet(ctx, s.hashKey, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	return e, json.Unmarshal(raw, &e)
}

func (s *RedisStore) Ack(ctx context.Context, id string) error {
	n, err := s.client.HDel(ctx, s.hashKey, id).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return s.client.ZRem(ctx, s.zkey, id).Err()
}

func (s *RedisStore) Retry(ctx context.Context, id string, next time.Time, lastErr string) error {
	e, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	e.Attempts++
	e.NextAttempt = next
	e.LastError = lastErr
	return s.Put(ctx, e)
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.zkey).Result()
	return int(n), err
}

func (s *RedisStore) Close() error { return s.client.Close() }
