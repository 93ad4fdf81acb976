// Package redisdoc stores each message as a JSON document under its own key and
// serializes read-modify-write with WATCH/MULTI.
package redisdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"smsrelay/internal/domain"
	"smsrelay/internal/store"
)

const (
	keyPrefix         = "msg:"
	defaultMaxRetries = 8
)

var errRetriesExhausted = errors.New("redis optimistic transaction retries exhausted")

type Store struct {
	rdb        *redis.Client
	maxRetries int
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, maxRetries: defaultMaxRetries}
}

func key(id string) string { return keyPrefix + id }

func (s *Store) Create(ctx context.Context, rec *domain.Record) (store.Change, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return store.Change{}, err
	}
	ok, err := s.rdb.SetNX(ctx, key(rec.ID), b, 0).Result()
	if err != nil {
		return store.Change{}, err
	}
	if !ok {
		return store.Change{}, store.ErrExists
	}
	return store.Change{ID: rec.ID, After: rec.Clone()}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Record, error) {
	raw, err := s.rdb.Get(ctx, key(id)).Bytes()
	return decode(id, raw, err)
}

func (s *Store) Update(ctx context.Context, id string, p store.Patch) (store.Change, error) {
	var ch store.Change
	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key(id)).Bytes()
		before, err := decode(id, raw, err)
		if err != nil {
			return err
		}
		after := before.Clone()
		if err := store.Apply(after, p); err != nil {
			return err
		}
		b, err := json.Marshal(after)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), b, 0)
			return nil
		})
		if err != nil {
			return err
		}
		ch = store.Change{ID: id, Before: before, After: after}
		return nil
	})
	return ch, err
}

func (s *Store) Delete(ctx context.Context, id string) (store.Change, error) {
	var ch store.Change
	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key(id)).Bytes()
		before, err := decode(id, raw, err)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key(id))
			return nil
		})
		if err != nil {
			return err
		}
		ch = store.Change{ID: id, Before: before}
		return nil
	})
	return ch, err
}

// Ping is used by readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

// watch retries fn while another client modifies the key between WATCH and EXEC.
func (s *Store) watch(ctx context.Context, id string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < s.maxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", id, errRetriesExhausted)
}

func decode(id string, raw []byte, err error) (*domain.Record, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var rec domain.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	return &rec, nil
}
