// Package redisstore keeps each todo as a JSON value under todo:<id> and relies
// on key expiry for TTLs. A sorted set scored by creation time gives List its order.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jaxxstorm/atlastodo/internal/todo"
	"go.uber.org/zap"
)

const (
	DefaultPrefix = "todo"
	indexSuffix   = ":index"

	maxUpdateAttempts = 3
)

type Store struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
	now    func() time.Time

	// beforeCommit runs between the read and the write of an update.
	beforeCommit func()
}

func NewClient(url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func New(client redis.UniversalClient, prefix string, logger *zap.Logger) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, prefix: prefix, logger: logger, now: time.Now}
}

func (s *Store) List(ctx context.Context) ([]todo.Todo, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read todo index: %w", err)
	}
	if len(ids) == 0 {
		return []todo.Todo{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read todos: %w", err)
	}

	out := make([]todo.Todo, 0, len(values))
	stale := []any{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		t, err := decode([]byte(raw))
		if err != nil {
			s.logger.Warn("skipping undecodable todo", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, t)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.logger.Warn("failed to prune expired todos from index", zap.Error(err))
		}
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, in todo.CreateInput) (todo.Todo, error) {
	t, err := todo.NewTodo(in, s.now())
	if err != nil {
		return todo.Todo{}, err
	}
	if err := s.write(ctx, t, true); err != nil {
		return todo.Todo{}, err
	}
	return t, nil
}

func (s *Store) Get(ctx context.Context, id string) (todo.Todo, error) {
	if _, err := todo.ParseID(id); err != nil {
		return todo.Todo{}, err
	}
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return todo.Todo{}, todo.NewNotFoundError()
	}
	if err != nil {
		return todo.Todo{}, fmt.Errorf("read todo %s: %w", id, err)
	}
	return decode(raw)
}

// Update rewrites the todo under WATCH so a concurrent delete is not undone.
func (s *Store) Update(ctx context.Context, id string, in todo.UpdateInput) (todo.Todo, error) {
	if _, err := todo.ParseID(id); err != nil {
		return todo.Todo{}, err
	}
	if err := todo.ValidateUpdate(in); err != nil {
		return todo.Todo{}, err
	}

	key := s.key(id)
	var updated todo.Todo
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return todo.NewNotFoundError()
		}
		if err != nil {
			return fmt.Errorf("read todo %s: %w", id, err)
		}
		current, err := decode(raw)
		if err != nil {
			return err
		}
		updated, err = todo.Apply(current, in, s.now())
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encode todo %s: %w", id, err)
		}
		if s.beforeCommit != nil {
			s.beforeCommit()
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.queueWrite(ctx, pipe, updated, encoded, false)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("todo changed during update, retrying", zap.String("id", id), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return todo.Todo{}, err
		}
		return updated, nil
	}
	return todo.Todo{}, fmt.Errorf("update todo %s: %w", id, redis.TxFailedErr)
}

func (s *Store) Delete(ctx context.Context, id string) (todo.Todo, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return todo.Todo{}, err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return todo.Todo{}, fmt.Errorf("delete todo %s: %w", id, err)
	}
	return t, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) write(ctx context.Context, t todo.Todo, index bool) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode todo %s: %w", t.ID, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.queueWrite(ctx, pipe, t, raw, index)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write todo %s: %w", t.ID, err)
	}
	return nil
}

// queueWrite stores t and resets its expiry; a plain SET drops any previous TTL.
func (s *Store) queueWrite(ctx context.Context, pipe redis.Pipeliner, t todo.Todo, raw []byte, index bool) {
	pipe.Set(ctx, s.key(t.ID), raw, 0)
	if t.ExpireAt != nil {
		pipe.PExpireAt(ctx, s.key(t.ID), *t.ExpireAt)
	}
	if index {
		pipe.ZAdd(ctx, s.indexKey(), &redis.Z{Score: float64(t.CreatedAt.UnixMilli()), Member: t.ID})
	}
}

func (s *Store) key(id string) string {
	return s.prefix + ":" + id
}

func (s *Store) indexKey() string {
	return s.prefix + indexSuffix
}

func decode(raw []byte) (todo.Todo, error) {
	var t todo.Todo
	if err := json.Unmarshal(raw, &t); err != nil {
		return todo.Todo{}, fmt.Errorf("decode todo: %w", err)
	}
	return t, nil
}
