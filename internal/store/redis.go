package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"loom/internal/tree"
)

// RedisStore keeps each conversation as one JSON value plus a set of
// known ids for listing.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects using a redis URL and verifies the server is
// reachable.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client, used by tests.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "loom:"}
}

func (s *RedisStore) docKey(id string) string { return s.prefix + "doc:" + id }
func (s *RedisStore) setKey() string          { return s.prefix + "docs" }

func (s *RedisStore) Load(ctx context.Context, id string) (*tree.Document, error) {
	raw, err := s.client.Get(ctx, s.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	return decodeDocument(id, raw)
}

func (s *RedisStore) Save(ctx context.Context, id string, doc *tree.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", id, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(id), raw, 0)
		pipe.SAdd(ctx, s.setKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, s.docKey(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := s.client.SRem(ctx, s.setKey(), id).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	ids, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		doc, err := s.Load(ctx, id)
		if err != nil {
			continue // ids whose value expired or broke stay out of the listing
		}
		entries = append(entries, entryFor(id, doc))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UpdatedAt.After(entries[j].UpdatedAt) })
	return entries, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
