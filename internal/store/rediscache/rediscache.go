package rediscache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"peerlink/internal/model"
)

// Store keeps each user's recommendation records as a redis list of JSON
// documents under prefix+user. It implements cache.RecordStore only; the
// social dataset lives elsewhere.
type Store struct {
	client *redis.Client
	prefix string
}

// New dials addr and verifies the connection.
func New(ctx context.Context, addr string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewWithClient(client, prefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Name() string { return "redis" }

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(user string) string { return s.prefix + user }

// LoadRecords returns the user's records, best first. A missing key is an empty set.
func (s *Store) LoadRecords(ctx context.Context, user string) ([]model.Record, error) {
	vals, err := s.client.LRange(ctx, s.key(user), 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, 0, len(vals))
	for _, v := range vals {
		var r model.Record
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	model.SortRecords(out)
	return out, nil
}

// ReplaceRecords swaps the list inside MULTI/EXEC so readers never see a partial set.
func (s *Store) ReplaceRecords(ctx context.Context, user string, recs []model.Record) error {
	vals := make([]any, 0, len(recs))
	for _, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			return err
		}
		vals = append(vals, b)
	}
	key := s.key(user)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(vals) > 0 {
			pipe.RPush(ctx, key, vals...)
		}
		return nil
	})
	return err
}

func (s *Store) DeleteRecords(ctx context.Context, user string) error {
	return s.client.Del(ctx, s.key(user)).Err()
}
