package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "al"

// ErrRedisUnavailable wraps transport-level store failures.
var ErrRedisUnavailable = errors.New("audit store unavailable")

// Store persists audit entries in Redis with a fixed retention window.
// Entries carry their own TTL and every index zset is trimmed on append,
// so expiry is entirely delegated to the store.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewStore creates a Store with the given retention window.
func NewStore(redisClient redis.UniversalClient, retention time.Duration) *Store {
	return &Store{
		redis:     redisClient,
		prefix:    keyPrefix,
		retention: retention,
	}
}

func (s *Store) entryKey(id string) string {
	return s.prefix + ":e:" + id
}

func (s *Store) timelineKey() string {
	return s.prefix + ":t"
}

func (s *Store) actorKey(email string) string {
	return s.prefix + ":a:" + email
}

func (s *Store) actorFailureKey(email string) string {
	return s.prefix + ":f:" + email
}

func (s *Store) ipFailureKey(ip string) string {
	return s.prefix + ":ip:" + ip
}

func (s *Store) actionKey(action Action) string {
	return s.prefix + ":c:" + string(action)
}

// Append writes one entry and updates every index it belongs to in a single
// round trip. Entries are immutable: there is no update or delete path.
func (s *Store) Append(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	score := float64(entry.Timestamp.Unix())
	member := redis.Z{Score: score, Member: entry.ID}
	horizon := strconv.FormatInt(entry.Timestamp.Add(-s.retention).Unix(), 10)

	indexes := []string{s.timelineKey(), s.actionKey(entry.Action)}
	if entry.Email != "" {
		indexes = append(indexes, s.actorKey(entry.Email))
		if !entry.Success {
			indexes = append(indexes, s.actorFailureKey(entry.Email))
		}
	}
	if !entry.Success && entry.IP != "" && entry.IP != "unknown" {
		indexes = append(indexes, s.ipFailureKey(entry.IP))
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(entry.ID), data, s.retention)
		for _, key := range indexes {
			pipe.ZAdd(ctx, key, member)
			pipe.ZRemRangeByScore(ctx, key, "-inf", "("+horizon)
			pipe.Expire(ctx, key, s.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ListByActor returns entries for the given actor email, newest first.
func (s *Store) ListByActor(ctx context.Context, email string, offset, limit int64) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	ids, err := s.redis.ZRevRange(ctx, s.actorKey(email), offset, offset+limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.fetch(ctx, ids)
}

// FailuresByActor returns failed entries for the given actor email inside
// the trailing window, newest first.
func (s *Store) FailuresByActor(ctx context.Context, email string, window time.Duration) ([]*Entry, error) {
	return s.failuresSince(ctx, s.actorFailureKey(email), window)
}

// FailuresByIP returns failed entries originating from the given IP inside
// the trailing window, newest first.
func (s *Store) FailuresByIP(ctx context.Context, ip string, window time.Duration) ([]*Entry, error) {
	return s.failuresSince(ctx, s.ipFailureKey(ip), window)
}

func (s *Store) failuresSince(ctx context.Context, key string, window time.Duration) ([]*Entry, error) {
	since := strconv.FormatInt(time.Now().Add(-window).Unix(), 10)

	ids, err := s.redis.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: since,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.fetch(ctx, ids)
}

// CountAction returns how many entries carry the given action inside the
// trailing window.
func (s *Store) CountAction(ctx context.Context, action Action, window time.Duration) (int64, error) {
	since := strconv.FormatInt(time.Now().Add(-window).Unix(), 10)

	count, err := s.redis.ZCount(ctx, s.actionKey(action), since, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count, nil
}

func (s *Store) fetch(ctx context.Context, ids []string) ([]*Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	entries := make([]*Entry, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Entry TTL fired before the index trim did. Skip the hole.
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}
