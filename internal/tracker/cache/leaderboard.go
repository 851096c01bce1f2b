package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/SakuraBurst/questtracker/internal/tracker/types"
)

const leaderboardKey = "questtracker:leaderboard"

var ErrCacheMiss = errors.New("cache miss")

// LeaderboardCache stores the computed leaderboard as a single JSON value with a TTL.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "client.Ping failed: ")
	}
	return client, nil
}

func (l *LeaderboardCache) GetLeaderboard(ctx context.Context) ([]*types.LeaderboardEntry, error) {
	val, err := l.client.Get(ctx, leaderboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, errors.Wrap(err, "client.Get failed: ")
	}
	var entries []*types.LeaderboardEntry
	if err := json.Unmarshal(val, &entries); err != nil {
		return nil, errors.Wrap(err, "json.Unmarshal failed: ")
	}
	return entries, nil
}

func (l *LeaderboardCache) SetLeaderboard(ctx context.Context, entries []*types.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "json.Marshal failed: ")
	}
	return l.client.Set(ctx, leaderboardKey, data, l.ttl).Err()
}

func (l *LeaderboardCache) InvalidateLeaderboard(ctx context.Context) error {
	return l.client.Del(ctx, leaderboardKey).Err()
}

func (l *LeaderboardCache) Close() error {
	return l.client.Close()
}

// Nop is used when redis is not configured; every read is a miss.
type Nop struct{}

func (Nop) GetLeaderboard(context.Context) ([]*types.LeaderboardEntry, error) {
	return nil, ErrCacheMiss
}

func (Nop) SetLeaderboard(context.Context, []*types.LeaderboardEntry) error { return nil }

func (Nop) InvalidateLeaderboard(context.Context) error { return nil }

func (Nop) Close() error { return nil }
