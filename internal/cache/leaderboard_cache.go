package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/prephub/contests/internal/domain"
)

const keyPrefix = "leaderboard:"

// LeaderboardKey is both the cache key and the pub/sub channel of a contest
func LeaderboardKey(contestID uuid.UUID) string {
	return keyPrefix + contestID.String()
}

// redisLeaderboardCache implements domain.LeaderboardCache on redis
type redisLeaderboardCache struct {
	client *redis.Client
}

// NewRedisLeaderboardCache stores snapshots as JSON strings with a TTL
func NewRedisLeaderboardCache(client *redis.Client) domain.LeaderboardCache {
	return &redisLeaderboardCache{client: client}
}

func (c *redisLeaderboardCache) Get(ctx context.Context, contestID uuid.UUID) (*domain.Leaderboard, error) {
	raw, err := c.client.Get(ctx, LeaderboardKey(contestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard cache: %w", err)
	}

	var board domain.Leaderboard
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, fmt.Errorf("decoding leaderboard cache: %w", err)
	}
	return &board, nil
}

func (c *redisLeaderboardCache) Set(ctx context.Context, board *domain.Leaderboard, ttl time.Duration) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, LeaderboardKey(board.ContestID), raw, ttl).Err()
}

// Publish pushes the snapshot to subscribers of the contest channel
func (c *redisLeaderboardCache) Publish(ctx context.Context, board *domain.Leaderboard) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, LeaderboardKey(board.ContestID), raw).Err()
}

// noopLeaderboardCache always misses
type noopLeaderboardCache struct{}

// NewNoopLeaderboardCache is used when redis is disabled
func NewNoopLeaderboardCache() domain.LeaderboardCache {
	return noopLeaderboardCache{}
}

func (noopLeaderboardCache) Get(context.Context, uuid.UUID) (*domain.Leaderboard, error) {
	return nil, nil
}

func (noopLeaderboardCache) Set(context.Context, *domain.Leaderboard, time.Duration) error {
	return nil
}

func (noopLeaderboardCache) Publish(context.Context, *domain.Leaderboard) error {
	return nil
}
