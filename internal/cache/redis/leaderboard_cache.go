package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/protocolsim/idlarena/internal/domain"
)

// leaderboardTTL bounds how long stale standings survive after a run stops
// updating them.
const leaderboardTTL = 24 * time.Hour

// LeaderboardCache implements domain.LeaderboardCache with a ZSET for rank
// queries and a JSON blob carrying the full entries.
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewLeaderboardCache creates a LeaderboardCache backed by the given Client.
func NewLeaderboardCache(c *Client) *LeaderboardCache {
	return &LeaderboardCache{rdb: c.Underlying()}
}

func leaderboardKey(runID string) string { return "leaderboard:" + runID }

func leaderboardBlobKey(runID string) string { return "leaderboard:" + runID + ":entries" }

// Update replaces the cached standings for a run.
func (lc *LeaderboardCache) Update(ctx context.Context, runID string, entries []domain.LeaderboardEntry) error {
	blob, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: marshal leaderboard: %w", err)
	}

	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		members = append(members, redis.Z{Score: float64(e.TotalPnL), Member: e.Agent})
	}

	pipe := lc.rdb.TxPipeline()
	pipe.Del(ctx, leaderboardKey(runID))
	if len(members) > 0 {
		pipe.ZAdd(ctx, leaderboardKey(runID), members...)
	}
	pipe.Set(ctx, leaderboardBlobKey(runID), blob, leaderboardTTL)
	pipe.Expire(ctx, leaderboardKey(runID), leaderboardTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: update leaderboard %s: %w", runID, err)
	}
	return nil
}

// Top returns the best n entries for a run in rank order.
func (lc *LeaderboardCache) Top(ctx context.Context, runID string, n int) ([]domain.LeaderboardEntry, error) {
	blob, err := lc.rdb.Get(ctx, leaderboardBlobKey(runID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: leaderboard %s: %w", runID, err)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, fmt.Errorf("redis: decode leaderboard %s: %w", runID, err)
	}
	if n > 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries, nil
}

// Compile-time interface check.
var _ domain.LeaderboardCache = (*LeaderboardCache)(nil)
