package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/SageGlitchy/CMart/internal/model"

	"github.com/go-redis/redis/v8"
)

// TrendingCache keeps a rolling per-day view score in a Redis sorted set.
// Everything here is best-effort: a dead Redis degrades the trending page,
// never a write path.
type TrendingCache struct {
	client *redis.Client
	now    func() time.Time
}

func NewTrendingCache(client *redis.Client) *TrendingCache {
	return &TrendingCache{client: client, now: time.Now}
}

func (t *TrendingCache) key() string {
	return fmt.Sprintf("trending:%s", t.now().Format("2006-01-02"))
}

// Bump adds one view to the listing's score for today.
func (t *TrendingCache) Bump(ctx context.Context, listingID string) {
	key := t.key()
	pipe := t.client.Pipeline()
	pipe.ZIncrBy(ctx, key, 1, listingID)
	pipe.Expire(ctx, key, 48*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[TRENDING] bump failed: %v", err)
	}
}

// Top returns the highest-scored listings for today.
func (t *TrendingCache) Top(ctx context.Context, limit int) ([]model.TrendingEntry, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	zs, err := t.client.ZRevRangeWithScores(ctx, t.key(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]model.TrendingEntry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, model.TrendingEntry{ListingID: id, Score: z.Score})
	}
	return entries, nil
}
