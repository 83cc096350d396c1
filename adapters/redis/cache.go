package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"progresskit/core"
	"progresskit/engine"
)

// SummaryCache implements engine.SummaryCache on Redis with a TTL, so a hot
// learner summary is rebuilt at most once per window.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache wraps an existing client. A non-positive ttl falls back to
// five minutes.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{client: client, ttl: ttl}
}

func summaryKey(learner core.LearnerID) string {
	return fmt.Sprintf("learner:%s:summary", learner)
}

func (c *SummaryCache) GetSummary(ctx context.Context, learner core.LearnerID) (*engine.LearnerSummary, bool) {
	data, err := c.client.Get(ctx, summaryKey(learner)).Bytes()
	if err != nil {
		return nil, false
	}
	var s engine.LearnerSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func (c *SummaryCache) SetSummary(ctx context.Context, learner core.LearnerID, s *engine.LearnerSummary) {
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	// Best effort; a failed write just means a rebuild on the next read.
	_ = c.client.Set(ctx, summaryKey(learner), data, c.ttl).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context, learner core.LearnerID) {
	_ = c.client.Del(ctx, summaryKey(learner)).Err()
}

var _ engine.SummaryCache = (*SummaryCache)(nil)
