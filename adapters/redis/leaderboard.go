package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"progresskit/core"
	"progresskit/leaderboard"
)

const boardKey = "leaderboard:xp"

// Leaderboard implements leaderboard.Board on a Redis sorted set, so many
// server instances share one ranking.
type Leaderboard struct {
	client *redis.Client
}

// NewLeaderboard creates a leaderboard with the provided configuration.
func NewLeaderboard(config Config) (*Leaderboard, error) {
	client, err := Connect(config)
	if err != nil {
		return nil, err
	}
	return &Leaderboard{client: client}, nil
}

// NewLeaderboardWithClient wraps an existing client (useful for testing).
func NewLeaderboardWithClient(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

func (l *Leaderboard) Close() error { return l.client.Close() }

func (l *Leaderboard) SetXP(ctx context.Context, learner core.LearnerID, xp int64) error {
	err := l.client.ZAdd(ctx, boardKey, redis.Z{Score: float64(xp), Member: string(learner)}).Err()
	if err != nil {
		return fmt.Errorf("failed to update leaderboard: %w", err)
	}
	return nil
}

func (l *Leaderboard) Remove(ctx context.Context, learner core.LearnerID) error {
	err := l.client.ZRem(ctx, boardKey, string(learner)).Err()
	if err != nil {
		return fmt.Errorf("failed to remove from leaderboard: %w", err)
	}
	return nil
}

func (l *Leaderboard) TopN(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := l.client.ZRevRangeWithScores(ctx, boardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	out := make([]leaderboard.Entry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, leaderboard.Entry{Learner: core.LearnerID(member), XP: int64(z.Score)})
	}
	return out, nil
}

func (l *Leaderboard) Get(ctx context.Context, learner core.LearnerID) (leaderboard.Entry, bool, error) {
	score, err := l.client.ZScore(ctx, boardKey, string(learner)).Result()
	if err == redis.Nil {
		return leaderboard.Entry{}, false, nil
	}
	if err != nil {
		return leaderboard.Entry{}, false, fmt.Errorf("failed to read leaderboard entry: %w", err)
	}
	return leaderboard.Entry{Learner: learner, XP: int64(score)}, true, nil
}

// Rank returns the learner's zero-based position, best first.
func (l *Leaderboard) Rank(ctx context.Context, learner core.LearnerID) (int64, bool, error) {
	rank, err := l.client.ZRevRank(ctx, boardKey, string(learner)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read leaderboard rank: %w", err)
	}
	return rank, true, nil
}

var _ leaderboard.Board = (*Leaderboard)(nil)
