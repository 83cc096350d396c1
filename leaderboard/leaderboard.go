package leaderboard

import (
	"context"

	"progresskit/core"
)

// Entry represents one learner's standing.
type Entry struct {
	Learner core.LearnerID `json:"learner"`
	XP      int64          `json:"xp"`
}

// Board abstracts leaderboard operations. Implementations may be local or
// remote, so every call takes a context and can fail.
type Board interface {
	SetXP(ctx context.Context, learner core.LearnerID, xp int64) error
	Remove(ctx context.Context, learner core.LearnerID) error
	TopN(ctx context.Context, n int) ([]Entry, error)
	Get(ctx context.Context, learner core.LearnerID) (Entry, bool, error)
}
