package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// LearnerID uniquely identifies a learner in the progress domain.
type LearnerID string

// ActivityID identifies a single playable activity in the catalog.
type ActivityID string

// ModuleID identifies a content module (a group of activities).
type ModuleID string

// CompetencyID identifies a curriculum standard activities are tagged with.
type CompetencyID string

// Status describes how far along a learner is in a module.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// StatusFromCompletion derives the module status from a 0-100 completion value.
func StatusFromCompletion(completion int) Status {
	switch {
	case completion >= 100:
		return StatusCompleted
	case completion > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// AttemptInput is the boundary-supplied payload for one learner action.
// Optional fields are nil when the activity did not record them.
type AttemptInput struct {
	LearnerID    LearnerID      `json:"learner_id"`
	ActivityID   ActivityID     `json:"activity_id"`
	Success      bool           `json:"success"`
	Score        *float64       `json:"score,omitempty"`
	MaxScore     *float64       `json:"max_score,omitempty"`
	Accuracy     *float64       `json:"accuracy,omitempty"`
	TimeSpentSec *float64       `json:"time_spent_sec,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	SubmittedAt  time.Time      `json:"submitted_at,omitempty"`
}

// Attempt is the immutable persisted form of an AttemptInput. Module and
// competency ids are denormalized from the activity descriptor so history
// queries do not need a catalog join.
type Attempt struct {
	ID           string         `json:"id"`
	LearnerID    LearnerID      `json:"learner_id"`
	ActivityID   ActivityID     `json:"activity_id"`
	ModuleID     ModuleID       `json:"module_id"`
	CompetencyID CompetencyID   `json:"competency_id"`
	Success      bool           `json:"success"`
	Score        *float64       `json:"score,omitempty"`
	MaxScore     *float64       `json:"max_score,omitempty"`
	Accuracy     *float64       `json:"accuracy,omitempty"`
	TimeSpentSec *float64       `json:"time_spent_sec,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

// ModuleRef locates the module an activity belongs to.
type ModuleRef struct {
	ID    ModuleID `json:"id"`
	Slug  string   `json:"slug"`
	Title string   `json:"title"`
}

// StandardRef locates the curriculum standard an activity is tagged with.
type StandardRef struct {
	ID         CompetencyID `json:"id"`
	Code       string       `json:"code"`
	Competency string       `json:"competency"`
}

// Activity is the catalog descriptor the boundary resolves before a submission.
type Activity struct {
	ID       ActivityID  `json:"id"`
	Title    string      `json:"title"`
	Slug     string      `json:"slug"`
	Module   ModuleRef   `json:"module"`
	Standard StandardRef `json:"standard"`
}

// ModuleMetrics holds the statistics recomputed from a module-scoped history.
type ModuleMetrics struct {
	Completion      int       `json:"completion"`
	Status          Status    `json:"status"`
	Mastery         int       `json:"mastery"`
	CurrentStreak   int       `json:"current_streak"`
	BestStreak      int       `json:"best_streak"`
	AverageAccuracy float64   `json:"average_accuracy"`
	AverageTimeSec  float64   `json:"average_time_sec"`
	TotalAttempts   int       `json:"total_attempts"`
	LastActivityAt  time.Time `json:"last_activity_at"`
}

// CompetencyMetrics is the competency-scoped analogue of ModuleMetrics
// (no completion or status; a standard is never "finished").
type CompetencyMetrics struct {
	Mastery         int       `json:"mastery"`
	CurrentStreak   int       `json:"current_streak"`
	BestStreak      int       `json:"best_streak"`
	AverageAccuracy float64   `json:"average_accuracy"`
	AverageTimeSec  float64   `json:"average_time_sec"`
	TotalAttempts   int       `json:"total_attempts"`
	LastActivityAt  time.Time `json:"last_activity_at"`
}

// ModuleProgress is the persisted row for one (learner, module) pair.
type ModuleProgress struct {
	LearnerID LearnerID `json:"learner_id"`
	ModuleID  ModuleID  `json:"module_id"`
	ModuleMetrics
	UpdatedAt time.Time `json:"updated_at"`
}

// CompetencyProgress is the persisted row for one (learner, standard) pair.
type CompetencyProgress struct {
	LearnerID    LearnerID    `json:"learner_id"`
	CompetencyID CompetencyID `json:"competency_id"`
	CompetencyMetrics
	UpdatedAt time.Time `json:"updated_at"`
}

// UserGameState is the one-per-learner XP/level/streak row. XP never
// decreases; CurrentStreak counts consecutive successes platform-wide.
type UserGameState struct {
	LearnerID     LearnerID `json:"learner_id"`
	XP            int64     `json:"xp"`
	Level         int       `json:"level"`
	NextLevelAt   int64     `json:"next_level_at"`
	CurrentStreak int       `json:"current_streak"`
	LongestStreak int       `json:"longest_streak"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewUserGameState returns the zero state a learner has before any attempt.
func NewUserGameState(learner LearnerID) UserGameState {
	lp := LevelFromXP(0)
	return UserGameState{LearnerID: learner, Level: lp.Level, NextLevelAt: lp.NextLevelAt}
}

// AddXPSafe adds delta to base ensuring no signed overflow occurs.
func AddXPSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddXPSafe")
	}
	return base + delta, nil
}

// NormalizeLearnerID trims and lowercases learner identifiers.
func NormalizeLearnerID(id LearnerID) (LearnerID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty learner id")
	}
	return LearnerID(strings.ToLower(s)), nil
}

// ValidateRewardCode ensures a non-empty code with the charset used by the
// reward code scheme (alnum, dash, underscore, colon).
func ValidateRewardCode(code string) error {
	s := strings.TrimSpace(code)
	if s == "" {
		return errors.New("empty reward code")
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == ':' {
			continue
		}
		return errors.New("invalid reward code")
	}
	return nil
}

func clamp100(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}
