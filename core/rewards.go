package core

import (
	"fmt"
	"time"
)

// RewardCategory is the closed set of unlock kinds the evaluator can mint.
type RewardCategory string

const (
	RewardModuleCompletion  RewardCategory = "module_completion"
	RewardModuleStreak      RewardCategory = "module_streak"
	RewardCompetencyMastery RewardCategory = "competency_mastery"
	RewardLevelUp           RewardCategory = "level_up"
	RewardXPMilestone       RewardCategory = "xp_milestone"
)

// Rarity grades a reward.
type Rarity string

const (
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// Reward is an immutable unlock record. Code is unique per learner; minting
// the same code twice must be a no-op at the persistence layer. The payload
// fields are typed per category rather than an open metadata map; only the
// fields for the reward's category are set.
type Reward struct {
	LearnerID LearnerID      `json:"learner_id"`
	Code      string         `json:"code"`
	Category  RewardCategory `json:"category"`
	Rarity    Rarity         `json:"rarity"`
	XPAwarded int64          `json:"xp_awarded"`

	ModuleID        ModuleID     `json:"module_id,omitempty"`
	CompetencyID    CompetencyID `json:"competency_id,omitempty"`
	StreakThreshold int          `json:"streak_threshold,omitempty"`
	Level           int          `json:"level,omitempty"`
	XPMilestone     int64        `json:"xp_milestone,omitempty"`
	Collectible     bool         `json:"collectible,omitempty"`

	UnlockedAt time.Time `json:"unlocked_at"`
}

// Snapshot bundles the three aggregates the evaluator compares. The "before"
// snapshot for a learner with no prior rows uses zero-valued aggregates.
type Snapshot struct {
	Module     ModuleProgress
	Competency CompetencyProgress
	User       UserGameState
}

// StreakThresholds are the per-module streak bars that mint a reward.
var StreakThresholds = []int{3, 5, 10}

const (
	masteryStrongBar = 80
	masteryEliteBar  = 95
	xpMilestoneStep  = 500
)

// EvaluateRewards compares a before and after snapshot and returns every
// reward whose threshold was crossed by this attempt. It never consults
// history: a bar already cleared before the attempt does not fire again,
// which makes the function safe to call unconditionally on every submission.
func EvaluateRewards(prev, next Snapshot, at time.Time) []Reward {
	var out []Reward
	learner := next.User.LearnerID

	if prev.Module.Completion < 100 && next.Module.Completion >= 100 {
		out = append(out, Reward{
			LearnerID:  learner,
			Code:       fmt.Sprintf("module:%s:completion", next.Module.ModuleID),
			Category:   RewardModuleCompletion,
			Rarity:     RarityEpic,
			ModuleID:   next.Module.ModuleID,
			UnlockedAt: at,
		})
	}

	for _, bar := range StreakThresholds {
		if prev.Module.CurrentStreak < bar && next.Module.CurrentStreak >= bar {
			out = append(out, Reward{
				LearnerID:       learner,
				Code:            fmt.Sprintf("module:%s:streak:%d", next.Module.ModuleID, bar),
				Category:        RewardModuleStreak,
				Rarity:          streakRarity(bar),
				XPAwarded:       int64(bar) * 40,
				ModuleID:        next.Module.ModuleID,
				StreakThreshold: bar,
				UnlockedAt:      at,
			})
		}
	}

	if prev.Competency.Mastery < masteryStrongBar && next.Competency.Mastery >= masteryStrongBar {
		out = append(out, Reward{
			LearnerID:    learner,
			Code:         fmt.Sprintf("competency:%s:mastery80", next.Competency.CompetencyID),
			Category:     RewardCompetencyMastery,
			Rarity:       RarityEpic,
			XPAwarded:    180,
			CompetencyID: next.Competency.CompetencyID,
			UnlockedAt:   at,
		})
	}
	if prev.Competency.Mastery < masteryEliteBar && next.Competency.Mastery >= masteryEliteBar {
		out = append(out, Reward{
			LearnerID:    learner,
			Code:         fmt.Sprintf("competency:%s:mastery95", next.Competency.CompetencyID),
			Category:     RewardCompetencyMastery,
			Rarity:       RarityLegendary,
			XPAwarded:    260,
			CompetencyID: next.Competency.CompetencyID,
			Collectible:  true,
			UnlockedAt:   at,
		})
	}

	for lvl := prev.User.Level + 1; lvl <= next.User.Level; lvl++ {
		rarity := RarityEpic
		if lvl >= 4 {
			rarity = RarityLegendary
		}
		out = append(out, Reward{
			LearnerID:  learner,
			Code:       fmt.Sprintf("level:%d", lvl),
			Category:   RewardLevelUp,
			Rarity:     rarity,
			Level:      lvl,
			UnlockedAt: at,
		})
	}

	for m := (prev.User.XP/xpMilestoneStep + 1) * xpMilestoneStep; m <= next.User.XP; m += xpMilestoneStep {
		rarity := RarityRare
		if m/xpMilestoneStep >= 4 {
			rarity = RarityEpic
		}
		out = append(out, Reward{
			LearnerID:   learner,
			Code:        fmt.Sprintf("xp:%d", m),
			Category:    RewardXPMilestone,
			Rarity:      rarity,
			XPMilestone: m,
			UnlockedAt:  at,
		})
	}

	return out
}

func streakRarity(bar int) Rarity {
	switch {
	case bar >= 10:
		return RarityLegendary
	case bar >= 5:
		return RarityEpic
	default:
		return RarityRare
	}
}
