package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventAttemptRecorded EventType = "attempt_recorded"
	EventProgressUpdated EventType = "progress_updated"
	EventLevelUp         EventType = "level_up"
	EventRewardUnlocked  EventType = "reward_unlocked"
)

// Event represents an immutable domain event.
type Event struct {
	Type       EventType      `json:"type"`
	Time       time.Time      `json:"time"`
	LearnerID  LearnerID      `json:"learner_id"`
	ModuleID   ModuleID       `json:"module_id,omitempty"`
	Competency CompetencyID   `json:"competency_id,omitempty"`
	XPDelta    int64          `json:"xp_delta,omitempty"`
	XPTotal    int64          `json:"xp_total,omitempty"`
	Level      int            `json:"level,omitempty"`
	Mastery    int            `json:"mastery,omitempty"`
	Completion int            `json:"completion,omitempty"`
	RewardCode string         `json:"reward_code,omitempty"`
	Category   RewardCategory `json:"category,omitempty"`
	Rarity     Rarity         `json:"rarity,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewAttemptRecorded(learner LearnerID, module ModuleID, competency CompetencyID, xpDelta, xpTotal int64) Event {
	return Event{Type: EventAttemptRecorded, Time: time.Now().UTC(), LearnerID: learner, ModuleID: module, Competency: competency, XPDelta: xpDelta, XPTotal: xpTotal}
}

func NewProgressUpdated(learner LearnerID, module ModuleID, completion, mastery int) Event {
	return Event{Type: EventProgressUpdated, Time: time.Now().UTC(), LearnerID: learner, ModuleID: module, Completion: completion, Mastery: mastery}
}

func NewLevelUp(learner LearnerID, level int, xpTotal int64) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), LearnerID: learner, Level: level, XPTotal: xpTotal}
}

func NewRewardUnlocked(r Reward) Event {
	return Event{Type: EventRewardUnlocked, Time: time.Now().UTC(), LearnerID: r.LearnerID, RewardCode: r.Code, Category: r.Category, Rarity: r.Rarity, XPDelta: r.XPAwarded, Level: r.Level}
}
