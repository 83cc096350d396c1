package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"progresskit/core"
)

// ErrInvalidInput marks submission errors caused by the caller's input, as
// opposed to persistence failures. Boundaries use it to pick a status code.
var ErrInvalidInput = errors.New("invalid attempt input")

// ProgressService wires storage, event bus, and the pure calculators into the
// submit-attempt orchestration.
type ProgressService struct {
	store Store
	bus   *EventBus
	now   func() time.Time
}

func NewProgressService(store Store, bus *EventBus) *ProgressService {
	if store == nil || bus == nil {
		panic("NewProgressService requires non-nil store and bus")
	}
	return &ProgressService{store: store, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

// SubmitResult is returned to the boundary layer after a successful
// submission. Unlocked contains only rewards minted by this submission;
// idempotent duplicates are excluded.
type SubmitResult struct {
	Attempt    core.Attempt            `json:"attempt"`
	Module     core.ModuleProgress     `json:"module"`
	Competency core.CompetencyProgress `json:"competency"`
	User       core.UserGameState      `json:"user"`
	XPGained   int64                   `json:"xp_gained"`
	Unlocked   []core.Reward           `json:"unlocked"`
}

// Subscribe convenience method.
func (s *ProgressService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll registers a handler for every event the service publishes.
func (s *ProgressService) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *ProgressService) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

// SubmitAttempt records one attempt and atomically recomputes every aggregate
// derived from it: module and competency progress are rebuilt from the full
// history, the learner's XP/level/streak state advances, and threshold
// rewards are minted idempotently. All writes commit together or not at all.
func (s *ProgressService) SubmitAttempt(ctx context.Context, in core.AttemptInput, activity core.Activity) (*SubmitResult, error) {
	learner, err := core.NormalizeLearnerID(in.LearnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if activity.ID == "" {
		return nil, fmt.Errorf("%w: activity descriptor is required", ErrInvalidInput)
	}
	if in.ActivityID != "" && in.ActivityID != activity.ID {
		return nil, fmt.Errorf("%w: attempt does not belong to the supplied activity", ErrInvalidInput)
	}

	now := s.now()
	submittedAt := in.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = now
	}
	attempt := core.Attempt{
		ID:           uuid.NewString(),
		LearnerID:    learner,
		ActivityID:   activity.ID,
		ModuleID:     activity.Module.ID,
		CompetencyID: activity.Standard.ID,
		Success:      in.Success,
		Score:        in.Score,
		MaxScore:     in.MaxScore,
		Accuracy:     in.Accuracy,
		TimeSpentSec: in.TimeSpentSec,
		Metadata:     in.Metadata,
		SubmittedAt:  submittedAt,
	}

	var result SubmitResult
	var prevUser core.UserGameState
	err = s.store.InTx(ctx, learner, func(tx Tx) error {
		prev, err := s.loadSnapshot(ctx, tx, learner, activity)
		if err != nil {
			return err
		}
		prevUser = prev.User

		if err := tx.InsertAttempt(ctx, attempt); err != nil {
			return err
		}

		moduleHistory, err := tx.ModuleAttempts(ctx, learner, activity.Module.ID)
		if err != nil {
			return err
		}
		competencyHistory, err := tx.CompetencyAttempts(ctx, learner, activity.Standard.ID)
		if err != nil {
			return err
		}

		module := core.ModuleProgress{
			LearnerID:     learner,
			ModuleID:      activity.Module.ID,
			ModuleMetrics: core.ComputeModuleMetrics(moduleHistory),
			UpdatedAt:     now,
		}
		competency := core.CompetencyProgress{
			LearnerID:         learner,
			CompetencyID:      activity.Standard.ID,
			CompetencyMetrics: core.ComputeCompetencyMetrics(competencyHistory),
			UpdatedAt:         now,
		}
		if err := tx.UpsertModuleProgress(ctx, module); err != nil {
			return err
		}
		if err := tx.UpsertCompetencyProgress(ctx, competency); err != nil {
			return err
		}

		user := prev.User
		if attempt.Success {
			user.CurrentStreak++
		} else {
			user.CurrentStreak = 0
		}
		if user.CurrentStreak > user.LongestStreak {
			user.LongestStreak = user.CurrentStreak
		}
		gained := core.AttemptXP(attempt, user.CurrentStreak)
		total, err := core.AddXPSafe(user.XP, gained)
		if err != nil {
			return err
		}
		user.XP = total
		lp := core.LevelFromXP(user.XP)
		user.Level = lp.Level
		user.NextLevelAt = lp.NextLevelAt
		user.UpdatedAt = now
		if err := tx.SaveUserState(ctx, user); err != nil {
			return err
		}

		next := core.Snapshot{Module: module, Competency: competency, User: user}
		var unlocked []core.Reward
		for _, r := range core.EvaluateRewards(prev, next, now) {
			created, err := tx.InsertRewardIfAbsent(ctx, r)
			if err != nil {
				return err
			}
			if created {
				unlocked = append(unlocked, r)
			}
		}

		result = SubmitResult{
			Attempt:    attempt,
			Module:     module,
			Competency: competency,
			User:       user,
			XPGained:   gained,
			Unlocked:   unlocked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishResults(ctx, prevUser, &result)
	return &result, nil
}

// loadSnapshot reads the before state inside the transaction. Missing rows
// become zero-valued aggregates so threshold comparisons start from zero.
func (s *ProgressService) loadSnapshot(ctx context.Context, tx Tx, learner core.LearnerID, activity core.Activity) (core.Snapshot, error) {
	module, ok, err := tx.ModuleProgress(ctx, learner, activity.Module.ID)
	if err != nil {
		return core.Snapshot{}, err
	}
	if !ok {
		module = core.ModuleProgress{LearnerID: learner, ModuleID: activity.Module.ID}
		module.Status = core.StatusNotStarted
	}
	competency, ok, err := tx.CompetencyProgress(ctx, learner, activity.Standard.ID)
	if err != nil {
		return core.Snapshot{}, err
	}
	if !ok {
		competency = core.CompetencyProgress{LearnerID: learner, CompetencyID: activity.Standard.ID}
	}
	user, ok, err := tx.UserState(ctx, learner)
	if err != nil {
		return core.Snapshot{}, err
	}
	if !ok {
		user = core.NewUserGameState(learner)
	}
	return core.Snapshot{Module: module, Competency: competency, User: user}, nil
}

func (s *ProgressService) publishResults(ctx context.Context, prevUser core.UserGameState, res *SubmitResult) {
	s.bus.Publish(ctx, core.NewAttemptRecorded(res.Attempt.LearnerID, res.Attempt.ModuleID, res.Attempt.CompetencyID, res.XPGained, res.User.XP))
	s.bus.Publish(ctx, core.NewProgressUpdated(res.Attempt.LearnerID, res.Module.ModuleID, res.Module.Completion, res.Module.Mastery))
	if res.User.Level > prevUser.Level {
		s.bus.Publish(ctx, core.NewLevelUp(res.User.LearnerID, res.User.Level, res.User.XP))
	}
	for _, r := range res.Unlocked {
		s.bus.Publish(ctx, core.NewRewardUnlocked(r))
	}
}

func (s *ProgressService) Close() { s.bus.Close() }
