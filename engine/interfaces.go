package engine

import (
	"context"

	"progresskit/core"
)

// Tx is the transaction-scoped persistence handle passed to the orchestrator.
// Every method sees the writes performed earlier in the same transaction.
type Tx interface {
	InsertAttempt(ctx context.Context, a core.Attempt) error

	// Histories are returned ordered ascending by submission time and include
	// attempts inserted in this transaction.
	ModuleAttempts(ctx context.Context, learner core.LearnerID, module core.ModuleID) ([]core.Attempt, error)
	CompetencyAttempts(ctx context.Context, learner core.LearnerID, competency core.CompetencyID) ([]core.Attempt, error)

	ModuleProgress(ctx context.Context, learner core.LearnerID, module core.ModuleID) (core.ModuleProgress, bool, error)
	CompetencyProgress(ctx context.Context, learner core.LearnerID, competency core.CompetencyID) (core.CompetencyProgress, bool, error)
	UpsertModuleProgress(ctx context.Context, p core.ModuleProgress) error
	UpsertCompetencyProgress(ctx context.Context, p core.CompetencyProgress) error

	UserState(ctx context.Context, learner core.LearnerID) (core.UserGameState, bool, error)
	SaveUserState(ctx context.Context, s core.UserGameState) error

	// InsertRewardIfAbsent stores the reward unless the learner already holds
	// its code. A duplicate is a successful no-op reported as created=false.
	InsertRewardIfAbsent(ctx context.Context, r core.Reward) (created bool, err error)
}

// Store abstracts persistence for progress state. InTx runs fn inside one
// atomic unit of work for the given learner: either every write becomes
// visible together or none do. The remaining methods are read-only views of
// committed state used by the summary projector.
type Store interface {
	InTx(ctx context.Context, learner core.LearnerID, fn func(tx Tx) error) error

	ListModuleProgress(ctx context.Context, learner core.LearnerID) ([]core.ModuleProgress, error)
	ListCompetencyProgress(ctx context.Context, learner core.LearnerID) ([]core.CompetencyProgress, error)
	ReadUserState(ctx context.Context, learner core.LearnerID) (core.UserGameState, bool, error)
	RecentRewards(ctx context.Context, learner core.LearnerID, limit int) ([]core.Reward, error)
}

// ActivityDirectory resolves activity descriptors for the boundary layer.
type ActivityDirectory interface {
	Activity(ctx context.Context, id core.ActivityID) (core.Activity, bool, error)
}
