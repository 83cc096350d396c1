package engine_test

import (
	"context"
	"testing"

	mem "progresskit/adapters/memory"
	"progresskit/core"
	"progresskit/engine"
)

func activityFor(module, competency string) core.Activity {
	return core.Activity{
		ID:    core.ActivityID("act-" + module),
		Title: module,
		Module: core.ModuleRef{
			ID:    core.ModuleID("mod-" + module),
			Slug:  module,
			Title: module,
		},
		Standard: core.StandardRef{
			ID:         core.CompetencyID("std-" + competency),
			Code:       competency,
			Competency: competency,
		},
	}
}

func TestXPPercent(t *testing.T) {
	cases := []struct {
		xp   int64
		want float64
	}{
		{0, 0},
		{500, 50},
		{1000, 0},   // start of level 2 band
		{1250, 50},  // halfway through 1000..1500
		{1500, 0},   // start of level 3 band
	}
	for _, c := range cases {
		state := core.NewUserGameState("lea")
		state.XP = c.xp
		lp := core.LevelFromXP(c.xp)
		state.Level, state.NextLevelAt = lp.Level, lp.NextLevelAt
		if got := engine.XPPercent(state); got != c.want {
			t.Fatalf("XPPercent(xp=%d) = %v, want %v", c.xp, got, c.want)
		}
	}
}

func TestSummaryReflectsCommittedState(t *testing.T) {
	store := mem.New()
	svc := engine.NewProgressService(store, engine.NewEventBus(engine.DispatchSync))
	ctx := context.Background()

	if _, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: true, Score: fp(100)}, activityFor("fractions", "4.NF.1")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: false}, activityFor("decimals", "4.NF.6")); err != nil {
		t.Fatal(err)
	}

	proj := engine.NewProjector(store)
	s, err := proj.Summary(ctx, "Lea")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Modules) != 2 || len(s.Competencies) != 2 {
		t.Fatalf("summary should cover both modules and competencies: %d/%d", len(s.Modules), len(s.Competencies))
	}
	if s.User.XP == 0 {
		t.Fatalf("user state should carry accumulated xp")
	}
	if len(s.RecentRewards) == 0 {
		t.Fatalf("perfect attempt should have minted rewards")
	}
	if len(s.Goals) == 0 {
		t.Fatalf("summary should surface upcoming goals")
	}
	for _, g := range s.Goals {
		if g.Progress >= g.Target {
			t.Fatalf("goals must be unmet targets: %+v", g)
		}
	}
}

func TestSummaryEmptyLearner(t *testing.T) {
	proj := engine.NewProjector(mem.New())
	s, err := proj.Summary(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if s.User.XP != 0 || s.User.Level != 1 {
		t.Fatalf("unknown learner should project a fresh state: %+v", s.User)
	}
	if len(s.Modules) != 0 || len(s.RecentRewards) != 0 {
		t.Fatalf("unknown learner should have nothing to report")
	}
}

func TestGoalCapAndStreakGoal(t *testing.T) {
	store := mem.New()
	svc := engine.NewProgressService(store, engine.NewEventBus(engine.DispatchSync))
	ctx := context.Background()

	// Eight half-finished modules compete for six goal slots.
	for _, m := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		in := core.AttemptInput{LearnerID: "lea", Success: true, Score: fp(40)}
		if _, err := svc.SubmitAttempt(ctx, in, activityFor(m, "std-"+m)); err != nil {
			t.Fatal(err)
		}
	}

	goals, err := engine.NewProjector(store).UpcomingGoals(ctx, "lea")
	if err != nil {
		t.Fatal(err)
	}
	if len(goals) > 6 {
		t.Fatalf("goal list should be capped at six: %d", len(goals))
	}
	var hasStreak bool
	for _, g := range goals {
		if g.Kind == "streak" {
			hasStreak = true
		}
	}
	if !hasStreak {
		t.Fatalf("goals should include the next streak bar: %+v", goals)
	}
}

func TestEducatorDigest(t *testing.T) {
	store := mem.New()
	svc := engine.NewProgressService(store, engine.NewEventBus(engine.DispatchSync))
	ctx := context.Background()

	// One strong competency, one weak module.
	for i := 0; i < 3; i++ {
		in := core.AttemptInput{LearnerID: "lea", Success: true, Score: fp(100), Accuracy: fp(1)}
		if _, err := svc.SubmitAttempt(ctx, in, activityFor("fractions", "4.NF.1")); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		in := core.AttemptInput{LearnerID: "lea", Success: false, Score: fp(20)}
		if _, err := svc.SubmitAttempt(ctx, in, activityFor("decimals", "4.NF.6")); err != nil {
			t.Fatal(err)
		}
	}

	d, err := engine.NewProjector(store).EducatorDigest(ctx, "lea")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Strengths) == 0 || d.Strengths[0].CompetencyID != "std-4.NF.1" {
		t.Fatalf("strong competency should lead strengths: %+v", d.Strengths)
	}
	for _, s := range d.Strengths {
		if s.Mastery < 80 {
			t.Fatalf("strengths must clear the mastery bar: %+v", s)
		}
	}
	var focusIDs []core.ModuleID
	for _, f := range d.FocusAreas {
		focusIDs = append(focusIDs, f.Module.ModuleID)
		if f.Recommendation == "" {
			t.Fatalf("focus area should carry a recommendation")
		}
	}
	if len(focusIDs) == 0 || focusIDs[0] != "mod-decimals" {
		t.Fatalf("weak module should lead focus areas: %v", focusIDs)
	}
	if len(d.Recommendations) == 0 {
		t.Fatalf("digest should carry recommendations")
	}
}

type countingCache struct {
	summaries map[core.LearnerID]*engine.LearnerSummary
	hits      int
	sets      int
}

func (c *countingCache) GetSummary(_ context.Context, learner core.LearnerID) (*engine.LearnerSummary, bool) {
	s, ok := c.summaries[learner]
	if ok {
		c.hits++
	}
	return s, ok
}

func (c *countingCache) SetSummary(_ context.Context, learner core.LearnerID, s *engine.LearnerSummary) {
	c.sets++
	c.summaries[learner] = s
}

func (c *countingCache) Invalidate(_ context.Context, learner core.LearnerID) {
	delete(c.summaries, learner)
}

func TestSummaryCacheAside(t *testing.T) {
	store := mem.New()
	cache := &countingCache{summaries: map[core.LearnerID]*engine.LearnerSummary{}}
	proj := engine.NewProjector(store).WithCache(cache)
	ctx := context.Background()

	if _, err := proj.Summary(ctx, "lea"); err != nil {
		t.Fatal(err)
	}
	if _, err := proj.Summary(ctx, "lea"); err != nil {
		t.Fatal(err)
	}
	if cache.sets != 1 || cache.hits != 1 {
		t.Fatalf("second read should come from cache: sets=%d hits=%d", cache.sets, cache.hits)
	}
}
