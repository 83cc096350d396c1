package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mem "progresskit/adapters/memory"
	"progresskit/core"
	"progresskit/engine"
)

func testActivity() core.Activity {
	return core.Activity{
		ID:    "act-1",
		Title: "Adding fractions",
		Slug:  "adding-fractions",
		Module: core.ModuleRef{
			ID:    "mod-fractions",
			Slug:  "fractions",
			Title: "Fractions",
		},
		Standard: core.StandardRef{
			ID:         "std-nf-1",
			Code:       "4.NF.1",
			Competency: "Understand fraction equivalence",
		},
	}
}

func newTestService() (*engine.ProgressService, *mem.Store) {
	store := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	return engine.NewProgressService(store, bus), store
}

func fp(v float64) *float64 { return &v }

func TestFirstPerfectAttempt(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	res, err := svc.SubmitAttempt(ctx, core.AttemptInput{
		LearnerID: "Lea",
		Success:   true,
		Score:     fp(100),
	}, testActivity())
	if err != nil {
		t.Fatal(err)
	}

	if res.Module.Completion != 100 || res.Module.Status != core.StatusCompleted {
		t.Fatalf("module should be completed: %+v", res.Module)
	}
	if res.Module.Mastery < 80 {
		t.Fatalf("module mastery should clear 80: %d", res.Module.Mastery)
	}
	if res.Competency.Mastery < 80 {
		t.Fatalf("competency mastery should clear 80: %d", res.Competency.Mastery)
	}
	if res.XPGained < 80 || res.User.XP < 80 {
		t.Fatalf("xp should rise by at least the success base: %+v", res)
	}
	unlockedCodes := map[string]bool{}
	for _, r := range res.Unlocked {
		unlockedCodes[r.Code] = true
	}
	if !unlockedCodes["module:mod-fractions:completion"] {
		t.Fatalf("missing completion reward: %v", unlockedCodes)
	}
	if !unlockedCodes["competency:std-nf-1:mastery80"] {
		t.Fatalf("missing mastery80 reward: %v", unlockedCodes)
	}
	if res.Attempt.LearnerID != "lea" {
		t.Fatalf("learner id should be normalized: %q", res.Attempt.LearnerID)
	}
}

func TestThreeFailures(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: false}, testActivity())
		if err != nil {
			t.Fatal(err)
		}
		if res.Module.CurrentStreak != 0 || res.Module.BestStreak != 0 {
			t.Fatalf("failures must not build module streaks: %+v", res.Module)
		}
		if res.Module.Status == core.StatusCompleted {
			t.Fatalf("failures must not complete the module")
		}
		if res.User.CurrentStreak != 0 {
			t.Fatalf("platform streak must stay at zero: %+v", res.User)
		}
		for _, r := range res.Unlocked {
			if r.Category == core.RewardModuleStreak {
				t.Fatalf("streak reward fired on failures: %+v", r)
			}
		}
	}
}

func TestFiveSuccessStreak(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	streakUnlocks := map[string]int{}
	for i := 0; i < 5; i++ {
		res, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: true}, testActivity())
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range res.Unlocked {
			if r.Category == core.RewardModuleStreak {
				streakUnlocks[r.Code]++
			}
		}
	}
	if streakUnlocks["module:mod-fractions:streak:3"] != 1 {
		t.Fatalf("streak-3 should fire exactly once: %v", streakUnlocks)
	}
	if streakUnlocks["module:mod-fractions:streak:5"] != 1 {
		t.Fatalf("streak-5 should fire exactly once: %v", streakUnlocks)
	}
	for code := range streakUnlocks {
		if strings.HasSuffix(code, ":10") {
			t.Fatalf("streak-10 must not fire at streak 5: %v", streakUnlocks)
		}
	}
}

func TestCompletionRewardIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: true, Score: fp(100)}, testActivity())
	if err != nil {
		t.Fatal(err)
	}
	if first.Module.Completion != 100 {
		t.Fatalf("setup: module should be complete")
	}

	second, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: true, Score: fp(100)}, testActivity())
	if err != nil {
		t.Fatal(err)
	}
	if second.Module.Completion != 100 {
		t.Fatalf("completion should stay at 100")
	}
	for _, r := range second.Unlocked {
		if r.Code == "module:mod-fractions:completion" {
			t.Fatalf("completion reward minted twice")
		}
	}
}

func TestDeterministicAcrossLearners(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sequence := []core.AttemptInput{
		{Success: true, Score: fp(70), Accuracy: fp(0.7), TimeSpentSec: fp(80)},
		{Success: false, Score: fp(30)},
		{Success: true, Score: fp(90), Accuracy: fp(0.95), TimeSpentSec: fp(150)},
	}

	var results [2]*engine.SubmitResult
	for i, learner := range []core.LearnerID{"ada", "bea"} {
		for j, in := range sequence {
			in.LearnerID = learner
			in.SubmittedAt = base.Add(time.Duration(j) * time.Minute)
			res, err := svc.SubmitAttempt(ctx, in, testActivity())
			if err != nil {
				t.Fatal(err)
			}
			results[i] = res
		}
	}

	a, b := results[0].Module.ModuleMetrics, results[1].Module.ModuleMetrics
	if a != b {
		t.Fatalf("identical histories must yield identical module metrics:\n%+v\n%+v", a, b)
	}
	ca, cb := results[0].Competency.CompetencyMetrics, results[1].Competency.CompetencyMetrics
	if ca != cb {
		t.Fatalf("identical histories must yield identical competency metrics:\n%+v\n%+v", ca, cb)
	}
	if results[0].User.XP != results[1].User.XP {
		t.Fatalf("identical histories must yield identical xp: %d vs %d", results[0].User.XP, results[1].User.XP)
	}
}

func TestPlatformStreakResetsOnFailure(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, ok := range []bool{true, true, false} {
		res, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: ok}, testActivity())
		if err != nil {
			t.Fatal(err)
		}
		if !ok && res.User.CurrentStreak != 0 {
			t.Fatalf("failure must reset the platform streak: %+v", res.User)
		}
	}
}

func TestEventsPublished(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	var types []core.EventType
	svc.SubscribeAll(func(_ context.Context, e core.Event) { types = append(types, e.Type) })

	_, err := svc.SubmitAttempt(ctx, core.AttemptInput{LearnerID: "lea", Success: true, Score: fp(100)}, testActivity())
	if err != nil {
		t.Fatal(err)
	}

	seen := map[core.EventType]bool{}
	for _, typ := range types {
		seen[typ] = true
	}
	if !seen[core.EventAttemptRecorded] || !seen[core.EventProgressUpdated] || !seen[core.EventRewardUnlocked] {
		t.Fatalf("missing events: %v", types)
	}
}

func TestRejectsMismatchedActivity(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.SubmitAttempt(context.Background(), core.AttemptInput{LearnerID: "lea", ActivityID: "other"}, testActivity())
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for activity mismatch, got %v", err)
	}
	_, err = svc.SubmitAttempt(context.Background(), core.AttemptInput{LearnerID: "  "}, testActivity())
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty learner, got %v", err)
	}
}
