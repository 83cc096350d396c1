package progress

import (
	"context"
	"sync"
	"testing"

	mem "progresskit/adapters/memory"
	"progresskit/analytics"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/leaderboard"
	"progresskit/realtime"
)

func testActivity() core.Activity {
	return core.Activity{
		ID:    "act-1",
		Title: "Adding Fractions",
		Slug:  "adding-fractions",
		Module: core.ModuleRef{
			ID:    "mod-fractions",
			Slug:  "fractions",
			Title: "Fractions",
		},
		Standard: core.StandardRef{
			ID:         "std-nf-1",
			Code:       "4.NF.1",
			Competency: "Number and Operations: Fractions",
		},
	}
}

func perfectAttempt(learner core.LearnerID) core.AttemptInput {
	score, maxScore, accuracy, spent := 100.0, 100.0, 1.0, 120.0
	return core.AttemptInput{
		LearnerID:    learner,
		ActivityID:   "act-1",
		Success:      true,
		Score:        &score,
		MaxScore:     &maxScore,
		Accuracy:     &accuracy,
		TimeSpentSec: &spent,
	}
}

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()
	kit := New(
		WithRealtime(hub),
		WithStore(mem.New()),
		WithLeaderboard(board),
		WithDispatchMode(engine.DispatchSync),
	)

	_, ch := hub.Subscribe(16)

	res, err := kit.Service.SubmitAttempt(context.Background(), perfectAttempt("Ada"), testActivity())
	if err != nil {
		t.Fatalf("submit attempt: %v", err)
	}
	if res.XPGained <= 0 {
		t.Fatalf("expected positive XP gain, got %d", res.XPGained)
	}

	// realtime bridge should receive the attempt event
	ev := <-ch
	if ev.LearnerID != "ada" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// leaderboard converges to the learner's XP total
	entry, ok, err := board.Get(context.Background(), "ada")
	if err != nil || !ok {
		t.Fatalf("board get: ok=%v err=%v", ok, err)
	}
	if entry.XP != res.User.XP {
		t.Fatalf("expected board XP %d, got %d", res.User.XP, entry.XP)
	}
}

func TestDefaultMemoryStore(t *testing.T) {
	kit := New(WithDispatchMode(engine.DispatchSync))

	if _, err := kit.Service.SubmitAttempt(context.Background(), perfectAttempt("bob"), testActivity()); err != nil {
		t.Fatalf("default store submit: %v", err)
	}
	s, err := kit.Projector.Summary(context.Background(), "bob")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.User.XP <= 0 {
		t.Fatalf("expected persisted XP, got %d", s.User.XP)
	}
}

func TestAnalyticsHookReceivesEvents(t *testing.T) {
	metrics := analytics.NewComprehensiveMetrics()
	kit := New(
		WithDispatchMode(engine.DispatchSync),
		WithAnalytics(metrics),
	)

	if _, err := kit.Service.SubmitAttempt(context.Background(), perfectAttempt("ada"), testActivity()); err != nil {
		t.Fatalf("submit attempt: %v", err)
	}

	attempts, xp, _, _ := metrics.GetRealtimeStats()
	if attempts != 1 || xp <= 0 {
		t.Fatalf("expected metrics to record the attempt, got attempts=%d xp=%d", attempts, xp)
	}
}

type spyCache struct {
	mu          sync.Mutex
	invalidated []core.LearnerID
}

func (c *spyCache) GetSummary(context.Context, core.LearnerID) (*engine.LearnerSummary, bool) {
	return nil, false
}
func (c *spyCache) SetSummary(context.Context, core.LearnerID, *engine.LearnerSummary) {}
func (c *spyCache) Invalidate(_ context.Context, learner core.LearnerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, learner)
}

func TestSummaryCacheInvalidatedOnSubmit(t *testing.T) {
	cache := &spyCache{}
	kit := New(
		WithDispatchMode(engine.DispatchSync),
		WithSummaryCache(cache),
	)

	if _, err := kit.Service.SubmitAttempt(context.Background(), perfectAttempt("ada"), testActivity()); err != nil {
		t.Fatalf("submit attempt: %v", err)
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "ada" {
		t.Fatalf("expected one invalidation for ada, got %v", cache.invalidated)
	}
}
