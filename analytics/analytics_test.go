package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"progresskit/core"
)

func attemptEvent(learner core.LearnerID, module core.ModuleID, xp int64, at time.Time) core.Event {
	e := core.NewAttemptRecorded(learner, module, "std-1", xp, xp)
	e.Time = at
	return e
}

func rewardEvent(learner core.LearnerID, code string, rarity core.Rarity, at time.Time) core.Event {
	e := core.NewRewardUnlocked(core.Reward{
		LearnerID: learner,
		Code:      code,
		Category:  core.RewardModuleCompletion,
		Rarity:    rarity,
		XPAwarded: 100,
	})
	e.Time = at
	return e
}

func TestDAUCountsUniqueLearners(t *testing.T) {
	dau := NewDAU()
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	dau.OnEvent(attemptEvent("ada", "mod-fractions", 80, at))
	dau.OnEvent(attemptEvent("ada", "mod-fractions", 80, at.Add(time.Hour)))
	dau.OnEvent(attemptEvent("bea", "mod-decimals", 25, at))

	assert.Equal(t, 2, dau.Count("2026-04-10"))
	assert.Equal(t, 0, dau.Count("2026-04-11"))
}

func TestComprehensiveMetrics_OnEvent(t *testing.T) {
	cm := NewComprehensiveMetrics()
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	day := "2026-04-10"

	cm.OnEvent(attemptEvent("ada", "mod-fractions", 120, at))
	cm.OnEvent(attemptEvent("bea", "mod-fractions", 80, at))
	cm.OnEvent(attemptEvent("ada", "mod-decimals", 50, at.Add(time.Minute)))

	lvl := core.NewLevelUp("ada", 2, 1040)
	lvl.Time = at
	cm.OnEvent(lvl)

	cm.OnEvent(rewardEvent("ada", "module:mod-fractions:completion", core.RarityEpic, at))
	cm.OnEvent(rewardEvent("bea", "module:mod-fractions:completion", core.RarityEpic, at))
	cm.OnEvent(rewardEvent("ada", "level:2", core.RarityLegendary, at))

	assert.Equal(t, 2, cm.GetDailyActiveLearners(day))
	assert.Equal(t, 2, cm.GetWeeklyActiveLearners(getWeekKey(at)))
	assert.Equal(t, 2, cm.GetMonthlyActiveLearners("2026-04"))

	assert.Equal(t, int64(3), cm.GetAttemptsByDay(day))
	assert.Equal(t, int64(250), cm.GetXPAwardedByDay(day))
	assert.Equal(t, int64(200), cm.GetXPByModule("mod-fractions"))
	assert.Equal(t, int64(50), cm.GetXPByModule("mod-decimals"))

	assert.Equal(t, int64(3), cm.GetRewardsByDay(day))
	assert.Equal(t, int64(2), cm.GetRewardsByRarity(core.RarityEpic))
	assert.Equal(t, int64(1), cm.GetRewardsByRarity(core.RarityLegendary))
	assert.Equal(t, 2, cm.GetUniqueRewardHolders("module:mod-fractions:completion"))
	assert.Equal(t, 1, cm.GetUniqueRewardHolders("level:2"))

	dist := cm.GetLevelDistribution()
	assert.Equal(t, 1, dist[2])

	attempts, xp, rewards, levels := cm.GetRealtimeStats()
	assert.Equal(t, int64(3), attempts)
	assert.Equal(t, int64(250), xp)
	assert.Equal(t, int64(3), rewards)
	assert.Equal(t, int64(1), levels)
}

func TestComprehensiveMetricsTopModules(t *testing.T) {
	cm := NewComprehensiveMetrics()
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

	cm.OnEvent(attemptEvent("ada", "mod-fractions", 300, at))
	cm.OnEvent(attemptEvent("ada", "mod-decimals", 100, at))
	cm.OnEvent(attemptEvent("ada", "mod-geometry", 200, at))

	top := cm.GetTopModules(2)
	modules, ok := top["top_modules_by_xp"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, modules, 2)
	assert.Equal(t, core.ModuleID("mod-fractions"), modules[0]["module"])
	assert.Equal(t, int64(300), modules[0]["xp"])
	assert.Equal(t, core.ModuleID("mod-geometry"), modules[1]["module"])

	assert.Equal(t, int64(600), top["total_xp_awarded"])
}

func TestStreamPublisher(t *testing.T) {
	cm := NewComprehensiveMetrics()
	sp := NewStreamPublisher(cm)

	sub := NewInMemorySubscriber("test")
	sp.Subscribe("test", sub)

	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	sp.OnEvent(attemptEvent("ada", "mod-fractions", 120, at))

	lvl := core.NewLevelUp("ada", 2, 1040)
	lvl.Time = at
	sp.OnEvent(lvl)

	sp.OnEvent(rewardEvent("ada", "level:2", core.RarityLegendary, at))

	events := sub.GetEvents()
	require.Len(t, events, 3)

	assert.Equal(t, "xp_awarded", events[0].Type)
	assert.Equal(t, int64(120), events[0].XP)
	assert.Equal(t, core.ModuleID("mod-fractions"), events[0].ModuleID)

	assert.Equal(t, "level_reached", events[1].Type)
	assert.Equal(t, 2, events[1].Level)
	assert.Equal(t, int64(1040), events[1].XP)

	assert.Equal(t, "reward_unlocked", events[2].Type)
	assert.Equal(t, "level:2", events[2].RewardCode)
	assert.Equal(t, "LEGENDARY", events[2].Metadata["rarity"])

	// Metrics processed the same events.
	assert.Equal(t, int64(120), cm.GetXPByModule("mod-fractions"))

	sp.Unsubscribe("test")
	sp.OnEvent(attemptEvent("ada", "mod-fractions", 10, at))
	assert.Len(t, sub.GetEvents(), 3)
}

func TestStreamPublisherSurvivesPanickingSubscriber(t *testing.T) {
	cm := NewComprehensiveMetrics()
	sp := NewStreamPublisher(cm)

	sp.Subscribe("bad", panicSubscriber{})
	good := NewInMemorySubscriber("good")
	sp.Subscribe("good", good)

	sp.OnEvent(attemptEvent("ada", "mod-fractions", 10, time.Now()))
	assert.Len(t, good.GetEvents(), 1)
}

type panicSubscriber struct{}

func (panicSubscriber) OnStreamEvent(*StreamEvent) { panic("boom") }
func (panicSubscriber) Close() error               { return nil }

func TestConsoleExporter(t *testing.T) {
	exporter := NewConsoleExporter("[test]")

	data := &AggregatedData{
		Period:         PeriodDaily,
		Key:            "2026-04-10",
		ActiveLearners: 3,
		XPAwarded:      540,
		CreatedAt:      time.Now(),
	}

	ctx := context.Background()
	require.NoError(t, exporter.Export(ctx, data))
	require.NoError(t, exporter.Flush(ctx))
	require.NoError(t, exporter.Close())
}

func TestSegmentExporterEventConversion(t *testing.T) {
	exporter := NewSegmentExporter("key")

	data := &AggregatedData{
		Period:           PeriodDaily,
		Key:              "2026-04-10",
		ActiveLearners:   3,
		AttemptsRecorded: 12,
		XPAwarded:        540,
		RewardsUnlocked:  4,
		CreatedAt:        time.Now(),
	}

	events := exporter.convertToSegmentEvents(data)
	require.Len(t, events, 3)
	assert.Equal(t, "learning_active_learners", events[0].Event)
	assert.Equal(t, "learning_xp_awarded", events[1].Event)
	assert.Equal(t, int64(540), events[1].Properties["xp_awarded"])
	assert.Equal(t, "learning_rewards_unlocked", events[2].Event)

	// Zero metrics produce no events.
	assert.Empty(t, exporter.convertToSegmentEvents(&AggregatedData{}))
}

func TestDashboardManager(t *testing.T) {
	cm := NewComprehensiveMetrics()
	sp := NewStreamPublisher(cm)
	dm := NewDashboardManager(sp, cm, 2)

	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	sp.OnEvent(attemptEvent("ada", "mod-fractions", 100, at))
	sp.OnEvent(attemptEvent("bea", "mod-fractions", 50, at))
	sp.OnEvent(attemptEvent("cid", "mod-decimals", 25, at))

	data := dm.GetDashboardData()
	require.Len(t, data.RecentEvents, 2) // capped at maxEvents, oldest dropped
	assert.Equal(t, core.LearnerID("bea"), data.RecentEvents[0].LearnerID)
	assert.Equal(t, core.LearnerID("cid"), data.RecentEvents[1].LearnerID)
	assert.NotNil(t, data.RealtimeStats)
	assert.NotNil(t, data.TopModules)

	raw, err := dm.GetDashboardDataJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "recent_events")
}

func TestAnalyticsService(t *testing.T) {
	svc := CreateAnalyticsServiceForTesting()
	defer svc.Close()

	hook := svc.GetHook()
	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	hook.OnEvent(attemptEvent("ada", "mod-fractions", 120, at))
	hook.OnEvent(rewardEvent("ada", "module:mod-fractions:completion", core.RarityEpic, at))

	stats := svc.GetRealtimeStats()
	assert.Equal(t, int64(1), stats["attempts_recorded_24h"])
	assert.Equal(t, int64(120), stats["xp_awarded_24h"])
	assert.Equal(t, int64(1), stats["rewards_unlocked_24h"])

	require.NoError(t, svc.ForceAggregation())

	today := time.Now().UTC().Format("2006-01-02")
	daily, ok := svc.GetAggregatedData(PeriodDaily, today)
	require.True(t, ok)
	if at.Format("2006-01-02") == today {
		assert.Equal(t, 1, daily.ActiveLearners)
	}

	dashboard := svc.GetDashboardData()
	require.NotNil(t, dashboard)
	assert.Len(t, dashboard.RecentEvents, 2)
}

func TestBridgeHookFansOut(t *testing.T) {
	dau := NewDAU()
	cm := NewComprehensiveMetrics()
	bridge := NewBridge(dau, cm)

	at := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	bridge.OnEvent(attemptEvent("ada", "mod-fractions", 10, at))

	assert.Equal(t, 1, dau.Count("2026-04-10"))
	assert.Equal(t, 1, cm.GetDailyActiveLearners("2026-04-10"))
}

func BenchmarkComprehensiveMetricsOnEvent(b *testing.B) {
	cm := NewComprehensiveMetrics()
	e := attemptEvent("ada", "mod-fractions", 80, time.Now())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cm.OnEvent(e)
	}
}

func BenchmarkStreamPublisherPublish(b *testing.B) {
	cm := NewComprehensiveMetrics()
	sp := NewStreamPublisher(cm)
	for i := 0; i < 4; i++ {
		sp.Subscribe(string(rune('a'+i)), NewInMemorySubscriber("bench"))
	}
	e := attemptEvent("ada", "mod-fractions", 80, time.Now())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sp.OnEvent(e)
	}
}
