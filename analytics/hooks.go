package analytics

import (
	"fmt"
	"sync"
	"time"

	"progresskit/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active learners.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.LearnerID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.LearnerID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := time.Unix(e.Time.Unix(), 0).UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.LearnerID]struct{}{}
		d.days[day] = m
	}
	m[e.LearnerID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// ComprehensiveMetrics provides comprehensive analytics tracking
type ComprehensiveMetrics struct {
	mu sync.RWMutex

	// Learner engagement metrics
	dailyActiveLearners   map[string]map[core.LearnerID]struct{}
	weeklyActiveLearners  map[string]map[core.LearnerID]struct{}
	monthlyActiveLearners map[string]map[core.LearnerID]struct{}

	// Attempt and XP metrics
	attemptsByDay  map[string]int64
	xpAwardedByDay map[string]int64
	xpByModule     map[core.ModuleID]int64

	// Reward metrics
	rewardsByDay        map[string]int64
	rewardsByRarity     map[core.Rarity]int64
	rewardsByCategory   map[core.RewardCategory]int64
	uniqueRewardHolders map[string]map[core.LearnerID]struct{}

	// Level metrics
	levelsReachedByDay map[string]int64
	levelDistribution  map[int]int // level -> count of level-up events

	// Real-time counters (last 24 hours)
	realtimeCounters struct {
		attemptsRecorded int64
		xpAwarded        int64
		rewardsUnlocked  int64
		levelsReached    int64
		lastReset        time.Time
	}
}

func NewComprehensiveMetrics() *ComprehensiveMetrics {
	now := time.Now()
	cm := &ComprehensiveMetrics{
		dailyActiveLearners:   make(map[string]map[core.LearnerID]struct{}),
		weeklyActiveLearners:  make(map[string]map[core.LearnerID]struct{}),
		monthlyActiveLearners: make(map[string]map[core.LearnerID]struct{}),
		attemptsByDay:         make(map[string]int64),
		xpAwardedByDay:        make(map[string]int64),
		xpByModule:            make(map[core.ModuleID]int64),
		rewardsByDay:          make(map[string]int64),
		rewardsByRarity:       make(map[core.Rarity]int64),
		rewardsByCategory:     make(map[core.RewardCategory]int64),
		uniqueRewardHolders:   make(map[string]map[core.LearnerID]struct{}),
		levelsReachedByDay:    make(map[string]int64),
		levelDistribution:     make(map[int]int),
	}
	cm.realtimeCounters.lastReset = now
	return cm
}

func (cm *ComprehensiveMetrics) OnEvent(e core.Event) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	day := e.Time.UTC().Format("2006-01-02")
	week := getWeekKey(e.Time)
	month := getMonthKey(e.Time)

	cm.trackEngagement(e.LearnerID, day, week, month)

	switch e.Type {
	case core.EventAttemptRecorded:
		cm.attemptsByDay[day]++
		cm.realtimeCounters.attemptsRecorded++
		if e.XPDelta > 0 {
			cm.xpAwardedByDay[day] += e.XPDelta
			cm.xpByModule[e.ModuleID] += e.XPDelta
			cm.realtimeCounters.xpAwarded += e.XPDelta
		}
	case core.EventLevelUp:
		cm.levelsReachedByDay[day]++
		cm.levelDistribution[e.Level]++
		cm.realtimeCounters.levelsReached++
	case core.EventRewardUnlocked:
		cm.rewardsByDay[day]++
		cm.rewardsByRarity[e.Rarity]++
		cm.rewardsByCategory[e.Category]++

		if cm.uniqueRewardHolders[e.RewardCode] == nil {
			cm.uniqueRewardHolders[e.RewardCode] = make(map[core.LearnerID]struct{})
		}
		cm.uniqueRewardHolders[e.RewardCode][e.LearnerID] = struct{}{}
		cm.realtimeCounters.rewardsUnlocked++
	}

	// Reset realtime counters if needed (every 24 hours)
	if time.Since(cm.realtimeCounters.lastReset) > 24*time.Hour {
		cm.realtimeCounters.attemptsRecorded = 0
		cm.realtimeCounters.xpAwarded = 0
		cm.realtimeCounters.rewardsUnlocked = 0
		cm.realtimeCounters.levelsReached = 0
		cm.realtimeCounters.lastReset = time.Now()
	}
}

func (cm *ComprehensiveMetrics) trackEngagement(learner core.LearnerID, day, week, month string) {
	if cm.dailyActiveLearners[day] == nil {
		cm.dailyActiveLearners[day] = make(map[core.LearnerID]struct{})
	}
	cm.dailyActiveLearners[day][learner] = struct{}{}

	if cm.weeklyActiveLearners[week] == nil {
		cm.weeklyActiveLearners[week] = make(map[core.LearnerID]struct{})
	}
	cm.weeklyActiveLearners[week][learner] = struct{}{}

	if cm.monthlyActiveLearners[month] == nil {
		cm.monthlyActiveLearners[month] = make(map[core.LearnerID]struct{})
	}
	cm.monthlyActiveLearners[month][learner] = struct{}{}
}

// GetDailyActiveLearners returns the count of active learners for a specific day
func (cm *ComprehensiveMetrics) GetDailyActiveLearners(day string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if learners, exists := cm.dailyActiveLearners[day]; exists {
		return len(learners)
	}
	return 0
}

// GetWeeklyActiveLearners returns the count of active learners for a specific ISO week
func (cm *ComprehensiveMetrics) GetWeeklyActiveLearners(week string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if learners, exists := cm.weeklyActiveLearners[week]; exists {
		return len(learners)
	}
	return 0
}

// GetMonthlyActiveLearners returns the count of active learners for a specific month
func (cm *ComprehensiveMetrics) GetMonthlyActiveLearners(month string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if learners, exists := cm.monthlyActiveLearners[month]; exists {
		return len(learners)
	}
	return 0
}

// GetAttemptsByDay returns total attempts recorded on a specific day
func (cm *ComprehensiveMetrics) GetAttemptsByDay(day string) int64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.attemptsByDay[day]
}

// GetXPAwardedByDay returns total XP awarded on a specific day
func (cm *ComprehensiveMetrics) GetXPAwardedByDay(day string) int64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.xpAwardedByDay[day]
}

// GetXPByModule returns total XP awarded in a specific module
func (cm *ComprehensiveMetrics) GetXPByModule(module core.ModuleID) int64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.xpByModule[module]
}

// GetRewardsByDay returns total rewards unlocked on a specific day
func (cm *ComprehensiveMetrics) GetRewardsByDay(day string) int64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.rewardsByDay[day]
}

// GetRewardsByRarity returns total rewards unlocked of a specific rarity
func (cm *ComprehensiveMetrics) GetRewardsByRarity(rarity core.Rarity) int64 {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.rewardsByRarity[rarity]
}

// GetUniqueRewardHolders returns the count of learners holding a specific reward
func (cm *ComprehensiveMetrics) GetUniqueRewardHolders(code string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if holders, exists := cm.uniqueRewardHolders[code]; exists {
		return len(holders)
	}
	return 0
}

// GetLevelDistribution returns a copy of the level-up distribution
func (cm *ComprehensiveMetrics) GetLevelDistribution() map[int]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	out := make(map[int]int, len(cm.levelDistribution))
	for lvl, n := range cm.levelDistribution {
		out[lvl] = n
	}
	return out
}

// GetRealtimeStats returns real-time statistics for the last 24 hours
func (cm *ComprehensiveMetrics) GetRealtimeStats() (attempts, xp, rewards, levels int64) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.realtimeCounters.attemptsRecorded,
		cm.realtimeCounters.xpAwarded,
		cm.realtimeCounters.rewardsUnlocked,
		cm.realtimeCounters.levelsReached
}

// GetTopModules returns aggregated module metrics for reporting
func (cm *ComprehensiveMetrics) GetTopModules(limit int) map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	result := make(map[string]interface{})

	topModules := make([]struct {
		module core.ModuleID
		xp     int64
	}, 0, len(cm.xpByModule))

	for module, xp := range cm.xpByModule {
		topModules = append(topModules, struct {
			module core.ModuleID
			xp     int64
		}{module, xp})
	}

	// Sort by XP (simple bubble sort for small datasets)
	for i := 0; i < len(topModules); i++ {
		for j := i + 1; j < len(topModules); j++ {
			if topModules[i].xp < topModules[j].xp {
				topModules[i], topModules[j] = topModules[j], topModules[i]
			}
		}
	}

	if len(topModules) > limit {
		topModules = topModules[:limit]
	}

	topModulesData := make([]map[string]interface{}, len(topModules))
	for i, tm := range topModules {
		topModulesData[i] = map[string]interface{}{
			"module": tm.module,
			"xp":     tm.xp,
		}
	}

	result["top_modules_by_xp"] = topModulesData
	result["total_xp_awarded"] = sumModuleXP(cm.xpByModule)
	result["total_rewards_unlocked"] = sumRewardCounts(cm.rewardsByRarity)

	return result
}

// Helper functions
func getWeekKey(t time.Time) string {
	tt := t.UTC()
	year, week := tt.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func getMonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func sumModuleXP(m map[core.ModuleID]int64) int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}

func sumRewardCounts(m map[core.Rarity]int64) int64 {
	var total int64
	for _, v := range m {
		total += v
	}
	return total
}
