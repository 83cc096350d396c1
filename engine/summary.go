package engine

import (
	"context"
	"fmt"
	"sort"

	"progresskit/core"
)

// Projector reshapes persisted aggregates into learner- and educator-facing
// views. It never recomputes metrics; everything derives from committed rows.
type Projector struct {
	store Store
	cache SummaryCache
}

// SummaryCache is an optional read-through cache for learner summaries.
type SummaryCache interface {
	GetSummary(ctx context.Context, learner core.LearnerID) (*LearnerSummary, bool)
	SetSummary(ctx context.Context, learner core.LearnerID, s *LearnerSummary)
	Invalidate(ctx context.Context, learner core.LearnerID)
}

func NewProjector(store Store) *Projector {
	if store == nil {
		panic("NewProjector requires a non-nil store")
	}
	return &Projector{store: store}
}

// WithCache returns a projector that serves summaries through the cache.
func (p *Projector) WithCache(cache SummaryCache) *Projector {
	return &Projector{store: p.store, cache: cache}
}

// LearnerSummary is the learner-facing dashboard projection.
type LearnerSummary struct {
	User          core.UserGameState        `json:"user"`
	XPPercent     float64                   `json:"xp_percent"`
	Modules       []core.ModuleProgress     `json:"modules"`
	Competencies  []core.CompetencyProgress `json:"competencies"`
	RecentRewards []core.Reward             `json:"recent_rewards"`
	Goals         []Goal                    `json:"goals"`
}

// Goal is one upcoming target, expressed as progress toward a bar.
type Goal struct {
	Kind     string  `json:"kind"` // module, competency, streak
	ID       string  `json:"id,omitempty"`
	Progress float64 `json:"progress"`
	Target   float64 `json:"target"`
}

// FocusArea pairs a struggling module with a generated recommendation.
type FocusArea struct {
	Module         core.ModuleProgress `json:"module"`
	Recommendation string              `json:"recommendation"`
}

// Digest is the educator-facing projection.
type Digest struct {
	Strengths       []core.CompetencyProgress `json:"strengths"`
	FocusAreas      []FocusArea               `json:"focus_areas"`
	RecentRewards   []core.Reward             `json:"recent_rewards"`
	Recommendations []string                  `json:"recommendations"`
}

const (
	maxGoals        = 6
	strengthBar     = 80
	focusBar        = 70
	digestTopN      = 3
	recentRewardCap = 3
)

// XPPercent reports how far through the current level band the learner is,
// clamped to [0,100]. A zero-width band counts as fully traversed.
func XPPercent(state core.UserGameState) float64 {
	floor := core.LevelFloor(state.Level)
	width := state.NextLevelAt - floor
	if width <= 0 {
		return 100
	}
	pct := float64(state.XP-floor) / float64(width) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// Summary builds the learner-facing view from committed state.
func (p *Projector) Summary(ctx context.Context, learner core.LearnerID) (*LearnerSummary, error) {
	learner, err := core.NormalizeLearnerID(learner)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		if s, ok := p.cache.GetSummary(ctx, learner); ok {
			return s, nil
		}
	}

	user, ok, err := p.store.ReadUserState(ctx, learner)
	if err != nil {
		return nil, err
	}
	if !ok {
		user = core.NewUserGameState(learner)
	}
	modules, err := p.store.ListModuleProgress(ctx, learner)
	if err != nil {
		return nil, err
	}
	competencies, err := p.store.ListCompetencyProgress(ctx, learner)
	if err != nil {
		return nil, err
	}
	rewards, err := p.store.RecentRewards(ctx, learner, recentRewardCap)
	if err != nil {
		return nil, err
	}

	s := &LearnerSummary{
		User:          user,
		XPPercent:     XPPercent(user),
		Modules:       modules,
		Competencies:  competencies,
		RecentRewards: rewards,
		Goals:         buildGoals(user, modules, competencies),
	}
	if p.cache != nil {
		p.cache.SetSummary(ctx, learner, s)
	}
	return s, nil
}

// RecentRewards lists the learner's newest unlocks, most recent first.
func (p *Projector) RecentRewards(ctx context.Context, learner core.LearnerID, limit int) ([]core.Reward, error) {
	learner, err := core.NormalizeLearnerID(learner)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = recentRewardCap
	}
	return p.store.RecentRewards(ctx, learner, limit)
}

// UpcomingGoals returns the ranked goal list on its own.
func (p *Projector) UpcomingGoals(ctx context.Context, learner core.LearnerID) ([]Goal, error) {
	s, err := p.Summary(ctx, learner)
	if err != nil {
		return nil, err
	}
	return s.Goals, nil
}

// buildGoals ranks unfinished modules, unmastered competencies, and the next
// streak bar by closeness to their target, capped at maxGoals.
func buildGoals(user core.UserGameState, modules []core.ModuleProgress, competencies []core.CompetencyProgress) []Goal {
	var goals []Goal
	for _, m := range modules {
		if m.Completion < 100 {
			goals = append(goals, Goal{Kind: "module", ID: string(m.ModuleID), Progress: float64(m.Completion), Target: 100})
		}
	}
	for _, c := range competencies {
		if c.Mastery < strengthBar {
			goals = append(goals, Goal{Kind: "competency", ID: string(c.CompetencyID), Progress: float64(c.Mastery), Target: strengthBar})
		}
	}
	for _, bar := range core.StreakThresholds {
		if user.CurrentStreak < bar {
			goals = append(goals, Goal{Kind: "streak", Progress: float64(user.CurrentStreak), Target: float64(bar)})
			break
		}
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Progress/goals[i].Target > goals[j].Progress/goals[j].Target
	})
	if len(goals) > maxGoals {
		goals = goals[:maxGoals]
	}
	return goals
}

// EducatorDigest builds the educator-facing view: strongest competencies,
// modules needing attention, recent unlocks, and deduplicated next steps.
func (p *Projector) EducatorDigest(ctx context.Context, learner core.LearnerID) (*Digest, error) {
	learner, err := core.NormalizeLearnerID(learner)
	if err != nil {
		return nil, err
	}
	user, ok, err := p.store.ReadUserState(ctx, learner)
	if err != nil {
		return nil, err
	}
	if !ok {
		user = core.NewUserGameState(learner)
	}
	modules, err := p.store.ListModuleProgress(ctx, learner)
	if err != nil {
		return nil, err
	}
	competencies, err := p.store.ListCompetencyProgress(ctx, learner)
	if err != nil {
		return nil, err
	}
	rewards, err := p.store.RecentRewards(ctx, learner, recentRewardCap)
	if err != nil {
		return nil, err
	}

	var strengths []core.CompetencyProgress
	for _, c := range competencies {
		if c.Mastery >= strengthBar {
			strengths = append(strengths, c)
		}
	}
	sort.SliceStable(strengths, func(i, j int) bool { return strengths[i].Mastery > strengths[j].Mastery })
	if len(strengths) > digestTopN {
		strengths = strengths[:digestTopN]
	}

	var weak []core.ModuleProgress
	for _, m := range modules {
		if m.Mastery < focusBar {
			weak = append(weak, m)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Mastery < weak[j].Mastery })
	if len(weak) > digestTopN {
		weak = weak[:digestTopN]
	}
	focus := make([]FocusArea, 0, len(weak))
	for _, m := range weak {
		focus = append(focus, FocusArea{Module: m, Recommendation: recommendModule(m)})
	}

	d := &Digest{
		Strengths:     strengths,
		FocusAreas:    focus,
		RecentRewards: rewards,
	}
	d.Recommendations = buildRecommendations(user, strengths, focus)
	return d, nil
}

func recommendModule(m core.ModuleProgress) string {
	switch {
	case m.TotalAttempts == 0:
		return fmt.Sprintf("Start %s with a short guided activity.", m.ModuleID)
	case m.AverageAccuracy > 0 && m.AverageAccuracy < 0.5:
		return fmt.Sprintf("Review the worked examples in %s before the next attempt.", m.ModuleID)
	default:
		return fmt.Sprintf("Schedule focused practice in %s to lift mastery above %d.", m.ModuleID, focusBar)
	}
}

// buildRecommendations merges module, strength, and streak advice, dropping
// duplicates while preserving order.
func buildRecommendations(user core.UserGameState, strengths []core.CompetencyProgress, focus []FocusArea) []string {
	var recs []string
	for _, f := range focus {
		recs = append(recs, f.Recommendation)
	}
	for _, s := range strengths {
		recs = append(recs, fmt.Sprintf("Offer stretch activities for %s; mastery is already strong.", s.CompetencyID))
	}
	if user.CurrentStreak == 0 {
		recs = append(recs, "Encourage a short warm-up activity to restart the success streak.")
	} else {
		recs = append(recs, fmt.Sprintf("Keep the %d-attempt success streak going with one activity today.", user.CurrentStreak))
	}

	seen := make(map[string]struct{}, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
