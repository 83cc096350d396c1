package core

import "math"

// tally accumulates one pass over an attempt history. Optional fields count
// toward their average only when the attempt recorded them.
type tally struct {
	total     int
	successes int
	scoreSum  float64
	scoreN    int
	accSum    float64
	accN      int
	timeSum   float64
	timeN     int
	cur       int
	best      int
	last      int // index of newest attempt, -1 when empty
}

// scan walks the history in submission order: a success extends the current
// run, a failure resets it, best keeps the longest run observed.
func scan(history []Attempt) tally {
	t := tally{last: -1}
	for i, a := range history {
		t.total++
		if a.Success {
			t.successes++
			t.cur++
			if t.cur > t.best {
				t.best = t.cur
			}
		} else {
			t.cur = 0
		}
		if a.Score != nil {
			t.scoreSum += *a.Score
			t.scoreN++
		}
		if a.Accuracy != nil {
			t.accSum += *a.Accuracy
			t.accN++
		}
		if a.TimeSpentSec != nil {
			t.timeSum += *a.TimeSpentSec
			t.timeN++
		}
		t.last = i
	}
	return t
}

func (t tally) successRate() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.successes) / float64(t.total)
}

func (t tally) averageAccuracy() float64 {
	if t.accN == 0 {
		return 0
	}
	return t.accSum / float64(t.accN)
}

func (t tally) averageTime() float64 {
	if t.timeN == 0 {
		return 0
	}
	return t.timeSum / float64(t.timeN)
}

// normalizedScore is the score average when any score was recorded, otherwise
// the success rate projected onto the 0-100 scale.
func (t tally) normalizedScore() float64 {
	if t.scoreN > 0 {
		return t.scoreSum / float64(t.scoreN)
	}
	return t.successRate() * 100
}

func (t tally) completion() int {
	if t.total == 0 {
		return 0
	}
	if t.scoreN > 0 && t.scoreSum/float64(t.scoreN) >= 95 {
		return 100
	}
	return clamp100(math.Round(0.7*t.normalizedScore() + 0.3*t.successRate()*100))
}

func (t tally) mastery() int {
	if t.total == 0 {
		return 0
	}
	ns := t.normalizedScore()
	accTerm := 0.3 * ns
	if t.accN > 0 {
		accTerm = 0.3 * t.averageAccuracy() * 100
	}
	streakTerm := math.Min(float64(t.best)*5, 25)
	v := 0.5*ns + accTerm + 0.2*t.successRate()*100 + streakTerm + timeBonus(t.averageTime())
	return clamp100(math.Round(v))
}

// timeBonus rewards a deliberate pace: rushing costs points, very long dwell
// times taper off. An average of exactly 0 means no timing data was recorded.
func timeBonus(avgSec float64) float64 {
	switch {
	case avgSec == 0:
		return 0
	case avgSec < 40:
		return -6
	case avgSec <= 90:
		return 6
	case avgSec <= 200:
		return 10
	case avgSec <= 360:
		return 4
	default:
		return -2
	}
}

// ComputeModuleMetrics recomputes module statistics from the complete
// module-scoped history, ordered ascending by submission time. An empty
// history yields all-zero metrics and StatusNotStarted.
func ComputeModuleMetrics(history []Attempt) ModuleMetrics {
	t := scan(history)
	m := ModuleMetrics{
		Completion:      t.completion(),
		Mastery:         t.mastery(),
		CurrentStreak:   t.cur,
		BestStreak:      t.best,
		AverageAccuracy: t.averageAccuracy(),
		AverageTimeSec:  t.averageTime(),
		TotalAttempts:   t.total,
	}
	m.Status = StatusFromCompletion(m.Completion)
	if t.last >= 0 {
		m.LastActivityAt = history[t.last].SubmittedAt
	}
	return m
}

// ComputeCompetencyMetrics recomputes competency statistics from the complete
// competency-scoped history, ordered ascending by submission time.
func ComputeCompetencyMetrics(history []Attempt) CompetencyMetrics {
	t := scan(history)
	m := CompetencyMetrics{
		Mastery:         t.mastery(),
		CurrentStreak:   t.cur,
		BestStreak:      t.best,
		AverageAccuracy: t.averageAccuracy(),
		AverageTimeSec:  t.averageTime(),
		TotalAttempts:   t.total,
	}
	if t.last >= 0 {
		m.LastActivityAt = history[t.last].SubmittedAt
	}
	return m
}
