package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"progresskit/core"
)

// SubmitResult mirrors the JSON response of the submit-attempt endpoint.
type SubmitResult struct {
	Attempt    core.Attempt            `json:"attempt"`
	Module     core.ModuleProgress     `json:"module"`
	Competency core.CompetencyProgress `json:"competency"`
	User       core.UserGameState      `json:"user"`
	XPGained   int64                   `json:"xp_gained"`
	Unlocked   []core.Reward           `json:"unlocked"`
}

// LearnerSummary mirrors the learner summary JSON surface.
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
	Kind     string  `json:"kind"`
	ID       string  `json:"id,omitempty"`
	Progress float64 `json:"progress"`
	Target   float64 `json:"target"`
}

// FocusArea pairs a struggling module with a generated recommendation.
type FocusArea struct {
	Module         core.ModuleProgress `json:"module"`
	Recommendation string              `json:"recommendation"`
}

// Digest mirrors the educator digest JSON surface.
type Digest struct {
	Strengths       []core.CompetencyProgress `json:"strengths"`
	FocusAreas      []FocusArea               `json:"focus_areas"`
	RecentRewards   []core.Reward             `json:"recent_rewards"`
	Recommendations []string                  `json:"recommendations"`
}

// LeaderboardEntry is one ranked learner.
type LeaderboardEntry struct {
	Learner string `json:"learner"`
	XP      int64  `json:"xp"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Code != "" {
			return fmt.Errorf("request failed: status %d: %s: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyLearnerID is returned when the learner id is empty.
var ErrEmptyLearnerID = errors.New("learner id is required")
