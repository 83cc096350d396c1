package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mem "progresskit/adapters/memory"
	"progresskit/catalog"
	"progresskit/core"
	"progresskit/engine"
	"progresskit/leaderboard"
)

func TestSubmitAttemptSuccess(t *testing.T) {
	handler := NewMux(newTestDeps(), Options{PathPrefix: "/api"})

	body := `{"activity_id":"act-1","success":true,"score":100,"max_score":100,"accuracy":1.0,"time_spent_sec":120}`
	req := httptest.NewRequest(http.MethodPost, "/api/learners/Ada/attempts", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["xp_gained"] == nil || resp["xp_gained"].(float64) <= 0 {
		t.Fatalf("expected positive xp_gained, got %v", resp["xp_gained"])
	}
	attempt, ok := resp["attempt"].(map[string]any)
	if !ok || attempt["learner_id"] != "ada" {
		t.Fatalf("expected normalized learner id, got %v", resp["attempt"])
	}
}

func TestSubmitAttemptUnknownActivity(t *testing.T) {
	handler := NewMux(newTestDeps(), Options{PathPrefix: "/api"})

	body := `{"activity_id":"missing","success":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/learners/ada/attempts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSubmitAttemptValidation(t *testing.T) {
	handler := NewMux(newTestDeps(), Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodPost, "/api/learners/ada/attempts", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/learners/ada/attempts", strings.NewReader(`{"success":true}`))
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing activity_id, got %d", rec2.Code)
	}
}

// failingStore errors on every transaction, simulating a dead backend.
type failingStore struct{}

func (failingStore) InTx(context.Context, core.LearnerID, func(engine.Tx) error) error {
	return errors.New("disk full")
}
func (failingStore) ListModuleProgress(context.Context, core.LearnerID) ([]core.ModuleProgress, error) {
	return nil, nil
}
func (failingStore) ListCompetencyProgress(context.Context, core.LearnerID) ([]core.CompetencyProgress, error) {
	return nil, nil
}
func (failingStore) ReadUserState(context.Context, core.LearnerID) (core.UserGameState, bool, error) {
	return core.UserGameState{}, false, nil
}
func (failingStore) RecentRewards(context.Context, core.LearnerID, int) ([]core.Reward, error) {
	return nil, nil
}

func TestSubmitAttemptStoreFailureIs500(t *testing.T) {
	deps := newTestDeps()
	deps.Service = engine.NewProgressService(failingStore{}, engine.NewEventBus(engine.DispatchSync))
	deps.Projector = engine.NewProjector(failingStore{})
	handler := NewMux(deps, Options{PathPrefix: "/api"})

	body := `{"activity_id":"act-1","success":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/learners/ada/attempts", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("store failure must map to 500, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["code"] != "internal" {
		t.Fatalf("expected internal error code, got %v", resp["code"])
	}
}

func TestGetSummaryFreshLearner(t *testing.T) {
	handler := NewMux(newTestDeps(), Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodGet, "/api/learners/unknown", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	user, ok := resp["user"].(map[string]any)
	if !ok || user["level"] != float64(1) {
		t.Fatalf("expected fresh level 1 state, got %v", resp["user"])
	}
}

func TestGoalsDigestRewardsRoutes(t *testing.T) {
	deps := newTestDeps()
	handler := NewMux(deps, Options{PathPrefix: "/api"})

	body := `{"activity_id":"act-1","success":true,"score":100,"max_score":100,"accuracy":1.0,"time_spent_sec":120}`
	seed := httptest.NewRequest(http.MethodPost, "/api/learners/ada/attempts", strings.NewReader(body))
	handler.ServeHTTP(httptest.NewRecorder(), seed)

	for _, route := range []string{"/api/learners/ada/goals", "/api/learners/ada/digest", "/api/learners/ada/rewards"} {
		req := httptest.NewRequest(http.MethodGet, route, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", route, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/learners/ada/rewards?limit=bad", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestLeaderboardRoute(t *testing.T) {
	deps := newTestDeps()
	_ = deps.Board.SetXP(context.Background(), "ada", 500)
	_ = deps.Board.SetXP(context.Background(), "bea", 900)
	handler := NewMux(deps, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?n=1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Entries []leaderboard.Entry `json:"entries"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].Learner != "bea" {
		t.Fatalf("expected top entry bea, got %+v", resp.Entries)
	}
}

func TestHealthz(t *testing.T) {
	handler := NewMux(newTestDeps(), Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	handler := NewMux(newTestDeps(), Options{
		PathPrefix:      "/api",
		APIKeys:         []string{"secret"},
		AllowCORSOrigin: "*",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/learners/ada", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/learners/ada", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
}

func TestRateLimit(t *testing.T) {
	handler := NewMux(newTestDeps(), Options{
		PathPrefix:       "/api",
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	req1 := httptest.NewRequest(http.MethodGet, "/api/learners/ada", nil)
	req1.Header.Set("X-API-Key", "k")
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected 200 first request, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/learners/ada", nil)
	req2.Header.Set("X-API-Key", "k")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec2.Code)
	}
}

func newTestDeps() Deps {
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewProgressService(storage, bus)
	directory := catalog.NewStatic(core.Activity{
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
	})
	return Deps{
		Service:   svc,
		Projector: engine.NewProjector(storage),
		Directory: directory,
		Board:     leaderboard.NewSkipList(),
		Hub:       nil,
	}
}
