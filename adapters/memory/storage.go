package memory

import (
	"context"
	"sort"
	"sync"

	"progresskit/core"
	"progresskit/engine"
)

// Store is a concurrent in-memory engine.Store. Transactions work on a deep
// copy of the learner's data and swap it in on commit, so a failed unit of
// work leaves nothing behind. The per-learner lock is held for the whole
// transaction: submissions for one learner serialize, different learners
// proceed in parallel.
type Store struct {
	learners sync.Map // map[core.LearnerID]*learnerRecord
}

type learnerRecord struct {
	mu   sync.Mutex
	data learnerData
}

type learnerData struct {
	attempts     []core.Attempt
	modules      map[core.ModuleID]core.ModuleProgress
	competencies map[core.CompetencyID]core.CompetencyProgress
	state        *core.UserGameState
	rewards      map[string]core.Reward
	rewardOrder  []string
}

func newLearnerData() learnerData {
	return learnerData{
		modules:      map[core.ModuleID]core.ModuleProgress{},
		competencies: map[core.CompetencyID]core.CompetencyProgress{},
		rewards:      map[string]core.Reward{},
	}
}

func (d learnerData) clone() learnerData {
	cp := learnerData{
		attempts:     append([]core.Attempt(nil), d.attempts...),
		modules:      make(map[core.ModuleID]core.ModuleProgress, len(d.modules)),
		competencies: make(map[core.CompetencyID]core.CompetencyProgress, len(d.competencies)),
		rewards:      make(map[string]core.Reward, len(d.rewards)),
		rewardOrder:  append([]string(nil), d.rewardOrder...),
	}
	for k, v := range d.modules {
		cp.modules[k] = v
	}
	for k, v := range d.competencies {
		cp.competencies[k] = v
	}
	for k, v := range d.rewards {
		cp.rewards[k] = v
	}
	if d.state != nil {
		st := *d.state
		cp.state = &st
	}
	return cp
}

func New() *Store { return &Store{} }

func (s *Store) record(learner core.LearnerID) *learnerRecord {
	if v, ok := s.learners.Load(learner); ok {
		return v.(*learnerRecord)
	}
	rec := &learnerRecord{data: newLearnerData()}
	actual, _ := s.learners.LoadOrStore(learner, rec)
	return actual.(*learnerRecord)
}

// InTx runs fn against a working copy and commits it atomically on success.
func (s *Store) InTx(ctx context.Context, learner core.LearnerID, fn func(tx engine.Tx) error) error {
	rec := s.record(learner)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	work := rec.data.clone()
	if err := fn(&memTx{d: &work}); err != nil {
		return err
	}
	rec.data = work
	return nil
}

func (s *Store) ListModuleProgress(_ context.Context, learner core.LearnerID) ([]core.ModuleProgress, error) {
	rec := s.record(learner)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.ModuleProgress, 0, len(rec.data.modules))
	for _, p := range rec.data.modules {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (s *Store) ListCompetencyProgress(_ context.Context, learner core.LearnerID) ([]core.CompetencyProgress, error) {
	rec := s.record(learner)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.CompetencyProgress, 0, len(rec.data.competencies))
	for _, p := range rec.data.competencies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompetencyID < out[j].CompetencyID })
	return out, nil
}

func (s *Store) ReadUserState(_ context.Context, learner core.LearnerID) (core.UserGameState, bool, error) {
	rec := s.record(learner)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.data.state == nil {
		return core.UserGameState{}, false, nil
	}
	return *rec.data.state, true, nil
}

func (s *Store) RecentRewards(_ context.Context, learner core.LearnerID, limit int) ([]core.Reward, error) {
	rec := s.record(learner)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	order := rec.data.rewardOrder
	out := make([]core.Reward, 0, limit)
	for i := len(order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rec.data.rewards[order[i]])
	}
	return out, nil
}

// memTx mutates the transaction's working copy only.
type memTx struct {
	d *learnerData
}

func (t *memTx) InsertAttempt(_ context.Context, a core.Attempt) error {
	t.d.attempts = append(t.d.attempts, a)
	return nil
}

func (t *memTx) ModuleAttempts(_ context.Context, learner core.LearnerID, module core.ModuleID) ([]core.Attempt, error) {
	var out []core.Attempt
	for _, a := range t.d.attempts {
		if a.LearnerID == learner && a.ModuleID == module {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (t *memTx) CompetencyAttempts(_ context.Context, learner core.LearnerID, competency core.CompetencyID) ([]core.Attempt, error) {
	var out []core.Attempt
	for _, a := range t.d.attempts {
		if a.LearnerID == learner && a.CompetencyID == competency {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (t *memTx) ModuleProgress(_ context.Context, _ core.LearnerID, module core.ModuleID) (core.ModuleProgress, bool, error) {
	p, ok := t.d.modules[module]
	return p, ok, nil
}

func (t *memTx) CompetencyProgress(_ context.Context, _ core.LearnerID, competency core.CompetencyID) (core.CompetencyProgress, bool, error) {
	p, ok := t.d.competencies[competency]
	return p, ok, nil
}

func (t *memTx) UpsertModuleProgress(_ context.Context, p core.ModuleProgress) error {
	t.d.modules[p.ModuleID] = p
	return nil
}

func (t *memTx) UpsertCompetencyProgress(_ context.Context, p core.CompetencyProgress) error {
	t.d.competencies[p.CompetencyID] = p
	return nil
}

func (t *memTx) UserState(_ context.Context, _ core.LearnerID) (core.UserGameState, bool, error) {
	if t.d.state == nil {
		return core.UserGameState{}, false, nil
	}
	return *t.d.state, true, nil
}

func (t *memTx) SaveUserState(_ context.Context, s core.UserGameState) error {
	t.d.state = &s
	return nil
}

func (t *memTx) InsertRewardIfAbsent(_ context.Context, r core.Reward) (bool, error) {
	if _, ok := t.d.rewards[r.Code]; ok {
		return false, nil
	}
	t.d.rewards[r.Code] = r
	t.d.rewardOrder = append(t.d.rewardOrder, r.Code)
	return true, nil
}

var _ engine.Store = (*Store)(nil)
var _ engine.Tx = (*memTx)(nil)
