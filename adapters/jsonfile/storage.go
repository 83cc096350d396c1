package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"progresskit/core"
	"progresskit/engine"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.LearnerID]learnerBlob
}

// learnerBlob is the on-disk shape of one learner's data. Rewards keep
// unlock order so newest-first queries need no timestamps on disk.
type learnerBlob struct {
	Attempts     []core.Attempt            `json:"attempts,omitempty"`
	Modules      []core.ModuleProgress     `json:"modules,omitempty"`
	Competencies []core.CompetencyProgress `json:"competencies,omitempty"`
	State        *core.UserGameState       `json:"state,omitempty"`
	Rewards      []core.Reward             `json:"rewards,omitempty"`
}

func (b learnerBlob) clone() learnerBlob {
	cp := learnerBlob{
		Attempts:     append([]core.Attempt(nil), b.Attempts...),
		Modules:      append([]core.ModuleProgress(nil), b.Modules...),
		Competencies: append([]core.CompetencyProgress(nil), b.Competencies...),
		Rewards:      append([]core.Reward(nil), b.Rewards...),
	}
	if b.State != nil {
		st := *b.State
		cp.State = &st
	}
	return cp
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.LearnerID]learnerBlob{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]learnerBlob
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		s.data[core.LearnerID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]learnerBlob, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// InTx runs fn against a working copy; the copy is swapped in and flushed to
// disk only when fn succeeds. The store lock covers the whole transaction,
// so all submissions serialize through the file. A failed flush restores the
// previous in-memory state, so readers never observe writes that did not
// reach disk.
func (s *Store) InTx(ctx context.Context, learner core.LearnerID, fn func(tx engine.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data[learner].clone()
	if err := fn(&fileTx{learner: learner, b: &work}); err != nil {
		return err
	}
	prev, had := s.data[learner]
	s.data[learner] = work
	if err := s.persist(); err != nil {
		if had {
			s.data[learner] = prev
		} else {
			delete(s.data, learner)
		}
		return err
	}
	return nil
}

func (s *Store) ListModuleProgress(_ context.Context, learner core.LearnerID) ([]core.ModuleProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.ModuleProgress(nil), s.data[learner].Modules...)
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (s *Store) ListCompetencyProgress(_ context.Context, learner core.LearnerID) ([]core.CompetencyProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.CompetencyProgress(nil), s.data[learner].Competencies...)
	sort.Slice(out, func(i, j int) bool { return out[i].CompetencyID < out[j].CompetencyID })
	return out, nil
}

func (s *Store) ReadUserState(_ context.Context, learner core.LearnerID) (core.UserGameState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.data[learner].State
	if st == nil {
		return core.UserGameState{}, false, nil
	}
	return *st, true, nil
}

func (s *Store) RecentRewards(_ context.Context, learner core.LearnerID, limit int) ([]core.Reward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rewards := s.data[learner].Rewards
	out := make([]core.Reward, 0, limit)
	for i := len(rewards) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rewards[i])
	}
	return out, nil
}

// fileTx mutates the transaction's working copy only.
type fileTx struct {
	learner core.LearnerID
	b       *learnerBlob
}

func (t *fileTx) InsertAttempt(_ context.Context, a core.Attempt) error {
	t.b.Attempts = append(t.b.Attempts, a)
	return nil
}

func (t *fileTx) ModuleAttempts(_ context.Context, learner core.LearnerID, module core.ModuleID) ([]core.Attempt, error) {
	var out []core.Attempt
	for _, a := range t.b.Attempts {
		if a.LearnerID == learner && a.ModuleID == module {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (t *fileTx) CompetencyAttempts(_ context.Context, learner core.LearnerID, competency core.CompetencyID) ([]core.Attempt, error) {
	var out []core.Attempt
	for _, a := range t.b.Attempts {
		if a.LearnerID == learner && a.CompetencyID == competency {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (t *fileTx) ModuleProgress(_ context.Context, _ core.LearnerID, module core.ModuleID) (core.ModuleProgress, bool, error) {
	for _, p := range t.b.Modules {
		if p.ModuleID == module {
			return p, true, nil
		}
	}
	return core.ModuleProgress{}, false, nil
}

func (t *fileTx) CompetencyProgress(_ context.Context, _ core.LearnerID, competency core.CompetencyID) (core.CompetencyProgress, bool, error) {
	for _, p := range t.b.Competencies {
		if p.CompetencyID == competency {
			return p, true, nil
		}
	}
	return core.CompetencyProgress{}, false, nil
}

func (t *fileTx) UpsertModuleProgress(_ context.Context, p core.ModuleProgress) error {
	for i := range t.b.Modules {
		if t.b.Modules[i].ModuleID == p.ModuleID {
			t.b.Modules[i] = p
			return nil
		}
	}
	t.b.Modules = append(t.b.Modules, p)
	return nil
}

func (t *fileTx) UpsertCompetencyProgress(_ context.Context, p core.CompetencyProgress) error {
	for i := range t.b.Competencies {
		if t.b.Competencies[i].CompetencyID == p.CompetencyID {
			t.b.Competencies[i] = p
			return nil
		}
	}
	t.b.Competencies = append(t.b.Competencies, p)
	return nil
}

func (t *fileTx) UserState(_ context.Context, _ core.LearnerID) (core.UserGameState, bool, error) {
	if t.b.State == nil {
		return core.UserGameState{}, false, nil
	}
	return *t.b.State, true, nil
}

func (t *fileTx) SaveUserState(_ context.Context, s core.UserGameState) error {
	t.b.State = &s
	return nil
}

func (t *fileTx) InsertRewardIfAbsent(_ context.Context, r core.Reward) (bool, error) {
	for _, have := range t.b.Rewards {
		if have.Code == r.Code {
			return false, nil
		}
	}
	t.b.Rewards = append(t.b.Rewards, r)
	return true, nil
}

var _ engine.Store = (*Store)(nil)
var _ engine.Tx = (*fileTx)(nil)
