package leaderboard

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"progresskit/core"
)

// A simple skip list keyed by (xp desc, learner asc) to achieve O(log n) updates.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
}

type SkipList struct {
	mu        sync.RWMutex
	head      *node
	lvl       int
	byLearner map[core.LearnerID]*node
	rng       *rand.Rand
}

func NewSkipList() *SkipList {
	// Use crypto/rand to generate a secure seed for PCG
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		// Fallback to zero seed if crypto/rand fails (extremely unlikely)
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:      &node{},
		lvl:       1,
		byLearner: map[core.LearnerID]*node{},
		rng:       rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func less(a, b Entry) bool {
	if a.XP == b.XP {
		return a.Learner < b.Learner
	}
	return a.XP > b.XP // higher xp first
}

// SetXP inserts or moves the learner to a new total.
func (s *SkipList) SetXP(_ context.Context, learner core.LearnerID, xp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byLearner[learner]; ok {
		// remove old node
		s.removeLocked(learner, old.e)
	}
	e := Entry{Learner: learner, XP: xp}
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.byLearner[learner] = n
	return nil
}

func (s *SkipList) removeLocked(learner core.LearnerID, e Entry) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.Learner != learner {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(s.byLearner, learner)
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(_ context.Context, learner core.LearnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byLearner[learner]; ok {
		s.removeLocked(learner, n.e)
	}
	return nil
}

func (s *SkipList) TopN(_ context.Context, n int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		return nil, nil
	}
	out := make([]Entry, 0, n)
	cur := s.head.next[0]
	for cur != nil && len(out) < n {
		out = append(out, cur.e)
		cur = cur.next[0]
	}
	return out, nil
}

func (s *SkipList) Get(_ context.Context, learner core.LearnerID) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byLearner[learner]; ok {
		return n.e, true, nil
	}
	return Entry{}, false, nil
}

var _ Board = (*SkipList)(nil)
