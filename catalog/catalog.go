// Package catalog provides activity directory implementations used by the
// boundary layer to resolve activity descriptors before a submission.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"progresskit/core"
	"progresskit/engine"
)

// Static is an in-memory activity directory. It is safe for concurrent use.
type Static struct {
	mu         sync.RWMutex
	activities map[core.ActivityID]core.Activity
}

var _ engine.ActivityDirectory = (*Static)(nil)

func NewStatic(activities ...core.Activity) *Static {
	s := &Static{activities: make(map[core.ActivityID]core.Activity, len(activities))}
	for _, a := range activities {
		s.activities[a.ID] = a
	}
	return s
}

// Add registers or replaces an activity descriptor.
func (s *Static) Add(a core.Activity) error {
	if a.ID == "" {
		return fmt.Errorf("activity id is required")
	}
	if a.Module.ID == "" {
		return fmt.Errorf("activity %s: module id is required", a.ID)
	}
	if a.Standard.ID == "" {
		return fmt.Errorf("activity %s: standard id is required", a.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[a.ID] = a
	return nil
}

func (s *Static) Activity(_ context.Context, id core.ActivityID) (core.Activity, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activities[id]
	return a, ok, nil
}

// Len reports the number of registered activities.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.activities)
}

// LoadFile reads a JSON catalog file containing an array of activity
// descriptors and returns a Static directory over them.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var activities []core.Activity
	if err := json.Unmarshal(raw, &activities); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	s := NewStatic()
	for _, a := range activities {
		if err := s.Add(a); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
	}
	return s, nil
}
