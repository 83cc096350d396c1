package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"progresskit/core"
	"progresskit/engine"
)

func TestMemoryStoreCommit(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.InTx(ctx, "lea", func(tx engine.Tx) error {
		if err := tx.InsertAttempt(ctx, core.Attempt{ID: "a1", LearnerID: "lea", ModuleID: "m1", SubmittedAt: time.Now()}); err != nil {
			return err
		}
		return tx.SaveUserState(ctx, core.UserGameState{LearnerID: "lea", XP: 80, Level: 1, NextLevelAt: 1000})
	})
	if err != nil {
		t.Fatal(err)
	}
	st, ok, err := s.ReadUserState(ctx, "lea")
	if err != nil || !ok || st.XP != 80 {
		t.Fatalf("got %+v ok=%v err=%v", st, ok, err)
	}
}

func TestMemoryStoreRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.InTx(ctx, "lea", func(tx engine.Tx) error {
		_ = tx.InsertAttempt(ctx, core.Attempt{ID: "a1", LearnerID: "lea", ModuleID: "m1"})
		_ = tx.SaveUserState(ctx, core.UserGameState{LearnerID: "lea", XP: 999})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	if _, ok, _ := s.ReadUserState(ctx, "lea"); ok {
		t.Fatal("failed transaction must leave no state behind")
	}
}

func TestHistoryOrderingAndScoping(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	err := s.InTx(ctx, "lea", func(tx engine.Tx) error {
		// inserted out of submission order on purpose
		_ = tx.InsertAttempt(ctx, core.Attempt{ID: "a2", LearnerID: "lea", ModuleID: "m1", CompetencyID: "c1", SubmittedAt: base.Add(time.Hour)})
		_ = tx.InsertAttempt(ctx, core.Attempt{ID: "a1", LearnerID: "lea", ModuleID: "m1", CompetencyID: "c1", SubmittedAt: base})
		_ = tx.InsertAttempt(ctx, core.Attempt{ID: "b1", LearnerID: "lea", ModuleID: "m2", CompetencyID: "c2", SubmittedAt: base})
		hist, err := tx.ModuleAttempts(ctx, "lea", "m1")
		if err != nil {
			return err
		}
		if len(hist) != 2 || hist[0].ID != "a1" || hist[1].ID != "a2" {
			t.Fatalf("history not ordered by submission time: %+v", hist)
		}
		comp, _ := tx.CompetencyAttempts(ctx, "lea", "c2")
		if len(comp) != 1 || comp[0].ID != "b1" {
			t.Fatalf("competency scoping broken: %+v", comp)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInsertRewardIfAbsent(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.InTx(ctx, "lea", func(tx engine.Tx) error {
		created, err := tx.InsertRewardIfAbsent(ctx, core.Reward{LearnerID: "lea", Code: "level:2"})
		if err != nil || !created {
			t.Fatalf("first insert: created=%v err=%v", created, err)
		}
		created, err = tx.InsertRewardIfAbsent(ctx, core.Reward{LearnerID: "lea", Code: "level:2"})
		if err != nil || created {
			t.Fatalf("duplicate insert must be a no-op: created=%v err=%v", created, err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	rs, _ := s.RecentRewards(ctx, "lea", 5)
	if len(rs) != 1 {
		t.Fatalf("want 1 reward, got %d", len(rs))
	}
}

func TestRecentRewardsNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.InTx(ctx, "lea", func(tx engine.Tx) error {
		for _, code := range []string{"xp:500", "level:2", "module:m1:completion"} {
			_, _ = tx.InsertRewardIfAbsent(ctx, core.Reward{LearnerID: "lea", Code: code})
		}
		return nil
	})
	rs, err := s.RecentRewards(ctx, "lea", 2)
	if err != nil || len(rs) != 2 {
		t.Fatalf("got %d rewards err=%v", len(rs), err)
	}
	if rs[0].Code != "module:m1:completion" || rs[1].Code != "level:2" {
		t.Fatalf("rewards not newest-first: %+v", rs)
	}
}
