// Package sqlx provides a SQL-backed engine.Store using jmoiron/sqlx.
// Postgres and MySQL are supported; queries are written with ? placeholders
// and rebound per driver.
package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	libsqlx "github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"progresskit/core"
	"progresskit/engine"
)

type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config describes the database connection.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements engine.Store on a SQL database. Each submission runs in
// its own transaction; reward uniqueness is enforced by the primary key on
// (learner_id, code) so concurrent submissions cannot double-mint.
type Store struct {
	db     *libsqlx.DB
	driver Driver
}

func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sqlx: empty DSN")
	}
	db, err := libsqlx.Connect(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlx: connect: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return NewWithDB(db, cfg.Driver), nil
}

// NewWithDB wraps an existing connection pool. Used by tests and callers
// that manage the pool themselves.
func NewWithDB(db *libsqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS attempts (
		id VARCHAR(64) PRIMARY KEY,
		learner_id VARCHAR(128) NOT NULL,
		activity_id VARCHAR(128) NOT NULL,
		module_id VARCHAR(128) NOT NULL,
		competency_id VARCHAR(128) NOT NULL,
		success BOOLEAN NOT NULL,
		score DOUBLE PRECISION,
		max_score DOUBLE PRECISION,
		accuracy DOUBLE PRECISION,
		time_spent_sec DOUBLE PRECISION,
		metadata TEXT,
		submitted_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_module ON attempts (learner_id, module_id, submitted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_competency ON attempts (learner_id, competency_id, submitted_at)`,
	`CREATE TABLE IF NOT EXISTS module_progress (
		learner_id VARCHAR(128) NOT NULL,
		module_id VARCHAR(128) NOT NULL,
		completion INT NOT NULL,
		status VARCHAR(16) NOT NULL,
		mastery INT NOT NULL,
		current_streak INT NOT NULL,
		best_streak INT NOT NULL,
		average_accuracy DOUBLE PRECISION NOT NULL,
		average_time_sec DOUBLE PRECISION NOT NULL,
		total_attempts INT NOT NULL,
		last_activity_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (learner_id, module_id)
	)`,
	`CREATE TABLE IF NOT EXISTS competency_progress (
		learner_id VARCHAR(128) NOT NULL,
		competency_id VARCHAR(128) NOT NULL,
		mastery INT NOT NULL,
		current_streak INT NOT NULL,
		best_streak INT NOT NULL,
		average_accuracy DOUBLE PRECISION NOT NULL,
		average_time_sec DOUBLE PRECISION NOT NULL,
		total_attempts INT NOT NULL,
		last_activity_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (learner_id, competency_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_state (
		learner_id VARCHAR(128) PRIMARY KEY,
		xp BIGINT NOT NULL,
		level INT NOT NULL,
		next_level_at BIGINT NOT NULL,
		current_streak INT NOT NULL,
		longest_streak INT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rewards (
		learner_id VARCHAR(128) NOT NULL,
		code VARCHAR(191) NOT NULL,
		category VARCHAR(32) NOT NULL,
		rarity VARCHAR(16) NOT NULL,
		xp_awarded BIGINT NOT NULL,
		module_id VARCHAR(128),
		competency_id VARCHAR(128),
		streak_threshold INT,
		level INT,
		xp_milestone BIGINT,
		collectible BOOLEAN NOT NULL,
		unlocked_at TIMESTAMP NOT NULL,
		PRIMARY KEY (learner_id, code)
	)`,
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlx: ensure schema: %w", err)
		}
	}
	return nil
}

// InTx runs fn inside one database transaction.
func (s *Store) InTx(ctx context.Context, learner core.LearnerID, fn func(tx engine.Tx) error) error {
	txx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlx: begin: %w", err)
	}
	st := &sqlTx{tx: txx, driver: s.driver}
	if err := fn(st); err != nil {
		_ = txx.Rollback()
		return err
	}
	if err := txx.Commit(); err != nil {
		return fmt.Errorf("sqlx: commit: %w", err)
	}
	return nil
}

func (s *Store) ListModuleProgress(ctx context.Context, learner core.LearnerID) ([]core.ModuleProgress, error) {
	q := s.db.Rebind(`SELECT * FROM module_progress WHERE learner_id = ? ORDER BY module_id`)
	var rows []moduleRow
	if err := s.db.SelectContext(ctx, &rows, q, learner); err != nil {
		return nil, fmt.Errorf("sqlx: list module progress: %w", err)
	}
	out := make([]core.ModuleProgress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.progress())
	}
	return out, nil
}

func (s *Store) ListCompetencyProgress(ctx context.Context, learner core.LearnerID) ([]core.CompetencyProgress, error) {
	q := s.db.Rebind(`SELECT * FROM competency_progress WHERE learner_id = ? ORDER BY competency_id`)
	var rows []competencyRow
	if err := s.db.SelectContext(ctx, &rows, q, learner); err != nil {
		return nil, fmt.Errorf("sqlx: list competency progress: %w", err)
	}
	out := make([]core.CompetencyProgress, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.progress())
	}
	return out, nil
}

func (s *Store) ReadUserState(ctx context.Context, learner core.LearnerID) (core.UserGameState, bool, error) {
	q := s.db.Rebind(`SELECT learner_id, xp, level, next_level_at, current_streak, longest_streak, updated_at FROM user_state WHERE learner_id = ?`)
	var row userStateRow
	err := s.db.GetContext(ctx, &row, q, learner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserGameState{}, false, nil
	}
	if err != nil {
		return core.UserGameState{}, false, fmt.Errorf("sqlx: read user state: %w", err)
	}
	return row.state(), true, nil
}

func (s *Store) RecentRewards(ctx context.Context, learner core.LearnerID, limit int) ([]core.Reward, error) {
	q := s.db.Rebind(`SELECT * FROM rewards WHERE learner_id = ? ORDER BY unlocked_at DESC, code DESC LIMIT ?`)
	var rows []rewardRow
	if err := s.db.SelectContext(ctx, &rows, q, learner, limit); err != nil {
		return nil, fmt.Errorf("sqlx: recent rewards: %w", err)
	}
	out := make([]core.Reward, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.reward())
	}
	return out, nil
}

// sqlTx implements engine.Tx on one open transaction.
type sqlTx struct {
	tx     *libsqlx.Tx
	driver Driver
}

func (t *sqlTx) InsertAttempt(ctx context.Context, a core.Attempt) error {
	var meta sql.NullString
	if len(a.Metadata) > 0 {
		b, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("sqlx: encode metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	q := t.tx.Rebind(`INSERT INTO attempts (id, learner_id, activity_id, module_id, competency_id, success, score, max_score, accuracy, time_spent_sec, metadata, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := t.tx.ExecContext(ctx, q,
		a.ID, a.LearnerID, a.ActivityID, a.ModuleID, a.CompetencyID, a.Success,
		nullFloat(a.Score), nullFloat(a.MaxScore), nullFloat(a.Accuracy), nullFloat(a.TimeSpentSec),
		meta, a.SubmittedAt)
	if err != nil {
		return fmt.Errorf("sqlx: insert attempt: %w", err)
	}
	return nil
}

func (t *sqlTx) ModuleAttempts(ctx context.Context, learner core.LearnerID, module core.ModuleID) ([]core.Attempt, error) {
	q := t.tx.Rebind(`SELECT * FROM attempts WHERE learner_id = ? AND module_id = ? ORDER BY submitted_at ASC, id ASC`)
	return t.selectAttempts(ctx, q, learner, module)
}

func (t *sqlTx) CompetencyAttempts(ctx context.Context, learner core.LearnerID, competency core.CompetencyID) ([]core.Attempt, error) {
	q := t.tx.Rebind(`SELECT * FROM attempts WHERE learner_id = ? AND competency_id = ? ORDER BY submitted_at ASC, id ASC`)
	return t.selectAttempts(ctx, q, learner, competency)
}

func (t *sqlTx) selectAttempts(ctx context.Context, q string, args ...any) ([]core.Attempt, error) {
	var rows []attemptRow
	if err := t.tx.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("sqlx: select attempts: %w", err)
	}
	out := make([]core.Attempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.attempt()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (t *sqlTx) ModuleProgress(ctx context.Context, learner core.LearnerID, module core.ModuleID) (core.ModuleProgress, bool, error) {
	q := t.tx.Rebind(`SELECT * FROM module_progress WHERE learner_id = ? AND module_id = ?`)
	var row moduleRow
	err := t.tx.GetContext(ctx, &row, q, learner, module)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ModuleProgress{}, false, nil
	}
	if err != nil {
		return core.ModuleProgress{}, false, fmt.Errorf("sqlx: module progress: %w", err)
	}
	return row.progress(), true, nil
}

func (t *sqlTx) CompetencyProgress(ctx context.Context, learner core.LearnerID, competency core.CompetencyID) (core.CompetencyProgress, bool, error) {
	q := t.tx.Rebind(`SELECT * FROM competency_progress WHERE learner_id = ? AND competency_id = ?`)
	var row competencyRow
	err := t.tx.GetContext(ctx, &row, q, learner, competency)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CompetencyProgress{}, false, nil
	}
	if err != nil {
		return core.CompetencyProgress{}, false, fmt.Errorf("sqlx: competency progress: %w", err)
	}
	return row.progress(), true, nil
}

func (t *sqlTx) UpsertModuleProgress(ctx context.Context, p core.ModuleProgress) error {
	var exists bool
	q := t.tx.Rebind(`SELECT EXISTS (SELECT 1 FROM module_progress WHERE learner_id = ? AND module_id = ?)`)
	if err := t.tx.GetContext(ctx, &exists, q, p.LearnerID, p.ModuleID); err != nil {
		return fmt.Errorf("sqlx: upsert module progress: %w", err)
	}
	if exists {
		q = t.tx.Rebind(`UPDATE module_progress SET completion = ?, status = ?, mastery = ?, current_streak = ?, best_streak = ?, average_accuracy = ?, average_time_sec = ?, total_attempts = ?, last_activity_at = ?, updated_at = ?
			WHERE learner_id = ? AND module_id = ?`)
		_, err := t.tx.ExecContext(ctx, q,
			p.Completion, p.Status, p.Mastery, p.CurrentStreak, p.BestStreak,
			p.AverageAccuracy, p.AverageTimeSec, p.TotalAttempts, p.LastActivityAt, p.UpdatedAt,
			p.LearnerID, p.ModuleID)
		if err != nil {
			return fmt.Errorf("sqlx: update module progress: %w", err)
		}
		return nil
	}
	q = t.tx.Rebind(`INSERT INTO module_progress (learner_id, module_id, completion, status, mastery, current_streak, best_streak, average_accuracy, average_time_sec, total_attempts, last_activity_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := t.tx.ExecContext(ctx, q,
		p.LearnerID, p.ModuleID, p.Completion, p.Status, p.Mastery,
		p.CurrentStreak, p.BestStreak, p.AverageAccuracy, p.AverageTimeSec,
		p.TotalAttempts, p.LastActivityAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlx: insert module progress: %w", err)
	}
	return nil
}

func (t *sqlTx) UpsertCompetencyProgress(ctx context.Context, p core.CompetencyProgress) error {
	var exists bool
	q := t.tx.Rebind(`SELECT EXISTS (SELECT 1 FROM competency_progress WHERE learner_id = ? AND competency_id = ?)`)
	if err := t.tx.GetContext(ctx, &exists, q, p.LearnerID, p.CompetencyID); err != nil {
		return fmt.Errorf("sqlx: upsert competency progress: %w", err)
	}
	if exists {
		q = t.tx.Rebind(`UPDATE competency_progress SET mastery = ?, current_streak = ?, best_streak = ?, average_accuracy = ?, average_time_sec = ?, total_attempts = ?, last_activity_at = ?, updated_at = ?
			WHERE learner_id = ? AND competency_id = ?`)
		_, err := t.tx.ExecContext(ctx, q,
			p.Mastery, p.CurrentStreak, p.BestStreak, p.AverageAccuracy, p.AverageTimeSec,
			p.TotalAttempts, p.LastActivityAt, p.UpdatedAt,
			p.LearnerID, p.CompetencyID)
		if err != nil {
			return fmt.Errorf("sqlx: update competency progress: %w", err)
		}
		return nil
	}
	q = t.tx.Rebind(`INSERT INTO competency_progress (learner_id, competency_id, mastery, current_streak, best_streak, average_accuracy, average_time_sec, total_attempts, last_activity_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := t.tx.ExecContext(ctx, q,
		p.LearnerID, p.CompetencyID, p.Mastery, p.CurrentStreak, p.BestStreak,
		p.AverageAccuracy, p.AverageTimeSec, p.TotalAttempts, p.LastActivityAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlx: insert competency progress: %w", err)
	}
	return nil
}

func (t *sqlTx) UserState(ctx context.Context, learner core.LearnerID) (core.UserGameState, bool, error) {
	q := t.tx.Rebind(`SELECT learner_id, xp, level, next_level_at, current_streak, longest_streak, updated_at FROM user_state WHERE learner_id = ?`)
	var row userStateRow
	err := t.tx.GetContext(ctx, &row, q, learner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserGameState{}, false, nil
	}
	if err != nil {
		return core.UserGameState{}, false, fmt.Errorf("sqlx: user state: %w", err)
	}
	return row.state(), true, nil
}

func (t *sqlTx) SaveUserState(ctx context.Context, s core.UserGameState) error {
	var exists bool
	q := t.tx.Rebind(`SELECT EXISTS (SELECT 1 FROM user_state WHERE learner_id = ?)`)
	if err := t.tx.GetContext(ctx, &exists, q, s.LearnerID); err != nil {
		return fmt.Errorf("sqlx: save user state: %w", err)
	}
	if exists {
		q = t.tx.Rebind(`UPDATE user_state SET xp = ?, level = ?, next_level_at = ?, current_streak = ?, longest_streak = ?, updated_at = ? WHERE learner_id = ?`)
		_, err := t.tx.ExecContext(ctx, q, s.XP, s.Level, s.NextLevelAt, s.CurrentStreak, s.LongestStreak, s.UpdatedAt, s.LearnerID)
		if err != nil {
			return fmt.Errorf("sqlx: update user state: %w", err)
		}
		return nil
	}
	q = t.tx.Rebind(`INSERT INTO user_state (learner_id, xp, level, next_level_at, current_streak, longest_streak, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := t.tx.ExecContext(ctx, q, s.LearnerID, s.XP, s.Level, s.NextLevelAt, s.CurrentStreak, s.LongestStreak, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("sqlx: insert user state: %w", err)
	}
	return nil
}

func (t *sqlTx) InsertRewardIfAbsent(ctx context.Context, r core.Reward) (bool, error) {
	var exists bool
	q := t.tx.Rebind(`SELECT EXISTS (SELECT 1 FROM rewards WHERE learner_id = ? AND code = ?)`)
	if err := t.tx.GetContext(ctx, &exists, q, r.LearnerID, r.Code); err != nil {
		return false, fmt.Errorf("sqlx: reward lookup: %w", err)
	}
	if exists {
		return false, nil
	}
	// The conflict clause covers the race between the lookup and the insert
	// when two submissions for one learner overlap.
	insert := `INSERT INTO rewards (learner_id, code, category, rarity, xp_awarded, module_id, competency_id, streak_threshold, level, xp_milestone, collectible, unlocked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if t.driver == DriverMySQL {
		insert = `INSERT IGNORE INTO rewards (learner_id, code, category, rarity, xp_awarded, module_id, competency_id, streak_threshold, level, xp_milestone, collectible, unlocked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	} else {
		insert += ` ON CONFLICT (learner_id, code) DO NOTHING`
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(insert),
		r.LearnerID, r.Code, r.Category, r.Rarity, r.XPAwarded,
		nullString(string(r.ModuleID)), nullString(string(r.CompetencyID)),
		r.StreakThreshold, r.Level, r.XPMilestone, r.Collectible, r.UnlockedAt)
	if err != nil {
		return false, fmt.Errorf("sqlx: insert reward: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlx: insert reward: %w", err)
	}
	return n > 0, nil
}

// Row types bridge nullable columns to the core structs.

type attemptRow struct {
	ID           string          `db:"id"`
	LearnerID    string          `db:"learner_id"`
	ActivityID   string          `db:"activity_id"`
	ModuleID     string          `db:"module_id"`
	CompetencyID string          `db:"competency_id"`
	Success      bool            `db:"success"`
	Score        sql.NullFloat64 `db:"score"`
	MaxScore     sql.NullFloat64 `db:"max_score"`
	Accuracy     sql.NullFloat64 `db:"accuracy"`
	TimeSpentSec sql.NullFloat64 `db:"time_spent_sec"`
	Metadata     sql.NullString  `db:"metadata"`
	SubmittedAt  time.Time       `db:"submitted_at"`
}

func (r attemptRow) attempt() (core.Attempt, error) {
	a := core.Attempt{
		ID:           r.ID,
		LearnerID:    core.LearnerID(r.LearnerID),
		ActivityID:   core.ActivityID(r.ActivityID),
		ModuleID:     core.ModuleID(r.ModuleID),
		CompetencyID: core.CompetencyID(r.CompetencyID),
		Success:      r.Success,
		Score:        floatPtr(r.Score),
		MaxScore:     floatPtr(r.MaxScore),
		Accuracy:     floatPtr(r.Accuracy),
		TimeSpentSec: floatPtr(r.TimeSpentSec),
		SubmittedAt:  r.SubmittedAt,
	}
	if r.Metadata.Valid {
		if err := json.Unmarshal([]byte(r.Metadata.String), &a.Metadata); err != nil {
			return core.Attempt{}, fmt.Errorf("sqlx: decode metadata: %w", err)
		}
	}
	return a, nil
}

type moduleRow struct {
	LearnerID       string    `db:"learner_id"`
	ModuleID        string    `db:"module_id"`
	Completion      int       `db:"completion"`
	Status          string    `db:"status"`
	Mastery         int       `db:"mastery"`
	CurrentStreak   int       `db:"current_streak"`
	BestStreak      int       `db:"best_streak"`
	AverageAccuracy float64   `db:"average_accuracy"`
	AverageTimeSec  float64   `db:"average_time_sec"`
	TotalAttempts   int       `db:"total_attempts"`
	LastActivityAt  time.Time `db:"last_activity_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r moduleRow) progress() core.ModuleProgress {
	return core.ModuleProgress{
		LearnerID: core.LearnerID(r.LearnerID),
		ModuleID:  core.ModuleID(r.ModuleID),
		ModuleMetrics: core.ModuleMetrics{
			Completion:      r.Completion,
			Status:          core.Status(r.Status),
			Mastery:         r.Mastery,
			CurrentStreak:   r.CurrentStreak,
			BestStreak:      r.BestStreak,
			AverageAccuracy: r.AverageAccuracy,
			AverageTimeSec:  r.AverageTimeSec,
			TotalAttempts:   r.TotalAttempts,
			LastActivityAt:  r.LastActivityAt,
		},
		UpdatedAt: r.UpdatedAt,
	}
}

type competencyRow struct {
	LearnerID       string    `db:"learner_id"`
	CompetencyID    string    `db:"competency_id"`
	Mastery         int       `db:"mastery"`
	CurrentStreak   int       `db:"current_streak"`
	BestStreak      int       `db:"best_streak"`
	AverageAccuracy float64   `db:"average_accuracy"`
	AverageTimeSec  float64   `db:"average_time_sec"`
	TotalAttempts   int       `db:"total_attempts"`
	LastActivityAt  time.Time `db:"last_activity_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r competencyRow) progress() core.CompetencyProgress {
	return core.CompetencyProgress{
		LearnerID:    core.LearnerID(r.LearnerID),
		CompetencyID: core.CompetencyID(r.CompetencyID),
		CompetencyMetrics: core.CompetencyMetrics{
			Mastery:         r.Mastery,
			CurrentStreak:   r.CurrentStreak,
			BestStreak:      r.BestStreak,
			AverageAccuracy: r.AverageAccuracy,
			AverageTimeSec:  r.AverageTimeSec,
			TotalAttempts:   r.TotalAttempts,
			LastActivityAt:  r.LastActivityAt,
		},
		UpdatedAt: r.UpdatedAt,
	}
}

type userStateRow struct {
	LearnerID     string    `db:"learner_id"`
	XP            int64     `db:"xp"`
	Level         int       `db:"level"`
	NextLevelAt   int64     `db:"next_level_at"`
	CurrentStreak int       `db:"current_streak"`
	LongestStreak int       `db:"longest_streak"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r userStateRow) state() core.UserGameState {
	return core.UserGameState{
		LearnerID:     core.LearnerID(r.LearnerID),
		XP:            r.XP,
		Level:         r.Level,
		NextLevelAt:   r.NextLevelAt,
		CurrentStreak: r.CurrentStreak,
		LongestStreak: r.LongestStreak,
		UpdatedAt:     r.UpdatedAt,
	}
}

type rewardRow struct {
	LearnerID       string         `db:"learner_id"`
	Code            string         `db:"code"`
	Category        string         `db:"category"`
	Rarity          string         `db:"rarity"`
	XPAwarded       int64          `db:"xp_awarded"`
	ModuleID        sql.NullString `db:"module_id"`
	CompetencyID    sql.NullString `db:"competency_id"`
	StreakThreshold sql.NullInt64  `db:"streak_threshold"`
	Level           sql.NullInt64  `db:"level"`
	XPMilestone     sql.NullInt64  `db:"xp_milestone"`
	Collectible     bool           `db:"collectible"`
	UnlockedAt      time.Time      `db:"unlocked_at"`
}

func (r rewardRow) reward() core.Reward {
	return core.Reward{
		LearnerID:       core.LearnerID(r.LearnerID),
		Code:            r.Code,
		Category:        core.RewardCategory(r.Category),
		Rarity:          core.Rarity(r.Rarity),
		XPAwarded:       r.XPAwarded,
		ModuleID:        core.ModuleID(r.ModuleID.String),
		CompetencyID:    core.CompetencyID(r.CompetencyID.String),
		StreakThreshold: int(r.StreakThreshold.Int64),
		Level:           int(r.Level.Int64),
		XPMilestone:     r.XPMilestone.Int64,
		Collectible:     r.Collectible,
		UnlockedAt:      r.UnlockedAt,
	}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

var _ engine.Store = (*Store)(nil)
var _ engine.Tx = (*sqlTx)(nil)
