// Package records persists therapy programs, their planned stimuli, sessions
// and committed trials in Postgres. It only stores and loads; evaluation is
// done by pkg/scoring.
package records

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

// ErrNotFound is returned when a program or session does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a program id is already taken or committed
// trials collide with existing attempt numbers, typically because two blocks
// were committed at once.
var ErrConflict = errors.New("conflict")

// Store provides program, session and trial persistence backed by Postgres.
type Store struct {
	db *sqlx.DB
}

// Program is a therapy program with its clinical variant.
type Program struct {
	ID        string           `db:"id" json:"id"`
	Name      string           `db:"name" json:"name"`
	Variant   taxonomy.Variant `db:"variant" json:"variant"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// Session is one therapy session of a program. The variant is copied from
// the program when the session is opened and never changes afterwards.
type Session struct {
	ID        string           `db:"id" json:"id"`
	ProgramID string           `db:"program_id" json:"program_id"`
	Variant   taxonomy.Variant `db:"variant" json:"variant"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// ReportRow indexes an archived report.
type ReportRow struct {
	ID         string          `db:"id"`
	SessionID  string          `db:"session_id"`
	Status     taxonomy.Status `db:"status"`
	StorageRef string          `db:"storage_ref"`
	CreatedAt  time.Time       `db:"created_at"`
}

// NewStore creates a new Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres using the lib/pq driver.
func Open(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// CreateProgram inserts a program together with its stimuli, in order.
func (s *Store) CreateProgram(ctx context.Context, p Program, stimuli []trial.Stimulus) (*Program, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	out := &Program{}
	err = tx.GetContext(ctx, out,
		`INSERT INTO programs (id, name, variant)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, variant, created_at`,
		p.ID, p.Name, p.Variant,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create program %s: %w", p.ID, ErrConflict)
		}
		return nil, fmt.Errorf("create program %s: %w", p.ID, err)
	}

	for i, st := range stimuli {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stimuli (program_id, id, label, position) VALUES ($1, $2, $3, $4)`,
			p.ID, st.ID, st.Label, i,
		); err != nil {
			return nil, fmt.Errorf("create stimulus %s: %w", st.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit program: %w", err)
	}
	return out, nil
}

// GetProgram retrieves a program by ID.
func (s *Store) GetProgram(ctx context.Context, id string) (*Program, error) {
	p := &Program{}
	err := s.db.GetContext(ctx, p,
		`SELECT id, name, variant, created_at FROM programs WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(fmt.Sprintf("program %s", id), err)
	}
	return p, nil
}

// PlannedStimuli returns the active stimuli of a program in program order.
func (s *Store) PlannedStimuli(ctx context.Context, programID string) ([]trial.Stimulus, error) {
	var out []trial.Stimulus
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, label FROM stimuli
		 WHERE program_id = $1 AND active
		 ORDER BY position, id`,
		programID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stimuli of %s: %w", programID, err)
	}
	return out, nil
}

// SetStimulusActive toggles whether a stimulus counts as planned.
func (s *Store) SetStimulusActive(ctx context.Context, programID, stimulusID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE stimuli SET active = $3 WHERE program_id = $1 AND id = $2`,
		programID, stimulusID, active,
	)
	if err != nil {
		return fmt.Errorf("update stimulus %s: %w", stimulusID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("stimulus %s of %s: %w", stimulusID, programID, ErrNotFound)
	}
	return nil
}

// CreateSession opens a session for a program, pinning the program's variant.
func (s *Store) CreateSession(ctx context.Context, programID string) (*Session, error) {
	sess := &Session{}
	err := s.db.GetContext(ctx, sess,
		`INSERT INTO sessions (program_id, variant)
		 SELECT id, variant FROM programs WHERE id = $1
		 RETURNING id, program_id, variant, created_at`,
		programID,
	)
	if err != nil {
		return nil, notFound(fmt.Sprintf("create session for program %s", programID), err)
	}
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	sess := &Session{}
	err := s.db.GetContext(ctx, sess,
		`SELECT id, program_id, variant, created_at FROM sessions WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(fmt.Sprintf("session %s", id), err)
	}
	return sess, nil
}

// CommittedTrials returns every committed trial of a session in registration order.
func (s *Store) CommittedTrials(ctx context.Context, sessionID string) ([]trial.Record, error) {
	var rows []trialRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, stimulus_id, attempt_number, outcome, recorded_at, duration_minutes, scores
		 FROM trials WHERE session_id = $1
		 ORDER BY recorded_at, stimulus_id, attempt_number`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list trials of %s: %w", sessionID, err)
	}

	out := make([]trial.Record, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// AppendTrials inserts newly committed trials in one transaction. Attempt
// numbers that collide with existing ones fail the whole batch.
func (s *Store) AppendTrials(ctx context.Context, sessionID string, trials []trial.Record) error {
	if len(trials) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, r := range trials {
		row := newTrialRow(sessionID, r)
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO trials (id, session_id, stimulus_id, attempt_number, outcome, recorded_at, duration_minutes, scores)
			 VALUES (:id, :session_id, :stimulus_id, :attempt_number, :outcome, :recorded_at, :duration_minutes, :scores)`,
			row,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert trial %d of %s: %w", r.AttemptNumber, r.Bucket(), ErrConflict)
			}
			return fmt.Errorf("insert trial %d of %s: %w", r.AttemptNumber, r.Bucket(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trials: %w", err)
	}
	return nil
}

// RecordReport indexes an archived report.
func (s *Store) RecordReport(ctx context.Context, r ReportRow) error {
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO reports (id, session_id, status, storage_ref)
		 VALUES (:id, :session_id, :status, :storage_ref)`,
		r,
	)
	if err != nil {
		return fmt.Errorf("record report %s: %w", r.ID, err)
	}
	return nil
}

// LatestReport returns the most recently archived report of a session.
func (s *Store) LatestReport(ctx context.Context, sessionID string) (*ReportRow, error) {
	r := &ReportRow{}
	err := s.db.GetContext(ctx, r,
		`SELECT id, session_id, status, storage_ref, created_at
		 FROM reports WHERE session_id = $1
		 ORDER BY created_at DESC LIMIT 1`,
		sessionID,
	)
	if err != nil {
		return nil, notFound(fmt.Sprintf("report of session %s", sessionID), err)
	}
	return r, nil
}

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// trialRow is the database shape of a trial.Record.
type trialRow struct {
	ID              string           `db:"id"`
	SessionID       string           `db:"session_id"`
	StimulusID      string           `db:"stimulus_id"`
	AttemptNumber   int              `db:"attempt_number"`
	Outcome         taxonomy.Outcome `db:"outcome"`
	RecordedAt      time.Time        `db:"recorded_at"`
	DurationMinutes *float64         `db:"duration_minutes"`
	Scores          jsonScores       `db:"scores"`
}

func newTrialRow(sessionID string, r trial.Record) trialRow {
	return trialRow{
		ID:              r.ID,
		SessionID:       sessionID,
		StimulusID:      r.Bucket(),
		AttemptNumber:   r.AttemptNumber,
		Outcome:         r.Outcome,
		RecordedAt:      r.RecordedAt,
		DurationMinutes: r.DurationMinutes,
		Scores:          jsonScores(r.Scores),
	}
}

func (r trialRow) record() trial.Record {
	return trial.Record{
		ID:              r.ID,
		AttemptNumber:   r.AttemptNumber,
		StimulusID:      r.StimulusID,
		Outcome:         r.Outcome,
		RecordedAt:      r.RecordedAt,
		DurationMinutes: r.DurationMinutes,
		Scores:          trial.Scores(r.Scores),
	}
}

// jsonScores stores trial.Scores in a JSONB column; an empty map is NULL.
type jsonScores map[string]int

func (s jsonScores) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *jsonScores) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan scores: unsupported type %T", src)
	}
	m := map[string]int{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("scan scores: %w", err)
	}
	*s = m
	return nil
}
