// Package reporting connects the collection layer to the scoring engine: it
// loads a session's committed trials and planned stimuli, evaluates them,
// and archives the resulting report.
package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/therascope/therascope/internal/records"
	"github.com/therascope/therascope/pkg/scoring"
	"github.com/therascope/therascope/pkg/taxonomy"
	"github.com/therascope/therascope/pkg/trial"
)

// Store is the persistence the service needs. *records.Store implements it.
type Store interface {
	CreateProgram(ctx context.Context, p records.Program, stimuli []trial.Stimulus) (*records.Program, error)
	GetProgram(ctx context.Context, id string) (*records.Program, error)
	SetStimulusActive(ctx context.Context, programID, stimulusID string, active bool) error
	CreateSession(ctx context.Context, programID string) (*records.Session, error)
	GetSession(ctx context.Context, id string) (*records.Session, error)
	PlannedStimuli(ctx context.Context, programID string) ([]trial.Stimulus, error)
	CommittedTrials(ctx context.Context, sessionID string) ([]trial.Record, error)
	AppendTrials(ctx context.Context, sessionID string, trials []trial.Record) error
	RecordReport(ctx context.Context, r records.ReportRow) error
	LatestReport(ctx context.Context, sessionID string) (*records.ReportRow, error)
}

// Resolver returns the taxonomy for a variant, with any configured overrides.
type Resolver func(taxonomy.Variant) (*taxonomy.Taxonomy, error)

var (
	// ErrNoStore is returned by session operations on a service built without a Store.
	ErrNoStore = errors.New("no session store configured")
	// ErrNoStorage is returned when reading archived reports without a StorageClient.
	ErrNoStorage = errors.New("no report storage configured")
)

// Action is a draft-list operation inside an activity block.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// BlockOp is one user action on the draft trial list of a block.
type BlockOp struct {
	Action     Action           `json:"action"`
	Outcome    taxonomy.Outcome `json:"outcome"`
	RecordedAt time.Time        `json:"recorded_at,omitempty"`
	Scores     trial.Scores     `json:"scores,omitempty"`
}

// BlockRequest is a finished activity block: the ordered add/remove actions
// the therapist performed and the block duration.
type BlockRequest struct {
	StimulusID      string    `json:"stimulus_id"`
	Ops             []BlockOp `json:"ops"`
	DurationMinutes *float64  `json:"duration_minutes,omitempty"`
}

// ProgramRequest registers a program with its stimuli in planned order.
type ProgramRequest struct {
	ID      string           `json:"id,omitempty"`
	Name    string           `json:"name"`
	Variant taxonomy.Variant `json:"variant"`
	Stimuli []trial.Stimulus `json:"stimuli"`
}

// ProgramView is a program with its currently planned stimuli.
type ProgramView struct {
	*records.Program
	Planned []trial.Stimulus `json:"planned"`
}

// Archived is a report together with where it was stored.
type Archived struct {
	ReportID   string          `json:"report_id"`
	StorageRef string          `json:"storage_ref,omitempty"`
	Report     *scoring.Report `json:"report"`
}

// Service orchestrates session evaluation.
type Service struct {
	store   Store
	storage StorageClient
	resolve Resolver
	locale  language.Tag
	logger  *slog.Logger
	now     func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithResolver sets the taxonomy resolver. The default uses the built-ins.
func WithResolver(r Resolver) ServiceOption {
	return func(s *Service) { s.resolve = r }
}

// WithLocale sets the collation locale for alphabetical ordering.
func WithLocale(tag language.Tag) ServiceOption {
	return func(s *Service) { s.locale = tag }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the clock used for actions without a timestamp.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. store may be nil for stateless use, and
// storage may be nil to skip archiving.
func NewService(store Store, storage StorageClient, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		storage: storage,
		resolve: taxonomy.Lookup,
		locale:  scoring.DefaultLocale,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine resolves the taxonomy of a variant and returns an engine for it.
func (s *Service) Engine(v taxonomy.Variant) (*scoring.Engine, error) {
	tax, err := s.resolve(v)
	if err != nil {
		return nil, err
	}
	return scoring.NewEngine(tax, scoring.WithLocale(s.locale), scoring.WithLogger(s.logger))
}

// Evaluate runs the engine over an in-memory session. Records are validated
// against the variant's taxonomy first.
func (s *Service) Evaluate(v taxonomy.Variant, in scoring.Input) (*scoring.Report, error) {
	eng, err := s.Engine(v)
	if err != nil {
		return nil, err
	}
	if err := trial.ValidateAll(in.Trials, eng.Taxonomy()); err != nil {
		return nil, err
	}
	return eng.Evaluate(in)
}

// CreateProgram registers a program. The variant must resolve before
// anything is written; a missing ID is generated.
func (s *Service) CreateProgram(ctx context.Context, req ProgramRequest) (*ProgramView, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	tax, err := s.resolve(req.Variant)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(req.Stimuli))
	for i, st := range req.Stimuli {
		if st.ID == "" {
			return nil, fmt.Errorf("stimulus %d: %w: empty id", i, trial.ErrInvalidRecord)
		}
		if seen[st.ID] {
			return nil, fmt.Errorf("stimulus %s: %w: duplicate id", st.ID, trial.ErrInvalidRecord)
		}
		seen[st.ID] = true
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	p, err := s.store.CreateProgram(ctx, records.Program{ID: id, Name: req.Name, Variant: tax.Variant}, req.Stimuli)
	if err != nil {
		return nil, err
	}
	s.logger.Info("program created", "program", p.ID, "variant", p.Variant, "stimuli", len(req.Stimuli))
	return &ProgramView{Program: p, Planned: append([]trial.Stimulus{}, req.Stimuli...)}, nil
}

// Program returns a program with its active stimuli.
func (s *Service) Program(ctx context.Context, id string) (*ProgramView, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	p, err := s.store.GetProgram(ctx, id)
	if err != nil {
		return nil, err
	}
	planned, err := s.store.PlannedStimuli(ctx, id)
	if err != nil {
		return nil, err
	}
	if planned == nil {
		planned = []trial.Stimulus{}
	}
	return &ProgramView{Program: p, Planned: planned}, nil
}

// SetStimulusActive adds a stimulus to or drops it from the planned set.
func (s *Service) SetStimulusActive(ctx context.Context, programID, stimulusID string, active bool) error {
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.SetStimulusActive(ctx, programID, stimulusID, active); err != nil {
		return err
	}
	s.logger.Info("stimulus updated", "program", programID, "stimulus", stimulusID, "active", active)
	return nil
}

// OpenSession starts a session for a program. The program's variant is
// resolved first so a misconfigured variant never leaves a session behind.
func (s *Service) OpenSession(ctx context.Context, programID string) (*records.Session, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	p, err := s.store.GetProgram(ctx, programID)
	if err != nil {
		return nil, err
	}
	if _, err := s.resolve(p.Variant); err != nil {
		return nil, fmt.Errorf("program %s: %w", programID, err)
	}
	sess, err := s.store.CreateSession(ctx, programID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session opened", "session", sess.ID, "program", programID, "variant", sess.Variant)
	return sess, nil
}

// CommitBlock replays the block's actions on a fresh draft list, numbering
// attempts after those already committed, and persists the surviving trials.
// Remove actions with nothing to remove are no-ops.
func (s *Service) CommitBlock(ctx context.Context, sessionID string, req BlockRequest) ([]trial.Record, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	tax, err := s.resolve(sess.Variant)
	if err != nil {
		return nil, err
	}
	committed, err := s.store.CommittedTrials(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	ledger := trial.RestoreLedger(sessionID, tax, committed)
	block := ledger.OpenBlock(req.StimulusID)
	for i, op := range req.Ops {
		switch op.Action {
		case ActionAdd:
			at := op.RecordedAt
			if at.IsZero() {
				at = s.now()
			}
			if _, err := block.Add(op.Outcome, at, op.Scores); err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
		case ActionRemove:
			if err := tax.CheckOutcome(op.Outcome); err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			block.RemoveLastOfKind(op.Outcome)
		default:
			return nil, fmt.Errorf("action %d: %w: unknown action %q", i, trial.ErrInvalidRecord, op.Action)
		}
	}
	if req.DurationMinutes != nil {
		if err := block.SetDuration(*req.DurationMinutes); err != nil {
			return nil, err
		}
	}

	added, err := ledger.Commit(block)
	if err != nil {
		return nil, err
	}
	if err := s.store.AppendTrials(ctx, sessionID, added); err != nil {
		return nil, err
	}

	s.logger.Info("block committed",
		"session", sessionID,
		"stimulus", block.StimulusID(),
		"actions", len(req.Ops),
		"trials", len(added),
	)
	return added, nil
}

// SessionReport evaluates a stored session and archives the report.
func (s *Service) SessionReport(ctx context.Context, sessionID string, mode scoring.SortMode) (*Archived, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	planned, err := s.store.PlannedStimuli(ctx, sess.ProgramID)
	if err != nil {
		return nil, err
	}
	trials, err := s.store.CommittedTrials(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	report, err := s.Evaluate(sess.Variant, scoring.Input{
		SessionID: sessionID,
		Trials:    trials,
		Planned:   planned,
		Sort:      mode,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate session %s: %w", sessionID, err)
	}

	archived, err := s.Archive(ctx, report)
	if err != nil {
		return nil, err
	}
	if archived.StorageRef != "" {
		if err := s.store.RecordReport(ctx, records.ReportRow{
			ID:         archived.ReportID,
			SessionID:  sessionID,
			Status:     report.Summary.Status,
			StorageRef: archived.StorageRef,
		}); err != nil {
			return nil, err
		}
	}
	return archived, nil
}

// Archive stores a report as JSON. Without a StorageClient it only assigns
// a report ID.
func (s *Service) Archive(ctx context.Context, report *scoring.Report) (*Archived, error) {
	out := &Archived{ReportID: uuid.NewString(), Report: report}
	if s.storage == nil {
		return out, nil
	}

	sessionID := report.SessionID
	if sessionID == "" {
		sessionID = "adhoc"
	}
	key, err := reportKey(sessionID, out.ReportID)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	if err := s.storage.PutReport(ctx, sessionID, out.ReportID, data); err != nil {
		return nil, fmt.Errorf("archive report: %w", err)
	}
	out.StorageRef = key

	s.logger.Info("report archived", "session", sessionID, "report", out.ReportID, "status", report.Summary.Status)
	return out, nil
}

// LoadReport reads an archived report back.
func (s *Service) LoadReport(ctx context.Context, sessionID, reportID string) (*scoring.Report, error) {
	if s.storage == nil {
		return nil, ErrNoStorage
	}
	data, err := s.storage.GetReport(ctx, sessionID, reportID)
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}
	var r scoring.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report %s: %w", reportID, err)
	}
	return &r, nil
}

// LatestReport reads back the most recently archived report of a session.
func (s *Service) LatestReport(ctx context.Context, sessionID string) (*Archived, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	row, err := s.store.LatestReport(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	report, err := s.LoadReport(ctx, sessionID, row.ID)
	if err != nil {
		return nil, err
	}
	return &Archived{ReportID: row.ID, StorageRef: row.StorageRef, Report: report}, nil
}
