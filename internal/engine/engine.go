// Package engine holds the transactional core: every mutation runs inside a
// single database transaction together with its audit event.
package engine

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseline/internal/config"
	"caseline/internal/deadline"
	"caseline/internal/domain"
	"caseline/internal/events"
	"caseline/internal/repo"
	"caseline/internal/storage"
	"caseline/internal/workflow"
)

var (
	ErrDuplicateCaseNumber = errors.New("case number already registered")
	ErrMissingStage        = errors.New("stage is required")
	ErrUnknownStage        = errors.New("stage not in workflow")
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Workflows *workflow.Table
	Uploads   *storage.UploadStore
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, table *workflow.Table, uploads *storage.UploadStore) Engine {
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Workflows: table,
		Uploads:   uploads,
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CaseCreateOptions are parameters for registering a case.
type CaseCreateOptions struct {
	CaseNumber          string
	CaseType            string
	Summary             string
	Ordinance           string
	Committee           []domain.CommitteeMember
	SubjectIdentified   bool
	SubjectName         string
	SubjectRole         string
	SubjectRegistration string
	OpenedAt            string
	InitialDeadlineDays *int
	ActorID             string
}

// CreateCase registers a case at its type's first stage and appends the
// instauration entry in the same transaction. The unique case-number check
// rides on the insert itself, so two concurrent registrations can never both
// succeed.
func (e Engine) CreateCase(ctx context.Context, opts CaseCreateOptions) (domain.Case, error) {
	if strings.TrimSpace(opts.CaseNumber) == "" {
		return domain.Case{}, errors.New("case number is required")
	}
	if strings.TrimSpace(opts.Summary) == "" {
		return domain.Case{}, errors.New("summary is required")
	}
	initial, err := e.Workflows.InitialStage(opts.CaseType)
	if err != nil {
		return domain.Case{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	openedAt := opts.OpenedAt
	if openedAt == "" {
		openedAt = now
	}
	c := domain.Case{
		ID:                  uuid.NewString(),
		CaseNumber:          strings.TrimSpace(opts.CaseNumber),
		CaseType:            opts.CaseType,
		Summary:             opts.Summary,
		Ordinance:           opts.Ordinance,
		Committee:           opts.Committee,
		SubjectIdentified:   opts.SubjectIdentified,
		SubjectName:         opts.SubjectName,
		SubjectRole:         opts.SubjectRole,
		SubjectRegistration: opts.SubjectRegistration,
		CurrentStage:        initial,
		OpenedAt:            openedAt,
		InitialDeadlineDays: opts.InitialDeadlineDays,
		ExtensionDays:       0,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if !c.SubjectIdentified {
		c.SubjectName, c.SubjectRole, c.SubjectRegistration = "", "", ""
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertCaseTx(ctx, tx, c); err != nil {
		if repo.IsUniqueViolation(err) {
			return domain.Case{}, ErrDuplicateCaseNumber
		}
		return domain.Case{}, fmt.Errorf("insert case: %w", err)
	}
	entry := domain.ProgressEntry{
		CaseID:     c.ID,
		StageName:  initial,
		Note:       "Processo instaurado.",
		OccurredAt: now,
	}
	if _, err := e.Repo.InsertEntryTx(ctx, tx, entry); err != nil {
		return domain.Case{}, fmt.Errorf("insert initial entry: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "case.created", "case", c.ID, opts.ActorID, events.EventPayload{
		"case_number": c.CaseNumber,
		"case_type":   c.CaseType,
		"stage":       initial,
	}); err != nil {
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}
	return c, nil
}

// Attachment is one inbound document for a stage advance.
type Attachment struct {
	Name    string
	Content []byte
}

// AdvanceOptions are parameters for moving a case to another stage.
type AdvanceOptions struct {
	CaseID      string
	Stage       string
	Note        string
	OccurredAt  string
	Attachments []Attachment
	ActorID     string
}

// AdvanceStage moves the case to the named stage and appends one progress
// entry. Non-PDF attachments are skipped with a warning instead of failing
// the advance; accepted ones are persisted to the upload store and recorded
// on the new entry. Stage names outside the type's workflow are accepted
// unless workflow.strict is set.
func (e Engine) AdvanceStage(ctx context.Context, opts AdvanceOptions) (domain.ProgressEntry, []string, error) {
	if strings.TrimSpace(opts.Stage) == "" {
		return domain.ProgressEntry{}, nil, ErrMissingStage
	}
	c, err := e.Repo.GetCase(ctx, opts.CaseID)
	if err != nil {
		return domain.ProgressEntry{}, nil, err
	}
	if e.Config != nil && e.Config.Workflow.Strict && !e.Workflows.KnownStage(c.CaseType, opts.Stage) {
		return domain.ProgressEntry{}, nil, fmt.Errorf("%w: %s for %s", ErrUnknownStage, opts.Stage, c.CaseType)
	}

	now := e.now()
	occurredAt := opts.OccurredAt
	if occurredAt == "" {
		occurredAt = now.UTC().Format(time.RFC3339)
	}

	var warnings []string
	var accepted []domain.Document
	for _, att := range opts.Attachments {
		if strings.ToLower(filepath.Ext(att.Name)) != ".pdf" {
			warnings = append(warnings, fmt.Sprintf("%s is not a PDF and was skipped", att.Name))
			continue
		}
		stored, err := e.Uploads.Save(att.Name, bytes.NewReader(att.Content), now)
		if err != nil {
			return domain.ProgressEntry{}, nil, fmt.Errorf("store %s: %w", att.Name, err)
		}
		accepted = append(accepted, domain.Document{
			Filename:     stored,
			OriginalName: att.Name,
			UploadedAt:   now.UTC().Format(time.RFC3339),
		})
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProgressEntry{}, nil, err
	}
	defer tx.Rollback()

	entry := domain.ProgressEntry{
		CaseID:     c.ID,
		StageName:  opts.Stage,
		Note:       opts.Note,
		OccurredAt: occurredAt,
	}
	entryID, err := e.Repo.InsertEntryTx(ctx, tx, entry)
	if err != nil {
		return domain.ProgressEntry{}, nil, fmt.Errorf("insert entry: %w", err)
	}
	entry.ID = entryID
	for i := range accepted {
		accepted[i].EntryID = entryID
		docID, err := e.Repo.InsertDocumentTx(ctx, tx, accepted[i])
		if err != nil {
			return domain.ProgressEntry{}, nil, fmt.Errorf("insert document: %w", err)
		}
		accepted[i].ID = docID
	}
	entry.Documents = accepted
	if err := e.Repo.UpdateCaseStageTx(ctx, tx, c.ID, opts.Stage, now.UTC().Format(time.RFC3339)); err != nil {
		return domain.ProgressEntry{}, nil, fmt.Errorf("update stage: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "case.advanced", "case", c.ID, opts.ActorID, events.EventPayload{
		"from":      c.CurrentStage,
		"to":        opts.Stage,
		"documents": len(accepted),
	}); err != nil {
		return domain.ProgressEntry{}, nil, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProgressEntry{}, nil, err
	}
	return entry, warnings, nil
}

// CaseUpdateOptions carries the editable case fields. Nil pointers leave the
// stored value untouched.
type CaseUpdateOptions struct {
	CaseNumber          *string
	Summary             *string
	Ordinance           *string
	Committee           *[]domain.CommitteeMember
	SubjectIdentified   *bool
	SubjectName         *string
	SubjectRole         *string
	SubjectRegistration *string
	OpenedAt            *string
	InitialDeadlineDays *int
	ClearDeadline       bool
	ExtensionDays       *int
	ActorID             string
}

func (e Engine) UpdateCase(ctx context.Context, id string, opts CaseUpdateOptions) (domain.Case, error) {
	c, err := e.Repo.GetCase(ctx, id)
	if err != nil {
		return domain.Case{}, err
	}
	if opts.CaseNumber != nil {
		if strings.TrimSpace(*opts.CaseNumber) == "" {
			return domain.Case{}, errors.New("case number is required")
		}
		c.CaseNumber = strings.TrimSpace(*opts.CaseNumber)
	}
	if opts.Summary != nil {
		c.Summary = *opts.Summary
	}
	if opts.Ordinance != nil {
		c.Ordinance = *opts.Ordinance
	}
	if opts.Committee != nil {
		c.Committee = *opts.Committee
	}
	if opts.SubjectIdentified != nil {
		c.SubjectIdentified = *opts.SubjectIdentified
	}
	if opts.SubjectName != nil {
		c.SubjectName = *opts.SubjectName
	}
	if opts.SubjectRole != nil {
		c.SubjectRole = *opts.SubjectRole
	}
	if opts.SubjectRegistration != nil {
		c.SubjectRegistration = *opts.SubjectRegistration
	}
	if opts.OpenedAt != nil {
		c.OpenedAt = *opts.OpenedAt
	}
	if opts.ClearDeadline {
		c.InitialDeadlineDays = nil
	} else if opts.InitialDeadlineDays != nil {
		c.InitialDeadlineDays = opts.InitialDeadlineDays
	}
	if opts.ExtensionDays != nil {
		c.ExtensionDays = *opts.ExtensionDays
	}
	if !c.SubjectIdentified {
		c.SubjectName, c.SubjectRole, c.SubjectRegistration = "", "", ""
	}
	c.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateCaseTx(ctx, tx, c); err != nil {
		if repo.IsUniqueViolation(err) {
			return domain.Case{}, ErrDuplicateCaseNumber
		}
		return domain.Case{}, fmt.Errorf("update case: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "case.updated", "case", c.ID, opts.ActorID, events.EventPayload{
		"case_number": c.CaseNumber,
	}); err != nil {
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}
	return c, nil
}

// DeleteCase removes the case with its entries and document records through
// the foreign-key cascade. Stored upload files stay on disk; they may be
// shared history and the store never deletes.
func (e Engine) DeleteCase(ctx context.Context, id, actorID string) error {
	c, err := e.Repo.GetCase(ctx, id)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, c.ID); err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "case.deleted", "case", c.ID, actorID, events.EventPayload{
		"case_number": c.CaseNumber,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// CaseDetail is one case with its full chronological history.
type CaseDetail struct {
	Case          domain.Case           `json:"case"`
	Entries       []domain.ProgressEntry `json:"entries"`
	DaysRemaining *int                  `json:"days_remaining,omitempty"`
	Stages        []string              `json:"stages"`
}

func (e Engine) GetCaseDetail(ctx context.Context, id string) (CaseDetail, error) {
	c, err := e.Repo.GetCase(ctx, id)
	if err != nil {
		return CaseDetail{}, err
	}
	entries, err := e.Repo.ListEntries(ctx, c.ID)
	if err != nil {
		return CaseDetail{}, err
	}
	for i := range entries {
		docs, err := e.Repo.ListDocuments(ctx, entries[i].ID)
		if err != nil {
			return CaseDetail{}, err
		}
		entries[i].Documents = docs
	}
	d := CaseDetail{Case: c, Entries: entries}
	if stages, err := e.Workflows.StagesFor(c.CaseType); err == nil {
		d.Stages = stages
	}
	if c.InitialDeadlineDays != nil {
		if opened, err := time.Parse(time.RFC3339, c.OpenedAt); err == nil {
			remaining := deadline.DaysRemaining(opened, *c.InitialDeadlineDays, c.ExtensionDays, e.now())
			d.DaysRemaining = &remaining
		}
	}
	return d, nil
}

func (e Engine) ListCases(ctx context.Context, f repo.CaseFilters) ([]domain.Case, error) {
	return e.Repo.ListCases(ctx, f)
}

// DashboardSummary is the aggregate view recomputed on every call; nothing
// here is cached or stored.
type DashboardSummary struct {
	TotalCases   int            `json:"total_cases"`
	ActiveCases  int            `json:"active_cases"`
	ByStage      map[string]int `json:"by_stage"`
	ExpiringSoon int            `json:"expiring_soon"`
}

// Dashboard counts cases whose deadline window falls inside the configured
// warning horizon. Cases at a terminal stage or without a deadline never
// count, and already-expired ones are excluded as well.
func (e Engine) Dashboard(ctx context.Context) (DashboardSummary, error) {
	cases, err := e.Repo.ListCases(ctx, repo.CaseFilters{})
	if err != nil {
		return DashboardSummary{}, err
	}
	byStage, err := e.Repo.CountCasesByStage(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	warningDays := deadline.DefaultWarningDays
	if e.Config != nil && e.Config.Deadline.WarningDays > 0 {
		warningDays = e.Config.Deadline.WarningDays
	}
	now := e.now()
	s := DashboardSummary{TotalCases: len(cases), ByStage: byStage}
	for _, c := range cases {
		if e.Workflows.IsTerminal(c.CurrentStage) {
			continue
		}
		s.ActiveCases++
		if c.InitialDeadlineDays == nil {
			continue
		}
		opened, err := time.Parse(time.RFC3339, c.OpenedAt)
		if err != nil {
			continue
		}
		if deadline.ExpiringSoon(opened, *c.InitialDeadlineDays, c.ExtensionDays, now, warningDays) {
			s.ExpiringSoon++
		}
	}
	return s, nil
}
