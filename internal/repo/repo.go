package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"caseline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// IsUniqueViolation reports whether err is a UNIQUE constraint failure from
// the sqlite driver. Case-number uniqueness rides on this: the insert itself
// is the atomic check.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const caseColumns = `id,case_number,case_type,summary,COALESCE(ordinance,''),COALESCE(committee_json,''),subject_identified,COALESCE(subject_name,''),COALESCE(subject_role,''),COALESCE(subject_registration,''),current_stage,opened_at,initial_deadline_days,extension_days,created_at,updated_at`

func scanCase(scan func(dest ...any) error) (domain.Case, error) {
	var c domain.Case
	var committee string
	var subjectIdentified int
	var deadline sql.NullInt64
	err := scan(&c.ID, &c.CaseNumber, &c.CaseType, &c.Summary, &c.Ordinance, &committee,
		&subjectIdentified, &c.SubjectName, &c.SubjectRole, &c.SubjectRegistration,
		&c.CurrentStage, &c.OpenedAt, &deadline, &c.ExtensionDays, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.SubjectIdentified = subjectIdentified != 0
	if deadline.Valid {
		d := int(deadline.Int64)
		c.InitialDeadlineDays = &d
	}
	if committee != "" {
		if err := json.Unmarshal([]byte(committee), &c.Committee); err != nil {
			return c, fmt.Errorf("decode committee for case %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func committeeJSON(members []domain.CommitteeMember) (any, error) {
	if len(members) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(members)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r Repo) InsertCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	committee, err := committeeJSON(c.Committee)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO cases(id,case_number,case_type,summary,ordinance,committee_json,subject_identified,subject_name,subject_role,subject_registration,current_stage,opened_at,initial_deadline_days,extension_days,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.CaseNumber, c.CaseType, c.Summary, nullable(c.Ordinance), committee,
		boolInt(c.SubjectIdentified), nullable(c.SubjectName), nullable(c.SubjectRole), nullable(c.SubjectRegistration),
		c.CurrentStage, c.OpenedAt, nullableIntPtr(c.InitialDeadlineDays), c.ExtensionDays, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCase(ctx context.Context, id string) (domain.Case, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, id)
	return scanCase(row.Scan)
}

func (r Repo) GetCaseByNumber(ctx context.Context, number string) (domain.Case, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE case_number=?`, number)
	return scanCase(row.Scan)
}

type CaseFilters struct {
	CaseType string
	Stage    string
	Limit    int
}

func (r Repo) ListCases(ctx context.Context, f CaseFilters) ([]domain.Case, error) {
	var clauses []string
	var args []any
	if f.CaseType != "" {
		clauses = append(clauses, "case_type=?")
		args = append(args, f.CaseType)
	}
	if f.Stage != "" {
		clauses = append(clauses, "current_stage=?")
		args = append(args, f.Stage)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + caseColumns + ` FROM cases ` + where + ` ORDER BY opened_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Case
	for rows.Next() {
		c, err := scanCase(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) UpdateCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	committee, err := committeeJSON(c.Committee)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE cases SET case_number=?, case_type=?, summary=?, ordinance=?, committee_json=?, subject_identified=?, subject_name=?, subject_role=?, subject_registration=?, opened_at=?, initial_deadline_days=?, extension_days=?, updated_at=? WHERE id=?`,
		c.CaseNumber, c.CaseType, c.Summary, nullable(c.Ordinance), committee,
		boolInt(c.SubjectIdentified), nullable(c.SubjectName), nullable(c.SubjectRole), nullable(c.SubjectRegistration),
		c.OpenedAt, nullableIntPtr(c.InitialDeadlineDays), c.ExtensionDays, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateCaseStageTx(ctx context.Context, tx *sql.Tx, id, stage, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE cases SET current_stage=?, updated_at=? WHERE id=?`, stage, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCase removes the case row; entries and documents go with it through
// the foreign-key cascade. Underlying blobs stay in the upload store.
func (r Repo) DeleteCase(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM cases WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertEntryTx(ctx context.Context, tx *sql.Tx, e domain.ProgressEntry) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO progress_entries(case_id,stage_name,note,occurred_at) VALUES (?,?,?,?)`,
		e.CaseID, e.StageName, nullable(e.Note), e.OccurredAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListEntries returns a case's entries in chronological order; equal
// timestamps fall back to insertion order via the autoincrement id.
func (r Repo) ListEntries(ctx context.Context, caseID string) ([]domain.ProgressEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,case_id,stage_name,COALESCE(note,''),occurred_at FROM progress_entries WHERE case_id=? ORDER BY occurred_at ASC, id ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProgressEntry
	for rows.Next() {
		var e domain.ProgressEntry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.StageName, &e.Note, &e.OccurredAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) InsertDocumentTx(ctx context.Context, tx *sql.Tx, d domain.Document) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO documents(entry_id,filename,original_name,uploaded_at) VALUES (?,?,?,?)`,
		d.EntryID, d.Filename, nullable(d.OriginalName), d.UploadedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListDocuments(ctx context.Context, entryID int64) ([]domain.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,entry_id,filename,COALESCE(original_name,''),uploaded_at FROM documents WHERE entry_id=? ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.EntryID, &d.Filename, &d.OriginalName, &d.UploadedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) CountCasesByStage(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT current_stage, count(*) FROM cases GROUP BY current_stage`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		res[stage] = count
	}
	return res, rows.Err()
}

// LatestEvents returns events newest-first, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events ` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var entity, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &entity, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if entity.Valid {
			e.EntityID = entity.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
