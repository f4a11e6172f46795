package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

func (r Repo) InsertAgendaTaskTx(ctx context.Context, tx *sql.Tx, t domain.ScheduledTask) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO agenda_tasks(description,due_date,done,created_at) VALUES (?,?,?,?)`,
		t.Description, nullableStringPtr(t.DueDate), boolInt(t.Done), t.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetAgendaTask(ctx context.Context, id int64) (domain.ScheduledTask, error) {
	var t domain.ScheduledTask
	var due sql.NullString
	var done int
	err := r.DB.QueryRowContext(ctx, `SELECT id,description,due_date,done,created_at FROM agenda_tasks WHERE id=?`, id).
		Scan(&t.ID, &t.Description, &due, &done, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if due.Valid {
		t.DueDate = &due.String
	}
	t.Done = done != 0
	return t, nil
}

// ListAgendaTasks orders open items first, nearest due date on top; items
// without a due date sink below dated ones.
func (r Repo) ListAgendaTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,description,due_date,done,created_at FROM agenda_tasks
ORDER BY done ASC, CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ScheduledTask
	for rows.Next() {
		var t domain.ScheduledTask
		var due sql.NullString
		var done int
		if err := rows.Scan(&t.ID, &t.Description, &due, &done, &t.CreatedAt); err != nil {
			return nil, err
		}
		if due.Valid {
			t.DueDate = &due.String
		}
		t.Done = done != 0
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) SetAgendaTaskDoneTx(ctx context.Context, tx *sql.Tx, id int64, done bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE agenda_tasks SET done=? WHERE id=?`, boolInt(done), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAgendaTaskTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM agenda_tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
