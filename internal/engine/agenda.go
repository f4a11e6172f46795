package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"caseline/internal/domain"
	"caseline/internal/events"
)

// CreateAgendaTask records a free-standing agenda item. DueDate is an
// optional RFC3339 date; tasks carry no case relation.
func (e Engine) CreateAgendaTask(ctx context.Context, description string, dueDate *string, actorID string) (domain.ScheduledTask, error) {
	if strings.TrimSpace(description) == "" {
		return domain.ScheduledTask{}, errors.New("description is required")
	}
	t := domain.ScheduledTask{
		Description: strings.TrimSpace(description),
		DueDate:     dueDate,
		CreatedAt:   e.now().UTC().Format(time.RFC3339),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	defer tx.Rollback()

	id, err := e.Repo.InsertAgendaTaskTx(ctx, tx, t)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	t.ID = id
	if err := e.Events.Append(ctx, tx, "agenda.created", "agenda", "", actorID, events.EventPayload{
		"task_id": id,
	}); err != nil {
		return domain.ScheduledTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ScheduledTask{}, err
	}
	return t, nil
}

// ToggleAgendaTask flips the done flag and returns the updated task.
func (e Engine) ToggleAgendaTask(ctx context.Context, id int64, actorID string) (domain.ScheduledTask, error) {
	t, err := e.Repo.GetAgendaTask(ctx, id)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	t.Done = !t.Done

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ScheduledTask{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.SetAgendaTaskDoneTx(ctx, tx, id, t.Done); err != nil {
		return domain.ScheduledTask{}, err
	}
	if err := e.Events.Append(ctx, tx, "agenda.toggled", "agenda", "", actorID, events.EventPayload{
		"task_id": id,
		"done":    t.Done,
	}); err != nil {
		return domain.ScheduledTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ScheduledTask{}, err
	}
	return t, nil
}

func (e Engine) DeleteAgendaTask(ctx context.Context, id int64, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteAgendaTaskTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "agenda.deleted", "agenda", "", actorID, events.EventPayload{
		"task_id": id,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ListAgendaTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return e.Repo.ListAgendaTasks(ctx)
}
