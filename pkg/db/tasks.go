package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const taskColumns = `task_id, task_name, task_description, task_notes, task_plan, task_app_acronym,
	task_state, task_creator, task_owner, task_create_date`

func scanTask(row rowScanner) (*Task, error) {
	var (
		task Task
		plan sql.NullString
	)

	err := row.Scan(&task.ID, &task.Name, &task.Description, &task.Notes, &plan, &task.AppAcronym,
		&task.State, &task.Creator, &task.Owner, &task.CreateDate)
	if err != nil {
		return nil, err
	}

	task.Plan = plan.String

	return &task, nil
}

// NewTask holds everything needed to insert a task except its id, which is generated.
type NewTask struct {
	AppAcronym  string
	Name        string
	Description string
	Plan        string
	Creator     string
	Notes       string
	CreateDate  time.Time
}

// TaskID formats the identifier of the n-th task of an application.
func TaskID(acronym string, n int) string {
	return fmt.Sprintf("%s_%d", acronym, n)
}

// CreateTask inserts a task in state Open and advances the application counter in one
// transaction. The application row is locked for the read-increment-write so concurrent
// creations get consecutive numbers; any failure rolls back both the insert and the increment.
func (d *Database) CreateTask(ctx context.Context, nt NewTask) (*Task, error) {
	var task *Task

	err := d.RunInTx(ctx, func(tx *sql.Tx) error {
		var rnumber int

		err := tx.QueryRowContext(ctx,
			`SELECT app_rnumber FROM application WHERE app_acronym = ?`+d.dialect.forUpdate,
			nt.AppAcronym,
		).Scan(&rnumber)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("error creating task in %s: %w", nt.AppAcronym, ErrNotFound)
		}

		if err != nil {
			return fmt.Errorf("error reading counter of %s: %w", nt.AppAcronym, err)
		}

		next := rnumber + 1
		t := &Task{
			ID:          TaskID(nt.AppAcronym, next),
			Name:        nt.Name,
			Description: nt.Description,
			Notes:       nt.Notes,
			Plan:        nt.Plan,
			AppAcronym:  nt.AppAcronym,
			State:       StateOpen,
			Creator:     nt.Creator,
			Owner:       nt.Creator,
			CreateDate:  nt.CreateDate.UTC(),
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO task (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.Description, t.Notes, nullString(t.Plan), t.AppAcronym,
			t.State, t.Creator, t.Owner, t.CreateDate,
		)
		if isDuplicate(err) {
			return fmt.Errorf("error adding task %s: %w", t.ID, ErrDuplicate)
		}

		if err != nil {
			return fmt.Errorf("error adding task %s: %w", t.ID, err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE application SET app_rnumber = ? WHERE app_acronym = ? AND app_rnumber = ?`,
			next, nt.AppAcronym, rnumber,
		)
		if err != nil {
			return fmt.Errorf("error advancing counter of %s: %w", nt.AppAcronym, err)
		}

		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("error advancing counter of %s: %w", nt.AppAcronym, err)
		} else if n != 1 {
			return errCounterMoved
		}

		task = t

		return nil
	})
	if err != nil {
		return nil, err
	}

	return task, nil
}

// GetTask returns the task with the given id or ErrNotFound.
func (d *Database) GetTask(ctx context.Context, id string) (*Task, error) {
	row := d.conn.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task WHERE task_id = ?`, id)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("error loading task %s: %w", id, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("error loading task %s: %w", id, err)
	}

	return task, nil
}

// GetTasks returns the tasks of an application, optionally restricted to one state, in
// creation order.
func (d *Database) GetTasks(ctx context.Context, appAcronym string, state State) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM task WHERE task_app_acronym = ?`
	args := []interface{}{appAcronym}

	if state != "" {
		query += ` AND task_state = ?`
		args = append(args, state)
	}

	query += ` ORDER BY task_create_date, task_id`

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error loading tasks of %s: %w", appAcronym, err)
	}
	defer rows.Close()

	tasks := []*Task{}

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning tasks: %w", err)
		}

		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning tasks: %w", err)
	}

	return tasks, nil
}

// StateChange describes one guarded task update.
type StateChange struct {
	TaskID string
	From   State
	To     State
	Actor  string
	// NoteBlock is prepended to the existing notes.
	NoteBlock string
	// ExpectOwner, when set, must match the current owner.
	ExpectOwner string
	// SetPlan replaces the task plan with Plan (empty clears it).
	SetPlan bool
	Plan    string
}

// ChangeTaskState applies c as a compare-and-swap on the task state: the row is only updated
// while it is still in c.From. The note block is prepended inside the statement so concurrent
// note writers never overwrite each other. No matching row yields ErrNotFound when the task
// does not exist and ErrStateConflict otherwise.
func (d *Database) ChangeTaskState(ctx context.Context, c StateChange) error {
	var query strings.Builder

	query.WriteString(`UPDATE task SET task_state = ?, task_owner = ?, task_notes = CASE WHEN task_notes = '' THEN ? ELSE `)
	query.WriteString(d.dialect.concat("?", "task_notes"))
	query.WriteString(` END`)

	args := []interface{}{c.To, c.Actor, c.NoteBlock, c.NoteBlock + "\n\n"}

	if c.SetPlan {
		query.WriteString(`, task_plan = ?`)
		args = append(args, nullString(c.Plan))
	}

	query.WriteString(` WHERE task_id = ? AND task_state = ?`)
	args = append(args, c.TaskID, c.From)

	if c.ExpectOwner != "" {
		query.WriteString(` AND task_owner = ?`)
		args = append(args, c.ExpectOwner)
	}

	result, err := d.conn.ExecContext(ctx, query.String(), args...)
	if err != nil {
		return fmt.Errorf("error moving task %s from %s to %s: %w", c.TaskID, c.From, c.To, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error moving task %s from %s to %s: %w", c.TaskID, c.From, c.To, err)
	}

	if n > 0 {
		return nil
	}

	if _, err := d.GetTask(ctx, c.TaskID); err != nil {
		return err
	}

	return fmt.Errorf("error moving task %s from %s to %s: %w", c.TaskID, c.From, c.To, ErrStateConflict)
}
