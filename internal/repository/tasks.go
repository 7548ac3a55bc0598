package repository

import (
	"context"
	"database/sql"
	"errors"

	"taskboard/internal/models"
)

// Tasks persists task records in Postgres.
type Tasks struct {
	DB *sql.DB
}

func NewTasks(db *sql.DB) *Tasks {
	return &Tasks{DB: db}
}

const taskColumns = "id, owner_id, title, description, status, created_at, updated_at"

func scanTask(row interface{ Scan(...interface{}) error }) (models.Task, error) {
	var task models.Task
	err := row.Scan(&task.ID, &task.Owner, &task.Title, &task.Description, &task.Status,
		&task.CreatedAt, &task.UpdatedAt)
	return task, err
}

func (r *Tasks) Create(ctx context.Context, ownerID int, title, description, status string) (models.Task, error) {
	row := r.DB.QueryRowContext(ctx,
		`INSERT INTO tasks (owner_id, title, description, status) VALUES ($1, $2, $3, $4)
		 RETURNING `+taskColumns,
		ownerID, title, description, status,
	)
	return scanTask(row)
}

func (r *Tasks) FindByID(ctx context.Context, id int) (models.Task, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// ListAll returns every task, newest-created first.
func (r *Tasks) ListAll(ctx context.Context) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// ListByOwner returns the owner's tasks, newest-created first.
func (r *Tasks) ListByOwner(ctx context.Context, ownerID int) ([]models.Task, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// Update persists new title/description/status for a task. The owner is
// immutable and is never written here.
func (r *Tasks) Update(ctx context.Context, task models.Task) (models.Task, error) {
	row := r.DB.QueryRowContext(ctx,
		`UPDATE tasks SET title = $1, description = $2, status = $3, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $4 RETURNING `+taskColumns,
		task.Title, task.Description, task.Status, task.ID,
	)
	updated, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrNotFound
	}
	if err != nil {
		return models.Task{}, err
	}
	return updated, nil
}

func (r *Tasks) Delete(ctx context.Context, id int) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
