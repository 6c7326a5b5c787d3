package repository

import (
	"context"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/pkg/otel"
)

type TaskRepository struct {
	db     DBTX
	logger *zap.Logger
}

const taskColumns = `id, project_id, phase_id, parent_task_id, assigned_employee_id, name, status,
	start_date, end_date, outline_level, xml_uid, duration, work, cost, progress, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }, t *model.Task) error {
	return row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.PhaseID,
		&t.ParentTaskID,
		&t.AssignedEmployeeID,
		&t.Name,
		&t.Status,
		&t.StartDate,
		&t.EndDate,
		&t.OutlineLevel,
		&t.XMLUID,
		&t.Duration,
		&t.Work,
		&t.Cost,
		&t.Progress,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

func (r *TaskRepository) InsertTask(ctx context.Context, t *model.Task) (err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "tasks")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Inserting task",
		zap.Int64("project_id", t.ProjectID),
		zap.String("xml_uid", t.XMLUID),
		zap.Int("outline_level", t.OutlineLevel),
	)
	query := `
        INSERT INTO tasks (project_id, phase_id, parent_task_id, assigned_employee_id, name, status,
                           start_date, end_date, outline_level, xml_uid, duration, work, cost, progress)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        RETURNING id, created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		t.ProjectID,
		t.PhaseID,
		t.ParentTaskID,
		t.AssignedEmployeeID,
		t.Name,
		t.Status,
		t.StartDate,
		t.EndDate,
		t.OutlineLevel,
		t.XMLUID,
		t.Duration,
		t.Work,
		t.Cost,
		t.Progress,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Error(err),
			zap.Int64("project_id", t.ProjectID),
			zap.String("xml_uid", t.XMLUID),
		)
		return mapError(err)
	}
	return nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id int64) (t *model.Task, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "tasks")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Getting task", zap.Int64("task_id", id))
	t = &model.Task{}
	if err = scanTask(r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id), t); err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

func (r *TaskRepository) ListTasksByProject(ctx context.Context, projectID int64) ([]model.Task, error) {
	return r.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY id`, projectID)
}

func (r *TaskRepository) ListSubtasks(ctx context.Context, parentID int64) ([]model.Task, error) {
	return r.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE parent_task_id = $1 ORDER BY id`, parentID)
}

func (r *TaskRepository) listTasks(ctx context.Context, query string, arg int64) (tasks []model.Task, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "tasks")
	defer func() { otel.EndDBSpan(span, err) }()

	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err), zap.Int64("arg", arg))
		return nil, err
	}
	defer rows.Close()

	tasks = []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := scanTask(rows, &t); err != nil {
			r.logger.Error("Failed to scan task row", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) ListDescendantIDs(ctx context.Context, id int64) (ids []int64, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "tasks")
	defer func() { otel.EndDBSpan(span, err) }()

	query := `
        WITH RECURSIVE descendants AS (
            SELECT id, 1 AS depth FROM tasks WHERE parent_task_id = $1
            UNION ALL
            SELECT t.id, d.depth + 1
            FROM tasks t
            JOIN descendants d ON t.parent_task_id = d.id
        )
        SELECT id FROM descendants ORDER BY depth DESC, id
    `
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to query descendant tasks", zap.Error(err), zap.Int64("task_id", id))
		return nil, err
	}
	defer rows.Close()

	ids = []int64{}
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		ids = append(ids, d)
	}
	return ids, rows.Err()
}

func (r *TaskRepository) UpdateTask(ctx context.Context, t *model.Task) (err error) {
	ctx, span := otel.DBSpan(ctx, "update", "tasks")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Updating task", zap.Int64("task_id", t.ID))
	query := `
        UPDATE tasks
        SET name = $2, status = $3, progress = $4, end_date = $5, duration = $6, work = $7,
            cost = $8, assigned_employee_id = $9, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `
	err = r.db.QueryRow(ctx, query,
		t.ID,
		t.Name,
		t.Status,
		t.Progress,
		t.EndDate,
		t.Duration,
		t.Work,
		t.Cost,
		t.AssignedEmployeeID,
	).Scan(&t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Error(err), zap.Int64("task_id", t.ID))
		return mapError(err)
	}
	r.logger.Info("Task updated successfully", zap.Int64("task_id", t.ID))
	return nil
}

func (r *TaskRepository) UpdateTaskProgress(ctx context.Context, id int64, progress float64) (err error) {
	ctx, span := otel.DBSpan(ctx, "update", "tasks")
	defer func() { otel.EndDBSpan(span, err) }()

	tag, err := r.db.Exec(ctx, `UPDATE tasks SET progress = $2, updated_at = NOW() WHERE id = $1`, id, progress)
	if err != nil {
		r.logger.Error("Failed to update task progress", zap.Error(err), zap.Int64("task_id", id))
		return err
	}
	return notFoundIfNone(tag)
}

func (r *TaskRepository) DeleteTasks(ctx context.Context, ids []int64) (err error) {
	if len(ids) == 0 {
		return nil
	}
	ctx, span := otel.DBSpan(ctx, "delete", "tasks")
	defer func() { otel.EndDBSpan(span, err) }()

	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		r.logger.Error("Failed to delete tasks", zap.Error(err), zap.Int64s("task_ids", ids))
		return err
	}
	r.logger.Info("Tasks deleted", zap.Int64s("task_ids", ids), zap.Int64("rows_affected", tag.RowsAffected()))
	return nil
}
