package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/pkg/otel"
)

type AssignmentRepository struct {
	db     DBTX
	logger *zap.Logger
}

func (r *AssignmentRepository) InsertAssignment(ctx context.Context, a *model.TaskAssignment) (inserted bool, err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "task_assignments")
	defer func() { otel.EndDBSpan(span, err) }()

	query := `
        INSERT INTO task_assignments (task_id, employee_id, units, work, role)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (task_id, employee_id) DO NOTHING
        RETURNING id, created_at
    `
	err = r.db.QueryRow(ctx, query, a.TaskID, a.EmployeeID, a.Units, a.Work, a.Role).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Debug("Assignment already exists",
			zap.Int64("task_id", a.TaskID),
			zap.Int64("employee_id", a.EmployeeID),
		)
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert assignment",
			zap.Error(err),
			zap.Int64("task_id", a.TaskID),
			zap.Int64("employee_id", a.EmployeeID),
		)
		return false, mapError(err)
	}
	return true, nil
}

func (r *AssignmentRepository) ListAssignmentsByTask(ctx context.Context, taskID int64) (out []model.TaskAssignment, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "task_assignments")
	defer func() { otel.EndDBSpan(span, err) }()

	query := `
        SELECT a.id, a.task_id, a.employee_id, a.units, a.work, a.role, a.created_at,
               e.id, e.name_en, e.name_ar, e.email, e.job_title, e.department_id, e.created_at, e.updated_at
        FROM task_assignments a
        JOIN employees e ON e.id = a.employee_id
        WHERE a.task_id = $1
        ORDER BY a.id
    `
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		r.logger.Error("Failed to query assignments", zap.Error(err), zap.Int64("task_id", taskID))
		return nil, err
	}
	defer rows.Close()

	out = []model.TaskAssignment{}
	for rows.Next() {
		var a model.TaskAssignment
		var e model.Employee
		if err := rows.Scan(
			&a.ID, &a.TaskID, &a.EmployeeID, &a.Units, &a.Work, &a.Role, &a.CreatedAt,
			&e.ID, &e.NameEn, &e.NameAr, &e.Email, &e.JobTitle, &e.DepartmentID, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			r.logger.Error("Failed to scan assignment row", zap.Error(err))
			return nil, err
		}
		a.Employee = &e
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AssignmentRepository) DeleteAssignmentsByTasks(ctx context.Context, taskIDs []int64) (err error) {
	if len(taskIDs) == 0 {
		return nil
	}
	ctx, span := otel.DBSpan(ctx, "delete", "task_assignments")
	defer func() { otel.EndDBSpan(span, err) }()

	tag, err := r.db.Exec(ctx, `DELETE FROM task_assignments WHERE task_id = ANY($1)`, taskIDs)
	if err != nil {
		r.logger.Error("Failed to delete assignments", zap.Error(err), zap.Int64s("task_ids", taskIDs))
		return err
	}
	r.logger.Debug("Assignments deleted", zap.Int64("rows_affected", tag.RowsAffected()))
	return nil
}
