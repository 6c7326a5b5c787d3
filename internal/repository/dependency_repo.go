package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/pkg/otel"
)

type DependencyRepository struct {
	db     DBTX
	logger *zap.Logger
}

func (r *DependencyRepository) InsertDependency(ctx context.Context, d *model.TaskDependency) (inserted bool, err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "task_dependencies")
	defer func() { otel.EndDBSpan(span, err) }()

	query := `
        INSERT INTO task_dependencies (predecessor_id, successor_id, type, lag)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (predecessor_id, successor_id) DO NOTHING
        RETURNING id
    `
	err = r.db.QueryRow(ctx, query, d.PredecessorID, d.SuccessorID, d.Type, d.Lag).Scan(&d.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert dependency",
			zap.Error(err),
			zap.Int64("predecessor_id", d.PredecessorID),
			zap.Int64("successor_id", d.SuccessorID),
		)
		return false, mapError(err)
	}
	return true, nil
}

func (r *DependencyRepository) ListDependenciesByProject(ctx context.Context, projectID int64) (out []model.TaskDependency, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "task_dependencies")
	defer func() { otel.EndDBSpan(span, err) }()

	query := `
        SELECT d.id, d.predecessor_id, d.successor_id, d.type, d.lag
        FROM task_dependencies d
        JOIN tasks t ON t.id = d.successor_id
        WHERE t.project_id = $1
        ORDER BY d.id
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to query dependencies", zap.Error(err), zap.Int64("project_id", projectID))
		return nil, err
	}
	defer rows.Close()

	out = []model.TaskDependency{}
	for rows.Next() {
		var d model.TaskDependency
		if err := rows.Scan(&d.ID, &d.PredecessorID, &d.SuccessorID, &d.Type, &d.Lag); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DependencyRepository) DeleteDependenciesByTasks(ctx context.Context, taskIDs []int64) (err error) {
	if len(taskIDs) == 0 {
		return nil
	}
	ctx, span := otel.DBSpan(ctx, "delete", "task_dependencies")
	defer func() { otel.EndDBSpan(span, err) }()

	tag, err := r.db.Exec(ctx,
		`DELETE FROM task_dependencies WHERE predecessor_id = ANY($1) OR successor_id = ANY($1)`, taskIDs)
	if err != nil {
		r.logger.Error("Failed to delete dependencies", zap.Error(err), zap.Int64s("task_ids", taskIDs))
		return err
	}
	r.logger.Debug("Dependencies deleted", zap.Int64("rows_affected", tag.RowsAffected()))
	return nil
}
