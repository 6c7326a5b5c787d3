package repository

import (
	"context"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/pkg/otel"
)

type PhaseRepository struct {
	db     DBTX
	logger *zap.Logger
}

const phaseColumns = `id, project_id, name, start_date, end_date, progress, sort_order, created_at, updated_at`

func scanPhase(row interface{ Scan(...any) error }, ph *model.Phase) error {
	return row.Scan(
		&ph.ID,
		&ph.ProjectID,
		&ph.Name,
		&ph.StartDate,
		&ph.EndDate,
		&ph.Progress,
		&ph.Order,
		&ph.CreatedAt,
		&ph.UpdatedAt,
	)
}

func (r *PhaseRepository) InsertPhase(ctx context.Context, ph *model.Phase) (err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "phases")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Inserting phase",
		zap.Int64("project_id", ph.ProjectID),
		zap.String("name", ph.Name),
		zap.Int("order", ph.Order),
	)
	query := `
        INSERT INTO phases (project_id, name, start_date, end_date, progress, sort_order)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		ph.ProjectID,
		ph.Name,
		ph.StartDate,
		ph.EndDate,
		ph.Progress,
		ph.Order,
	).Scan(&ph.ID, &ph.CreatedAt, &ph.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert phase", zap.Error(err), zap.Int64("project_id", ph.ProjectID))
		return mapError(err)
	}
	return nil
}

func (r *PhaseRepository) GetPhase(ctx context.Context, id int64) (ph *model.Phase, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "phases")
	defer func() { otel.EndDBSpan(span, err) }()

	ph = &model.Phase{}
	if err = scanPhase(r.db.QueryRow(ctx, `SELECT `+phaseColumns+` FROM phases WHERE id = $1`, id), ph); err != nil {
		return nil, mapError(err)
	}
	return ph, nil
}

func (r *PhaseRepository) ListPhasesByProject(ctx context.Context, projectID int64) (phases []model.Phase, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "phases")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Listing phases", zap.Int64("project_id", projectID))
	rows, err := r.db.Query(ctx,
		`SELECT `+phaseColumns+` FROM phases WHERE project_id = $1 ORDER BY sort_order, id`, projectID)
	if err != nil {
		r.logger.Error("Failed to query phases", zap.Error(err), zap.Int64("project_id", projectID))
		return nil, err
	}
	defer rows.Close()

	phases = []model.Phase{}
	for rows.Next() {
		var ph model.Phase
		if err := scanPhase(rows, &ph); err != nil {
			r.logger.Error("Failed to scan phase row", zap.Error(err))
			return nil, err
		}
		phases = append(phases, ph)
	}
	return phases, rows.Err()
}

func (r *PhaseRepository) UpdatePhaseProgress(ctx context.Context, id int64, progress float64) (err error) {
	ctx, span := otel.DBSpan(ctx, "update", "phases")
	defer func() { otel.EndDBSpan(span, err) }()

	tag, err := r.db.Exec(ctx, `UPDATE phases SET progress = $2, updated_at = NOW() WHERE id = $1`, id, progress)
	if err != nil {
		r.logger.Error("Failed to update phase progress", zap.Error(err), zap.Int64("phase_id", id))
		return err
	}
	return notFoundIfNone(tag)
}
