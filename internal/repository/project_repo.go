package repository

import (
	"context"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/pkg/otel"
)

type ProjectRepository struct {
	db     DBTX
	logger *zap.Logger
}

const projectColumns = `id, name, description, start_date, end_date, progress, status,
	imported_from_xml, source_filename, COALESCE(source_hash, ''), created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }, p *model.Project) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.StartDate,
		&p.EndDate,
		&p.Progress,
		&p.Status,
		&p.ImportedFromXML,
		&p.SourceFilename,
		&p.SourceHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *ProjectRepository) InsertProject(ctx context.Context, p *model.Project) (err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "projects")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Inserting project",
		zap.String("name", p.Name),
		zap.Bool("imported_from_xml", p.ImportedFromXML),
	)
	query := `
        INSERT INTO projects (name, description, start_date, end_date, progress, status,
                              imported_from_xml, source_filename, source_hash)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
        RETURNING id, created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		p.Name,
		p.Description,
		p.StartDate,
		p.EndDate,
		p.Progress,
		p.Status,
		p.ImportedFromXML,
		p.SourceFilename,
		p.SourceHash,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err), zap.String("name", p.Name))
		return mapError(err)
	}
	r.logger.Info("Project inserted successfully", zap.Int64("project_id", p.ID))
	return nil
}

func (r *ProjectRepository) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return r.getProject(ctx, id, "")
}

func (r *ProjectRepository) LockProject(ctx context.Context, id int64) (*model.Project, error) {
	return r.getProject(ctx, id, " FOR UPDATE")
}

func (r *ProjectRepository) getProject(ctx context.Context, id int64, suffix string) (p *model.Project, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "projects")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Getting project", zap.Int64("project_id", id), zap.Bool("lock", suffix != ""))
	p = &model.Project{}
	err = scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`+suffix, id), p)
	if err != nil {
		r.logger.Debug("Project lookup failed", zap.Int64("project_id", id), zap.Error(err))
		return nil, mapError(err)
	}
	return p, nil
}

func (r *ProjectRepository) FindProjectIDByHash(ctx context.Context, hash string) (id int64, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "projects")
	defer func() { otel.EndDBSpan(span, err) }()

	err = r.db.QueryRow(ctx, `SELECT id FROM projects WHERE source_hash = $1`, hash).Scan(&id)
	if err != nil {
		return 0, mapError(err)
	}
	return id, nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context) (projects []model.Project, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "projects")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Listing projects")
	rows, err := r.db.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	projects = []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := scanProject(rows, &p); err != nil {
			r.logger.Error("Failed to scan project row", zap.Error(err))
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.logger.Info("Projects listed successfully", zap.Int("count", len(projects)))
	return projects, nil
}

func (r *ProjectRepository) UpdateProjectProgress(ctx context.Context, id int64, progress float64) (err error) {
	ctx, span := otel.DBSpan(ctx, "update", "projects")
	defer func() { otel.EndDBSpan(span, err) }()

	tag, err := r.db.Exec(ctx, `UPDATE projects SET progress = $2, updated_at = NOW() WHERE id = $1`, id, progress)
	if err != nil {
		r.logger.Error("Failed to update project progress", zap.Error(err), zap.Int64("project_id", id))
		return err
	}
	return notFoundIfNone(tag)
}

// DeleteProject 阶段、任务、分配和依赖由外键级联删除
func (r *ProjectRepository) DeleteProject(ctx context.Context, id int64) (err error) {
	ctx, span := otel.DBSpan(ctx, "delete", "projects")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Deleting project", zap.Int64("project_id", id))
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete project", zap.Error(err), zap.Int64("project_id", id))
		return err
	}
	if err := notFoundIfNone(tag); err != nil {
		return err
	}
	r.logger.Info("Project deleted successfully", zap.Int64("project_id", id))
	return nil
}
