package repository

import (
	"context"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/pkg/otel"
)

type EmployeeRepository struct {
	db     DBTX
	logger *zap.Logger
}

const employeeColumns = `id, name_en, name_ar, email, job_title, department_id, created_at, updated_at`

func scanEmployee(row interface{ Scan(...any) error }, e *model.Employee) error {
	return row.Scan(
		&e.ID,
		&e.NameEn,
		&e.NameAr,
		&e.Email,
		&e.JobTitle,
		&e.DepartmentID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
}

func (r *EmployeeRepository) FindEmployeeByEmail(ctx context.Context, email string) (e *model.Employee, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "employees")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Finding employee by email", zap.String("email", email))
	e = &model.Employee{}
	if err = scanEmployee(r.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE email = $1`, email), e); err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

func (r *EmployeeRepository) InsertEmployee(ctx context.Context, e *model.Employee) (err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "employees")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Inserting employee", zap.String("email", e.Email))
	query := `
        INSERT INTO employees (name_en, name_ar, email, job_title, department_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at
    `
	err = r.db.QueryRow(ctx, query,
		e.NameEn,
		e.NameAr,
		e.Email,
		e.JobTitle,
		e.DepartmentID,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert employee", zap.Error(err), zap.String("email", e.Email))
		return mapError(err)
	}
	r.logger.Info("Employee inserted successfully", zap.Int64("employee_id", e.ID), zap.String("email", e.Email))
	return nil
}

// EnsureEmployee 并发导入同名资源时，后到的事务会等待先到的提交，再走 ON CONFLICT 分支复用该行
func (r *EmployeeRepository) EnsureEmployee(ctx context.Context, e *model.Employee) (created bool, err error) {
	ctx, span := otel.DBSpan(ctx, "insert", "employees")
	defer func() { otel.EndDBSpan(span, err) }()

	r.logger.Debug("Ensuring employee", zap.String("email", e.Email))
	query := `
        INSERT INTO employees (name_en, name_ar, email, job_title, department_id)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
        RETURNING ` + employeeColumns + `, (xmax = 0) AS created
    `
	err = r.db.QueryRow(ctx, query,
		e.NameEn,
		e.NameAr,
		e.Email,
		e.JobTitle,
		e.DepartmentID,
	).Scan(
		&e.ID,
		&e.NameEn,
		&e.NameAr,
		&e.Email,
		&e.JobTitle,
		&e.DepartmentID,
		&e.CreatedAt,
		&e.UpdatedAt,
		&created,
	)
	if err != nil {
		r.logger.Error("Failed to ensure employee", zap.Error(err), zap.String("email", e.Email))
		return false, mapError(err)
	}
	if created {
		r.logger.Info("Employee inserted successfully", zap.Int64("employee_id", e.ID), zap.String("email", e.Email))
	}
	return created, nil
}

func (r *EmployeeRepository) GetEmployee(ctx context.Context, id int64) (e *model.Employee, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "employees")
	defer func() { otel.EndDBSpan(span, err) }()

	e = &model.Employee{}
	if err = scanEmployee(r.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id), e); err != nil {
		return nil, mapError(err)
	}
	return e, nil
}

func (r *EmployeeRepository) ListEmployees(ctx context.Context) (employees []model.Employee, err error) {
	ctx, span := otel.DBSpan(ctx, "select", "employees")
	defer func() { otel.EndDBSpan(span, err) }()

	rows, err := r.db.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY name_en, id`)
	if err != nil {
		r.logger.Error("Failed to query employees", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	employees = []model.Employee{}
	for rows.Next() {
		var e model.Employee
		if err := scanEmployee(rows, &e); err != nil {
			r.logger.Error("Failed to scan employee row", zap.Error(err))
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}
