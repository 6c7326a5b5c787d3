// Package store 定义项目数据的存取接口，pgx 实现在 internal/repository，
// 内存实现在 internal/store/memstore。
package store

import (
	"context"
	"errors"

	"intraportal/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type ProjectRepo interface {
	InsertProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	// LockProject 读取项目并持有行锁直到事务结束
	LockProject(ctx context.Context, id int64) (*model.Project, error)
	FindProjectIDByHash(ctx context.Context, hash string) (int64, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	UpdateProjectProgress(ctx context.Context, id int64, progress float64) error
	DeleteProject(ctx context.Context, id int64) error
}

type PhaseRepo interface {
	InsertPhase(ctx context.Context, ph *model.Phase) error
	GetPhase(ctx context.Context, id int64) (*model.Phase, error)
	ListPhasesByProject(ctx context.Context, projectID int64) ([]model.Phase, error)
	UpdatePhaseProgress(ctx context.Context, id int64, progress float64) error
}

type TaskRepo interface {
	InsertTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListTasksByProject(ctx context.Context, projectID int64) ([]model.Task, error)
	ListSubtasks(ctx context.Context, parentID int64) ([]model.Task, error)
	// ListDescendantIDs 返回所有后代任务 id，最深的在前
	ListDescendantIDs(ctx context.Context, id int64) ([]int64, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	UpdateTaskProgress(ctx context.Context, id int64, progress float64) error
	DeleteTasks(ctx context.Context, ids []int64) error
}

type EmployeeRepo interface {
	FindEmployeeByEmail(ctx context.Context, email string) (*model.Employee, error)
	InsertEmployee(ctx context.Context, e *model.Employee) error
	// EnsureEmployee 按邮箱插入，已存在时用现有记录填充 e；created 表示是否新建
	EnsureEmployee(ctx context.Context, e *model.Employee) (created bool, err error)
	GetEmployee(ctx context.Context, id int64) (*model.Employee, error)
	ListEmployees(ctx context.Context) ([]model.Employee, error)
}

type AssignmentRepo interface {
	// InsertAssignment 同一 (task_id, employee_id) 已存在时返回 false
	InsertAssignment(ctx context.Context, a *model.TaskAssignment) (bool, error)
	ListAssignmentsByTask(ctx context.Context, taskID int64) ([]model.TaskAssignment, error)
	DeleteAssignmentsByTasks(ctx context.Context, taskIDs []int64) error
}

type DependencyRepo interface {
	// InsertDependency 同一 (predecessor_id, successor_id) 已存在时返回 false
	InsertDependency(ctx context.Context, d *model.TaskDependency) (bool, error)
	ListDependenciesByProject(ctx context.Context, projectID int64) ([]model.TaskDependency, error)
	// DeleteDependenciesByTasks 删除前置或后继在 taskIDs 中的依赖
	DeleteDependenciesByTasks(ctx context.Context, taskIDs []int64) error
}

// OutboxWriter 写入待发布事件，只能在事务内调用
type OutboxWriter interface {
	EnqueueEvent(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error
}

// Repo 一个连接或事务上可用的全部操作
type Repo interface {
	ProjectRepo
	PhaseRepo
	TaskRepo
	EmployeeRepo
	AssignmentRepo
	DependencyRepo
	OutboxWriter
}

// Store 在 Repo 之上提供事务
type Store interface {
	Repo
	// InTx 在一个事务中执行 fn，fn 返回错误时全部回滚
	InTx(ctx context.Context, fn func(Repo) error) error
	Ping(ctx context.Context) error
}
