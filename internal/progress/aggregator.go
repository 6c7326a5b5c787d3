package progress

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/pkg/logger"
	"intraportal/pkg/metrics"
)

// Repo 汇总所需的存取操作，store.Repo 满足该接口
type Repo interface {
	LockProject(ctx context.Context, id int64) (*model.Project, error)
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	ListPhasesByProject(ctx context.Context, projectID int64) ([]model.Phase, error)
	ListTasksByProject(ctx context.Context, projectID int64) ([]model.Task, error)
	UpdateTaskProgress(ctx context.Context, id int64, progress float64) error
	UpdatePhaseProgress(ctx context.Context, id int64, progress float64) error
	UpdateProjectProgress(ctx context.Context, id int64, progress float64) error
}

// 触发来源，用于指标标签
const (
	TriggerImport     = "import"
	TriggerTaskUpdate = "task_update"
	TriggerTaskDelete = "task_delete"
	TriggerManual     = "manual"
	TriggerEvent      = "event"
)

// Result 重算结果和实际写入的行数
type Result struct {
	ProjectID int64   `json:"project_id"`
	Progress  float64 `json:"progress"`
	Updated   int     `json:"updated"`
	Rollup    Rollup  `json:"-"`
}

type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// RecomputeProject 锁定项目行后全量重算，只写入发生变化的值；应在事务中调用
func (a *Aggregator) RecomputeProject(ctx context.Context, repo Repo, projectID int64, trigger string) (*Result, error) {
	start := time.Now()
	defer func() { metrics.RecordProgressRecompute(trigger, time.Since(start)) }()

	log := logger.WithTrace(ctx, a.logger).With(zap.Int64("project_id", projectID), zap.String("trigger", trigger))

	project, err := repo.LockProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("lock project %d: %w", projectID, err)
	}
	phases, err := repo.ListPhasesByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	tasks, err := repo.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	rollup := Compute(*project, phases, tasks)
	updated := 0

	for _, t := range tasks {
		if v := rollup.Tasks[t.ID]; changed(v, t.Progress) {
			if err := repo.UpdateTaskProgress(ctx, t.ID, v); err != nil {
				return nil, fmt.Errorf("update task %d progress: %w", t.ID, err)
			}
			updated++
		}
	}
	for _, ph := range phases {
		if v := rollup.Phases[ph.ID]; changed(v, ph.Progress) {
			if err := repo.UpdatePhaseProgress(ctx, ph.ID, v); err != nil {
				return nil, fmt.Errorf("update phase %d progress: %w", ph.ID, err)
			}
			updated++
		}
	}
	if changed(rollup.Project, project.Progress) {
		if err := repo.UpdateProjectProgress(ctx, projectID, rollup.Project); err != nil {
			return nil, fmt.Errorf("update project progress: %w", err)
		}
		updated++
	}

	log.Debug("Progress recomputed",
		zap.Int("phases", len(phases)),
		zap.Int("tasks", len(tasks)),
		zap.Int("updated", updated),
		zap.Float64("progress", rollup.Project),
	)
	return &Result{ProjectID: projectID, Progress: rollup.Project, Updated: updated, Rollup: rollup}, nil
}

// RecomputeFromTask 重算任务所在项目，结果覆盖该任务的全部祖先
func (a *Aggregator) RecomputeFromTask(ctx context.Context, repo Repo, taskID int64, trigger string) (*Result, error) {
	task, err := repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", taskID, err)
	}
	return a.RecomputeProject(ctx, repo, task.ProjectID, trigger)
}
