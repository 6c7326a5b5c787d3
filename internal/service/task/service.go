package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/internal/progress"
	"intraportal/internal/store"
	"intraportal/internal/validation"
	"intraportal/pkg/logger"
	"intraportal/pkg/mq"
	"intraportal/pkg/trace"
)

type Service struct {
	store      store.Store
	aggregator *progress.Aggregator
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewService(st store.Store, aggregator *progress.Aggregator, logger *zap.Logger) *Service {
	return &Service{
		store:      st,
		aggregator: aggregator,
		validate:   validation.New(),
		logger:     logger,
	}
}

// Get 返回任务及其阶段、父任务、子任务和分配
func (s *Service) Get(ctx context.Context, id int64) (*model.TaskDetail, error) {
	return loadDetail(ctx, s.store, id)
}

// Update 部分更新任务，并在同一事务中重算所在项目的进度
func (s *Service) Update(ctx context.Context, id int64, patch model.TaskPatch) (*model.TaskDetail, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("task_id", id))

	if err := s.validatePatch(patch); err != nil {
		log.Warn("Rejected task update", zap.Error(err))
		return nil, err
	}

	var detail *model.TaskDetail
	err := s.store.InTx(ctx, func(repo store.Repo) error {
		t, err := repo.GetTask(ctx, id)
		if err != nil {
			return err
		}

		// 有子任务的任务进度由子任务汇总得出，不能直接修改
		if patch.Progress != nil {
			subtasks, err := repo.ListSubtasks(ctx, id)
			if err != nil {
				return err
			}
			if len(subtasks) > 0 {
				return invalid("progress", "is derived from subtasks")
			}
		}

		if patch.AssignedEmployeeID != nil {
			if _, err := repo.GetEmployee(ctx, *patch.AssignedEmployeeID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return invalid("assigned_employee_id", "employee %d does not exist", *patch.AssignedEmployeeID)
				}
				return err
			}
		}

		patch.Apply(t)
		if err := repo.UpdateTask(ctx, t); err != nil {
			return err
		}

		if _, err := s.aggregator.RecomputeFromTask(ctx, repo, id, progress.TriggerTaskUpdate); err != nil {
			return err
		}

		detail, err = loadDetail(ctx, repo, id)
		if err != nil {
			return err
		}

		event := model.TaskUpdatedEvent{
			TaskID:    id,
			ProjectID: t.ProjectID,
			Fields:    changedFields(patch),
			Progress:  detail.Progress,
			TraceID:   trace.FromContext(ctx),
		}
		return repo.EnqueueEvent(ctx, "task", id, mq.RoutingKeyTaskUpdated, event)
	})
	if err != nil {
		return nil, err
	}

	log.Info("Task updated", zap.Strings("fields", changedFields(patch)), zap.Float64("progress", detail.Progress))
	return detail, nil
}

// Delete 删除任务及其全部子孙，先清理依赖和分配，再从最深层开始删除
func (s *Service) Delete(ctx context.Context, id int64) error {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("task_id", id))

	var deleted []int64
	err := s.store.InTx(ctx, func(repo store.Repo) error {
		t, err := repo.GetTask(ctx, id)
		if err != nil {
			return err
		}

		descendants, err := repo.ListDescendantIDs(ctx, id)
		if err != nil {
			return err
		}
		all := append(append([]int64{}, descendants...), id)

		if err := repo.DeleteDependenciesByTasks(ctx, all); err != nil {
			return fmt.Errorf("delete dependencies: %w", err)
		}
		if err := repo.DeleteAssignmentsByTasks(ctx, descendants); err != nil {
			return fmt.Errorf("delete subtask assignments: %w", err)
		}
		if err := repo.DeleteAssignmentsByTasks(ctx, []int64{id}); err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		if err := repo.DeleteTasks(ctx, descendants); err != nil {
			return fmt.Errorf("delete subtasks: %w", err)
		}
		if err := repo.DeleteTasks(ctx, []int64{id}); err != nil {
			return err
		}

		if _, err := s.aggregator.RecomputeProject(ctx, repo, t.ProjectID, progress.TriggerTaskDelete); err != nil {
			return err
		}

		deleted = descendants
		event := model.TaskDeletedEvent{
			TaskID:          id,
			ProjectID:       t.ProjectID,
			DeletedSubtasks: descendants,
			TraceID:         trace.FromContext(ctx),
		}
		return repo.EnqueueEvent(ctx, "task", id, mq.RoutingKeyTaskDeleted, event)
	})
	if err != nil {
		return err
	}

	log.Info("Task deleted", zap.Int("subtasks", len(deleted)))
	return nil
}

func loadDetail(ctx context.Context, repo store.Repo, id int64) (*model.TaskDetail, error) {
	t, err := repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &model.TaskDetail{Task: *t}

	if t.PhaseID != nil {
		ph, err := repo.GetPhase(ctx, *t.PhaseID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		detail.Phase = ph
	}
	if t.ParentTaskID != nil {
		parent, err := repo.GetTask(ctx, *t.ParentTaskID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		detail.Parent = parent
	}

	if detail.Subtasks, err = repo.ListSubtasks(ctx, id); err != nil {
		return nil, err
	}
	if detail.Assignments, err = repo.ListAssignmentsByTask(ctx, id); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) validatePatch(p model.TaskPatch) error {
	if p.Empty() {
		return invalid("body", "no fields to update")
	}
	if err := s.validate.Struct(p); err != nil {
		if field, message, ok := validation.Describe(err); ok {
			return &ValidationError{Field: field, Message: message}
		}
		return err
	}
	return nil
}

func changedFields(p model.TaskPatch) []string {
	fields := []string{}
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Name != nil, "name")
	add(p.Status != nil, "status")
	add(p.Progress != nil, "progress")
	add(p.EndDate != nil, "end_date")
	add(p.Duration != nil, "duration")
	add(p.Work != nil, "work")
	add(p.Cost != nil, "cost")
	add(p.AssignedEmployeeID != nil, "assigned_employee_id")
	return fields
}
