package project

import (
	"context"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/internal/progress"
	"intraportal/internal/store"
	"intraportal/pkg/logger"
	"intraportal/pkg/mq"
	"intraportal/pkg/trace"
)

type Service struct {
	store      store.Store
	aggregator *progress.Aggregator
	logger     *zap.Logger
}

func NewService(st store.Store, aggregator *progress.Aggregator, logger *zap.Logger) *Service {
	return &Service{
		store:      st,
		aggregator: aggregator,
		logger:     logger,
	}
}

func (s *Service) List(ctx context.Context) ([]model.Project, error) {
	return s.store.ListProjects(ctx)
}

// Get 项目详情，附带阶段列表、任务总数和阶段下的顶层任务数
func (s *Service) Get(ctx context.Context, id int64) (*model.ProjectSummary, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	phases, err := s.store.ListPhasesByProject(ctx, id)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasksByProject(ctx, id)
	if err != nil {
		return nil, err
	}

	summary := &model.ProjectSummary{Project: *p, Phases: phases, TaskCount: len(tasks)}
	for _, t := range tasks {
		if t.PhaseID != nil && t.ParentTaskID == nil {
			summary.TopLevelTasks++
		}
	}
	return summary, nil
}

// Delete 阶段、任务、分配和依赖由外键级联删除
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(repo store.Repo) error {
		if _, err := repo.LockProject(ctx, id); err != nil {
			return err
		}
		if err := repo.DeleteProject(ctx, id); err != nil {
			return err
		}
		event := model.ProjectDeletedEvent{ProjectID: id, TraceID: trace.FromContext(ctx)}
		return repo.EnqueueEvent(ctx, "project", id, mq.RoutingKeyProjectDeleted, event)
	})
	if err != nil {
		return err
	}
	logger.WithTrace(ctx, s.logger).Info("Project deleted", zap.Int64("project_id", id))
	return nil
}

// Recompute 全量重算项目进度
func (s *Service) Recompute(ctx context.Context, id int64, trigger string) (*progress.Result, error) {
	var result *progress.Result
	err := s.store.InTx(ctx, func(repo store.Repo) error {
		r, err := s.aggregator.RecomputeProject(ctx, repo, id, trigger)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	return s.store.ListEmployees(ctx)
}
