package importer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/internal/msproject"
	"intraportal/internal/store"
	"intraportal/pkg/metrics"
)

// 记录类型
const (
	KindTask       = "task"
	KindResource   = "resource"
	KindAssignment = "assignment"
	KindDependency = "dependency"
)

// 警告原因
const (
	ReasonOrphanTask          = "orphan_task"          // level 2 之前没有阶段，已创建但未挂接
	ReasonOrphanSubtask       = "orphan_subtask"       // level >= 3 没有父任务，已创建但未挂接
	ReasonDuplicateUID        = "duplicate_uid"        // 重复的 UID，已跳过
	ReasonUnassignedResource  = "unassigned_resource"  // UID 为 0 的占位资源，已跳过
	ReasonEmptyResourceName   = "empty_resource_name"  // 资源名为空，已跳过
	ReasonDanglingAssignment  = "dangling_assignment"  // 任务或资源 UID 无法解析，已跳过
	ReasonDuplicateAssignment = "duplicate_assignment" // 同一任务和员工重复分配，已跳过
	ReasonDanglingDependency  = "dangling_dependency"  // 前置任务 UID 无法解析，已跳过
	ReasonSelfDependency      = "self_dependency"      // 任务依赖自身，已跳过
)

// Warning 导入过程中未能按原样处理的记录
type Warning struct {
	Kind   string `json:"kind"`
	UID    string `json:"uid"`
	Reason string `json:"reason"`
}

// Result 一次导入的汇总
type Result struct {
	ProjectID        int64     `json:"project_id"`
	ProjectName      string    `json:"project_name"`
	Phases           int       `json:"phases"`
	Tasks            int       `json:"tasks"`
	EmployeesCreated int       `json:"employees_created"`
	EmployeesReused  int       `json:"employees_reused"`
	Assignments      int       `json:"assignments"`
	Dependencies     int       `json:"dependencies"`
	Progress         float64   `json:"progress"`
	Warnings         []Warning `json:"warnings"`
}

// session 一次导入的上下文，外部 UID 到内部 id 的映射只在这里存在
type session struct {
	repo        store.Repo
	logger      *zap.Logger
	emailDomain string
	project     *model.Project

	phaseMap    map[string]int64
	taskMap     map[string]int64
	resourceMap map[string]int64

	result Result
}

func newSession(repo store.Repo, logger *zap.Logger, emailDomain string, project *model.Project) *session {
	return &session{
		repo:        repo,
		logger:      logger,
		emailDomain: emailDomain,
		project:     project,
		phaseMap:    map[string]int64{},
		taskMap:     map[string]int64{},
		resourceMap: map[string]int64{},
		result: Result{
			ProjectID:   project.ID,
			ProjectName: project.Name,
			Warnings:    []Warning{},
		},
	}
}

func (s *session) warn(kind, uid, reason string) {
	s.logger.Warn("Import record not applied as-is",
		zap.String("kind", kind),
		zap.String("uid", uid),
		zap.String("reason", reason),
	)
	metrics.IncrementImportSkipped(reason)
	s.result.Warnings = append(s.result.Warnings, Warning{Kind: kind, UID: uid, Reason: reason})
}

// buildHierarchy 按文档顺序创建阶段和任务。
// 父节点总在子节点之前出现，所以 phase_id / parent_task_id 在插入时即可确定。
func (s *session) buildHierarchy(ctx context.Context, tasks []msproject.Task) error {
	links := linkOutline(tasks)

	for i, rec := range tasks {
		link := links[i]
		if link.level < 1 {
			s.logger.Debug("Skipping project summary task", zap.String("uid", rec.UID))
			continue
		}
		if link.duplicate {
			s.warn(KindTask, rec.UID, ReasonDuplicateUID)
			continue
		}

		if link.level == 1 {
			if err := s.createPhase(ctx, rec); err != nil {
				return err
			}
			continue
		}
		if err := s.createTask(ctx, rec, link); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) createPhase(ctx context.Context, rec msproject.Task) error {
	ph := &model.Phase{
		ProjectID: s.project.ID,
		Name:      nameOr(rec.Name, "Untitled phase"),
		StartDate: msproject.ParseDate(rec.Start, s.project.StartDate),
		EndDate:   msproject.ParseDate(rec.Finish, s.project.EndDate),
		Progress:  msproject.ClampPercent(msproject.ParseFloat(rec.PercentComplete, 0)),
		Order:     rec.Order(),
	}
	if err := s.repo.InsertPhase(ctx, ph); err != nil {
		return err
	}
	s.phaseMap[rec.UID] = ph.ID
	s.result.Phases++
	return nil
}

func (s *session) createTask(ctx context.Context, rec msproject.Task, link outlineLink) error {
	progress := msproject.ClampPercent(msproject.ParseFloat(rec.PercentComplete, 0))
	t := &model.Task{
		ProjectID:    s.project.ID,
		Name:         nameOr(rec.Name, "Untitled task"),
		Status:       model.StatusForProgress(progress),
		StartDate:    msproject.ParseDate(rec.Start, s.project.StartDate),
		EndDate:      msproject.ParseDate(rec.Finish, s.project.EndDate),
		OutlineLevel: link.level,
		XMLUID:       rec.UID,
		Duration:     msproject.ParseDuration(rec.Duration),
		Work:         msproject.ParseDuration(rec.Work),
		Cost:         msproject.ParseFloat(rec.Cost, 0),
		Progress:     progress,
	}
	if id, ok := s.phaseMap[link.phaseUID]; ok && link.phaseUID != "" {
		t.PhaseID = &id
	}
	if id, ok := s.taskMap[link.parentUID]; ok && link.parentUID != "" {
		t.ParentTaskID = &id
	}

	if err := s.repo.InsertTask(ctx, t); err != nil {
		return err
	}
	s.taskMap[rec.UID] = t.ID
	s.result.Tasks++

	if link.orphan {
		reason := ReasonOrphanSubtask
		if link.level == 2 {
			reason = ReasonOrphanTask
		}
		s.warn(KindTask, rec.UID, reason)
	}
	return nil
}

// syncStatuses 汇总后父任务的进度可能变化，按最终进度重新推导导入任务的状态
func (s *session) syncStatuses(ctx context.Context) error {
	tasks, err := s.repo.ListTasksByProject(ctx, s.project.ID)
	if err != nil {
		return err
	}
	for i := range tasks {
		t := &tasks[i]
		status := model.StatusForProgress(t.Progress)
		if t.Status == status {
			continue
		}
		s.logger.Debug("Task status follows rolled-up progress",
			zap.Int64("task_id", t.ID),
			zap.String("from", t.Status),
			zap.String("to", status),
		)
		t.Status = status
		if err := s.repo.UpdateTask(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func nameOr(name, fallback string) string {
	if s := strings.TrimSpace(name); s != "" {
		return s
	}
	return fallback
}
