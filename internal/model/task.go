package model

import "time"

// 任务状态
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusOnHold     = "on_hold"
	TaskStatusCancelled  = "cancelled"
)

// StatusForProgress 导入时由完成度推导状态
func StatusForProgress(progress float64) string {
	switch {
	case progress >= 100:
		return TaskStatusCompleted
	case progress > 0:
		return TaskStatusInProgress
	default:
		return TaskStatusPending
	}
}

type Task struct {
	ID                 int64     `json:"id"`
	ProjectID          int64     `json:"project_id"`
	PhaseID            *int64    `json:"phase_id"`
	ParentTaskID       *int64    `json:"parent_task_id"`
	AssignedEmployeeID *int64    `json:"assigned_employee_id"`
	Name               string    `json:"name"`
	Status             string    `json:"status"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	OutlineLevel       int       `json:"outline_level"`
	XMLUID             string    `json:"xml_uid"`
	Duration           float64   `json:"duration"` // 工作日
	Work               float64   `json:"work"`     // 工作日
	Cost               float64   `json:"cost"`
	Progress           float64   `json:"progress"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TaskPatch 部分更新，nil 字段保持不变
type TaskPatch struct {
	Name               *string    `json:"name" binding:"omitempty,notblank"`
	Status             *string    `json:"status" binding:"omitempty,oneof=pending in_progress completed on_hold cancelled"`
	Progress           *float64   `json:"progress" binding:"omitempty,gte=0,lte=100"`
	EndDate            *time.Time `json:"end_date"`
	Duration           *float64   `json:"duration" binding:"omitempty,gte=0"`
	Work               *float64   `json:"work" binding:"omitempty,gte=0"`
	Cost               *float64   `json:"cost" binding:"omitempty,gte=0"`
	AssignedEmployeeID *int64     `json:"assigned_employee_id" binding:"omitempty,gt=0"`
}

// Empty 没有任何字段需要更新
func (p TaskPatch) Empty() bool {
	return p.Name == nil && p.Status == nil && p.Progress == nil && p.EndDate == nil &&
		p.Duration == nil && p.Work == nil && p.Cost == nil && p.AssignedEmployeeID == nil
}

// Apply 把 patch 写到 t 上
func (p TaskPatch) Apply(t *Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.EndDate != nil {
		t.EndDate = *p.EndDate
	}
	if p.Duration != nil {
		t.Duration = *p.Duration
	}
	if p.Work != nil {
		t.Work = *p.Work
	}
	if p.Cost != nil {
		t.Cost = *p.Cost
	}
	if p.AssignedEmployeeID != nil {
		id := *p.AssignedEmployeeID
		t.AssignedEmployeeID = &id
	}
}

type TaskAssignment struct {
	ID         int64     `json:"id"`
	TaskID     int64     `json:"task_id"`
	EmployeeID int64     `json:"employee_id"`
	Units      float64   `json:"units"`
	Work       float64   `json:"work"`
	Role       string    `json:"role"`
	Employee   *Employee `json:"employee,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TaskDependency 前置任务关系，Type 沿用 MS Project 的链接类型编码
type TaskDependency struct {
	ID            int64   `json:"id"`
	PredecessorID int64   `json:"predecessor_id"`
	SuccessorID   int64   `json:"successor_id"`
	Type          int     `json:"type"`
	Lag           float64 `json:"lag"` // 工作日
}

// TaskDetail 单个任务及其关联数据
type TaskDetail struct {
	Task
	Phase       *Phase           `json:"phase,omitempty"`
	Parent      *Task            `json:"parent,omitempty"`
	Subtasks    []Task           `json:"subtasks"`
	Assignments []TaskAssignment `json:"assignments"`
}
