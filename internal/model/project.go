package model

import "time"

// 项目状态
const (
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCancelled = "cancelled"
)

type Project struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Progress        float64   `json:"progress"`
	Status          string    `json:"status"`
	ImportedFromXML bool      `json:"imported_from_xml"`
	SourceFilename  string    `json:"source_filename,omitempty"`
	SourceHash      string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Phase 项目的顶层分组，对应大纲第 1 级
type Phase struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Progress  float64   `json:"progress"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectSummary 项目详情，附带阶段和任务统计
type ProjectSummary struct {
	Project
	Phases        []Phase `json:"phases"`
	TaskCount     int     `json:"task_count"`
	TopLevelTasks int     `json:"top_level_task_count"`
}
