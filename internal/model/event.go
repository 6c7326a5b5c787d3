package model

// 事件载荷，经 outbox 发布到 MQ

type ProjectImportedEvent struct {
	ProjectID int64  `json:"project_id"`
	Filename  string `json:"filename"`
	Phases    int    `json:"phases"`
	Tasks     int    `json:"tasks"`
	TraceID   string `json:"trace_id,omitempty"`
}

type ProjectDeletedEvent struct {
	ProjectID int64  `json:"project_id"`
	TraceID   string `json:"trace_id,omitempty"`
}

type TaskUpdatedEvent struct {
	TaskID    int64    `json:"task_id"`
	ProjectID int64    `json:"project_id"`
	Fields    []string `json:"fields"`
	Progress  float64  `json:"progress"`
	TraceID   string   `json:"trace_id,omitempty"`
}

type TaskDeletedEvent struct {
	TaskID          int64   `json:"task_id"`
	ProjectID       int64   `json:"project_id"`
	DeletedSubtasks []int64 `json:"deleted_subtasks"`
	TraceID         string  `json:"trace_id,omitempty"`
}
