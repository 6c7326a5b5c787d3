package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationOf(t *testing.T) {
	tests := []struct {
		sql  string
		tag  string
		want string
	}{
		{"SELECT id FROM projects", "SELECT 3", "select"},
		{"\n        INSERT INTO tasks (name) VALUES ($1)", "", "insert"},
		{"WITH RECURSIVE tree AS (SELECT 1) SELECT * FROM tree", "", "select"},
		{"WITH moved AS (SELECT id FROM tasks) UPDATE tasks SET progress = 0", "", "update"},
		{"WITH RECURSIVE tree AS (SELECT 1) DELETE FROM tasks", "DELETE 4", "delete"},
		{"   ", "", "unknown"},
		{"", "", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, operationOf(tt.sql, tt.tag), tt.sql)
	}
}

func TestTableOf(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT id FROM projects WHERE id = $1", "projects"},
		{"INSERT INTO task_assignments (task_id) VALUES ($1)", "task_assignments"},
		{"UPDATE phases SET progress = $1", "phases"},
		{"DELETE FROM tasks WHERE id = ANY($1)", "tasks"},
		{"SELECT id FROM ONLY \"employees\"", "employees"},
		{"WITH RECURSIVE tree AS (SELECT id FROM tasks) SELECT id FROM tree", "tasks"},
		{"SELECT 1", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tableOf(tt.sql), tt.sql)
	}
}
