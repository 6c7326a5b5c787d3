package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"intraportal/internal/model"
)

func ptr(v int64) *int64 { return &v }

func TestComputeProjectIsMeanOfPhases(t *testing.T) {
	project := model.Project{ID: 1, Progress: 0}
	phases := []model.Phase{
		{ID: 10, ProjectID: 1, Progress: 40},
		{ID: 11, ProjectID: 1, Progress: 60},
	}

	r := Compute(project, phases, nil)
	assert.InDelta(t, 50, r.Project, 1e-9)
	assert.InDelta(t, 40, r.Phases[10], 1e-9)
	assert.InDelta(t, 60, r.Phases[11], 1e-9)
}

func TestComputeTaskIsMeanOfSubtasks(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, PhaseID: ptr(100), Progress: 10},
		{ID: 2, ParentTaskID: ptr(1), Progress: 0},
		{ID: 3, ParentTaskID: ptr(1), Progress: 50},
		{ID: 4, ParentTaskID: ptr(1), Progress: 100},
	}
	phases := []model.Phase{{ID: 100, Progress: 0}}

	r := Compute(model.Project{}, phases, tasks)
	assert.InDelta(t, 50, r.Tasks[1], 1e-9)
	assert.InDelta(t, 50, r.Phases[100], 1e-9, "phase counts only direct tasks")
	assert.InDelta(t, 50, r.Project, 1e-9)
}

func TestComputeZeroChildrenRetainsValue(t *testing.T) {
	phases := []model.Phase{
		{ID: 1, Progress: 30},
		{ID: 2, Progress: 77},
	}
	tasks := []model.Task{
		{ID: 10, PhaseID: ptr(1), Progress: 90},
	}

	r := Compute(model.Project{Progress: 5}, phases, tasks)
	assert.InDelta(t, 90, r.Phases[1], 1e-9)
	assert.InDelta(t, 77, r.Phases[2], 1e-9, "empty phase keeps its value")
	assert.InDelta(t, 83.5, r.Project, 1e-9)

	empty := Compute(model.Project{Progress: 12}, nil, nil)
	assert.InDelta(t, 12, empty.Project, 1e-9, "project without phases keeps its value")
}

func TestComputeDeepNesting(t *testing.T) {
	// 2 -> 3 -> {4: 100, 5: 0}; 2 also has 6: 100
	tasks := []model.Task{
		{ID: 2, PhaseID: ptr(1), Progress: 0},
		{ID: 3, ParentTaskID: ptr(2), Progress: 0},
		{ID: 4, ParentTaskID: ptr(3), Progress: 100},
		{ID: 5, ParentTaskID: ptr(3), Progress: 0},
		{ID: 6, ParentTaskID: ptr(2), Progress: 100},
	}
	r := Compute(model.Project{}, []model.Phase{{ID: 1}}, tasks)

	assert.InDelta(t, 50, r.Tasks[3], 1e-9)
	assert.InDelta(t, 75, r.Tasks[2], 1e-9)
	assert.InDelta(t, 75, r.Phases[1], 1e-9)
	assert.InDelta(t, 100, r.Tasks[4], 1e-9)
}

func TestComputeDoesNotClamp(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, PhaseID: ptr(1), Progress: 150},
		{ID: 2, PhaseID: ptr(1), Progress: 130},
	}
	r := Compute(model.Project{}, []model.Phase{{ID: 1}}, tasks)
	assert.InDelta(t, 140, r.Project, 1e-9)
}

func TestComputeBreaksCycles(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, ParentTaskID: ptr(2), Progress: 20},
		{ID: 2, ParentTaskID: ptr(1), Progress: 80},
	}
	assert.NotPanics(t, func() {
		r := Compute(model.Project{}, nil, tasks)
		assert.Len(t, r.Tasks, 2)
	})
}

func TestComputeIgnoresDanglingParent(t *testing.T) {
	tasks := []model.Task{
		{ID: 1, PhaseID: ptr(1), ParentTaskID: ptr(999), Progress: 40},
	}
	r := Compute(model.Project{}, []model.Phase{{ID: 1}}, tasks)
	assert.InDelta(t, 40, r.Phases[1], 1e-9)
}
