// Package progress 汇总任务、阶段和项目的完成度。
//
// 规则统一为自底向上的全量重算：任务取其子任务的均值（没有子任务时保留自身值），
// 阶段取其直属任务的均值，项目取各阶段的均值。没有子节点的节点保留原值。
package progress

import (
	"math"

	"intraportal/internal/model"
)

// Rollup 一次重算的结果，key 为实体 id
type Rollup struct {
	Project float64
	Phases  map[int64]float64
	Tasks   map[int64]float64
}

// Compute 纯函数，不修改入参
func Compute(project model.Project, phases []model.Phase, tasks []model.Task) Rollup {
	byID := make(map[int64]model.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	children := make(map[int64][]int64)
	for _, t := range tasks {
		if t.ParentTaskID == nil {
			continue
		}
		if _, ok := byID[*t.ParentTaskID]; ok {
			children[*t.ParentTaskID] = append(children[*t.ParentTaskID], t.ID)
		}
	}

	r := Rollup{
		Project: project.Progress,
		Phases:  make(map[int64]float64, len(phases)),
		Tasks:   make(map[int64]float64, len(tasks)),
	}

	visiting := make(map[int64]bool)
	var taskProgress func(id int64) float64
	taskProgress = func(id int64) float64 {
		if v, ok := r.Tasks[id]; ok {
			return v
		}
		own := byID[id].Progress
		// 数据中存在环时以自身值断开
		if visiting[id] {
			return own
		}
		visiting[id] = true
		defer delete(visiting, id)

		v := own
		if kids := children[id]; len(kids) > 0 {
			values := make([]float64, len(kids))
			for i, k := range kids {
				values[i] = taskProgress(k)
			}
			v = mean(values)
		}
		r.Tasks[id] = v
		return v
	}

	for _, t := range tasks {
		taskProgress(t.ID)
	}

	direct := make(map[int64][]float64)
	for _, t := range tasks {
		if t.PhaseID == nil || isChild(t, byID) {
			continue
		}
		direct[*t.PhaseID] = append(direct[*t.PhaseID], r.Tasks[t.ID])
	}

	phaseValues := make([]float64, 0, len(phases))
	for _, ph := range phases {
		v := ph.Progress
		if values := direct[ph.ID]; len(values) > 0 {
			v = mean(values)
		}
		r.Phases[ph.ID] = v
		phaseValues = append(phaseValues, v)
	}
	if len(phaseValues) > 0 {
		r.Project = mean(phaseValues)
	}
	return r
}

// isChild 父任务存在于同一批任务中
func isChild(t model.Task, byID map[int64]model.Task) bool {
	if t.ParentTaskID == nil {
		return false
	}
	_, ok := byID[*t.ParentTaskID]
	return ok
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

const epsilon = 1e-9

func changed(a, b float64) bool {
	return math.Abs(a-b) > epsilon
}
