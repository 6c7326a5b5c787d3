package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intraportal/internal/model"
	"intraportal/internal/store"
)

func seedTree(t *testing.T, s *Store) (projectID int64, ids map[string]int64) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	p := &model.Project{Name: "P", StartDate: now, EndDate: now}
	require.NoError(t, s.InsertProject(ctx, p))

	ids = map[string]int64{}
	add := func(name string, parent *int64) int64 {
		task := &model.Task{ProjectID: p.ID, ParentTaskID: parent, Name: name, StartDate: now, EndDate: now}
		require.NoError(t, s.InsertTask(ctx, task))
		ids[name] = task.ID
		return task.ID
	}
	root := add("root", nil)
	child := add("child", &root)
	add("grandchild", &child)
	add("sibling", &root)
	add("other", nil)
	return p.ID, ids
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(r store.Repo) error {
		now := time.Now()
		require.NoError(t, r.InsertProject(ctx, &model.Project{Name: "tmp", StartDate: now, EndDate: now}))
		require.NoError(t, r.EnqueueEvent(ctx, "project", 1, "project.imported", map[string]int{"id": 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
	assert.Empty(t, s.Events())
}

func TestInTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.InTx(ctx, func(r store.Repo) error {
		now := time.Now()
		return r.InsertProject(ctx, &model.Project{Name: "kept", StartDate: now, EndDate: now})
	})
	require.NoError(t, err)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "kept", projects[0].Name)
}

func TestListDescendantIDsDeepestFirst(t *testing.T) {
	s := New()
	_, ids := seedTree(t, s)

	got, err := s.ListDescendantIDs(context.Background(), ids["root"])
	require.NoError(t, err)
	assert.Equal(t, []int64{ids["grandchild"], ids["child"], ids["sibling"]}, got)
}

func TestDeleteTasksCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	projectID, ids := seedTree(t, s)

	e := &model.Employee{NameEn: "A", Email: "a@x"}
	require.NoError(t, s.InsertEmployee(ctx, e))
	_, err := s.InsertAssignment(ctx, &model.TaskAssignment{TaskID: ids["grandchild"], EmployeeID: e.ID})
	require.NoError(t, err)
	_, err = s.InsertDependency(ctx, &model.TaskDependency{PredecessorID: ids["grandchild"], SuccessorID: ids["other"], Type: 1})
	require.NoError(t, err)

	require.NoError(t, s.DeleteTasks(ctx, []int64{ids["child"]}))

	remaining, err := s.ListTasksByProject(ctx, projectID)
	require.NoError(t, err)
	names := []string{}
	for _, task := range remaining {
		names = append(names, task.Name)
	}
	assert.ElementsMatch(t, []string{"root", "sibling", "other"}, names)

	deps, err := s.ListDependenciesByProject(ctx, projectID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestUniqueConstraints(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, ids := seedTree(t, s)

	require.NoError(t, s.InsertEmployee(ctx, &model.Employee{NameEn: "A", Email: "a@x"}))
	err := s.InsertEmployee(ctx, &model.Employee{NameEn: "B", Email: "a@x"})
	assert.ErrorIs(t, err, store.ErrConflict)

	e, err := s.FindEmployeeByEmail(ctx, "a@x")
	require.NoError(t, err)

	inserted, err := s.InsertAssignment(ctx, &model.TaskAssignment{TaskID: ids["root"], EmployeeID: e.ID})
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = s.InsertAssignment(ctx, &model.TaskAssignment{TaskID: ids["root"], EmployeeID: e.ID})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestEnsureEmployee(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := &model.Employee{NameEn: "Jane Doe", Email: "jane.doe@x"}
	created, err := s.EnsureEmployee(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	again := &model.Employee{NameEn: "jane doe", Email: "jane.doe@x"}
	created, err = s.EnsureEmployee(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Jane Doe", again.NameEn)

	boom := errors.New("write failed")
	s.FailOn("EnsureEmployee", boom)
	_, err = s.EnsureEmployee(ctx, &model.Employee{NameEn: "B", Email: "b@x"})
	assert.ErrorIs(t, err, boom)
}
