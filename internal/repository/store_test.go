package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"intraportal/internal/model"
	"intraportal/internal/store"
	"intraportal/pkg/db"
)

var errRollback = errors.New("rollback test transaction")

var (
	poolOnce sync.Once
	pool     *pgxpool.Pool
	poolErr  error
)

// testPool 返回迁移过的连接池，未设置 TEST_POSTGRES_DSN 时跳过
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run repository integration tests")
	}

	logger := zaptest.NewLogger(t)
	poolOnce.Do(func() {
		ctx := context.Background()
		pool, poolErr = pgxpool.New(ctx, dsn)
		if poolErr != nil {
			return
		}
		poolErr = db.Migrate(ctx, pool, logger)
	})
	require.NoError(t, poolErr)
	return pool
}

// withTx 在一个最终回滚的事务中运行测试
func withTx(t *testing.T, fn func(ctx context.Context, r store.Repo)) {
	t.Helper()
	p := testPool(t)

	ctx := context.Background()
	err := NewStore(p, zaptest.NewLogger(t)).InTx(ctx, func(r store.Repo) error {
		fn(ctx, r)
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)
}

func insertProject(t *testing.T, ctx context.Context, r store.Repo, hash string) *model.Project {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	p := &model.Project{
		Name:            "Imported",
		StartDate:       now,
		EndDate:         now.AddDate(0, 1, 0),
		Status:          model.ProjectStatusActive,
		ImportedFromXML: true,
		SourceFilename:  "plan.xml",
		SourceHash:      hash,
	}
	require.NoError(t, r.InsertProject(ctx, p))
	return p
}

func TestProjectHashIsUnique(t *testing.T) {
	withTx(t, func(ctx context.Context, r store.Repo) {
		p := insertProject(t, ctx, r, "hash-unique-test")

		id, err := r.FindProjectIDByHash(ctx, "hash-unique-test")
		require.NoError(t, err)
		assert.Equal(t, p.ID, id)

		_, err = r.FindProjectIDByHash(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestTaskTreeAndCascade(t *testing.T) {
	withTx(t, func(ctx context.Context, r store.Repo) {
		p := insertProject(t, ctx, r, "")
		ph := &model.Phase{ProjectID: p.ID, Name: "Phase", StartDate: p.StartDate, EndDate: p.EndDate, Order: 1}
		require.NoError(t, r.InsertPhase(ctx, ph))

		parent := &model.Task{ProjectID: p.ID, PhaseID: &ph.ID, Name: "Parent", Status: model.TaskStatusPending,
			StartDate: p.StartDate, EndDate: p.EndDate, OutlineLevel: 2, XMLUID: "2"}
		require.NoError(t, r.InsertTask(ctx, parent))
		child := &model.Task{ProjectID: p.ID, ParentTaskID: &parent.ID, Name: "Child", Status: model.TaskStatusPending,
			StartDate: p.StartDate, EndDate: p.EndDate, OutlineLevel: 3, XMLUID: "3"}
		require.NoError(t, r.InsertTask(ctx, child))

		e := &model.Employee{NameEn: "Jane Doe", Email: "jane.doe@repo-test.local"}
		require.NoError(t, r.InsertEmployee(ctx, e))

		ok, err := r.InsertAssignment(ctx, &model.TaskAssignment{TaskID: child.ID, EmployeeID: e.ID, Units: 100, Role: "member"})
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = r.InsertAssignment(ctx, &model.TaskAssignment{TaskID: child.ID, EmployeeID: e.ID, Units: 50, Role: "member"})
		require.NoError(t, err)
		assert.False(t, ok)

		assignments, err := r.ListAssignmentsByTask(ctx, child.ID)
		require.NoError(t, err)
		require.Len(t, assignments, 1)
		assert.Equal(t, "jane.doe@repo-test.local", assignments[0].Employee.Email)

		ids, err := r.ListDescendantIDs(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []int64{child.ID}, ids)

		require.NoError(t, r.DeleteTasks(ctx, []int64{parent.ID}))
		_, err = r.GetTask(ctx, child.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestLockProjectAndProgress(t *testing.T) {
	withTx(t, func(ctx context.Context, r store.Repo) {
		p := insertProject(t, ctx, r, "")

		locked, err := r.LockProject(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, locked.ID)

		require.NoError(t, r.UpdateProjectProgress(ctx, p.ID, 42.5))
		got, err := r.GetProject(ctx, p.ID)
		require.NoError(t, err)
		assert.InDelta(t, 42.5, got.Progress, 1e-9)

		assert.ErrorIs(t, r.UpdateProjectProgress(ctx, -1, 1), store.ErrNotFound)
	})
}

func TestEnqueueEventRequiresTx(t *testing.T) {
	s := &Store{}
	err := s.EnqueueEvent(context.Background(), "project", 1, "project.imported", nil)
	assert.Error(t, err)
}

func TestEnsureEmployeeReusesByEmail(t *testing.T) {
	withTx(t, func(ctx context.Context, r store.Repo) {
		first := &model.Employee{NameEn: "Jane Doe", Email: "jane.doe@ensure-test.local"}
		created, err := r.EnsureEmployee(ctx, first)
		require.NoError(t, err)
		assert.True(t, created)

		second := &model.Employee{NameEn: "jane doe", Email: "jane.doe@ensure-test.local"}
		created, err = r.EnsureEmployee(ctx, second)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Jane Doe", second.NameEn)
	})
}

// 两个导入事务同时创建同一员工：后到的等待先到的提交，然后复用同一行
func TestEnsureEmployeeConcurrentTransactions(t *testing.T) {
	p := testPool(t)
	ctx := context.Background()
	st := NewStore(p, zaptest.NewLogger(t))
	const email = "ali.hassan@ensure-race.local"
	t.Cleanup(func() {
		_, _ = p.Exec(context.Background(), `DELETE FROM employees WHERE email = $1`, email)
	})

	firstInserted := make(chan struct{})
	releaseFirst := make(chan struct{})
	var firstID int64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := st.InTx(ctx, func(r store.Repo) error {
			e := &model.Employee{NameEn: "Ali Hassan", Email: email}
			created, err := r.EnsureEmployee(ctx, e)
			if err != nil {
				return err
			}
			if !created {
				return errors.New("first transaction should create the employee")
			}
			firstID = e.ID
			close(firstInserted)
			<-releaseFirst
			return nil
		})
		assert.NoError(t, err)
	}()

	<-firstInserted
	var (
		second  model.Employee
		created bool
	)
	done := make(chan error, 1)
	go func() {
		done <- st.InTx(ctx, func(r store.Repo) error {
			second = model.Employee{NameEn: "Ali Hassan", Email: email}
			var err error
			created, err = r.EnsureEmployee(ctx, &second)
			return err
		})
	}()

	// 第二个事务阻塞在唯一索引上
	select {
	case err := <-done:
		t.Fatalf("second transaction finished before the first committed: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	close(releaseFirst)
	wg.Wait()

	require.NoError(t, <-done)
	assert.False(t, created)
	assert.Equal(t, firstID, second.ID)
}
