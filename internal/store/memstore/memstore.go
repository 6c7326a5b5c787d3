// Package memstore 是 store.Store 的内存实现，用于单元测试和本地演示。
// 事务通过整体快照实现：fn 返回错误时恢复快照。
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"intraportal/internal/model"
	"intraportal/internal/store"
)

// Event 已写入 outbox 的事件
type Event struct {
	AggregateType string
	AggregateID   int64
	RoutingKey    string
	Payload       json.RawMessage
}

type state struct {
	seq         int64
	projects    map[int64]model.Project
	phases      map[int64]model.Phase
	tasks       map[int64]model.Task
	employees   map[int64]model.Employee
	assignments map[int64]model.TaskAssignment
	deps        map[int64]model.TaskDependency
	events      []Event
	failures    map[string]error
}

func newState() *state {
	return &state{
		projects:    map[int64]model.Project{},
		phases:      map[int64]model.Phase{},
		tasks:       map[int64]model.Task{},
		employees:   map[int64]model.Employee{},
		assignments: map[int64]model.TaskAssignment{},
		deps:        map[int64]model.TaskDependency{},
		failures:    map[string]error{},
	}
}

func (s *state) clone() state {
	c := *s
	c.projects = cloneMap(s.projects)
	c.phases = cloneMap(s.phases)
	c.tasks = cloneMap(s.tasks)
	c.employees = cloneMap(s.employees)
	c.assignments = cloneMap(s.assignments)
	c.deps = cloneMap(s.deps)
	c.events = append([]Event(nil), s.events...)
	c.failures = cloneMap(s.failures)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store 并发安全；InTx 期间持有全局锁
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState(), now: time.Now}
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) InTx(ctx context.Context, fn func(store.Repo) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	tx := &Store{mu: s.mu, st: s.st, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

// FailOn 让名为 op 的方法返回 err，err 为 nil 时取消
func (s *Store) FailOn(op string, err error) {
	defer s.lock()()
	if err == nil {
		delete(s.st.failures, op)
		return
	}
	s.st.failures[op] = err
}

func (s *Store) fail(op string) error {
	return s.st.failures[op]
}

// Events 返回已提交的 outbox 事件
func (s *Store) Events() []Event {
	defer s.lock()()
	return append([]Event(nil), s.st.events...)
}

func (s *Store) EnqueueEvent(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	defer s.lock()()
	if err := s.fail("EnqueueEvent"); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.st.events = append(s.st.events, Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       body,
	})
	return nil
}

// ---- projects ----

func (s *Store) InsertProject(ctx context.Context, p *model.Project) error {
	defer s.lock()()
	if err := s.fail("InsertProject"); err != nil {
		return err
	}
	if p.SourceHash != "" {
		for _, existing := range s.st.projects {
			if existing.SourceHash == p.SourceHash {
				return fmt.Errorf("source_hash %s: %w", p.SourceHash, store.ErrConflict)
			}
		}
	}
	p.ID = s.st.nextID()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.st.projects[p.ID] = *p
	return nil
}

func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	defer s.lock()()
	p, ok := s.st.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) LockProject(ctx context.Context, id int64) (*model.Project, error) {
	return s.GetProject(ctx, id)
}

func (s *Store) FindProjectIDByHash(ctx context.Context, hash string) (int64, error) {
	defer s.lock()()
	for id, p := range s.st.projects {
		if p.SourceHash != "" && p.SourceHash == hash {
			return id, nil
		}
	}
	return 0, store.ErrNotFound
}

func (s *Store) ListProjects(ctx context.Context) ([]model.Project, error) {
	defer s.lock()()
	out := make([]model.Project, 0, len(s.st.projects))
	for _, p := range s.st.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) UpdateProjectProgress(ctx context.Context, id int64, progress float64) error {
	defer s.lock()()
	if err := s.fail("UpdateProjectProgress"); err != nil {
		return err
	}
	p, ok := s.st.projects[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Progress = progress
	p.UpdatedAt = s.now()
	s.st.projects[id] = p
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	defer s.lock()()
	if _, ok := s.st.projects[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.st.projects, id)
	for phID, ph := range s.st.phases {
		if ph.ProjectID == id {
			delete(s.st.phases, phID)
		}
	}
	var taskIDs []int64
	for tID, t := range s.st.tasks {
		if t.ProjectID == id {
			taskIDs = append(taskIDs, tID)
		}
	}
	s.deleteTasks(taskIDs)
	return nil
}

// ---- phases ----

func (s *Store) InsertPhase(ctx context.Context, ph *model.Phase) error {
	defer s.lock()()
	if err := s.fail("InsertPhase"); err != nil {
		return err
	}
	if _, ok := s.st.projects[ph.ProjectID]; !ok {
		return fmt.Errorf("phase project %d: %w", ph.ProjectID, store.ErrNotFound)
	}
	ph.ID = s.st.nextID()
	ph.CreatedAt = s.now()
	ph.UpdatedAt = ph.CreatedAt
	s.st.phases[ph.ID] = *ph
	return nil
}

func (s *Store) GetPhase(ctx context.Context, id int64) (*model.Phase, error) {
	defer s.lock()()
	ph, ok := s.st.phases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ph, nil
}

func (s *Store) ListPhasesByProject(ctx context.Context, projectID int64) ([]model.Phase, error) {
	defer s.lock()()
	out := []model.Phase{}
	for _, ph := range s.st.phases {
		if ph.ProjectID == projectID {
			out = append(out, ph)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdatePhaseProgress(ctx context.Context, id int64, progress float64) error {
	defer s.lock()()
	if err := s.fail("UpdatePhaseProgress"); err != nil {
		return err
	}
	ph, ok := s.st.phases[id]
	if !ok {
		return store.ErrNotFound
	}
	ph.Progress = progress
	ph.UpdatedAt = s.now()
	s.st.phases[id] = ph
	return nil
}

// ---- tasks ----

func (s *Store) InsertTask(ctx context.Context, t *model.Task) error {
	defer s.lock()()
	if err := s.fail("InsertTask"); err != nil {
		return err
	}
	if _, ok := s.st.projects[t.ProjectID]; !ok {
		return fmt.Errorf("task project %d: %w", t.ProjectID, store.ErrNotFound)
	}
	if t.PhaseID != nil {
		if _, ok := s.st.phases[*t.PhaseID]; !ok {
			return fmt.Errorf("task phase %d: %w", *t.PhaseID, store.ErrNotFound)
		}
	}
	if t.ParentTaskID != nil {
		if _, ok := s.st.tasks[*t.ParentTaskID]; !ok {
			return fmt.Errorf("task parent %d: %w", *t.ParentTaskID, store.ErrNotFound)
		}
	}
	t.ID = s.st.nextID()
	t.CreatedAt = s.now()
	t.UpdatedAt = t.CreatedAt
	s.st.tasks[t.ID] = *t
	return nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	defer s.lock()()
	t, ok := s.st.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTasksByProject(ctx context.Context, projectID int64) ([]model.Task, error) {
	defer s.lock()()
	return s.filterTasks(func(t model.Task) bool { return t.ProjectID == projectID }), nil
}

func (s *Store) ListSubtasks(ctx context.Context, parentID int64) ([]model.Task, error) {
	defer s.lock()()
	return s.filterTasks(func(t model.Task) bool {
		return t.ParentTaskID != nil && *t.ParentTaskID == parentID
	}), nil
}

func (s *Store) filterTasks(keep func(model.Task) bool) []model.Task {
	out := []model.Task{}
	for _, t := range s.st.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListDescendantIDs(ctx context.Context, id int64) ([]int64, error) {
	defer s.lock()()
	return s.descendants(id), nil
}

// descendants 广度优先收集后代，返回时最深的在前
func (s *Store) descendants(id int64) []int64 {
	type item struct {
		id    int64
		depth int
	}
	var found []item
	seen := map[int64]bool{id: true}
	frontier := []int64{id}
	for depth := 1; len(frontier) > 0; depth++ {
		var next []int64
		for _, t := range s.st.tasks {
			if t.ParentTaskID == nil || seen[t.ID] {
				continue
			}
			for _, p := range frontier {
				if *t.ParentTaskID == p {
					seen[t.ID] = true
					next = append(next, t.ID)
					found = append(found, item{t.ID, depth})
					break
				}
			}
		}
		frontier = next
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].depth != found[j].depth {
			return found[i].depth > found[j].depth
		}
		return found[i].id < found[j].id
	})
	out := make([]int64, len(found))
	for i, f := range found {
		out[i] = f.id
	}
	return out
}

func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	defer s.lock()()
	if err := s.fail("UpdateTask"); err != nil {
		return err
	}
	if _, ok := s.st.tasks[t.ID]; !ok {
		return store.ErrNotFound
	}
	t.UpdatedAt = s.now()
	s.st.tasks[t.ID] = *t
	return nil
}

func (s *Store) UpdateTaskProgress(ctx context.Context, id int64, progress float64) error {
	defer s.lock()()
	if err := s.fail("UpdateTaskProgress"); err != nil {
		return err
	}
	t, ok := s.st.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Progress = progress
	t.UpdatedAt = s.now()
	s.st.tasks[id] = t
	return nil
}

func (s *Store) DeleteTasks(ctx context.Context, ids []int64) error {
	defer s.lock()()
	if err := s.fail("DeleteTasks"); err != nil {
		return err
	}
	s.deleteTasks(ids)
	return nil
}

// deleteTasks 模拟外键级联：子任务、分配和依赖一并删除
func (s *Store) deleteTasks(ids []int64) {
	all := map[int64]bool{}
	for _, id := range ids {
		all[id] = true
		for _, d := range s.descendants(id) {
			all[d] = true
		}
	}
	for id := range all {
		delete(s.st.tasks, id)
	}
	for aID, a := range s.st.assignments {
		if all[a.TaskID] {
			delete(s.st.assignments, aID)
		}
	}
	for dID, d := range s.st.deps {
		if all[d.PredecessorID] || all[d.SuccessorID] {
			delete(s.st.deps, dID)
		}
	}
}

// ---- employees ----

func (s *Store) FindEmployeeByEmail(ctx context.Context, email string) (*model.Employee, error) {
	defer s.lock()()
	for _, e := range s.st.employees {
		if e.Email == email {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) InsertEmployee(ctx context.Context, e *model.Employee) error {
	defer s.lock()()
	if err := s.fail("InsertEmployee"); err != nil {
		return err
	}
	for _, existing := range s.st.employees {
		if existing.Email == e.Email {
			return fmt.Errorf("email %s: %w", e.Email, store.ErrConflict)
		}
	}
	e.ID = s.st.nextID()
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt
	s.st.employees[e.ID] = *e
	return nil
}

func (s *Store) EnsureEmployee(ctx context.Context, e *model.Employee) (bool, error) {
	defer s.lock()()
	if err := s.fail("EnsureEmployee"); err != nil {
		return false, err
	}
	for _, existing := range s.st.employees {
		if existing.Email == e.Email {
			*e = existing
			return false, nil
		}
	}
	e.ID = s.st.nextID()
	e.CreatedAt = s.now()
	e.UpdatedAt = e.CreatedAt
	s.st.employees[e.ID] = *e
	return true, nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (*model.Employee, error) {
	defer s.lock()()
	e, ok := s.st.employees[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]model.Employee, error) {
	defer s.lock()()
	out := make([]model.Employee, 0, len(s.st.employees))
	for _, e := range s.st.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NameEn != out[j].NameEn {
			return out[i].NameEn < out[j].NameEn
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ---- assignments ----

func (s *Store) InsertAssignment(ctx context.Context, a *model.TaskAssignment) (bool, error) {
	defer s.lock()()
	if err := s.fail("InsertAssignment"); err != nil {
		return false, err
	}
	if _, ok := s.st.tasks[a.TaskID]; !ok {
		return false, fmt.Errorf("assignment task %d: %w", a.TaskID, store.ErrNotFound)
	}
	if _, ok := s.st.employees[a.EmployeeID]; !ok {
		return false, fmt.Errorf("assignment employee %d: %w", a.EmployeeID, store.ErrNotFound)
	}
	for _, existing := range s.st.assignments {
		if existing.TaskID == a.TaskID && existing.EmployeeID == a.EmployeeID {
			return false, nil
		}
	}
	a.ID = s.st.nextID()
	a.CreatedAt = s.now()
	stored := *a
	stored.Employee = nil
	s.st.assignments[a.ID] = stored
	return true, nil
}

func (s *Store) ListAssignmentsByTask(ctx context.Context, taskID int64) ([]model.TaskAssignment, error) {
	defer s.lock()()
	out := []model.TaskAssignment{}
	for _, a := range s.st.assignments {
		if a.TaskID != taskID {
			continue
		}
		if e, ok := s.st.employees[a.EmployeeID]; ok {
			a.Employee = &e
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteAssignmentsByTasks(ctx context.Context, taskIDs []int64) error {
	defer s.lock()()
	set := toSet(taskIDs)
	for id, a := range s.st.assignments {
		if set[a.TaskID] {
			delete(s.st.assignments, id)
		}
	}
	return nil
}

// ---- dependencies ----

func (s *Store) InsertDependency(ctx context.Context, d *model.TaskDependency) (bool, error) {
	defer s.lock()()
	if err := s.fail("InsertDependency"); err != nil {
		return false, err
	}
	for _, existing := range s.st.deps {
		if existing.PredecessorID == d.PredecessorID && existing.SuccessorID == d.SuccessorID {
			return false, nil
		}
	}
	d.ID = s.st.nextID()
	s.st.deps[d.ID] = *d
	return true, nil
}

func (s *Store) ListDependenciesByProject(ctx context.Context, projectID int64) ([]model.TaskDependency, error) {
	defer s.lock()()
	out := []model.TaskDependency{}
	for _, d := range s.st.deps {
		if t, ok := s.st.tasks[d.SuccessorID]; ok && t.ProjectID == projectID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteDependenciesByTasks(ctx context.Context, taskIDs []int64) error {
	defer s.lock()()
	set := toSet(taskIDs)
	for id, d := range s.st.deps {
		if set[d.PredecessorID] || set[d.SuccessorID] {
			delete(s.st.deps, id)
		}
	}
	return nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
