package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"intraportal/internal/model"
	"intraportal/internal/progress"
	"intraportal/internal/store/memstore"
	"intraportal/pkg/mq"
)

type fakeDeduper struct {
	seen      map[string]bool
	forgotten []string
}

func (d *fakeDeduper) AcquireOnce(ctx context.Context, handler, id string) bool {
	k := handler + ":" + id
	if d.seen[k] {
		return false
	}
	d.seen[k] = true
	return true
}

func (d *fakeDeduper) Forget(ctx context.Context, handler, id string) {
	k := handler + ":" + id
	delete(d.seen, k)
	d.forgotten = append(d.forgotten, k)
}

func seedProject(t *testing.T, st *memstore.Store) *model.Project {
	t.Helper()
	ctx := context.Background()
	p := &model.Project{Name: "Office Move"}
	require.NoError(t, st.InsertProject(ctx, p))
	ph := &model.Phase{ProjectID: p.ID, Name: "Plan"}
	require.NoError(t, st.InsertPhase(ctx, ph))
	require.NoError(t, st.InsertTask(ctx, &model.Task{ProjectID: p.ID, PhaseID: &ph.ID, Name: "Survey", Progress: 30}))
	require.NoError(t, st.InsertTask(ctx, &model.Task{ProjectID: p.ID, PhaseID: &ph.ID, Name: "Pack", Progress: 70}))
	return p
}

func payload(t *testing.T, ev model.ProjectImportedEvent) json.RawMessage {
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return raw
}

func TestProjectImportedRecomputes(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	st := memstore.New()
	p := seedProject(t, st)
	dd := &fakeDeduper{seen: map[string]bool{}}
	h := NewProjectImportedHandler(st, progress.NewAggregator(log), dd, log)

	require.NoError(t, h.Handle(ctx, payload(t, model.ProjectImportedEvent{ProjectID: p.ID})))
	got, err := st.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, got.Progress, 1e-9)

	// 重复投递直接跳过
	st.FailOn("UpdateProjectProgress", errors.New("should not be called"))
	require.NoError(t, h.Handle(ctx, payload(t, model.ProjectImportedEvent{ProjectID: p.ID})))
}

func TestProjectImportedErrors(t *testing.T) {
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	st := memstore.New()
	p := seedProject(t, st)
	dd := &fakeDeduper{seen: map[string]bool{}}
	h := NewProjectImportedHandler(st, progress.NewAggregator(log), dd, log)

	err := h.Handle(ctx, json.RawMessage(`{not json`))
	assert.ErrorIs(t, err, mq.ErrPermanent)

	err = h.Handle(ctx, payload(t, model.ProjectImportedEvent{}))
	assert.ErrorIs(t, err, mq.ErrPermanent)

	// 项目已被删除：确认消息，不重试
	assert.NoError(t, h.Handle(ctx, payload(t, model.ProjectImportedEvent{ProjectID: 9999})))

	boom := errors.New("db down")
	st.FailOn("UpdatePhaseProgress", boom)
	err = h.Handle(ctx, payload(t, model.ProjectImportedEvent{ProjectID: p.ID}))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{mq.RoutingKeyProjectImported + ":" + strconv.FormatInt(p.ID, 10)}, dd.forgotten)
}
