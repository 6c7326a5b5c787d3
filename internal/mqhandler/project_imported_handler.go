package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/internal/progress"
	"intraportal/internal/store"
	"intraportal/pkg/logger"
	"intraportal/pkg/mq"
)

// Deduper 消息去重，pkg/dedup.Deduper 满足该接口
type Deduper interface {
	AcquireOnce(ctx context.Context, handler string, id string) bool
	Forget(ctx context.Context, handler string, id string)
}

type ProjectImportedHandler struct {
	store      store.Store
	aggregator *progress.Aggregator
	dedup      Deduper
	logger     *zap.Logger
}

func NewProjectImportedHandler(st store.Store, aggregator *progress.Aggregator, dedup Deduper, logger *zap.Logger) *ProjectImportedHandler {
	return &ProjectImportedHandler{
		store:      st,
		aggregator: aggregator,
		dedup:      dedup,
		logger:     logger,
	}
}

// Handle 导入完成后在 worker 中再做一次全量重算，修正导入与后续编辑之间的竞争
func (h *ProjectImportedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p model.ProjectImportedEvent
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal ProjectImportedEvent", zap.Error(err))
		return fmt.Errorf("%w: %v", mq.ErrPermanent, err)
	}
	if p.ProjectID <= 0 {
		return fmt.Errorf("%w: invalid project_id %d", mq.ErrPermanent, p.ProjectID)
	}

	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int64("project_id", p.ProjectID),
		zap.String("filename", p.Filename),
	)

	key := strconv.FormatInt(p.ProjectID, 10)
	if h.dedup != nil && !h.dedup.AcquireOnce(ctx, mq.RoutingKeyProjectImported, key) {
		log.Info("Duplicate project.imported event skipped")
		return nil
	}

	log.Info("Handling project.imported event", zap.Int("phases", p.Phases), zap.Int("tasks", p.Tasks))

	var result *progress.Result
	err := h.store.InTx(ctx, func(repo store.Repo) error {
		r, err := h.aggregator.RecomputeProject(ctx, repo, p.ProjectID, progress.TriggerEvent)
		result = r
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		log.Info("Project no longer exists, nothing to recompute")
		return nil
	}
	if err != nil {
		log.Error("Failed to recompute project progress", zap.Error(err))
		if h.dedup != nil {
			h.dedup.Forget(ctx, mq.RoutingKeyProjectImported, key)
		}
		return err
	}

	log.Info("Project progress reconciled",
		zap.Float64("progress", result.Progress),
		zap.Int("updated", result.Updated),
	)
	return nil
}
