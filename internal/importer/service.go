package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"intraportal/internal/model"
	"intraportal/internal/msproject"
	"intraportal/internal/progress"
	"intraportal/internal/store"
	"intraportal/pkg/logger"
	"intraportal/pkg/metrics"
	"intraportal/pkg/mq"
	"intraportal/pkg/trace"
)

// Locker 防止同一文件被并发导入，pkg/lock.Locker 满足该接口
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error)
	Release(ctx context.Context, key, token string) error
}

type Config struct {
	EmailDomain string
	LockTTL     time.Duration
}

// Upload 上传的原始文件
type Upload struct {
	Filename string
	Data     []byte
}

type Service struct {
	store      store.Store
	aggregator *progress.Aggregator
	locker     Locker
	cfg        Config
	logger     *zap.Logger
}

// NewService locker 可以为 nil，此时不做并发保护
func NewService(st store.Store, aggregator *progress.Aggregator, locker Locker, cfg Config, logger *zap.Logger) *Service {
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = DefaultEmailDomain
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Service{
		store:      st,
		aggregator: aggregator,
		locker:     locker,
		cfg:        cfg,
		logger:     logger,
	}
}

// Import 解析 MS Project XML 并在一个事务中创建项目、阶段、任务、员工、分配和依赖
func (s *Service) Import(ctx context.Context, up Upload) (result *Result, err error) {
	start := time.Now()
	outcome := "failed"
	defer func() { metrics.RecordImport(outcome, time.Since(start)) }()

	log := logger.WithTrace(ctx, s.logger).With(zap.String("filename", up.Filename))

	if err := validateUpload(up); err != nil {
		outcome = "invalid"
		log.Warn("Rejected upload", zap.Error(err))
		return nil, err
	}

	sum := sha256.Sum256(up.Data)
	hash := hex.EncodeToString(sum[:])
	log = log.With(zap.String("source_hash", hash[:12]))

	release, err := s.acquire(ctx, hash, log)
	if err != nil {
		outcome = "in_progress"
		return nil, err
	}
	defer release()

	doc, err := msproject.Decode(bytes.NewReader(up.Data))
	if err != nil {
		outcome = "invalid"
		log.Warn("Failed to decode XML", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	log.Info("Importing project XML",
		zap.Int("tasks", len(doc.Tasks)),
		zap.Int("resources", len(doc.Resources)),
		zap.Int("assignments", len(doc.Assignments)),
	)

	err = s.store.InTx(ctx, func(repo store.Repo) error {
		r, err := s.importDocument(ctx, repo, doc, up.Filename, hash, log)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateImport) {
			outcome = "duplicate"
		}
		log.Error("Import failed, rolled back", zap.Error(err))
		return nil, err
	}

	outcome = "success"
	metrics.AddImportedRecords("phase", result.Phases)
	metrics.AddImportedRecords("task", result.Tasks)
	metrics.AddImportedRecords("employee", result.EmployeesCreated)
	metrics.AddImportedRecords("assignment", result.Assignments)
	metrics.AddImportedRecords("dependency", result.Dependencies)

	log.Info("Project imported",
		zap.Int64("project_id", result.ProjectID),
		zap.Int("phases", result.Phases),
		zap.Int("tasks", result.Tasks),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (s *Service) importDocument(ctx context.Context, repo store.Repo, doc *msproject.Document, filename, hash string, log *zap.Logger) (*Result, error) {
	existing, err := repo.FindProjectIDByHash(ctx, hash)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: project %d", ErrDuplicateImport, existing)
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	now := time.Now().UTC()
	startDate := msproject.ParseDate(doc.StartDate, now)
	project := &model.Project{
		Name:            doc.ProjectName(strings.TrimSuffix(filename, filepath.Ext(filename))),
		StartDate:       startDate,
		EndDate:         msproject.ParseDate(doc.FinishDate, startDate),
		Status:          model.ProjectStatusActive,
		ImportedFromXML: true,
		SourceFilename:  filename,
		SourceHash:      hash,
	}
	if err := repo.InsertProject(ctx, project); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateImport, err)
		}
		return nil, err
	}

	sess := newSession(repo, log.With(zap.Int64("project_id", project.ID)), s.cfg.EmailDomain, project)
	if err := sess.buildHierarchy(ctx, doc.Tasks); err != nil {
		return nil, fmt.Errorf("build hierarchy: %w", err)
	}
	if err := sess.resolveResources(ctx, doc.Resources); err != nil {
		return nil, fmt.Errorf("resolve resources: %w", err)
	}
	if err := sess.resolveAssignments(ctx, doc.Assignments); err != nil {
		return nil, fmt.Errorf("resolve assignments: %w", err)
	}
	if err := sess.resolveDependencies(ctx, doc.Tasks); err != nil {
		return nil, fmt.Errorf("resolve dependencies: %w", err)
	}

	recomputed, err := s.aggregator.RecomputeProject(ctx, repo, project.ID, progress.TriggerImport)
	if err != nil {
		return nil, err
	}
	sess.result.Progress = recomputed.Progress

	if err := sess.syncStatuses(ctx); err != nil {
		return nil, fmt.Errorf("sync task statuses: %w", err)
	}

	event := model.ProjectImportedEvent{
		ProjectID: project.ID,
		Filename:  filename,
		Phases:    sess.result.Phases,
		Tasks:     sess.result.Tasks,
		TraceID:   trace.FromContext(ctx),
	}
	if err := repo.EnqueueEvent(ctx, "project", project.ID, mq.RoutingKeyProjectImported, event); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", mq.RoutingKeyProjectImported, err)
	}

	return &sess.result, nil
}

// acquire Redis 不可用时放行，只记录警告
func (s *Service) acquire(ctx context.Context, hash string, log *zap.Logger) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	key := "import:" + hash
	token, ok, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		log.Warn("Import lock unavailable, continuing without it", zap.Error(err))
		return noop, nil
	}
	if !ok {
		log.Warn("Import of the same file already running")
		return nil, ErrImportInProgress
	}

	return func() {
		// 请求可能已取消，释放锁不受影响
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := s.locker.Release(relCtx, key, token); err != nil {
			log.Warn("Failed to release import lock", zap.Error(err))
		}
	}, nil
}

func validateUpload(up Upload) error {
	if len(up.Data) == 0 {
		return fmt.Errorf("%w: no file uploaded", ErrInvalidUpload)
	}
	if !strings.EqualFold(filepath.Ext(up.Filename), ".xml") {
		return fmt.Errorf("%w: file must be an XML file", ErrInvalidUpload)
	}
	return nil
}
