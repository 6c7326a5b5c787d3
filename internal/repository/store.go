package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"intraportal/internal/store"
	"intraportal/pkg/outbox"
)

// DBTX 由 *pgxpool.Pool 和 pgx.Tx 共同实现
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store 组合各实体仓库，实现 store.Store
type Store struct {
	*ProjectRepository
	*PhaseRepository
	*TaskRepository
	*EmployeeRepository
	*AssignmentRepository
	*DependencyRepository

	pool   *pgxpool.Pool
	tx     pgx.Tx
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return newStore(pool, pool, nil, logger)
}

func newStore(pool *pgxpool.Pool, db DBTX, tx pgx.Tx, logger *zap.Logger) *Store {
	return &Store{
		ProjectRepository:    &ProjectRepository{db: db, logger: logger},
		PhaseRepository:      &PhaseRepository{db: db, logger: logger},
		TaskRepository:       &TaskRepository{db: db, logger: logger},
		EmployeeRepository:   &EmployeeRepository{db: db, logger: logger},
		AssignmentRepository: &AssignmentRepository{db: db, logger: logger},
		DependencyRepository: &DependencyRepository{db: db, logger: logger},
		pool:                 pool,
		tx:                   tx,
		logger:               logger,
	}
}

// InTx 开启事务执行 fn；已在事务中时直接复用当前事务
func (s *Store) InTx(ctx context.Context, fn func(store.Repo) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(newStore(s.pool, tx, tx, s.logger)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnqueueEvent 在当前事务中写入 outbox 事件
func (s *Store) EnqueueEvent(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	if s.tx == nil {
		return errors.New("outbox events must be written inside a transaction")
	}
	event, err := outbox.NewEvent(aggregateType, aggregateID, routingKey, payload)
	if err != nil {
		return err
	}
	if err := outbox.InsertEvent(ctx, s.tx, event); err != nil {
		s.logger.Error("Failed to enqueue outbox event",
			zap.String("routing_key", routingKey),
			zap.Int64("aggregate_id", aggregateID),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("Outbox event enqueued",
		zap.Int64("event_id", event.ID),
		zap.String("routing_key", routingKey),
	)
	return nil
}

// mapError 把 pgx 错误转换为 store 的哨兵错误
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, store.ErrConflict)
	}
	return err
}

// notFoundIfNone 更新或删除没有命中任何行时返回 ErrNotFound
func notFoundIfNone(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
