package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"intraportal/pkg/circuitbreaker"
	"intraportal/pkg/metrics"
	"intraportal/pkg/trace"
)

// Publisher 由 *mq.Publisher 实现
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, body json.RawMessage) error
}

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	pool       *pgxpool.Pool
	repo       *Repository
	publisher  Publisher
	breaker    *circuitbreaker.Breaker
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

// NewDispatcher 创建新的 Dispatcher
func NewDispatcher(pool *pgxpool.Pool, publisher Publisher, logger *zap.Logger) *Dispatcher {
	cbCfg := circuitbreaker.DefaultConfig()
	cbCfg.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Outbox publisher circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Dispatcher{
		pool:       pool,
		repo:       NewRepository(pool),
		publisher:  publisher,
		breaker:    circuitbreaker.New(cbCfg),
		logger:     logger,
		maxRetries: 5,
		interval:   time.Second,
		batchSize:  100,
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// Repository 返回底层仓库（用于重放失败事件）
func (d *Dispatcher) Repository() *Repository {
	return d.repo
}

// Start 阻塞运行，直到 ctx 取消
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox Dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.dispatchBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("Outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

// dispatchBatch 在一个事务内认领并发布一批事件
func (d *Dispatcher) dispatchBatch(ctx context.Context) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	events, err := d.repo.ClaimPending(ctx, tx, d.batchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	for _, event := range events {
		pubCtx := trace.WithContext(ctx, traceIDOf(event.Payload))
		err := d.breaker.Execute(func() error {
			return d.publisher.PublishWithContext(pubCtx, event.RoutingKey, event.Payload)
		})
		if err != nil {
			status := "failed"
			if errors.Is(err, circuitbreaker.ErrOpen) {
				status = "breaker_open"
			}
			metrics.IncrementOutboxPublished(event.RoutingKey, status)
			d.logger.Error("Failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("routing_key", event.RoutingKey),
				zap.Error(err),
			)
			if err := d.repo.MarkAsFailed(ctx, tx, event, d.maxRetries); err != nil {
				return err
			}
			continue
		}

		metrics.IncrementOutboxPublished(event.RoutingKey, "sent")
		if err := d.repo.MarkAsSent(ctx, tx, event.ID); err != nil {
			return err
		}
		d.logger.Debug("Event published successfully",
			zap.Int64("event_id", event.ID),
			zap.String("routing_key", event.RoutingKey),
		)
	}

	return tx.Commit(ctx)
}

// traceIDOf 从 payload 中提取 trace_id（如果存在）
func traceIDOf(payload json.RawMessage) string {
	var envelope struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.TraceID
}
