package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"intraportal/pkg/metrics"
)

type queryStartKey struct{}

type queryStart struct {
	at  time.Time
	sql string
}

// SlowQueryTracer 慢查询监控 Tracer，实现 pgx.QueryTracer
type SlowQueryTracer struct {
	logger        *zap.Logger
	slowThreshold time.Duration // 慢查询阈值，默认 100ms
}

// NewSlowQueryTracer 创建慢查询 Tracer
func NewSlowQueryTracer(logger *zap.Logger, slowThreshold time.Duration) *SlowQueryTracer {
	if slowThreshold <= 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &SlowQueryTracer{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// TraceQueryStart 查询开始时的钩子
func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), sql: data.SQL})
}

// TraceQueryEnd 查询结束时的钩子
func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	duration := time.Since(start.at)
	metrics.RecordDBQueryDuration(operationOf(start.sql, data.CommandTag.String()), tableOf(start.sql), duration)
	if duration <= t.slowThreshold {
		return
	}

	// 截断 SQL 语句（避免日志过长）
	sql := strings.Join(strings.Fields(start.sql), " ")
	if len(sql) > 200 {
		sql = sql[:200] + "..."
	}

	t.logger.Warn("slow-query",
		zap.String("sql", sql),
		zap.Duration("took", duration),
		zap.String("command_tag", data.CommandTag.String()),
		zap.Error(data.Err),
	)
	metrics.IncrementSlowQuery()
}

// operationOf 优先取命令标签（CTE 也能得到真实操作），失败的查询退回 SQL 关键字
func operationOf(sql, commandTag string) string {
	if fields := strings.Fields(commandTag); len(fields) > 0 {
		return strings.ToLower(fields[0])
	}

	fields := strings.Fields(strings.ToLower(sql))
	if len(fields) == 0 {
		return "unknown"
	}
	if fields[0] != "with" {
		return fields[0]
	}
	op := "select"
	for _, f := range fields {
		switch f {
		case "insert", "update", "delete":
			op = f
		}
	}
	return op
}

// tableOf 取 FROM / INTO / UPDATE 之后的第一个表名
func tableOf(sql string) string {
	fields := strings.Fields(strings.ToLower(sql))
	for i := 0; i < len(fields)-1; i++ {
		switch fields[i] {
		case "from", "into", "update":
			name := fields[i+1]
			if name == "only" && i+2 < len(fields) {
				name = fields[i+2]
			}
			name = strings.Trim(name, `"(),;`)
			if name == "" || name == "select" {
				continue
			}
			return name
		}
	}
	return "unknown"
}
