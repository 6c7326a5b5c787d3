package logger

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"intraportal/pkg/trace"
)

var Log *zap.Logger

// NewLogger 创建 zap logger
// mode: production（默认，JSON 输出）或 development（彩色控制台输出）
// level: debug / info / warn / error，为空时 production 使用 info
func NewLogger(mode, level string) *zap.Logger {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "dev", "development", "local":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = l
	return l
}

// WithTrace 从 context 中提取 trace_id 并添加到 logger
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := trace.FromContext(ctx)
	if traceID != "" {
		return logger.With(zap.String("trace_id", traceID))
	}
	return logger
}
