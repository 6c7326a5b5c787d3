package trace

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type ctxKey struct{}

// HeaderName trace ID 的 HTTP header 名称
const HeaderName = "X-Trace-ID"

// GenerateTraceID 生成一个新的 trace ID（32 位十六进制）
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FromContext 从 context 中获取 trace_id
func FromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(ctxKey{}).(string); ok {
		return traceID
	}
	return ""
}

// WithContext 将 trace_id 添加到 context 中
func WithContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// FromHeader 从请求头取 trace_id，没有则生成新的
func FromHeader(headerValue string) string {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue != "" && len(headerValue) <= 128 {
		return headerValue
	}
	return GenerateTraceID()
}
