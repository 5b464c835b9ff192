package service

import (
	"context"
	"log"

	"github.com/nirmalarya/autograph-sub003/internal/api/http/middleware"
)

// Logger tags every line with the request id so server logs can be
// correlated with the client that triggered the write.
type Logger struct {
	requestID string
}

func NewLogger(ctx context.Context) *Logger {
	rid := middleware.GetRequestID(ctx)
	if rid == "" {
		rid = "unknown"
	}
	return &Logger{requestID: rid}
}

func (l *Logger) Infof(operation, format string, args ...any) {
	log.Printf("[info] request_id=%s operation=%s "+format,
		append([]any{l.requestID, operation}, args...)...)
}

func (l *Logger) Warnf(operation, format string, args ...any) {
	log.Printf("[warn] request_id=%s operation=%s "+format,
		append([]any{l.requestID, operation}, args...)...)
}

func (l *Logger) Error(operation string, err error) {
	log.Printf("[error] request_id=%s operation=%s error=%v", l.requestID, operation, err)
}
