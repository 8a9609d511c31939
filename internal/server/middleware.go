package server

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/nexus-sync/internal/storage"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const pathCtxKey = contextKey("storePath")

func withPath(ctx context.Context, p storage.Path) context.Context {
	return context.WithValue(ctx, pathCtxKey, p)
}

func pathFrom(ctx context.Context) storage.Path {
	p, _ := ctx.Value(pathCtxKey).(storage.Path)
	return p
}

// requestLogger пишет одну строку zap на запрос.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
