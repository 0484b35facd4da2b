package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type requestUserKey struct{}

// requestUser is filled in by AuthMiddleware further down the chain so the
// request log line can name the caller.
type requestUser struct {
	id int64
}

// recordRequestUser stores the authenticated user for the request log line
func recordRequestUser(ctx context.Context, userID int64) {
	if u, ok := ctx.Value(requestUserKey{}).(*requestUser); ok {
		u.id = userID
	}
}

// LoggingMiddleware writes one structured line per request. Server errors
// log at error level and client errors at warn.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			user := &requestUser{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestUserKey{}, user)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			level := zapcore.InfoLevel
			switch {
			case status >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			case status >= http.StatusBadRequest:
				level = zapcore.WarnLevel
			}

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if user.id > 0 {
				fields = append(fields, zap.Int64("user_id", user.id))
			}

			logger.Log(level, "Request completed", fields...)
		})
	}
}
