package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"hrpay/internal/platform/metrics"
	"hrpay/internal/requestctx"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logger writes one structured line per request and feeds the collector when
// one is given. Handlers get a request-tagged logger through requestctx.Logger.
func Logger(log *zap.Logger, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With(zap.String("requestId", GetRequestID(r.Context())))
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(requestctx.WithLogger(r.Context(), reqLog)))

			duration := time.Since(start)
			if collector != nil {
				collector.Record(recorder.status, duration)
			}

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
				zap.Int64("durationMs", duration.Milliseconds()),
			}
			switch {
			case recorder.status >= 500:
				reqLog.Error("request", fields...)
			case recorder.status >= 400:
				reqLog.Warn("request", fields...)
			default:
				reqLog.Info("request", fields...)
			}
		})
	}
}
