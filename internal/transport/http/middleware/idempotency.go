package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hrpay/internal/domain/auth"
	"hrpay/internal/transport/http/api"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
	idempotencyLock   = 30 * time.Second
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

func IdempotencyCacheKey(actorID, path, key string) string {
	return "idemp:" + actorID + ":" + path + ":" + key
}

// Idempotency replays the stored response of a POST that already succeeded
// under the same Idempotency-Key, and answers 409 while the first one is
// still in flight. Redis failures degrade to plain pass-through.
func Idempotency(rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if rdb == nil || key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			actorID := "anonymous"
			if actor, ok := auth.ActorFrom(ctx); ok {
				actorID = actor.UserID
			}
			cacheKey := IdempotencyCacheKey(actorID, r.URL.Path, key)
			lockKey := cacheKey + ":lock"

			raw, err := rdb.Get(ctx, cacheKey).Result()
			switch {
			case err == nil:
				var cached cachedResponse
				if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
					if cached.ContentType != "" {
						w.Header().Set("Content-Type", cached.ContentType)
					}
					w.Header().Set(ReplayedHeader, "true")
					w.WriteHeader(cached.Status)
					_, _ = w.Write([]byte(cached.Body))
					return
				}
			case !errors.Is(err, redis.Nil):
				log.Warn("idempotency lookup failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "1", idempotencyLock).Result()
			if err != nil {
				log.Warn("idempotency lock failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				api.Fail(w, http.StatusConflict, "request_in_progress", "a request with this idempotency key is still being processed", GetRequestID(ctx))
				return
			}

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.status >= 200 && capture.status < 300 {
				payload, err := json.Marshal(cachedResponse{
					Status:      capture.status,
					ContentType: capture.Header().Get("Content-Type"),
					Body:        capture.body.String(),
				})
				if err == nil {
					if err := rdb.Set(ctx, cacheKey, string(payload), ttl).Err(); err != nil {
						log.Warn("idempotency store failed", zap.Error(err))
					}
				}
			}
			if err := rdb.Del(ctx, lockKey).Err(); err != nil {
				log.Warn("idempotency unlock failed", zap.Error(err))
			}
		})
	}
}
