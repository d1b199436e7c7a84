package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	pendingTTL   = 60 * time.Second
	maxClockSkew = 10 * time.Minute
	storeTimeout = 2 * time.Second
)

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// Idempotency deduplicates mutating requests by Ax-Request-Id. The key is
// method + route + actor user id + request id, so it must run after Auth.
// Server errors are not stored and the client may retry them.
type Idempotency struct {
	store responseStore
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

func NewIdempotency(rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *Idempotency {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Idempotency{
		store: responseStore{rdb: rdb, pendingTTL: pendingTTL},
		ttl:   ttl,
		log:   logger,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Idempotency) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			actor, ok := ActorFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing identity"})
			}
			meta, err := readRequestMeta(req.Header, m.now(), maxClockSkew)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bodySum := digest(body)

			key := responseKey(req.Method, c.Path(), actor.UserID, meta.ID)
			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()

			reserved, err := m.store.reserve(ctx, key, storedResponse{
				Pending:    true,
				BodySHA256: bodySum,
				RequestID:  meta.ID,
				RequestAt:  meta.At,
				StoredAt:   m.now(),
			})
			if err != nil {
				m.log.Error("idempotency store unavailable", zap.String("key", key), zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !reserved {
				return m.answerDuplicate(ctx, c, key, bodySum)
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}
			m.record(key, meta, bodySum, rec)
			return nil
		}
	}
}

func (m *Idempotency) answerDuplicate(ctx context.Context, c echo.Context, key, bodySum string) error {
	cur, err := m.store.load(ctx, key)
	if err != nil {
		m.log.Warn("failed to load idempotency entry", zap.String("key", key), zap.Error(err))
	}
	switch {
	case cur.BodySHA256 != "" && cur.BodySHA256 != bodySum:
		return c.JSON(http.StatusConflict, map[string]string{"error": "Ax-Request-Id reused with different body"})
	case cur.replayable():
		c.Response().Header().Set(headerReplay, "true")
		return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
	default:
		return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
	}
}

// record runs after the handler; the request context may already be gone.
func (m *Idempotency) record(key string, meta requestMeta, bodySum string, rec *respRecorder) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if rec.code >= http.StatusInternalServerError {
		if err := m.store.release(ctx, key); err != nil {
			m.log.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
		}
		return
	}
	final := storedResponse{
		Code:       rec.code,
		Body:       rec.buf.Bytes(),
		BodySHA256: bodySum,
		RequestID:  meta.ID,
		RequestAt:  meta.At,
		StoredAt:   m.now(),
	}
	if err := m.store.finish(ctx, key, final, m.ttl); err != nil {
		m.log.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
	}
}
