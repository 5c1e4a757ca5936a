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
	// how long an in-flight reservation blocks retries of the same request id
	provisionalLockTTL = 60 * time.Second
	// allowed client/server clock skew for Ax-Request-At
	maxClockSkew = 10 * time.Minute
)

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	RequestID   string    `json:"request_id"`
	Account     string    `json:"account"`
	RequestAtMS int64     `json:"request_at_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// teeWriter copies the handler's response so it can be replayed.
type teeWriter struct {
	http.ResponseWriter
	buf  bytes.Buffer
	code int
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *teeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func jsonError(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// IdempotencyMiddleware makes ledger mutations safe to retry. The key is
// method + route + account + Ax-Request-Id; a retry with the same body
// replays the stored response and never reaches the ledger, a retry with a
// different body is refused.
func IdempotencyMiddleware(rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	store := idempStore{rdb: rdb}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			hdr, err := parseHeaders(req.Header, nowUTC())
			if err != nil {
				return jsonError(c, http.StatusBadRequest, err.Error())
			}

			var body []byte
			if req.Body != nil {
				if body, err = io.ReadAll(req.Body); err != nil {
					return jsonError(c, http.StatusBadRequest, "unreadable body")
				}
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bhash := bodyHash(body)

			key := buildKey(req.Method, c.Path(), hdr.account, hdr.requestID)
			entry := idempEntry{
				InProgress:  true,
				BodySHA256:  bhash,
				RequestID:   hdr.requestID,
				Account:     hdr.account.Hex(),
				RequestAtMS: hdr.at.UnixMilli(),
				CreatedAt:   nowUTC(),
			}

			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			fresh, err := store.reserve(ctx, key, entry)
			if err != nil {
				log.Error("idempotency reserve failed", zap.String("key", key), zap.Error(err))
				return jsonError(c, http.StatusServiceUnavailable, "idempotency store unavailable")
			}
			if !fresh {
				cur, err := store.load(ctx, key)
				if err != nil {
					log.Warn("idempotency entry load failed", zap.String("key", key), zap.Error(err))
				}
				switch {
				case cur.BodySHA256 != "" && cur.BodySHA256 != bhash:
					return jsonError(c, http.StatusConflict, HeaderRequestID+" reused with different body")
				case !cur.InProgress && cur.Code != 0:
					log.Debug("idempotent replay", zap.String("key", key), zap.Int("code", cur.Code))
					return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
				}
				return jsonError(c, http.StatusConflict, "request is already in progress")
			}

			tee := &teeWriter{ResponseWriter: c.Response().Writer, code: http.StatusOK}
			c.Response().Writer = tee
			if err := next(c); err != nil {
				c.Error(err)
			}

			entry.InProgress = false
			entry.Code = tee.code
			entry.Body = tee.buf.Bytes()
			entry.CreatedAt = nowUTC()
			// the request context may already be gone once the client hangs up
			if err := store.finish(context.Background(), key, entry, ttl); err != nil {
				log.Warn("idempotency entry save failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}
