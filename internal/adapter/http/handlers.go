package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing store answers.
type Pinger func(ctx context.Context) error

type Handler struct{ checks map[string]Pinger }

func NewHandler(checks map[string]Pinger) *Handler { return &Handler{checks: checks} }

func (h *Handler) Health(c echo.Context) error {
	code, status := http.StatusOK, "ok"
	deps := make(map[string]string, len(h.checks))
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			deps[name] = err.Error()
			code, status = http.StatusServiceUnavailable, "degraded"
			continue
		}
		deps[name] = "ok"
	}
	return c.JSON(code, map[string]any{
		"status": status,
		"deps":   deps,
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}
