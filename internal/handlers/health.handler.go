package handlers

import (
	"github.com/fasthttp/router"
	xhttp "github.com/gyantigventure/telnyx-did-buy-sub000/pkg/http"
)

// HealthCheck probes one dependency.
type HealthCheck func() error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(ctx, 503, map[string]any{"status": "degraded", "failed": failed})
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "ok"})
}
