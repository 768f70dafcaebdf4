package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) setupHealthRoutes(api huma.API) {
	huma.Register(api, h.publicOp("health", http.MethodGet, "/api/health", "Health check", "health"), h.health)
}

func (h *Handler) health(ctx context.Context, _ *struct{}) (*healthOutput, error) {
	if err := h.svc.DB.PingContext(ctx); err != nil {
		h.log.Warn(ctx, "health check failed", "error", err)
		return nil, huma.Error503ServiceUnavailable("database unavailable")
	}
	out := &healthOutput{}
	out.Body.Status = "OK"
	return out, nil
}
