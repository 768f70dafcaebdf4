package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) setupExportRoutes(api huma.API) {
	huma.Register(api, h.op("export", http.MethodPost, "/api/export", "Export the vault to object storage", "export"), h.export)
}

func (h *Handler) export(ctx context.Context, _ *struct{}) (*exportOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	res, err := h.svc.Export.Export(ctx, p)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	out := &exportOutput{}
	out.Body.Key = res.Key
	out.Body.URL = res.URL
	out.Body.ExpiresAt = res.ExpiresAt
	return out, nil
}
