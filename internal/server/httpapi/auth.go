package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dmitrijs2005/psm/internal/server/services"
)

func (h *Handler) setupAuthRoutes(api huma.API) {
	huma.Register(api, h.publicOp("auth-login", http.MethodPost, "/api/auth/login", "Log in", "auth"), h.login)
	huma.Register(api, h.publicOp("auth-refresh", http.MethodPost, "/api/auth/refresh", "Rotate the refresh token", "auth"), h.refresh)

	logout := h.op("auth-logout", http.MethodPost, "/api/auth/logout", "Log out", "auth")
	logout.DefaultStatus = http.StatusNoContent
	huma.Register(api, logout, h.logout)
}

func (h *Handler) login(ctx context.Context, input *loginInput) (*tokenOutput, error) {
	pair, err := h.svc.Auth.Login(ctx, input.Body.Username, input.Body.Password, input.remoteAddr)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return toTokenOutput(pair), nil
}

func (h *Handler) refresh(ctx context.Context, input *refreshInput) (*tokenOutput, error) {
	pair, err := h.svc.Auth.Refresh(ctx, input.Body.RefreshToken)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return toTokenOutput(pair), nil
}

func (h *Handler) logout(ctx context.Context, input *logoutInput) (*struct{}, error) {
	refresh := ""
	if input.Body != nil {
		refresh = input.Body.RefreshToken
	}
	if err := h.svc.Auth.Logout(ctx, accessTokenFrom(ctx), refresh); err != nil {
		return nil, h.fail(ctx, err)
	}
	return nil, nil
}

func toTokenOutput(pair *services.TokenPair) *tokenOutput {
	return &tokenOutput{Body: tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	}}
}
