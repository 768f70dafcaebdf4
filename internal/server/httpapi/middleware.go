package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
)

type accessLogger struct {
	log logging.Logger
}

func newAccessLogger(log logging.Logger) *accessLogger {
	return &accessLogger{log: log}
}

// Middleware logs one line per request after it was handled.
func (l *accessLogger) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		method := ctx.Method()
		path := ctx.URL().Path
		remoteAddr := ctx.RemoteAddr()

		next(ctx)

		l.log.Info(ctx.Context(), "http request",
			"method", method,
			"path", path,
			"status", ctx.Status(),
			"duration", time.Since(start),
			"remote_addr", remoteAddr,
		)
	}
}

type authenticator struct {
	api  huma.API
	auth Authenticator
	log  logging.Logger
}

func newAuthenticator(api huma.API, a Authenticator, log logging.Logger) *authenticator {
	return &authenticator{api: api, auth: a, log: log}
}

type accessTokenKey struct{}

// Middleware resolves the bearer token into a principal stored in the
// request context. The user is loaded fresh for every request.
func (a *authenticator) Middleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		token, ok := strings.CutPrefix(ctx.Header("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			_ = huma.WriteErr(a.api, ctx, http.StatusUnauthorized, "missing bearer token")
			return
		}

		p, err := a.auth.ResolvePrincipal(ctx.Context(), token)
		if err != nil {
			if isAuthError(err) {
				_ = huma.WriteErr(a.api, ctx, http.StatusUnauthorized, authMessage(err))
				return
			}
			a.log.Error(ctx.Context(), "resolve principal failed", "error", err)
			_ = huma.WriteErr(a.api, ctx, http.StatusInternalServerError, "internal error")
			return
		}

		newCtx := auth.WithPrincipal(ctx.Context(), p)
		newCtx = context.WithValue(newCtx, accessTokenKey{}, token)
		next(huma.WithContext(ctx, newCtx))
	}
}

func accessTokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(accessTokenKey{}).(string)
	return t
}

func principal(ctx context.Context) (*auth.Principal, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	return p, nil
}

func isAuthError(err error) bool {
	return errors.Is(err, common.ErrorUnauthorized) ||
		errors.Is(err, common.ErrInvalidToken) ||
		errors.Is(err, common.ErrTokenExpired) ||
		errors.Is(err, common.ErrTokenRevoked) ||
		errors.Is(err, common.ErrRefreshTokenExpired)
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, common.ErrTokenRevoked):
		return "token revoked"
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return "refresh token expired"
	case errors.Is(err, common.ErrorUnauthorized):
		return "bad credentials"
	default:
		return "invalid token"
	}
}
