package httpapi

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dmitrijs2005/psm/internal/common"
)

// fail maps a service error onto an HTTP status. Internal details only go
// to the log.
func (h *Handler) fail(ctx context.Context, err error) error {
	var se huma.StatusError
	if errors.As(err, &se) {
		return err
	}

	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		details := make([]error, 0, len(ve.Violations))
		for _, v := range ve.Violations {
			details = append(details, &huma.ErrorDetail{Location: "body." + v.Field, Message: v.Message})
		}
		return huma.Error422UnprocessableEntity("validation failed", details...)
	case errors.Is(err, common.ErrorNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, common.ErrorForbidden):
		return huma.Error403Forbidden("access denied")
	case errors.Is(err, common.ErrorConflict):
		return huma.Error409Conflict(err.Error())
	case isAuthError(err):
		return huma.Error401Unauthorized(authMessage(err))
	case errors.Is(err, common.ErrInvalidArgument):
		return huma.Error400BadRequest(err.Error())
	default:
		h.log.Error(ctx, "request failed", "error", err)
		return huma.Error500InternalServerError("internal error")
	}
}
