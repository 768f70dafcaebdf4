package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dmitrijs2005/psm/internal/server/services"
)

func (h *Handler) setupUserRoutes(api huma.API) {
	huma.Register(api, h.op("users-list", http.MethodGet, "/api/users", "List users", "admin"), h.listUsers)
	huma.Register(api, h.op("users-get", http.MethodGet, "/api/users/{id}", "Get a user", "admin"), h.getUser)
	huma.Register(api, h.op("roles-list", http.MethodGet, "/api/roles", "List roles", "admin"), h.listRoles)

	create := h.op("users-create", http.MethodPost, "/api/users", "Create a user", "admin")
	create.DefaultStatus = http.StatusCreated
	huma.Register(api, create, h.createUser)

	huma.Register(api, h.op("users-update", http.MethodPut, "/api/users/{id}", "Update a user", "admin"), h.updateUser)

	del := h.op("users-delete", http.MethodDelete, "/api/users/{id}", "Delete a user", "admin")
	del.DefaultStatus = http.StatusNoContent
	huma.Register(api, del, h.deleteUser)
}

func (h *Handler) listUsers(ctx context.Context, _ *struct{}) (*userListOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.svc.Users.List(ctx, p)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	out := &userListOutput{Body: make([]userResponse, 0, len(list))}
	for _, u := range list {
		out.Body = append(out.Body, toUserResponse(u))
	}
	return out, nil
}

func (h *Handler) getUser(ctx context.Context, input *idInput) (*userOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.svc.Users.Get(ctx, p, input.ID)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &userOutput{Body: toUserResponse(u)}, nil
}

func (h *Handler) listRoles(ctx context.Context, _ *struct{}) (*roleListOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	roles, err := h.svc.Users.Roles(ctx, p)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &roleListOutput{Body: roles}, nil
}

func (h *Handler) createUser(ctx context.Context, input *createUserInput) (*userOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.svc.Users.Create(ctx, p, services.UserInput(input.Body))
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &userOutput{Body: toUserResponse(u)}, nil
}

func (h *Handler) updateUser(ctx context.Context, input *updateUserInput) (*userOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.svc.Users.Update(ctx, p, input.ID, services.UserInput(input.Body))
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &userOutput{Body: toUserResponse(u)}, nil
}

func (h *Handler) deleteUser(ctx context.Context, input *idInput) (*struct{}, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Users.Delete(ctx, p, input.ID); err != nil {
		return nil, h.fail(ctx, err)
	}
	return nil, nil
}
