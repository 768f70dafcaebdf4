package httpapi

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) setupGroupRoutes(api huma.API) {
	huma.Register(api, h.op("groups-list", http.MethodGet, "/api/groups", "List own groups", "groups"), h.listGroups)

	create := h.op("groups-create", http.MethodPost, "/api/groups", "Create a group", "groups")
	create.DefaultStatus = http.StatusCreated
	huma.Register(api, create, h.createGroup)

	huma.Register(api, h.op("groups-update", http.MethodPut, "/api/groups/{id}", "Rename a group", "groups"), h.updateGroup)

	del := h.op("groups-delete", http.MethodDelete, "/api/groups/{id}", "Delete an empty group", "groups")
	del.DefaultStatus = http.StatusNoContent
	huma.Register(api, del, h.deleteGroup)
}

func (h *Handler) listGroups(ctx context.Context, _ *struct{}) (*groupListOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.svc.Groups.List(ctx, p)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	out := &groupListOutput{Body: make([]groupResponse, 0, len(list))}
	for _, g := range list {
		out.Body = append(out.Body, toGroupResponse(g))
	}
	return out, nil
}

func (h *Handler) createGroup(ctx context.Context, input *createGroupInput) (*groupOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	g, err := h.svc.Groups.Create(ctx, p, input.Body.Name)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &groupOutput{Body: toGroupResponse(g)}, nil
}

func (h *Handler) updateGroup(ctx context.Context, input *updateGroupInput) (*groupOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	g, err := h.svc.Groups.Update(ctx, p, input.ID, input.Body.Name)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &groupOutput{Body: toGroupResponse(g)}, nil
}

func (h *Handler) deleteGroup(ctx context.Context, input *idInput) (*struct{}, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Groups.Delete(ctx, p, input.ID); err != nil {
		return nil, h.fail(ctx, err)
	}
	return nil, nil
}
