package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/server/services"
)

func (h *Handler) setupEntryRoutes(api huma.API) {
	huma.Register(api, h.op("entries-find", http.MethodGet, "/api/entries", "Search own entries", "entries"), h.findEntries)
	huma.Register(api, h.op("entries-by-group", http.MethodGet, "/api/entries/group/{id}", "Entries of a group", "entries"), h.entriesByGroup)
	huma.Register(api, h.op("entries-generate-password", http.MethodGet, "/api/entries/generate-password", "Generate a password", "entries"), h.generatePassword)
	huma.Register(api, h.op("entries-get", http.MethodGet, "/api/entries/{id}", "Get an entry", "entries"), h.getEntry)
	huma.Register(api, h.op("entries-password", http.MethodGet, "/api/entries/{id}/password", "Reveal an entry password", "entries"), h.revealPassword)

	create := h.op("entries-create", http.MethodPost, "/api/entries", "Create an entry", "entries")
	create.DefaultStatus = http.StatusCreated
	huma.Register(api, create, h.createEntry)

	huma.Register(api, h.op("entries-update", http.MethodPut, "/api/entries/{id}", "Replace an entry", "entries"), h.updateEntry)

	del := h.op("entries-delete", http.MethodDelete, "/api/entries/{id}", "Delete an entry", "entries")
	del.DefaultStatus = http.StatusNoContent
	huma.Register(api, del, h.deleteEntry)
}

func (h *Handler) findEntries(ctx context.Context, input *findEntriesInput) (*entryListOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	f := services.EntryFilter{Name: input.Name, EmptyGroup: input.EmptyGroup}
	if input.Group != 0 {
		f.GroupID = &input.Group
	}
	list, err := h.svc.Entries.Find(ctx, p, f)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &entryListOutput{Body: toEntryResponses(list, time.Now())}, nil
}

func (h *Handler) entriesByGroup(ctx context.Context, input *idInput) (*entryListOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.svc.Entries.FindByGroup(ctx, p, input.ID)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &entryListOutput{Body: toEntryResponses(list, time.Now())}, nil
}

func (h *Handler) getEntry(ctx context.Context, input *idInput) (*entryOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	e, err := h.svc.Entries.Get(ctx, p, input.ID)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &entryOutput{Body: toEntryResponse(e, time.Now())}, nil
}

func (h *Handler) revealPassword(ctx context.Context, input *idInput) (*passwordOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	pw, err := h.svc.Entries.RevealPassword(ctx, p, input.ID)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	out := &passwordOutput{}
	out.Body.Password = pw
	return out, nil
}

func (h *Handler) createEntry(ctx context.Context, input *createEntryInput) (*entryOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	in, err := input.Body.toInput()
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	e, err := h.svc.Entries.Create(ctx, p, in)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &entryOutput{Body: toEntryResponse(e, time.Now())}, nil
}

func (h *Handler) updateEntry(ctx context.Context, input *updateEntryInput) (*entryOutput, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	in, err := input.Body.toInput()
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	e, err := h.svc.Entries.Update(ctx, p, input.ID, in)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &entryOutput{Body: toEntryResponse(e, time.Now())}, nil
}

func (h *Handler) deleteEntry(ctx context.Context, input *idInput) (*struct{}, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Entries.Delete(ctx, p, input.ID); err != nil {
		return nil, h.fail(ctx, err)
	}
	return nil, nil
}

func (h *Handler) generatePassword(ctx context.Context, input *generatePasswordInput) (*passwordOutput, error) {
	pw, err := h.svc.Entries.GeneratePassword(input.Length, input.Type)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	out := &passwordOutput{}
	out.Body.Password = pw
	return out, nil
}

func (r entryRequest) toInput() (services.EntryInput, error) {
	in := services.EntryInput{
		Name:                   r.Name,
		Login:                  r.Login,
		Email:                  r.Email,
		Password:               r.Password,
		Description:            r.Description,
		GroupID:                r.GroupID,
		PasswordValidityMonths: r.PasswordValidityMonths,
		RemovePasswordValidity: r.RemovePasswordValidity,
	}
	if r.ExpiredDate != nil && *r.ExpiredDate != "" {
		d, err := time.Parse(dateLayout, *r.ExpiredDate)
		if err != nil {
			return in, common.NewValidationError("expiredDate", "must be a date in YYYY-MM-DD format")
		}
		in.ExpiredDate = &d
	}
	return in, nil
}
