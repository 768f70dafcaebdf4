package httpapi

import (
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dmitrijs2005/psm/internal/server/models"
)

const dateLayout = time.DateOnly

// --- auth ---

type loginRequest struct {
	Username string `json:"username" minLength:"1"`
	Password string `json:"password" minLength:"1"`
}

type loginInput struct {
	Body       loginRequest
	remoteAddr string
}

// Resolve captures the caller address for the security log.
func (i *loginInput) Resolve(ctx huma.Context) []error {
	i.remoteAddr = ctx.RemoteAddr()
	return nil
}

type refreshInput struct {
	Body struct {
		RefreshToken string `json:"refreshToken" minLength:"1"`
	}
}

type logoutInput struct {
	Body *struct {
		RefreshToken string `json:"refreshToken,omitempty"`
	}
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType" example:"Bearer"`
}

type tokenOutput struct {
	Body tokenResponse
}

// --- health ---

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"OK"`
	}
}

// --- entries ---

type idInput struct {
	ID int64 `path:"id" minimum:"1"`
}

type findEntriesInput struct {
	Name       string `query:"name" doc:"case-insensitive name fragment, at least 2 characters"`
	Group      int64  `query:"group" doc:"group id"`
	EmptyGroup bool   `query:"emptyGroup" doc:"only entries without a group"`
}

type entryRequest struct {
	Name                   string  `json:"name"`
	Login                  *string `json:"login,omitempty"`
	Email                  *string `json:"email,omitempty"`
	Password               *string `json:"password,omitempty"`
	Description            *string `json:"description,omitempty"`
	ExpiredDate            *string `json:"expiredDate,omitempty" doc:"YYYY-MM-DD"`
	GroupID                *int64  `json:"groupId,omitempty"`
	PasswordValidityMonths *int    `json:"passwordValidityMonths,omitempty"`
	RemovePasswordValidity bool    `json:"removePasswordValidity,omitempty"`
}

type createEntryInput struct {
	Body entryRequest
}

type updateEntryInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body entryRequest
}

// entryResponse never carries the password, only whether one is stored.
type entryResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Login       *string `json:"login,omitempty"`
	Email       *string `json:"email,omitempty"`
	Description *string `json:"description,omitempty"`
	ExpiredDate *string `json:"expiredDate,omitempty"`
	DaysLeft    *int    `json:"daysLeft,omitempty"`
	HasPassword bool    `json:"hasPassword"`
	GroupID     *int64  `json:"groupId,omitempty"`
	GroupName   *string `json:"groupName,omitempty"`
}

type entryOutput struct {
	Body entryResponse
}

type entryListOutput struct {
	Body []entryResponse
}

type passwordOutput struct {
	Body struct {
		Password string `json:"password"`
	}
}

type generatePasswordInput struct {
	Length int    `query:"length" required:"true"`
	Type   string `query:"type" required:"true" doc:"simple or complex"`
}

func toEntryResponse(e *models.Entry, today time.Time) entryResponse {
	r := entryResponse{
		ID:          e.ID,
		Name:        e.Name,
		Login:       e.Login,
		Email:       e.Email,
		Description: e.Description,
		DaysLeft:    e.DaysLeft(today),
		HasPassword: e.HasPassword(),
		GroupID:     e.GroupID,
	}
	if e.ExpiredDate != nil {
		d := e.ExpiredDate.Format(dateLayout)
		r.ExpiredDate = &d
	}
	if e.Group != nil {
		name := e.Group.Name
		r.GroupName = &name
	}
	return r
}

func toEntryResponses(list []*models.Entry, today time.Time) []entryResponse {
	out := make([]entryResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toEntryResponse(e, today))
	}
	return out
}

// --- groups ---

type groupRequest struct {
	Name string `json:"name"`
}

type createGroupInput struct {
	Body groupRequest
}

type updateGroupInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body groupRequest
}

type groupResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type groupOutput struct {
	Body groupResponse
}

type groupListOutput struct {
	Body []groupResponse
}

func toGroupResponse(g *models.Group) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name}
}

// --- users ---

type userRequest struct {
	Name     string   `json:"name"`
	Password string   `json:"password,omitempty" doc:"required on create, empty keeps the current password"`
	Roles    []string `json:"roles"`
}

type createUserInput struct {
	Body userRequest
}

type updateUserInput struct {
	ID   int64 `path:"id" minimum:"1"`
	Body userRequest
}

type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type userOutput struct {
	Body userResponse
}

type userListOutput struct {
	Body []userResponse
}

type roleListOutput struct {
	Body []models.Role
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Roles: u.RoleNames(), CreatedAt: u.CreatedAt}
}

// --- export ---

type exportOutput struct {
	Body struct {
		Key       string    `json:"key"`
		URL       string    `json:"url"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
}
