package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/services"
	"github.com/go-chi/chi/v5"
)

var (
	alice = &auth.Principal{UserID: 1, Name: "alice", Authorities: []string{models.RoleUser}}
	root  = &auth.Principal{UserID: 3, Name: "root", Authorities: []string{models.RoleAdmin}}
)

type fakeAuth struct {
	loginUser, loginAddr   string
	logoutAccess, logoutRT string
	refreshErr             error
}

func (f *fakeAuth) Login(_ context.Context, username, password, remoteAddr string) (*services.TokenPair, error) {
	f.loginUser, f.loginAddr = username, remoteAddr
	if password != "secret" {
		return nil, common.ErrorUnauthorized
	}
	return &services.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.TokenPair{AccessToken: "access2", RefreshToken: token + "2"}, nil
}

func (f *fakeAuth) Logout(_ context.Context, accessToken, refreshToken string) error {
	f.logoutAccess, f.logoutRT = accessToken, refreshToken
	return nil
}

func (f *fakeAuth) ResolvePrincipal(_ context.Context, token string) (*auth.Principal, error) {
	switch token {
	case "alice-token":
		return alice, nil
	case "root-token":
		return root, nil
	case "expired":
		return nil, common.ErrTokenExpired
	case "revoked":
		return nil, common.ErrTokenRevoked
	case "boom":
		return nil, io.ErrUnexpectedEOF
	}
	return nil, common.ErrInvalidToken
}

type fakeEntries struct {
	filter   services.EntryFilter
	input    services.EntryInput
	err      error
	entries  []*models.Entry
	password string
}

func (f *fakeEntries) Find(_ context.Context, _ *auth.Principal, filter services.EntryFilter) ([]*models.Entry, error) {
	f.filter = filter
	return f.entries, f.err
}

func (f *fakeEntries) FindByGroup(_ context.Context, _ *auth.Principal, groupID int64) ([]*models.Entry, error) {
	f.filter = services.EntryFilter{GroupID: &groupID}
	return f.entries, f.err
}

func (f *fakeEntries) Get(_ context.Context, _ *auth.Principal, id int64) (*models.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Entry{ID: id, Name: "mail"}, nil
}

func (f *fakeEntries) RevealPassword(context.Context, *auth.Principal, int64) (string, error) {
	return f.password, f.err
}

func (f *fakeEntries) Create(_ context.Context, p *auth.Principal, in services.EntryInput) (*models.Entry, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Entry{ID: 10, Name: in.Name, UserID: p.UserID, ExpiredDate: in.ExpiredDate, Password: in.Password}, nil
}

func (f *fakeEntries) Update(_ context.Context, p *auth.Principal, id int64, in services.EntryInput) (*models.Entry, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.Entry{ID: id, Name: in.Name, UserID: p.UserID}, nil
}

func (f *fakeEntries) Delete(context.Context, *auth.Principal, int64) error { return f.err }

func (f *fakeEntries) GeneratePassword(length int, typ string) (string, error) {
	if typ != "simple" {
		return "", common.ErrInvalidArgument
	}
	return strings.Repeat("a", length), nil
}

type fakeGroups struct {
	err error
}

func (f *fakeGroups) List(context.Context, *auth.Principal) ([]*models.Group, error) {
	return []*models.Group{{ID: 1, Name: "Bank", UserID: 1}}, f.err
}

func (f *fakeGroups) Create(_ context.Context, p *auth.Principal, name string) (*models.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Group{ID: 2, Name: name, UserID: p.UserID}, nil
}

func (f *fakeGroups) Update(_ context.Context, p *auth.Principal, id int64, name string) (*models.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Group{ID: id, Name: name, UserID: p.UserID}, nil
}

func (f *fakeGroups) Delete(context.Context, *auth.Principal, int64) error { return f.err }

type fakeUsers struct {
	input services.UserInput
}

func (f *fakeUsers) admin(p *auth.Principal) error {
	if !p.IsAdmin() {
		return common.ErrorForbidden
	}
	return nil
}

func (f *fakeUsers) List(_ context.Context, p *auth.Principal) ([]*models.User, error) {
	if err := f.admin(p); err != nil {
		return nil, err
	}
	return []*models.User{{ID: 1, Name: "alice", Roles: []models.Role{{ID: 2, Name: models.RoleUser}}}}, nil
}

func (f *fakeUsers) Get(_ context.Context, p *auth.Principal, id int64) (*models.User, error) {
	if err := f.admin(p); err != nil {
		return nil, err
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) Roles(_ context.Context, p *auth.Principal) ([]models.Role, error) {
	if err := f.admin(p); err != nil {
		return nil, err
	}
	return []models.Role{{ID: 1, Name: models.RoleAdmin}, {ID: 2, Name: models.RoleUser}}, nil
}

func (f *fakeUsers) Create(_ context.Context, p *auth.Principal, in services.UserInput) (*models.User, error) {
	if err := f.admin(p); err != nil {
		return nil, err
	}
	f.input = in
	if in.Name == "alice" {
		return nil, common.ErrorConflict
	}
	return &models.User{ID: 7, Name: in.Name}, nil
}

func (f *fakeUsers) Update(_ context.Context, p *auth.Principal, id int64, in services.UserInput) (*models.User, error) {
	if err := f.admin(p); err != nil {
		return nil, err
	}
	f.input = in
	return &models.User{ID: id, Name: in.Name}, nil
}

func (f *fakeUsers) Delete(_ context.Context, p *auth.Principal, _ int64) error {
	return f.admin(p)
}

type fakeExport struct {
	err error
}

func (f *fakeExport) Export(_ context.Context, p *auth.Principal) (*services.ExportResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &services.ExportResult{Key: "users/1/x.json", URL: "https://s3/x", ExpiresAt: time.Unix(0, 0).UTC()}, nil
}

type fakePinger struct {
	err error
}

func (f *fakePinger) PingContext(context.Context) error { return f.err }

type fixture struct {
	mux     *chi.Mux
	auth    *fakeAuth
	entries *fakeEntries
	groups  *fakeGroups
	users   *fakeUsers
	export  *fakeExport
	db      *fakePinger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		auth:    &fakeAuth{},
		entries: &fakeEntries{},
		groups:  &fakeGroups{},
		users:   &fakeUsers{},
		export:  &fakeExport{},
		db:      &fakePinger{},
	}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.mux, _ = New(Services{
		Auth:    f.auth,
		Entries: f.entries,
		Groups:  f.groups,
		Users:   f.users,
		Export:  f.export,
		DB:      f.db,
	}, log)
	return f
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(path, token string) *httptest.ResponseRecorder {
	return f.do(http.MethodGet, path, token, "")
}
