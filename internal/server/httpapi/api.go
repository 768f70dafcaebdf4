// Package httpapi exposes the services as a JSON API built from huma
// operations on a chi router.
//
//	POST   /api/auth/login                  public
//	POST   /api/auth/refresh                public
//	GET    /api/health                      public
//	POST   /api/auth/logout                 bearer
//	GET    /api/entries                     bearer
//	GET    /api/entries/group/{id}          bearer
//	GET    /api/entries/generate-password   bearer
//	GET    /api/entries/{id}                bearer
//	GET    /api/entries/{id}/password       bearer
//	POST   /api/entries                     bearer
//	PUT    /api/entries/{id}                bearer
//	DELETE /api/entries/{id}                bearer
//	GET    /api/groups                      bearer
//	POST   /api/groups                      bearer
//	PUT    /api/groups/{id}                 bearer
//	DELETE /api/groups/{id}                 bearer
//	POST   /api/export                      bearer
//	GET    /api/users, /api/users/{id}      admin
//	POST   /api/users                       admin
//	PUT    /api/users/{id}                  admin
//	DELETE /api/users/{id}                  admin
//	GET    /api/roles                       admin
package httpapi

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type Authenticator interface {
	Login(ctx context.Context, username, password, remoteAddr string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	ResolvePrincipal(ctx context.Context, accessToken string) (*auth.Principal, error)
}

type EntryManager interface {
	Find(ctx context.Context, p *auth.Principal, f services.EntryFilter) ([]*models.Entry, error)
	FindByGroup(ctx context.Context, p *auth.Principal, groupID int64) ([]*models.Entry, error)
	Get(ctx context.Context, p *auth.Principal, id int64) (*models.Entry, error)
	RevealPassword(ctx context.Context, p *auth.Principal, id int64) (string, error)
	Create(ctx context.Context, p *auth.Principal, in services.EntryInput) (*models.Entry, error)
	Update(ctx context.Context, p *auth.Principal, id int64, in services.EntryInput) (*models.Entry, error)
	Delete(ctx context.Context, p *auth.Principal, id int64) error
	GeneratePassword(length int, typ string) (string, error)
}

type GroupManager interface {
	List(ctx context.Context, p *auth.Principal) ([]*models.Group, error)
	Create(ctx context.Context, p *auth.Principal, name string) (*models.Group, error)
	Update(ctx context.Context, p *auth.Principal, id int64, name string) (*models.Group, error)
	Delete(ctx context.Context, p *auth.Principal, id int64) error
}

type UserAdmin interface {
	List(ctx context.Context, p *auth.Principal) ([]*models.User, error)
	Get(ctx context.Context, p *auth.Principal, id int64) (*models.User, error)
	Roles(ctx context.Context, p *auth.Principal) ([]models.Role, error)
	Create(ctx context.Context, p *auth.Principal, in services.UserInput) (*models.User, error)
	Update(ctx context.Context, p *auth.Principal, id int64, in services.UserInput) (*models.User, error)
	Delete(ctx context.Context, p *auth.Principal, id int64) error
}

type Exporter interface {
	Export(ctx context.Context, p *auth.Principal) (*services.ExportResult, error)
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Services struct {
	Auth    Authenticator
	Entries EntryManager
	Groups  GroupManager
	Users   UserAdmin
	Export  Exporter
	DB      Pinger
}

type Handler struct {
	svc    Services
	log    logging.Logger
	public huma.Middlewares
	bearer huma.Middlewares
}

// New builds the router with every operation registered.
func New(svc Services, log logging.Logger) (*chi.Mux, huma.API) {
	mux := chi.NewMux()

	config := huma.DefaultConfig("psm API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	api := humachi.New(mux, config)

	log = log.With("component", "httpapi")
	access := newAccessLogger(log)
	authMW := newAuthenticator(api, svc.Auth, log)

	h := &Handler{
		svc:    svc,
		log:    log,
		public: huma.Middlewares{access.Middleware()},
		bearer: huma.Middlewares{access.Middleware(), authMW.Middleware()},
	}
	h.SetupRoutes(api)

	return mux, api
}

func (h *Handler) SetupRoutes(api huma.API) {
	h.setupAuthRoutes(api)
	h.setupHealthRoutes(api)
	h.setupEntryRoutes(api)
	h.setupGroupRoutes(api)
	h.setupUserRoutes(api)
	h.setupExportRoutes(api)
}

func (h *Handler) op(id, method, path, summary string, tags ...string) huma.Operation {
	return huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        path,
		Summary:     summary,
		Tags:        tags,
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.bearer,
	}
}

func (h *Handler) publicOp(id, method, path, summary string, tags ...string) huma.Operation {
	return huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        path,
		Summary:     summary,
		Tags:        tags,
		Middlewares: h.public,
	}
}
