package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/cryptox"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/repositories/repomanager"
)

// UserInput describes an account as submitted by an administrator. Roles
// are role names; Password may be empty on update to keep the current one.
type UserInput struct {
	Name     string
	Password string
	Roles    []string
}

// UserService is the account administration area. Every method requires an
// admin principal.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	encoder     cryptox.PasswordEncoder
	security    logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, encoder cryptox.PasswordEncoder, security logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		encoder:     encoder,
		security:    security.With("channel", logging.SecurityChannel),
	}
}

func (s *UserService) List(ctx context.Context, p *auth.Principal) ([]*models.User, error) {
	if err := s.requireAdmin(ctx, p, "user.list"); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).ListFetchRoles(ctx)
}

func (s *UserService) Get(ctx context.Context, p *auth.Principal, id int64) (*models.User, error) {
	if err := s.requireAdmin(ctx, p, "user.get"); err != nil {
		return nil, err
	}
	u, err := s.repomanager.Users(s.db).GetByIDFetchRoles(ctx, id)
	if err != nil {
		return nil, userNotFound(err, id)
	}
	return u, nil
}

// Roles lists the assignable roles.
func (s *UserService) Roles(ctx context.Context, p *auth.Principal) ([]models.Role, error) {
	if err := s.requireAdmin(ctx, p, "role.list"); err != nil {
		return nil, err
	}
	return s.repomanager.Roles(s.db).List(ctx)
}

func (s *UserService) Create(ctx context.Context, p *auth.Principal, in UserInput) (*models.User, error) {
	if err := s.requireAdmin(ctx, p, "user.create"); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.security.Info(ctx, "user created", "admin", p.Name, "user", u.Name, "roles", u.RoleNames())
	return u, nil
}

// CreateAdmin bootstraps an administrator without a principal. It is only
// reachable from the command line.
func (s *UserService) CreateAdmin(ctx context.Context, name, password string) (*models.User, error) {
	u, err := s.create(ctx, UserInput{Name: name, Password: password, Roles: []string{models.RoleAdmin, models.RoleUser}})
	if err != nil {
		return nil, err
	}
	s.security.Info(ctx, "admin bootstrapped", "user", u.Name)
	return u, nil
}

// Update rewrites name and roles, and the password when one is given. A
// password change ends the user's refresh-token sessions.
func (s *UserService) Update(ctx context.Context, p *auth.Principal, id int64, in UserInput) (*models.User, error) {
	if err := s.requireAdmin(ctx, p, "user.update"); err != nil {
		return nil, err
	}

	u := newUser(in)
	u.ID = id
	if err := u.Validate(in.Password, false); err != nil {
		return nil, err
	}
	withPassword := in.Password != ""

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if _, err := repo.GetByIDFetchRoles(ctx, id); err != nil {
			return userNotFound(err, id)
		}
		if err := s.resolveRoles(ctx, tx, u); err != nil {
			return err
		}
		if withPassword {
			hash, err := s.encoder.Encode(in.Password)
			if err != nil {
				return fmt.Errorf("error encoding password: %w", err)
			}
			u.Password = hash
		}
		if err := repo.Update(ctx, u, withPassword); err != nil {
			return userWriteError(err, u.Name)
		}
		if err := repo.SetRoles(ctx, id, roleIDs(u)); err != nil {
			return rolesWriteError(err)
		}
		if withPassword {
			return s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.security.Info(ctx, "user updated", "admin", p.Name, "user", u.Name,
		"roles", u.RoleNames(), "password_changed", withPassword)
	u.Password = ""
	return u, nil
}

// Delete removes an account. Users still owning groups or entries cannot be
// deleted.
func (s *UserService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	if err := s.requireAdmin(ctx, p, "user.delete"); err != nil {
		return err
	}
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		if _, err := repo.GetByIDFetchRoles(ctx, id); err != nil {
			return userNotFound(err, id)
		}
		if err := repo.Delete(ctx, id); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return fmt.Errorf("%w: user still owns groups or entries", common.ErrorConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.security.Info(ctx, "user deleted", "admin", p.Name, "user_id", id)
	return nil
}

func (s *UserService) create(ctx context.Context, in UserInput) (*models.User, error) {
	u := newUser(in)
	if err := u.Validate(in.Password, true); err != nil {
		return nil, err
	}

	hash, err := s.encoder.Encode(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error encoding password: %w", err)
	}
	u.Password = hash

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.resolveRoles(ctx, tx, u); err != nil {
			return err
		}
		repo := s.repomanager.Users(tx)
		if _, err := repo.Create(ctx, u); err != nil {
			return userWriteError(err, u.Name)
		}
		return rolesWriteError(repo.SetRoles(ctx, u.ID, roleIDs(u)))
	})
	if err != nil {
		return nil, err
	}
	u.Password = ""
	return u, nil
}

func (s *UserService) requireAdmin(ctx context.Context, p *auth.Principal, action string) error {
	if p.IsAdmin() {
		return nil
	}
	name := ""
	if p != nil {
		name = p.Name
	}
	s.security.Warn(ctx, "access denied", "user", name, "action", action)
	return common.ErrorForbidden
}

// resolveRoles fills in role ids from the role names of u.
func (s *UserService) resolveRoles(ctx context.Context, db dbx.DBTX, u *models.User) error {
	known, err := s.repomanager.Roles(db).List(ctx)
	if err != nil {
		return err
	}
	for i := range u.Roles {
		idx := slices.IndexFunc(known, func(r models.Role) bool { return r.Name == u.Roles[i].Name })
		if idx < 0 {
			return common.NewValidationError(fmt.Sprintf("roles[%d].name", i), "unknown role")
		}
		u.Roles[i].ID = known[idx].ID
	}
	return nil
}

// newUser builds the model with a trimmed name and deduplicated, sorted roles.
func newUser(in UserInput) *models.User {
	u := &models.User{Name: strings.TrimSpace(in.Name)}
	seen := make(map[string]bool, len(in.Roles))
	for _, r := range in.Roles {
		r = strings.TrimSpace(r)
		if seen[r] {
			continue
		}
		seen[r] = true
		u.Roles = append(u.Roles, models.Role{Name: r})
	}
	u.SortRoles()
	return u
}

func roleIDs(u *models.User) []int64 {
	ids := make([]int64, 0, len(u.Roles))
	for _, r := range u.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

func userNotFound(err error, id int64) error {
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%w: user %d", common.ErrorNotFound, id)
	}
	return err
}

func rolesWriteError(err error) error {
	if errors.Is(err, common.ErrorConflict) {
		return fmt.Errorf("%w: user or role was changed concurrently", common.ErrorConflict)
	}
	return err
}

func userWriteError(err error, name string) error {
	if errors.Is(err, common.ErrorConflict) {
		return fmt.Errorf("%w: user %q already exists", common.ErrorConflict, name)
	}
	return err
}
