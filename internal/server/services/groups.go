package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/repositories/repomanager"
)

type GroupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	security    logging.Logger
}

func NewGroupService(db *sql.DB, m repomanager.RepositoryManager, security logging.Logger) *GroupService {
	return &GroupService{
		db:          db,
		repomanager: m,
		security:    security.With("channel", logging.SecurityChannel),
	}
}

// List returns the caller's groups ordered by name.
func (s *GroupService) List(ctx context.Context, p *auth.Principal) ([]*models.Group, error) {
	return s.repomanager.Groups(s.db).ListByUser(ctx, p.UserID)
}

func (s *GroupService) Get(ctx context.Context, p *auth.Principal, id int64) (*models.Group, error) {
	return s.owned(ctx, s.db, p, id, "group.get")
}

func (s *GroupService) Create(ctx context.Context, p *auth.Principal, name string) (*models.Group, error) {
	g := &models.Group{Name: strings.TrimSpace(name), UserID: p.UserID}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	created, err := s.repomanager.Groups(s.db).Create(ctx, g)
	if err != nil {
		return nil, groupWriteError(err, g.Name)
	}
	return created, nil
}

// Update renames an owned group. The owner never changes.
func (s *GroupService) Update(ctx context.Context, p *auth.Principal, id int64, name string) (*models.Group, error) {
	var updated *models.Group
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		g, err := s.owned(ctx, tx, p, id, "group.update")
		if err != nil {
			return err
		}
		g.Name = strings.TrimSpace(name)
		g.UserID = p.UserID
		if err := g.Validate(); err != nil {
			return err
		}
		if err := s.repomanager.Groups(tx).Update(ctx, g); err != nil {
			return groupWriteError(err, g.Name)
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes an owned group. A group still referenced by entries is a
// conflict.
func (s *GroupService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.owned(ctx, tx, p, id, "group.delete"); err != nil {
			return err
		}
		if err := s.repomanager.Groups(tx).Delete(ctx, id); err != nil {
			if errors.Is(err, common.ErrorConflict) {
				return fmt.Errorf("%w: group still contains entries", common.ErrorConflict)
			}
			return err
		}
		return nil
	})
}

func (s *GroupService) owned(ctx context.Context, db dbx.DBTX, p *auth.Principal, id int64, action string) (*models.Group, error) {
	g, err := s.repomanager.Groups(db).GetByIDFetchUser(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: group %d", common.ErrorNotFound, id)
		}
		return nil, err
	}
	if !g.OwnedBy(p.UserID) {
		s.security.Warn(ctx, "access denied", "user", p.Name, "action", action, "group_id", id)
		return nil, common.ErrorForbidden
	}
	return g, nil
}

func groupWriteError(err error, name string) error {
	if errors.Is(err, common.ErrorConflict) {
		return fmt.Errorf("%w: group %q already exists", common.ErrorConflict, name)
	}
	return err
}
