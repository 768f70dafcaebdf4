package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/cryptox"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/passgen"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/dmitrijs2005/psm/internal/server/repositories/entries"
	"github.com/dmitrijs2005/psm/internal/server/repositories/repomanager"
)

// Bounds of the password validity period, in months.
const (
	MinPasswordValidityMonths = 1
	MaxPasswordValidityMonths = 120
)

// EntryFilter narrows a search over the caller's entries.
type EntryFilter struct {
	Name       string
	GroupID    *int64
	EmptyGroup bool
}

// EntryInput is the full state of an entry as submitted by the owner.
// Updates replace every field, so a nil Password clears the stored one.
//
// PasswordValidityMonths sets the expiry to today plus that many months and
// takes precedence over ExpiredDate; RemovePasswordValidity clears the
// expiry and wins over both.
type EntryInput struct {
	Name                   string
	Login                  *string
	Email                  *string
	Password               *string
	Description            *string
	ExpiredDate            *time.Time
	GroupID                *int64
	PasswordValidityMonths *int
	RemovePasswordValidity bool
}

type EntryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	encryptor   cryptox.PasswordEncryptor
	generator   *passgen.Generator
	security    logging.Logger
	now         func() time.Time
}

func NewEntryService(db *sql.DB, m repomanager.RepositoryManager, encryptor cryptox.PasswordEncryptor,
	generator *passgen.Generator, security logging.Logger) *EntryService {
	return &EntryService{
		db:          db,
		repomanager: m,
		encryptor:   encryptor,
		generator:   generator,
		security:    security.With("channel", logging.SecurityChannel),
		now:         time.Now,
	}
}

// Find lists the caller's entries. When a group is given it is checked for
// ownership first.
func (s *EntryService) Find(ctx context.Context, p *auth.Principal, f EntryFilter) ([]*models.Entry, error) {
	if f.EmptyGroup && f.GroupID != nil {
		return nil, fmt.Errorf("%w: group and emptyGroup cannot be combined", common.ErrInvalidArgument)
	}
	if f.GroupID != nil {
		if _, err := s.ownedGroup(ctx, s.db, p, *f.GroupID, "entry.find"); err != nil {
			return nil, err
		}
	}
	return s.repomanager.Entries(s.db).Find(ctx, entries.Query{
		UserID:     p.UserID,
		Name:       f.Name,
		GroupID:    f.GroupID,
		EmptyGroup: f.EmptyGroup,
	})
}

// FindByGroup lists the entries of one of the caller's groups.
func (s *EntryService) FindByGroup(ctx context.Context, p *auth.Principal, groupID int64) ([]*models.Entry, error) {
	return s.Find(ctx, p, EntryFilter{GroupID: &groupID})
}

// Get returns an entry owned by the caller. The password stays encrypted.
func (s *EntryService) Get(ctx context.Context, p *auth.Principal, id int64) (*models.Entry, error) {
	return s.ownedEntry(ctx, s.db, p, id, "entry.get")
}

// RevealPassword decrypts the stored password of an owned entry. An entry
// without a password yields "".
func (s *EntryService) RevealPassword(ctx context.Context, p *auth.Principal, id int64) (string, error) {
	e, err := s.ownedEntry(ctx, s.db, p, id, "entry.password")
	if err != nil {
		return "", err
	}
	if !e.HasPassword() {
		return "", nil
	}
	plain, err := s.encryptor.Decrypt(*e.Password)
	if err != nil {
		return "", fmt.Errorf("error decrypting password: %w", err)
	}
	return plain, nil
}

func (s *EntryService) Create(ctx context.Context, p *auth.Principal, in EntryInput) (*models.Entry, error) {
	var created *models.Entry
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		e, err := s.prepare(ctx, tx, p, in, "entry.create")
		if err != nil {
			return err
		}
		created, err = s.repomanager.Entries(tx).Create(ctx, e)
		return entryWriteError(err)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces an owned entry. The entry is checked before the group.
func (s *EntryService) Update(ctx context.Context, p *auth.Principal, id int64, in EntryInput) (*models.Entry, error) {
	var updated *models.Entry
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.ownedEntry(ctx, tx, p, id, "entry.update"); err != nil {
			return err
		}
		e, err := s.prepare(ctx, tx, p, in, "entry.update")
		if err != nil {
			return err
		}
		e.ID = id
		if err := s.repomanager.Entries(tx).Update(ctx, e); err != nil {
			return entryWriteError(err)
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *EntryService) Delete(ctx context.Context, p *auth.Principal, id int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.ownedEntry(ctx, tx, p, id, "entry.delete"); err != nil {
			return err
		}
		return s.repomanager.Entries(tx).Delete(ctx, id)
	})
}

// GeneratePassword needs no ownership context.
func (s *EntryService) GeneratePassword(length int, typ string) (string, error) {
	t, err := passgen.ParseType(typ)
	if err != nil {
		return "", err
	}
	return s.generator.Generate(length, t)
}

// prepare resolves the group, forces the owner, validates the plaintext and
// encrypts the password, in that order.
func (s *EntryService) prepare(ctx context.Context, db dbx.DBTX, p *auth.Principal, in EntryInput, action string) (*models.Entry, error) {
	e := &models.Entry{
		Name:        strings.TrimSpace(in.Name),
		Login:       blankToNil(in.Login),
		Email:       blankToNil(in.Email),
		Password:    emptyToNil(in.Password),
		Description: blankToNil(in.Description),
		ExpiredDate: in.ExpiredDate,
		GroupID:     in.GroupID,
	}

	if in.GroupID != nil {
		g, err := s.ownedGroup(ctx, db, p, *in.GroupID, action)
		if err != nil {
			return nil, err
		}
		e.Group = g
	}

	e.UserID = p.UserID
	e.User = &models.User{ID: p.UserID, Name: p.Name}

	ve := &common.ValidationError{}
	if err := e.Validate(); err != nil {
		if !errors.As(err, &ve) {
			return nil, err
		}
	}
	switch {
	case in.RemovePasswordValidity:
		e.ExpiredDate = nil
	case in.PasswordValidityMonths != nil:
		months := *in.PasswordValidityMonths
		if months < MinPasswordValidityMonths || months > MaxPasswordValidityMonths {
			ve.Add("passwordValidityMonths",
				fmt.Sprintf("must be between %d and %d", MinPasswordValidityMonths, MaxPasswordValidityMonths))
			break
		}
		exp := models.ExpiryAfterMonths(s.now(), months)
		e.ExpiredDate = &exp
	}
	if err := ve.OrNil(); err != nil {
		return nil, err
	}

	if e.Password != nil {
		enc, err := s.encryptor.Encrypt(*e.Password)
		if err != nil {
			return nil, fmt.Errorf("error encrypting password: %w", err)
		}
		e.Password = &enc
	}
	return e, nil
}

func (s *EntryService) ownedEntry(ctx context.Context, db dbx.DBTX, p *auth.Principal, id int64, action string) (*models.Entry, error) {
	e, err := s.repomanager.Entries(db).GetByIDFetchAll(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: entry %d", common.ErrorNotFound, id)
		}
		return nil, err
	}
	if !e.OwnedBy(p.UserID) {
		s.security.Warn(ctx, "access denied", "user", p.Name, "action", action, "entry_id", id)
		return nil, common.ErrorForbidden
	}
	return e, nil
}

func (s *EntryService) ownedGroup(ctx context.Context, db dbx.DBTX, p *auth.Principal, id int64, action string) (*models.Group, error) {
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

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// emptyToNil keeps surrounding spaces, they are part of a password.
func emptyToNil(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

// entryWriteError hides constraint names; the only reference an entry
// write can break is its group, removed by a concurrent request.
func entryWriteError(err error) error {
	if errors.Is(err, common.ErrorConflict) {
		return fmt.Errorf("%w: the selected group no longer exists", common.ErrorConflict)
	}
	return err
}
