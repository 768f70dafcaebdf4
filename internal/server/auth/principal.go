// Package auth holds the authenticated principal, access tokens and their
// revocation.
package auth

import (
	"context"
	"slices"

	"github.com/dmitrijs2005/psm/internal/server/models"
)

// Principal is the authenticated caller. Authorities are role names taken
// verbatim from the user's roles.
type Principal struct {
	UserID      int64
	Name        string
	Authorities []string
}

func NewPrincipal(u *models.User) *Principal {
	return &Principal{UserID: u.ID, Name: u.Name, Authorities: u.RoleNames()}
}

func (p *Principal) HasAuthority(a string) bool {
	return p != nil && slices.Contains(p.Authorities, a)
}

func (p *Principal) IsAdmin() bool {
	return p.HasAuthority(models.RoleAdmin)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by WithPrincipal, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
