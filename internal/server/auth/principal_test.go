package auth

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrincipal_AuthoritiesFromRoles(t *testing.T) {
	u := &models.User{ID: 7, Name: "root", Roles: []models.Role{{ID: 2, Name: "user"}, {ID: 1, Name: "admin"}}}

	p := NewPrincipal(u)
	assert.Equal(t, int64(7), p.UserID)
	assert.Equal(t, "root", p.Name)
	assert.Equal(t, []string{"admin", "user"}, p.Authorities)
	assert.True(t, p.IsAdmin())
}

func TestIsAdmin_ExactMatchOnly(t *testing.T) {
	assert.False(t, (&Principal{Authorities: []string{"user"}}).IsAdmin())
	assert.False(t, (&Principal{Authorities: []string{"ADMIN"}}).IsAdmin())
	assert.False(t, (&Principal{Authorities: []string{"ROLE_admin"}}).IsAdmin())

	var nilP *Principal
	assert.False(t, nilP.IsAdmin())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &Principal{UserID: 1})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(1), p.UserID)

	_, ok = PrincipalFrom(WithPrincipal(context.Background(), nil))
	assert.False(t, ok)
}
