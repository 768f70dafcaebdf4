// Package users stores accounts and their role assignments.
package users

import (
	"context"

	"github.com/dmitrijs2005/psm/internal/server/models"
)

// Repository reads return users with their roles loaded, ordered by role
// name. By-id and by-name lookups return common.ErrorNotFound when absent.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Update writes the name, and the password only when withPassword is set.
	Update(ctx context.Context, user *models.User, withPassword bool) error
	Delete(ctx context.Context, id int64) error
	// SetRoles replaces the role assignments of userID.
	SetRoles(ctx context.Context, userID int64, roleIDs []int64) error

	GetByIDFetchRoles(ctx context.Context, id int64) (*models.User, error)
	GetByNameFetchRoles(ctx context.Context, name string) (*models.User, error)
	ListFetchRoles(ctx context.Context) ([]*models.User, error)
}
