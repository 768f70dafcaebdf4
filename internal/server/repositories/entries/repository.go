// Package entries stores credential entries. Every read takes the owner as
// an explicit parameter or returns the owner together with the row.
package entries

import (
	"context"

	"github.com/dmitrijs2005/psm/internal/server/models"
)

// MinSearchLength is the shortest name fragment that filters a search;
// anything shorter is treated as no filter.
const MinSearchLength = 2

// Query narrows Find to entries of UserID. Name is a case-insensitive
// substring. GroupID and EmptyGroup are mutually exclusive.
type Query struct {
	UserID     int64
	Name       string
	GroupID    *int64
	EmptyGroup bool
}

type Repository interface {
	// Find returns the matching entries ordered by name, with Group loaded
	// when set.
	Find(ctx context.Context, q Query) ([]*models.Entry, error)
	// GetByIDFetchAll returns the entry with its owner and group (including
	// the group owner) loaded in one fetch, or common.ErrorNotFound.
	GetByIDFetchAll(ctx context.Context, id int64) (*models.Entry, error)

	Create(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	Update(ctx context.Context, entry *models.Entry) error
	Delete(ctx context.Context, id int64) error
}
