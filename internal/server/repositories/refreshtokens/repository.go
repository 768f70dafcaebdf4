// Package refreshtokens keeps the server-side record of issued refresh
// tokens so they can be rotated and revoked.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/psm/internal/server/models"
)

type Repository interface {
	// Create stores token for userID, expiring validity from now.
	Create(ctx context.Context, userID int64, token string, validity time.Duration) error
	// Find returns the stored token or common.ErrorNotFound. Expiry is left
	// to the caller.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)
	// Consume removes token and returns it, or common.ErrorNotFound when
	// no row was removed. Rotation relies on it as the single check.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)
	// Delete is idempotent.
	Delete(ctx context.Context, token string) error
	// DeleteByUser ends every session of userID.
	DeleteByUser(ctx context.Context, userID int64) error
}
