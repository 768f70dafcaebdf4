// Package repomanager vends repositories bound to a DBTX, so services can
// use the same repositories on a pool or inside a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/server/repositories/entries"
	"github.com/dmitrijs2005/psm/internal/server/repositories/groups"
	"github.com/dmitrijs2005/psm/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/psm/internal/server/repositories/roles"
	"github.com/dmitrijs2005/psm/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Roles(db dbx.DBTX) roles.Repository
	Groups(db dbx.DBTX) groups.Repository
	Entries(db dbx.DBTX) entries.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
