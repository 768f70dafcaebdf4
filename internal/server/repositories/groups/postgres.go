// Package groups stores user-owned entry groups.
package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/server/models"
)

// Repository writes map duplicate names and still-referenced groups to
// common.ErrorConflict.
type Repository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id int64) error

	// ListByUser returns the groups of userID ordered by name.
	ListByUser(ctx context.Context, userID int64) ([]*models.Group, error)
	// GetByIDFetchUser returns the group with its owner loaded, or
	// common.ErrorNotFound.
	GetByIDFetchUser(ctx context.Context, id int64) (*models.Group, error)
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, group *models.Group) (*models.Group, error) {
	query :=
		`INSERT INTO groups (name, user_id)
		 VALUES ($1, $2)
		 RETURNING id`

	if err := r.db.QueryRowContext(ctx, query, group.Name, group.UserID).Scan(&group.ID); err != nil {
		return nil, dbx.ClassifyWriteError(err)
	}
	return group, nil
}

func (r *PostgresRepository) Update(ctx context.Context, group *models.Group) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE groups SET name = $1, user_id = $2 WHERE id = $3`,
		group.Name, group.UserID, group.ID)
	if err != nil {
		return dbx.ClassifyWriteError(err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return dbx.ClassifyWriteError(err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Group, error) {
	query :=
		`SELECT id, name, user_id
		 FROM groups
		 WHERE user_id = $1
		 ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Group
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.UserID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetByIDFetchUser(ctx context.Context, id int64) (*models.Group, error) {
	query :=
		`SELECT g.id, g.name, g.user_id, u.name
		 FROM groups g
		 JOIN users u ON u.id = g.user_id
		 WHERE g.id = $1`

	g := &models.Group{User: &models.User{}}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &g.UserID, &g.User.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	g.User.ID = g.UserID
	return g, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
