package users

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectWithRoles = `SELECT u.id, u.name, u.password, u.created_at, r.id, r.name
		 FROM users u
		 LEFT JOIN users_roles ur ON ur.user_id = u.id
		 LEFT JOIN roles r ON r.id = ur.role_id`

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (name, password)
		 VALUES ($1, $2)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, user.Name, user.Password).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, dbx.ClassifyWriteError(err)
	}
	return user, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User, withPassword bool) error {
	var (
		res sql.Result
		err error
	)
	if withPassword {
		res, err = r.db.ExecContext(ctx,
			`UPDATE users SET name = $1, password = $2 WHERE id = $3`,
			user.Name, user.Password, user.ID)
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE users SET name = $1 WHERE id = $2`,
			user.Name, user.ID)
	}
	if err != nil {
		return dbx.ClassifyWriteError(err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return dbx.ClassifyWriteError(err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) SetRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, roleID := range roleIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO users_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID); err != nil {
			return dbx.ClassifyWriteError(err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByIDFetchRoles(ctx context.Context, id int64) (*models.User, error) {
	list, err := r.query(ctx, selectWithRoles+`
		 WHERE u.id = $1
		 ORDER BY r.name`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

// GetByNameFetchRoles matches the name ignoring case.
func (r *PostgresRepository) GetByNameFetchRoles(ctx context.Context, name string) (*models.User, error) {
	list, err := r.query(ctx, selectWithRoles+`
		 WHERE lower(u.name) = lower($1)
		 ORDER BY r.name`, name)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return list[0], nil
}

// ListFetchRoles returns every user ordered by name.
func (r *PostgresRepository) ListFetchRoles(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, selectWithRoles+`
		 ORDER BY u.name, u.id, r.name`)
}

// query folds the user x role join rows into users, keeping row order.
func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var (
		result []*models.User
		byID   = map[int64]*models.User{}
	)
	for rows.Next() {
		var (
			u        models.User
			roleID   sql.NullInt64
			roleName sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Password, &u.CreatedAt, &roleID, &roleName); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		cur, ok := byID[u.ID]
		if !ok {
			cur = &u
			byID[u.ID] = cur
			result = append(result, cur)
		}
		if roleID.Valid {
			cur.Roles = append(cur.Roles, models.Role{ID: roleID.Int64, Name: roleName.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
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
