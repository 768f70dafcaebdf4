package entries

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/server/models"
)

// PostgresRepository implements entry storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildFind renders the Find statement and its arguments.
func buildFind(q Query) (string, []any, error) {
	if q.EmptyGroup && q.GroupID != nil {
		return "", nil, fmt.Errorf("%w: group and empty group filters are mutually exclusive", common.ErrInvalidArgument)
	}

	var b strings.Builder
	b.WriteString(`SELECT e.id, e.name, e.login, e.email, e.password, e.description, e.expired_date,
		 e.group_id, g.name, e.user_id
		 FROM entries e
		 LEFT JOIN groups g ON g.id = e.group_id
		 WHERE e.user_id = $1`)
	args := []any{q.UserID}

	// The raw text is matched as typed, surrounding spaces included.
	if utf8.RuneCountInString(q.Name) >= MinSearchLength {
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(q.Name))+"%")
		fmt.Fprintf(&b, ` AND lower(e.name) LIKE $%d ESCAPE '\'`, len(args))
	}

	switch {
	case q.EmptyGroup:
		b.WriteString(` AND e.group_id IS NULL`)
	case q.GroupID != nil:
		args = append(args, *q.GroupID)
		fmt.Fprintf(&b, ` AND e.group_id = $%d`, len(args))
	}

	b.WriteString(` ORDER BY e.name, e.id`)
	return b.String(), args, nil
}

func (r *PostgresRepository) Find(ctx context.Context, q Query) ([]*models.Entry, error) {
	query, args, err := buildFind(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Entry
	for rows.Next() {
		e := &models.Entry{}
		var groupName sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &e.Login, &e.Email, &e.Password, &e.Description, &e.ExpiredDate,
			&e.GroupID, &groupName, &e.UserID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if e.GroupID != nil {
			e.Group = &models.Group{ID: *e.GroupID, Name: groupName.String, UserID: e.UserID}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) GetByIDFetchAll(ctx context.Context, id int64) (*models.Entry, error) {
	query :=
		`SELECT e.id, e.name, e.login, e.email, e.password, e.description, e.expired_date,
		 e.group_id, g.name, g.user_id, e.user_id, u.name
		 FROM entries e
		 JOIN users u ON u.id = e.user_id
		 LEFT JOIN groups g ON g.id = e.group_id
		 WHERE e.id = $1`

	e := &models.Entry{User: &models.User{}}
	var (
		groupName  sql.NullString
		groupOwner sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Name, &e.Login, &e.Email, &e.Password,
		&e.Description, &e.ExpiredDate, &e.GroupID, &groupName, &groupOwner, &e.UserID, &e.User.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	e.User.ID = e.UserID
	if e.GroupID != nil {
		e.Group = &models.Group{ID: *e.GroupID, Name: groupName.String, UserID: groupOwner.Int64}
	}
	return e, nil
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	query :=
		`INSERT INTO entries (name, login, email, password, description, expired_date, group_id, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query, entry.Name, entry.Login, entry.Email, entry.Password,
		entry.Description, entry.ExpiredDate, entry.GroupID, entry.UserID).Scan(&entry.ID)
	if err != nil {
		return nil, dbx.ClassifyWriteError(err)
	}
	return entry, nil
}

func (r *PostgresRepository) Update(ctx context.Context, entry *models.Entry) error {
	query :=
		`UPDATE entries
		 SET name = $1, login = $2, email = $3, password = $4, description = $5,
		     expired_date = $6, group_id = $7, user_id = $8
		 WHERE id = $9`

	res, err := r.db.ExecContext(ctx, query, entry.Name, entry.Login, entry.Email, entry.Password,
		entry.Description, entry.ExpiredDate, entry.GroupID, entry.UserID, entry.ID)
	if err != nil {
		return dbx.ClassifyWriteError(err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = $1`, id)
	if err != nil {
		return dbx.ClassifyWriteError(err)
	}
	return requireAffected(res)
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
