package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/psm/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	q := `^SELECT id, name FROM roles ORDER BY name$`
	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "admin").
		AddRow(int64(2), "user"))

	repo := NewPostgresRepository(db)
	got, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Role{{ID: 1, Name: "admin"}, {ID: 2, Name: "user"}}, got)

	mock.ExpectQuery(q).WillReturnError(errors.New("db err"))
	_, err = repo.List(context.Background())
	assert.EqualError(t, err, "db error: db err")

	assert.NoError(t, mock.ExpectationsWereMet())
}
