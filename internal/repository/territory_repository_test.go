package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

func TestTerritoryRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTerritoryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "is_active", "pastor_id", "created_at"}).
		AddRow(1, "Norte", true, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, is_active, pastor_id, created_at FROM territories WHERE is_active = TRUE ORDER BY name")).
		WillReturnRows(rows)

	territories, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, territories, 1)
	assert.Equal(t, "Norte", territories[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTerritoryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTerritoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO territories (name, is_active, pastor_id, created_at) VALUES ($1, $2, $3, $4) RETURNING id")).
		WithArgs("Sur", true, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	territory := &models.Territory{Name: "Sur", Active: true}
	require.NoError(t, repo.Create(context.Background(), territory))
	assert.Equal(t, int64(7), territory.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTerritoryRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTerritoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM territories WHERE id = $1")).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 9), sql.ErrNoRows)
}

func TestTerritoryRepositoryDistribution(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTerritoryRepository(db)

	rows := sqlmock.NewRows([]string{"territory_id", "territory_name", "leaders", "pastors"}).
		AddRow(1, "Norte", 4, 1).
		AddRow(2, "Sur", 2, 0)
	mock.ExpectQuery("FROM territories t").WillReturnRows(rows)

	dist, err := repo.Distribution(context.Background())
	require.NoError(t, err)
	require.Len(t, dist, 2)
	assert.Equal(t, 4, dist[0].Leaders)
	assert.Equal(t, 1, dist[0].Pastors)
	assert.Zero(t, dist[0].Total)
}

func TestTerritoryRepositoryListByPastor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTerritoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE t.pastor_id = $1 OR t.id IN (SELECT territory_id FROM pastor_territories WHERE user_id = $1)")).
		WithArgs("pastor-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "is_active", "pastor_id", "created_at"}).AddRow(2, "Sur", true, "pastor-1", time.Now()))

	territories, err := repo.ListByPastor(context.Background(), "pastor-1")
	require.NoError(t, err)
	require.Len(t, territories, 1)
	require.NotNil(t, territories[0].PastorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
