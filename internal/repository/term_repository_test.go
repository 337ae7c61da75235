package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakolwit/school-portal-api/internal/models"
)

func newTermRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTermRepositoryListByStartAscending(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM academic_terms ORDER BY start_date ASC, id ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "start_date", "end_date", "created_at", "updated_at"}).
			AddRow("t1", "1/2567", "term1", time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC), time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC), now, now).
			AddRow("t2", "2/2567", "term2", time.Date(2024, time.November, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC), now, now))

	terms, err := repo.ListByStartAscending(context.Background())
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "1/2567", terms[0].Name)
	assert.Equal(t, models.TermCategorySecond, terms[1].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM academic_terms WHERE name = $1 LIMIT 1")).
		WithArgs("1/2567").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "1/2567")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM academic_terms WHERE name = $1 LIMIT 1")).
		WithArgs("3/2567").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = repo.ExistsByName(context.Background(), "3/2567")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTermRepoMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectExec("INSERT INTO academic_terms").
		WillReturnResult(sqlmock.NewResult(1, 1))

	term := &models.AcademicTerm{
		Name:      "1/2567",
		Category:  models.TermCategoryFirst,
		StartDate: time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, time.October, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), term))
	assert.NotEmpty(t, term.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
