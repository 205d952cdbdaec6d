// internal/store/jobs_test.go
package store

import (
	"context"
	"testing"
	"time"

	"jobalert-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupJobStore(t *testing.T) (*JobStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewJobStore(db, logger.NewTestLogger(t)), mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "company", "source", "description", "created_at"})
}

func TestJobStore_RecentPostings(t *testing.T) {
	store, mock := setupJobStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, title, company, source`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(jobRows().
			AddRow(int64(2), "Swift Developer", "Globex", "adzuna", "Build apps", now).
			AddRow(int64(1), "iOS Developer", "Acme", "jooble", "", now.Add(-time.Hour)))

	postings, err := store.RecentPostings(context.Background(), 24*time.Hour, "", 0)

	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, int64(2), postings[0].ID)
	assert.Equal(t, "Swift Developer", postings[0].Title)
	assert.Equal(t, "Build apps", postings[0].Description)
	assert.Equal(t, int64(1), postings[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_RecentPostings_SourceFilterAndLimit(t *testing.T) {
	store, mock := setupJobStore(t)

	mock.ExpectQuery(`AND source = \$2 ORDER BY created_at DESC LIMIT \$3`).
		WithArgs(sqlmock.AnyArg(), "adzuna", 100).
		WillReturnRows(jobRows().
			AddRow(int64(1), "iOS Developer", "Acme", "adzuna", "", time.Now().UTC()))

	postings, err := store.RecentPostings(context.Background(), 24*time.Hour, "adzuna", 100)

	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "adzuna", postings[0].Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStore_RecentPostings_Empty(t *testing.T) {
	store, mock := setupJobStore(t)

	mock.ExpectQuery(`SELECT id, title, company, source`).
		WillReturnRows(jobRows())

	postings, err := store.RecentPostings(context.Background(), 24*time.Hour, "", 0)

	require.NoError(t, err)
	assert.Empty(t, postings)
	assert.NoError(t, mock.ExpectationsWereMet())
}
