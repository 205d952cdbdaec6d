// internal/session/store_test.go
package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobalert-workers/internal/common/logger"
	"jobalert-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, logger.NewTestLogger(t)), mock
}

func TestStore_RecentlySent(t *testing.T) {
	tests := []struct {
		name   string
		exists bool
	}{
		{"sent within the last hour", true},
		{"no recent session", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupStore(t)

			mock.ExpectQuery(`SELECT EXISTS`).
				WithArgs("device-1", "aaaa").
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.exists))

			got, err := store.RecentlySent(context.Background(), "device-1", "aaaa")

			assert.NoError(t, err)
			assert.Equal(t, tt.exists, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_RecentlySent_QueryError(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnError(errors.New("connection reset"))

	_, err := store.RecentlySent(context.Background(), "device-1", "aaaa")

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Persist(t *testing.T) {
	store, mock := setupStore(t)

	sess := models.MatchSession{
		ID:          "11111111-2222-3333-4444-555555555555",
		DeviceID:    "device-1",
		PrimaryHash: "aaaa",
		Jobs: []models.JobPosting{
			{ID: 10, Title: "iOS Developer", Company: "Acme"},
			{ID: 11, Title: "Swift Developer", Company: "Globex"},
		},
		Keywords:  []string{"ios", "swift"},
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO match_sessions`).
		WithArgs(sess.ID, sess.DeviceID, sess.PrimaryHash,
			sqlmock.AnyArg(), sqlmock.AnyArg(), 2, false, sess.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Persist(context.Background(), sess)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkSent(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(`UPDATE match_sessions SET sent = TRUE`).
		WithArgs("session-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkSent(context.Background(), "session-1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkSent_MissingSession(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(`UPDATE match_sessions SET sent = TRUE`).
		WithArgs("unknown").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkSent(context.Background(), "unknown")

	assert.ErrorContains(t, err, "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
