package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsCountByWhitelistsColumns(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT work_type AS key, COUNT(*) AS count FROM maintenance_requests WHERE requester_id = $1 GROUP BY work_type")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("plumbing", 2).AddRow("electrical", 1))

	rows, err := countBy(context.Background(), db, "work_type", "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "plumbing", rows[0].Key)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status AS key, COUNT(*) AS count FROM maintenance_requests GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}))
	empty, err := countBy(context.Background(), db, "status", "")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	_, err = countBy(context.Background(), db, "description; DROP TABLE users", "")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositorySnapshot(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAnalyticsRepository(db)
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	march := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM maintenance_requests WHERE requester_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY work_type")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("plumbing", 2).AddRow("internet", 1))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("pending", 3))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY block")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("A", 3))
	mock.ExpectQuery(regexp.QuoteMeta("date_trunc('month', created_at AT TIME ZONE 'UTC')")).
		WithArgs(since, "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"month", "count"}).AddRow(march, 3))
	mock.ExpectCommit()

	counts, err := repo.Snapshot(context.Background(), since, "user-1")
	require.NoError(t, err)
	require.Equal(t, 3, counts.Total)
	require.Len(t, counts.ByType, 2)
	require.Equal(t, "pending", counts.ByStatus[0].Key)
	require.Equal(t, march, counts.ByMonth[0].Month)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositorySnapshotRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAnalyticsRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM maintenance_requests")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.Snapshot(context.Background(), time.Now(), "")
	require.ErrorIs(t, err, sql.ErrConnDone)
	require.NoError(t, mock.ExpectationsWereMet())
}
