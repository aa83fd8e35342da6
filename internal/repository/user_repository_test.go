package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
)

func TestUserRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	regNo := "21BCE001"
	user := &models.User{Email: "asha@campus.edu", PasswordHash: "hash", Role: models.RoleStudent, FullName: "Asha", RegNo: &regNo}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "full_name", "reg_no", "employee_id", "block", "room_number", "department", "created_at", "updated_at"}).
		AddRow(user.ID, user.Email, "hash", "student", "Asha", regNo, nil, "A", "101", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1)")).
		WithArgs("ASHA@campus.edu").
		WillReturnRows(rows)

	found, err := repo.FindByEmail(context.Background(), "ASHA@campus.edu")
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, found.Role)
	require.Equal(t, "A", *found.Block)
	require.Nil(t, found.EmployeeID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryErrors(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_reg_no_key"})
	err := repo.Create(context.Background(), &models.User{Email: "dup@campus.edu"})
	require.ErrorIs(t, err, ErrDuplicate)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "reg_no", dup.Field)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23503"})
	err = repo.Create(context.Background(), &models.User{Email: "fk@campus.edu"})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicate)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
