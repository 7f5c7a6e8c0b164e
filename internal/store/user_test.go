package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/recipevault/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, mock
}

var userRowColumns = []string{"id", "username", "email", "password_hash", "first_name", "last_name", "role", "is_active", "created_at"}

func TestUserRepository_GetByID(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewUserRepository(conn)

	id := uuid.New()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, username, .* FROM users WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(id.String(), "chef1", "chef1@example.com", "hash", "Ada", "Lovelace", "USER", true, created))

	user, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "chef1", user.Username)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.True(t, user.Active)
	assert.Equal(t, created, user.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsernameOrEmail_NotFound(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewUserRepository(conn)

	mock.ExpectQuery(`(?s)FROM users\s+WHERE username = \$1 OR email = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsernameOrEmail(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_Exists(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewUserRepository(conn)

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE username = \$1\)`).
		WithArgs("chef1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM users WHERE email = \$1\)`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	taken, err := repo.ExistsByUsername(context.Background(), "chef1")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.ExistsByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, taken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_FillsIDAndTimestamp(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewUserRepository(conn)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "chef1", "chef1@example.com", "hash", "Ada", "", "USER", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user, err := repo.Create(context.Background(), types.User{
		Username:     "chef1",
		Email:        "chef1@example.com",
		PasswordHash: "hash",
		FirstName:    "Ada",
		Role:         types.RoleUser,
		Active:       true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_Create_TranslatesUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{name: "username", constraint: "users_username_key", want: ErrDuplicateUsername},
		{name: "email", constraint: "users_email_key", want: ErrDuplicateEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, mock := newMockDB(t)
			repo := NewUserRepository(conn)

			mock.ExpectExec(`INSERT INTO users`).
				WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: tt.constraint})

			_, err := repo.Create(context.Background(), types.User{Username: "chef1", Email: "chef1@example.com", Role: types.RoleUser})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUserRepository_Create_PassesThroughOtherErrors(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewUserRepository(conn)

	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO users`).WillReturnError(boom)

	_, err := repo.Create(context.Background(), types.User{Username: "chef1", Role: types.RoleUser})
	require.ErrorIs(t, err, boom)
}
