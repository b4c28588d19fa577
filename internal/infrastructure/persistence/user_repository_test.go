package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/pkg/query"
)

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(NewRecordRepository(database.New(db, query.DialectMySQL))), mock
}

func TestCheckUserExistsByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	q := "SELECT COUNT(*) FROM user_profiles WHERE user_profiles.email = ?"

	// Test Case 1: User exists; lookup is case-insensitive
	mock.ExpectQuery(regexp.QuoteMeta(q)).WithArgs("test@example.com").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	exists, err := repo.CheckUserExistsByEmail(context.Background(), " Test@Example.com ")
	assert.NoError(t, err)
	assert.True(t, exists)

	// Test Case 2: User does not exist
	mock.ExpectQuery(regexp.QuoteMeta(q)).WithArgs("nonexistent@example.com").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))

	exists, err = repo.CheckUserExistsByEmail(context.Background(), "nonexistent@example.com")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_profiles WHERE user_profiles.id = ? LIMIT 1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(profileColumns))

	_, err := repo.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindUserByEmail_ReturnsHash(t *testing.T) {
	repo, mock := newUserRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_profiles.email = ?")).
		WithArgs("rep@example.com").
		WillReturnRows(sqlmock.NewRows(profileColumns).
			AddRow("u1", "rep@example.com", "Sales Rep", "sales_rep", nil, "$2a$10$hash", now, now))

	p, err := repo.FindUserByEmail(context.Background(), "REP@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, "$2a$10$hash", p.PasswordHash)
	assert.Equal(t, "Sales Rep", p.DisplayName())
	assert.Nil(t, p.AvatarURL)
}

func TestUpdateUser_IsNotOwnerScoped(t *testing.T) {
	repo, mock := newUserRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE user_profiles SET full_name = ?, updated_at = ? WHERE id = ?")).
		WithArgs("Ada", sqlmock.AnyArg(), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateUser(context.Background(), "u1", map[string]interface{}{"full_name": "Ada"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
