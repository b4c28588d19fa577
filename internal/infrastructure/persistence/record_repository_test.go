package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/pkg/query"
)

func newMockRepo(t *testing.T, dialect query.Dialect) (*RecordRepository, *sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRecordRepository(database.New(db, dialect)), db, mock
}

func newConn(db *sql.DB) *database.Connection {
	return database.New(db, query.DialectPostgres)
}

func TestRecordRepository_DeleteIsOwnerScoped(t *testing.T) {
	repo, _, mock := newMockRepo(t, query.DialectPostgres)

	mock.ExpectExec("DELETE FROM companies WHERE id = $1 AND companies.user_id = $2").
		WithArgs("c1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "companies", "u1", "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_UpdateNotOwnedIsNotFound(t *testing.T) {
	repo, _, mock := newMockRepo(t, query.DialectPostgres)

	mock.ExpectExec("UPDATE companies SET name = $1, updated_at = $2 WHERE id = $3 AND companies.user_id = $4").
		WithArgs("Acme", sqlmock.AnyArg(), "c1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "companies", "intruder", "c1", map[string]interface{}{"name": "Acme"}, true)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_UpdateWithoutFieldsIsNoop(t *testing.T) {
	repo, _, mock := newMockRepo(t, query.DialectMySQL)
	require.NoError(t, repo.Update(context.Background(), "deals", "u1", "d1", nil, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepository_ExistsUsesQuestionMarksOnMySQL(t *testing.T) {
	repo, _, mock := newMockRepo(t, query.DialectMySQL)

	mock.ExpectQuery("SELECT contacts.id FROM contacts WHERE contacts.id = ? AND contacts.user_id = ? LIMIT 1").
		WithArgs("ct1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ct1"))

	ok, err := repo.Exists(context.Background(), "contacts", "u1", "ct1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepository_ListDefaults(t *testing.T) {
	base, _, mock := newMockRepo(t, query.DialectPostgres)
	repo := NewCompanyRepository(base)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT companies.id, companies.user_id, companies.name, companies.industry, companies.website, " +
		"companies.phone, companies.address, companies.size, companies.notes, companies.created_at, companies.updated_at " +
		"FROM companies WHERE companies.user_id = $1 ORDER BY companies.name ASC, companies.id ASC LIMIT 50").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(companyColumns).
			AddRow("c1", "u1", "Acme", "Manufacturing", nil, nil, nil, nil, nil, now, now))

	companies, err := repo.List(context.Background(), "u1", models.ListOptions{})
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme", companies[0].Name)
	require.NotNil(t, companies[0].Industry)
	assert.Equal(t, "Manufacturing", *companies[0].Industry)
	assert.Nil(t, companies[0].Website)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepository_ListWithFilterExpression(t *testing.T) {
	base, _, mock := newMockRepo(t, query.DialectPostgres)
	repo := NewDealRepository(base)

	mock.ExpectQuery("SELECT deals.id, deals.user_id, deals.contact_id, deals.company_id, deals.title, deals.value, " +
		"deals.currency, deals.stage, deals.probability, deals.expected_close_date, deals.closed_at, deals.description, " +
		"deals.created_at, deals.updated_at, ct.id, ct.first_name, ct.last_name, ct.email, co.id, co.name " +
		"FROM deals LEFT JOIN contacts ct ON ct.id = deals.contact_id LEFT JOIN companies co ON co.id = deals.company_id " +
		"WHERE deals.user_id = $1 AND deals.stage = $2 AND ((deals.value > $3) AND (deals.probability >= $4)) " +
		"ORDER BY deals.value DESC, deals.id DESC LIMIT 10 OFFSET 20").
		WithArgs("u1", "proposal", 1000, 50).
		WillReturnRows(sqlmock.NewRows(nil))

	deals, err := repo.List(context.Background(), "u1", models.ListOptions{
		Stage:   "proposal",
		Filter:  "value > 1000 && probability >= 50",
		OrderBy: "value",
		Limit:   10,
		Offset:  20,
	})
	require.NoError(t, err)
	assert.Empty(t, deals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepository_RejectsUnknownColumns(t *testing.T) {
	base, _, _ := newMockRepo(t, query.DialectPostgres)
	repo := NewDealRepository(base)

	_, err := repo.List(context.Background(), "u1", models.ListOptions{Filter: "password_hash == 'x'"})
	assert.ErrorIs(t, err, ErrInvalidFilter)

	_, err = repo.List(context.Background(), "u1", models.ListOptions{OrderBy: "user_id; DROP TABLE deals"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestContactRepository_SearchUsesLike(t *testing.T) {
	base, _, mock := newMockRepo(t, query.DialectMySQL)
	repo := NewContactRepository(base)

	mock.ExpectQuery("SELECT contacts.id, contacts.user_id, contacts.company_id, contacts.first_name, contacts.last_name, " +
		"contacts.email, contacts.phone, contacts.job_title, contacts.status, contacts.notes, contacts.created_at, " +
		"contacts.updated_at, co.id, co.name FROM contacts LEFT JOIN companies co ON co.id = contacts.company_id " +
		"WHERE contacts.user_id = ? AND (LOWER(contacts.first_name) LIKE ? OR LOWER(contacts.last_name) LIKE ? " +
		"OR LOWER(contacts.email) LIKE ? OR LOWER(contacts.job_title) LIKE ?) " +
		"ORDER BY contacts.created_at DESC, contacts.id DESC LIMIT 50").
		WithArgs("u1", "%ada%", "%ada%", "%ada%", "%ada%").
		WillReturnRows(sqlmock.NewRows(nil))

	_, err := repo.List(context.Background(), "u1", models.ListOptions{Search: "Ada"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepository_SaveStateClearsClosedAt(t *testing.T) {
	base, _, mock := newMockRepo(t, query.DialectPostgres)
	repo := NewDealRepository(base)

	mock.ExpectExec("UPDATE deals SET closed_at = $1, probability = $2, stage = $3, updated_at = $4 WHERE id = $5 AND deals.user_id = $6").
		WithArgs(nil, 50, "proposal", sqlmock.AnyArg(), "d1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveState(context.Background(), "u1", "d1", pipeline.State{Stage: pipeline.StageProposal, Probability: 50})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	conn := database.New(db, query.DialectPostgres)
	tm := NewTransactionManager(conn)
	repo := NewRecordRepository(conn)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM tasks WHERE id = $1 AND tasks.user_id = $2").
		WithArgs("t1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		require.NotNil(t, ExtractTx(ctx))
		return repo.Delete(ctx, "tasks", "u1", "t1")
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_CommitsAndNests(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tm := NewTransactionManager(database.New(db, query.DialectSQLite))

	mock.ExpectBegin()
	mock.ExpectCommit()

	calls := 0
	err = tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		outer := ExtractTx(ctx)
		return tm.WithTransaction(ctx, func(inner context.Context) error {
			calls++
			assert.Same(t, outer, ExtractTx(inner))
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
