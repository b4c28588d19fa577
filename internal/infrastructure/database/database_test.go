package database

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/config"
	"github.com/nexuscrm/salescrm/pkg/query"
)

func TestDSNFor(t *testing.T) {
	driver, dsn := dsnFor(query.DialectPostgres, config.DatabaseConfig{
		Host: "db", User: "crm", Password: "p@ss", Name: "sales",
	})
	assert.Equal(t, "pgx", driver)
	assert.Equal(t, "postgres://crm:p%40ss@db:5432/sales", dsn)

	driver, dsn = dsnFor(query.DialectPostgres, config.DatabaseConfig{URL: "postgres://x/y"})
	assert.Equal(t, "pgx", driver)
	assert.Equal(t, "postgres://x/y", dsn)

	driver, dsn = dsnFor(query.DialectSQLite, config.DatabaseConfig{Path: "file.db"})
	assert.Equal(t, "sqlite", driver)
	assert.Equal(t, "file.db?_time_format=sqlite&_pragma=foreign_keys(1)", dsn)
	assert.Equal(t, "file::memory:?cache=shared&_time_format=sqlite&_pragma=foreign_keys(1)", SQLiteDSN("file::memory:?cache=shared"))

	driver, dsn = dsnFor(query.DialectMySQL, config.DatabaseConfig{
		Host: "127.0.0.1", User: "root", Name: "salescrm",
	})
	assert.Equal(t, "mysql", driver)
	assert.True(t, strings.HasPrefix(dsn, "root@tcp(127.0.0.1:4000)/salescrm?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.NotContains(t, dsn, "tls=")
}

func TestMySQLDSN_RemoteUsesTLS(t *testing.T) {
	dsn := mysqlDSN(config.DatabaseConfig{Host: "gateway01.tidbcloud.com", Port: 4000, User: "u", Name: "crm"})
	assert.Contains(t, dsn, "tls=tidb")
}

func TestConnection_RebindsForPostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	conn := New(db, query.DialectPostgres)
	mock.ExpectExec("DELETE FROM deals WHERE id = $1 AND user_id = $2").
		WithArgs("d1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = conn.ExecContext(context.Background(), "DELETE FROM deals WHERE id = ? AND user_id = ?", "d1", "u1")
	require.NoError(t, err)
	assert.Equal(t, query.DialectPostgres, conn.Dialect())
	assert.NoError(t, mock.ExpectationsWereMet())
}
