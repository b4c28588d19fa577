package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
)

func TestSecurityValidator_Rejects(t *testing.T) {
	v := services.NewSecurityValidator(100)
	rep := &models.UserSession{ID: "u1", Role: constants.RoleSalesRep}

	admin := &models.UserSession{ID: "a1", Role: constants.RoleAdmin}

	tests := []struct {
		name string
		sql  string
	}{
		{"not sql", "hello world"},
		{"update", "UPDATE deals SET value = 0"},
		{"delete", "DELETE FROM contacts"},
		{"multiple statements", "SELECT id FROM deals; SELECT id FROM contacts"},
		{"unknown table", "SELECT * FROM information_schema.tables"},
		{"non crm table", "SELECT * FROM secrets"},
		{"schema qualified", "SELECT id FROM crm.deals"},
		{"subquery in where", "SELECT id FROM deals WHERE contact_id IN (SELECT id FROM contacts)"},
		{"derived table", "SELECT x.id FROM (SELECT id FROM deals) AS x"},
		{"union", "SELECT id FROM deals UNION SELECT id FROM contacts"},
		{"cte", "WITH d AS (SELECT id FROM deals) SELECT id FROM d"},
		{"locking", "SELECT id FROM deals FOR UPDATE"},
		{"sleep", "SELECT SLEEP(5) FROM deals"},
		{"benchmark", "SELECT BENCHMARK(1000000, MD5('x')) FROM deals"},
		{"password hash", "SELECT password_hash FROM user_profiles"},
		{"password hash in where", "SELECT id FROM user_profiles WHERE password_hash LIKE '$2a%'"},
		{"profile wildcard", "SELECT * FROM user_profiles"},
		{"aliased profile wildcard", "SELECT p.* FROM deals d JOIN user_profiles p ON p.id = d.user_id"},
		{"variables", "SELECT @@version FROM deals"},
		{"no from", "SELECT 1"},
		{"sql in a string", "SELECT query_to_xml('select * from user_profiles', true, false, '') FROM deals"},
		{"sql in a string as json", "SELECT query_to_json('select password_hash from user_profiles', true) FROM deals"},
		{"built sql string", "SELECT query_to_xml(concat(chr(115), 'elect 1'), true, false, '') FROM deals"},
		{"unknown function", "SELECT pg_read_file('/etc/passwd') FROM deals"},
		{"schema qualified function", "SELECT pg_catalog.lower(title) FROM deals"},
		{"whole row by alias", "SELECT u FROM user_profiles u"},
		{"whole row by table", "SELECT row_to_json(user_profiles) FROM user_profiles"},
		{"whole row as argument", "SELECT coalesce(d, d) FROM deals d"},
		{"unknown column", "SELECT secret FROM deals"},
		{"unknown qualifier", "SELECT x.title FROM deals d"},
		{"column of another table", "SELECT d.email FROM deals d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, user := range []*models.UserSession{rep, admin} {
				_, err := v.ValidateAndRewrite(tt.sql, user)
				require.Error(t, err, user.Role)
				assert.True(t, apperrors.IsValidation(err), "got %v", err)
			}
		})
	}
}

func TestSecurityValidator_Accepts(t *testing.T) {
	v := services.NewSecurityValidator(100)
	rep := &models.UserSession{ID: "u1", Role: constants.RoleSalesRep}

	for _, sql := range []string{
		"SELECT stage, COUNT(*) AS n, SUM(value) AS total FROM deals GROUP BY stage ORDER BY total DESC",
		"SELECT LOWER(first_name), COALESCE(email, '') FROM contacts",
		"SELECT c.name, ROUND(AVG(d.value), 2) AS avg_value FROM companies c JOIN deals d ON d.company_id = c.id GROUP BY c.name",
		"SELECT title FROM deals WHERE expected_close_date < CURRENT_DATE",
		"SELECT u.email, u.role FROM user_profiles u",
	} {
		_, err := v.ValidateAndRewrite(sql, rep)
		assert.NoError(t, err, sql)
	}
}

func TestSecurityValidator_OwnerScope(t *testing.T) {
	v := services.NewSecurityValidator(100)
	rep := &models.UserSession{ID: "u1", Role: constants.RoleSalesRep}

	t.Run("single table", func(t *testing.T) {
		q, err := v.ValidateAndRewrite("select first_name from contacts where status = 'lead' or status = 'prospect'", rep)
		require.NoError(t, err)
		assert.Contains(t, q.SQL, "contacts.user_id = 'u1'")
		assert.Contains(t, q.SQL, "(status = 'lead' OR status = 'prospect') AND")
		assert.NotContains(t, q.SQL, "_UTF8MB4", "literals carry no charset introducer")
		assert.True(t, strings.HasSuffix(q.SQL, " LIMIT 101"), q.SQL)
		assert.Equal(t, 100, q.MaxRows)
	})

	t.Run("aliases and joins", func(t *testing.T) {
		q, err := v.ValidateAndRewrite("SELECT d.title, c.name FROM deals d LEFT JOIN companies c ON c.id = d.company_id", rep)
		require.NoError(t, err)
		assert.Contains(t, q.SQL, "d.user_id = 'u1'")
		assert.Contains(t, q.SQL, "c.user_id = 'u1'")
		where := q.SQL[strings.Index(q.SQL, "WHERE"):]
		assert.NotContains(t, where, "c.user_id", "left joined table is scoped in ON")
	})

	t.Run("profiles scope by id", func(t *testing.T) {
		q, err := v.ValidateAndRewrite("SELECT email, role FROM user_profiles", rep)
		require.NoError(t, err)
		assert.Contains(t, q.SQL, "user_profiles.id = 'u1'")
	})

	t.Run("quotes in the user id are escaped", func(t *testing.T) {
		q, err := v.ValidateAndRewrite("SELECT id FROM deals", &models.UserSession{ID: "x' OR '1'='1"})
		require.NoError(t, err)
		assert.Contains(t, q.SQL, "'x'' OR ''1''=''1'")
	})

	t.Run("admins are not scoped", func(t *testing.T) {
		admin := &models.UserSession{ID: "a1", Role: constants.RoleAdmin}
		q, err := v.ValidateAndRewrite("SELECT stage, COUNT(*) AS n FROM deals GROUP BY stage", admin)
		require.NoError(t, err)
		assert.NotContains(t, q.SQL, "user_id")
	})
}

func TestSecurityValidator_Limits(t *testing.T) {
	v := services.NewSecurityValidator(100)
	rep := &models.UserSession{ID: "u1", Role: constants.RoleSalesRep}

	q, err := v.ValidateAndRewrite("SELECT id FROM deals LIMIT 10", rep)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(q.SQL, " LIMIT 10"), q.SQL)
	assert.Equal(t, 10, q.MaxRows)

	q, err = v.ValidateAndRewrite("SELECT id FROM deals LIMIT 5000", rep)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(q.SQL, " LIMIT 101"), q.SQL)

	q, err = v.ValidateAndRewrite("SELECT id FROM deals LIMIT 20, 10", rep)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(q.SQL, " LIMIT 10 OFFSET 20"), q.SQL)
}

func TestReportService_RunIsOwnerScoped(t *testing.T) {
	sm := newManager(t, services.Dependencies{})
	ctx := context.Background()
	owner := salesRep(t, sm)
	other := salesRep(t, sm)

	for _, v := range []float64{100, 200} {
		_, err := sm.Deals.Create(ctx, owner, models.DealInput{Title: strPtr("mine"), Value: f64Ptr(v)})
		require.NoError(t, err)
	}
	_, err := sm.Deals.Create(ctx, other, models.DealInput{Title: strPtr("theirs"), Value: f64Ptr(900)})
	require.NoError(t, err)

	res, err := sm.Reports.Run(ctx, owner, models.ReportRequest{SQL: "SELECT title, value FROM deals ORDER BY value DESC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "value"}, res.Columns)
	require.Len(t, res.Rows, 2)
	for _, row := range res.Rows {
		assert.Equal(t, "mine", row["title"])
	}
	assert.False(t, res.Truncated)

	_, err = sm.Reports.Run(ctx, owner, models.ReportRequest{SQL: "DROP TABLE deals"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestReportService_RunWithLiteralsAndJoins(t *testing.T) {
	sm := newManager(t, services.Dependencies{})
	ctx := context.Background()
	owner := salesRep(t, sm)
	other := salesRep(t, sm)

	acme, err := sm.Companies.Create(ctx, owner, models.CompanyInput{Name: strPtr("Acme")})
	require.NoError(t, err)
	_, err = sm.Deals.Create(ctx, owner, models.DealInput{Title: strPtr("new logo"), CompanyID: &acme.ID, Stage: strPtr("lead")})
	require.NoError(t, err)
	_, err = sm.Deals.Create(ctx, owner, models.DealInput{Title: strPtr("renewal"), CompanyID: &acme.ID, Stage: strPtr("proposal")})
	require.NoError(t, err)
	theirs, err := sm.Companies.Create(ctx, other, models.CompanyInput{Name: strPtr("Globex")})
	require.NoError(t, err)
	_, err = sm.Deals.Create(ctx, other, models.DealInput{Title: strPtr("theirs"), CompanyID: &theirs.ID, Stage: strPtr("lead")})
	require.NoError(t, err)

	res, err := sm.Reports.Run(ctx, owner, models.ReportRequest{
		SQL: "SELECT d.title, c.name FROM deals d JOIN companies c ON c.id = d.company_id WHERE d.stage = 'lead'",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "name"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "new logo", res.Rows[0]["title"])
	assert.Equal(t, "Acme", res.Rows[0]["name"])

	res, err = sm.Reports.Run(ctx, owner, models.ReportRequest{
		SQL: "SELECT COUNT(*) AS n FROM deals WHERE title LIKE '%?%' OR stage IN ('lead', 'proposal')",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 2, res.Rows[0]["n"])
}
