package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/pipeline"
	"github.com/nexuscrm/salescrm/internal/infrastructure/database"
	"github.com/nexuscrm/salescrm/pkg/constants"
)

// AssertionViolation is a single integrity problem found at startup.
type AssertionViolation struct {
	Category    string // e.g. "MissingTable", "InvalidStage"
	Severity    string // "error" or "warning"
	Object      string // table affected
	Description string
}

// AssertionResult contains all violations found during assertion checks.
type AssertionResult struct {
	Violations []AssertionViolation
	Passed     bool
}

// Errors counts violations with error severity.
func (r *AssertionResult) Errors() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == severityError {
			n++
		}
	}
	return n
}

const (
	severityError   = "error"
	severityWarning = "warning"
)

// RunAssertions checks the migrated database for data the services would
// misread. Violations are logged. In strict mode any error-severity
// violation fails startup.
func RunAssertions(ctx context.Context, conn *database.Connection, strictMode bool) (*AssertionResult, error) {
	zap.L().Info("running startup assertions")

	result := &AssertionResult{Passed: true}

	assertCriticalTablesExist(ctx, conn, result)
	if result.Errors() > 0 {
		// The data checks below would only repeat the missing-table errors.
		return report(result, strictMode)
	}
	assertAdminExists(ctx, conn, result)
	assertDealStages(ctx, conn, result)
	assertClosedAtConsistency(ctx, conn, result)
	assertDealReferences(ctx, conn, result)

	return report(result, strictMode)
}

func report(result *AssertionResult, strictMode bool) (*AssertionResult, error) {
	if len(result.Violations) == 0 {
		zap.L().Info("all assertions passed")
		return result, nil
	}

	result.Passed = false
	for _, v := range result.Violations {
		zap.L().Warn("assertion violation",
			zap.String("severity", v.Severity),
			zap.String("category", v.Category),
			zap.String("object", v.Object),
			zap.String("description", v.Description))
	}

	if strictMode && result.Errors() > 0 {
		return result, fmt.Errorf("assertion failures in strict mode: %d error(s)", result.Errors())
	}
	return result, nil
}

func (r *AssertionResult) add(category, severity, object, description string) {
	r.Violations = append(r.Violations, AssertionViolation{
		Category:    category,
		Severity:    severity,
		Object:      object,
		Description: description,
	})
}

func count(ctx context.Context, conn *database.Connection, q string, args ...interface{}) (int, error) {
	var n int
	err := conn.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// assertCriticalTablesExist checks every CRM table can be read.
func assertCriticalTablesExist(ctx context.Context, conn *database.Connection, result *AssertionResult) {
	for _, t := range constants.CRMTables {
		rows, err := conn.QueryContext(ctx, "SELECT 1 FROM "+t+" LIMIT 1")
		if err != nil {
			result.add("MissingTable", severityError, t,
				fmt.Sprintf("CRM table '%s' is missing from the database.", t))
			continue
		}
		_ = rows.Close()
	}
}

// assertAdminExists warns when nobody can run unrestricted reports or list
// users. A fresh database has no profiles until the first registration.
func assertAdminExists(ctx context.Context, conn *database.Connection, result *AssertionResult) {
	total, err := count(ctx, conn, "SELECT COUNT(*) FROM "+constants.TableUserProfiles)
	if err != nil {
		zap.L().Warn("could not query profiles", zap.Error(err))
		return
	}
	if total == 0 {
		return
	}
	admins, err := count(ctx, conn, "SELECT COUNT(*) FROM "+constants.TableUserProfiles+" WHERE role = ?", constants.RoleAdmin)
	if err != nil {
		zap.L().Warn("could not query profiles", zap.Error(err))
		return
	}
	if admins == 0 {
		result.add("MissingData", severityWarning, constants.TableUserProfiles,
			"No admin profile found. Reports are owner scoped for everyone.")
	}
}

// assertDealStages checks every deal has a known stage and a probability
// between 0 and 100.
func assertDealStages(ctx context.Context, conn *database.Connection, result *AssertionResult) {
	placeholders := make([]string, len(pipeline.Stages))
	args := make([]interface{}, len(pipeline.Stages))
	for i, s := range pipeline.Stages {
		placeholders[i] = "?"
		args[i] = string(s)
	}
	bad, err := count(ctx, conn,
		"SELECT COUNT(*) FROM "+constants.TableDeals+" WHERE stage NOT IN ("+strings.Join(placeholders, ", ")+")", args...)
	if err != nil {
		zap.L().Warn("could not query deal stages", zap.Error(err))
		return
	}
	if bad > 0 {
		result.add("InvalidStage", severityError, constants.TableDeals,
			fmt.Sprintf("%d deal(s) have a stage outside the pipeline.", bad))
	}

	bad, err = count(ctx, conn,
		"SELECT COUNT(*) FROM "+constants.TableDeals+" WHERE probability < 0 OR probability > 100")
	if err != nil {
		zap.L().Warn("could not query deal probabilities", zap.Error(err))
		return
	}
	if bad > 0 {
		result.add("InvalidProbability", severityError, constants.TableDeals,
			fmt.Sprintf("%d deal(s) have a probability outside 0-100.", bad))
	}
}

// assertClosedAtConsistency checks closed_at is set exactly for closed deals.
func assertClosedAtConsistency(ctx context.Context, conn *database.Connection, result *AssertionResult) {
	closed := []interface{}{string(pipeline.StageClosedWon), string(pipeline.StageClosedLost)}

	n, err := count(ctx, conn,
		"SELECT COUNT(*) FROM "+constants.TableDeals+" WHERE stage IN (?, ?) AND closed_at IS NULL", closed...)
	if err != nil {
		zap.L().Warn("could not query closed deals", zap.Error(err))
		return
	}
	if n > 0 {
		result.add("ClosedAt", severityWarning, constants.TableDeals,
			fmt.Sprintf("%d closed deal(s) have no closed_at.", n))
	}

	n, err = count(ctx, conn,
		"SELECT COUNT(*) FROM "+constants.TableDeals+" WHERE stage NOT IN (?, ?) AND closed_at IS NOT NULL", closed...)
	if err != nil {
		zap.L().Warn("could not query open deals", zap.Error(err))
		return
	}
	if n > 0 {
		result.add("ClosedAt", severityWarning, constants.TableDeals,
			fmt.Sprintf("%d open deal(s) still carry closed_at.", n))
	}
}

// assertDealReferences checks deals only link contacts and companies of
// their own owner.
func assertDealReferences(ctx context.Context, conn *database.Connection, result *AssertionResult) {
	checks := []struct {
		table, column string
	}{
		{constants.TableContacts, constants.FieldContactID},
		{constants.TableCompanies, constants.FieldCompanyID},
	}
	for _, c := range checks {
		q := "SELECT COUNT(*) FROM " + constants.TableDeals + " d " +
			"LEFT JOIN " + c.table + " r ON r.id = d." + c.column + " " +
			"WHERE d." + c.column + " IS NOT NULL AND (r.id IS NULL OR r.user_id <> d.user_id)"
		n, err := count(ctx, conn, q)
		if err != nil {
			zap.L().Warn("could not query deal references", zap.String("column", c.column), zap.Error(err))
			continue
		}
		if n > 0 {
			result.add("Relationship", severityWarning, constants.TableDeals,
				fmt.Sprintf("%d deal(s) reference a missing or foreign %s.", n, c.column))
		}
	}
}
