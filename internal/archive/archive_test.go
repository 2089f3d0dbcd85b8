package archive

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vantagehq/marketscope/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyValue accepts any argument (timestamps and encoded payloads).
var anyValue = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

func sampleReport() *schemas.AuditReport {
	seo := schemas.NewModuleScore("SEO & Technical", 1.0)
	seo.Items = []schemas.ScoreItem{{Name: "Meta Tags", MaxPoints: 15, ActualPoints: 12}}
	trust := schemas.NewModuleScore("Trust & Social Proof", 1.0)
	trust.Items = []schemas.ScoreItem{{Name: "Testimonials", MaxPoints: 50, ActualPoints: 20}}

	return &schemas.AuditReport{
		RunID:          "7f2d1f0e-61a1-4f4b-9f57-2f4f8a2f1c11",
		CompanyName:    "Acme",
		CompanyWebsite: "https://acme.io",
		Industry:       "SaaS",
		AuditDate:      "2026-08-30",
		Modules:        []*schemas.ModuleScore{seo, trust},
		StrategicFriction: &schemas.StrategicFriction{
			Title: "The Leaky Bucket",
		},
	}
}

var moduleColumns = []string{"run_id", "name", "weight", "actual_points", "max_points", "percentage", "grade", "payload"}

func TestNewArchive(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should ensure the schema on startup", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		mockPool.ExpectExec(flexibleSQLMatcher(createTablesSQL)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveReport(t *testing.T) {
	ctx := context.Background()

	newArchive := func(t *testing.T, logger *zap.Logger) (*Archive, pgxmock.PgxPoolIface) {
		t.Helper()
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		t.Cleanup(mockPool.Close)

		mockPool.ExpectPing().WillReturnError(nil)
		mockPool.ExpectExec(flexibleSQLMatcher(createTablesSQL)).
			WillReturnResult(pgxmock.NewResult("CREATE", 0))
		a, err := New(ctx, mockPool, logger)
		require.NoError(t, err)
		return a, mockPool
	}

	t.Run("should persist header and modules without rollback errors", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		a, mockPool := newArchive(t, zap.New(observedZapCore))

		report := sampleReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO audit_reports").
			WithArgs(
				report.RunID, report.CompanyName, report.CompanyWebsite,
				report.Industry, report.AuditDate,
				report.OverallPercentage(), string(report.OverallGrade()),
				anyValue, anyValue,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"audit_modules"}, moduleColumns).
			WillReturnResult(2)

		// Expect Commit AND the subsequent Rollback (which returns ErrTxClosed)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, a.SaveReport(ctx, report))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should fail when copied module count mismatches", func(t *testing.T) {
		a, mockPool := newArchive(t, zap.NewNop())

		report := sampleReport()

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO audit_reports").
			WithArgs(
				report.RunID, report.CompanyName, report.CompanyWebsite,
				report.Industry, report.AuditDate,
				report.OverallPercentage(), string(report.OverallGrade()),
				anyValue, anyValue,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"audit_modules"}, moduleColumns).
			WillReturnResult(1)
		mockPool.ExpectRollback()

		err := a.SaveReport(ctx, report)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied module count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should roll back when the header insert fails", func(t *testing.T) {
		a, mockPool := newArchive(t, zap.NewNop())

		report := sampleReport()
		insertErr := errors.New("duplicate key")

		mockPool.ExpectBegin()
		mockPool.ExpectExec("INSERT INTO audit_reports").
			WithArgs(
				report.RunID, report.CompanyName, report.CompanyWebsite,
				report.Industry, report.AuditDate,
				report.OverallPercentage(), string(report.OverallGrade()),
				anyValue, anyValue,
			).
			WillReturnError(insertErr)
		mockPool.ExpectRollback()

		err := a.SaveReport(ctx, report)
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestListReports(t *testing.T) {
	ctx := context.Background()

	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	mockPool.ExpectExec(flexibleSQLMatcher(createTablesSQL)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	a, err := New(ctx, mockPool, zap.NewNop())
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"run_id", "company_name", "company_website", "audit_date", "overall_pct", "module_count"}).
		AddRow("run-2", "Acme", "https://acme.io", "2026-08-30", 71.5, 10).
		AddRow("run-1", "Acme", "https://acme.io", "2026-07-01", 64.0, 10)
	mockPool.ExpectQuery("SELECT r.run_id").
		WithArgs("Acme").
		WillReturnRows(rows)

	reports, err := a.ListReports(ctx, "Acme")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "run-2", reports[0].RunID)
	assert.InDelta(t, 71.5, reports[0].OverallPct, 0.001)
	assert.Equal(t, 10, reports[0].ModuleCount)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
