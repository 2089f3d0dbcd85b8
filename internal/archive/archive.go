// Package archive persists finished audit reports to PostgreSQL so runs
// can be compared over time. The archive is optional; the pipeline never
// depends on it.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Archive is the PostgreSQL-backed report store.
type Archive struct {
	pool DBPool
	log  *zap.Logger
}

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS audit_reports (
    run_id UUID PRIMARY KEY,
    company_name TEXT NOT NULL,
    company_website TEXT NOT NULL,
    industry TEXT,
    audit_date TEXT NOT NULL,
    overall_pct DOUBLE PRECISION NOT NULL,
    overall_grade TEXT NOT NULL,
    strategic_friction JSONB,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS audit_modules (
    run_id UUID NOT NULL REFERENCES audit_reports(run_id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    weight DOUBLE PRECISION NOT NULL,
    actual_points INTEGER NOT NULL,
    max_points INTEGER NOT NULL,
    percentage DOUBLE PRECISION NOT NULL,
    grade TEXT NOT NULL,
    payload JSONB NOT NULL,
    PRIMARY KEY (run_id, name)
);
CREATE INDEX IF NOT EXISTS idx_audit_reports_company ON audit_reports (company_name, created_at DESC);
`

// New verifies the connection and ensures the schema exists.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Archive, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTablesSQL); err != nil {
		return nil, fmt.Errorf("failed to ensure archive schema: %w", err)
	}
	return &Archive{pool: pool, log: logger.Named("archive")}, nil
}

// SaveReport persists the report header and all module rows in one
// transaction.
func (a *Archive) SaveReport(ctx context.Context, report *schemas.AuditReport) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			a.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	frictionJSON := []byte("null")
	if report.StrategicFriction != nil {
		frictionJSON, err = json.Marshal(report.StrategicFriction)
		if err != nil {
			return fmt.Errorf("failed to encode strategic friction: %w", err)
		}
	}

	insertReport := `
        INSERT INTO audit_reports
            (run_id, company_name, company_website, industry, audit_date,
             overall_pct, overall_grade, strategic_friction, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
    `
	_, err = tx.Exec(ctx, insertReport,
		report.RunID, report.CompanyName, report.CompanyWebsite,
		report.Industry, report.AuditDate,
		report.OverallPercentage(), string(report.OverallGrade()),
		frictionJSON, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	if len(report.Modules) > 0 {
		rows := make([][]interface{}, len(report.Modules))
		for i, m := range report.Modules {
			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("failed to encode module %s: %w", m.Name, err)
			}
			rows[i] = []interface{}{
				report.RunID, m.Name, m.Weight,
				m.ActualPoints(), m.MaxPoints(), m.Percentage(),
				string(m.Grade()), payload,
			}
		}
		copyCount, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"audit_modules"},
			[]string{"run_id", "name", "weight", "actual_points", "max_points", "percentage", "grade", "payload"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy modules: %w", err)
		}
		if int(copyCount) != len(report.Modules) {
			return fmt.Errorf("mismatch in copied module count: expected %d, got %d", len(report.Modules), copyCount)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	a.log.Info("Report archived",
		zap.String("run_id", report.RunID),
		zap.String("company", report.CompanyName),
		zap.Int("modules", len(report.Modules)))
	return nil
}

// ListReports returns archived report summaries for a company, newest
// first. An empty company name lists everything.
func (a *Archive) ListReports(ctx context.Context, companyName string) ([]schemas.ArchivedReport, error) {
	query := `
        SELECT r.run_id, r.company_name, r.company_website, r.audit_date, r.overall_pct,
               (SELECT COUNT(*) FROM audit_modules m WHERE m.run_id = r.run_id) AS module_count
        FROM audit_reports r
        WHERE ($1 = '' OR r.company_name = $1)
        ORDER BY r.created_at DESC;
    `
	rows, err := a.pool.Query(ctx, query, companyName)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []schemas.ArchivedReport
	for rows.Next() {
		var r schemas.ArchivedReport
		if err := rows.Scan(&r.RunID, &r.CompanyName, &r.CompanyWebsite, &r.AuditDate, &r.OverallPct, &r.ModuleCount); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read report rows: %w", err)
	}
	return reports, nil
}
