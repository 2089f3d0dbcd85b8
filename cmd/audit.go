package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/archive"
	"github.com/vantagehq/marketscope/internal/browser"
	"github.com/vantagehq/marketscope/internal/crawler"
	"github.com/vantagehq/marketscope/internal/llmclient"
	"github.com/vantagehq/marketscope/internal/observability"
	"github.com/vantagehq/marketscope/internal/orchestrator"
	"github.com/vantagehq/marketscope/internal/reporting"
	"github.com/vantagehq/marketscope/internal/store"
)

// auditFlags collects per-run flag values; cfg is not loaded until
// PersistentPreRunE, so flags cannot bind into it directly.
var auditFlags = struct {
	company      string
	industry     string
	competitors  []string
	maxRevisions int
	analyst      string
}{}

var auditCmd = &cobra.Command{
	Use:   "audit [target-url]",
	Short: "Run a full marketing audit against a website.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := observability.GetLogger()

		cfg.Audit.TargetURL = strings.TrimRight(args[0], "/")
		cfg.Audit.CompanyName = auditFlags.company
		cfg.Audit.Industry = auditFlags.industry
		cfg.Audit.Competitors = auditFlags.competitors
		cfg.Audit.MaxRevisions = auditFlags.maxRevisions
		cfg.Audit.AnalystName = auditFlags.analyst
		if cfg.Audit.CompanyName == "" {
			cfg.Audit.CompanyName = companyFromURL(cfg.Audit.TargetURL)
		}
		if err := cfg.ValidateAudit(); err != nil {
			return err
		}

		maxPages, _ := cmd.Flags().GetInt("max-pages")
		if maxPages > 0 {
			cfg.Crawler.MaxPages = maxPages
		}
		outputPath, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		if outputPath != "" {
			cfg.Report.Output = outputPath
		}
		if format != "" {
			cfg.Report.Format = format
		}

		st := store.New(store.Config{
			CompanyName:      cfg.Audit.CompanyName,
			CompanyWebsite:   cfg.Audit.TargetURL,
			Industry:         cfg.Audit.Industry,
			AuditDate:        time.Now().Format("2006-01-02"),
			AnalystName:      cfg.Audit.AnalystName,
			Competitors:      cfg.Audit.Competitors,
			MaxPages:         cfg.Crawler.MaxPages,
			MaxRevisions:     cfg.Audit.MaxRevisions,
			MentionSearchURL: cfg.Social.SearchURL,
		})

		llm, err := llmclient.New(cfg.LLM, logger)
		if err != nil {
			logger.Warn("Text generation unavailable, running deterministic analysis only", zap.Error(err))
			llm = llmclient.Unavailable{}
		}

		var capturer schemas.ScreenshotCapturer
		if cfg.Browser.Enabled {
			c, err := browser.NewCapturer(ctx, cfg.Browser, logger)
			if err != nil {
				logger.Warn("Browser unavailable, skipping screenshot capture", zap.Error(err))
			} else {
				capturer = c
				defer c.Close()
			}
		}

		orch, err := orchestrator.New(st, crawler.New(cfg.Crawler, logger), llm, capturer, logger)
		if err != nil {
			return err
		}

		report, err := orch.RunAudit(ctx)
		if err != nil {
			return fmt.Errorf("audit failed: %w", err)
		}
		logger.Info("Revision summary", zap.String("summary", orch.RevisionSummary()))

		reporter, err := reporting.New(cfg.Report.Format, cfg.Report.Output)
		if err != nil {
			return err
		}
		if err := reporter.Write(report); err != nil {
			reporter.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}
		if err := reporter.Close(); err != nil {
			return fmt.Errorf("failed to finalize report: %w", err)
		}

		if cfg.Archive.Enabled {
			archiveReport(ctx, report, logger)
		}
		return nil
	},
}

// archiveReport persists the report when the archive is configured. The
// audit result has already been written; archive failures only warn.
func archiveReport(ctx context.Context, report *schemas.AuditReport, logger *zap.Logger) {
	pool, err := pgxpool.New(ctx, cfg.Archive.DatabaseURL)
	if err != nil {
		logger.Warn("Report archive unavailable", zap.Error(err))
		return
	}
	defer pool.Close()

	arch, err := archive.New(ctx, pool, logger)
	if err != nil {
		logger.Warn("Report archive unavailable", zap.Error(err))
		return
	}
	if err := arch.SaveReport(ctx, report); err != nil {
		logger.Warn("Failed to archive report", zap.Error(err))
	}
}

func companyFromURL(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	host := strings.TrimPrefix(u.Host, "www.")
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return target
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

func init() {
	auditCmd.Flags().StringVar(&auditFlags.company, "company", "", "Company name (defaults to the target domain)")
	auditCmd.Flags().StringVar(&auditFlags.industry, "industry", "", "Industry label for the report")
	auditCmd.Flags().StringSliceVar(&auditFlags.competitors, "competitors", nil, "Competitor root URLs (comma separated)")
	auditCmd.Flags().IntVar(&auditFlags.maxRevisions, "max-revisions", 3, "Maximum critique-driven revision attempts")
	auditCmd.Flags().StringVar(&auditFlags.analyst, "analyst", "", "Analyst name for the report header")
	auditCmd.Flags().Int("max-pages", 0, "Maximum pages to crawl (overrides config)")
	auditCmd.Flags().StringP("output", "o", "", "Output file path for the report (default stdout)")
	auditCmd.Flags().StringP("format", "f", "", "Report format: json or markdown")
	rootCmd.AddCommand(auditCmd)
}
