package cmd

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/vantagehq/marketscope/internal/archive"
	"github.com/vantagehq/marketscope/internal/observability"
)

var historyCmd = &cobra.Command{
	Use:   "history [company-name]",
	Short: "List archived audit reports.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Archive.Enabled || cfg.Archive.DatabaseURL == "" {
			return errors.New("report archive is not configured; set archive.enabled and archive.database_url")
		}
		ctx := cmd.Context()

		pool, err := pgxpool.New(ctx, cfg.Archive.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to archive: %w", err)
		}
		defer pool.Close()

		arch, err := archive.New(ctx, pool, observability.GetLogger())
		if err != nil {
			return err
		}

		company := ""
		if len(args) == 1 {
			company = args[0]
		}
		reports, err := arch.ListReports(ctx, company)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Println("No archived reports found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN ID\tCOMPANY\tWEBSITE\tDATE\tSCORE\tMODULES")
		for _, r := range reports {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f%%\t%d\n",
				r.RunID, r.CompanyName, r.CompanyWebsite, r.AuditDate, r.OverallPct, r.ModuleCount)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
