package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	"github.com/noah-isme/maintenance-portal-api/internal/repository"
	"github.com/noah-isme/maintenance-portal-api/internal/service"
	"github.com/noah-isme/maintenance-portal-api/migrations"
	"github.com/noah-isme/maintenance-portal-api/pkg/database"
	"github.com/noah-isme/maintenance-portal-api/pkg/storage"
)

// operator is the identity used for exports run from the command line.
var operator = models.Actor{UserID: "portalctl", Role: models.RoleEmployee}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	run := func(action func(m *database.Migrator, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			deps, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			migrator, err := database.NewMigrator(deps.db.DB, migrations.FS, deps.logger)
			if err != nil {
				return err
			}
			return action(migrator, cmd)
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(m *database.Migrator, cmd *cobra.Command) error {
				if err := m.Up(cmd.Context()); err != nil {
					return err
				}
				version, err := m.Version(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: run(func(m *database.Migrator, cmd *cobra.Command) error {
				return m.Down(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print applied and pending migrations",
			RunE: run(func(m *database.Migrator, cmd *cobra.Command) error {
				return m.Status(cmd.Context())
			}),
		},
	)
	return cmd
}

func newSweepCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "sweep-orphans",
		Short: "Delete stored proofs no request references",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			proofs, err := storage.New(ctx, deps.cfg.Uploads, deps.cfg.S3)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("grace") {
				grace = deps.cfg.Maintenance.SweepGrace
			}
			janitor := service.NewProofJanitor(proofs, repository.NewRequestRepository(deps.db), nil, deps.logger, grace)
			result, err := janitor.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d deleted=%d failed=%d\n", result.Scanned, result.Deleted, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d proofs could not be deleted", result.Failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", time.Hour, "Minimum object age before it is considered orphaned")
	return cmd
}

type exportOptions struct {
	format   string
	status   string
	workType string
	block    string
	from     string
	to       string
	out      string
	timezone string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a maintenance request report to disk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			deps, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			tz := opts.timezone
			if tz == "" {
				tz = deps.cfg.Reports.Timezone
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", tz, err)
			}
			filter, err := opts.filter(loc)
			if err != nil {
				return err
			}

			svc := service.NewReportService(repository.NewRequestRepository(deps.db), nil, deps.logger, service.ReportConfig{
				Title:    deps.cfg.Reports.Title,
				Location: loc,
			})
			doc, err := svc.Generate(ctx, operator, filter, models.ReportFormat(strings.ToLower(opts.format)))
			if err != nil {
				return err
			}

			target := opts.out
			if target == "" {
				target = doc.Filename
			} else if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
				target = filepath.Join(target, doc.Filename)
			}
			if err := os.WriteFile(target, doc.Body, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			deps.logger.Info("report exported", zap.String("path", target), zap.Int("rows", doc.Rows))
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.format, "format", string(models.ReportFormatXLSX), "Report format: xlsx, pdf or csv")
	cmd.Flags().StringVar(&opts.status, "status", "", "Only include requests with this status")
	cmd.Flags().StringVar(&opts.workType, "work-type", "", "Only include requests of this work type")
	cmd.Flags().StringVar(&opts.block, "block", "", "Only include requests from this block")
	cmd.Flags().StringVar(&opts.from, "from", "", "First creation date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Last creation date to include (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output file or directory")
	cmd.Flags().StringVar(&opts.timezone, "timezone", "", "Timezone for dates, defaults to REPORT_TIMEZONE")
	return cmd
}

// filter turns the flag values into a request filter. Dates are whole days
// in loc and the to date is inclusive.
func (o exportOptions) filter(loc *time.Location) (models.RequestFilter, error) {
	filter, err := models.NewRequestFilter(o.status, o.workType, o.block, o.from, o.to, loc)
	if err != nil {
		return filter, fmt.Errorf("--%w", err)
	}
	return filter, nil
}
