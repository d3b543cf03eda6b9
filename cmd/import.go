package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/milestone"
	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

var (
	importCSVPath string
	importOrg     string
	importProject string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import milestone schedules from CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrapf(err, "open %s", importCSVPath)
		}
		defer f.Close() //nolint:errcheck

		schedules, err := milestone.ReadScheduleCSV(f)
		if err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		scope := model.Scope{OrgID: importOrg, ProjectID: importProject}
		var created int
		for poID, entries := range schedules {
			ms, err := e.Milestones.EstablishSchedule(ctx, scope, poID, entries)
			if err != nil {
				return eris.Wrapf(err, "import po %s", poID)
			}
			created += len(ms)
		}

		zap.L().Info("import complete",
			zap.Int("purchase_orders", len(schedules)),
			zap.Int("milestones", created),
			zap.String("csv", importCSVPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importOrg, "org", "", "organization scope (required)")
	importCmd.Flags().StringVar(&importProject, "project", "", "optional project scope")
	_ = importCmd.MarkFlagRequired("csv")
	_ = importCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(importCmd)
}
