package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

var (
	chaseOrg     string
	chaseProject string
)

var chaseCmd = &cobra.Command{
	Use:   "chase",
	Short: "Run one chase scan over the scope's open milestones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("chase"); err != nil {
			return err
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Chase.Scan(ctx, model.Scope{OrgID: chaseOrg, ProjectID: chaseProject})
		if err != nil {
			return eris.Wrap(err, "chase scan")
		}

		zap.L().Info("chase scan complete",
			zap.Int("processed", result.Processed),
			zap.Int("reminded", result.Reminded),
			zap.Int("escalated", result.Escalated),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

func init() {
	chaseCmd.Flags().StringVar(&chaseOrg, "org", "", "organization scope (required)")
	chaseCmd.Flags().StringVar(&chaseProject, "project", "", "optional project scope")
	_ = chaseCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(chaseCmd)
}
