package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/InfradynAB/infradyn1-sub007/internal/model"
)

var (
	digestOrg   string
	digestLimit int
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the open-conflict digest for a scope",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		conflicts, err := e.Detector.Digest(ctx, model.Scope{OrgID: digestOrg}, digestLimit)
		if err != nil {
			return eris.Wrap(err, "conflict digest")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(conflicts); err != nil {
			return eris.Wrap(err, "encode digest")
		}

		zap.L().Info("digest complete",
			zap.String("org", digestOrg),
			zap.Int("open", len(conflicts)),
		)
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVar(&digestOrg, "org", "", "organization scope (required)")
	digestCmd.Flags().IntVar(&digestLimit, "limit", 100, "max conflicts to list")
	_ = digestCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(digestCmd)
}
