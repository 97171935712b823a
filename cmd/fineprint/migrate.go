package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/bootstrap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the quota table in the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := bootstrap.OpenRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		zap.L().Info("quota store migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.Redacted()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write([]byte(out))
		return err
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, configCmd)
}
