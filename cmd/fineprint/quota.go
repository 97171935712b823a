package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	appquota "github.com/bryanwahyu/fineprint/internal/application/quota"
	"github.com/bryanwahyu/fineprint/internal/bootstrap"
	"github.com/bryanwahyu/fineprint/internal/domain/quota"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and reset per-user scan quotas",
}

// openQuota connects to the configured store without touching the model.
func openQuota(cmd *cobra.Command) (*appquota.Service, func(), error) {
	repo, err := bootstrap.OpenRepository(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	svc, err := bootstrap.NewQuota(cfg, repo)
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	return svc, func() { repo.Close() }, nil
}

var quotaShowCmd = &cobra.Command{
	Use:   "show <user_id>",
	Short: "Show a user's scan usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuota(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		rec, remaining, err := svc.Status(cmd.Context(), args[0])
		if errors.Is(err, quota.ErrNotFound) {
			return fmt.Errorf("user %s not found", args[0])
		}
		if err != nil {
			return err
		}

		left := fmt.Sprint(remaining)
		if remaining == quota.Unlimited {
			left = "unlimited"
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "user:             %s\n", rec.UserID)
		fmt.Fprintf(out, "paid:             %t\n", rec.Paid)
		fmt.Fprintf(out, "scans used:       %d\n", rec.ScansUsedToday)
		fmt.Fprintf(out, "last scan date:   %s\n", rec.LastScanDate)
		fmt.Fprintf(out, "remaining today:  %s\n", left)
		return nil
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset <user_id>",
	Short: "Clear a user's scan count for today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openQuota(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := svc.Reset(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, quota.ErrNotFound) {
				return fmt.Errorf("user %s not found", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset scan count for user %s\n", args[0])
		return nil
	},
}

func init() {
	quotaCmd.AddCommand(quotaShowCmd, quotaResetCmd)
	rootCmd.AddCommand(quotaCmd)
}
