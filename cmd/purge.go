/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/container"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
)

// purgeCmd 清理未关联账号的主数据
var purgeCmd = &cobra.Command{
	Use:   "purge-unlinked",
	Short: "Delete master records not linked to any account",
	Long: `Delete employee master records that are not linked to a login account.
Run it after a roster re-import to drop people who left the organisation.
Linked records and their reporting relations are never touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctr, err := container.NewContainer(appConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer func() { _ = ctr.Close() }()

		n, err := ctr.HierarchyService().PurgeUnlinked(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to purge master records: %w", err)
		}
		logger.Component("purge").WithField("deleted", n).Info("unlinked master records purged")
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d unlinked master records\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
