/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/container"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/utils"
)

// exportCmd 导出任务进度报表
var exportCmd = &cobra.Command{
	Use:   "export <task-id>",
	Short: "Export a task progress report as an xlsx workbook",
	Long: `Export the progress report of a task to an Excel workbook.
The workbook contains a summary sheet with per-category totals and finance
ledgers, one row per assignment and category, and all finance collections.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]
		if err := utils.ValidateID(taskID); err != nil {
			return fmt.Errorf("invalid task id: %w", err)
		}
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = fmt.Sprintf("task-%s.xlsx", taskID)
		}

		ctr, err := container.NewContainer(appConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer func() { _ = ctr.Close() }()

		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", out, err)
		}
		if err := ctr.ReportService().ExportTaskReport(cmd.Context(), taskID, f); err != nil {
			_ = f.Close()
			_ = os.Remove(out)
			return fmt.Errorf("failed to export report: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "report written to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: task-<id>.xlsx)")
}
