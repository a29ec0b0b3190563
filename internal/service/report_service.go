package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReportService 任务进度报表导出
type ReportService interface {
	ExportTaskReport(ctx context.Context, taskID string, w io.Writer) error
}

const (
	sheetSummary     = "Summary"
	sheetAssignments = "Assignments"
	sheetCollections = "Collections"
)

type reportService struct {
	tasks   TaskService
	finance FinanceService
}

// NewReportService 创建报表服务
func NewReportService(tasks TaskService, finance FinanceService) ReportService {
	return &reportService{tasks: tasks, finance: finance}
}

// ExportTaskReport 将任务汇总、分配进度与收款记录写成 xlsx
func (s *reportService) ExportTaskReport(ctx context.Context, taskID string, w io.Writer) error {
	view, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	fin, err := s.finance.ListForTask(ctx, taskID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{sheetAssignments, sheetCollections} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	// 汇总
	rows := [][]interface{}{
		{"Task", view.Name},
		{"Location", view.Location},
		{"Circle", view.Circle},
		{"Period", fmt.Sprintf("%s - %s", view.StartDate.Format("2006-01-02"), view.EndDate.Format("2006-01-02"))},
		{"Status", string(view.EffectiveStatus)},
		{"Overall %", view.OverallPercentage},
		{},
		{"Category", "Kind", "Target", "Completed", "%"},
	}
	header := len(rows)
	for _, t := range view.Totals {
		rows = append(rows, []interface{}{string(t.Category), t.Kind, t.Target, t.Completed, t.Percentage})
	}
	rows = append(rows, []interface{}{}, []interface{}{"Finance type", "Target amount", "Collected", "%"})
	finHeader := len(rows)
	for _, l := range fin.Ledgers {
		rows = append(rows, []interface{}{l.FinanceType, l.TargetAmount.StringFixed(2), l.Collected.StringFixed(2), l.Percentage})
	}
	if err := writeRows(f, sheetSummary, rows); err != nil {
		return err
	}
	for _, r := range []int{1, header, finHeader} {
		if err := f.SetRowStyle(sheetSummary, r, r, bold); err != nil {
			return fmt.Errorf("failed to style summary: %w", err)
		}
	}

	// 分配进度,每个类目一行
	rows = [][]interface{}{{"Employee", "PersNo", "Role", "Status", "Category", "Target", "Completed", "Reviewer"}}
	for _, a := range view.Assignments {
		if len(a.Progress) == 0 {
			rows = append(rows, []interface{}{a.EmployeeID, a.EmployeePersNo, a.Role, a.Status, "", "", "", a.ReviewerID})
			continue
		}
		for _, p := range a.Progress {
			rows = append(rows, []interface{}{a.EmployeeID, a.EmployeePersNo, a.Role, a.Status, string(p.Category), p.Target, p.Completed, a.ReviewerID})
		}
	}
	if err := writeRows(f, sheetAssignments, rows); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetAssignments, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style assignments: %w", err)
	}

	// 收款记录
	rows = [][]interface{}{{"Submitted", "Submitter", "Finance type", "Amount", "Mode", "Reference", "Customer", "Status", "Reviewer", "Remarks"}}
	for _, e := range fin.Entries {
		rows = append(rows, []interface{}{
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.SubmitterID,
			e.FinanceType,
			e.Amount.StringFixed(2),
			e.PaymentMode,
			e.TransactionReference,
			e.Customer.Data().Name,
			e.Status,
			e.ReviewerID,
			e.ReviewRemarks,
		})
	}
	if err := writeRows(f, sheetCollections, rows); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetCollections, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style collections: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
