package service_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

// TestReportService_ExportTaskReport 测试导出的工作簿结构
func TestReportService_ExportTaskReport(t *testing.T) {
	f := newFixture(t)
	f.seedOrg(t)
	ctx := context.Background()

	task := f.createFieldTask(t)
	mgr := findAssignment(t, task, "acc-jto")
	_, err := f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 4, "acc-jto")
	require.NoError(t, err)
	entry, err := f.finance.SubmitCollection(ctx, collection(task.ID, "acc-jto", 250, "CASH", ""))
	require.NoError(t, err)
	_, err = f.finance.Approve(ctx, entry.ID, "acc-sde")
	require.NoError(t, err)

	reports := service.NewReportService(f.tasks, f.finance)
	var buf bytes.Buffer
	require.NoError(t, reports.ExportTaskReport(ctx, task.ID, &buf))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	assert.Equal(t, []string{"Summary", "Assignments", "Collections"}, wb.GetSheetList())

	name, err := wb.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Koramangala SIM drive", name)

	rows, err := wb.GetRows("Assignments")
	require.NoError(t, err)
	// 表头 + creator 一行 + manager 两个类目
	require.Len(t, rows, 4)
	assert.Equal(t, "Employee", rows[0][0])

	rows, err = wb.GetRows("Collections")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "FIN_LC", rows[1][2])
	assert.Equal(t, "250.00", rows[1][3])
	assert.Equal(t, "approved", rows[1][7])

	err = reports.ExportTaskReport(ctx, "missing", &buf)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
