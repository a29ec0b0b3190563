package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/aggregate"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/database"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

const storeTimeout = 5 * time.Second

// fixture 测试用服务集合,共享同一个内存数据库
type fixture struct {
	db        *gorm.DB
	hierarchy service.HierarchyService
	guard     *auth.ReviewGuard
	progress  service.ProgressService
	finance   service.FinanceService
	tasks     service.TaskService
	query     service.QueryService
	clock     *aggregate.FixedClock
}

// setupTestDB 创建迁移完成的内存数据库,单连接保证所有查询落在同一个库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	hierarchy := service.NewHierarchyService(db, config.HierarchyConfig{MaxDepth: 32, ExpandDepth: 2, MaxVisited: 10000}, storeTimeout, audit)
	guard := auth.NewReviewGuard(
		repository.NewAccountRepository(db),
		repository.NewHierarchyRepository(db),
		hierarchy,
		config.ReviewConfig{ManagementThreshold: "agm", CreatorMinRank: "sde"},
	)
	hierarchy.OnChange(guard.Invalidate)
	clock := aggregate.NewFixedClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	return &fixture{
		db:        db,
		hierarchy: hierarchy,
		guard:     guard,
		progress:  service.NewProgressService(db, guard, storeTimeout, audit),
		finance:   service.NewFinanceService(db, guard, storeTimeout, audit),
		tasks: service.NewTaskService(db, service.TaskServiceOptions{
			Guard:          guard,
			Clock:          clock,
			CreatorMinRank: "sde",
			StoreTimeout:   storeTimeout,
			AuditLogSvc:    audit,
		}),
		query: service.NewQueryService(db, storeTimeout),
		clock: clock,
	}
}

// seedOrg 写入一棵标准组织树:
//
//	P1 gm (KA)
//	└── P2 agm (KA)
//	    └── P3 sde (KA)
//	        ├── P4 jto (KA)
//	        └── P5 jto (KA)
//	X1 dgm (TN)
func (f *fixture) seedOrg(t *testing.T) {
	ctx := context.Background()
	people := []struct {
		persNo, name, account, role, circle, reportsTo string
	}{
		{"P1", "Asha Rao", "acc-gm", "gm", "KA", ""},
		{"P2", "Bala Nair", "acc-agm", "agm", "KA", "P1"},
		{"P3", "Chitra Iyer", "acc-sde", "sde", "KA", "P2"},
		{"P4", "Dev Kumar", "acc-jto", "jto", "KA", "P3"},
		{"P5", "Esha Menon", "acc-jto2", "jto", "KA", "P3"},
		{"X1", "Xavier Das", "acc-tn", "dgm", "TN", ""},
	}
	for i, p := range people {
		f.addPerson(t, ctx, p.persNo, p.name, p.reportsTo, p.circle, i)
		require.NoError(t, f.hierarchy.SaveAccount(ctx, &service.AccountRequest{ID: p.account, Name: p.name, Role: p.role, Circle: p.circle}))
		require.NoError(t, f.hierarchy.LinkMasterRecordToAccount(ctx, p.persNo, p.account))
	}
}

func (f *fixture) addPerson(t *testing.T, ctx context.Context, persNo, name, reportsTo, circle string, sortOrder int) {
	_, err := f.hierarchy.UpsertMasterRecord(ctx, &service.MasterRecordRequest{
		PersNo:          persNo,
		Name:            name,
		Circle:          circle,
		SortOrder:       sortOrder,
		ReportingPersNo: reportsTo,
	})
	require.NoError(t, err)
}

// closeTaskAfterNextRead 在下一次读取 tasks 表之后把任务置为 completed,
// 让事务外的生命周期检查读到过期状态
func (f *fixture) closeTaskAfterNextRead(t *testing.T, taskID string) {
	var armed atomic.Bool
	armed.Store(true)
	root := f.db
	err := f.db.Callback().Query().After("gorm:query").Register("test:close_task", func(tx *gorm.DB) {
		if tx.Statement.Table != "tasks" || !armed.CompareAndSwap(true, false) {
			return
		}
		err := root.Session(&gorm.Session{NewDB: true}).
			Model(&model.TaskModel{}).
			Where("id = ?", taskID).
			Update("lifecycle", "completed").Error
		require.NoError(t, err)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.db.Callback().Query().Remove("test:close_task") })
}

// findAssignment 在任务视图中查找员工的分配
func findAssignment(t *testing.T, view *service.TaskView, employeeID string) *service.AssignmentView {
	for _, a := range view.Assignments {
		if a.EmployeeID == employeeID {
			return a
		}
	}
	t.Fatalf("no assignment for %s on task %s", employeeID, view.ID)
	return nil
}

func dates() (time.Time, time.Time) {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
}

// codeOf 取领域错误码
func codeOf(err error) string {
	var ae *apperror.Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// createFieldTask 由 SDE 创建任务,JTO 为主负责人
func (f *fixture) createFieldTask(t *testing.T) *service.TaskView {
	start, end := dates()
	view, err := f.tasks.CreateTask(context.Background(), &service.CreateTaskRequest{
		Name:              "Koramangala SIM drive",
		Location:          "Koramangala",
		StartDate:         start,
		EndDate:           end,
		Categories:        []string{"SIM", "FTTH", "FIN_LC"},
		Targets:           map[string]int64{"SIM": 10, "FTTH": 5},
		FinanceTargets:    map[string]decimal.Decimal{"FIN_LC": decimal.NewFromInt(1000)},
		PrimaryAssigneeID: "acc-jto",
		CreatorID:         "acc-sde",
	})
	require.NoError(t, err)
	return view
}
