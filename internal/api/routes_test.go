package api_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

// TestHealthAndRouting 测试健康检查、认证与未知路由
func TestHealthAndRouting(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 缺少账号头
	w = s.do(t, http.MethodGet, "/api/v1/me/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/nothing-here", "acc-jto", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 非法路径 ID
	w = s.do(t, http.MethodGet, "/api/v1/tasks/bad.id", "acc-jto", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tasks/missing", "acc-jto", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestAssignmentReviewFlow 测试进度更新、提交与审核接口
func TestAssignmentReviewFlow(t *testing.T) {
	s := setupServer(t)
	task := s.createTask(t)
	mgr := assignmentOf(t, task, "acc-jto")
	base := "/api/v1/assignments/" + mgr.ID

	w := s.do(t, http.MethodPost, base+"/progress", "acc-jto", map[string]interface{}{"category": "SIM", "delta": 4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view service.AssignmentView
	decode(t, w, &view)
	assert.Equal(t, "in_progress", view.Status)

	// 未达标提交
	w = s.do(t, http.MethodPost, base+"/submit", "acc-jto", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "TARGETS_NOT_MET", env.Reason)

	// 未知类目在绑定阶段被拒绝
	w = s.do(t, http.MethodPost, base+"/progress", "acc-jto", map[string]interface{}{"category": "NOPE", "delta": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 收款类目不在进度单元里
	w = s.do(t, http.MethodPost, base+"/progress", "acc-jto", map[string]interface{}{"category": "FIN_LC", "delta": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CATEGORY_NOT_ASSIGNED", decode(t, w, nil).Reason)

	w = s.do(t, http.MethodPost, base+"/progress", "acc-jto", map[string]interface{}{"category": "SIM", "delta": 6})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, base+"/progress", "acc-jto", map[string]interface{}{"category": "FTTH", "delta": 5})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, base+"/submit", "acc-jto", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 同级不能审核
	w = s.do(t, http.MethodPost, base+"/approve", "acc-jto2", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not permitted", decode(t, w, nil).Message)

	w = s.do(t, http.MethodPost, base+"/reject", "acc-sde", map[string]string{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, base+"/approve", "acc-sde", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.Equal(t, "approved", view.Status)
	assert.Equal(t, "acc-sde", view.ReviewerID)

	w = s.do(t, http.MethodPost, base+"/approve", "acc-agm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_PROCESSED", decode(t, w, nil).Reason)

	w = s.do(t, http.MethodGet, base, "acc-jto", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var history []service.StateHistory
	w = s.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/history", "acc-jto", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &history)
	assert.NotEmpty(t, history)

	var mine []service.TaskView
	w = s.do(t, http.MethodGet, "/api/v1/me/tasks", "acc-jto", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].MyAssignment)
	assert.Equal(t, "approved", mine[0].MyAssignment.Status)
	assert.Equal(t, 100, mine[0].OverallPercentage)
}

// TestTaskEndpoints 测试任务创建、成员、生命周期、列表与报表
func TestTaskEndpoints(t *testing.T) {
	s := setupServer(t)

	// JTO 职级不足以创建任务
	w := s.do(t, http.MethodPost, "/api/v1/tasks", "acc-jto", map[string]interface{}{
		"name":       "Too junior",
		"start_date": "2026-03-01T00:00:00Z",
		"end_date":   "2026-03-31T00:00:00Z",
		"categories": []string{"SIM"},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/tasks", "acc-sde", map[string]interface{}{"name": "No categories"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	task := s.createTask(t)

	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/members", "acc-sde", map[string]interface{}{
		"employee_id": "acc-jto2",
		"targets":     map[string]int64{"SIM": 3},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// 非任务管理员不能加人
	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/members", "acc-jto2", map[string]interface{}{"employee_id": "acc-agm"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/status", "acc-sde", map[string]string{"status": "paused"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view service.TaskView
	decode(t, w, &view)
	assert.Equal(t, "paused", view.Lifecycle)

	w = s.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/status", "acc-sde", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var tasks []model.TaskModel
	w = s.do(t, http.MethodGet, "/api/v1/tasks?circle=KA&page=1&page_size=10", "acc-gm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w, &tasks)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, int64(1), env.Pagination.Total)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	w = s.do(t, http.MethodGet, "/api/v1/tasks?sort_by=secret", "acc-gm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/report.xlsx", "acc-sde", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), task.ID)
	wb, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	assert.Contains(t, wb.GetSheetList(), "Summary")

	w = s.do(t, http.MethodGet, "/api/v1/statistics", "acc-gm", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestFinanceEndpoints 测试收款提交、待审列表与审批
func TestFinanceEndpoints(t *testing.T) {
	s := setupServer(t)
	task := s.createTask(t)

	collection := map[string]interface{}{
		"task_id":               task.ID,
		"finance_type":          "FIN_LC",
		"amount":                "250.50",
		"payment_mode":          "UPI",
		"transaction_reference": "UPI-1001",
		"customer":              map[string]string{"name": "Ravi Stores"},
		"latitude":              12.935,
		"longitude":             77.624,
	}

	bad := map[string]interface{}{}
	for k, v := range collection {
		bad[k] = v
	}
	bad["payment_mode"] = "BARTER"
	w := s.do(t, http.MethodPost, "/api/v1/finance/collections", "acc-jto", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/finance/collections", "acc-jto", collection)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var entry model.FinanceCollectionModel
	decode(t, w, &entry)
	assert.Equal(t, "pending", entry.Status)
	assert.True(t, decimal.RequireFromString("250.50").Equal(entry.Amount))

	var pending []model.FinanceCollectionModel
	w = s.do(t, http.MethodGet, "/api/v1/finance/collections/pending?finance_type=FIN_LC", "acc-sde", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, entry.ID, pending[0].ID)

	// 其他 circle 的管理者看不到
	w = s.do(t, http.MethodGet, "/api/v1/finance/collections/pending", "acc-tn", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &pending)
	assert.Empty(t, pending)

	w = s.do(t, http.MethodPost, "/api/v1/finance/collections/"+entry.ID+"/reject", "acc-sde", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REMARKS_REQUIRED", decode(t, w, nil).Reason)

	w = s.do(t, http.MethodPost, "/api/v1/finance/collections/"+entry.ID+"/approve", "acc-sde", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/v1/finance/collections/"+entry.ID+"/approve", "acc-agm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	var summary service.TaskFinanceSummary
	w = s.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID+"/finance", "acc-sde", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &summary)
	require.Len(t, summary.Ledgers, 1)
	assert.True(t, decimal.RequireFromString("250.5").Equal(summary.Ledgers[0].Collected))
	assert.Equal(t, 25, summary.Ledgers[0].Percentage)
}

// TestHierarchyEndpoints 测试层级查询与主数据维护
func TestHierarchyEndpoints(t *testing.T) {
	s := setupServer(t)

	var mine service.MyHierarchy
	w := s.do(t, http.MethodGet, "/api/v1/me/hierarchy", "acc-jto", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &mine)
	assert.True(t, mine.IsLinked)
	require.NotNil(t, mine.MasterData)
	assert.Equal(t, "P4", mine.MasterData.PersNo)

	w = s.do(t, http.MethodGet, "/api/v1/me/hierarchy", "acc-unknown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine = service.MyHierarchy{}
	decode(t, w, &mine)
	assert.False(t, mine.IsLinked)

	var full service.FullHierarchy
	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P3", "acc-agm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &full)
	require.Len(t, full.Managers, 2)
	assert.Equal(t, "P2", full.Managers[0].PersNo)
	assert.Len(t, full.Subordinates, 2)

	var nodes []service.HierarchyNode
	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P1/subordinates?depth=1", "acc-gm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &nodes)
	require.Len(t, nodes, 1)
	assert.Equal(t, "P2", nodes[0].PersNo)
	assert.Empty(t, nodes[0].Children)

	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P1/subordinates?depth=abc", "acc-gm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P1/search?q=P5", "acc-gm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &nodes)
	require.NotEmpty(t, nodes)
	assert.Equal(t, "P5", nodes[0].PersNo)

	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P1/managers", "acc-gm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &nodes)
	assert.Empty(t, nodes)

	// 主数据维护需要管理职级
	record := map[string]interface{}{"pers_no": "P9", "name": "New Joiner", "circle": "KA", "reporting_pers_no": "P3"}
	w = s.do(t, http.MethodPut, "/api/v1/master-records/P9", "acc-jto", record)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/master-records/P9", "acc-gm", record)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPut, "/api/v1/master-records/P8", "acc-gm", record)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/accounts/acc-new", "acc-gm", map[string]string{"name": "New Joiner", "role": "staff", "circle": "KA"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// acc-jto 已关联 P4
	w = s.do(t, http.MethodPost, "/api/v1/master-records/P9/link", "acc-gm", map[string]string{"account_id": "acc-new"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/api/v1/master-records/P4/link", "acc-gm", map[string]string{"account_id": "acc-new"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ALREADY_LINKED", decode(t, w, nil).Reason)

	w = s.do(t, http.MethodDelete, "/api/v1/master-records/unlinked", "acc-gm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":0}`, string(decode(t, w, nil).Data))
}

// TestHierarchyEndpoints_CallerScope 测试层级查询只覆盖调用者本人及其下属
func TestHierarchyEndpoints_CallerScope(t *testing.T) {
	s := setupServer(t)

	// 上级与其他圈子对 jto 都不可见
	forbidden := []string{
		"/api/v1/hierarchy/P1/search?q=a",
		"/api/v1/hierarchy/P1",
		"/api/v1/hierarchy/P3/subordinates",
		"/api/v1/hierarchy/P2/managers",
		"/api/v1/hierarchy/X1",
		"/api/v1/hierarchy/P4",
		"/api/v1/hierarchy/NOPE",
	}
	for _, path := range forbidden {
		w := s.do(t, http.MethodGet, path, "acc-jto2", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	w := s.do(t, http.MethodGet, "/api/v1/hierarchy/P1/search?q=a", "acc-jto2", nil)
	assert.Equal(t, "OUT_OF_SCOPE", decode(t, w, nil).Reason)
	assert.NotContains(t, w.Body.String(), "P3 name")

	// 本人可见
	var full service.FullHierarchy
	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P5", "acc-jto2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &full)
	require.NotNil(t, full.CurrentUser)
	assert.Equal(t, "P5", full.CurrentUser.PersNo)

	// 上级可以查看下属子树
	var nodes []service.HierarchyNode
	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P3/search?q=P5", "acc-agm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &nodes)
	require.NotEmpty(t, nodes)
	assert.Equal(t, "P5", nodes[0].PersNo)

	// 未关联主数据的账号没有可见范围
	w = s.do(t, http.MethodGet, "/api/v1/hierarchy/P5", "acc-unknown", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NOT_LINKED", decode(t, w, nil).Reason)
}

// TestRequestIDPropagation 测试调用方传入的请求 ID 原样返回
func TestRequestIDPropagation(t *testing.T) {
	s := setupServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get("X-Request-ID"))
}

// TestAuditLogEndpoint 测试审计日志查询
func TestAuditLogEndpoint(t *testing.T) {
	s := setupServer(t)
	task := s.createTask(t)

	var logs []model.AuditLogModel
	w := s.do(t, http.MethodGet, "/api/v1/audit-logs?resource_type=task&resource_id="+task.ID, "acc-gm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "create", logs[0].Action)
	assert.Equal(t, "acc-sde", logs[0].UserID)
	assert.NotEmpty(t, logs[0].RequestID)

	logs = nil
	w = s.do(t, http.MethodGet, "/api/v1/audit-logs?user_id=acc-sde", "acc-gm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &logs)
	assert.NotEmpty(t, logs)

	w = s.do(t, http.MethodGet, "/api/v1/audit-logs?user_id=acc-sde", "acc-jto", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/audit-logs", "acc-gm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/audit-logs?resource_type=invoice&resource_id=x", "acc-gm", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
