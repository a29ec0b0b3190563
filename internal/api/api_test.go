package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/aggregate"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/api"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/container"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/database"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

// envelope 统一响应的解码形式
type envelope struct {
	Code       int                 `json:"code"`
	Message    string              `json:"message"`
	Reason     string              `json:"reason"`
	Data       json.RawMessage     `json:"data"`
	Pagination *api.PaginationInfo `json:"pagination"`
}

type testServer struct {
	router *gin.Engine
	ctr    *container.Container
}

// setupServer 基于内存 sqlite 装配完整路由,使用请求头认证
func setupServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := config.Default()
	cfg.Env = "development"
	cfg.Keycloak.Issuer = ""
	cfg.RateLimit.Enabled = false
	cfg.Tracing.Enabled = false
	cfg.Review.ManagementThreshold = "agm"
	cfg.Review.CreatorMinRank = "sde"

	clock := aggregate.NewFixedClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	ctr, err := container.NewWithDB(cfg, db, clock)
	require.NoError(t, err)

	router, err := api.SetupRoutes(&api.Dependencies{
		Config:     cfg,
		DB:         db,
		Validator:  ctr.KeycloakValidator(),
		Accounts:   ctr.Accounts(),
		Hierarchy:  ctr.HierarchyService(),
		Tasks:      ctr.TaskService(),
		Progress:   ctr.ProgressService(),
		Finance:    ctr.FinanceService(),
		Query:      ctr.QueryService(),
		Statistics: ctr.StatisticsService(),
		Reports:    ctr.ReportService(),
		Audit:      ctr.AuditLogService(),
	})
	require.NoError(t, err)

	s := &testServer{router: router, ctr: ctr}
	s.seedOrg(t)
	return s
}

// seedOrg P1 gm > P2 agm > P3 sde > {P4 jto, P5 jto},另有 TN 的 X1 dgm
func (s *testServer) seedOrg(t *testing.T) {
	ctx := context.Background()
	h := s.ctr.HierarchyService()
	people := []struct{ persNo, account, role, circle, reportsTo string }{
		{"P1", "acc-gm", "gm", "KA", ""},
		{"P2", "acc-agm", "agm", "KA", "P1"},
		{"P3", "acc-sde", "sde", "KA", "P2"},
		{"P4", "acc-jto", "jto", "KA", "P3"},
		{"P5", "acc-jto2", "jto", "KA", "P3"},
		{"X1", "acc-tn", "dgm", "TN", ""},
	}
	for i, p := range people {
		_, err := h.UpsertMasterRecord(ctx, &service.MasterRecordRequest{
			PersNo: p.persNo, Name: p.persNo + " name", Circle: p.circle, SortOrder: i, ReportingPersNo: p.reportsTo,
		})
		require.NoError(t, err)
		require.NoError(t, h.SaveAccount(ctx, &service.AccountRequest{ID: p.account, Name: p.persNo + " name", Role: p.role, Circle: p.circle}))
		require.NoError(t, h.LinkMasterRecordToAccount(ctx, p.persNo, p.account))
	}
}

// do 以指定账号发起请求
func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// createTask 由 acc-sde 创建任务,acc-jto 为主负责人
func (s *testServer) createTask(t *testing.T) *service.TaskView {
	w := s.do(t, http.MethodPost, "/api/v1/tasks", "acc-sde", map[string]interface{}{
		"name":                "Koramangala SIM drive",
		"location":            "Koramangala",
		"circle":              "KA",
		"start_date":          "2026-03-01T00:00:00Z",
		"end_date":            "2026-03-31T00:00:00Z",
		"categories":          []string{"SIM", "FTTH", "FIN_LC"},
		"targets":             map[string]int64{"SIM": 10, "FTTH": 5},
		"finance_targets":     map[string]string{"FIN_LC": "1000"},
		"primary_assignee_id": "acc-jto",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task service.TaskView
	decode(t, w, &task)
	return &task
}

func assignmentOf(t *testing.T, task *service.TaskView, employeeID string) *service.AssignmentView {
	for _, a := range task.Assignments {
		if a.EmployeeID == employeeID {
			return a
		}
	}
	t.Fatalf("no assignment for %s", employeeID)
	return nil
}
