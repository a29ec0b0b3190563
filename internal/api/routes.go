package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// Dependencies 路由依赖
type Dependencies struct {
	Config *config.Config
	DB     *gorm.DB
	// Validator 为 nil 时使用 X-User-ID 请求头认证
	Validator  *auth.KeycloakTokenValidator
	Accounts   repository.AccountRepository
	Hierarchy  service.HierarchyService
	Tasks      service.TaskService
	Progress   service.ProgressService
	Finance    service.FinanceService
	Query      service.QueryService
	Statistics service.StatisticsService
	Reports    service.ReportService
	Audit      service.AuditLogService
}

// SetupRoutes 配置路由
func SetupRoutes(deps *Dependencies) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(RequestLogMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(VersionMiddleware())
	router.Use(SLAMonitorMiddleware(nil))
	router.Use(ErrorHandlerMiddleware())
	if cfg.RateLimit.Enabled {
		router.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	health := NewHealthController(deps.DB)
	router.GET("/health", health.Check)
	router.GET("/metrics", MetricsHandler)

	authMiddleware := auth.HeaderAuthMiddleware()
	if deps.Validator != nil {
		authMiddleware = auth.KeycloakAuthMiddleware(deps.Validator)
	}

	hierarchyCtl := NewHierarchyController(deps.Hierarchy)
	taskCtl := NewTaskController(deps.Tasks, deps.Reports)
	queryCtl := NewQueryController(deps.Query, deps.Statistics)
	assignmentCtl := NewAssignmentController(deps.Progress)
	financeCtl := NewFinanceController(deps.Finance)
	auditCtl := NewAuditController(deps.Audit)

	v1 := router.Group("/api/"+APIVersion, authMiddleware)
	if cfg.Tracing.Enabled {
		v1.Use(SpanActorMiddleware())
	}
	{
		v1.GET("/me/hierarchy", hierarchyCtl.Me)
		v1.GET("/me/tasks", taskCtl.MyTasks)

		hierarchy := v1.Group("/hierarchy")
		{
			hierarchy.GET("/:persNo", hierarchyCtl.Get)
			hierarchy.GET("/:persNo/managers", hierarchyCtl.Managers)
			hierarchy.GET("/:persNo/subordinates", hierarchyCtl.Subordinates)
			hierarchy.GET("/:persNo/search", hierarchyCtl.Search)
		}

		// 主数据与账号维护需要管理职级
		admin := v1.Group("", auth.RequireRank(deps.Accounts, managementRank(cfg)))
		{
			admin.PUT("/master-records/:persNo", hierarchyCtl.UpsertMasterRecord)
			admin.POST("/master-records/:persNo/link", hierarchyCtl.Link)
			admin.DELETE("/master-records/unlinked", hierarchyCtl.PurgeUnlinked)
			admin.PUT("/accounts/:id", hierarchyCtl.SaveAccount)
			admin.GET("/audit-logs", auditCtl.List)
		}

		tasks := v1.Group("/tasks")
		{
			tasks.POST("", taskCtl.Create)
			tasks.GET("", queryCtl.ListTasks)
			tasks.GET("/:id", taskCtl.Get)
			tasks.POST("/:id/members", taskCtl.AddMember)
			tasks.POST("/:id/status", taskCtl.SetStatus)
			tasks.GET("/:id/history", queryCtl.GetHistory)
			tasks.GET("/:id/finance", financeCtl.TaskSummary)
			tasks.GET("/:id/report.xlsx", taskCtl.Report)
		}

		assignments := v1.Group("/assignments")
		{
			assignments.GET("/:id", assignmentCtl.Get)
			assignments.POST("/:id/progress", assignmentCtl.UpdateProgress)
			assignments.POST("/:id/submit", assignmentCtl.Submit)
			assignments.POST("/:id/approve", assignmentCtl.Approve)
			assignments.POST("/:id/reject", assignmentCtl.Reject)
		}

		collections := v1.Group("/finance/collections")
		{
			collections.POST("", financeCtl.Submit)
			collections.GET("/pending", financeCtl.Pending)
			collections.POST("/:id/approve", financeCtl.Approve)
			collections.POST("/:id/reject", financeCtl.Reject)
		}

		v1.GET("/statistics", queryCtl.Statistics)
	}

	// 未匹配的路由返回 JSON 格式的 404
	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "route not found", "the requested route does not exist")
	})

	return router, nil
}

func managementRank(cfg *config.Config) types.Rank {
	if r := types.ParseRank(cfg.Review.ManagementThreshold); r != types.RankUnknown {
		return r
	}
	return types.RankAGM
}
