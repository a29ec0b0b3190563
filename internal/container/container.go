package container

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/aggregate"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/database"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

// ErrAuthNotConfigured 生产环境必须配置 Keycloak
var ErrAuthNotConfigured = errors.New("keycloak issuer must be configured in production")

// Container 依赖注入容器
// 管理数据库连接、仓储、审核授权与全部业务服务
type Container struct {
	cfg               *config.Config
	db                *gorm.DB
	accounts          repository.AccountRepository
	guard             *auth.ReviewGuard
	keycloakValidator *auth.KeycloakTokenValidator
	auditLogSvc       service.AuditLogService
	hierarchySvc      service.HierarchyService
	taskSvc           service.TaskService
	progressSvc       service.ProgressService
	financeSvc        service.FinanceService
	querySvc          service.QueryService
	statisticsSvc     service.StatisticsService
	reportSvc         service.ReportService
}

// NewContainer 连接数据库、执行迁移并装配服务
func NewContainer(cfg *config.Config) (*Container, error) {
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	ctr, err := NewWithDB(cfg, db, aggregate.SystemClock{})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return ctr, nil
}

// NewWithDB 基于已有连接装配服务
func NewWithDB(cfg *config.Config, db *gorm.DB, clock aggregate.Clock) (*Container, error) {
	var validator *auth.KeycloakTokenValidator
	if cfg.Keycloak.Issuer != "" {
		validator = auth.NewKeycloakTokenValidator(cfg.Keycloak.Issuer, cfg.Keycloak.JWKSURL)
	} else if config.IsProduction(cfg) {
		return nil, ErrAuthNotConfigured
	} else {
		logger.Component("container").Warn("keycloak issuer not set, trusting X-User-ID header")
	}

	storeTimeout := cfg.Store.Timeout
	accounts := repository.NewAccountRepository(db)
	auditLogSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db))

	hierarchySvc := service.NewHierarchyService(db, cfg.Hierarchy, storeTimeout, auditLogSvc)
	guard := auth.NewReviewGuard(accounts, repository.NewHierarchyRepository(db), hierarchySvc, cfg.Review)
	// 主数据变化后清空授权缓存
	hierarchySvc.OnChange(guard.Invalidate)

	taskSvc := service.NewTaskService(db, service.TaskServiceOptions{
		Guard:          guard,
		Clock:          clock,
		CreatorMinRank: cfg.Review.CreatorMinRank,
		StoreTimeout:   storeTimeout,
		AuditLogSvc:    auditLogSvc,
	})
	financeSvc := service.NewFinanceService(db, guard, storeTimeout, auditLogSvc)

	return &Container{
		cfg:               cfg,
		db:                db,
		accounts:          accounts,
		guard:             guard,
		keycloakValidator: validator,
		auditLogSvc:       auditLogSvc,
		hierarchySvc:      hierarchySvc,
		taskSvc:           taskSvc,
		progressSvc:       service.NewProgressService(db, guard, storeTimeout, auditLogSvc),
		financeSvc:        financeSvc,
		querySvc:          service.NewQueryService(db, storeTimeout),
		statisticsSvc:     service.NewStatisticsService(db, storeTimeout),
		reportSvc:         service.NewReportService(taskSvc, financeSvc),
	}, nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Accounts 获取账号仓储
func (c *Container) Accounts() repository.AccountRepository {
	return c.accounts
}

// ReviewGuard 获取审核授权判定
func (c *Container) ReviewGuard() *auth.ReviewGuard {
	return c.guard
}

// KeycloakValidator 获取 Keycloak Token 验证器,未配置时为 nil
func (c *Container) KeycloakValidator() *auth.KeycloakTokenValidator {
	return c.keycloakValidator
}

// AuditLogService 获取审计日志服务
func (c *Container) AuditLogService() service.AuditLogService {
	return c.auditLogSvc
}

// HierarchyService 获取层级服务
func (c *Container) HierarchyService() service.HierarchyService {
	return c.hierarchySvc
}

// TaskService 获取任务服务
func (c *Container) TaskService() service.TaskService {
	return c.taskSvc
}

// ProgressService 获取进度服务
func (c *Container) ProgressService() service.ProgressService {
	return c.progressSvc
}

// FinanceService 获取收款服务
func (c *Container) FinanceService() service.FinanceService {
	return c.financeSvc
}

// QueryService 获取查询服务
func (c *Container) QueryService() service.QueryService {
	return c.querySvc
}

// StatisticsService 获取统计服务
func (c *Container) StatisticsService() service.StatisticsService {
	return c.statisticsSvc
}

// ReportService 获取报表服务
func (c *Container) ReportService() service.ReportService {
	return c.reportSvc
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	return database.Close(c.db)
}
