package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	ListForResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error)
	ListForUser(ctx context.Context, userID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	// 序列化详情
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	auditLog := &model.AuditLogModel{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    contextString(ctx, "request_id"),
		IP:           GetClientIP(ctx),
		UserAgent:    GetUserAgent(ctx),
		Details:      datatypes.JSON(detailsJSON),
		CreatedAt:    time.Now(),
	}
	if err := auditLog.Validate(); err != nil {
		return err
	}

	return s.auditRepo.Save(ctx, auditLog)
}

// ListForResource 查询资源的审计日志,最新的在前
func (s *auditLogService) ListForResource(ctx context.Context, resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(ctx, resourceType, resourceID)
}

// ListForUser 查询账号的操作记录,最新的在前
func (s *auditLogService) ListForUser(ctx context.Context, userID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByUserID(ctx, userID)
}

// recordAudit 尽力记录审计日志,失败只记日志不影响业务结果
func recordAudit(ctx context.Context, svc AuditLogService, userID, action, resourceType, resourceID string, details interface{}) {
	if svc == nil || userID == "" {
		return
	}
	if err := svc.RecordAction(ctx, userID, action, resourceType, resourceID, details); err != nil {
		logger.Component("audit").WithError(err).WithField("action", action).Warn("failed to record audit log")
	}
}

// GetClientIP 从 context 获取客户端 IP
func GetClientIP(ctx context.Context) string {
	return contextString(ctx, "ip")
}

// GetUserAgent 从 context 获取 User Agent
func GetUserAgent(ctx context.Context) string {
	return contextString(ctx, "user_agent")
}

func contextString(ctx context.Context, key string) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
