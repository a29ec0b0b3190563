package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/utils"
)

var auditResourceTypes = map[string]bool{
	"task":               true,
	"assignment":         true,
	"finance_collection": true,
	"master_record":      true,
}

// AuditController 审计日志查询控制器
type AuditController struct {
	auditLogService service.AuditLogService
}

// NewAuditController 创建审计日志控制器
func NewAuditController(auditLogService service.AuditLogService) *AuditController {
	return &AuditController{auditLogService: auditLogService}
}

// List 按资源或操作人查询审计日志
// resource_type + resource_id 与 user_id 二选一
func (a *AuditController) List(c *gin.Context) {
	resourceType := c.Query("resource_type")
	resourceID := c.Query("resource_id")
	userID := c.Query("user_id")

	var (
		logs []*model.AuditLogModel
		err  error
	)
	switch {
	case resourceType != "":
		if !auditResourceTypes[resourceType] {
			badRequest(c, errors.New("unknown resource_type"))
			return
		}
		if err := utils.ValidateID(resourceID); err != nil {
			badRequest(c, err)
			return
		}
		logs, err = a.auditLogService.ListForResource(c.Request.Context(), resourceType, resourceID)
	case userID != "":
		if err := utils.ValidateID(userID); err != nil {
			badRequest(c, err)
			return
		}
		logs, err = a.auditLogService.ListForUser(c.Request.Context(), userID)
	default:
		Error(c, http.StatusBadRequest, "invalid request", "resource_type and resource_id, or user_id, is required")
		c.Abort()
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, logs)
}
