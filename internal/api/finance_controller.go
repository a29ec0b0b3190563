package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

// CollectionRejectRequest 收款拒绝请求
type CollectionRejectRequest struct {
	Remarks string `json:"remarks"`
}

// FinanceController 收款提交与审批接口
type FinanceController struct {
	finance service.FinanceService
}

// NewFinanceController 创建收款控制器
func NewFinanceController(finance service.FinanceService) *FinanceController {
	return &FinanceController{finance: finance}
}

// Submit 提交收款
func (f *FinanceController) Submit(c *gin.Context) {
	var req service.SubmitCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.SubmitterID = auth.UserID(c)

	entry, err := f.finance.SubmitCollection(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	Created(c, entry)
}

// Pending 当前账号可审批的待审收款,可按 finance_type 过滤
func (f *FinanceController) Pending(c *gin.Context) {
	entries, err := f.finance.GetPendingForReviewer(c.Request.Context(), auth.UserID(c), c.Query("finance_type"))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, entries)
}

// Approve 审批通过并计入台账
func (f *FinanceController) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entry, err := f.finance.Approve(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, entry)
}

// Reject 审批拒绝
func (f *FinanceController) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CollectionRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := f.finance.Reject(c.Request.Context(), id, auth.UserID(c), req.Remarks)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, entry)
}

// TaskSummary 任务的收款台账与明细
func (f *FinanceController) TaskSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	summary, err := f.finance.ListForTask(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, summary)
}
