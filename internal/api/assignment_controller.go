package api

import (
	"github.com/gin-gonic/gin"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

// AssignmentController 分配进度与审核接口
type AssignmentController struct {
	progress service.ProgressService
}

// NewAssignmentController 创建分配控制器
func NewAssignmentController(progress service.ProgressService) *AssignmentController {
	return &AssignmentController{progress: progress}
}

// Get 获取分配详情
func (a *AssignmentController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := a.progress.GetAssignment(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, view)
}

// UpdateProgress 按类目累加进度
func (a *AssignmentController) UpdateProgress(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ProgressUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := a.progress.UpdateProgress(c.Request.Context(), id, req.Category, req.Delta, auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, view)
}

// Submit 提交审核
func (a *AssignmentController) Submit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := a.progress.SubmitForReview(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, view)
}

// Approve 审核通过
func (a *AssignmentController) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	view, err := a.progress.Approve(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, view)
}

// Reject 审核拒绝,reason 必填
func (a *AssignmentController) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := a.progress.Reject(c.Request.Context(), id, auth.UserID(c), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, view)
}
