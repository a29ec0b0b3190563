package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

// HierarchyController 组织层级与主数据接口
type HierarchyController struct {
	hierarchy service.HierarchyService
}

// NewHierarchyController 创建层级控制器
func NewHierarchyController(hierarchy service.HierarchyService) *HierarchyController {
	return &HierarchyController{hierarchy: hierarchy}
}

// LinkRequest 主数据关联账号请求
type LinkRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

// Me 当前账号的主数据关联情况
func (h *HierarchyController) Me(c *gin.Context) {
	mine, err := h.hierarchy.GetMyHierarchy(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, mine)
}

// viewablePersNo 读取路径上的 persNo,并要求其为调用者本人或下属
func (h *HierarchyController) viewablePersNo(c *gin.Context) (string, bool) {
	persNo, ok := pathID(c, "persNo")
	if !ok {
		return "", false
	}
	if err := h.hierarchy.AuthorizeView(c.Request.Context(), auth.UserID(c), persNo); err != nil {
		fail(c, err)
		return "", false
	}
	return persNo, true
}

// Get 完整层级视图: 上级链、本人、展开的下属
func (h *HierarchyController) Get(c *gin.Context) {
	persNo, ok := h.viewablePersNo(c)
	if !ok {
		return
	}
	full, err := h.hierarchy.GetFullHierarchy(c.Request.Context(), persNo)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, full)
}

// Managers 上级链,depth 缺省时使用配置上限
func (h *HierarchyController) Managers(c *gin.Context) {
	persNo, ok := h.viewablePersNo(c)
	if !ok {
		return
	}
	depth, ok := queryInt(c, "depth", 0)
	if !ok {
		return
	}
	nodes, err := h.hierarchy.ResolveAncestors(c.Request.Context(), persNo, depth)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, nodes)
}

// Subordinates 下属树的懒加载展开
func (h *HierarchyController) Subordinates(c *gin.Context) {
	persNo, ok := h.viewablePersNo(c)
	if !ok {
		return
	}
	depth, ok := queryInt(c, "depth", 0)
	if !ok {
		return
	}
	nodes, err := h.hierarchy.ResolveSubordinates(c.Request.Context(), persNo, depth)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, nodes)
}

// Search 在某员工的下属子树内模糊搜索
func (h *HierarchyController) Search(c *gin.Context) {
	persNo, ok := h.viewablePersNo(c)
	if !ok {
		return
	}
	nodes, err := h.hierarchy.Search(c.Request.Context(), persNo, c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, nodes)
}

// UpsertMasterRecord 写入或更新主数据,已有的账号关联保持不变
func (h *HierarchyController) UpsertMasterRecord(c *gin.Context) {
	persNo, ok := pathID(c, "persNo")
	if !ok {
		return
	}
	req := service.MasterRecordRequest{PersNo: persNo}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.PersNo != persNo {
		fail(c, &APIError{Code: http.StatusBadRequest, Message: "invalid request", Detail: "pers_no does not match path"})
		return
	}

	rec, err := h.hierarchy.UpsertMasterRecord(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, rec)
}

// Link 将主数据关联到账号
func (h *HierarchyController) Link(c *gin.Context) {
	persNo, ok := pathID(c, "persNo")
	if !ok {
		return
	}
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.hierarchy.LinkMasterRecordToAccount(c.Request.Context(), persNo, req.AccountID); err != nil {
		fail(c, err)
		return
	}
	Success(c, gin.H{"pers_no": persNo, "account_id": req.AccountID})
}

// SaveAccount 写入账号基本信息
func (h *HierarchyController) SaveAccount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	req := service.AccountRequest{ID: id}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ID != id {
		fail(c, &APIError{Code: http.StatusBadRequest, Message: "invalid request", Detail: "id does not match path"})
		return
	}
	if err := h.hierarchy.SaveAccount(c.Request.Context(), &req); err != nil {
		fail(c, err)
		return
	}
	Success(c, req)
}

// PurgeUnlinked 清理未关联账号的主数据
func (h *HierarchyController) PurgeUnlinked(c *gin.Context) {
	n, err := h.hierarchy.PurgeUnlinked(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, gin.H{"deleted": n})
}
