package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/auth"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TaskController 任务控制器
type TaskController struct {
	taskService   service.TaskService
	reportService service.ReportService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService, reportService service.ReportService) *TaskController {
	return &TaskController{
		taskService:   taskService,
		reportService: reportService,
	}
}

// Create 创建任务,创建人取自当前账号
func (t *TaskController) Create(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CreatorID = auth.UserID(c)

	task, err := t.taskService.CreateTask(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	Created(c, task)
}

// Get 获取任务详情及全部分配
func (t *TaskController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	task, err := t.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, task)
}

// AddMember 添加任务成员
func (t *TaskController) AddMember(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ActorID = auth.UserID(c)

	assignment, err := t.taskService.AddTeamMember(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	Created(c, assignment)
}

// SetStatus 修改任务生命周期
func (t *TaskController) SetStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.LifecycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.ActorID = auth.UserID(c)

	task, err := t.taskService.SetLifecycleStatus(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, task)
}

// MyTasks 当前账号参与的任务
func (t *TaskController) MyTasks(c *gin.Context) {
	tasks, err := t.taskService.GetMyAssignedTasks(c.Request.Context(), auth.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, tasks)
}

// Report 导出任务进度报表
// 先写入内存,导出失败时仍可返回 JSON 错误
func (t *TaskController) Report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := t.reportService.ExportTaskReport(c.Request.Context(), id, &buf); err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="task-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
