package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// QueryController 查询与统计控制器
type QueryController struct {
	queryService      service.QueryService
	statisticsService service.StatisticsService
}

// NewQueryController 创建查询控制器
func NewQueryController(queryService service.QueryService, statisticsService service.StatisticsService) *QueryController {
	return &QueryController{
		queryService:      queryService,
		statisticsService: statisticsService,
	}
}

// ListTasks 分页查询任务
// 支持 circle、lifecycle、created_by、start_time、end_time(RFC3339)、sort_by、order
func (q *QueryController) ListTasks(c *gin.Context) {
	filter := service.ListTasksFilter{
		SortBy: c.Query("sort_by"),
		Order:  c.Query("order"),
	}
	if v := c.Query("circle"); v != "" {
		filter.Circle = &v
	}
	if v := c.Query("lifecycle"); v != "" {
		filter.Lifecycle = &v
	}
	if v := c.Query("created_by"); v != "" {
		filter.CreatedBy = &v
	}
	for name, dst := range map[string]**time.Time{"start_time": &filter.StartTime, "end_time": &filter.EndTime} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, WrapError(err, http.StatusBadRequest, "invalid "+name))
			return
		}
		*dst = &ts
	}

	var ok bool
	if filter.Page, ok = queryInt(c, "page", 1); !ok {
		return
	}
	if filter.PageSize, ok = queryInt(c, "page_size", 20); !ok {
		return
	}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.PageSize == 0 || filter.PageSize > 200 {
		filter.PageSize = 20
	}

	tasks, total, err := q.queryService.ListTasks(c.Request.Context(), &filter)
	if err != nil {
		fail(c, err)
		return
	}
	Paginated(c, tasks, newPagination(filter.Page, filter.PageSize, total))
}

// GetHistory 任务、分配与收款记录的状态历史
func (q *QueryController) GetHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	history, err := q.queryService.GetHistory(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	Success(c, history)
}

// Statistics 任务、审核与收款统计
func (q *QueryController) Statistics(c *gin.Context) {
	ctx := c.Request.Context()

	byLifecycle, err := q.statisticsService.GetTaskStatisticsByLifecycle(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	byDate, err := q.statisticsService.GetTaskStatisticsByTime(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	assignmentReviews, err := q.statisticsService.GetReviewStatistics(ctx, types.SubjectAssignment)
	if err != nil {
		fail(c, err)
		return
	}
	collectionReviews, err := q.statisticsService.GetReviewStatistics(ctx, types.SubjectCollection)
	if err != nil {
		fail(c, err)
		return
	}
	collections, err := q.statisticsService.GetCollectionStatistics(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	Success(c, gin.H{
		"tasks_by_lifecycle": byLifecycle,
		"tasks_by_date":      byDate,
		"assignment_reviews": assignmentReviews,
		"collection_reviews": collectionReviews,
		"collections":        collections,
	})
}
