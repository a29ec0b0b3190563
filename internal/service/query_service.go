package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/utils"
)

// QueryService 查询服务接口
type QueryService interface {
	ListTasks(ctx context.Context, filter *ListTasksFilter) ([]*model.TaskModel, int64, error)
	GetHistory(ctx context.Context, taskID string) ([]*StateHistory, error)
}

// ListTasksFilter 任务列表查询过滤器
type ListTasksFilter struct {
	Circle    *string
	Lifecycle *string
	CreatedBy *string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
	SortBy    string
	Order     string
}

// StateHistory 状态历史
type StateHistory struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	FromState   string `json:"from_state"`
	ToState     string `json:"to_state"`
	Reason      string `json:"reason,omitempty"`
	Operator    string `json:"operator"`
	CreatedAt   string `json:"created_at"`
}

// taskSortFields 允许排序的任务字段
var taskSortFields = []string{"created_at", "start_date", "end_date", "name", "circle"}

// queryService 查询服务实现
type queryService struct {
	db           *gorm.DB
	tasks        repository.TaskRepository
	historyRepo  repository.StateHistoryRepository
	storeTimeout time.Duration
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB, storeTimeout time.Duration) QueryService {
	return &queryService{
		db:           db,
		tasks:        repository.NewTaskRepository(db),
		historyRepo:  repository.NewStateHistoryRepository(db),
		storeTimeout: storeTimeout,
	}
}

// ListTasks 分页列出任务
func (s *queryService) ListTasks(ctx context.Context, filter *ListTasksFilter) ([]*model.TaskModel, int64, error) {
	if filter == nil {
		filter = &ListTasksFilter{}
	}

	// 验证排序字段与方向,防止 SQL 注入
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if err := utils.ValidateSortField(sortBy, taskSortFields...); err != nil {
		return nil, 0, apperror.Validation("INVALID_SORT", "invalid sort field %q", sortBy)
	}
	order := filter.Order
	if order == "" {
		order = "desc"
	}
	if err := utils.ValidateSortOrder(order); err != nil {
		return nil, 0, apperror.Validation("INVALID_SORT", "%s", err.Error())
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	query := s.db.WithContext(sctx).Model(&model.TaskModel{})
	if filter.Circle != nil {
		query = query.Where("circle = ?", *filter.Circle)
	}
	if filter.Lifecycle != nil {
		query = query.Where("lifecycle = ?", *filter.Lifecycle)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", *filter.EndTime)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperror.FromStore(fmt.Errorf("failed to count tasks: %w", err), "task", "")
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}

	var tasks []*model.TaskModel
	err := query.
		Order(fmt.Sprintf("%s %s, id ASC", sortBy, utils.SanitizeSortOrder(order))).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, apperror.FromStore(fmt.Errorf("failed to query tasks: %w", err), "task", "")
	}
	return tasks, total, nil
}

// GetHistory 任务及其分配、收款记录的状态历史
func (s *queryService) GetHistory(ctx context.Context, taskID string) ([]*StateHistory, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.tasks.FindByID(sctx, taskID); err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	models, err := s.historyRepo.FindByTaskID(sctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(fmt.Errorf("failed to get history: %w", err), "task", taskID)
	}

	histories := make([]*StateHistory, 0, len(models))
	for _, m := range models {
		histories = append(histories, &StateHistory{
			ID:          m.ID,
			TaskID:      m.TaskID,
			SubjectType: m.SubjectType,
			SubjectID:   m.SubjectID,
			FromState:   m.FromState,
			ToState:     m.ToState,
			Reason:      m.Reason,
			Operator:    m.Operator,
			CreatedAt:   m.CreatedAt.Format(time.RFC3339),
		})
	}
	return histories, nil
}
