package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
)

// FinanceCollectionRepository 收款记录仓储接口
type FinanceCollectionRepository interface {
	Create(ctx context.Context, entry *model.FinanceCollectionModel) error
	FindByID(ctx context.Context, id string) (*model.FinanceCollectionModel, error)
	FindByTaskID(ctx context.Context, taskID string) ([]*model.FinanceCollectionModel, error)
	FindPending(ctx context.Context, filter *CollectionFilter) ([]*model.FinanceCollectionModel, error)
	Transition(ctx context.Context, id string, from string, updates map[string]interface{}) (bool, error)
}

// CollectionFilter 待审核收款过滤器
type CollectionFilter struct {
	FinanceType *string
	TaskID      *string
	Limit       int
}

// financeCollectionRepository 收款记录仓储实现
type financeCollectionRepository struct {
	db *gorm.DB
}

// NewFinanceCollectionRepository 创建收款记录仓储
func NewFinanceCollectionRepository(db *gorm.DB) FinanceCollectionRepository {
	return &financeCollectionRepository{db: db}
}

// Create 保存新的收款记录
func (r *financeCollectionRepository) Create(ctx context.Context, entry *model.FinanceCollectionModel) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByID 根据 ID 查找收款记录
func (r *financeCollectionRepository) FindByID(ctx context.Context, id string) (*model.FinanceCollectionModel, error) {
	var e model.FinanceCollectionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// FindByTaskID 查找任务下的全部收款记录,最新的在前
func (r *financeCollectionRepository) FindByTaskID(ctx context.Context, taskID string) ([]*model.FinanceCollectionModel, error) {
	var out []*model.FinanceCollectionModel
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// FindPending 查找待审核收款记录,最新的在前
func (r *financeCollectionRepository) FindPending(ctx context.Context, filter *CollectionFilter) ([]*model.FinanceCollectionModel, error) {
	var out []*model.FinanceCollectionModel
	query := r.db.WithContext(ctx).Where("status = ?", "pending")
	if filter != nil {
		if filter.FinanceType != nil {
			query = query.Where("finance_type = ?", *filter.FinanceType)
		}
		if filter.TaskID != nil {
			query = query.Where("task_id = ?", *filter.TaskID)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
	}
	err := query.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// Transition 比较并设置状态: 仅当当前状态等于 from 时写入 updates
func (r *financeCollectionRepository) Transition(ctx context.Context, id string, from string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.FinanceCollectionModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}
