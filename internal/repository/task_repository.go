package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
)

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Create(ctx context.Context, task *model.TaskModel, targets []*model.TaskTargetModel, ledgers []*model.TaskFinanceLedgerModel) error
	FindByID(ctx context.Context, id string) (*model.TaskModel, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.TaskModel, error)
	FindTargets(ctx context.Context, taskID string) ([]*model.TaskTargetModel, error)
	FindLedgers(ctx context.Context, taskID string) ([]*model.TaskFinanceLedgerModel, error)
	FindLedger(ctx context.Context, taskID string, financeType string) (*model.TaskFinanceLedgerModel, error)
	IncrementCollected(ctx context.Context, taskID string, financeType string, amount decimal.Decimal) (bool, error)
	UpdateLifecycle(ctx context.Context, taskID string, from string, to string, closedAt *time.Time) (bool, error)
	LockOpen(ctx context.Context, taskID string, terminal []string) (bool, error)
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 创建任务及其类目目标和收款台账
func (r *taskRepository) Create(ctx context.Context, task *model.TaskModel, targets []*model.TaskTargetModel, ledgers []*model.TaskFinanceLedgerModel) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(task).Error; err != nil {
		return err
	}
	if len(targets) > 0 {
		if err := db.Create(&targets).Error; err != nil {
			return err
		}
	}
	if len(ledgers) > 0 {
		if err := db.Create(&ledgers).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID 根据 ID 查找任务
func (r *taskRepository) FindByID(ctx context.Context, id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByIDs 批量查找任务,按创建时间倒序
func (r *taskRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.TaskModel, error) {
	var out []*model.TaskModel
	for _, chunk := range chunks(ids) {
		var tasks []*model.TaskModel
		if err := r.db.WithContext(ctx).Where("id IN ?", chunk).Order("created_at DESC").Find(&tasks).Error; err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	return out, nil
}

// FindTargets 查找任务的类目目标
func (r *taskRepository) FindTargets(ctx context.Context, taskID string) ([]*model.TaskTargetModel, error) {
	var targets []*model.TaskTargetModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Find(&targets).Error
	return targets, err
}

// FindLedgers 查找任务的收款台账
func (r *taskRepository) FindLedgers(ctx context.Context, taskID string) ([]*model.TaskFinanceLedgerModel, error) {
	var ledgers []*model.TaskFinanceLedgerModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Find(&ledgers).Error
	return ledgers, err
}

// FindLedger 查找任务某一收款类目的台账
func (r *taskRepository) FindLedger(ctx context.Context, taskID string, financeType string) (*model.TaskFinanceLedgerModel, error) {
	var ledger model.TaskFinanceLedgerModel
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND finance_type = ?", taskID, financeType).
		First(&ledger).Error
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

// IncrementCollected 累加已收金额,单条 SQL 完成,台账不存在时返回 false
func (r *taskRepository) IncrementCollected(ctx context.Context, taskID string, financeType string, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TaskFinanceLedgerModel{}).
		Where("task_id = ? AND finance_type = ?", taskID, financeType).
		Updates(map[string]interface{}{
			"collected":  gorm.Expr("collected + ?", amount),
			"updated_at": time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// UpdateLifecycle 比较并设置生命周期状态,当前状态不等于 from 时返回 false
func (r *taskRepository) UpdateLifecycle(ctx context.Context, taskID string, from string, to string, closedAt *time.Time) (bool, error) {
	updates := map[string]interface{}{"lifecycle": to}
	if closedAt != nil {
		updates["closed_at"] = *closedAt
	}
	res := r.db.WithContext(ctx).
		Model(&model.TaskModel{}).
		Where("id = ? AND lifecycle = ?", taskID, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// LockOpen 事务内锁定任务行,生命周期属于 terminal 时返回 false
// 与 UpdateLifecycle 落在同一行上,二者按提交顺序串行
func (r *taskRepository) LockOpen(ctx context.Context, taskID string, terminal []string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TaskModel{}).
		Where("id = ? AND lifecycle NOT IN ?", taskID, terminal).
		UpdateColumn("lifecycle", gorm.Expr("lifecycle"))
	return res.RowsAffected > 0, res.Error
}
