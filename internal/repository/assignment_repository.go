package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
)

// AssignmentRepository 任务分配仓储接口
// 状态变更一律通过 Transition 比较并设置,进度按类目单元独立累加
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *model.AssignmentModel, cells []*model.AssignmentProgressModel) error
	FindByID(ctx context.Context, id string) (*model.AssignmentModel, error)
	FindByTaskID(ctx context.Context, taskID string) ([]*model.AssignmentModel, error)
	FindByTaskAndEmployee(ctx context.Context, taskID string, employeeID string) (*model.AssignmentModel, error)
	FindByEmployeeID(ctx context.Context, employeeID string) ([]*model.AssignmentModel, error)
	FindProgress(ctx context.Context, assignmentIDs ...string) ([]*model.AssignmentProgressModel, error)
	Touch(ctx context.Context, id string, statuses []string) (bool, error)
	IncrementProgress(ctx context.Context, id string, category string, delta int64) (*model.AssignmentProgressModel, error)
	Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) (bool, error)
}

// assignmentRepository 任务分配仓储实现
type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建任务分配仓储
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// Create 创建分配及其进度单元
func (r *assignmentRepository) Create(ctx context.Context, assignment *model.AssignmentModel, cells []*model.AssignmentProgressModel) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(assignment).Error; err != nil {
		return err
	}
	if len(cells) == 0 {
		return nil
	}
	return db.Create(&cells).Error
}

// FindByID 根据 ID 查找分配
func (r *assignmentRepository) FindByID(ctx context.Context, id string) (*model.AssignmentModel, error) {
	var a model.AssignmentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByTaskID 查找任务下的全部分配
func (r *assignmentRepository) FindByTaskID(ctx context.Context, taskID string) ([]*model.AssignmentModel, error) {
	var out []*model.AssignmentModel
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// FindByTaskAndEmployee 查找员工在任务中的分配
func (r *assignmentRepository) FindByTaskAndEmployee(ctx context.Context, taskID string, employeeID string) (*model.AssignmentModel, error) {
	var a model.AssignmentModel
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND employee_id = ?", taskID, employeeID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByEmployeeID 查找员工的全部分配
func (r *assignmentRepository) FindByEmployeeID(ctx context.Context, employeeID string) ([]*model.AssignmentModel, error) {
	var out []*model.AssignmentModel
	err := r.db.WithContext(ctx).Where("employee_id = ?", employeeID).Order("created_at DESC").Find(&out).Error
	return out, err
}

// FindProgress 查找分配的进度单元
func (r *assignmentRepository) FindProgress(ctx context.Context, assignmentIDs ...string) ([]*model.AssignmentProgressModel, error) {
	var out []*model.AssignmentProgressModel
	for _, chunk := range chunks(assignmentIDs) {
		var cells []*model.AssignmentProgressModel
		if err := r.db.WithContext(ctx).Where("assignment_id IN ?", chunk).Find(&cells).Error; err != nil {
			return nil, err
		}
		out = append(out, cells...)
	}
	return out, nil
}

// Touch 在状态属于 statuses 时刷新 updated_at,事务内用于锁定分配行
func (r *assignmentRepository) Touch(ctx context.Context, id string, statuses []string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.AssignmentModel{}).
		Where("id = ? AND status IN ?", id, statuses).
		Update("updated_at", time.Now())
	return res.RowsAffected > 0, res.Error
}

// IncrementProgress 按增量更新单个类目的完成数,结果不低于 0
// 单元不存在时返回 gorm.ErrRecordNotFound
func (r *assignmentRepository) IncrementProgress(ctx context.Context, id string, category string, delta int64) (*model.AssignmentProgressModel, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&model.AssignmentProgressModel{}).
		Where("assignment_id = ? AND category = ?", id, category).
		Updates(map[string]interface{}{
			"completed":  gorm.Expr("CASE WHEN completed + ? < 0 THEN 0 ELSE completed + ? END", delta, delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var cell model.AssignmentProgressModel
	if err := db.Where("assignment_id = ? AND category = ?", id, category).First(&cell).Error; err != nil {
		return nil, err
	}
	return &cell, nil
}

// Transition 比较并设置状态: 仅当当前状态属于 from 时写入 updates
func (r *assignmentRepository) Transition(ctx context.Context, id string, from []string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.AssignmentModel{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}
