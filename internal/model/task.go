package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TaskModel 任务数据模型
type TaskModel struct {
	ID                string     `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name              string     `json:"name" gorm:"type:varchar(255);not null"`
	Location          string     `json:"location" gorm:"type:varchar(255)"`
	Circle            string     `json:"circle" gorm:"type:varchar(64);index"`
	Zone              string     `json:"zone" gorm:"type:varchar(64)"`
	StartDate         time.Time  `json:"start_date" gorm:"not null"`
	EndDate           time.Time  `json:"end_date" gorm:"not null"`
	Categories        string     `json:"categories" gorm:"type:varchar(255);not null"`       // 逗号分隔的类目集合
	Lifecycle         string     `json:"lifecycle" gorm:"type:varchar(16);index;default:''"` // 显式生命周期,空表示按日期推导
	CreatedBy         string     `json:"created_by" gorm:"type:varchar(64);not null;index"`
	PrimaryAssigneeID *string    `json:"primary_assignee_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt         time.Time  `json:"created_at" gorm:"not null;index"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"not null"`
	ClosedAt          *time.Time `json:"closed_at,omitempty" gorm:"index"` // 进入 completed/cancelled 的时间
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.Name == "" {
		return errors.New("task name is required")
	}
	if tm.Categories == "" {
		return errors.New("task categories are required")
	}
	if tm.CreatedBy == "" {
		return errors.New("task creator is required")
	}
	if !tm.EndDate.IsZero() && tm.EndDate.Before(tm.StartDate) {
		return errors.New("task end date is before start date")
	}
	return nil
}

// TaskTargetModel 任务类目目标(销售/维护类目)
type TaskTargetModel struct {
	TaskID   string `gorm:"primaryKey;type:varchar(64)"`
	Category string `gorm:"primaryKey;type:varchar(32)"`
	Target   int64  `gorm:"not null;default:0"`
}

// TableName 指定表名
func (TaskTargetModel) TableName() string {
	return "task_targets"
}

// TaskFinanceLedgerModel 任务收款台账,collected 为已审批通过的累计金额
type TaskFinanceLedgerModel struct {
	TaskID       string          `gorm:"primaryKey;type:varchar(64)"`
	FinanceType  string          `gorm:"primaryKey;type:varchar(32)"`
	TargetAmount decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	Collected    decimal.Decimal `gorm:"type:numeric(18,2);not null;default:0"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName 指定表名
func (TaskFinanceLedgerModel) TableName() string {
	return "task_finance_ledgers"
}
