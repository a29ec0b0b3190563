package model

import (
	"errors"
	"time"
)

// AssignmentModel 员工与任务的绑定
type AssignmentModel struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)"`
	TaskID          string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_assignment_task_employee"`
	EmployeeID      string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_assignment_task_employee;index"`
	EmployeePersNo  string     `gorm:"type:varchar(32);index"`
	Role            string     `gorm:"type:varchar(16);not null"`
	Status          string     `gorm:"type:varchar(16);not null;index"`
	RejectionReason string     `gorm:"type:text"`
	ReviewerID      string     `gorm:"type:varchar(64)"`
	SubmittedAt     *time.Time `gorm:"index"`
	ReviewedAt      *time.Time `gorm:"index"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName 指定表名
func (AssignmentModel) TableName() string {
	return "assignments"
}

// Validate 验证分配
func (am *AssignmentModel) Validate() error {
	if am.ID == "" {
		return errors.New("assignment ID is required")
	}
	if am.TaskID == "" {
		return errors.New("task ID is required")
	}
	if am.EmployeeID == "" {
		return errors.New("employee ID is required")
	}
	if am.Role == "" {
		return errors.New("role is required")
	}
	if am.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

// AssignmentProgressModel 分配下单个类目的进度单元,每个单元独立更新
type AssignmentProgressModel struct {
	AssignmentID string    `gorm:"primaryKey;type:varchar(64)"`
	Category     string    `gorm:"primaryKey;type:varchar(32)"`
	Target       int64     `gorm:"not null;default:0"`
	Completed    int64     `gorm:"not null;default:0"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (AssignmentProgressModel) TableName() string {
	return "assignment_progress"
}
