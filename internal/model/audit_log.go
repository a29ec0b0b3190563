package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// AuditLogModel 审计日志数据模型
type AuditLogModel struct {
	ID           string         `json:"id" gorm:"primaryKey;type:varchar(64)"`
	UserID       string         `json:"user_id" gorm:"type:varchar(64);not null;index"`
	Action       string         `json:"action" gorm:"type:varchar(64);not null;index"`  // create/update_progress/submit/approve/reject/link/purge
	ResourceType string         `json:"resource_type" gorm:"type:varchar(32);not null"` // task/assignment/finance_collection/master_record
	ResourceID   string         `json:"resource_id" gorm:"type:varchar(64);not null;index"`
	RequestID    string         `json:"request_id,omitempty" gorm:"type:varchar(64);index"`
	IP           string         `json:"ip,omitempty" gorm:"type:varchar(45)"` // IPv4 或 IPv6
	UserAgent    string         `json:"user_agent,omitempty" gorm:"type:text"`
	Details      datatypes.JSON `json:"details,omitempty" gorm:"type:json"` // 操作详情
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;index"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.ID == "" {
		return errors.New("audit log ID is required")
	}
	if alm.UserID == "" {
		return errors.New("user ID is required")
	}
	if alm.Action == "" {
		return errors.New("action is required")
	}
	if alm.ResourceType == "" {
		return errors.New("resource type is required")
	}
	if alm.ResourceID == "" {
		return errors.New("resource ID is required")
	}
	return nil
}
