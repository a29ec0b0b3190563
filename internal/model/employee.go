package model

import (
	"errors"
	"time"
)

// EmployeeMasterModel 员工花名册主数据(批量导入,reporting_pers_no 不做外键约束)
type EmployeeMasterModel struct {
	PersNo          string    `json:"pers_no" gorm:"primaryKey;type:varchar(32)"`
	Name            string    `json:"name" gorm:"type:varchar(128);not null;index"`
	Designation     string    `json:"designation" gorm:"type:varchar(64)"`
	Circle          string    `json:"circle" gorm:"type:varchar(64);index"`
	Zone            string    `json:"zone" gorm:"type:varchar(64)"`
	Division        string    `json:"division" gorm:"type:varchar(64)"`
	Office          string    `json:"office" gorm:"type:varchar(128)"`
	SortOrder       int       `json:"sort_order" gorm:"not null;default:0"`
	ReportingPersNo *string   `json:"reporting_pers_no,omitempty" gorm:"type:varchar(32);index"` // 上级 persNo,可能为空、悬空或成环
	AccountID       *string   `json:"account_id,omitempty" gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null"`
}

// TableName 指定表名
func (EmployeeMasterModel) TableName() string {
	return "employee_master_records"
}

// Validate 验证主数据
func (m *EmployeeMasterModel) Validate() error {
	if m.PersNo == "" {
		return errors.New("persNo is required")
	}
	if m.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// ReportsTo 返回上级 persNo,未设置时为空串
func (m *EmployeeMasterModel) ReportsTo() string {
	if m.ReportingPersNo == nil {
		return ""
	}
	return *m.ReportingPersNo
}

// EmployeeAccountModel 已登录账号
type EmployeeAccountModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Name      string    `gorm:"type:varchar(128);not null"`
	Role      string    `gorm:"type:varchar(16);not null;index"` // 职级: staff/jto/sde/agm/dgm/gm/pgm/cgm
	Circle    string    `gorm:"type:varchar(64);index"`
	PersNo    *string   `gorm:"type:varchar(32);index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EmployeeAccountModel) TableName() string {
	return "employee_accounts"
}

// Validate 验证账号
func (a *EmployeeAccountModel) Validate() error {
	if a.ID == "" {
		return errors.New("account ID is required")
	}
	if a.Name == "" {
		return errors.New("name is required")
	}
	if a.Role == "" {
		return errors.New("role is required")
	}
	return nil
}

// LinkedPersNo 返回关联的 persNo,未关联时为空串
func (a *EmployeeAccountModel) LinkedPersNo() string {
	if a.PersNo == nil {
		return ""
	}
	return *a.PersNo
}
