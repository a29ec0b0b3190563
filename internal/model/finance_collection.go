package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CustomerInfo 收款对应的客户信息
type CustomerInfo struct {
	Name          string `json:"name,omitempty"`
	Contact       string `json:"contact,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

// FinanceCollectionModel 收款记录,审核后不可变
type FinanceCollectionModel struct {
	ID                   string                           `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TaskID               string                           `json:"task_id" gorm:"type:varchar(64);not null;index"`
	SubmitterID          string                           `json:"submitter_id" gorm:"type:varchar(64);not null;index"`
	SubmitterPersNo      string                           `json:"submitter_pers_no,omitempty" gorm:"type:varchar(32)"`
	FinanceType          string                           `json:"finance_type" gorm:"type:varchar(32);not null;index"`
	Amount               decimal.Decimal                  `json:"amount" gorm:"type:numeric(18,2);not null"`
	PaymentMode          string                           `json:"payment_mode" gorm:"type:varchar(16);not null"`
	TransactionReference string                           `json:"transaction_reference,omitempty" gorm:"type:varchar(128)"`
	Customer             datatypes.JSONType[CustomerInfo] `json:"customer" gorm:"type:json"`
	PhotoRefs            datatypes.JSONSlice[string]      `json:"photo_refs" gorm:"type:json"`
	Latitude             *float64                         `json:"latitude,omitempty" gorm:"type:numeric(10,7)"`
	Longitude            *float64                         `json:"longitude,omitempty" gorm:"type:numeric(10,7)"`
	Status               string                           `json:"status" gorm:"type:varchar(16);not null;index"`
	ReviewerID           string                           `json:"reviewer_id,omitempty" gorm:"type:varchar(64)"`
	ReviewRemarks        string                           `json:"review_remarks,omitempty" gorm:"type:text"`
	ReviewedAt           *time.Time                       `json:"reviewed_at,omitempty" gorm:"index"`
	CreatedAt            time.Time                        `json:"created_at" gorm:"not null;index"`
}

// TableName 指定表名
func (FinanceCollectionModel) TableName() string {
	return "finance_collections"
}

// Validate 验证收款记录
func (fm *FinanceCollectionModel) Validate() error {
	if fm.ID == "" {
		return errors.New("collection ID is required")
	}
	if fm.TaskID == "" {
		return errors.New("task ID is required")
	}
	if fm.SubmitterID == "" {
		return errors.New("submitter ID is required")
	}
	if fm.FinanceType == "" {
		return errors.New("finance type is required")
	}
	if !fm.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if fm.Status == "" {
		return errors.New("status is required")
	}
	return nil
}
