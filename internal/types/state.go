package types

import "strings"

// TaskLifecycle 任务显式生命周期状态,为空表示未设置
type TaskLifecycle string

const (
	TaskLifecycleUnset     TaskLifecycle = ""
	TaskLifecycleDraft     TaskLifecycle = "draft"
	TaskLifecycleActive    TaskLifecycle = "active"
	TaskLifecyclePaused    TaskLifecycle = "paused"
	TaskLifecycleCompleted TaskLifecycle = "completed"
	TaskLifecycleCancelled TaskLifecycle = "cancelled"
)

// Valid 是否为合法的显式状态
func (s TaskLifecycle) Valid() bool {
	switch s {
	case TaskLifecycleDraft, TaskLifecycleActive, TaskLifecyclePaused,
		TaskLifecycleCompleted, TaskLifecycleCancelled:
		return true
	}
	return false
}

// Terminal 终态下任务及其分配不可再变更
func (s TaskLifecycle) Terminal() bool {
	return s == TaskLifecycleCompleted || s == TaskLifecycleCancelled
}

// LifecycleLabel 展示用的有效状态标签
type LifecycleLabel string

const (
	LabelUpcoming  LifecycleLabel = "upcoming"
	LabelActive    LifecycleLabel = "active"
	LabelPastDue   LifecycleLabel = "past_due"
	LabelDraft     LifecycleLabel = "draft"
	LabelPaused    LifecycleLabel = "paused"
	LabelCompleted LifecycleLabel = "completed"
	LabelCancelled LifecycleLabel = "cancelled"
)

// AssignmentStatus 分配的提交状态
type AssignmentStatus string

const (
	AssignmentNotStarted AssignmentStatus = "not_started"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentSubmitted  AssignmentStatus = "submitted"
	AssignmentRejected   AssignmentStatus = "rejected"
	AssignmentApproved   AssignmentStatus = "approved"
)

// Mutable 该状态下允许更新进度
func (s AssignmentStatus) Mutable() bool {
	return s == AssignmentNotStarted || s == AssignmentInProgress || s == AssignmentRejected
}

// TerminalTaskLifecycles 终态集合
func TerminalTaskLifecycles() []string {
	return []string{string(TaskLifecycleCompleted), string(TaskLifecycleCancelled)}
}

// MutableAssignmentStatuses 允许更新进度的状态集合
func MutableAssignmentStatuses() []string {
	return []string{string(AssignmentNotStarted), string(AssignmentInProgress), string(AssignmentRejected)}
}

// TaskRole 员工在任务中的角色
type TaskRole string

const (
	TaskRoleCreator    TaskRole = "creator"
	TaskRoleManager    TaskRole = "manager"
	TaskRoleAssigned   TaskRole = "assigned"
	TaskRoleTeamMember TaskRole = "team_member"
)

// Valid 是否为合法角色
func (r TaskRole) Valid() bool {
	switch r {
	case TaskRoleCreator, TaskRoleManager, TaskRoleAssigned, TaskRoleTeamMember:
		return true
	}
	return false
}

// CollectionStatus 收款记录状态
type CollectionStatus string

const (
	CollectionPending  CollectionStatus = "pending"
	CollectionApproved CollectionStatus = "approved"
	CollectionRejected CollectionStatus = "rejected"
)

// PaymentMode 收款方式
type PaymentMode string

const (
	PaymentCash   PaymentMode = "CASH"
	PaymentCheque PaymentMode = "CHEQUE"
	PaymentDD     PaymentMode = "DD"
	PaymentUPI    PaymentMode = "UPI"
	PaymentNEFT   PaymentMode = "NEFT"
	PaymentRTGS   PaymentMode = "RTGS"
	PaymentCard   PaymentMode = "CARD"
	PaymentOnline PaymentMode = "ONLINE"
)

var paymentModes = []PaymentMode{
	PaymentCash, PaymentCheque, PaymentDD, PaymentUPI,
	PaymentNEFT, PaymentRTGS, PaymentCard, PaymentOnline,
}

// ParsePaymentMode 解析收款方式,大小写不敏感
func ParsePaymentMode(s string) (PaymentMode, bool) {
	m := PaymentMode(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range paymentModes {
		if v == m {
			return m, true
		}
	}
	return "", false
}

// RequiresReference 非现金收款必须提供交易参考号
func (m PaymentMode) RequiresReference() bool {
	return m != PaymentCash
}

// SubjectType 状态历史的主体类型
type SubjectType string

const (
	SubjectAssignment SubjectType = "assignment"
	SubjectCollection SubjectType = "finance_collection"
	SubjectTask       SubjectType = "task"
)
