package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/metrics"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/utils"
)

// FinanceService 收款提交与审批
// 审批通过与台账累加在同一事务内完成,同一条收款最多计入一次
type FinanceService interface {
	SubmitCollection(ctx context.Context, req *SubmitCollectionRequest) (*model.FinanceCollectionModel, error)
	Approve(ctx context.Context, entryID string, reviewerID string) (*model.FinanceCollectionModel, error)
	Reject(ctx context.Context, entryID string, reviewerID string, remarks string) (*model.FinanceCollectionModel, error)
	GetPendingForReviewer(ctx context.Context, reviewerID string, financeType string) ([]*model.FinanceCollectionModel, error)
	ListForTask(ctx context.Context, taskID string) (*TaskFinanceSummary, error)
}

// SubmitCollectionRequest 收款提交请求
type SubmitCollectionRequest struct {
	TaskID               string             `json:"task_id" binding:"required"`
	SubmitterID          string             `json:"-"`
	FinanceType          string             `json:"finance_type" binding:"required,category"`
	Amount               decimal.Decimal    `json:"amount"`
	PaymentMode          string             `json:"payment_mode" binding:"required,payment_mode"`
	TransactionReference string             `json:"transaction_reference"`
	Customer             model.CustomerInfo `json:"customer"`
	PhotoRefs            []string           `json:"photo_refs"`
	Latitude             *float64           `json:"latitude" binding:"omitempty,latitude"`
	Longitude            *float64           `json:"longitude" binding:"omitempty,longitude"`
}

// LedgerView 收款台账视图
type LedgerView struct {
	FinanceType  string          `json:"finance_type"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Collected    decimal.Decimal `json:"collected"`
	Percentage   int             `json:"percentage"`
}

// TaskFinanceSummary 任务收款汇总
type TaskFinanceSummary struct {
	TaskID  string                          `json:"task_id"`
	Ledgers []LedgerView                    `json:"ledgers"`
	Entries []*model.FinanceCollectionModel `json:"entries"`
}

type financeService struct {
	db           *gorm.DB
	tasks        repository.TaskRepository
	assignments  repository.AssignmentRepository
	collections  repository.FinanceCollectionRepository
	guard        ReviewAuthorizer
	storeTimeout time.Duration
	auditLogSvc  AuditLogService
	log          *logrus.Entry
}

// NewFinanceService 创建收款服务
func NewFinanceService(db *gorm.DB, guard ReviewAuthorizer, storeTimeout time.Duration, auditLogSvc AuditLogService) FinanceService {
	return &financeService{
		db:           db,
		tasks:        repository.NewTaskRepository(db),
		assignments:  repository.NewAssignmentRepository(db),
		collections:  repository.NewFinanceCollectionRepository(db),
		guard:        guard,
		storeTimeout: storeTimeout,
		auditLogSvc:  auditLogSvc,
		log:          logger.Component("finance"),
	}
}

// SubmitCollection 提交一条待审核收款
func (s *financeService) SubmitCollection(ctx context.Context, req *SubmitCollectionRequest) (*model.FinanceCollectionModel, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("INVALID_AMOUNT", "amount must be greater than zero")
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return nil, apperror.Validation("INVALID_AMOUNT", "amount has more than two decimal places")
	}
	mode, ok := types.ParsePaymentMode(req.PaymentMode)
	if !ok {
		return nil, apperror.Validation("INVALID_PAYMENT_MODE", "unknown payment mode %q", req.PaymentMode)
	}
	ref := strings.TrimSpace(req.TransactionReference)
	if mode.RequiresReference() && ref == "" {
		return nil, apperror.Validation("REFERENCE_REQUIRED", "reference required for non-cash")
	}
	financeType, ok := types.ParseCategory(req.FinanceType)
	if !ok || !financeType.IsFinance() {
		return nil, apperror.Validation("INVALID_FINANCE_TYPE", "unknown finance type %q", req.FinanceType)
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.tasks.FindByID(sctx, req.TaskID)
	if err != nil {
		return nil, apperror.FromStore(err, "task", req.TaskID)
	}
	if types.TaskLifecycle(task.Lifecycle).Terminal() {
		return nil, apperror.Conflict("TASK_CLOSED", "task is %s", task.Lifecycle)
	}
	if _, err := s.tasks.FindLedger(sctx, task.ID, string(financeType)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Validation("FINANCE_TYPE_NOT_TRACKED", "task does not track %s", financeType)
		}
		return nil, apperror.FromStore(err, "task", task.ID)
	}
	a, err := s.assignments.FindByTaskAndEmployee(sctx, task.ID, req.SubmitterID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.Forbidden("NOT_ON_TASK")
		}
		return nil, apperror.FromStore(err, "assignment", task.ID)
	}

	entry := &model.FinanceCollectionModel{
		ID:                   uuid.New().String(),
		TaskID:               task.ID,
		SubmitterID:          req.SubmitterID,
		SubmitterPersNo:      a.EmployeePersNo,
		FinanceType:          string(financeType),
		Amount:               req.Amount,
		PaymentMode:          string(mode),
		TransactionReference: ref,
		Customer:             datatypes.NewJSONType(req.Customer),
		PhotoRefs:            datatypes.JSONSlice[string](req.PhotoRefs),
		Latitude:             req.Latitude,
		Longitude:            req.Longitude,
		Status:               string(types.CollectionPending),
		CreatedAt:            time.Now(),
	}
	if err := entry.Validate(); err != nil {
		return nil, apperror.Validation("INVALID_COLLECTION", "%s", err.Error())
	}

	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := lockOpenTask(sctx, r, task.ID); err != nil {
			return err
		}
		if err := r.collections.Create(sctx, entry); err != nil {
			return err
		}
		return writeHistory(sctx, r, task.ID, types.SubjectCollection, entry.ID, "", entry.Status, "", req.SubmitterID)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "finance collection", entry.ID)
	}

	metrics.RecordCollectionSubmitted(entry.FinanceType)
	recordAudit(ctx, s.auditLogSvc, req.SubmitterID, "submit", "finance_collection", entry.ID, map[string]string{
		"task_id":      task.ID,
		"finance_type": entry.FinanceType,
		"amount":       entry.Amount.StringFixed(2),
	})
	return entry, nil
}

// Approve 审批通过并累加任务台账
func (s *financeService) Approve(ctx context.Context, entryID string, reviewerID string) (*model.FinanceCollectionModel, error) {
	return s.review(ctx, entryID, reviewerID, types.CollectionApproved, "")
}

// Reject 审批拒绝,备注必填,不影响台账
func (s *financeService) Reject(ctx context.Context, entryID string, reviewerID string, remarks string) (*model.FinanceCollectionModel, error) {
	remarks, err := utils.TrimAndValidate(remarks, maxRemarkLen)
	if errors.Is(err, utils.ErrEmptyString) {
		return nil, apperror.Validation("REMARKS_REQUIRED", "rejection remarks are required")
	}
	if err != nil {
		return nil, apperror.Validation("REMARKS_TOO_LONG", "rejection remarks exceed %d characters", maxRemarkLen)
	}
	return s.review(ctx, entryID, reviewerID, types.CollectionRejected, remarks)
}

func (s *financeService) review(ctx context.Context, entryID, reviewerID string, to types.CollectionStatus, remarks string) (*model.FinanceCollectionModel, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	entry, err := s.collections.FindByID(sctx, entryID)
	if err != nil {
		return nil, apperror.FromStore(err, "finance collection", entryID)
	}
	allowed, err := s.guard.CanReviewAccount(sctx, reviewerID, entry.SubmitterID)
	if err != nil {
		return nil, apperror.FromStore(err, "account", reviewerID)
	}
	if !allowed {
		return nil, apperror.Forbidden("NOT_REVIEWER")
	}

	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		now := time.Now()
		ok, err := r.collections.Transition(sctx, entryID, string(types.CollectionPending), map[string]interface{}{
			"status":         string(to),
			"reviewer_id":    reviewerID,
			"review_remarks": remarks,
			"reviewed_at":    now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("ALREADY_PROCESSED", "collection entry already processed")
		}
		if to == types.CollectionApproved {
			ok, err := r.tasks.IncrementCollected(sctx, entry.TaskID, entry.FinanceType, entry.Amount)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.Internal("finance ledger row missing", nil)
			}
		}
		return writeHistory(sctx, r, entry.TaskID, types.SubjectCollection, entryID,
			string(types.CollectionPending), string(to), remarks, reviewerID)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "finance collection", entryID)
	}

	action := "reject"
	if to == types.CollectionApproved {
		action = "approve"
		metrics.RecordCollectionApproved(entry.FinanceType, entry.Amount.InexactFloat64())
	}
	metrics.RecordReviewDecision("finance", action)
	recordAudit(ctx, s.auditLogSvc, reviewerID, action, "finance_collection", entryID, map[string]string{
		"task_id":      entry.TaskID,
		"finance_type": entry.FinanceType,
		"amount":       entry.Amount.StringFixed(2),
		"remarks":      remarks,
	})
	s.log.WithFields(logrus.Fields{
		"entry":    entryID,
		"reviewer": reviewerID,
		"action":   action,
	}).Info("finance collection reviewed")

	fctx, fcancel := withStoreTimeout(ctx, s.storeTimeout)
	defer fcancel()
	out, err := s.collections.FindByID(fctx, entryID)
	if err != nil {
		return nil, apperror.FromStore(err, "finance collection", entryID)
	}
	return out, nil
}

// GetPendingForReviewer 审核人可审批的待审核收款,最新的在前
func (s *financeService) GetPendingForReviewer(ctx context.Context, reviewerID string, financeType string) ([]*model.FinanceCollectionModel, error) {
	filter := &repository.CollectionFilter{}
	if financeType != "" {
		ft, ok := types.ParseCategory(financeType)
		if !ok || !ft.IsFinance() {
			return nil, apperror.Validation("INVALID_FINANCE_TYPE", "unknown finance type %q", financeType)
		}
		v := string(ft)
		filter.FinanceType = &v
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	pending, err := s.collections.FindPending(sctx, filter)
	if err != nil {
		return nil, apperror.FromStore(err, "finance collection", "")
	}

	decided := make(map[string]bool)
	out := make([]*model.FinanceCollectionModel, 0, len(pending))
	for _, e := range pending {
		allowed, seen := decided[e.SubmitterID]
		if !seen {
			allowed, err = s.guard.CanReviewAccount(sctx, reviewerID, e.SubmitterID)
			if err != nil {
				return nil, apperror.FromStore(err, "account", reviewerID)
			}
			decided[e.SubmitterID] = allowed
		}
		if allowed {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListForTask 任务的收款台账与全部收款记录
func (s *financeService) ListForTask(ctx context.Context, taskID string) (*TaskFinanceSummary, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.tasks.FindByID(sctx, taskID); err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	ledgers, err := s.tasks.FindLedgers(sctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	entries, err := s.collections.FindByTaskID(sctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	return &TaskFinanceSummary{
		TaskID:  taskID,
		Ledgers: toLedgerViews(ledgers),
		Entries: entries,
	}, nil
}

func toLedgerViews(ledgers []*model.TaskFinanceLedgerModel) []LedgerView {
	out := make([]LedgerView, 0, len(ledgers))
	for _, l := range ledgers {
		out = append(out, LedgerView{
			FinanceType:  l.FinanceType,
			TargetAmount: l.TargetAmount,
			Collected:    l.Collected,
			Percentage:   ledgerPercentage(l.Collected, l.TargetAmount),
		})
	}
	sortLedgers(out)
	return out
}

func ledgerPercentage(collected, target decimal.Decimal) int {
	if !target.IsPositive() {
		return 0
	}
	return int(collected.Div(target).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

func sortLedgers(ls []LedgerView) {
	cats := make([]types.Category, len(ls))
	byCat := make(map[types.Category]LedgerView, len(ls))
	for i, l := range ls {
		cats[i] = types.Category(l.FinanceType)
		byCat[cats[i]] = l
	}
	types.SortCategories(cats)
	for i, c := range cats {
		ls[i] = byCat[c]
	}
}
