package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/aggregate"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/metrics"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/utils"
)

// ReviewAuthorizer 审核授权判定
type ReviewAuthorizer interface {
	CanReview(ctx context.Context, reviewerID string, subjectPersNo string) (bool, error)
	CanReviewAccount(ctx context.Context, reviewerID string, subjectAccountID string) (bool, error)
}

// ProgressService 分配进度与审核状态机
//
//	not_started -> in_progress  进度更新后计数大于 0
//	rejected    -> in_progress  任意进度更新
//	in_progress -> submitted    所有类目达标,仅分配本人
//	submitted   -> approved     授权审核人
//	submitted   -> rejected     授权审核人,需填写原因
type ProgressService interface {
	UpdateProgress(ctx context.Context, assignmentID string, category string, delta int64, actorID string) (*AssignmentView, error)
	SubmitForReview(ctx context.Context, assignmentID string, actorID string) (*AssignmentView, error)
	Approve(ctx context.Context, assignmentID string, reviewerID string) (*AssignmentView, error)
	Reject(ctx context.Context, assignmentID string, reviewerID string, reason string) (*AssignmentView, error)
	GetAssignment(ctx context.Context, assignmentID string) (*AssignmentView, error)
}

// AssignmentView 分配视图
type AssignmentView struct {
	ID              string                       `json:"id"`
	TaskID          string                       `json:"task_id"`
	EmployeeID      string                       `json:"employee_id"`
	EmployeePersNo  string                       `json:"employee_pers_no,omitempty"`
	Role            string                       `json:"role"`
	Status          string                       `json:"status"`
	RejectionReason string                       `json:"rejection_reason,omitempty"`
	ReviewerID      string                       `json:"reviewer_id,omitempty"`
	SubmittedAt     *time.Time                   `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time                   `json:"reviewed_at,omitempty"`
	Progress        []aggregate.CategoryProgress `json:"progress"`
	Percentage      int                          `json:"percentage"`
	TargetsAchieved bool                         `json:"targets_achieved"`
}

// ProgressUpdateRequest 进度更新请求
type ProgressUpdateRequest struct {
	Category string `json:"category" binding:"required,category"`
	Delta    int64  `json:"delta" binding:"required"`
}

// ReviewRequest 审核请求(拒绝时 reason 必填)
type ReviewRequest struct {
	Reason string `json:"reason"`
}

type progressService struct {
	db           *gorm.DB
	tasks        repository.TaskRepository
	assignments  repository.AssignmentRepository
	guard        ReviewAuthorizer
	storeTimeout time.Duration
	auditLogSvc  AuditLogService
	log          *logrus.Entry
}

// NewProgressService 创建进度服务
func NewProgressService(db *gorm.DB, guard ReviewAuthorizer, storeTimeout time.Duration, auditLogSvc AuditLogService) ProgressService {
	return &progressService{
		db:           db,
		tasks:        repository.NewTaskRepository(db),
		assignments:  repository.NewAssignmentRepository(db),
		guard:        guard,
		storeTimeout: storeTimeout,
		auditLogSvc:  auditLogSvc,
		log:          logger.Component("progress"),
	}
}

// UpdateProgress 按增量更新某一类目的完成数,结果不低于 0
// 分配本人或其授权审核人可更新;已提交或已通过的分配不可更新
func (s *progressService) UpdateProgress(ctx context.Context, assignmentID string, category string, delta int64, actorID string) (*AssignmentView, error) {
	if delta == 0 {
		return nil, apperror.Validation("INVALID_DELTA", "delta must be non-zero")
	}
	cat, ok := types.ParseCategory(category)
	if !ok {
		return nil, apperror.Validation("INVALID_CATEGORY", "unknown progress category %q", category)
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	a, err := s.loadOpenAssignment(sctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if actorID != a.EmployeeID {
		allowed, err := s.guard.CanReviewAccount(sctx, actorID, a.EmployeeID)
		if err != nil {
			return nil, apperror.FromStore(err, "account", actorID)
		}
		if !allowed {
			return nil, apperror.Forbidden("NOT_ASSIGNEE")
		}
	}
	// 收款类目走收款流程,分配上没有对应的进度单元
	if !cat.IsWork() {
		return nil, apperror.Forbidden("CATEGORY_NOT_ASSIGNED")
	}
	if !types.AssignmentStatus(a.Status).Mutable() {
		return nil, apperror.Conflict("ASSIGNMENT_LOCKED", "assignment is %s and cannot be updated", a.Status)
	}

	var from, to string
	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := lockOpenTask(sctx, r, a.TaskID); err != nil {
			return err
		}
		touched, err := r.assignments.Touch(sctx, assignmentID, types.MutableAssignmentStatuses())
		if err != nil {
			return err
		}
		if !touched {
			return apperror.Conflict("ASSIGNMENT_LOCKED", "assignment is no longer open for updates")
		}
		current, err := r.assignments.FindByID(sctx, assignmentID)
		if err != nil {
			return err
		}

		cell, err := r.assignments.IncrementProgress(sctx, assignmentID, string(cat), delta)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.Forbidden("CATEGORY_NOT_ASSIGNED")
		}
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"updated_at": time.Now()}
		switch types.AssignmentStatus(current.Status) {
		case types.AssignmentNotStarted:
			if cell.Completed <= 0 {
				return nil
			}
		case types.AssignmentRejected:
			updates["rejection_reason"] = ""
		default:
			return nil
		}
		updates["status"] = string(types.AssignmentInProgress)
		if _, err := r.assignments.Transition(sctx, assignmentID, []string{current.Status}, updates); err != nil {
			return err
		}
		from, to = current.Status, string(types.AssignmentInProgress)
		return writeHistory(sctx, r, a.TaskID, types.SubjectAssignment, assignmentID, from, to, "", actorID)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "assignment", assignmentID)
	}

	metrics.RecordProgressUpdate(string(cat.Kind()))
	recordAudit(ctx, s.auditLogSvc, actorID, "update_progress", "assignment", assignmentID, map[string]interface{}{
		"category": cat,
		"delta":    delta,
	})
	if to != "" {
		s.log.WithFields(logrus.Fields{"assignment": assignmentID, "from": from, "to": to}).Info("assignment status changed")
	}
	return s.GetAssignment(ctx, assignmentID)
}

// SubmitForReview 提交审核,所有类目达标后由分配本人发起
func (s *progressService) SubmitForReview(ctx context.Context, assignmentID string, actorID string) (*AssignmentView, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	a, err := s.loadOpenAssignment(sctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if actorID != a.EmployeeID {
		return nil, apperror.Forbidden("NOT_ASSIGNEE")
	}
	if types.AssignmentStatus(a.Status) != types.AssignmentInProgress {
		return nil, apperror.Conflict("INVALID_STATE", "cannot submit an assignment that is %s", a.Status)
	}

	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := lockOpenTask(sctx, r, a.TaskID); err != nil {
			return err
		}
		now := time.Now()
		ok, err := r.assignments.Transition(sctx, assignmentID, []string{string(types.AssignmentInProgress)}, map[string]interface{}{
			"status":       string(types.AssignmentSubmitted),
			"submitted_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("INVALID_STATE", "assignment is no longer in progress")
		}

		// 状态已锁定后再校验目标,避免与并发的进度更新交错
		cells, err := r.assignments.FindProgress(sctx, assignmentID)
		if err != nil {
			return err
		}
		progress := toProgress(cells)
		if !hasPositiveTarget(progress) {
			return apperror.Conflict("NO_TARGETS", "assignment has no positive target to submit against")
		}
		if first, deficient := aggregate.FirstDeficient(progress); deficient {
			return apperror.Conflict("TARGETS_NOT_MET", "target not met for %s (%d of %d)", first.Category, first.Completed, first.Target)
		}
		return writeHistory(sctx, r, a.TaskID, types.SubjectAssignment, assignmentID,
			string(types.AssignmentInProgress), string(types.AssignmentSubmitted), "", actorID)
	})
	if err != nil {
		var ae *apperror.Error
		if errors.As(err, &ae) && ae.Code == "TARGETS_NOT_MET" {
			metrics.RecordSubmission("targets_not_met")
		}
		return nil, apperror.FromStore(err, "assignment", assignmentID)
	}

	metrics.RecordSubmission("submitted")
	recordAudit(ctx, s.auditLogSvc, actorID, "submit", "assignment", assignmentID, map[string]string{"task_id": a.TaskID})
	return s.GetAssignment(ctx, assignmentID)
}

// Approve 审核通过
func (s *progressService) Approve(ctx context.Context, assignmentID string, reviewerID string) (*AssignmentView, error) {
	return s.review(ctx, assignmentID, reviewerID, types.AssignmentApproved, "")
}

// Reject 审核拒绝,原因必填
func (s *progressService) Reject(ctx context.Context, assignmentID string, reviewerID string, reason string) (*AssignmentView, error) {
	reason, err := utils.TrimAndValidate(reason, maxRemarkLen)
	if errors.Is(err, utils.ErrEmptyString) {
		return nil, apperror.Validation("REASON_REQUIRED", "a rejection reason is required")
	}
	if err != nil {
		return nil, apperror.Validation("REASON_TOO_LONG", "rejection reason exceeds %d characters", maxRemarkLen)
	}
	return s.review(ctx, assignmentID, reviewerID, types.AssignmentRejected, reason)
}

func (s *progressService) review(ctx context.Context, assignmentID, reviewerID string, to types.AssignmentStatus, reason string) (*AssignmentView, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	a, err := s.loadOpenAssignment(sctx, assignmentID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.guard.CanReviewAccount(sctx, reviewerID, a.EmployeeID)
	if err != nil {
		return nil, apperror.FromStore(err, "account", reviewerID)
	}
	if !allowed {
		return nil, apperror.Forbidden("NOT_REVIEWER")
	}

	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := lockOpenTask(sctx, r, a.TaskID); err != nil {
			return err
		}
		now := time.Now()
		updates := map[string]interface{}{
			"status":      string(to),
			"reviewer_id": reviewerID,
			"reviewed_at": now,
			"updated_at":  now,
		}
		if to == types.AssignmentRejected {
			updates["rejection_reason"] = reason
		}
		ok, err := r.assignments.Transition(sctx, assignmentID, []string{string(types.AssignmentSubmitted)}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("ALREADY_PROCESSED", "assignment is not awaiting review")
		}
		return writeHistory(sctx, r, a.TaskID, types.SubjectAssignment, assignmentID,
			string(types.AssignmentSubmitted), string(to), reason, reviewerID)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "assignment", assignmentID)
	}

	action := "approve"
	if to == types.AssignmentRejected {
		action = "reject"
	}
	metrics.RecordReviewDecision("progress", action)
	recordAudit(ctx, s.auditLogSvc, reviewerID, action, "assignment", assignmentID, map[string]string{
		"task_id": a.TaskID,
		"reason":  reason,
	})
	s.log.WithFields(logrus.Fields{
		"assignment": assignmentID,
		"reviewer":   reviewerID,
		"action":     action,
	}).Info("assignment reviewed")
	return s.GetAssignment(ctx, assignmentID)
}

// GetAssignment 查询分配及其进度
func (s *progressService) GetAssignment(ctx context.Context, assignmentID string) (*AssignmentView, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	a, err := s.assignments.FindByID(sctx, assignmentID)
	if err != nil {
		return nil, apperror.FromStore(err, "assignment", assignmentID)
	}
	cells, err := s.assignments.FindProgress(sctx, assignmentID)
	if err != nil {
		return nil, apperror.FromStore(err, "assignment", assignmentID)
	}
	return toAssignmentView(a, toProgress(cells)), nil
}

// loadOpenAssignment 加载分配并确认所属任务未结束
func (s *progressService) loadOpenAssignment(ctx context.Context, assignmentID string) (*model.AssignmentModel, error) {
	a, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, apperror.FromStore(err, "assignment", assignmentID)
	}
	task, err := s.tasks.FindByID(ctx, a.TaskID)
	if err != nil {
		return nil, apperror.FromStore(err, "task", a.TaskID)
	}
	if types.TaskLifecycle(task.Lifecycle).Terminal() {
		return nil, apperror.Conflict("TASK_CLOSED", "task is %s", task.Lifecycle)
	}
	return a, nil
}

func writeHistory(ctx context.Context, r *txRepos, taskID string, subject types.SubjectType, subjectID, from, to, reason, operator string) error {
	return r.history.Save(ctx, &model.StateHistoryModel{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		SubjectType: string(subject),
		SubjectID:   subjectID,
		FromState:   from,
		ToState:     to,
		Reason:      reason,
		Operator:    operator,
		CreatedAt:   time.Now(),
	})
}

func toProgress(cells []*model.AssignmentProgressModel) []aggregate.CategoryProgress {
	out := make([]aggregate.CategoryProgress, 0, len(cells))
	for _, c := range cells {
		out = append(out, aggregate.CategoryProgress{
			Category:  types.Category(c.Category),
			Target:    c.Target,
			Completed: c.Completed,
		})
	}
	sortProgress(out)
	return out
}

func sortProgress(cells []aggregate.CategoryProgress) {
	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].Category.Ordinal() < cells[j].Category.Ordinal()
	})
}

func hasPositiveTarget(cells []aggregate.CategoryProgress) bool {
	for _, c := range cells {
		if c.Target > 0 {
			return true
		}
	}
	return false
}

func toAssignmentView(a *model.AssignmentModel, progress []aggregate.CategoryProgress) *AssignmentView {
	return &AssignmentView{
		ID:              a.ID,
		TaskID:          a.TaskID,
		EmployeeID:      a.EmployeeID,
		EmployeePersNo:  a.EmployeePersNo,
		Role:            a.Role,
		Status:          a.Status,
		RejectionReason: a.RejectionReason,
		ReviewerID:      a.ReviewerID,
		SubmittedAt:     a.SubmittedAt,
		ReviewedAt:      a.ReviewedAt,
		Progress:        progress,
		Percentage:      aggregate.AssignmentPercentage(progress),
		TargetsAchieved: aggregate.AllTargetsAchieved(progress),
	}
}
