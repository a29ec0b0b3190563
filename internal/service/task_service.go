package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

// TaskService 任务服务接口
type TaskService interface {
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*TaskView, error)
	AddTeamMember(ctx context.Context, taskID string, req *AddMemberRequest) (*AssignmentView, error)
	SetLifecycleStatus(ctx context.Context, taskID string, req *LifecycleRequest) (*TaskView, error)
	GetTask(ctx context.Context, taskID string) (*TaskView, error)
	GetMyAssignedTasks(ctx context.Context, employeeID string) ([]*TaskView, error)
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Name              string                     `json:"name" binding:"required"`
	Location          string                     `json:"location"`
	Circle            string                     `json:"circle"`
	Zone              string                     `json:"zone"`
	StartDate         time.Time                  `json:"start_date" binding:"required"`
	EndDate           time.Time                  `json:"end_date" binding:"required"`
	Categories        []string                   `json:"categories" binding:"required,min=1,dive,category"`
	Targets           map[string]int64           `json:"targets"`
	FinanceTargets    map[string]decimal.Decimal `json:"finance_targets"`
	PrimaryAssigneeID string                     `json:"primary_assignee_id"`
	CreatorID         string                     `json:"-"`
}

// AddMemberRequest 添加任务成员请求
type AddMemberRequest struct {
	EmployeeID string           `json:"employee_id" binding:"required"`
	Role       string           `json:"role" binding:"omitempty,oneof=manager assigned team_member"`
	Targets    map[string]int64 `json:"targets"`
	ActorID    string           `json:"-"`
}

// LifecycleRequest 任务生命周期变更请求
type LifecycleRequest struct {
	Status  string `json:"status" binding:"required,oneof=draft active paused completed cancelled"`
	Reason  string `json:"reason"`
	ActorID string `json:"-"`
}

// TaskView 任务视图,包含汇总进度和有效生命周期
type TaskView struct {
	ID                string                    `json:"id"`
	Name              string                    `json:"name"`
	Location          string                    `json:"location,omitempty"`
	Circle            string                    `json:"circle,omitempty"`
	Zone              string                    `json:"zone,omitempty"`
	StartDate         time.Time                 `json:"start_date"`
	EndDate           time.Time                 `json:"end_date"`
	Categories        []types.Category          `json:"categories"`
	Lifecycle         string                    `json:"lifecycle,omitempty"`
	EffectiveStatus   types.LifecycleLabel      `json:"effective_status"`
	CreatedBy         string                    `json:"created_by"`
	PrimaryAssigneeID string                    `json:"primary_assignee_id,omitempty"`
	Totals            []aggregate.CategoryTotal `json:"totals"`
	OverallPercentage int                       `json:"overall_percentage"`
	Finance           []LedgerView              `json:"finance"`
	MyAssignment      *AssignmentView           `json:"my_assignment,omitempty"`
	Assignments       []*AssignmentView         `json:"assignments,omitempty"`
}

type taskService struct {
	db             *gorm.DB
	tasks          repository.TaskRepository
	assignments    repository.AssignmentRepository
	accounts       repository.AccountRepository
	guard          ReviewAuthorizer
	clock          aggregate.Clock
	creatorMinRank types.Rank
	storeTimeout   time.Duration
	auditLogSvc    AuditLogService
	log            *logrus.Entry
}

// TaskServiceOptions 任务服务依赖
type TaskServiceOptions struct {
	Guard          ReviewAuthorizer
	Clock          aggregate.Clock
	CreatorMinRank string
	StoreTimeout   time.Duration
	AuditLogSvc    AuditLogService
}

// NewTaskService 创建任务服务
func NewTaskService(db *gorm.DB, opts TaskServiceOptions) TaskService {
	minRank := types.ParseRank(opts.CreatorMinRank)
	if minRank == types.RankUnknown {
		minRank = types.RankSDE
	}
	clock := opts.Clock
	if clock == nil {
		clock = aggregate.SystemClock{}
	}
	return &taskService{
		db:             db,
		tasks:          repository.NewTaskRepository(db),
		assignments:    repository.NewAssignmentRepository(db),
		accounts:       repository.NewAccountRepository(db),
		guard:          opts.Guard,
		clock:          clock,
		creatorMinRank: minRank,
		storeTimeout:   opts.StoreTimeout,
		auditLogSvc:    opts.AuditLogSvc,
		log:            logger.Component("task"),
	}
}

// CreateTask 创建任务
// 创建人获得 creator 分配;指定主负责人时,主负责人承担全部声明目标(创建人本人为主负责人时目标记在 creator 分配上)
func (s *taskService) CreateTask(ctx context.Context, req *CreateTaskRequest) (*TaskView, error) {
	cats, err := parseTaskCategories(req.Categories)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateName(req.Name); err != nil {
		return nil, apperror.Validation("INVALID_TASK", "%s", err.Error())
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, apperror.Validation("INVALID_DATES", "end date is before start date")
	}
	targets, err := workTargets(cats, req.Targets)
	if err != nil {
		return nil, err
	}
	ledgerTargets, err := financeTargets(cats, req.FinanceTargets)
	if err != nil {
		return nil, err
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	creator, err := s.accounts.FindByID(sctx, req.CreatorID)
	if err != nil {
		return nil, apperror.FromStore(err, "account", req.CreatorID)
	}
	if !types.ParseRank(creator.Role).AtLeast(s.creatorMinRank) {
		return nil, apperror.Forbidden("RANK_TOO_LOW")
	}
	var primary *model.EmployeeAccountModel
	if req.PrimaryAssigneeID != "" {
		if primary, err = s.accounts.FindByID(sctx, req.PrimaryAssigneeID); err != nil {
			return nil, apperror.FromStore(err, "account", req.PrimaryAssigneeID)
		}
	}

	now := time.Now()
	task := &model.TaskModel{
		ID:         uuid.New().String(),
		Name:       strings.TrimSpace(req.Name),
		Location:   req.Location,
		Circle:     req.Circle,
		Zone:       req.Zone,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Categories: types.JoinCategories(cats),
		CreatedBy:  creator.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if task.Circle == "" {
		task.Circle = creator.Circle
	}
	if primary != nil {
		task.PrimaryAssigneeID = &primary.ID
	}
	if err := task.Validate(); err != nil {
		return nil, apperror.Validation("INVALID_TASK", "%s", err.Error())
	}

	targetRows := make([]*model.TaskTargetModel, 0, len(targets))
	for _, c := range cats {
		if c.IsWork() {
			targetRows = append(targetRows, &model.TaskTargetModel{TaskID: task.ID, Category: string(c), Target: targets[c]})
		}
	}
	ledgerRows := make([]*model.TaskFinanceLedgerModel, 0, len(ledgerTargets))
	for _, c := range cats {
		if c.IsFinance() {
			ledgerRows = append(ledgerRows, &model.TaskFinanceLedgerModel{
				TaskID:       task.ID,
				FinanceType:  string(c),
				TargetAmount: ledgerTargets[c],
				Collected:    decimal.Zero,
				UpdatedAt:    now,
			})
		}
	}

	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := r.tasks.Create(sctx, task, targetRows, ledgerRows); err != nil {
			return err
		}
		var creatorTargets map[types.Category]int64
		if primary != nil && primary.ID == creator.ID {
			creatorTargets = targets
		}
		if err := createAssignment(sctx, r, task.ID, creator, types.TaskRoleCreator, creatorTargets, now); err != nil {
			return err
		}
		if primary != nil && primary.ID != creator.ID {
			if err := createAssignment(sctx, r, task.ID, primary, types.TaskRoleManager, targets, now); err != nil {
				return err
			}
		}
		return writeHistory(sctx, r, task.ID, types.SubjectTask, task.ID, "", "created", "", creator.ID)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "task", task.ID)
	}

	metrics.RecordTaskCreated()
	recordAudit(ctx, s.auditLogSvc, creator.ID, "create", "task", task.ID, map[string]interface{}{
		"name":       task.Name,
		"categories": task.Categories,
	})
	s.log.WithFields(logrus.Fields{"task": task.ID, "creator": creator.ID}).Info("task created")
	return s.GetTask(ctx, task.ID)
}

// AddTeamMember 为任务添加成员,targets 中的类目成为该成员的进度单元
// 任务创建人、任务 manager 或创建人的授权审核人可操作
func (s *taskService) AddTeamMember(ctx context.Context, taskID string, req *AddMemberRequest) (*AssignmentView, error) {
	role := types.TaskRole(req.Role)
	if role == "" {
		role = types.TaskRoleTeamMember
	}
	if !role.Valid() || role == types.TaskRoleCreator {
		return nil, apperror.Validation("INVALID_ROLE", "unsupported task role %q", req.Role)
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.tasks.FindByID(sctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	if types.TaskLifecycle(task.Lifecycle).Terminal() {
		return nil, apperror.Conflict("TASK_CLOSED", "task is %s", task.Lifecycle)
	}
	cats := types.SplitCategories(task.Categories)
	targets, err := workTargets(cats, req.Targets)
	if err != nil {
		return nil, err
	}
	member := make(map[types.Category]int64, len(req.Targets))
	for k := range req.Targets {
		c, _ := types.ParseCategory(k)
		member[c] = targets[c]
	}

	if err := s.authorizeTaskAdmin(sctx, task, req.ActorID); err != nil {
		return nil, err
	}
	employee, err := s.accounts.FindByID(sctx, req.EmployeeID)
	if err != nil {
		return nil, apperror.FromStore(err, "account", req.EmployeeID)
	}
	if _, err := s.assignments.FindByTaskAndEmployee(sctx, taskID, employee.ID); err == nil {
		return nil, apperror.Conflict("ALREADY_MEMBER", "employee is already on this task")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.FromStore(err, "assignment", taskID)
	}

	var assignmentID string
	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if err := lockOpenTask(sctx, r, taskID); err != nil {
			return err
		}
		a, err := newAssignment(taskID, employee, role, member, time.Now())
		if err != nil {
			return err
		}
		assignmentID = a.assignment.ID
		return r.assignments.Create(sctx, a.assignment, a.cells)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "assignment", taskID)
	}

	recordAudit(ctx, s.auditLogSvc, req.ActorID, "add_member", "task", taskID, map[string]string{
		"employee_id": employee.ID,
		"role":        string(role),
	})

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

// SetLifecycleStatus 设置任务的显式生命周期状态,completed 与 cancelled 为终态
func (s *taskService) SetLifecycleStatus(ctx context.Context, taskID string, req *LifecycleRequest) (*TaskView, error) {
	to := types.TaskLifecycle(req.Status)
	if !to.Valid() {
		return nil, apperror.Validation("INVALID_STATUS", "unknown lifecycle status %q", req.Status)
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.tasks.FindByID(sctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	from := types.TaskLifecycle(task.Lifecycle)
	if from.Terminal() {
		return nil, apperror.Conflict("TASK_CLOSED", "task is %s", task.Lifecycle)
	}
	if err := s.authorizeTaskAdmin(sctx, task, req.ActorID); err != nil {
		return nil, err
	}
	if from == to {
		return s.GetTask(ctx, taskID)
	}

	err = s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		var closedAt *time.Time
		if to.Terminal() {
			now := time.Now()
			closedAt = &now
		}
		ok, err := r.tasks.UpdateLifecycle(sctx, taskID, string(from), string(to), closedAt)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.Conflict("CONCURRENT_UPDATE", "task status changed concurrently")
		}
		return writeHistory(sctx, r, taskID, types.SubjectTask, taskID, string(from), string(to), req.Reason, req.ActorID)
	})
	if err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}

	recordAudit(ctx, s.auditLogSvc, req.ActorID, "set_status", "task", taskID, map[string]string{
		"from":   string(from),
		"to":     string(to),
		"reason": req.Reason,
	})
	return s.GetTask(ctx, taskID)
}

// GetTask 查询任务视图,包含全部分配
func (s *taskService) GetTask(ctx context.Context, taskID string) (*TaskView, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.tasks.FindByID(sctx, taskID)
	if err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	view, assignments, err := s.buildView(sctx, task)
	if err != nil {
		return nil, apperror.FromStore(err, "task", taskID)
	}
	view.Assignments = assignments
	return view, nil
}

// GetMyAssignedTasks 员工参与的全部任务,按创建时间倒序
func (s *taskService) GetMyAssignedTasks(ctx context.Context, employeeID string) ([]*TaskView, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	mine, err := s.assignments.FindByEmployeeID(sctx, employeeID)
	if err != nil {
		return nil, apperror.FromStore(err, "assignment", employeeID)
	}
	if len(mine) == 0 {
		return []*TaskView{}, nil
	}
	ids := make([]string, 0, len(mine))
	for _, a := range mine {
		ids = append(ids, a.TaskID)
	}
	tasks, err := s.tasks.FindByIDs(sctx, ids)
	if err != nil {
		return nil, apperror.FromStore(err, "task", "")
	}

	out := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		view, assignments, err := s.buildView(sctx, t)
		if err != nil {
			return nil, apperror.FromStore(err, "task", t.ID)
		}
		for _, a := range assignments {
			if a.EmployeeID == employeeID {
				view.MyAssignment = a
				break
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// buildView 汇总任务目标、全部分配进度和收款台账
func (s *taskService) buildView(ctx context.Context, task *model.TaskModel) (*TaskView, []*AssignmentView, error) {
	targets, err := s.tasks.FindTargets(ctx, task.ID)
	if err != nil {
		return nil, nil, err
	}
	ledgers, err := s.tasks.FindLedgers(ctx, task.ID)
	if err != nil {
		return nil, nil, err
	}
	assignments, err := s.assignments.FindByTaskID(ctx, task.ID)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	cells, err := s.assignments.FindProgress(ctx, ids...)
	if err != nil {
		return nil, nil, err
	}
	byAssignment := make(map[string][]*model.AssignmentProgressModel, len(assignments))
	for _, c := range cells {
		byAssignment[c.AssignmentID] = append(byAssignment[c.AssignmentID], c)
	}

	declared := make(map[types.Category]int64, len(targets))
	for _, t := range targets {
		declared[types.Category(t.Category)] = t.Target
	}
	views := make([]*AssignmentView, 0, len(assignments))
	progress := make([][]aggregate.CategoryProgress, 0, len(assignments))
	for _, a := range assignments {
		p := toProgress(byAssignment[a.ID])
		progress = append(progress, p)
		views = append(views, toAssignmentView(a, p))
	}
	totals := aggregate.TaskTotals(declared, progress)

	view := &TaskView{
		ID:                task.ID,
		Name:              task.Name,
		Location:          task.Location,
		Circle:            task.Circle,
		Zone:              task.Zone,
		StartDate:         task.StartDate,
		EndDate:           task.EndDate,
		Categories:        types.SplitCategories(task.Categories),
		Lifecycle:         task.Lifecycle,
		EffectiveStatus:   aggregate.EffectiveLifecycle(types.TaskLifecycle(task.Lifecycle), task.StartDate, task.EndDate, s.clock.Now()),
		CreatedBy:         task.CreatedBy,
		Totals:            totals,
		OverallPercentage: aggregate.OverallPercentage(totals),
		Finance:           toLedgerViews(ledgers),
	}
	if task.PrimaryAssigneeID != nil {
		view.PrimaryAssigneeID = *task.PrimaryAssigneeID
	}
	return view, views, nil
}

// authorizeTaskAdmin 任务创建人、任务 manager 或创建人的授权审核人
func (s *taskService) authorizeTaskAdmin(ctx context.Context, task *model.TaskModel, actorID string) error {
	if actorID == "" {
		return apperror.Forbidden("NOT_TASK_ADMIN")
	}
	if actorID == task.CreatedBy {
		return nil
	}
	a, err := s.assignments.FindByTaskAndEmployee(ctx, task.ID, actorID)
	if err == nil && types.TaskRole(a.Role) == types.TaskRoleManager {
		return nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.FromStore(err, "assignment", task.ID)
	}
	if s.guard != nil {
		allowed, err := s.guard.CanReviewAccount(ctx, actorID, task.CreatedBy)
		if err != nil {
			return apperror.FromStore(err, "account", actorID)
		}
		if allowed {
			return nil
		}
	}
	return apperror.Forbidden("NOT_TASK_ADMIN")
}

type newAssignmentRows struct {
	assignment *model.AssignmentModel
	cells      []*model.AssignmentProgressModel
}

func newAssignment(taskID string, employee *model.EmployeeAccountModel, role types.TaskRole, targets map[types.Category]int64, now time.Time) (*newAssignmentRows, error) {
	a := &model.AssignmentModel{
		ID:             uuid.New().String(),
		TaskID:         taskID,
		EmployeeID:     employee.ID,
		EmployeePersNo: employee.LinkedPersNo(),
		Role:           string(role),
		Status:         string(types.AssignmentNotStarted),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.Validate(); err != nil {
		return nil, apperror.Validation("INVALID_ASSIGNMENT", "%s", err.Error())
	}
	cats := make([]types.Category, 0, len(targets))
	for c := range targets {
		cats = append(cats, c)
	}
	types.SortCategories(cats)
	cells := make([]*model.AssignmentProgressModel, 0, len(cats))
	for _, c := range cats {
		cells = append(cells, &model.AssignmentProgressModel{
			AssignmentID: a.ID,
			Category:     string(c),
			Target:       targets[c],
			UpdatedAt:    now,
		})
	}
	return &newAssignmentRows{assignment: a, cells: cells}, nil
}

func createAssignment(ctx context.Context, r *txRepos, taskID string, employee *model.EmployeeAccountModel, role types.TaskRole, targets map[types.Category]int64, now time.Time) error {
	rows, err := newAssignment(taskID, employee, role, targets, now)
	if err != nil {
		return err
	}
	return r.assignments.Create(ctx, rows.assignment, rows.cells)
}

func parseTaskCategories(raw []string) ([]types.Category, error) {
	if len(raw) == 0 {
		return nil, apperror.Validation("INVALID_CATEGORIES", "at least one category is required")
	}
	cats := make([]types.Category, 0, len(raw))
	seen := make(map[types.Category]bool, len(raw))
	for _, r := range raw {
		c, ok := types.ParseCategory(r)
		if !ok {
			return nil, apperror.Validation("INVALID_CATEGORIES", "unknown category %q", r)
		}
		if !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	types.SortCategories(cats)
	return cats, nil
}

// workTargets 校验并返回销售/维护类目目标,未给出的类目目标为 0
func workTargets(cats []types.Category, raw map[string]int64) (map[types.Category]int64, error) {
	active := make(map[types.Category]bool, len(cats))
	out := make(map[types.Category]int64, len(cats))
	for _, c := range cats {
		active[c] = true
		if c.IsWork() {
			out[c] = 0
		}
	}
	for k, v := range raw {
		c, ok := types.ParseCategory(k)
		if !ok || !c.IsWork() || !active[c] {
			return nil, apperror.Validation("INVALID_TARGETS", "target for %q is not an active progress category", k)
		}
		if v < 0 {
			return nil, apperror.Validation("INVALID_TARGETS", "target for %s must not be negative", c)
		}
		out[c] = v
	}
	return out, nil
}

// financeTargets 校验并返回收款类目目标金额
func financeTargets(cats []types.Category, raw map[string]decimal.Decimal) (map[types.Category]decimal.Decimal, error) {
	active := make(map[types.Category]bool, len(cats))
	out := make(map[types.Category]decimal.Decimal, len(cats))
	for _, c := range cats {
		active[c] = true
		if c.IsFinance() {
			out[c] = decimal.Zero
		}
	}
	for k, v := range raw {
		c, ok := types.ParseCategory(k)
		if !ok || !c.IsFinance() || !active[c] {
			return nil, apperror.Validation("INVALID_TARGETS", "finance target for %q is not an active finance category", k)
		}
		if v.IsNegative() {
			return nil, apperror.Validation("INVALID_TARGETS", "finance target for %s must not be negative", c)
		}
		out[c] = v
	}
	return out, nil
}
