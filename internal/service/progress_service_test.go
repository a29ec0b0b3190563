package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/service"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// TestProgressService_SubmitAndApprove 测试更新、提交门槛与审核通过的完整流程
func TestProgressService_SubmitAndApprove(t *testing.T) {
	f := newFixture(t)
	f.seedOrg(t)
	ctx := context.Background()

	task := f.createFieldTask(t)
	mgr := findAssignment(t, task, "acc-jto")
	assert.Equal(t, string(types.AssignmentNotStarted), mgr.Status)
	require.Len(t, mgr.Progress, 2)

	// 负增量不会让未开始的分配进入进行中
	view, err := f.progress.UpdateProgress(ctx, mgr.ID, "SIM", -3, "acc-jto")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentNotStarted), view.Status)
	assert.Equal(t, int64(0), view.Progress[0].Completed)

	view, err = f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 4, "acc-jto")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentInProgress), view.Status)
	assert.Equal(t, types.CategorySIM, view.Progress[0].Category)
	assert.Equal(t, int64(4), view.Progress[0].Completed)

	// 未达标时提交失败,并指出第一个未达标类目
	_, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindStateConflict))
	assert.Equal(t, "TARGETS_NOT_MET", codeOf(err))
	assert.Contains(t, err.Error(), "SIM")

	// 失败的提交不改变状态
	current, err := f.progress.GetAssignment(ctx, mgr.ID)
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentInProgress), current.Status)

	_, err = f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 6, "acc-jto")
	require.NoError(t, err)
	_, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
	assert.Contains(t, err.Error(), "FTTH")

	// 审核人也可以代为更新
	view, err = f.progress.UpdateProgress(ctx, mgr.ID, "FTTH", 5, "acc-sde")
	require.NoError(t, err)
	assert.True(t, view.TargetsAchieved)
	assert.Equal(t, 100, view.Percentage)

	// 只有本人可以提交
	_, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-sde")
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	view, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentSubmitted), view.Status)
	require.NotNil(t, view.SubmittedAt)

	// 已提交的分配不可再更新
	_, err = f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 1, "acc-jto")
	assert.Equal(t, "ASSIGNMENT_LOCKED", codeOf(err))

	// 同级与其他 circle 的管理者不能审核
	_, err = f.progress.Approve(ctx, mgr.ID, "acc-jto2")
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
	_, err = f.progress.Approve(ctx, mgr.ID, "acc-tn")
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
	// 不能审核自己
	_, err = f.progress.Approve(ctx, mgr.ID, "acc-jto")
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))

	view, err = f.progress.Approve(ctx, mgr.ID, "acc-sde")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentApproved), view.Status)
	assert.Equal(t, "acc-sde", view.ReviewerID)
	require.NotNil(t, view.ReviewedAt)

	_, err = f.progress.Approve(ctx, mgr.ID, "acc-agm")
	assert.True(t, apperror.Is(err, apperror.KindStateConflict))
	assert.Equal(t, "ALREADY_PROCESSED", codeOf(err))

	_, err = f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 1, "acc-jto")
	assert.True(t, apperror.Is(err, apperror.KindStateConflict))

	// 任务汇总反映最终进度
	task, err = f.tasks.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, task.Totals, 2)
	assert.Equal(t, int64(10), task.Totals[0].Completed)
	assert.Equal(t, int64(5), task.Totals[1].Completed)
	assert.Equal(t, 100, task.OverallPercentage)

	history, err := f.query.GetHistory(ctx, task.ID)
	require.NoError(t, err)
	var states []string
	for _, h := range history {
		if h.SubjectID == mgr.ID {
			states = append(states, h.ToState)
		}
	}
	assert.Equal(t, []string{"in_progress", "submitted", "approved"}, states)
}

// TestProgressService_RejectAndResume 测试拒绝后重新进入进行中
func TestProgressService_RejectAndResume(t *testing.T) {
	f := newFixture(t)
	f.seedOrg(t)
	ctx := context.Background()

	task := f.createFieldTask(t)
	mgr := findAssignment(t, task, "acc-jto")
	_, err := f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 10, "acc-jto")
	require.NoError(t, err)
	_, err = f.progress.UpdateProgress(ctx, mgr.ID, "FTTH", 5, "acc-jto")
	require.NoError(t, err)
	_, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
	require.NoError(t, err)

	// 原因校验先于授权
	_, err = f.progress.Reject(ctx, mgr.ID, "acc-tn", "  ")
	assert.True(t, apperror.Is(err, apperror.KindValidation))
	assert.Equal(t, "REASON_REQUIRED", codeOf(err))
	_, err = f.progress.Reject(ctx, mgr.ID, "acc-agm", strings.Repeat("x", 1001))
	assert.Equal(t, "REASON_TOO_LONG", codeOf(err))

	// 原因按原文保存,不做转义
	view, err := f.progress.Reject(ctx, mgr.ID, "acc-agm", " photos & GPS <missing> ")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentRejected), view.Status)
	assert.Equal(t, "photos & GPS <missing>", view.RejectionReason)

	// 被拒绝的分配需先更新回进行中才能再次提交
	_, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
	assert.Equal(t, "INVALID_STATE", codeOf(err))

	view, err = f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 1, "acc-jto")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentInProgress), view.Status)
	assert.Empty(t, view.RejectionReason)

	view, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentSubmitted), view.Status)
}

// TestProgressService_TaskClosedConcurrently 测试事务外检查之后任务被结束时变更被拒绝
func TestProgressService_TaskClosedConcurrently(t *testing.T) {
	ctx := context.Background()

	t.Run("update", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrg(t)
		task := f.createFieldTask(t)
		mgr := findAssignment(t, task, "acc-jto")

		f.closeTaskAfterNextRead(t, task.ID)
		_, err := f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 3, "acc-jto")
		assert.True(t, apperror.Is(err, apperror.KindStateConflict))
		assert.Equal(t, "TASK_CLOSED", codeOf(err))

		view, err := f.progress.GetAssignment(ctx, mgr.ID)
		require.NoError(t, err)
		assert.Equal(t, string(types.AssignmentNotStarted), view.Status)
		for _, p := range view.Progress {
			assert.Zero(t, p.Completed, p.Category)
		}
	})

	t.Run("submit", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrg(t)
		task := f.createFieldTask(t)
		mgr := findAssignment(t, task, "acc-jto")
		_, err := f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 10, "acc-jto")
		require.NoError(t, err)
		_, err = f.progress.UpdateProgress(ctx, mgr.ID, "FTTH", 5, "acc-jto")
		require.NoError(t, err)

		f.closeTaskAfterNextRead(t, task.ID)
		_, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
		assert.Equal(t, "TASK_CLOSED", codeOf(err))

		view, err := f.progress.GetAssignment(ctx, mgr.ID)
		require.NoError(t, err)
		assert.Equal(t, string(types.AssignmentInProgress), view.Status)
	})

	t.Run("review", func(t *testing.T) {
		f := newFixture(t)
		f.seedOrg(t)
		task := f.createFieldTask(t)
		mgr := findAssignment(t, task, "acc-jto")
		_, err := f.progress.UpdateProgress(ctx, mgr.ID, "SIM", 10, "acc-jto")
		require.NoError(t, err)
		_, err = f.progress.UpdateProgress(ctx, mgr.ID, "FTTH", 5, "acc-jto")
		require.NoError(t, err)
		_, err = f.progress.SubmitForReview(ctx, mgr.ID, "acc-jto")
		require.NoError(t, err)

		f.closeTaskAfterNextRead(t, task.ID)
		_, err = f.progress.Approve(ctx, mgr.ID, "acc-agm")
		assert.Equal(t, "TASK_CLOSED", codeOf(err))

		view, err := f.progress.GetAssignment(ctx, mgr.ID)
		require.NoError(t, err)
		assert.Equal(t, string(types.AssignmentSubmitted), view.Status)
	})
}

// TestProgressService_Errors 测试进度更新的各类错误
func TestProgressService_Errors(t *testing.T) {
	f := newFixture(t)
	f.seedOrg(t)
	ctx := context.Background()

	start, end := dates()
	task, err := f.tasks.CreateTask(ctx, &service.CreateTaskRequest{
		Name:       "EB and SIM",
		StartDate:  start,
		EndDate:    end,
		Categories: []string{"SIM", "EB", "BTS_DOWN"},
		Targets:    map[string]int64{"SIM": 3, "EB": 2},
		CreatorID:  "acc-sde",
	})
	require.NoError(t, err)

	// 成员只分到 SIM
	member, err := f.tasks.AddTeamMember(ctx, task.ID, &service.AddMemberRequest{
		EmployeeID: "acc-jto2",
		Targets:    map[string]int64{"SIM": 3},
		ActorID:    "acc-sde",
	})
	require.NoError(t, err)

	_, err = f.progress.UpdateProgress(ctx, member.ID, "EB", 1, "acc-jto2")
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
	assert.Equal(t, "CATEGORY_NOT_ASSIGNED", codeOf(err))

	_, err = f.progress.UpdateProgress(ctx, member.ID, "SIM", 0, "acc-jto2")
	assert.Equal(t, "INVALID_DELTA", codeOf(err))
	// 收款类目不是可更新的进度类目,按未分配处理
	_, err = f.progress.UpdateProgress(ctx, member.ID, "FIN_LC", 1, "acc-jto2")
	assert.True(t, apperror.Is(err, apperror.KindAuthorization))
	assert.Equal(t, "CATEGORY_NOT_ASSIGNED", codeOf(err))
	_, err = f.progress.UpdateProgress(ctx, member.ID, "FIN_LC", 1, "acc-jto")
	assert.Equal(t, "NOT_ASSIGNEE", codeOf(err))
	_, err = f.progress.UpdateProgress(ctx, member.ID, "UNKNOWN", 1, "acc-jto2")
	assert.Equal(t, "INVALID_CATEGORY", codeOf(err))
	_, err = f.progress.UpdateProgress(ctx, member.ID, "UNKNOWN", 1, "acc-jto2")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	// 同级不能代为更新
	_, err = f.progress.UpdateProgress(ctx, member.ID, "SIM", 1, "acc-jto")
	assert.Equal(t, "NOT_ASSIGNEE", codeOf(err))

	_, err = f.progress.UpdateProgress(ctx, "missing", "SIM", 1, "acc-jto2")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	// creator 分配没有进度单元
	creator := findAssignment(t, task, "acc-sde")
	_, err = f.progress.UpdateProgress(ctx, creator.ID, "SIM", 1, "acc-sde")
	assert.Equal(t, "CATEGORY_NOT_ASSIGNED", codeOf(err))

	// 没有正目标的分配不能提交
	zero, err := f.tasks.AddTeamMember(ctx, task.ID, &service.AddMemberRequest{
		EmployeeID: "acc-jto",
		Targets:    map[string]int64{"BTS_DOWN": 0},
		ActorID:    "acc-sde",
	})
	require.NoError(t, err)
	view, err := f.progress.UpdateProgress(ctx, zero.ID, "BTS_DOWN", 2, "acc-jto")
	require.NoError(t, err)
	assert.Equal(t, string(types.AssignmentInProgress), view.Status)
	_, err = f.progress.SubmitForReview(ctx, zero.ID, "acc-jto")
	assert.Equal(t, "NO_TARGETS", codeOf(err))

	// 任务结束后一切变更都被拒绝
	_, err = f.tasks.SetLifecycleStatus(ctx, task.ID, &service.LifecycleRequest{Status: "cancelled", ActorID: "acc-sde"})
	require.NoError(t, err)
	_, err = f.progress.UpdateProgress(ctx, member.ID, "SIM", 1, "acc-jto2")
	assert.True(t, apperror.Is(err, apperror.KindStateConflict))
	assert.Equal(t, "TASK_CLOSED", codeOf(err))
	_, err = f.progress.SubmitForReview(ctx, zero.ID, "acc-jto")
	assert.Equal(t, "TASK_CLOSED", codeOf(err))
}
