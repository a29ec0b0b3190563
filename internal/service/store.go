package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// maxRemarkLen 拒绝原因/备注的最大长度
const maxRemarkLen = 1000

// withStoreTimeout 为一次存储访问设置超时,d <= 0 时不限时
func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// txRepos 事务内使用的仓储集合,必须由事务句柄构造
type txRepos struct {
	tasks       repository.TaskRepository
	assignments repository.AssignmentRepository
	collections repository.FinanceCollectionRepository
	masters     repository.HierarchyRepository
	accounts    repository.AccountRepository
	history     repository.StateHistoryRepository
}

func reposFor(tx *gorm.DB) *txRepos {
	return &txRepos{
		tasks:       repository.NewTaskRepository(tx),
		assignments: repository.NewAssignmentRepository(tx),
		collections: repository.NewFinanceCollectionRepository(tx),
		masters:     repository.NewHierarchyRepository(tx),
		accounts:    repository.NewAccountRepository(tx),
		history:     repository.NewStateHistoryRepository(tx),
	}
}

// lockOpenTask 事务内重新确认任务未结束并锁定任务行
// 事务外的生命周期检查只用于快速失败
func lockOpenTask(ctx context.Context, r *txRepos, taskID string) error {
	ok, err := r.tasks.LockOpen(ctx, taskID, types.TerminalTaskLifecycles())
	if err != nil {
		return err
	}
	if !ok {
		return apperror.Conflict("TASK_CLOSED", "task was closed")
	}
	return nil
}
