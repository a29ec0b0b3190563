package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
)

// TestStateHistoryRepository_FindByTaskID 测试按任务和主体查询状态历史
func TestStateHistoryRepository_FindByTaskID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewStateHistoryRepository(db)
	ctx := context.Background()
	base := time.Now()

	states := []struct {
		subject string
		from    string
		to      string
	}{
		{"as-1", "not_started", "in_progress"},
		{"as-1", "in_progress", "submitted"},
		{"as-2", "not_started", "in_progress"},
	}
	for i, s := range states {
		require.NoError(t, repo.Save(ctx, &model.StateHistoryModel{
			ID:          "h-" + string(rune('1'+i)),
			TaskID:      "task-1",
			SubjectType: "assignment",
			SubjectID:   s.subject,
			FromState:   s.from,
			ToState:     s.to,
			Operator:    "acc-1",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.FindByTaskID(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "in_progress", all[0].ToState)

	bySubject, err := repo.FindBySubject(ctx, "assignment", "as-1")
	require.NoError(t, err)
	require.Len(t, bySubject, 2)
	assert.Equal(t, "submitted", bySubject[1].ToState)

	// 缺少必填字段时拒绝写入
	err = repo.Save(ctx, &model.StateHistoryModel{ID: "h-x", TaskID: "task-1"})
	assert.Error(t, err)
}
