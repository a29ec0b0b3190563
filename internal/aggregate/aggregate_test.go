package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/aggregate"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

func cell(c types.Category, target, completed int64) aggregate.CategoryProgress {
	return aggregate.CategoryProgress{Category: c, Target: target, Completed: completed}
}

// TestPercentage 测试百分比取整
func TestPercentage(t *testing.T) {
	assert.Equal(t, 40, aggregate.Percentage(6, 15))
	assert.Equal(t, 100, aggregate.Percentage(15, 15))
	assert.Equal(t, 67, aggregate.Percentage(2, 3))
	assert.Equal(t, 0, aggregate.Percentage(5, 0))
	assert.Equal(t, 120, aggregate.Percentage(12, 10))
}

// TestAllTargetsAchieved 测试全部达标判定
func TestAllTargetsAchieved(t *testing.T) {
	assert.False(t, aggregate.AllTargetsAchieved(nil))
	assert.False(t, aggregate.AllTargetsAchieved([]aggregate.CategoryProgress{cell(types.CategorySIM, 0, 0)}))
	assert.False(t, aggregate.AllTargetsAchieved([]aggregate.CategoryProgress{
		cell(types.CategorySIM, 10, 10), cell(types.CategoryFTTH, 5, 4),
	}))
	assert.True(t, aggregate.AllTargetsAchieved([]aggregate.CategoryProgress{
		cell(types.CategorySIM, 10, 11), cell(types.CategoryFTTH, 5, 5),
	}))
}

// TestFirstDeficient 测试按规范顺序返回第一个未达标类目
func TestFirstDeficient(t *testing.T) {
	c, ok := aggregate.FirstDeficient([]aggregate.CategoryProgress{
		cell(types.CategoryOFCFail, 2, 0),
		cell(types.CategorySIM, 10, 10),
		cell(types.CategoryFTTH, 5, 1),
	})
	assert.True(t, ok)
	assert.Equal(t, types.CategoryFTTH, c.Category)

	_, ok = aggregate.FirstDeficient([]aggregate.CategoryProgress{cell(types.CategorySIM, 1, 1)})
	assert.False(t, ok)
}

// TestTaskTotals 测试销售与维护类目的汇总规则
func TestTaskTotals(t *testing.T) {
	declared := map[types.Category]int64{
		types.CategorySIM:     10,
		types.CategoryBTSDown: 3,
		types.CategoryFinLC:   0,
	}
	assignments := [][]aggregate.CategoryProgress{
		{cell(types.CategorySIM, 6, 4), cell(types.CategoryBTSDown, 2, 2)},
		{cell(types.CategorySIM, 4, 3), cell(types.CategoryBTSDown, 3, 1)},
	}

	totals := aggregate.TaskTotals(declared, assignments)
	assert.Len(t, totals, 2)

	assert.Equal(t, types.CategorySIM, totals[0].Category)
	assert.Equal(t, int64(10), totals[0].Target)
	assert.Equal(t, int64(7), totals[0].Completed)
	assert.Equal(t, 70, totals[0].Percentage)
	assert.False(t, totals[0].Achieved)

	// 维护类目目标取声明值与分配目标之和的较大者
	assert.Equal(t, types.CategoryBTSDown, totals[1].Category)
	assert.Equal(t, int64(5), totals[1].Target)
	assert.Equal(t, int64(3), totals[1].Completed)

	assert.Equal(t, 67, aggregate.OverallPercentage(totals))
	assert.Equal(t, 0, aggregate.OverallPercentage(nil))
}

// TestEffectiveLifecycle 测试显式状态优先与日期推导
func TestEffectiveLifecycle(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 5, 10, 0, 0, 0, 0, loc)
	end := time.Date(2026, 5, 20, 0, 0, 0, 0, loc)
	clock := aggregate.NewFixedClock(time.Date(2026, 5, 9, 23, 0, 0, 0, loc))

	assert.Equal(t, types.LabelUpcoming, aggregate.EffectiveLifecycle(types.TaskLifecycleUnset, start, end, clock.Now()))

	clock.Set(time.Date(2026, 5, 10, 8, 0, 0, 0, loc))
	assert.Equal(t, types.LabelActive, aggregate.EffectiveLifecycle(types.TaskLifecycleUnset, start, end, clock.Now()))

	// 结束当天仍为 active
	clock.Set(time.Date(2026, 5, 20, 23, 59, 0, 0, loc))
	assert.Equal(t, types.LabelActive, aggregate.EffectiveLifecycle(types.TaskLifecycleUnset, start, end, clock.Now()))

	clock.Set(time.Date(2026, 5, 21, 0, 1, 0, 0, loc))
	assert.Equal(t, types.LabelPastDue, aggregate.EffectiveLifecycle(types.TaskLifecycleUnset, start, end, clock.Now()))

	// 显式状态优先于日期
	assert.Equal(t, types.LabelPaused, aggregate.EffectiveLifecycle(types.TaskLifecyclePaused, start, end, clock.Now()))
	assert.Equal(t, types.LabelDraft, aggregate.EffectiveLifecycle(types.TaskLifecycleDraft, start, end, clock.Now()))
}
