// Package aggregate 汇总计算: 类目完成度、任务总体百分比、有效生命周期标签。
// 所有函数均为纯函数,不修改任何存储状态。
package aggregate

import (
	"math"
	"time"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// CategoryProgress 单个类目的目标与完成数
type CategoryProgress struct {
	Category  types.Category `json:"category"`
	Target    int64          `json:"target"`
	Completed int64          `json:"completed"`
}

// Achieved 完成数达到或超过目标
func (p CategoryProgress) Achieved() bool {
	return p.Completed >= p.Target
}

// CategoryTotal 任务级类目汇总
type CategoryTotal struct {
	Category   types.Category `json:"category"`
	Kind       string         `json:"kind"`
	Target     int64          `json:"target"`
	Completed  int64          `json:"completed"`
	Percentage int            `json:"percentage"`
	Achieved   bool           `json:"achieved"`
}

// Percentage 四舍五入到整数的完成百分比,目标为 0 时为 0
func Percentage(completed, target int64) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(target) * 100))
}

// AllTargetsAchieved 分配下每个类目均达标,且至少有一个目标大于 0
func AllTargetsAchieved(cells []CategoryProgress) bool {
	hasTarget := false
	for _, c := range cells {
		if c.Target > 0 {
			hasTarget = true
		}
		if !c.Achieved() {
			return false
		}
	}
	return hasTarget
}

// FirstDeficient 按规范类目顺序返回第一个未达标的类目
func FirstDeficient(cells []CategoryProgress) (CategoryProgress, bool) {
	var (
		found bool
		first CategoryProgress
	)
	for _, c := range cells {
		if c.Achieved() {
			continue
		}
		if !found || c.Category.Ordinal() < first.Category.Ordinal() {
			first = c
			found = true
		}
	}
	return first, found
}

// TaskTotals 按类目汇总任务下所有分配的进度
// 销售类目: 目标取任务声明值,完成数为各分配之和。
// 维护类目: 完成数为各分配之和,目标取声明值与各分配目标之和中的较大者。
func TaskTotals(declared map[types.Category]int64, assignments [][]CategoryProgress) []CategoryTotal {
	completed := make(map[types.Category]int64)
	assignedTargets := make(map[types.Category]int64)
	for _, cells := range assignments {
		for _, c := range cells {
			completed[c.Category] += c.Completed
			assignedTargets[c.Category] += c.Target
		}
	}

	cats := make([]types.Category, 0, len(declared))
	for c := range declared {
		if c.IsWork() {
			cats = append(cats, c)
		}
	}
	types.SortCategories(cats)

	out := make([]CategoryTotal, 0, len(cats))
	for _, c := range cats {
		target := declared[c]
		if c.Kind() == types.CategoryKindMaintenance && assignedTargets[c] > target {
			target = assignedTargets[c]
		}
		done := completed[c]
		out = append(out, CategoryTotal{
			Category:   c,
			Kind:       string(c.Kind()),
			Target:     target,
			Completed:  done,
			Percentage: Percentage(done, target),
			Achieved:   target > 0 && done >= target,
		})
	}
	return out
}

// OverallPercentage 所有类目完成数之和 / 所有类目目标之和
func OverallPercentage(totals []CategoryTotal) int {
	var done, target int64
	for _, t := range totals {
		done += t.Completed
		target += t.Target
	}
	return Percentage(done, target)
}

// AssignmentPercentage 单个分配的总体完成百分比
func AssignmentPercentage(cells []CategoryProgress) int {
	var done, target int64
	for _, c := range cells {
		done += c.Completed
		target += c.Target
	}
	return Percentage(done, target)
}

// EffectiveLifecycle 展示用生命周期标签
// 显式状态优先;未设置时按日期区间与"今天"比较(按自然日,区间两端包含)。
func EffectiveLifecycle(status types.TaskLifecycle, start, end time.Time, now time.Time) types.LifecycleLabel {
	if status.Valid() {
		return types.LifecycleLabel(status)
	}
	today := day(now, now.Location())
	if !start.IsZero() && today.Before(day(start, now.Location())) {
		return types.LabelUpcoming
	}
	if !end.IsZero() && today.After(day(end, now.Location())) {
		return types.LabelPastDue
	}
	return types.LabelActive
}

func day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
