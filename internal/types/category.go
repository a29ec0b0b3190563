package types

import (
	"sort"
	"strings"
)

// Category 任务类目(封闭枚举,新增类目需要同时调整目标字段和汇总规则)
type Category string

// CategoryKind 类目种类
type CategoryKind string

const (
	CategoryKindSales       CategoryKind = "sales"
	CategoryKindMaintenance CategoryKind = "maintenance"
	CategoryKindFinance     CategoryKind = "finance"
)

// 销售类目
const (
	CategorySIM          Category = "SIM"
	CategoryFTTH         Category = "FTTH"
	CategoryLeaseCircuit Category = "LEASE_CIRCUIT"
	CategoryEB           Category = "EB"
)

// 维护类目
const (
	CategoryBTSDown   Category = "BTS_DOWN"
	CategoryFTTHDown  Category = "FTTH_DOWN"
	CategoryRouteFail Category = "ROUTE_FAIL"
	CategoryOFCFail   Category = "OFC_FAIL"
)

// 收款类目
const (
	CategoryFinLC           Category = "FIN_LC"
	CategoryFinLLFTTH       Category = "FIN_LL_FTTH"
	CategoryFinTower        Category = "FIN_TOWER"
	CategoryFinGSMPostpaid  Category = "FIN_GSM_POSTPAID"
	CategoryFinRentBuilding Category = "FIN_RENT_BUILDING"
)

// CategoryVocabularyVersion 类目词表版本,词表变化时递增
const CategoryVocabularyVersion = 1

// categoryOrder 类目的规范顺序,"第一个未达标类目"按此顺序判定
var categoryOrder = []Category{
	CategorySIM,
	CategoryFTTH,
	CategoryLeaseCircuit,
	CategoryEB,
	CategoryBTSDown,
	CategoryFTTHDown,
	CategoryRouteFail,
	CategoryOFCFail,
	CategoryFinLC,
	CategoryFinLLFTTH,
	CategoryFinTower,
	CategoryFinGSMPostpaid,
	CategoryFinRentBuilding,
}

var categoryKinds = map[Category]CategoryKind{
	CategorySIM:             CategoryKindSales,
	CategoryFTTH:            CategoryKindSales,
	CategoryLeaseCircuit:    CategoryKindSales,
	CategoryEB:              CategoryKindSales,
	CategoryBTSDown:         CategoryKindMaintenance,
	CategoryFTTHDown:        CategoryKindMaintenance,
	CategoryRouteFail:       CategoryKindMaintenance,
	CategoryOFCFail:         CategoryKindMaintenance,
	CategoryFinLC:           CategoryKindFinance,
	CategoryFinLLFTTH:       CategoryKindFinance,
	CategoryFinTower:        CategoryKindFinance,
	CategoryFinGSMPostpaid:  CategoryKindFinance,
	CategoryFinRentBuilding: CategoryKindFinance,
}

// AllCategories 返回按规范顺序排列的全部类目
func AllCategories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ParseCategory 解析类目,大小写不敏感
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := categoryKinds[c]; !ok {
		return "", false
	}
	return c, true
}

// Valid 是否为已知类目
func (c Category) Valid() bool {
	_, ok := categoryKinds[c]
	return ok
}

// Kind 类目种类
func (c Category) Kind() CategoryKind {
	return categoryKinds[c]
}

// IsFinance 是否为收款类目
func (c Category) IsFinance() bool {
	return c.Kind() == CategoryKindFinance
}

// IsWork 是否为计数类目(销售或维护)
func (c Category) IsWork() bool {
	k := c.Kind()
	return k == CategoryKindSales || k == CategoryKindMaintenance
}

// Ordinal 类目在规范顺序中的位置,未知类目排在最后
func (c Category) Ordinal() int {
	for i, v := range categoryOrder {
		if v == c {
			return i
		}
	}
	return len(categoryOrder)
}

// SortCategories 按规范顺序原地排序
func SortCategories(cs []Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].Ordinal() < cs[j].Ordinal()
	})
}

// JoinCategories 将类目集合编码为逗号分隔字符串(用于存储)
func JoinCategories(cs []Category) string {
	sorted := make([]Category, len(cs))
	copy(sorted, cs)
	SortCategories(sorted)
	parts := make([]string, 0, len(sorted))
	seen := make(map[Category]bool, len(sorted))
	for _, c := range sorted {
		if seen[c] {
			continue
		}
		seen[c] = true
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

// SplitCategories 解析逗号分隔的类目字符串,忽略未知项
func SplitCategories(s string) []Category {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []Category
	for _, p := range strings.Split(s, ",") {
		if c, ok := ParseCategory(p); ok {
			out = append(out, c)
		}
	}
	SortCategories(out)
	return out
}
