package utils

import (
	"strings"
)

// ValidateSortField 排序字段必须属于白名单,防止 SQL 注入
func ValidateSortField(field string, allowed ...string) error {
	for _, a := range allowed {
		if field == a {
			return nil
		}
	}
	return ErrSortField
}

// ValidateSortOrder 验证排序方向
func ValidateSortOrder(order string) error {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder != "ASC" && upperOrder != "DESC" {
		return ErrSortOrder
	}
	return nil
}

// SanitizeSortOrder 规范化排序方向,非法值按降序处理
func SanitizeSortOrder(order string) string {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder == "ASC" || upperOrder == "DESC" {
		return upperOrder
	}
	return "DESC"
}
