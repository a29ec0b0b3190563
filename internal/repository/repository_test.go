package repository_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/database"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
)

// setupTestDB 创建迁移完成的内存数据库,单连接保证所有查询落在同一个库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func strPtr(s string) *string {
	return &s
}

func master(persNo, name, reportsTo string, sortOrder int) *model.EmployeeMasterModel {
	m := &model.EmployeeMasterModel{
		PersNo:    persNo,
		Name:      name,
		Circle:    "KA",
		SortOrder: sortOrder,
	}
	if reportsTo != "" {
		m.ReportingPersNo = strPtr(reportsTo)
	}
	return m
}
