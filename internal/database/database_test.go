package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/database"
)

// TestConnect_SQLiteMigrate 测试 SQLite 连接与迁移
func TestConnect_SQLiteMigrate(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", MaxOpenConns: 50}
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	defer database.Close(db)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, database.Migrate(db))
	// 迁移可重复执行
	require.NoError(t, database.Migrate(db))

	for _, table := range []string{
		"employee_master_records", "employee_accounts", "tasks", "task_targets",
		"task_finance_ledgers", "assignments", "assignment_progress",
		"finance_collections", "state_history", "audit_logs",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	assert.NoError(t, database.CheckHealth(context.Background(), db))
}

// TestConnect_UnknownDriver 测试未知驱动
func TestConnect_UnknownDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

// TestBuildDSN 测试 DSN 构建
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "fieldops", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=fieldops sslmode=disable", dsn)
}

// TestCheckHealth_Nil 测试未初始化的连接
func TestCheckHealth_Nil(t *testing.T) {
	assert.Error(t, database.CheckHealth(context.Background(), nil))
}
