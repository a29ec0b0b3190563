package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/aggregate"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/container"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/database"
)

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

// TestNewWithDB_Auth 测试认证方式的选择
func TestNewWithDB_Auth(t *testing.T) {
	db := setupTestDB(t)

	cfg := config.Default()
	cfg.Env = "development"
	cfg.Keycloak.Issuer = ""
	ctr, err := container.NewWithDB(cfg, db, aggregate.SystemClock{})
	require.NoError(t, err)
	assert.Nil(t, ctr.KeycloakValidator())
	assert.NotNil(t, ctr.TaskService())
	assert.NotNil(t, ctr.ReviewGuard())

	// 生产环境不允许退回请求头认证
	cfg.Env = "production"
	_, err = container.NewWithDB(cfg, db, aggregate.SystemClock{})
	assert.ErrorIs(t, err, container.ErrAuthNotConfigured)

	cfg.Keycloak.Issuer = "https://keycloak.example.com/realms/fieldops"
	ctr, err = container.NewWithDB(cfg, db, aggregate.SystemClock{})
	require.NoError(t, err)
	require.NotNil(t, ctr.KeycloakValidator())
	assert.Equal(t, cfg.Keycloak.Issuer, ctr.KeycloakValidator().Issuer())
}
