package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
)

// TestNewLoggerFromConfig_JSON 测试 JSON 格式与默认字段
func TestNewLoggerFromConfig_JSON(t *testing.T) {
	l, err := logger.NewLoggerFromConfig(&config.LogConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.WithField("pers_no", "E100").Info("resolved")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "resolved", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, logger.ServiceName, entry["service"])
	assert.Equal(t, "E100", entry["pers_no"])
}

// TestNewLoggerFromConfig_InvalidLevel 测试无效日志级别回退到 info
func TestNewLoggerFromConfig_InvalidLevel(t *testing.T) {
	l, err := logger.NewLoggerFromConfig(&config.LogConfig{Level: "loud", Format: "text", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

// TestSetLevel 测试动态调整日志级别
func TestSetLevel(t *testing.T) {
	l := logger.NewLogger()
	logger.SetLogger(l)
	defer logger.SetLogger(nil)

	logger.SetLevel("warn")
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())

	logger.SetLevel("nonsense")
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())
}
