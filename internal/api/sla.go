package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/metrics"
)

// SLAConfig 各类操作的响应时间目标
type SLAConfig struct {
	TaskCreationMaxTime   time.Duration
	ProgressUpdateMaxTime time.Duration
	ReviewMaxTime         time.Duration
	QueryMaxTime          time.Duration
	ReportMaxTime         time.Duration
}

// DefaultSLAConfig 返回默认 SLA 配置
func DefaultSLAConfig() *SLAConfig {
	return &SLAConfig{
		TaskCreationMaxTime:   time.Second,
		ProgressUpdateMaxTime: 500 * time.Millisecond,
		ReviewMaxTime:         time.Second,
		QueryMaxTime:          500 * time.Millisecond,
		ReportMaxTime:         5 * time.Second,
	}
}

// classifyOperation 按路由模板归类操作
func classifyOperation(method, route string) string {
	switch {
	case route == "":
		return ""
	case strings.HasSuffix(route, "/report.xlsx"):
		return "report"
	case strings.HasSuffix(route, "/approve"), strings.HasSuffix(route, "/reject"), strings.HasSuffix(route, "/submit"):
		return "review"
	case strings.HasSuffix(route, "/progress"), route == "/api/v1/finance/collections" && method == http.MethodPost:
		return "progress_update"
	case route == "/api/v1/tasks" && method == http.MethodPost:
		return "task_creation"
	case method == http.MethodGet:
		return "query"
	default:
		return ""
	}
}

// Objective 返回操作的响应时间目标,未知操作返回 0
func (s *SLAConfig) Objective(operation string) time.Duration {
	switch operation {
	case "task_creation":
		return s.TaskCreationMaxTime
	case "progress_update":
		return s.ProgressUpdateMaxTime
	case "review":
		return s.ReviewMaxTime
	case "query":
		return s.QueryMaxTime
	case "report":
		return s.ReportMaxTime
	default:
		return 0
	}
}

// SLAMonitorMiddleware 记录超出响应时间目标的请求
func SLAMonitorMiddleware(config *SLAConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultSLAConfig()
	}

	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		operation := classifyOperation(c.Request.Method, c.FullPath())
		expected := config.Objective(operation)
		duration := time.Since(start)
		if expected <= 0 || duration <= expected {
			return
		}

		metrics.RecordSLAViolation(operation)
		logger.GetLogger().WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"operation":  operation,
			"route":      c.FullPath(),
			"duration":   duration.String(),
			"expected":   expected.String(),
		}).Warn("SLA violation")
	}
}
