package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const namespace = "fieldops"

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 超出响应时间目标的请求
	slaViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_violations_total",
			Help:      "Total number of requests exceeding their latency objective",
		},
		[]string{"operation"},
	)

	// 任务创建数
	tasksCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_created_total",
			Help:      "Total number of tasks created",
		},
	)

	// 进度更新数
	progressUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_updates_total",
			Help:      "Total number of progress counter updates",
		},
		[]string{"kind"}, // sales, maintenance
	)

	// 提交审核结果
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of submit-for-review attempts",
		},
		[]string{"result"}, // submitted, targets_not_met
	)

	// 审核决定
	reviewDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_decisions_total",
			Help:      "Total number of review decisions",
		},
		[]string{"workflow", "action"}, // progress|finance, approve|reject
	)

	// 收款提交数
	collectionsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collections_submitted_total",
			Help:      "Total number of finance collections submitted",
		},
		[]string{"finance_type"},
	)

	// 审批通过的收款金额
	collectionAmountApproved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collection_amount_approved_total",
			Help:      "Sum of approved finance collection amounts",
		},
		[]string{"finance_type"},
	)

	// 层级遍历被截断(成环、悬空引用、深度上限)
	hierarchyTruncatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hierarchy_traversals_truncated_total",
			Help:      "Hierarchy traversals stopped early on malformed data or limits",
		},
		[]string{"operation", "reason"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_active",
			Help:      "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_idle",
			Help:      "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_max",
			Help:      "Maximum number of database connections",
		},
	)

	// 分配状态分布
	assignmentsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "assignments_by_status",
			Help:      "Number of assignments by submission status",
		},
		[]string{"status"},
	)

	// 待审核收款数
	pendingCollections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_collections",
			Help:      "Number of finance collections awaiting review",
		},
	)
)

var (
	once sync.Once
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		slaViolationsTotal,
		tasksCreatedTotal,
		progressUpdatesTotal,
		submissionsTotal,
		reviewDecisionsTotal,
		collectionsSubmittedTotal,
		collectionAmountApproved,
		hierarchyTruncatedTotal,
		databaseConnectionsActive,
		databaseConnectionsIdle,
		databaseConnectionsMax,
		assignmentsByStatus,
		pendingCollections,
	)

	// Go 运行时指标只注册一次,已注册时忽略错误
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordSLAViolation 记录超出响应时间目标的请求
func RecordSLAViolation(operation string) {
	slaViolationsTotal.WithLabelValues(operation).Inc()
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated() {
	tasksCreatedTotal.Inc()
}

// RecordProgressUpdate 记录进度更新
func RecordProgressUpdate(kind string) {
	progressUpdatesTotal.WithLabelValues(kind).Inc()
}

// RecordSubmission 记录提交审核结果
func RecordSubmission(result string) {
	submissionsTotal.WithLabelValues(result).Inc()
}

// RecordReviewDecision 记录审核决定
func RecordReviewDecision(workflow, action string) {
	reviewDecisionsTotal.WithLabelValues(workflow, action).Inc()
}

// RecordCollectionSubmitted 记录收款提交
func RecordCollectionSubmitted(financeType string) {
	collectionsSubmittedTotal.WithLabelValues(financeType).Inc()
}

// RecordCollectionApproved 记录审批通过的收款金额
func RecordCollectionApproved(financeType string, amount float64) {
	collectionAmountApproved.WithLabelValues(financeType).Add(amount)
}

// RecordHierarchyTruncated 记录层级遍历截断
func RecordHierarchyTruncated(operation, reason string) {
	hierarchyTruncatedTotal.WithLabelValues(operation, reason).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateAssignmentsByStatus 更新分配状态分布指标
func UpdateAssignmentsByStatus(status string, count float64) {
	assignmentsByStatus.WithLabelValues(status).Set(count)
}

// UpdatePendingCollections 更新待审核收款数
func UpdatePendingCollections(count float64) {
	pendingCollections.Set(count)
}
