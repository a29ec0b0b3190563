package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	GetTaskStatisticsByLifecycle(ctx context.Context) ([]*TaskStatisticsByLifecycle, error)
	GetTaskStatisticsByTime(ctx context.Context) ([]*TaskStatisticsByTime, error)
	GetReviewStatistics(ctx context.Context, subjectType types.SubjectType) (*ReviewStatistics, error)
	GetCollectionStatistics(ctx context.Context) ([]*CollectionStatistics, error)
}

// TaskStatisticsByLifecycle 按显式生命周期统计,空串表示未设置
type TaskStatisticsByLifecycle struct {
	Lifecycle string `json:"lifecycle"`
	Count     int64  `json:"count"`
}

// TaskStatisticsByTime 按创建日期统计
type TaskStatisticsByTime struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ReviewStatistics 审核统计
type ReviewStatistics struct {
	SubjectType         string  `json:"subject_type"`
	TotalReviews        int64   `json:"total_reviews"`
	ApprovedCount       int64   `json:"approved_count"`
	RejectedCount       int64   `json:"rejected_count"`
	ApprovalRate        float64 `json:"approval_rate"`
	AverageReviewTime   float64 `json:"average_review_time"` // 单位:秒,仅分配审核
	PendingReviewsCount int64   `json:"pending_reviews_count"`
}

// CollectionStatistics 各收款类目的目标与已收金额合计
type CollectionStatistics struct {
	FinanceType  string          `json:"finance_type"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	Collected    decimal.Decimal `json:"collected"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db           *gorm.DB
	storeTimeout time.Duration
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB, storeTimeout time.Duration) StatisticsService {
	return &statisticsService{db: db, storeTimeout: storeTimeout}
}

// GetTaskStatisticsByLifecycle 按生命周期统计任务
func (s *statisticsService) GetTaskStatisticsByLifecycle(ctx context.Context) ([]*TaskStatisticsByLifecycle, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var results []struct {
		Lifecycle string
		Count     int64
	}
	err := s.db.WithContext(sctx).Model(&model.TaskModel{}).
		Select("lifecycle, COUNT(*) as count").
		Group("lifecycle").
		Order("lifecycle ASC").
		Scan(&results).Error
	if err != nil {
		return nil, apperror.FromStore(fmt.Errorf("failed to get task statistics by lifecycle: %w", err), "task", "")
	}

	stats := make([]*TaskStatisticsByLifecycle, 0, len(results))
	for _, r := range results {
		stats = append(stats, &TaskStatisticsByLifecycle{Lifecycle: r.Lifecycle, Count: r.Count})
	}
	return stats, nil
}

// GetTaskStatisticsByTime 按创建日期统计任务
func (s *statisticsService) GetTaskStatisticsByTime(ctx context.Context) ([]*TaskStatisticsByTime, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var results []struct {
		Date  string
		Count int64
	}
	err := s.db.WithContext(sctx).Model(&model.TaskModel{}).
		Select("CAST(DATE(created_at) AS TEXT) as date, COUNT(*) as count").
		Group("DATE(created_at)").
		Order("date DESC").
		Scan(&results).Error
	if err != nil {
		return nil, apperror.FromStore(fmt.Errorf("failed to get task statistics by time: %w", err), "task", "")
	}

	stats := make([]*TaskStatisticsByTime, 0, len(results))
	for _, r := range results {
		stats = append(stats, &TaskStatisticsByTime{Date: r.Date, Count: r.Count})
	}
	return stats, nil
}

// GetReviewStatistics 统计分配或收款记录的审核结果
func (s *statisticsService) GetReviewStatistics(ctx context.Context, subjectType types.SubjectType) (*ReviewStatistics, error) {
	var (
		table                      string
		approved, rejected, queued string
	)
	switch subjectType {
	case types.SubjectAssignment:
		table = model.AssignmentModel{}.TableName()
		approved, rejected, queued = string(types.AssignmentApproved), string(types.AssignmentRejected), string(types.AssignmentSubmitted)
	case types.SubjectCollection:
		table = model.FinanceCollectionModel{}.TableName()
		approved, rejected, queued = string(types.CollectionApproved), string(types.CollectionRejected), string(types.CollectionPending)
	default:
		return nil, apperror.Validation("INVALID_SUBJECT", "unsupported subject type %q", subjectType)
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var results []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(sctx).Table(table).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, apperror.FromStore(fmt.Errorf("failed to count reviews: %w", err), string(subjectType), "")
	}

	stats := &ReviewStatistics{SubjectType: string(subjectType)}
	for _, r := range results {
		switch r.Status {
		case approved:
			stats.ApprovedCount = r.Count
		case rejected:
			stats.RejectedCount = r.Count
		case queued:
			stats.PendingReviewsCount = r.Count
		}
	}
	stats.TotalReviews = stats.ApprovedCount + stats.RejectedCount
	if stats.TotalReviews > 0 {
		stats.ApprovalRate = float64(stats.ApprovedCount) / float64(stats.TotalReviews) * 100
	}

	if subjectType == types.SubjectAssignment {
		var rows []struct {
			SubmittedAt time.Time
			ReviewedAt  time.Time
		}
		err := s.db.WithContext(sctx).Model(&model.AssignmentModel{}).
			Select("submitted_at, reviewed_at").
			Where("submitted_at IS NOT NULL AND reviewed_at IS NOT NULL").
			Scan(&rows).Error
		if err != nil {
			return nil, apperror.FromStore(fmt.Errorf("failed to load review times: %w", err), string(subjectType), "")
		}
		var total time.Duration
		for _, r := range rows {
			total += r.ReviewedAt.Sub(r.SubmittedAt)
		}
		if len(rows) > 0 {
			stats.AverageReviewTime = total.Seconds() / float64(len(rows))
		}
	}
	return stats, nil
}

// GetCollectionStatistics 汇总所有任务的收款台账
func (s *statisticsService) GetCollectionStatistics(ctx context.Context) ([]*CollectionStatistics, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	var ledgers []*model.TaskFinanceLedgerModel
	if err := s.db.WithContext(sctx).Find(&ledgers).Error; err != nil {
		return nil, apperror.FromStore(fmt.Errorf("failed to load ledgers: %w", err), "task", "")
	}

	byType := make(map[string]*CollectionStatistics)
	var order []types.Category
	for _, l := range ledgers {
		st, ok := byType[l.FinanceType]
		if !ok {
			st = &CollectionStatistics{FinanceType: l.FinanceType, TargetAmount: decimal.Zero, Collected: decimal.Zero}
			byType[l.FinanceType] = st
			order = append(order, types.Category(l.FinanceType))
		}
		st.TargetAmount = st.TargetAmount.Add(l.TargetAmount)
		st.Collected = st.Collected.Add(l.Collected)
	}
	types.SortCategories(order)

	out := make([]*CollectionStatistics, 0, len(order))
	for _, c := range order {
		out = append(out, byType[string(c)])
	}
	return out, nil
}
