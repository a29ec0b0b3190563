package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// AncestorResolver 返回员工的上级链(由近及远),不存在时返回空
type AncestorResolver interface {
	AncestorPersNos(ctx context.Context, persNo string) ([]string, error)
}

// ReviewGuard 审核授权策略,进度审核与收款审核共用
//
// 审核人满足以下任一条件即可审核:
//   - 审核人的 persNo 出现在被审核人的上级链中;
//   - 审核人职级不低于管理阈值,且与被审核人属于同一 circle。
//
// 任何人都不能审核自己。
type ReviewGuard struct {
	accounts  repository.AccountRepository
	masters   repository.HierarchyRepository
	ancestors AncestorResolver
	threshold types.Rank
	cache     *PermissionCache
	log       *logrus.Entry
}

// NewReviewGuard 创建审核授权策略
func NewReviewGuard(
	accounts repository.AccountRepository,
	masters repository.HierarchyRepository,
	ancestors AncestorResolver,
	cfg config.ReviewConfig,
) *ReviewGuard {
	threshold := types.ParseRank(cfg.ManagementThreshold)
	if threshold == types.RankUnknown {
		threshold = types.RankAGM
	}
	return &ReviewGuard{
		accounts:  accounts,
		masters:   masters,
		ancestors: ancestors,
		threshold: threshold,
		cache:     NewPermissionCache(cfg.CacheTTL),
		log:       logger.Component("review_guard"),
	}
}

// subject 被审核人
type subject struct {
	accountID string
	persNo    string
	circle    string
}

// CanReview 判断账号 reviewerID 能否审核 persNo 为 subjectPersNo 的员工
func (g *ReviewGuard) CanReview(ctx context.Context, reviewerID string, subjectPersNo string) (bool, error) {
	return g.decide(ctx, reviewerID, subject{persNo: subjectPersNo})
}

// CanReviewAccount 判断账号 reviewerID 能否审核账号 subjectAccountID
// 被审核账号未关联主数据时,只能按职级 + circle 规则判定
func (g *ReviewGuard) CanReviewAccount(ctx context.Context, reviewerID string, subjectAccountID string) (bool, error) {
	if reviewerID == "" || reviewerID == subjectAccountID {
		return false, nil
	}
	acc, err := g.accounts.FindByID(ctx, subjectAccountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return g.decide(ctx, reviewerID, subject{
		accountID: acc.ID,
		persNo:    acc.LinkedPersNo(),
		circle:    acc.Circle,
	})
}

// Invalidate 清空缓存的判定结果
func (g *ReviewGuard) Invalidate() {
	g.cache.Clear()
}

func (g *ReviewGuard) decide(ctx context.Context, reviewerID string, s subject) (bool, error) {
	if reviewerID == "" || reviewerID == s.accountID {
		return false, nil
	}
	key := reviewerID + "|" + s.persNo + "|" + s.accountID
	if allowed, ok := g.cache.Get(key); ok {
		return allowed, nil
	}

	allowed, reason, err := g.evaluate(ctx, reviewerID, s)
	if err != nil {
		return false, err
	}
	g.cache.Set(key, allowed)

	g.log.WithFields(logrus.Fields{
		"reviewer": reviewerID,
		"subject":  s.persNo,
		"allowed":  allowed,
		"rule":     reason,
	}).Debug("review authorization evaluated")
	return allowed, nil
}

func (g *ReviewGuard) evaluate(ctx context.Context, reviewerID string, s subject) (bool, string, error) {
	reviewer, err := g.accounts.FindByID(ctx, reviewerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, "unknown_reviewer", nil
	}
	if err != nil {
		return false, "", err
	}
	reviewerPersNo := reviewer.LinkedPersNo()
	if reviewerPersNo != "" && reviewerPersNo == s.persNo {
		return false, "self", nil
	}

	var subjectMaster *model.EmployeeMasterModel
	if s.persNo != "" {
		subjectMaster, err = g.masters.FindByPersNo(ctx, s.persNo)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "", err
		}
	}

	// 上级链规则
	if reviewerPersNo != "" && subjectMaster != nil {
		chain, err := g.ancestors.AncestorPersNos(ctx, s.persNo)
		if err != nil {
			return false, "", err
		}
		for _, p := range chain {
			if p == reviewerPersNo {
				return true, "ancestor", nil
			}
		}
	}

	// 管理职级规则
	if !types.ParseRank(reviewer.Role).AtLeast(g.threshold) {
		return false, "denied", nil
	}
	subjectCircle := s.circle
	if subjectMaster != nil && subjectMaster.Circle != "" {
		subjectCircle = subjectMaster.Circle
	}
	reviewerCircle := reviewer.Circle
	if reviewerCircle == "" && reviewerPersNo != "" {
		if m, err := g.masters.FindByPersNo(ctx, reviewerPersNo); err == nil {
			reviewerCircle = m.Circle
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, "", err
		}
	}
	if subjectCircle != "" && strings.EqualFold(subjectCircle, reviewerCircle) {
		return true, "management_rank", nil
	}
	return false, "denied", nil
}
