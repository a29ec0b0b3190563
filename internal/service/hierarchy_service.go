package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/apperror"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/config"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/logger"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/metrics"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/repository"
	"github.com/aulnovauk/sales-management-process-old-sub001/internal/types"
)

// HierarchyService 组织层级解析服务
// 主数据的 reporting_pers_no 可能缺失、自引用、悬空或成环,所有遍历都以已访问集合防护,
// 遇到异常数据时截断返回,不报错
type HierarchyService interface {
	ResolveAncestors(ctx context.Context, persNo string, maxDepth int) ([]*HierarchyNode, error)
	AncestorPersNos(ctx context.Context, persNo string) ([]string, error)
	ResolveSubordinates(ctx context.Context, persNo string, maxDepth int) ([]*HierarchyNode, error)
	Search(ctx context.Context, rootPersNo string, query string) ([]*HierarchyNode, error)
	GetMyHierarchy(ctx context.Context, accountID string) (*MyHierarchy, error)
	GetFullHierarchy(ctx context.Context, persNo string) (*FullHierarchy, error)
	AuthorizeView(ctx context.Context, accountID string, persNo string) error
	UpsertMasterRecord(ctx context.Context, req *MasterRecordRequest) (*model.EmployeeMasterModel, error)
	LinkMasterRecordToAccount(ctx context.Context, persNo string, accountID string) error
	SaveAccount(ctx context.Context, req *AccountRequest) error
	PurgeUnlinked(ctx context.Context) (int64, error)
	OnChange(fn func())
}

// HierarchyNode 层级视图节点
type HierarchyNode struct {
	PersNo             string           `json:"pers_no"`
	Name               string           `json:"name"`
	Designation        string           `json:"designation,omitempty"`
	Circle             string           `json:"circle,omitempty"`
	Zone               string           `json:"zone,omitempty"`
	Division           string           `json:"division,omitempty"`
	Office             string           `json:"office,omitempty"`
	ReportingPersNo    string           `json:"reporting_pers_no,omitempty"`
	Account            *AccountSummary  `json:"account,omitempty"`
	DirectReportsCount int64            `json:"direct_reports_count"`
	Children           []*HierarchyNode `json:"children,omitempty"`
}

// AccountSummary 节点关联账号摘要
type AccountSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Circle string `json:"circle,omitempty"`
}

// MyHierarchy 当前账号的主数据关联情况
type MyHierarchy struct {
	IsLinked   bool           `json:"is_linked"`
	MasterData *HierarchyNode `json:"master_data,omitempty"`
}

// FullHierarchy 某员工的完整层级视图
type FullHierarchy struct {
	Managers     []*HierarchyNode `json:"managers"`
	CurrentUser  *HierarchyNode   `json:"current_user"`
	Subordinates []*HierarchyNode `json:"subordinates"`
}

// MasterRecordRequest 主数据写入请求
type MasterRecordRequest struct {
	PersNo          string `json:"pers_no" binding:"required"`
	Name            string `json:"name" binding:"required"`
	Designation     string `json:"designation"`
	Circle          string `json:"circle"`
	Zone            string `json:"zone"`
	Division        string `json:"division"`
	Office          string `json:"office"`
	SortOrder       int    `json:"sort_order"`
	ReportingPersNo string `json:"reporting_pers_no"`
}

// AccountRequest 账号写入请求
type AccountRequest struct {
	ID     string `json:"id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Role   string `json:"role" binding:"required"`
	Circle string `json:"circle"`
}

// 截断原因
const (
	truncCycle    = "cycle"
	truncDangling = "dangling"
	truncDepth    = "depth"
	truncVisited  = "visited_cap"
)

type hierarchyService struct {
	db           *gorm.DB
	masters      repository.HierarchyRepository
	accounts     repository.AccountRepository
	cfg          config.HierarchyConfig
	storeTimeout time.Duration
	auditLogSvc  AuditLogService
	log          *logrus.Entry

	mu        sync.RWMutex
	listeners []func()
}

// NewHierarchyService 创建组织层级服务
func NewHierarchyService(db *gorm.DB, cfg config.HierarchyConfig, storeTimeout time.Duration, auditLogSvc AuditLogService) HierarchyService {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 32
	}
	if cfg.ExpandDepth <= 0 {
		cfg.ExpandDepth = 2
	}
	if cfg.MaxVisited <= 0 {
		cfg.MaxVisited = 10000
	}
	return &hierarchyService{
		db:           db,
		masters:      repository.NewHierarchyRepository(db),
		accounts:     repository.NewAccountRepository(db),
		cfg:          cfg,
		storeTimeout: storeTimeout,
		auditLogSvc:  auditLogSvc,
		log:          logger.Component("hierarchy"),
	}
}

// OnChange 注册主数据或账号变更后的回调(用于清空授权缓存)
func (s *hierarchyService) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *hierarchyService) notifyChange() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.listeners {
		fn()
	}
}

// ResolveAncestors 由近及远返回上级链,maxDepth <= 0 时使用配置的上限
func (s *hierarchyService) ResolveAncestors(ctx context.Context, persNo string, maxDepth int) ([]*HierarchyNode, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	chain, err := s.walkUp(sctx, persNo, maxDepth)
	if err != nil {
		return nil, apperror.FromStore(err, "employee", persNo)
	}
	nodes := make([]*HierarchyNode, 0, len(chain))
	for _, rec := range chain {
		nodes = append(nodes, toNode(rec))
	}
	if err := s.decorate(sctx, nodes); err != nil {
		return nil, apperror.FromStore(err, "employee", persNo)
	}
	return nodes, nil
}

// AncestorPersNos 完整上级链的 persNo 列表,仅受已访问节点上限约束
func (s *hierarchyService) AncestorPersNos(ctx context.Context, persNo string) ([]string, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	chain, err := s.walkUp(sctx, persNo, s.cfg.MaxVisited)
	if err != nil {
		return nil, apperror.FromStore(err, "employee", persNo)
	}
	out := make([]string, 0, len(chain))
	for _, rec := range chain {
		out = append(out, rec.PersNo)
	}
	return out, nil
}

func (s *hierarchyService) walkUp(ctx context.Context, persNo string, maxDepth int) ([]*model.EmployeeMasterModel, error) {
	if maxDepth <= 0 {
		maxDepth = s.cfg.MaxDepth
	}
	cur, err := s.masters.FindByPersNo(ctx, persNo)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{persNo: true}
	var chain []*model.EmployeeMasterModel
	for {
		next := cur.ReportsTo()
		if next == "" {
			break
		}
		if visited[next] {
			s.truncated("ancestors", truncCycle, persNo, next)
			break
		}
		if len(chain) >= maxDepth {
			s.truncated("ancestors", truncDepth, persNo, next)
			break
		}
		if len(visited) >= s.cfg.MaxVisited {
			s.truncated("ancestors", truncVisited, persNo, next)
			break
		}
		rec, err := s.masters.FindByPersNo(ctx, next)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.truncated("ancestors", truncDangling, persNo, next)
			break
		}
		if err != nil {
			return nil, err
		}
		visited[next] = true
		chain = append(chain, rec)
		cur = rec
	}
	return chain, nil
}

// ResolveSubordinates 返回下属树,超过 maxDepth 的层级不展开,但每个节点都带直接下属数
func (s *hierarchyService) ResolveSubordinates(ctx context.Context, persNo string, maxDepth int) ([]*HierarchyNode, error) {
	if maxDepth <= 0 {
		maxDepth = s.cfg.ExpandDepth
	}
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.masters.FindByPersNo(sctx, persNo); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []*HierarchyNode{}, nil
		}
		return nil, apperror.FromStore(err, "employee", persNo)
	}

	visited := map[string]bool{persNo: true}
	byPersNo := make(map[string]*HierarchyNode)
	roots := []*HierarchyNode{}
	var all []*HierarchyNode

	level := []string{persNo}
	for depth := 1; depth <= maxDepth && len(level) > 0; depth++ {
		reports, err := s.masters.FindDirectReports(sctx, level)
		if err != nil {
			return nil, apperror.FromStore(err, "employee", persNo)
		}
		var next []string
		for _, rec := range reports {
			if visited[rec.PersNo] {
				s.truncated("subordinates", truncCycle, persNo, rec.PersNo)
				continue
			}
			if len(visited) >= s.cfg.MaxVisited {
				s.truncated("subordinates", truncVisited, persNo, rec.PersNo)
				break
			}
			visited[rec.PersNo] = true
			node := toNode(rec)
			byPersNo[rec.PersNo] = node
			all = append(all, node)
			if parent, ok := byPersNo[rec.ReportsTo()]; ok {
				parent.Children = append(parent.Children, node)
			} else {
				roots = append(roots, node)
			}
			next = append(next, rec.PersNo)
		}
		level = next
	}

	if err := s.decorate(sctx, all); err != nil {
		return nil, apperror.FromStore(err, "employee", persNo)
	}
	return roots, nil
}

// Search 在 rootPersNo 的子树内按姓名或 persNo 做大小写不敏感的子串匹配
// 根节点本身不参与匹配,空查询返回空结果
func (s *hierarchyService) Search(ctx context.Context, rootPersNo string, query string) ([]*HierarchyNode, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []*HierarchyNode{}, nil
	}
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	type hit struct {
		rec  *model.EmployeeMasterModel
		rank int
	}
	var hits []hit

	visited := map[string]bool{rootPersNo: true}
	level := []string{rootPersNo}
	for len(level) > 0 {
		reports, err := s.masters.FindDirectReports(sctx, level)
		if err != nil {
			return nil, apperror.FromStore(err, "employee", rootPersNo)
		}
		var next []string
		for _, rec := range reports {
			if visited[rec.PersNo] {
				s.truncated("search", truncCycle, rootPersNo, rec.PersNo)
				continue
			}
			if len(visited) >= s.cfg.MaxVisited {
				s.truncated("search", truncVisited, rootPersNo, rec.PersNo)
				next = nil
				break
			}
			visited[rec.PersNo] = true
			next = append(next, rec.PersNo)

			name := strings.ToLower(rec.Name)
			pers := strings.ToLower(rec.PersNo)
			if !strings.Contains(name, q) && !strings.Contains(pers, q) {
				continue
			}
			hits = append(hits, hit{rec: rec, rank: matchRank(q, name, pers)})
		}
		level = next
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		if hits[i].rec.Name != hits[j].rec.Name {
			return hits[i].rec.Name < hits[j].rec.Name
		}
		return hits[i].rec.PersNo < hits[j].rec.PersNo
	})

	nodes := make([]*HierarchyNode, 0, len(hits))
	for _, h := range hits {
		nodes = append(nodes, toNode(h.rec))
	}
	if err := s.decorate(sctx, nodes); err != nil {
		return nil, apperror.FromStore(err, "employee", rootPersNo)
	}
	return nodes, nil
}

// matchRank 取姓名与 persNo 中距离更小的模糊匹配分值
func matchRank(q string, candidates ...string) int {
	best := -1
	for _, c := range candidates {
		r := fuzzy.RankMatchNormalizedFold(q, c)
		if r >= 0 && (best < 0 || r < best) {
			best = r
		}
	}
	if best < 0 {
		return int(^uint(0) >> 1)
	}
	return best
}

// GetMyHierarchy 返回账号关联的主数据,未关联时 IsLinked 为 false
func (s *hierarchyService) GetMyHierarchy(ctx context.Context, accountID string) (*MyHierarchy, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.linkedRecord(sctx, accountID)
	if err != nil {
		return nil, apperror.FromStore(err, "account", accountID)
	}
	if rec == nil {
		return &MyHierarchy{IsLinked: false}, nil
	}

	node := toNode(rec)
	if err := s.decorate(sctx, []*HierarchyNode{node}); err != nil {
		return nil, apperror.FromStore(err, "account", accountID)
	}
	return &MyHierarchy{IsLinked: true, MasterData: node}, nil
}

// linkedRecord 账号关联的主数据,未关联时返回 nil
func (s *hierarchyService) linkedRecord(ctx context.Context, accountID string) (*model.EmployeeMasterModel, error) {
	rec, err := s.masters.FindByAccountID(ctx, accountID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	acc, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if acc.LinkedPersNo() == "" {
		return nil, nil
	}
	rec, err = s.masters.FindByPersNo(ctx, acc.LinkedPersNo())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return rec, err
}

// AuthorizeView 账号只能查看本人或其下属子树内的员工
// 未关联主数据的账号没有可见范围
func (s *hierarchyService) AuthorizeView(ctx context.Context, accountID string, persNo string) error {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.linkedRecord(sctx, accountID)
	if err != nil {
		return apperror.FromStore(err, "account", accountID)
	}
	if rec == nil {
		return apperror.Forbidden("NOT_LINKED")
	}
	if rec.PersNo == persNo {
		return nil
	}

	chain, err := s.walkUp(sctx, persNo, s.cfg.MaxVisited)
	if err != nil {
		return apperror.FromStore(err, "employee", persNo)
	}
	for _, anc := range chain {
		if anc.PersNo == rec.PersNo {
			return nil
		}
	}
	return apperror.Forbidden("OUT_OF_SCOPE")
}

// GetFullHierarchy 上级链 + 本人 + 下属树,persNo 不存在时返回空视图
func (s *hierarchyService) GetFullHierarchy(ctx context.Context, persNo string) (*FullHierarchy, error) {
	out := &FullHierarchy{Managers: []*HierarchyNode{}, Subordinates: []*HierarchyNode{}}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	rec, err := s.masters.FindByPersNo(sctx, persNo)
	if err == nil {
		out.CurrentUser = toNode(rec)
		err = s.decorate(sctx, []*HierarchyNode{out.CurrentUser})
	}
	cancel()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, apperror.FromStore(err, "employee", persNo)
	}

	if out.Managers, err = s.ResolveAncestors(ctx, persNo, 0); err != nil {
		return nil, err
	}
	if out.Subordinates, err = s.ResolveSubordinates(ctx, persNo, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertMasterRecord 按 persNo 幂等写入主数据
func (s *hierarchyService) UpsertMasterRecord(ctx context.Context, req *MasterRecordRequest) (*model.EmployeeMasterModel, error) {
	rec := &model.EmployeeMasterModel{
		PersNo:      strings.TrimSpace(req.PersNo),
		Name:        strings.TrimSpace(req.Name),
		Designation: req.Designation,
		Circle:      req.Circle,
		Zone:        req.Zone,
		Division:    req.Division,
		Office:      req.Office,
		SortOrder:   req.SortOrder,
	}
	if p := strings.TrimSpace(req.ReportingPersNo); p != "" {
		rec.ReportingPersNo = &p
	}
	if err := rec.Validate(); err != nil {
		return nil, apperror.Validation("INVALID_MASTER_RECORD", "%s", err.Error())
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.masters.Upsert(sctx, rec); err != nil {
		return nil, apperror.FromStore(err, "employee", rec.PersNo)
	}
	s.notifyChange()
	return rec, nil
}

// LinkMasterRecordToAccount 关联主数据与账号,并回写账号的 persNo
// 账号原有的关联会先被解除;主数据已关联其他账号时返回冲突
func (s *hierarchyService) LinkMasterRecordToAccount(ctx context.Context, persNo string, accountID string) error {
	if persNo == "" || accountID == "" {
		return apperror.Validation("INVALID_LINK", "persNo and accountId are required")
	}
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	err := s.db.WithContext(sctx).Transaction(func(tx *gorm.DB) error {
		r := reposFor(tx)
		if _, err := r.accounts.FindByID(sctx, accountID); err != nil {
			return apperror.FromStore(err, "account", accountID)
		}
		rec, err := r.masters.FindByPersNo(sctx, persNo)
		if err != nil {
			return apperror.FromStore(err, "employee", persNo)
		}
		if rec.AccountID != nil && *rec.AccountID != accountID {
			return apperror.Conflict("ALREADY_LINKED", "master record %s is linked to another account", persNo)
		}
		if err := r.masters.ClearAccount(sctx, accountID); err != nil {
			return err
		}
		if _, err := r.masters.SetAccount(sctx, persNo, accountID); err != nil {
			return err
		}
		_, err = r.accounts.SetPersNo(sctx, accountID, persNo)
		return err
	})
	if err != nil {
		return apperror.FromStore(err, "employee", persNo)
	}

	s.notifyChange()
	recordAudit(ctx, s.auditLogSvc, accountID, "link", "master_record", persNo, map[string]string{
		"pers_no":    persNo,
		"account_id": accountID,
	})
	return nil
}

// SaveAccount 写入账号基本信息
func (s *hierarchyService) SaveAccount(ctx context.Context, req *AccountRequest) error {
	now := time.Now()
	acc := &model.EmployeeAccountModel{
		ID:        strings.TrimSpace(req.ID),
		Name:      strings.TrimSpace(req.Name),
		Role:      strings.ToLower(strings.TrimSpace(req.Role)),
		Circle:    req.Circle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acc.Validate(); err != nil {
		return apperror.Validation("INVALID_ACCOUNT", "%s", err.Error())
	}
	if types.ParseRank(acc.Role) == types.RankUnknown {
		return apperror.Validation("INVALID_ROLE", "unknown role %q", req.Role)
	}

	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.accounts.Save(sctx, acc); err != nil {
		return apperror.FromStore(err, "account", acc.ID)
	}
	s.notifyChange()
	return nil
}

// PurgeUnlinked 删除所有未关联账号的主数据
func (s *hierarchyService) PurgeUnlinked(ctx context.Context) (int64, error) {
	sctx, cancel := withStoreTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.masters.PurgeUnlinked(sctx)
	if err != nil {
		return 0, apperror.FromStore(err, "employee", "")
	}
	s.log.WithField("deleted", n).Info("purged unlinked master records")
	s.notifyChange()
	return n, nil
}

// decorate 批量补充直接下属数和关联账号摘要
func (s *hierarchyService) decorate(ctx context.Context, nodes []*HierarchyNode) error {
	if len(nodes) == 0 {
		return nil
	}
	persNos := make([]string, 0, len(nodes))
	var accountIDs []string
	for _, n := range nodes {
		persNos = append(persNos, n.PersNo)
		if n.Account != nil {
			accountIDs = append(accountIDs, n.Account.ID)
		}
	}

	counts, err := s.masters.CountDirectReports(ctx, persNos)
	if err != nil {
		return err
	}
	var accounts map[string]*model.EmployeeAccountModel
	if len(accountIDs) > 0 {
		if accounts, err = s.accounts.FindByIDs(ctx, accountIDs); err != nil {
			return err
		}
	}

	for _, n := range nodes {
		n.DirectReportsCount = counts[n.PersNo]
		if n.Account == nil {
			continue
		}
		if acc, ok := accounts[n.Account.ID]; ok {
			n.Account.Name = acc.Name
			n.Account.Role = acc.Role
			n.Account.Circle = acc.Circle
		}
	}
	return nil
}

func (s *hierarchyService) truncated(operation, reason, start, at string) {
	metrics.RecordHierarchyTruncated(operation, reason)
	s.log.WithFields(logrus.Fields{
		"operation": operation,
		"reason":    reason,
		"start":     start,
		"at":        at,
	}).Warn("hierarchy traversal truncated")
}

func toNode(rec *model.EmployeeMasterModel) *HierarchyNode {
	n := &HierarchyNode{
		PersNo:          rec.PersNo,
		Name:            rec.Name,
		Designation:     rec.Designation,
		Circle:          rec.Circle,
		Zone:            rec.Zone,
		Division:        rec.Division,
		Office:          rec.Office,
		ReportingPersNo: rec.ReportsTo(),
	}
	if rec.AccountID != nil {
		n.Account = &AccountSummary{ID: *rec.AccountID}
	}
	return n
}
