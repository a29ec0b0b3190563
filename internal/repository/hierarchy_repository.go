package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
)

// siblingOrder 同级员工的稳定排序
const siblingOrder = "sort_order ASC, name ASC, pers_no ASC"

// inChunk IN 查询单批最大参数数
const inChunk = 500

// HierarchyRepository 员工主数据仓储接口(只读视图 + 导入原语)
type HierarchyRepository interface {
	FindByPersNo(ctx context.Context, persNo string) (*model.EmployeeMasterModel, error)
	FindByAccountID(ctx context.Context, accountID string) (*model.EmployeeMasterModel, error)
	FindDirectReports(ctx context.Context, persNos []string) ([]*model.EmployeeMasterModel, error)
	CountDirectReports(ctx context.Context, persNos []string) (map[string]int64, error)
	Upsert(ctx context.Context, record *model.EmployeeMasterModel) error
	SetAccount(ctx context.Context, persNo string, accountID string) (bool, error)
	ClearAccount(ctx context.Context, accountID string) error
	PurgeUnlinked(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// hierarchyRepository 员工主数据仓储实现
type hierarchyRepository struct {
	db *gorm.DB
}

// NewHierarchyRepository 创建员工主数据仓储
func NewHierarchyRepository(db *gorm.DB) HierarchyRepository {
	return &hierarchyRepository{db: db}
}

// FindByPersNo 根据 persNo 查找主数据
func (r *hierarchyRepository) FindByPersNo(ctx context.Context, persNo string) (*model.EmployeeMasterModel, error) {
	var rec model.EmployeeMasterModel
	if err := r.db.WithContext(ctx).Where("pers_no = ?", persNo).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByAccountID 根据关联账号查找主数据
func (r *hierarchyRepository) FindByAccountID(ctx context.Context, accountID string) (*model.EmployeeMasterModel, error) {
	var rec model.EmployeeMasterModel
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindDirectReports 查找一组员工的直接下属,自引用记录不算作自己的下属
func (r *hierarchyRepository) FindDirectReports(ctx context.Context, persNos []string) ([]*model.EmployeeMasterModel, error) {
	var out []*model.EmployeeMasterModel
	for _, chunk := range chunks(persNos) {
		var recs []*model.EmployeeMasterModel
		err := r.db.WithContext(ctx).
			Where("reporting_pers_no IN ? AND reporting_pers_no <> pers_no", chunk).
			Order(siblingOrder).
			Find(&recs).Error
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// CountDirectReports 一次分组统计每个员工的直接下属数,无下属的不出现在结果中
func (r *hierarchyRepository) CountDirectReports(ctx context.Context, persNos []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(persNos))
	for _, chunk := range chunks(persNos) {
		var rows []struct {
			ReportingPersNo string
			Total           int64
		}
		err := r.db.WithContext(ctx).
			Model(&model.EmployeeMasterModel{}).
			Select("reporting_pers_no, COUNT(*) AS total").
			Where("reporting_pers_no IN ? AND reporting_pers_no <> pers_no", chunk).
			Group("reporting_pers_no").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			counts[row.ReportingPersNo] = row.Total
		}
	}
	return counts, nil
}

// Upsert 按 persNo 幂等写入主数据,不改动账号关联
func (r *hierarchyRepository) Upsert(ctx context.Context, record *model.EmployeeMasterModel) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pers_no"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "designation", "circle", "zone", "division", "office",
			"sort_order", "reporting_pers_no", "updated_at",
		}),
	}).Omit("account_id").Create(record).Error
}

// SetAccount 关联账号,persNo 不存在时返回 false
func (r *hierarchyRepository) SetAccount(ctx context.Context, persNo string, accountID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.EmployeeMasterModel{}).
		Where("pers_no = ?", persNo).
		Updates(map[string]interface{}{"account_id": accountID, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

// ClearAccount 解除账号与任何主数据的关联
func (r *hierarchyRepository) ClearAccount(ctx context.Context, accountID string) error {
	return r.db.WithContext(ctx).
		Model(&model.EmployeeMasterModel{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{"account_id": nil, "updated_at": time.Now()}).Error
}

// PurgeUnlinked 删除所有未关联账号的主数据
func (r *hierarchyRepository) PurgeUnlinked(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("account_id IS NULL").Delete(&model.EmployeeMasterModel{})
	return res.RowsAffected, res.Error
}

// Count 主数据总数
func (r *hierarchyRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.EmployeeMasterModel{}).Count(&n).Error
	return n, err
}

func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > inChunk {
		out = append(out, ids[:inChunk])
		ids = ids[inChunk:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}
