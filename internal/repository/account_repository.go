package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aulnovauk/sales-management-process-old-sub001/internal/model"
)

// AccountRepository 账号仓储接口
type AccountRepository interface {
	Save(ctx context.Context, account *model.EmployeeAccountModel) error
	FindByID(ctx context.Context, id string) (*model.EmployeeAccountModel, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.EmployeeAccountModel, error)
	SetPersNo(ctx context.Context, id string, persNo string) (bool, error)
}

// accountRepository 账号仓储实现
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建账号仓储
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Save 保存账号(按 ID 覆盖基本信息,保留 persNo 关联)
func (r *accountRepository) Save(ctx context.Context, account *model.EmployeeAccountModel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "circle", "updated_at"}),
	}).Create(account).Error
}

// FindByID 根据 ID 查找账号
func (r *accountRepository) FindByID(ctx context.Context, id string) (*model.EmployeeAccountModel, error) {
	var acc model.EmployeeAccountModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// FindByIDs 批量查找账号
func (r *accountRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.EmployeeAccountModel, error) {
	out := make(map[string]*model.EmployeeAccountModel, len(ids))
	for _, chunk := range chunks(ids) {
		var accs []*model.EmployeeAccountModel
		if err := r.db.WithContext(ctx).Where("id IN ?", chunk).Find(&accs).Error; err != nil {
			return nil, err
		}
		for _, a := range accs {
			out[a.ID] = a
		}
	}
	return out, nil
}

// SetPersNo 回写账号关联的 persNo
func (r *accountRepository) SetPersNo(ctx context.Context, id string, persNo string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.EmployeeAccountModel{}).
		Where("id = ?", id).
		Update("pers_no", persNo)
	return res.RowsAffected > 0, res.Error
}
