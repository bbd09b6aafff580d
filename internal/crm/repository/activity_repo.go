package repository

import (
	"context"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
)

// ActivityRepository 操作记录仓库
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create 写入操作记录
func (r *ActivityRepository) Create(ctx context.Context, a *entity.ActivityHistory) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// FindByDocument 查询单据的操作记录（倒序）
func (r *ActivityRepository) FindByDocument(ctx context.Context, documentType string, documentID int64) ([]entity.ActivityHistory, error) {
	var items []entity.ActivityHistory
	query := r.db.WithContext(ctx).Where("document_type = ?", documentType)
	if documentID > 0 {
		query = query.Where("document_id = ?", documentID)
	}
	err := query.Order("created_at DESC, id DESC").Limit(200).Find(&items).Error
	return items, err
}
