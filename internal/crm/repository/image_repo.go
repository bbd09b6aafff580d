package repository

import (
	"context"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"gorm.io/gorm"
)

// ImageRepository 图片库仓库
type ImageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// FindAll 查询图片列表
func (r *ImageRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ImageGallery, int64, error) {
	var items []entity.ImageGallery
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ImageGallery{})
	if t := filters["fk_item_type"]; t != "" {
		query = query.Where("fk_item_type = ?", t)
	}
	if t := filters["type"]; t != "" {
		query = query.Where("type = ?", t)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset(offsetOf(page, pageSize)).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// FindByItem 按业务对象查询图片（创建时间倒序）
func (r *ImageRepository) FindByItem(ctx context.Context, fkItemID int64, fkItemType string) ([]entity.ImageGallery, error) {
	var items []entity.ImageGallery
	err := r.db.WithContext(ctx).
		Where("fk_item_id = ? AND fk_item_type = ?", fkItemID, fkItemType).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindByID 查找图片
func (r *ImageRepository) FindByID(ctx context.Context, id int64) (*entity.ImageGallery, error) {
	var img entity.ImageGallery
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&img).Error; err != nil {
		return nil, translate(err)
	}
	return &img, nil
}

// Create 创建图片记录
func (r *ImageRepository) Create(ctx context.Context, img *entity.ImageGallery) error {
	return r.db.WithContext(ctx).Create(img).Error
}

// Update 更新图片记录
func (r *ImageRepository) Update(ctx context.Context, img *entity.ImageGallery) error {
	return r.db.WithContext(ctx).Save(img).Error
}

// Delete 删除图片记录，返回受影响行数
func (r *ImageRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.ImageGallery{})
	return res.RowsAffected, res.Error
}
