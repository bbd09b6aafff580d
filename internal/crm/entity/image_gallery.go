package entity

import "time"

// 图片归属的业务类型
const (
	ItemTypeQuotes           = "QUOTES"
	ItemTypeOrders           = "ORDERS"
	ItemTypePurchaseOrders   = "PURCHASE_ORDERS"
	ItemTypeShipping         = "SHIPPING"
	ItemTypeProductionOrders = "PRODUCTION_ORDERS"
)

// 图片分类
const (
	ImageTypeLogo    = "LOGO"
	ImageTypeArtwork = "ARTWORK"
	ImageTypeOther   = "OTHER"
)

// ValidItemType 是否为合法业务类型
func ValidItemType(t string) bool {
	switch t {
	case ItemTypeQuotes, ItemTypeOrders, ItemTypePurchaseOrders, ItemTypeShipping, ItemTypeProductionOrders:
		return true
	}
	return false
}

// ValidImageType 是否为合法图片分类
func ValidImageType(t string) bool {
	switch t {
	case ImageTypeLogo, ImageTypeArtwork, ImageTypeOther:
		return true
	}
	return false
}

// NormalizeImageType 未知分类归为 OTHER
func NormalizeImageType(t string) string {
	if ValidImageType(t) {
		return t
	}
	return ImageTypeOther
}

// ImageGallery 图片库记录
type ImageGallery struct {
	ID            int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	FKItemID      int64  `json:"fk_item_id" gorm:"not null;index:idx_image_gallery_item"`
	FKItemType    string `json:"fk_item_type" gorm:"size:32;not null;index:idx_image_gallery_item"`
	URL           string `json:"url" gorm:"size:1024;not null"`
	Filename      string `json:"filename" gorm:"size:512"` // 对象存储键；URL来源时为URL末段
	FileExtension string `json:"file_extension" gorm:"size:16"`
	ThumbnailURL  string `json:"thumbnail_url" gorm:"size:1024"`
	Type          string `json:"type" gorm:"size:16;default:OTHER"`
	Description   string `json:"description" gorm:"type:text"`
	// 是否存放在本系统对象存储中（URL来源的记录为false，删除时不动存储）
	Stored    bool      `json:"stored" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ImageGallery) TableName() string {
	return "crm_image_gallery"
}
