package entity

import (
	"time"

	"gorm.io/datatypes"
)

// SerialPurpose 编号器用途：记录同一业务链上的单据
type SerialPurpose struct {
	QuoteID          int64   `json:"quote_id,omitempty"`
	OrderID          int64   `json:"order_id,omitempty"`
	ShippingOrderID  int64   `json:"shipping_order_id,omitempty"`
	PurchaseOrderIDs []int64 `json:"purchase_order_ids,omitempty"`
}

// SerialEncoder 单据编号器，编号前缀即其ID
type SerialEncoder struct {
	ID        int64                             `json:"id" gorm:"primaryKey;autoIncrement"`
	Purpose   datatypes.JSONType[SerialPurpose] `json:"purpose" gorm:"type:jsonb"`
	CreatedAt time.Time                         `json:"created_at"`
	UpdatedAt time.Time                         `json:"updated_at"`
}

func (SerialEncoder) TableName() string {
	return "crm_serial_encoders"
}

// ActivityHistory 单据操作记录
type ActivityHistory struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	DocumentID   int64     `json:"document_id" gorm:"not null;index:idx_activity_document"`
	DocumentType string    `json:"document_type" gorm:"size:50;not null;index:idx_activity_document"` // PurchaseOrders
	Activity     string    `json:"activity" gorm:"size:500"`
	ActivityType string    `json:"activity_type" gorm:"size:50"` // Create/Update/Delete
	CustomerID   int64     `json:"customer_id" gorm:"index"`
	Status       int       `json:"status"`
	UserOwner    string    `json:"user_owner" gorm:"size:100"`
	Tags         JSONB     `json:"tags" gorm:"type:jsonb"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ActivityHistory) TableName() string {
	return "crm_activity_history"
}

// DocumentTypePurchaseOrders 采购订单单据类型
const DocumentTypePurchaseOrders = "PurchaseOrders"

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&Customer{},
		&Vendor{},
		&Factory{},
		&Contact{},
		&Address{},
		&SerialEncoder{},
		&PurchaseOrder{},
		&PurchaseOrderItem{},
		&ImageGallery{},
		&ShippingPackageSpecification{},
		&ActivityHistory{},
	}
}
