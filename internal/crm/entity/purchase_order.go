package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Priority 采购订单优先级
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// Valid 是否为合法优先级
func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

// PO状态
const (
	POStatusActive    = 1
	POStatusCompleted = 2
)

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID                  int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	SerialEncoderID     int64  `json:"serial_encoder_id" gorm:"index"`
	PurchaseOrderNumber string `json:"purchase_order_number" gorm:"size:64;index"`

	CustomerID       int64 `json:"customer_id" gorm:"not null;index"`
	VendorID         int64 `json:"vendor_id" gorm:"not null;index"`
	FactoryID        int64 `json:"factory_id" gorm:"index"`
	LocationTypeID   int64 `json:"location_type_id"`
	LeadNumbersID    int64 `json:"lead_numbers_id"`
	ShippingMethodID int64 `json:"shipping_method_id"`

	Status            int      `json:"status" gorm:"default:1;index"`
	Priority          Priority `json:"priority" gorm:"size:16;default:NORMAL;index"`
	ClientName        string   `json:"client_name" gorm:"size:200"`
	ClientDescription string   `json:"client_description" gorm:"type:text"`

	// 日期
	QuoteApprovedDate *time.Time `json:"quote_approved_date" gorm:"type:date"`
	PDSignedDate      *time.Time `json:"pd_signed_date" gorm:"type:date"`
	ShippingDate      *time.Time `json:"shipping_date" gorm:"type:date"`

	TotalQuantity int    `json:"total_quantity" gorm:"default:0"`
	Notes         string `json:"notes" gorm:"type:text"`
	Tags          JSONB  `json:"tags" gorm:"type:jsonb"`
	UserOwner     string `json:"user_owner" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Items    []PurchaseOrderItem `json:"items,omitempty" gorm:"foreignKey:PurchaseOrderID"`
	Customer *Customer           `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Vendor   *Vendor             `json:"vendor,omitempty" gorm:"foreignKey:VendorID"`
	Factory  *Factory            `json:"factory,omitempty" gorm:"foreignKey:FactoryID"`
}

func (PurchaseOrder) TableName() string {
	return "crm_purchase_orders"
}

// LeadTimeDays 报价批准到发货的天数（向上取整），缺日期时返回false
func (po *PurchaseOrder) LeadTimeDays() (int, bool) {
	if po.QuoteApprovedDate == nil || po.ShippingDate == nil {
		return 0, false
	}
	return CeilDays(po.ShippingDate.Sub(*po.QuoteApprovedDate)), true
}

// CeilDays 时长折算为天数，不足一天按一天计
func CeilDays(d time.Duration) int {
	const day = 24 * time.Hour
	days := int(d / day)
	if d%day > 0 {
		days++
	}
	return days
}

// Specification 行项规格键值对
type Specification struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PurchaseOrderItem 采购订单行项
type PurchaseOrderItem struct {
	ID              int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	PurchaseOrderID int64  `json:"purchase_order_id" gorm:"not null;index"`
	ProductID       int64  `json:"product_id"`
	CategoryID      int64  `json:"category_id"`
	ItemNumber      string `json:"item_number" gorm:"size:64"`

	ItemSKU               string                                  `json:"item_sku" gorm:"size:100"`
	ItemName              string                                  `json:"item_name" gorm:"size:200;not null"`
	ItemDescription       string                                  `json:"item_description" gorm:"type:text"`
	ItemSpecifications    datatypes.JSONType[[]Specification]     `json:"item_specifications" gorm:"type:jsonb"`
	ItemNotes             string                                  `json:"item_notes" gorm:"type:text"`
	PackagingInstructions datatypes.JSON                          `json:"packaging_instructions" gorm:"type:jsonb"`

	Quantity  int             `json:"quantity" gorm:"not null;default:0"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null;default:0"`
	Rate      decimal.Decimal `json:"rate" gorm:"type:decimal(12,2);not null;default:0"`
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:decimal(14,2);not null;default:0"`
	Currency  string          `json:"currency" gorm:"size:10;default:USD"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseOrderItem) TableName() string {
	return "crm_purchase_order_items"
}

// ComputeLineTotal 行合计 = 单价 × 数量 + 费率
func (i *PurchaseOrderItem) ComputeLineTotal() {
	i.LineTotal = LineTotal(i.UnitPrice, i.Quantity, i.Rate)
}

// LineTotal 单价 × 数量 + 费率，保留两位小数
func LineTotal(unitPrice decimal.Decimal, quantity int, rate decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Add(rate).Round(2)
}
