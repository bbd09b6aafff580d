package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 计量单位
const (
	MeasurementMetric   = "metric"
	MeasurementImperial = "imperial"
)

// ShippingPackageSpecification 发货包裹规格
type ShippingPackageSpecification struct {
	ID              int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	ShippingOrderID int64  `json:"shipping_order_id" gorm:"not null;index"`
	Name            string `json:"name" gorm:"size:50;not null"`
	CompanyName     string `json:"company_name" gorm:"size:100"`
	PhoneNumber     string `json:"phone_number" gorm:"size:20"`

	Length          decimal.Decimal `json:"length" gorm:"type:decimal(10,2);not null"`
	Width           decimal.Decimal `json:"width" gorm:"type:decimal(10,2);not null"`
	Height          decimal.Decimal `json:"height" gorm:"type:decimal(10,2);not null"`
	Weight          decimal.Decimal `json:"weight" gorm:"type:decimal(10,2);not null"`
	MeasurementUnit string          `json:"measurement_unit" gorm:"size:10;default:metric"`

	DimensionPresetID *int64 `json:"dimension_preset_id"`
	WeightPresetID    *int64 `json:"weight_preset_id"`

	// 收货地址
	Address string `json:"address" gorm:"size:255"`
	City    string `json:"city" gorm:"size:100"`
	State   string `json:"state" gorm:"size:100"`
	Zip     string `json:"zip" gorm:"size:20"`
	Country string `json:"country" gorm:"size:100"`

	// 承运与运单
	Carrier                string `json:"carrier" gorm:"size:100"`
	Service                string `json:"service" gorm:"size:100"`
	CarrierDescription     string `json:"carrier_description" gorm:"size:255"`
	ShippingRateID         string `json:"shipping_rate_id" gorm:"size:100"`
	EasypostShipmentID     string `json:"easypost_shipment_id" gorm:"size:100"`
	EasypostShipmentRateID string `json:"easypost_shipment_rate_id" gorm:"size:100"`
	TrackingCode           string `json:"tracking_code" gorm:"size:255"`
	LabelURL               string `json:"label_url" gorm:"size:255"`
	ShipmentStatus         string `json:"shipment_status" gorm:"size:30"`
	EstimatedDeliveryDays  string `json:"estimated_delivery_days" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ShippingPackageSpecification) TableName() string {
	return "crm_shipping_package_specifications"
}

// Volume 长×宽×高
func (s *ShippingPackageSpecification) Volume() decimal.Decimal {
	return s.Length.Mul(s.Width).Mul(s.Height)
}
