package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/shopspring/decimal"
)

// ShippingService 发货包裹规格服务
type ShippingService struct {
	repo *repository.ShippingSpecRepository
}

func NewShippingService(repo *repository.ShippingSpecRepository) *ShippingService {
	return &ShippingService{repo: repo}
}

func (s *ShippingService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ShippingPackageSpecification, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

// ByShippingOrder 某发货单的包裹
func (s *ShippingService) ByShippingOrder(ctx context.Context, shippingOrderID int64) ([]entity.ShippingPackageSpecification, error) {
	return s.repo.FindByShippingOrder(ctx, shippingOrderID)
}

// Stats 发货单包裹统计
func (s *ShippingService) Stats(ctx context.Context, shippingOrderID int64) (*repository.ShippingStats, error) {
	return s.repo.Stats(ctx, shippingOrderID)
}

func (s *ShippingService) Get(ctx context.Context, id int64) (*entity.ShippingPackageSpecification, error) {
	return s.repo.FindByID(ctx, id)
}

// ShippingSpecRequest 包裹规格请求
type ShippingSpecRequest struct {
	ShippingOrderID        *int64           `json:"shipping_order_id"`
	Name                   *string          `json:"name"`
	CompanyName            *string          `json:"company_name"`
	PhoneNumber            *string          `json:"phone_number"`
	Length                 *decimal.Decimal `json:"length"`
	Width                  *decimal.Decimal `json:"width"`
	Height                 *decimal.Decimal `json:"height"`
	Weight                 *decimal.Decimal `json:"weight"`
	MeasurementUnit        *string          `json:"measurement_unit"`
	DimensionPresetID      *int64           `json:"dimension_preset_id"`
	WeightPresetID         *int64           `json:"weight_preset_id"`
	Address                *string          `json:"address"`
	City                   *string          `json:"city"`
	State                  *string          `json:"state"`
	Zip                    *string          `json:"zip"`
	Country                *string          `json:"country"`
	Carrier                *string          `json:"carrier"`
	Service                *string          `json:"service"`
	CarrierDescription     *string          `json:"carrier_description"`
	ShippingRateID         *string          `json:"shipping_rate_id"`
	EasypostShipmentID     *string          `json:"easypost_shipment_id"`
	EasypostShipmentRateID *string          `json:"easypost_shipment_rate_id"`
	TrackingCode           *string          `json:"tracking_code"`
	LabelURL               *string          `json:"label_url"`
	ShipmentStatus         *string          `json:"shipment_status"`
	EstimatedDeliveryDays  *string          `json:"estimated_delivery_days"`
}

func (r *ShippingSpecRequest) apply(s *entity.ShippingPackageSpecification) error {
	setInt64(&s.ShippingOrderID, r.ShippingOrderID)
	setString(&s.Name, r.Name)
	setString(&s.CompanyName, r.CompanyName)
	setString(&s.PhoneNumber, r.PhoneNumber)
	for _, d := range []struct {
		dst *decimal.Decimal
		v   *decimal.Decimal
		n   string
	}{{&s.Length, r.Length, "length"}, {&s.Width, r.Width, "width"}, {&s.Height, r.Height, "height"}, {&s.Weight, r.Weight, "weight"}} {
		if d.v == nil {
			continue
		}
		if d.v.IsNegative() {
			return validationError("%s 不能为负", d.n)
		}
		*d.dst = *d.v
	}
	if r.MeasurementUnit != nil {
		if *r.MeasurementUnit != entity.MeasurementMetric && *r.MeasurementUnit != entity.MeasurementImperial {
			return validationError("计量单位无效: %s", *r.MeasurementUnit)
		}
		s.MeasurementUnit = *r.MeasurementUnit
	}
	if r.DimensionPresetID != nil {
		s.DimensionPresetID = r.DimensionPresetID
	}
	if r.WeightPresetID != nil {
		s.WeightPresetID = r.WeightPresetID
	}
	setString(&s.Address, r.Address)
	setString(&s.City, r.City)
	setString(&s.State, r.State)
	setString(&s.Zip, r.Zip)
	setString(&s.Country, r.Country)
	setString(&s.Carrier, r.Carrier)
	setString(&s.Service, r.Service)
	setString(&s.CarrierDescription, r.CarrierDescription)
	setString(&s.ShippingRateID, r.ShippingRateID)
	setString(&s.EasypostShipmentID, r.EasypostShipmentID)
	setString(&s.EasypostShipmentRateID, r.EasypostShipmentRateID)
	setString(&s.TrackingCode, r.TrackingCode)
	setString(&s.LabelURL, r.LabelURL)
	setString(&s.ShipmentStatus, r.ShipmentStatus)
	setString(&s.EstimatedDeliveryDays, r.EstimatedDeliveryDays)
	return nil
}

// Create 创建包裹规格
func (s *ShippingService) Create(ctx context.Context, req *ShippingSpecRequest) (*entity.ShippingPackageSpecification, error) {
	spec := &entity.ShippingPackageSpecification{MeasurementUnit: entity.MeasurementMetric}
	if err := req.apply(spec); err != nil {
		return nil, err
	}
	if spec.ShippingOrderID <= 0 {
		return nil, validationError("shipping_order_id 必填")
	}
	if spec.Name == "" {
		return nil, validationError("包裹名称必填")
	}
	if err := s.repo.Create(ctx, spec); err != nil {
		return nil, fmt.Errorf("创建包裹规格失败: %w", err)
	}
	return spec, nil
}

// Update 更新包裹规格
func (s *ShippingService) Update(ctx context.Context, id int64, req *ShippingSpecRequest) (*entity.ShippingPackageSpecification, error) {
	spec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(spec); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, spec); err != nil {
		return nil, fmt.Errorf("更新包裹规格失败: %w", err)
	}
	return spec, nil
}

func (s *ShippingService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// DeleteByShippingOrder 删除发货单全部包裹
func (s *ShippingService) DeleteByShippingOrder(ctx context.Context, shippingOrderID int64) (int64, error) {
	return s.repo.DeleteByShippingOrder(ctx, shippingOrderID)
}
