package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/shared/cache"
)

// CustomerService 客户服务
type CustomerService struct {
	repo  *repository.CustomerRepository
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewCustomerService(repo *repository.CustomerRepository, c *cache.Cache, ttl time.Duration) *CustomerService {
	return &CustomerService{repo: repo, cache: c, ttl: ttl, now: time.Now}
}

func (s *CustomerService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Customer, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*entity.Customer, error) {
	return s.repo.FindByID(ctx, id)
}

// CustomerRequest 客户创建/更新请求
type CustomerRequest struct {
	Name         *string       `json:"name"`
	OwnerName    *string       `json:"owner_name"`
	Email        *string       `json:"email"`
	PhoneNumber  *string       `json:"phone_number"`
	MobileNumber *string       `json:"mobile_number"`
	WebsiteURL   *string       `json:"website_url"`
	Industry     *string       `json:"industry"`
	CustomerType *string       `json:"customer_type"`
	Status       *string       `json:"status"`
	Source       *string       `json:"source"`
	VATNumber    *string       `json:"vat_number"`
	TaxID        *string       `json:"tax_id"`
	Notes        *string       `json:"notes"`
	Tags         *entity.JSONB `json:"tags"`
}

func (r *CustomerRequest) apply(c *entity.Customer) {
	setString(&c.Name, r.Name)
	setString(&c.OwnerName, r.OwnerName)
	setString(&c.Email, r.Email)
	setString(&c.PhoneNumber, r.PhoneNumber)
	setString(&c.MobileNumber, r.MobileNumber)
	setString(&c.WebsiteURL, r.WebsiteURL)
	setString(&c.Industry, r.Industry)
	setString(&c.CustomerType, r.CustomerType)
	setString(&c.Status, r.Status)
	setString(&c.Source, r.Source)
	setString(&c.VATNumber, r.VATNumber)
	setString(&c.TaxID, r.TaxID)
	setString(&c.Notes, r.Notes)
	if r.Tags != nil {
		c.Tags = *r.Tags
	}
}

// Create 创建客户
func (s *CustomerService) Create(ctx context.Context, userID string, req *CustomerRequest) (*entity.Customer, error) {
	if req.Name == nil || *req.Name == "" {
		return nil, validationError("客户名称必填")
	}
	c := &entity.Customer{Status: "ACTIVE", UserOwner: userID}
	req.apply(c)
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("创建客户失败: %w", err)
	}
	invalidate(ctx, s.cache, cachePrefixParties, cachePrefixDashboard)
	return c, nil
}

// Update 更新客户
func (s *CustomerService) Update(ctx context.Context, id int64, req *CustomerRequest) (*entity.Customer, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil && *req.Name == "" {
		return nil, validationError("客户名称不能为空")
	}
	req.apply(c)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("更新客户失败: %w", err)
	}
	invalidate(ctx, s.cache, cachePrefixParties)
	return c, nil
}

func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	invalidate(ctx, s.cache, cachePrefixParties, cachePrefixDashboard)
	return nil
}

// CustomerKPI 客户指标
type CustomerKPI struct {
	TotalCustomers        int64                    `json:"total_customers"`
	TotalChange           float64                  `json:"total_change"`
	ActiveCustomers       int64                    `json:"active_customers"`
	ActiveChange          float64                  `json:"active_change"`
	NewCustomersThisMonth int64                    `json:"new_customers_this_month"`
	NewCustomersChange    float64                  `json:"new_customers_change"`
	ByType                []repository.StatusCount `json:"by_type"`
}

// KPI 客户指标（与上月比较）
func (s *CustomerService) KPI(ctx context.Context) (*CustomerKPI, error) {
	return cache.Remember(ctx, s.cache, cachePrefixParties+"customers", s.ttl, func(ctx context.Context) (*CustomerKPI, error) {
		now := s.now()
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		c, err := s.repo.Counts(ctx, monthStart, now)
		if err != nil {
			return nil, err
		}
		return &CustomerKPI{
			TotalCustomers:        c.Total,
			TotalChange:           percentChange(c.Total, c.TotalLastMonth),
			ActiveCustomers:       c.Active,
			ActiveChange:          percentChange(c.Active, c.ActiveLastMonth),
			NewCustomersThisMonth: c.NewThisMonth,
			NewCustomersChange:    percentChange(c.NewThisMonth, c.NewLastMonth),
			ByType:                c.ByType,
		}, nil
	})
}

// VendorService 供应商服务
type VendorService struct {
	repo   *repository.VendorRepository
	poRepo *repository.PORepository
	cache  *cache.Cache
	ttl    time.Duration
	now    func() time.Time
}

func NewVendorService(repo *repository.VendorRepository, poRepo *repository.PORepository, c *cache.Cache, ttl time.Duration) *VendorService {
	return &VendorService{repo: repo, poRepo: poRepo, cache: c, ttl: ttl, now: time.Now}
}

func (s *VendorService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Vendor, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *VendorService) Get(ctx context.Context, id int64) (*entity.Vendor, error) {
	return s.repo.FindByID(ctx, id)
}

// VendorRequest 供应商创建/更新请求
type VendorRequest struct {
	Name              *string       `json:"name"`
	Status            *string       `json:"status"`
	VendorTypeID      *int64        `json:"vendor_type_id"`
	ServiceCategoryID *int64        `json:"service_category_id"`
	WebsiteURL        *string       `json:"website_url"`
	LocationID        *int64        `json:"location_id"`
	Tags              *entity.JSONB `json:"tags"`
	Notes             *string       `json:"notes"`
}

func (r *VendorRequest) apply(v *entity.Vendor) error {
	if r.Status != nil {
		if *r.Status != entity.VendorStatusActive && *r.Status != entity.VendorStatusBlocked {
			return validationError("供应商状态无效: %s", *r.Status)
		}
		v.Status = *r.Status
	}
	setString(&v.Name, r.Name)
	setInt64(&v.VendorTypeID, r.VendorTypeID)
	setInt64(&v.ServiceCategoryID, r.ServiceCategoryID)
	setString(&v.WebsiteURL, r.WebsiteURL)
	setInt64(&v.LocationID, r.LocationID)
	setString(&v.Notes, r.Notes)
	if r.Tags != nil {
		v.Tags = *r.Tags
	}
	return nil
}

// Create 创建供应商
func (s *VendorService) Create(ctx context.Context, userID string, req *VendorRequest) (*entity.Vendor, error) {
	if req.Name == nil || *req.Name == "" {
		return nil, validationError("供应商名称必填")
	}
	v := &entity.Vendor{Status: entity.VendorStatusActive, UserOwner: userID}
	if err := req.apply(v); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("创建供应商失败: %w", err)
	}
	invalidate(ctx, s.cache, cachePrefixParties)
	return v, nil
}

// Update 更新供应商
func (s *VendorService) Update(ctx context.Context, id int64, req *VendorRequest) (*entity.Vendor, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(v); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, fmt.Errorf("更新供应商失败: %w", err)
	}
	invalidate(ctx, s.cache, cachePrefixParties)
	return v, nil
}

func (s *VendorService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	invalidate(ctx, s.cache, cachePrefixParties)
	return nil
}

// VendorOverview 供应商概览
type VendorOverview struct {
	TotalVendors        int64   `json:"total_vendors"`
	ActiveVendors       int64   `json:"active_vendors"`
	BlockedVendors      int64   `json:"blocked_vendors"`
	RecentRegistrations int64   `json:"recent_registrations"`
	GrowthRate          float64 `json:"growth_rate"`
}

// Overview 供应商概览（近30天注册与增长率）
func (s *VendorService) Overview(ctx context.Context) (*VendorOverview, error) {
	return cache.Remember(ctx, s.cache, cachePrefixParties+"vendors:overview", s.ttl, func(ctx context.Context) (*VendorOverview, error) {
		byStatus, total, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		reg, err := s.repo.Registrations(ctx, s.now())
		if err != nil {
			return nil, err
		}
		return &VendorOverview{
			TotalVendors:        total,
			ActiveVendors:       byStatus[entity.VendorStatusActive],
			BlockedVendors:      byStatus[entity.VendorStatusBlocked],
			RecentRegistrations: reg.Recent,
			GrowthRate:          percentChange(reg.Recent, reg.Previous),
		}, nil
	})
}

// TopPerformers 按采购订单数排名的供应商
func (s *VendorService) TopPerformers(ctx context.Context, limit int) ([]repository.EntityRanking, error) {
	if limit <= 0 {
		limit = 10
	}
	key := fmt.Sprintf("%svendors:top:%d", cachePrefixParties, limit)
	return cache.Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]repository.EntityRanking, error) {
		return s.poRepo.TopBy(ctx, "vendor_id", repository.KPIFilter{Limit: limit})
	})
}

// FactoryService 工厂服务
type FactoryService struct {
	repo  *repository.FactoryRepository
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewFactoryService(repo *repository.FactoryRepository, c *cache.Cache, ttl time.Duration) *FactoryService {
	return &FactoryService{repo: repo, cache: c, ttl: ttl, now: time.Now}
}

func (s *FactoryService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Factory, int64, error) {
	return s.repo.FindAll(ctx, page, pageSize, filters)
}

func (s *FactoryService) Get(ctx context.Context, id int64) (*entity.Factory, error) {
	return s.repo.FindByID(ctx, id)
}

// FactoryRequest 工厂创建/更新请求
type FactoryRequest struct {
	Name              *string       `json:"name"`
	Status            *string       `json:"status"`
	FactoryTypeID     *int64        `json:"factory_type_id"`
	ServiceCategoryID *int64        `json:"service_category_id"`
	LocationID        *int64        `json:"location_id"`
	Email             *string       `json:"email"`
	WebsiteURL        *string       `json:"website_url"`
	Industry          *string       `json:"industry"`
	Tags              *entity.JSONB `json:"tags"`
	Notes             *string       `json:"notes"`
}

func (r *FactoryRequest) apply(f *entity.Factory) error {
	if r.Status != nil {
		switch *r.Status {
		case entity.FactoryStatusActive, entity.FactoryStatusInactive, entity.FactoryStatusBlocked:
			f.Status = *r.Status
		default:
			return validationError("工厂状态无效: %s", *r.Status)
		}
	}
	setString(&f.Name, r.Name)
	setInt64(&f.FactoryTypeID, r.FactoryTypeID)
	setInt64(&f.ServiceCategoryID, r.ServiceCategoryID)
	setInt64(&f.LocationID, r.LocationID)
	setString(&f.Email, r.Email)
	setString(&f.WebsiteURL, r.WebsiteURL)
	setString(&f.Industry, r.Industry)
	setString(&f.Notes, r.Notes)
	if r.Tags != nil {
		f.Tags = *r.Tags
	}
	return nil
}

// Create 创建工厂
func (s *FactoryService) Create(ctx context.Context, userID string, req *FactoryRequest) (*entity.Factory, error) {
	if req.Name == nil || *req.Name == "" {
		return nil, validationError("工厂名称必填")
	}
	f := &entity.Factory{Status: entity.FactoryStatusActive, UserOwner: userID}
	if err := req.apply(f); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("创建工厂失败: %w", err)
	}
	invalidate(ctx, s.cache, cachePrefixParties)
	return f, nil
}

// Update 更新工厂
func (s *FactoryService) Update(ctx context.Context, id int64, req *FactoryRequest) (*entity.Factory, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(f); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("更新工厂失败: %w", err)
	}
	invalidate(ctx, s.cache, cachePrefixParties)
	return f, nil
}

func (s *FactoryService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	invalidate(ctx, s.cache, cachePrefixParties)
	return nil
}

// FactoryKPI 工厂指标
type FactoryKPI struct {
	TotalFactories      int64                    `json:"total_factories"`
	ActiveFactories     int64                    `json:"active_factories"`
	InactiveFactories   int64                    `json:"inactive_factories"`
	BlockedFactories    int64                    `json:"blocked_factories"`
	RecentRegistrations int64                    `json:"recent_registrations"`
	GrowthRate          float64                  `json:"growth_rate"`
	Industries          []repository.StatusCount `json:"industries"`
	GeneratedAt         time.Time                `json:"generated_at"`
}

// KPI 工厂指标
func (s *FactoryService) KPI(ctx context.Context) (*FactoryKPI, error) {
	return cache.Remember(ctx, s.cache, cachePrefixParties+"factories", s.ttl, func(ctx context.Context) (*FactoryKPI, error) {
		byStatus, total, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		reg, err := s.repo.Registrations(ctx, now)
		if err != nil {
			return nil, err
		}
		industries, err := s.repo.IndustryBreakdown(ctx)
		if err != nil {
			return nil, err
		}
		return &FactoryKPI{
			TotalFactories:      total,
			ActiveFactories:     byStatus[entity.FactoryStatusActive],
			InactiveFactories:   byStatus[entity.FactoryStatusInactive],
			BlockedFactories:    byStatus[entity.FactoryStatusBlocked],
			RecentRegistrations: reg.Recent,
			GrowthRate:          percentChange(reg.Recent, reg.Previous),
			Industries:          industries,
			GeneratedAt:         now,
		}, nil
	})
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt64(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}
