package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/config"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/crm/sse"
	"github.com/bitfantasy/nimo-crm/internal/shared/cache"
	"github.com/bitfantasy/nimo-crm/internal/shared/imageproc"
	"github.com/bitfantasy/nimo-crm/internal/shared/storage"
	"go.uber.org/zap"
)

var (
	ErrValidation      = errors.New("参数校验失败")
	ErrFileRequired    = errors.New("未上传图片文件")
	ErrInvalidItemType = errors.New("无效的业务类型")
)

// 缓存键前缀
const (
	cachePrefixPOKPI     = "kpi:po:"
	cachePrefixDashboard = "dashboard:"
	cachePrefixParties   = "kpi:party:"
)

const dateLayout = "2006-01-02"

// Deps 服务层外部依赖
type Deps struct {
	Store  storage.ObjectStore
	Cache  *cache.Cache
	Hub    *sse.Hub
	Logger *zap.Logger
	Config *config.Config
}

// Services CRM服务集合
type Services struct {
	PO        *POService
	KPI       *KPIService
	Item      *ItemService
	Image     *ImageService
	Customer  *CustomerService
	Vendor    *VendorService
	Factory   *FactoryService
	Contact   *ContactService
	Shipping  *ShippingService
	Dashboard *DashboardService
	Activity  *ActivityService
	Export    *ExportService
}

// NewServices 创建CRM服务集合
func NewServices(repos *repository.Repositories, deps Deps) *Services {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	activity := NewActivityService(repos.Activity)
	kpi := NewKPIService(repos.PO, deps.Cache, cfg.Cache.KPITTL)
	return &Services{
		PO:        NewPOService(repos, activity, deps.Cache, deps.Hub, deps.Logger),
		KPI:       kpi,
		Item:      NewItemService(repos.Item, deps.Cache, deps.Hub),
		Image:     NewImageService(repos.Image, deps.Store, deps.Hub, imageOptions(cfg.Storage), deps.Logger),
		Customer:  NewCustomerService(repos.Customer, deps.Cache, cfg.Cache.KPITTL),
		Vendor:    NewVendorService(repos.Vendor, repos.PO, deps.Cache, cfg.Cache.KPITTL),
		Factory:   NewFactoryService(repos.Factory, deps.Cache, cfg.Cache.KPITTL),
		Contact:   NewContactService(repos.Contact, repos.Address),
		Shipping:  NewShippingService(repos.Shipping),
		Dashboard: NewDashboardService(repos.Dashboard, deps.Cache, cfg.Cache.DashboardTTL),
		Activity:  activity,
		Export:    NewExportService(repos.PO, repos.Shipping),
	}
}

func imageOptions(cfg config.StorageConfig) imageproc.Options {
	return imageproc.Options{
		MaxEdge:       cfg.MaxImageEdge,
		ThumbnailEdge: cfg.ThumbnailEdge,
	}
}

// validationError 包装为校验错误
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// parseDate 解析 YYYY-MM-DD，空串返回nil
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, validationError("%s 日期格式应为 YYYY-MM-DD", field)
	}
	return &t, nil
}

// invalidate 清除缓存前缀，失败只记录日志
func invalidate(ctx context.Context, c *cache.Cache, prefixes ...string) {
	for _, p := range prefixes {
		if err := c.InvalidatePrefix(ctx, p); err != nil {
			log.Printf("[CRM] invalidate cache %s: %v", p, err)
		}
	}
}

// round2 保留两位小数
func round2(v float64) float64 {
	if v < 0 {
		return -float64(int64(-v*100+0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

// percentChange 环比变化百分比，基数为0时返回0
func percentChange(current, previous int64) float64 {
	if previous <= 0 {
		return 0
	}
	return round2(float64(current-previous) / float64(previous) * 100)
}

func statusName(status int) string {
	switch status {
	case entity.POStatusActive:
		return "active"
	case entity.POStatusCompleted:
		return "completed"
	}
	return fmt.Sprintf("status %d", status)
}
