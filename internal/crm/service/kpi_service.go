package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/shared/cache"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KPIService 采购订单KPI
type KPIService struct {
	repo  *repository.PORepository
	cache *cache.Cache
	ttl   time.Duration
}

func NewKPIService(repo *repository.PORepository, c *cache.Cache, ttl time.Duration) *KPIService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &KPIService{repo: repo, cache: c, ttl: ttl}
}

// OverallKPI 总体指标
type OverallKPI struct {
	TotalOrders     int     `json:"total_orders"`
	TotalQuantity   int     `json:"total_quantity"`
	AverageQuantity float64 `json:"average_quantity"`
	AverageLeadTime float64 `json:"average_lead_time"`
	ActiveOrders    int     `json:"active_orders"`
	CompletedOrders int     `json:"completed_orders"`
}

// StatusBreakdown 状态分布
type StatusBreakdown struct {
	StatusID   int     `json:"status_id"`
	StatusName string  `json:"status_name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PriorityBreakdown 优先级分布
type PriorityBreakdown struct {
	Priority   string  `json:"priority"`
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// TrendPoint 月度趋势
type TrendPoint struct {
	Period          string  `json:"period"`
	OrdersCreated   int     `json:"orders_created"`
	TotalQuantity   int     `json:"total_quantity"`
	AverageLeadTime float64 `json:"average_lead_time"`
}

// PerformanceMetrics 履约指标
type PerformanceMetrics struct {
	OnTimeDeliveryRate     float64 `json:"on_time_delivery_rate"`
	AverageProcessingTime  float64 `json:"average_processing_time"`
	UrgentOrdersPercentage float64 `json:"urgent_orders_percentage"`
}

// ComprehensiveKPI 综合KPI
type ComprehensiveKPI struct {
	Overall            OverallKPI                 `json:"overall"`
	StatusBreakdown    []StatusBreakdown          `json:"status_breakdown"`
	PriorityBreakdown  []PriorityBreakdown        `json:"priority_breakdown"`
	MonthlyTrends      []TrendPoint               `json:"monthly_trends"`
	TopCustomers       []repository.EntityRanking `json:"top_customers"`
	TopVendors         []repository.EntityRanking `json:"top_vendors"`
	TopFactories       []repository.EntityRanking `json:"top_factories"`
	PerformanceMetrics PerformanceMetrics         `json:"performance_metrics"`
}

// Overall 总体指标
func (s *KPIService) Overall(ctx context.Context, f repository.KPIFilter) (*OverallKPI, error) {
	return cache.Remember(ctx, s.cache, kpiKey("overall", f), s.ttl, func(ctx context.Context) (*OverallKPI, error) {
		orders, err := s.repo.FindForKPI(ctx, f)
		if err != nil {
			return nil, err
		}
		o := ComputeOverall(orders)
		return &o, nil
	})
}

// StatusBreakdown 状态分布
func (s *KPIService) StatusBreakdown(ctx context.Context, f repository.KPIFilter) ([]StatusBreakdown, error) {
	return cache.Remember(ctx, s.cache, kpiKey("status", f), s.ttl, func(ctx context.Context) ([]StatusBreakdown, error) {
		orders, err := s.repo.FindForKPI(ctx, f)
		if err != nil {
			return nil, err
		}
		return ComputeStatusBreakdown(orders), nil
	})
}

// PriorityBreakdown 优先级分布
func (s *KPIService) PriorityBreakdown(ctx context.Context, f repository.KPIFilter) ([]PriorityBreakdown, error) {
	return cache.Remember(ctx, s.cache, kpiKey("priority", f), s.ttl, func(ctx context.Context) ([]PriorityBreakdown, error) {
		orders, err := s.repo.FindForKPI(ctx, f)
		if err != nil {
			return nil, err
		}
		return ComputePriorityBreakdown(orders), nil
	})
}

// MonthlyTrends 月度趋势
func (s *KPIService) MonthlyTrends(ctx context.Context, f repository.KPIFilter) ([]TrendPoint, error) {
	return cache.Remember(ctx, s.cache, kpiKey("trends", f), s.ttl, func(ctx context.Context) ([]TrendPoint, error) {
		orders, err := s.repo.FindForKPI(ctx, f)
		if err != nil {
			return nil, err
		}
		return ComputeMonthlyTrends(orders), nil
	})
}

// Top 按客户/供应商/工厂排名
func (s *KPIService) Top(ctx context.Context, fkColumn string, f repository.KPIFilter) ([]repository.EntityRanking, error) {
	return cache.Remember(ctx, s.cache, kpiKey("top:"+fkColumn, f), s.ttl, func(ctx context.Context) ([]repository.EntityRanking, error) {
		rows, err := s.repo.TopBy(ctx, fkColumn, f)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].AvgLeadTime = round2(rows[i].AvgLeadTime)
		}
		return rows, nil
	})
}

// Comprehensive 综合KPI，排名各取前5
func (s *KPIService) Comprehensive(ctx context.Context, f repository.KPIFilter) (*ComprehensiveKPI, error) {
	return cache.Remember(ctx, s.cache, kpiKey("comprehensive", f), s.ttl, func(ctx context.Context) (*ComprehensiveKPI, error) {
		orders, err := s.repo.FindForKPI(ctx, f)
		if err != nil {
			return nil, err
		}
		out := &ComprehensiveKPI{
			Overall:            ComputeOverall(orders),
			StatusBreakdown:    ComputeStatusBreakdown(orders),
			PriorityBreakdown:  ComputePriorityBreakdown(orders),
			MonthlyTrends:      ComputeMonthlyTrends(orders),
			PerformanceMetrics: ComputePerformance(orders),
		}
		top := f
		top.Limit = 5
		if out.TopCustomers, err = s.repo.TopBy(ctx, "customer_id", top); err != nil {
			return nil, err
		}
		if out.TopVendors, err = s.repo.TopBy(ctx, "vendor_id", top); err != nil {
			return nil, err
		}
		if out.TopFactories, err = s.repo.TopBy(ctx, "factory_id", top); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// kpiKey 由指标名与过滤条件生成缓存键
func kpiKey(name string, f repository.KPIFilter) string {
	var b strings.Builder
	b.WriteString(cachePrefixPOKPI)
	b.WriteString(name)
	if f.StartDate != nil {
		fmt.Fprintf(&b, ":from=%s", f.StartDate.Format(dateLayout))
	}
	if f.EndDate != nil {
		fmt.Fprintf(&b, ":to=%s", f.EndDate.Format(dateLayout))
	}
	fmt.Fprintf(&b, ":c=%d:v=%d:f=%d:p=%s:s=%d:l=%d",
		f.CustomerID, f.VendorID, f.FactoryID, f.Priority, f.Status, f.Limit)
	return b.String()
}

// ComputeOverall 订单数、数量、平均交期与状态计数
func ComputeOverall(orders []entity.PurchaseOrder) OverallKPI {
	o := OverallKPI{TotalOrders: len(orders)}
	var leadSum, leadCount int
	for i := range orders {
		po := &orders[i]
		o.TotalQuantity += po.TotalQuantity
		if days, ok := po.LeadTimeDays(); ok {
			leadSum += days
			leadCount++
		}
		switch po.Status {
		case entity.POStatusActive:
			o.ActiveOrders++
		case entity.POStatusCompleted:
			o.CompletedOrders++
		}
	}
	if o.TotalOrders > 0 {
		o.AverageQuantity = round2(float64(o.TotalQuantity) / float64(o.TotalOrders))
	}
	if leadCount > 0 {
		o.AverageLeadTime = round2(float64(leadSum) / float64(leadCount))
	}
	return o
}

// ComputeStatusBreakdown 按状态分组，按状态ID升序
func ComputeStatusBreakdown(orders []entity.PurchaseOrder) []StatusBreakdown {
	counts := map[int]int{}
	for _, po := range orders {
		counts[po.Status]++
	}
	out := make([]StatusBreakdown, 0, len(counts))
	for status, n := range counts {
		out = append(out, StatusBreakdown{
			StatusID:   status,
			StatusName: titleCase(statusName(status)),
			Count:      n,
			Percentage: share(n, len(orders)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatusID < out[j].StatusID })
	return out
}

var priorityOrder = map[entity.Priority]int{
	entity.PriorityUrgent: 0,
	entity.PriorityHigh:   1,
	entity.PriorityNormal: 2,
	entity.PriorityLow:    3,
}

// ComputePriorityBreakdown 按优先级分组，紧急在前
func ComputePriorityBreakdown(orders []entity.PurchaseOrder) []PriorityBreakdown {
	counts := map[entity.Priority]int{}
	for _, po := range orders {
		counts[po.Priority]++
	}
	out := make([]PriorityBreakdown, 0, len(counts))
	for p, n := range counts {
		out = append(out, PriorityBreakdown{
			Priority:   string(p),
			Label:      titleCase(string(p)),
			Count:      n,
			Percentage: share(n, len(orders)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, iok := priorityOrder[entity.Priority(out[i].Priority)]
		rj, jok := priorityOrder[entity.Priority(out[j].Priority)]
		if iok != jok {
			return iok
		}
		if ri != rj {
			return ri < rj
		}
		return out[i].Priority < out[j].Priority
	})
	return out
}

// ComputeMonthlyTrends 按创建月份（YYYY-MM）聚合，升序
func ComputeMonthlyTrends(orders []entity.PurchaseOrder) []TrendPoint {
	type acc struct {
		point    TrendPoint
		leadSum  int
		leadSeen int
	}
	months := map[string]*acc{}
	for i := range orders {
		po := &orders[i]
		period := po.CreatedAt.Format("2006-01")
		a, ok := months[period]
		if !ok {
			a = &acc{point: TrendPoint{Period: period}}
			months[period] = a
		}
		a.point.OrdersCreated++
		a.point.TotalQuantity += po.TotalQuantity
		if days, ok := po.LeadTimeDays(); ok {
			a.leadSum += days
			a.leadSeen++
		}
	}
	out := make([]TrendPoint, 0, len(months))
	for _, a := range months {
		if a.leadSeen > 0 {
			a.point.AverageLeadTime = round2(float64(a.leadSum) / float64(a.leadSeen))
		}
		out = append(out, a.point)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// ComputePerformance 准时率、平均处理天数、紧急占比
func ComputePerformance(orders []entity.PurchaseOrder) PerformanceMetrics {
	var m PerformanceMetrics
	if len(orders) == 0 {
		return m
	}
	var urgent, withDates, onTime, processing int
	for i := range orders {
		po := &orders[i]
		if po.Priority == entity.PriorityUrgent {
			urgent++
		}
		if po.ShippingDate != nil && !po.UpdatedAt.IsZero() {
			withDates++
			if !po.UpdatedAt.After(*po.ShippingDate) {
				onTime++
			}
		}
		processing += entity.CeilDays(po.UpdatedAt.Sub(po.CreatedAt))
	}
	m.UrgentOrdersPercentage = share(urgent, len(orders))
	m.OnTimeDeliveryRate = share(onTime, withDates)
	m.AverageProcessingTime = round2(float64(processing) / float64(len(orders)))
	return m
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(n) / float64(total) * 100)
}

// titleCase URGENT -> Urgent，active -> Active
func titleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}
