package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/bitfantasy/nimo-crm/internal/shared/cache"
	"github.com/shopspring/decimal"
)

// DashboardService 仪表盘
type DashboardService struct {
	repo  *repository.DashboardRepository
	cache *cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewDashboardService(repo *repository.DashboardRepository, c *cache.Cache, ttl time.Duration) *DashboardService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardService{repo: repo, cache: c, ttl: ttl, now: time.Now}
}

// RevenueMetric 金额指标
type RevenueMetric struct {
	Value      decimal.Decimal `json:"value"`
	Percentage float64         `json:"percentage"`
	Label      string          `json:"label"`
}

// CountMetric 计数指标
type CountMetric struct {
	Value      int64   `json:"value"`
	Percentage float64 `json:"percentage"`
	Label      string  `json:"label"`
}

// Overview 仪表盘概览
type Overview struct {
	TotalRevenue   RevenueMetric `json:"total_revenue"`
	NewCustomers   CountMetric   `json:"new_customers"`
	PurchaseOrders CountMetric   `json:"purchase_orders"`
	ActiveNow      CountMetric   `json:"active_now"`
}

// ChartPoint 月度图表数据
type ChartPoint struct {
	Month          string          `json:"month"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	NewCustomers   int64           `json:"new_customers"`
	PurchaseOrders int64           `json:"purchase_orders"`
}

// RecentSale 最近成交
type RecentSale struct {
	PurchaseOrderID  int64           `json:"purchase_order_id"`
	CustomerInitials string          `json:"customer_initials"`
	CustomerName     string          `json:"customer_name"`
	CustomerEmail    string          `json:"customer_email"`
	Amount           decimal.Decimal `json:"amount"`
	CreatedAt        time.Time       `json:"created_at"`
}

// RecentSales 最近成交及摘要
type RecentSales struct {
	RecentSales []RecentSale `json:"recent_sales"`
	Summary     string       `json:"summary"`
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Overview 本月与上月对比的概览数据
func (s *DashboardService) Overview(ctx context.Context) (*Overview, error) {
	return cache.Remember(ctx, s.cache, cachePrefixDashboard+"overview", s.ttl, func(ctx context.Context) (*Overview, error) {
		now := s.now()
		cur := monthStart(now)
		prev := cur.AddDate(0, -1, 0)
		hourAgo := now.Add(-time.Hour)
		twoHoursAgo := now.Add(-2 * time.Hour)

		revenueNow, err := s.repo.Revenue(ctx, cur, now)
		if err != nil {
			return nil, fmt.Errorf("统计营收失败: %w", err)
		}
		revenuePrev, err := s.repo.Revenue(ctx, prev, cur)
		if err != nil {
			return nil, fmt.Errorf("统计营收失败: %w", err)
		}

		var custNow, custPrev, poNow, poPrev, activeNow, activePrev int64
		if custNow, err = s.repo.CountCustomers(ctx, cur, now); err != nil {
			return nil, err
		}
		if custPrev, err = s.repo.CountCustomers(ctx, prev, cur); err != nil {
			return nil, err
		}
		if poNow, err = s.repo.CountPurchaseOrders(ctx, cur, now); err != nil {
			return nil, err
		}
		if poPrev, err = s.repo.CountPurchaseOrders(ctx, prev, cur); err != nil {
			return nil, err
		}
		if activeNow, err = s.repo.CountTouched(ctx, hourAgo, now); err != nil {
			return nil, err
		}
		if activePrev, err = s.repo.CountTouched(ctx, twoHoursAgo, hourAgo); err != nil {
			return nil, err
		}

		return &Overview{
			TotalRevenue:   RevenueMetric{Value: revenueNow, Percentage: decimalChange(revenueNow, revenuePrev), Label: "from last month"},
			NewCustomers:   CountMetric{Value: custNow, Percentage: percentChange(custNow, custPrev), Label: "from last month"},
			PurchaseOrders: CountMetric{Value: poNow, Percentage: percentChange(poNow, poPrev), Label: "from last month"},
			ActiveNow:      CountMetric{Value: activeNow, Percentage: percentChange(activeNow, activePrev), Label: "since last hour"},
		}, nil
	})
}

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// ChartData 今年12个月的营收、新客户与采购订单数
func (s *DashboardService) ChartData(ctx context.Context) ([]ChartPoint, error) {
	now := s.now()
	key := fmt.Sprintf("%schart:%d", cachePrefixDashboard, now.Year())
	return cache.Remember(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]ChartPoint, error) {
		out := make([]ChartPoint, 0, 12)
		for m := 0; m < 12; m++ {
			from := time.Date(now.Year(), time.Month(m+1), 1, 0, 0, 0, 0, now.Location())
			to := from.AddDate(0, 1, 0)
			revenue, err := s.repo.Revenue(ctx, from, to)
			if err != nil {
				return nil, err
			}
			customers, err := s.repo.CountCustomers(ctx, from, to)
			if err != nil {
				return nil, err
			}
			pos, err := s.repo.CountPurchaseOrders(ctx, from, to)
			if err != nil {
				return nil, err
			}
			out = append(out, ChartPoint{
				Month:          monthNames[m],
				TotalRevenue:   revenue,
				NewCustomers:   customers,
				PurchaseOrders: pos,
			})
		}
		return out, nil
	})
}

// RecentSales 最近10笔已完成采购订单
func (s *DashboardService) RecentSales(ctx context.Context) (*RecentSales, error) {
	return cache.Remember(ctx, s.cache, cachePrefixDashboard+"recent-sales", s.ttl, func(ctx context.Context) (*RecentSales, error) {
		rows, err := s.repo.RecentCompleted(ctx, 10)
		if err != nil {
			return nil, err
		}
		now := s.now()
		completed, err := s.repo.CountCompleted(ctx, monthStart(now), now)
		if err != nil {
			return nil, err
		}
		out := &RecentSales{
			RecentSales: make([]RecentSale, 0, len(rows)),
			Summary:     fmt.Sprintf("You made %d sales this month.", completed),
		}
		for _, r := range rows {
			name := r.CustomerName
			if name == "" {
				name = r.OwnerName
			}
			if name == "" {
				name = "Unknown Customer"
			}
			email := r.Email
			if email == "" {
				email = "No email"
			}
			out.RecentSales = append(out.RecentSales, RecentSale{
				PurchaseOrderID:  r.PurchaseOrderID,
				CustomerInitials: Initials(name),
				CustomerName:     name,
				CustomerEmail:    email,
				Amount:           r.Amount,
				CreatedAt:        r.CreatedAt,
			})
		}
		return out, nil
	})
}

// Initials 取每个单词首字母大写，最多两位
func Initials(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		if utf8.RuneCountInString(b.String()) == 2 {
			break
		}
	}
	return b.String()
}

// decimalChange 金额环比百分比
func decimalChange(current, previous decimal.Decimal) float64 {
	if !previous.IsPositive() {
		return 0
	}
	pct, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}
