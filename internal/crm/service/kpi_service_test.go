package service

import (
	"testing"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) *time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func kpiFixture() []entity.PurchaseOrder {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return []entity.PurchaseOrder{
		{
			ID: 1, Status: entity.POStatusActive, Priority: entity.PriorityUrgent, TotalQuantity: 100,
			QuoteApprovedDate: day("2025-03-01"), ShippingDate: day("2025-03-11"),
			CreatedAt: created, UpdatedAt: created.Add(36 * time.Hour),
		},
		{
			ID: 2, Status: entity.POStatusCompleted, Priority: entity.PriorityNormal, TotalQuantity: 50,
			QuoteApprovedDate: day("2025-03-05"), ShippingDate: day("2025-03-10"),
			CreatedAt: created, UpdatedAt: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: 3, Status: entity.POStatusActive, Priority: entity.PriorityNormal, TotalQuantity: 0,
			CreatedAt: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), UpdatedAt: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestComputeOverall(t *testing.T) {
	o := ComputeOverall(kpiFixture())

	assert.Equal(t, 3, o.TotalOrders)
	assert.Equal(t, 150, o.TotalQuantity)
	assert.Equal(t, 50.0, o.AverageQuantity)
	assert.Equal(t, 7.5, o.AverageLeadTime) // (10 + 5) / 2
	assert.Equal(t, 2, o.ActiveOrders)
	assert.Equal(t, 1, o.CompletedOrders)
}

func TestComputeOverall_Empty(t *testing.T) {
	o := ComputeOverall(nil)
	assert.Equal(t, OverallKPI{}, o)
}

func TestComputeStatusBreakdown(t *testing.T) {
	out := ComputeStatusBreakdown(kpiFixture())
	require.Len(t, out, 2)

	assert.Equal(t, 1, out[0].StatusID)
	assert.Equal(t, "Active", out[0].StatusName)
	assert.Equal(t, 2, out[0].Count)
	assert.Equal(t, 66.67, out[0].Percentage)

	assert.Equal(t, "Completed", out[1].StatusName)
	assert.Equal(t, 33.33, out[1].Percentage)
}

func TestComputePriorityBreakdown_UrgentFirst(t *testing.T) {
	out := ComputePriorityBreakdown(kpiFixture())
	require.Len(t, out, 2)
	assert.Equal(t, "URGENT", out[0].Priority)
	assert.Equal(t, "Urgent", out[0].Label)
	assert.Equal(t, "NORMAL", out[1].Priority)
	assert.Equal(t, 2, out[1].Count)
}

func TestComputeMonthlyTrends(t *testing.T) {
	out := ComputeMonthlyTrends(kpiFixture())
	require.Len(t, out, 2)
	assert.Equal(t, TrendPoint{Period: "2025-03", OrdersCreated: 2, TotalQuantity: 150, AverageLeadTime: 7.5}, out[0])
	assert.Equal(t, TrendPoint{Period: "2025-04", OrdersCreated: 1}, out[1])
}

func TestComputePerformance(t *testing.T) {
	m := ComputePerformance(kpiFixture())

	// order 1 updated before shipping date, order 2 after
	assert.Equal(t, 50.0, m.OnTimeDeliveryRate)
	assert.Equal(t, 33.33, m.UrgentOrdersPercentage)
	// ceil(1.5d)=2, ceil(18.6d)=19, 0
	assert.Equal(t, 7.0, m.AverageProcessingTime)
}

func TestComputePerformance_NoOrders(t *testing.T) {
	assert.Equal(t, PerformanceMetrics{}, ComputePerformance(nil))
}

func TestKPIKey_DistinguishesFilters(t *testing.T) {
	a := kpiKey("overall", repository.KPIFilter{CustomerID: 1})
	b := kpiKey("overall", repository.KPIFilter{CustomerID: 2})
	c := kpiKey("overall", repository.KPIFilter{CustomerID: 1, StartDate: day("2025-01-01")})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, cachePrefixPOKPI)
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 0.0, percentChange(5, 0))
	assert.Equal(t, 50.0, percentChange(15, 10))
	assert.Equal(t, -33.33, percentChange(2, 3))
}
