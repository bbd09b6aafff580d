package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/repository"
	"github.com/xuri/excelize/v2"
)

// ExportService Excel导出
type ExportService struct {
	poRepo       *repository.PORepository
	shippingRepo *repository.ShippingSpecRepository
	now          func() time.Time
}

func NewExportService(poRepo *repository.PORepository, shippingRepo *repository.ShippingSpecRepository) *ExportService {
	return &ExportService{poRepo: poRepo, shippingRepo: shippingRepo, now: time.Now}
}

var poExportHeaders = []string{
	"PO Number", "Customer", "Vendor", "Factory", "Status", "Priority", "Client",
	"Quote Approved", "PD Signed", "Shipping Date", "Lead Time (days)", "Total Quantity", "Owner", "Created At",
}

var shippingExportHeaders = []string{
	"Package", "Company", "Phone", "Length", "Width", "Height", "Weight", "Unit",
	"Address", "City", "State", "Zip", "Country", "Carrier", "Service", "Tracking Code", "Status",
}

// ExportPurchaseOrders 导出采购订单
func (s *ExportService) ExportPurchaseOrders(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	orders, err := s.poRepo.FindAllForExport(ctx, filters)
	if err != nil {
		return nil, "", fmt.Errorf("查询采购订单失败: %w", err)
	}
	rows := make([][]interface{}, 0, len(orders))
	for i := range orders {
		rows = append(rows, poExportRow(&orders[i]))
	}
	f, err := buildSheet("Purchase Orders", poExportHeaders, rows, nil)
	if err != nil {
		return nil, "", err
	}
	return f, fmt.Sprintf("purchase_orders_%s.xlsx", s.now().Format("20060102")), nil
}

// ExportShippingOrder 导出发货单包裹规格，末行为汇总
func (s *ExportService) ExportShippingOrder(ctx context.Context, shippingOrderID int64) (*excelize.File, string, error) {
	specs, err := s.shippingRepo.FindByShippingOrder(ctx, shippingOrderID)
	if err != nil {
		return nil, "", fmt.Errorf("查询包裹规格失败: %w", err)
	}
	stats, err := s.shippingRepo.Stats(ctx, shippingOrderID)
	if err != nil {
		return nil, "", fmt.Errorf("统计包裹失败: %w", err)
	}
	rows := make([][]interface{}, 0, len(specs))
	for _, sp := range specs {
		rows = append(rows, []interface{}{
			sp.Name, sp.CompanyName, sp.PhoneNumber,
			sp.Length.InexactFloat64(), sp.Width.InexactFloat64(), sp.Height.InexactFloat64(), sp.Weight.InexactFloat64(),
			sp.MeasurementUnit, sp.Address, sp.City, sp.State, sp.Zip, sp.Country,
			sp.Carrier, sp.Service, sp.TrackingCode, sp.ShipmentStatus,
		})
	}
	summary := []interface{}{
		fmt.Sprintf("Total packages: %d", stats.TotalPackages), "", "",
		"", "", fmt.Sprintf("Volume: %s", stats.TotalVolume.StringFixed(2)), stats.TotalWeight.InexactFloat64(),
	}
	f, err := buildSheet("Packages", shippingExportHeaders, rows, summary)
	if err != nil {
		return nil, "", err
	}
	return f, fmt.Sprintf("shipping_order_%d_packages.xlsx", shippingOrderID), nil
}

func poExportRow(po *entity.PurchaseOrder) []interface{} {
	var customer, vendor, factory string
	if po.Customer != nil {
		customer = po.Customer.Name
	}
	if po.Vendor != nil {
		vendor = po.Vendor.Name
	}
	if po.Factory != nil {
		factory = po.Factory.Name
	}
	lead := ""
	if days, ok := po.LeadTimeDays(); ok {
		lead = fmt.Sprintf("%d", days)
	}
	return []interface{}{
		po.PurchaseOrderNumber,
		customer,
		vendor,
		factory,
		titleCase(statusName(po.Status)),
		titleCase(string(po.Priority)),
		po.ClientName,
		formatDate(po.QuoteApprovedDate),
		formatDate(po.PDSignedDate),
		formatDate(po.ShippingDate),
		lead,
		po.TotalQuantity,
		po.UserOwner,
		po.CreatedAt.Format("2006-01-02 15:04"),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

// buildSheet 写入表头、数据行与可选汇总行
func buildSheet(sheet string, headers []string, rows [][]interface{}, summary []interface{}) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle)

	for i, row := range rows {
		r := row
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &r); err != nil {
			return nil, err
		}
	}

	if summary != nil {
		at := len(rows) + 2
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", at), &summary); err != nil {
			return nil, err
		}
		bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", at), fmt.Sprintf("%s%d", lastCol, at), bold)
	}

	f.SetColWidth(sheet, "A", lastCol, 16)
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}
	return f, nil
}
