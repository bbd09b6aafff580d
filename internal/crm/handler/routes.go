package handler

import (
	"github.com/bitfantasy/nimo-crm/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册CRM路由，api 为已鉴权的 /api/v1 分组
func RegisterRoutes(api *gin.RouterGroup, h *Handlers) {
	w := middleware.RequirePermission(middleware.PermWrite)
	export := middleware.RequirePermission(middleware.PermExport)
	// 级联删除（订单连同行项、整单包裹）仅管理员
	cascade := middleware.RequireRole(middleware.RoleAdmin)

	// 采购订单
	po := api.Group("/purchase-orders")
	{
		po.GET("", h.PO.List)
		po.GET("/search", h.PO.Search)
		po.GET("/export", export, h.PO.Export)
		po.GET("/kpi/overall", h.PO.Overall)
		po.GET("/kpi/status-breakdown", h.PO.StatusBreakdown)
		po.GET("/kpi/priority-breakdown", h.PO.PriorityBreakdown)
		po.GET("/kpi/monthly-trends", h.PO.MonthlyTrends)
		po.GET("/kpi/top-customers", h.PO.Top("customer_id"))
		po.GET("/kpi/top-vendors", h.PO.Top("vendor_id"))
		po.GET("/kpi/top-factories", h.PO.Top("factory_id"))
		po.GET("/kpi/comprehensive", h.PO.Comprehensive)
		po.GET("/:id", h.PO.Get)
		po.POST("", w, h.PO.Create)
		po.PUT("/:id", w, h.PO.Update)
		po.DELETE("/:id", w, cascade, h.PO.Delete)
	}

	// 采购订单行项
	items := api.Group("/purchase-orders-items")
	{
		items.GET("", h.Item.List)
		items.GET("/purchase-order/:purchaseOrderId", h.Item.ByPurchaseOrder)
		items.GET("/purchase-order/:purchaseOrderId/totals", h.Item.Totals)
		items.GET("/:id", h.Item.Get)
		items.POST("", w, h.Item.Create)
		items.PUT("/:id", w, h.Item.Update)
		items.DELETE("/:id", w, h.Item.Delete)
	}

	// 图片库
	images := api.Group("/image-gallery")
	{
		images.GET("", h.Image.List)
		images.GET("/by-item", h.Image.ByItem)
		images.GET("/:id", h.Image.Get)
		images.POST("", w, h.Image.Upload)
		images.POST("/url", w, h.Image.CreateFromURL)
		images.PUT("/:id", w, h.Image.Update)
		images.DELETE("/:id", w, h.Image.Delete)
	}

	// 客户
	customers := api.Group("/customers")
	{
		customers.GET("", h.Customer.List)
		customers.GET("/search", h.Customer.Search)
		customers.GET("/kpi", h.Customer.KPI)
		customers.GET("/:id", h.Customer.Get)
		customers.POST("", w, h.Customer.Create)
		customers.PUT("/:id", w, h.Customer.Update)
		customers.DELETE("/:id", w, h.Customer.Delete)
	}

	// 联系人
	contacts := api.Group("/contacts")
	{
		contacts.GET("", h.Contact.ListContacts)
		contacts.GET("/by-reference/:fkId/:table/:contactType", h.Contact.ContactsByReference)
		contacts.GET("/:id", h.Contact.GetContact)
		contacts.POST("", w, h.Contact.CreateContact)
		contacts.PUT("/:id", w, h.Contact.UpdateContact)
		contacts.DELETE("/:id", w, h.Contact.DeleteContact)
	}

	// 地址
	addresses := api.Group("/addresses")
	{
		addresses.GET("", h.Contact.ListAddresses)
		addresses.GET("/by-reference/:fkId/:table/:addressType", h.Contact.AddressesByReference)
		addresses.GET("/:id", h.Contact.GetAddress)
		addresses.POST("", w, h.Contact.CreateAddress)
		addresses.PUT("/:id", w, h.Contact.UpdateAddress)
		addresses.DELETE("/:id", w, h.Contact.DeleteAddress)
	}

	// 供应商
	vendors := api.Group("/vendors")
	{
		vendors.GET("", h.Vendor.List)
		vendors.GET("/search", h.Vendor.Search)
		vendors.GET("/kpis/overview", h.Vendor.Overview)
		vendors.GET("/kpis/top-performers", h.Vendor.TopPerformers)
		vendors.GET("/:id", h.Vendor.Get)
		vendors.POST("", w, h.Vendor.Create)
		vendors.PUT("/:id", w, h.Vendor.Update)
		vendors.DELETE("/:id", w, h.Vendor.Delete)
	}

	// 工厂
	factories := api.Group("/factories")
	{
		factories.GET("", h.Factory.List)
		factories.GET("/search", h.Factory.Search)
		factories.GET("/kpi", h.Factory.KPI)
		factories.GET("/:id", h.Factory.Get)
		factories.POST("", w, h.Factory.Create)
		factories.PUT("/:id", w, h.Factory.Update)
		factories.DELETE("/:id", w, h.Factory.Delete)
	}

	// 发货包裹规格
	shipping := api.Group("/shipping-package-specifications")
	{
		shipping.GET("", h.Shipping.List)
		shipping.GET("/by-shipping-order/:id", h.Shipping.ByShippingOrder)
		shipping.GET("/stats/shipping-order/:id", h.Shipping.Stats)
		shipping.GET("/export/shipping-order/:id", export, h.Shipping.Export)
		shipping.GET("/:id", h.Shipping.Get)
		shipping.POST("", w, h.Shipping.Create)
		shipping.PUT("/:id", w, h.Shipping.Update)
		shipping.DELETE("/by-shipping-order/:id", w, cascade, h.Shipping.DeleteByShippingOrder)
		shipping.DELETE("/:id", w, h.Shipping.Delete)
	}

	// 看板
	dashboard := api.Group("/dashboard")
	{
		dashboard.GET("/overview", h.Dashboard.Overview)
		dashboard.GET("/chart-data", h.Dashboard.ChartData)
		dashboard.GET("/recent-sales", h.Dashboard.RecentSales)
	}

	api.GET("/activity-history", h.Activity.List)
	api.GET("/events", h.SSE.Stream)
}
