package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/bitfantasy/nimo-crm/internal/reconcile"
)

// ImageRecord 图片库记录
type ImageRecord = entity.ImageGallery

func get[T any](ctx context.Context, c *Client, path string, query url.Values) (*T, error) {
	var out T
	if err := c.doRequest(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func send[T any](ctx context.Context, c *Client, method, path string, body interface{}) (*T, error) {
	var out T
	if err := c.doRequest(ctx, method, path, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func listQuery(page, pageSize int, filters map[string]string) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	for k, v := range filters {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

type itemsOf[T any] struct {
	Items []T `json:"items"`
}

// ---------------------------------------------------------------------------
// 图片库
// ---------------------------------------------------------------------------

// FetchImageGallery 获取某业务单据的图片，按创建时间倒序
func (c *Client) FetchImageGallery(ctx context.Context, itemID int64, itemType string) ([]ImageRecord, error) {
	q := url.Values{}
	q.Set("fkItemID", strconv.FormatInt(itemID, 10))
	q.Set("fkItemType", itemType)
	out, err := get[itemsOf[ImageRecord]](ctx, c, "/image-gallery/by-item", q)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateImageParams 上传图片参数
type CreateImageParams struct {
	FKItemID    int64
	FKItemType  string
	Type        string
	Description string
	Filename    string
	File        io.Reader
}

// CreateImage 以 multipart 上传图片
func (c *Client) CreateImage(ctx context.Context, p CreateImageParams) (*ImageRecord, error) {
	if p.File == nil {
		return nil, fmt.Errorf("上传图片缺少文件")
	}

	req := c.request(ctx).
		SetMultipartFormData(map[string]string{
			"fkItemID":    strconv.FormatInt(p.FKItemID, 10),
			"fkItemType":  p.FKItemType,
			"type":        p.Type,
			"description": p.Description,
		}).
		SetFileReader("imageFile", p.Filename, p.File)

	var out ImageRecord
	if err := c.execute(req, http.MethodPost, "/image-gallery", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateImageFromURL 登记外部图片地址
func (c *Client) CreateImageFromURL(ctx context.Context, req *service.CreateImageURLRequest) (*ImageRecord, error) {
	return send[ImageRecord](ctx, c, http.MethodPost, "/image-gallery/url", req)
}

// DeleteImage 删除图片，返回受影响行数
func (c *Client) DeleteImage(ctx context.Context, id int64) (int64, error) {
	out, err := send[struct {
		Affected int64 `json:"affected"`
	}](ctx, c, http.MethodDelete, idPath("/image-gallery", id), nil)
	if err != nil {
		return 0, err
	}
	return out.Affected, nil
}

// GalleryFetcher 把某业务类型的图片查询适配为 reconcile.Fetcher
func (c *Client) GalleryFetcher(itemType string) reconcile.Fetcher {
	return reconcile.FetcherFunc(func(ctx context.Context, itemID int64) ([]reconcile.Record, error) {
		images, err := c.FetchImageGallery(ctx, itemID, itemType)
		if err != nil {
			return nil, err
		}
		return ToRecords(images), nil
	})
}

// ToRecords 图片库记录转为对齐记录
func ToRecords(images []ImageRecord) []reconcile.Record {
	out := make([]reconcile.Record, 0, len(images))
	for _, img := range images {
		out = append(out, reconcile.Record{
			ID:           img.ID,
			FKItemID:     img.FKItemID,
			URL:          img.URL,
			ThumbnailURL: img.ThumbnailURL,
			Filename:     img.Filename,
			Type:         img.Type,
			Description:  img.Description,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// 采购订单与行项
// ---------------------------------------------------------------------------

// ListPurchaseOrders 分页查询采购订单
func (c *Client) ListPurchaseOrders(ctx context.Context, page, pageSize int, filters map[string]string) (*Page[entity.PurchaseOrder], error) {
	return get[Page[entity.PurchaseOrder]](ctx, c, "/purchase-orders", listQuery(page, pageSize, filters))
}

// GetPurchaseOrder 获取采购订单（含行项）
func (c *Client) GetPurchaseOrder(ctx context.Context, id int64) (*entity.PurchaseOrder, error) {
	return get[entity.PurchaseOrder](ctx, c, idPath("/purchase-orders", id), nil)
}

// CreatePurchaseOrder 创建采购订单
func (c *Client) CreatePurchaseOrder(ctx context.Context, req *service.CreatePORequest) (*entity.PurchaseOrder, error) {
	return send[entity.PurchaseOrder](ctx, c, http.MethodPost, "/purchase-orders", req)
}

// UpdatePurchaseOrder 部分更新采购订单
func (c *Client) UpdatePurchaseOrder(ctx context.Context, id int64, req *service.UpdatePORequest) (*entity.PurchaseOrder, error) {
	return send[entity.PurchaseOrder](ctx, c, http.MethodPut, idPath("/purchase-orders", id), req)
}

// DeletePurchaseOrder 删除采购订单
func (c *Client) DeletePurchaseOrder(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, idPath("/purchase-orders", id), nil, nil, nil)
}

// ItemsByPurchaseOrder 获取采购订单的行项
func (c *Client) ItemsByPurchaseOrder(ctx context.Context, poID int64) ([]entity.PurchaseOrderItem, error) {
	out, err := get[itemsOf[entity.PurchaseOrderItem]](ctx, c, idPath("/purchase-orders-items/purchase-order", poID), nil)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateItem 创建行项
func (c *Client) CreateItem(ctx context.Context, req *service.CreateItemRequest) (*entity.PurchaseOrderItem, error) {
	return send[entity.PurchaseOrderItem](ctx, c, http.MethodPost, "/purchase-orders-items", req)
}

// UpdateItem 更新行项
func (c *Client) UpdateItem(ctx context.Context, id int64, req *service.UpdateItemRequest) (*entity.PurchaseOrderItem, error) {
	return send[entity.PurchaseOrderItem](ctx, c, http.MethodPut, idPath("/purchase-orders-items", id), req)
}

// DeleteItem 删除行项
func (c *Client) DeleteItem(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, idPath("/purchase-orders-items", id), nil, nil, nil)
}

// ---------------------------------------------------------------------------
// 客户 / 供应商 / 工厂
// ---------------------------------------------------------------------------

// GetCustomer 获取客户
func (c *Client) GetCustomer(ctx context.Context, id int64) (*entity.Customer, error) {
	return get[entity.Customer](ctx, c, idPath("/customers", id), nil)
}

// ListCustomers 分页查询客户
func (c *Client) ListCustomers(ctx context.Context, page, pageSize int, filters map[string]string) (*Page[entity.Customer], error) {
	return get[Page[entity.Customer]](ctx, c, "/customers", listQuery(page, pageSize, filters))
}

// CreateCustomer 创建客户
func (c *Client) CreateCustomer(ctx context.Context, req *service.CustomerRequest) (*entity.Customer, error) {
	return send[entity.Customer](ctx, c, http.MethodPost, "/customers", req)
}

// UpdateCustomer 更新客户
func (c *Client) UpdateCustomer(ctx context.Context, id int64, req *service.CustomerRequest) (*entity.Customer, error) {
	return send[entity.Customer](ctx, c, http.MethodPut, idPath("/customers", id), req)
}

// DeleteCustomer 删除客户
func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, idPath("/customers", id), nil, nil, nil)
}

// GetVendor 获取供应商
func (c *Client) GetVendor(ctx context.Context, id int64) (*entity.Vendor, error) {
	return get[entity.Vendor](ctx, c, idPath("/vendors", id), nil)
}

// ListVendors 分页查询供应商
func (c *Client) ListVendors(ctx context.Context, page, pageSize int, filters map[string]string) (*Page[entity.Vendor], error) {
	return get[Page[entity.Vendor]](ctx, c, "/vendors", listQuery(page, pageSize, filters))
}

// CreateVendor 创建供应商
func (c *Client) CreateVendor(ctx context.Context, req *service.VendorRequest) (*entity.Vendor, error) {
	return send[entity.Vendor](ctx, c, http.MethodPost, "/vendors", req)
}

// UpdateVendor 更新供应商
func (c *Client) UpdateVendor(ctx context.Context, id int64, req *service.VendorRequest) (*entity.Vendor, error) {
	return send[entity.Vendor](ctx, c, http.MethodPut, idPath("/vendors", id), req)
}

// DeleteVendor 删除供应商
func (c *Client) DeleteVendor(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, idPath("/vendors", id), nil, nil, nil)
}

// GetFactory 获取工厂
func (c *Client) GetFactory(ctx context.Context, id int64) (*entity.Factory, error) {
	return get[entity.Factory](ctx, c, idPath("/factories", id), nil)
}

// ListFactories 分页查询工厂
func (c *Client) ListFactories(ctx context.Context, page, pageSize int, filters map[string]string) (*Page[entity.Factory], error) {
	return get[Page[entity.Factory]](ctx, c, "/factories", listQuery(page, pageSize, filters))
}

// CreateFactory 创建工厂
func (c *Client) CreateFactory(ctx context.Context, req *service.FactoryRequest) (*entity.Factory, error) {
	return send[entity.Factory](ctx, c, http.MethodPost, "/factories", req)
}

// UpdateFactory 更新工厂
func (c *Client) UpdateFactory(ctx context.Context, id int64, req *service.FactoryRequest) (*entity.Factory, error) {
	return send[entity.Factory](ctx, c, http.MethodPut, idPath("/factories", id), req)
}

// DeleteFactory 删除工厂
func (c *Client) DeleteFactory(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, idPath("/factories", id), nil, nil, nil)
}

// ---------------------------------------------------------------------------
// 联系人与地址
// ---------------------------------------------------------------------------

// ContactsByReference 按归属查询联系人
func (c *Client) ContactsByReference(ctx context.Context, fkID int64, table, contactType string) ([]entity.Contact, error) {
	path := fmt.Sprintf("/contacts/by-reference/%d/%s/%s", fkID, url.PathEscape(table), url.PathEscape(contactType))
	out, err := get[itemsOf[entity.Contact]](ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateContact 创建联系人
func (c *Client) CreateContact(ctx context.Context, req *service.ContactRequest) (*entity.Contact, error) {
	return send[entity.Contact](ctx, c, http.MethodPost, "/contacts", req)
}

// UpdateContact 更新联系人
func (c *Client) UpdateContact(ctx context.Context, id int64, req *service.ContactRequest) (*entity.Contact, error) {
	return send[entity.Contact](ctx, c, http.MethodPut, idPath("/contacts", id), req)
}

// DeleteContact 删除联系人
func (c *Client) DeleteContact(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, idPath("/contacts", id), nil, nil, nil)
}

// AddressesByReference 按归属查询地址
func (c *Client) AddressesByReference(ctx context.Context, fkID int64, table, addressType string) ([]entity.Address, error) {
	path := fmt.Sprintf("/addresses/by-reference/%d/%s/%s", fkID, url.PathEscape(table), url.PathEscape(addressType))
	out, err := get[itemsOf[entity.Address]](ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}

// CreateAddress 创建地址
func (c *Client) CreateAddress(ctx context.Context, req *service.AddressRequest) (*entity.Address, error) {
	return send[entity.Address](ctx, c, http.MethodPost, "/addresses", req)
}

// UpdateAddress 更新地址
func (c *Client) UpdateAddress(ctx context.Context, id int64, req *service.AddressRequest) (*entity.Address, error) {
	return send[entity.Address](ctx, c, http.MethodPut, idPath("/addresses", id), req)
}

// DeleteAddress 删除地址
func (c *Client) DeleteAddress(ctx context.Context, id int64) error {
	return c.doRequest(ctx, http.MethodDelete, idPath("/addresses", id), nil, nil, nil)
}
