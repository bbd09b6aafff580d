// Package workflow holds the purchase order editor: it loads a purchase order
// with its line items through the remote API, keeps local edits, and writes
// them back in one best-effort save.
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/bitfantasy/nimo-crm/internal/client"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/bitfantasy/nimo-crm/internal/reconcile"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrValidation the editor state cannot be saved as is
	ErrValidation = errors.New("validation failed")
	// ErrNotLoaded no purchase order has been loaded
	ErrNotLoaded = errors.New("purchase order not loaded")
	// ErrUnknownItem no line item with the given key
	ErrUnknownItem = errors.New("unknown line item")
)

// Remote is the slice of the CRM API the editor talks to.
type Remote interface {
	GetPurchaseOrder(ctx context.Context, id int64) (*entity.PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, id int64, req *service.UpdatePORequest) (*entity.PurchaseOrder, error)
	DeletePurchaseOrder(ctx context.Context, id int64) error

	ItemsByPurchaseOrder(ctx context.Context, poID int64) ([]entity.PurchaseOrderItem, error)
	CreateItem(ctx context.Context, req *service.CreateItemRequest) (*entity.PurchaseOrderItem, error)
	UpdateItem(ctx context.Context, id int64, req *service.UpdateItemRequest) (*entity.PurchaseOrderItem, error)
	DeleteItem(ctx context.Context, id int64) error

	GetCustomer(ctx context.Context, id int64) (*entity.Customer, error)
	GetVendor(ctx context.Context, id int64) (*entity.Vendor, error)

	FetchImageGallery(ctx context.Context, itemID int64, itemType string) ([]client.ImageRecord, error)
	CreateImage(ctx context.Context, p client.CreateImageParams) (*client.ImageRecord, error)

	ContactsByReference(ctx context.Context, fkID int64, table, contactType string) ([]entity.Contact, error)
	CreateContact(ctx context.Context, req *service.ContactRequest) (*entity.Contact, error)
	UpdateContact(ctx context.Context, id int64, req *service.ContactRequest) (*entity.Contact, error)
	AddressesByReference(ctx context.Context, fkID int64, table, addressType string) ([]entity.Address, error)
	CreateAddress(ctx context.Context, req *service.AddressRequest) (*entity.Address, error)
	UpdateAddress(ctx context.Context, id int64, req *service.AddressRequest) (*entity.Address, error)
}

// Options tunes reconciliation and image upload retries.
type Options struct {
	Reconcile      reconcile.Options
	UploadAttempts uint
	UploadDelay    time.Duration
}

// DefaultOptions 3 upload attempts one second apart.
func DefaultOptions() Options {
	return Options{
		Reconcile:      reconcile.DefaultOptions(),
		UploadAttempts: 3,
		UploadDelay:    time.Second,
	}
}

// LocalImage an image picked on this side, uploaded on save.
type LocalImage struct {
	Filename    string
	Data        []byte
	Type        string
	Description string
}

// LineItem editor view of a purchase order item. ID is 0 until saved.
type LineItem struct {
	Key             int
	ID              int64
	ItemNumber      string
	ItemSKU         string
	ItemName        string
	ItemDescription string
	ItemNotes       string
	Specifications  []entity.Specification
	Quantity        int
	UnitPrice       decimal.Decimal
	Rate            decimal.Decimal
	Currency        string

	// Images holds gallery images, Pending local ones not uploaded yet
	Images       []reconcile.Image
	ImagesLoaded bool
	Pending      []LocalImage

	dirty bool
}

// Gallery gallery images followed by pending local ones.
func (li *LineItem) Gallery() []reconcile.Image {
	out := make([]reconcile.Image, 0, len(li.Images)+len(li.Pending))
	out = append(out, li.Images...)
	return append(out, localImages(li.Pending)...)
}

// LineTotal unit price × quantity + rate.
func (li *LineItem) LineTotal() decimal.Decimal {
	return entity.LineTotal(li.UnitPrice, li.Quantity, li.Rate)
}

// Header editable purchase order fields. Dates use YYYY-MM-DD.
type Header struct {
	CustomerID        int64
	VendorID          int64
	FactoryID         int64
	ShippingMethodID  int64
	Status            int
	Priority          entity.Priority
	ClientName        string
	ClientDescription string
	QuoteApprovedDate string
	PDSignedDate      string
	ShippingDate      string
	Notes             string
}

// Party contact and address stored against the purchase order.
type Party struct {
	Contact entity.Contact
	Address entity.Address
}

func (p Party) empty() bool {
	c, a := p.Contact, p.Address
	return c.ID == 0 && a.ID == 0 &&
		c.Firstname == "" && c.Lastname == "" && c.Email == "" && c.PhoneNumber == "" &&
		a.Address1 == "" && a.City == "" && a.Country == ""
}

// Totals running totals over the current line items.
type Totals struct {
	Quantity  int
	Subtotal  decimal.Decimal
	Rates     decimal.Decimal
	LineTotal decimal.Decimal
}

// Editor purchase order page state.
type Editor struct {
	remote Remote
	opts   Options
	logger *zap.Logger
	sleep  reconcile.SleepFunc

	po       *entity.PurchaseOrder
	header   Header
	items    []LineItem
	removed  []int64
	billing  Party
	shipping Party
	nextKey  int
	refetch  bool
	stats    reconcile.Stats
}

func NewEditor(remote Remote, opts Options, logger *zap.Logger) *Editor {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := DefaultOptions()
	if opts.UploadAttempts == 0 {
		opts.UploadAttempts = d.UploadAttempts
	}
	if opts.UploadDelay <= 0 {
		opts.UploadDelay = d.UploadDelay
	}
	return &Editor{remote: remote, opts: opts, logger: logger, sleep: reconcile.Sleep}
}

// WithSleep replaces the delay used between reconciliation steps.
func (e *Editor) WithSleep(fn reconcile.SleepFunc) *Editor {
	e.sleep = fn
	return e
}

// Load fetches the purchase order, its items and parties, then reconciles item images.
func (e *Editor) Load(ctx context.Context, poID int64) error {
	po, err := e.remote.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return fmt.Errorf("获取采购订单失败: %w", err)
	}
	rows, err := e.remote.ItemsByPurchaseOrder(ctx, poID)
	if err != nil {
		return fmt.Errorf("获取行项失败: %w", err)
	}

	// 同一订单重新加载时保留未保存成功的本地改动
	var carry *carryOver
	if e.po != nil && e.po.ID == po.ID {
		carry = e.carryOver()
	}

	e.po = po
	e.header = headerOf(po)
	e.removed = nil
	e.items = make([]LineItem, 0, len(rows))
	for i := range rows {
		li := e.lineItemOf(&rows[i])
		if carry != nil {
			if carry.removed[li.ID] {
				continue
			}
			li = carry.merge(li)
		}
		e.items = append(e.items, li)
	}
	if carry != nil {
		e.removed = carry.queue
		e.items = append(e.items, carry.unsaved...)
	}
	e.billing = e.loadParty(ctx, po.ID, entity.ContactTypeBilling)
	e.shipping = e.loadParty(ctx, po.ID, entity.ContactTypeShipping)

	return e.Reconcile(ctx)
}

// carryOver local work a refetch must not drop: unsaved items, items whose
// update or uploads failed, and deletions still queued.
type carryOver struct {
	unsaved []LineItem
	dirty   map[int64]LineItem
	removed map[int64]bool
	queue   []int64
}

func (e *Editor) carryOver() *carryOver {
	c := &carryOver{dirty: map[int64]LineItem{}, removed: map[int64]bool{}}
	for _, li := range e.items {
		switch {
		case li.ID == 0:
			c.unsaved = append(c.unsaved, li)
		case li.dirty || len(li.Pending) > 0:
			c.dirty[li.ID] = li
		}
	}
	for _, id := range e.removed {
		c.removed[id] = true
	}
	c.queue = append([]int64(nil), e.removed...)
	return c
}

// merge keeps local edits over the refetched row. Gallery images are
// reconciled again from the server.
func (c *carryOver) merge(fresh LineItem) LineItem {
	local, ok := c.dirty[fresh.ID]
	if !ok {
		return fresh
	}
	if local.dirty {
		local.ItemNumber = fresh.ItemNumber
		local.Images = nil
		local.ImagesLoaded = false
		return local
	}
	fresh.Key = local.Key
	fresh.Pending = local.Pending
	fresh.dirty = true
	return fresh
}

// Reconcile runs the image reconciliation loop over the current items.
func (e *Editor) Reconcile(ctx context.Context) error {
	in := make([]reconcile.Item, len(e.items))
	for i, li := range e.items {
		in[i] = reconcile.Item{ID: li.ID, Images: li.Images, ImagesLoaded: li.ImagesLoaded}
	}

	fetcher := reconcile.FetcherFunc(func(ctx context.Context, itemID int64) ([]reconcile.Record, error) {
		images, err := e.remote.FetchImageGallery(ctx, itemID, entity.ItemTypePurchaseOrders)
		if err != nil {
			return nil, err
		}
		return client.ToRecords(images), nil
	})
	runner := reconcile.NewRunner(fetcher, e.opts.Reconcile, e.logger).WithSleep(e.sleep)

	out, stats, err := runner.Run(ctx, in)
	for i := range out {
		e.items[i].Images = out[i].Images
		e.items[i].ImagesLoaded = out[i].ImagesLoaded
	}
	e.stats = stats
	return err
}

// PurchaseOrder the loaded purchase order, nil before Load.
func (e *Editor) PurchaseOrder() *entity.PurchaseOrder { return e.po }

// Header current header values.
func (e *Editor) Header() Header { return e.header }

// SetHeader replaces the header values.
func (e *Editor) SetHeader(h Header) { e.header = h }

func (e *Editor) Billing() Party { return e.billing }

func (e *Editor) Shipping() Party { return e.shipping }

func (e *Editor) SetBilling(p Party) { e.billing = p }

func (e *Editor) SetShipping(p Party) { e.shipping = p }

// Stats counters of the last reconciliation pass.
func (e *Editor) Stats() reconcile.Stats { return e.stats }

// Refetched flips on every refetch after save.
func (e *Editor) Refetched() bool { return e.refetch }

// Items snapshot of the line items.
func (e *Editor) Items() []LineItem {
	out := make([]LineItem, len(e.items))
	copy(out, e.items)
	return out
}

// AddItem appends an unsaved line item and returns its key.
func (e *Editor) AddItem(li LineItem) int {
	li.ID = 0
	li.Key = e.key()
	li.Images = nil
	li.ImagesLoaded = false
	li.dirty = true
	e.items = append(e.items, li)
	return li.Key
}

// EditItem applies fn to the item with key.
func (e *Editor) EditItem(key int, fn func(li *LineItem)) error {
	i := e.indexOf(key)
	if i < 0 {
		return ErrUnknownItem
	}
	li := &e.items[i]
	id, k := li.ID, li.Key
	fn(li)
	li.ID, li.Key = id, k
	li.dirty = true
	return nil
}

// RemoveItem drops the item; saved items are queued for deletion.
func (e *Editor) RemoveItem(key int) error {
	i := e.indexOf(key)
	if i < 0 {
		return ErrUnknownItem
	}
	if id := e.items[i].ID; id > 0 {
		e.removed = append(e.removed, id)
	}
	e.items = append(e.items[:i], e.items[i+1:]...)
	return nil
}

// AttachLocalImage queues img for upload with the item.
func (e *Editor) AttachLocalImage(key int, img LocalImage) error {
	i := e.indexOf(key)
	if i < 0 {
		return ErrUnknownItem
	}
	li := &e.items[i]
	li.Pending = append(li.Pending, img)
	li.dirty = true
	return nil
}

// Totals sums quantity, subtotal, rates and line totals.
func (e *Editor) Totals() Totals {
	t := Totals{Subtotal: decimal.Zero, Rates: decimal.Zero, LineTotal: decimal.Zero}
	for i := range e.items {
		li := &e.items[i]
		t.Quantity += li.Quantity
		t.Subtotal = t.Subtotal.Add(li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))))
		t.Rates = t.Rates.Add(li.Rate)
		t.LineTotal = t.LineTotal.Add(li.LineTotal())
	}
	return t
}

// Delete removes every saved item and then the purchase order.
func (e *Editor) Delete(ctx context.Context) error {
	if e.po == nil {
		return ErrNotLoaded
	}
	ids := append([]int64{}, e.removed...)
	for _, li := range e.items {
		if li.ID > 0 {
			ids = append(ids, li.ID)
		}
	}
	for _, id := range ids {
		if err := e.remote.DeleteItem(ctx, id); err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.NotFound() {
				continue
			}
			return fmt.Errorf("删除行项 %d 失败: %w", id, err)
		}
	}
	if err := e.remote.DeletePurchaseOrder(ctx, e.po.ID); err != nil {
		return fmt.Errorf("删除采购订单失败: %w", err)
	}
	e.logger.Info("purchase order deleted", zap.Int64("id", e.po.ID), zap.Int("items", len(ids)))
	e.po = nil
	e.items = nil
	e.removed = nil
	return nil
}

func (e *Editor) key() int {
	e.nextKey++
	return e.nextKey
}

func (e *Editor) indexOf(key int) int {
	for i := range e.items {
		if e.items[i].Key == key {
			return i
		}
	}
	return -1
}

func (e *Editor) lineItemOf(it *entity.PurchaseOrderItem) LineItem {
	return LineItem{
		Key:             e.key(),
		ID:              it.ID,
		ItemNumber:      it.ItemNumber,
		ItemSKU:         it.ItemSKU,
		ItemName:        it.ItemName,
		ItemDescription: it.ItemDescription,
		ItemNotes:       it.ItemNotes,
		Specifications:  it.ItemSpecifications.Data(),
		Quantity:        it.Quantity,
		UnitPrice:       it.UnitPrice,
		Rate:            it.Rate,
		Currency:        it.Currency,
	}
}

func (e *Editor) loadParty(ctx context.Context, poID int64, kind string) Party {
	var p Party
	contacts, err := e.remote.ContactsByReference(ctx, poID, entity.RefTablePurchaseOrders, kind)
	if err != nil {
		e.logger.Warn("load contact failed", zap.Int64("po_id", poID), zap.String("type", kind), zap.Error(err))
	} else if len(contacts) > 0 {
		p.Contact = contacts[0]
	}
	addresses, err := e.remote.AddressesByReference(ctx, poID, entity.RefTablePurchaseOrders, kind)
	if err != nil {
		e.logger.Warn("load address failed", zap.Int64("po_id", poID), zap.String("type", kind), zap.Error(err))
	} else if len(addresses) > 0 {
		p.Address = addresses[0]
	}
	return p
}

func headerOf(po *entity.PurchaseOrder) Header {
	return Header{
		CustomerID:        po.CustomerID,
		VendorID:          po.VendorID,
		FactoryID:         po.FactoryID,
		ShippingMethodID:  po.ShippingMethodID,
		Status:            po.Status,
		Priority:          po.Priority,
		ClientName:        po.ClientName,
		ClientDescription: po.ClientDescription,
		QuoteApprovedDate: formatDate(po.QuoteApprovedDate),
		PDSignedDate:      formatDate(po.PDSignedDate),
		ShippingDate:      formatDate(po.ShippingDate),
		Notes:             po.Notes,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func localImages(pending []LocalImage) []reconcile.Image {
	out := make([]reconcile.Image, 0, len(pending))
	for _, p := range pending {
		out = append(out, reconcile.Image{
			Filename:    p.Filename,
			Type:        entity.NormalizeImageType(p.Type),
			Description: p.Description,
			Source:      reconcile.SourceLocal,
		})
	}
	return out
}

// uploadImage sends one pending image with bounded retries.
func (e *Editor) uploadImage(ctx context.Context, itemID int64, img LocalImage) (*client.ImageRecord, error) {
	return retry.DoWithData(
		func() (*client.ImageRecord, error) {
			return e.remote.CreateImage(ctx, client.CreateImageParams{
				FKItemID:    itemID,
				FKItemType:  entity.ItemTypePurchaseOrders,
				Type:        entity.NormalizeImageType(img.Type),
				Description: img.Description,
				Filename:    img.Filename,
				File:        bytes.NewReader(img.Data),
			})
		},
		retry.Context(ctx),
		retry.Attempts(e.opts.UploadAttempts),
		retry.Delay(e.opts.UploadDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("image upload retry",
				zap.Int64("item_id", itemID),
				zap.String("filename", img.Filename),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
}
