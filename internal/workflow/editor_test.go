package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-crm/internal/client"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"github.com/bitfantasy/nimo-crm/internal/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("unavailable")

func notFound(what string) error {
	return &client.APIError{Status: 404, Code: 40400, Message: what + " not found"}
}

// fakeRemote in-memory CRM API.
type fakeRemote struct {
	mu sync.Mutex

	po        *entity.PurchaseOrder
	items     map[int64]*entity.PurchaseOrderItem
	images    map[int64][]client.ImageRecord
	customers map[int64]bool
	vendors   map[int64]bool
	contacts  []entity.Contact
	addresses []entity.Address
	nextID    int64

	failUploads   int // first N uploads fail
	failUpdatePO  bool
	failCreate    bool
	failUpdate    bool
	failDelete    bool
	uploadCalls   int
	galleryCalls  int
	calls         []string
	uploadedBytes []string
}

func newFakeRemote() *fakeRemote {
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	f := &fakeRemote{
		po:        &entity.PurchaseOrder{ID: 1, CustomerID: 10, VendorID: 20, Status: 1, Priority: entity.PriorityNormal},
		items:     map[int64]*entity.PurchaseOrderItem{},
		images:    map[int64][]client.ImageRecord{},
		customers: map[int64]bool{10: true},
		vendors:   map[int64]bool{20: true},
		nextID:    1000,
	}
	f.items[101] = &entity.PurchaseOrderItem{ID: 101, PurchaseOrderID: 1, ItemName: "Mug", Quantity: 2,
		UnitPrice: decimal.NewFromInt(5), Rate: decimal.NewFromInt(1), CreatedAt: created.Add(2 * time.Hour)}
	f.items[102] = &entity.PurchaseOrderItem{ID: 102, PurchaseOrderID: 1, ItemName: "Cap", Quantity: 3,
		UnitPrice: decimal.RequireFromString("2.50"), CreatedAt: created.Add(time.Hour)}
	f.images[101] = []client.ImageRecord{{ID: 1, FKItemID: 101, FKItemType: entity.ItemTypePurchaseOrders, URL: "https://cdn/mug.png"}}
	return f
}

func (f *fakeRemote) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRemote) record(format string, args ...interface{}) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeRemote) GetPurchaseOrder(_ context.Context, id int64) (*entity.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.po == nil || f.po.ID != id {
		return nil, notFound("purchase order")
	}
	po := *f.po
	return &po, nil
}

func (f *fakeRemote) UpdatePurchaseOrder(_ context.Context, id int64, req *service.UpdatePORequest) (*entity.PurchaseOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update po %d", id)
	if f.failUpdatePO {
		return nil, errUnavailable
	}
	if req.Status != nil {
		f.po.Status = *req.Status
	}
	if req.ClientName != nil {
		f.po.ClientName = *req.ClientName
	}
	po := *f.po
	return &po, nil
}

func (f *fakeRemote) DeletePurchaseOrder(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete po %d", id)
	f.po = nil
	return nil
}

func (f *fakeRemote) ItemsByPurchaseOrder(_ context.Context, poID int64) ([]entity.PurchaseOrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.PurchaseOrderItem
	for _, it := range f.items {
		if it.PurchaseOrderID == poID {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRemote) CreateItem(_ context.Context, req *service.CreateItemRequest) (*entity.PurchaseOrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create item %s", req.ItemName)
	if f.failCreate {
		return nil, errUnavailable
	}
	it := &entity.PurchaseOrderItem{
		ID:              f.id(),
		PurchaseOrderID: req.PurchaseOrderID,
		ItemName:        req.ItemName,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		Rate:            req.Rate,
		CreatedAt:       time.Now(),
	}
	it.ItemNumber = fmt.Sprintf("1-%d-%d", it.PurchaseOrderID, it.ID)
	f.items[it.ID] = it
	out := *it
	return &out, nil
}

func (f *fakeRemote) UpdateItem(_ context.Context, id int64, req *service.UpdateItemRequest) (*entity.PurchaseOrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update item %d", id)
	if f.failUpdate {
		return nil, errUnavailable
	}
	it, ok := f.items[id]
	if !ok {
		return nil, notFound("item")
	}
	if req.Quantity != nil {
		it.Quantity = *req.Quantity
	}
	if req.ItemName != nil {
		it.ItemName = *req.ItemName
	}
	out := *it
	return &out, nil
}

func (f *fakeRemote) DeleteItem(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete item %d", id)
	if f.failDelete {
		return errUnavailable
	}
	if _, ok := f.items[id]; !ok {
		return notFound("item")
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRemote) GetCustomer(_ context.Context, id int64) (*entity.Customer, error) {
	if !f.customers[id] {
		return nil, notFound("customer")
	}
	return &entity.Customer{ID: id}, nil
}

func (f *fakeRemote) GetVendor(_ context.Context, id int64) (*entity.Vendor, error) {
	if !f.vendors[id] {
		return nil, notFound("vendor")
	}
	return &entity.Vendor{ID: id}, nil
}

func (f *fakeRemote) FetchImageGallery(_ context.Context, itemID int64, itemType string) ([]client.ImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.galleryCalls++
	if itemType != entity.ItemTypePurchaseOrders {
		return nil, fmt.Errorf("unexpected item type %s", itemType)
	}
	return append([]client.ImageRecord(nil), f.images[itemID]...), nil
}

func (f *fakeRemote) CreateImage(_ context.Context, p client.CreateImageParams) (*client.ImageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadCalls++
	f.record("upload %s", p.Filename)
	if f.failUploads > 0 {
		f.failUploads--
		return nil, errUnavailable
	}
	data, _ := io.ReadAll(p.File)
	f.uploadedBytes = append(f.uploadedBytes, string(data))
	img := client.ImageRecord{ID: f.id(), FKItemID: p.FKItemID, FKItemType: p.FKItemType, Filename: p.Filename, Type: p.Type}
	f.images[p.FKItemID] = append(f.images[p.FKItemID], img)
	return &img, nil
}

func (f *fakeRemote) ContactsByReference(_ context.Context, fkID int64, table, kind string) ([]entity.Contact, error) {
	var out []entity.Contact
	for _, c := range f.contacts {
		if c.FKID == fkID && c.Table == table && c.ContactType == kind {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateContact(_ context.Context, req *service.ContactRequest) (*entity.Contact, error) {
	f.record("create contact %s", *req.ContactType)
	c := entity.Contact{ID: f.id(), FKID: *req.FKID, Table: *req.Table, ContactType: *req.ContactType, Email: *req.Email}
	f.contacts = append(f.contacts, c)
	return &c, nil
}

func (f *fakeRemote) UpdateContact(_ context.Context, id int64, req *service.ContactRequest) (*entity.Contact, error) {
	f.record("update contact %d", id)
	for i := range f.contacts {
		if f.contacts[i].ID == id {
			f.contacts[i].Email = *req.Email
			c := f.contacts[i]
			return &c, nil
		}
	}
	return nil, notFound("contact")
}

func (f *fakeRemote) AddressesByReference(_ context.Context, fkID int64, table, kind string) ([]entity.Address, error) {
	var out []entity.Address
	for _, a := range f.addresses {
		if a.FKID == fkID && a.Table == table && a.AddressType == kind {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateAddress(_ context.Context, req *service.AddressRequest) (*entity.Address, error) {
	f.record("create address %s", *req.AddressType)
	a := entity.Address{ID: f.id(), FKID: *req.FKID, Table: *req.Table, AddressType: *req.AddressType, City: *req.City}
	f.addresses = append(f.addresses, a)
	return &a, nil
}

func (f *fakeRemote) UpdateAddress(_ context.Context, id int64, req *service.AddressRequest) (*entity.Address, error) {
	f.record("update address %d", id)
	for i := range f.addresses {
		if f.addresses[i].ID == id {
			f.addresses[i].City = *req.City
			a := f.addresses[i]
			return &a, nil
		}
	}
	return nil, notFound("address")
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestEditor(f *fakeRemote) *Editor {
	opts := DefaultOptions()
	opts.UploadDelay = time.Millisecond
	return NewEditor(f, opts, nil).WithSleep(noSleep)
}

func itemByID(t *testing.T, items []LineItem, id int64) LineItem {
	t.Helper()
	for _, li := range items {
		if li.ID == id {
			return li
		}
	}
	t.Fatalf("item %d not found", id)
	return LineItem{}
}

func TestEditor_LoadReconcilesImages(t *testing.T) {
	f := newFakeRemote()
	e := newTestEditor(f)

	require.NoError(t, e.Load(context.Background(), 1))

	items := e.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(101), items[0].ID, "newest first")

	mug := itemByID(t, items, 101)
	assert.True(t, mug.ImagesLoaded)
	require.Len(t, mug.Images, 1)
	assert.Equal(t, "https://cdn/mug.png", mug.Images[0].URL)

	hat := itemByID(t, items, 102)
	assert.True(t, hat.ImagesLoaded)
	assert.Empty(t, hat.Images)

	// 101 once, 102 until retries are spent
	assert.Equal(t, 1+reconcile.DefaultMaxRetryAttempts, f.galleryCalls)
	assert.Equal(t, 1, e.Stats().Loaded)
	assert.Equal(t, 1, e.Stats().GaveUp)
}

func TestEditor_LoadMissingPurchaseOrder(t *testing.T) {
	e := newTestEditor(newFakeRemote())
	err := e.Load(context.Background(), 99)
	require.Error(t, err)
	var apiErr *client.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestEditor_SaveRequiresCustomerAndVendor(t *testing.T) {
	f := newFakeRemote()
	e := newTestEditor(f)
	require.NoError(t, e.Load(context.Background(), 1))

	h := e.Header()
	h.CustomerID = 0
	e.SetHeader(h)
	_, err := e.Save(context.Background())
	assert.ErrorIs(t, err, ErrValidation)

	h.CustomerID = 10
	h.VendorID = 77
	e.SetHeader(h)
	_, err = e.Save(context.Background())
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.calls, "nothing is written when validation fails")
}

func TestEditor_SaveBeforeLoad(t *testing.T) {
	_, err := newTestEditor(newFakeRemote()).Save(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestEditor_SaveRunsStepsInOrder(t *testing.T) {
	f := newFakeRemote()
	f.failUploads = 2
	e := newTestEditor(f)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, 1))

	h := e.Header()
	h.Status = entity.POStatusCompleted
	h.ClientName = "ACME"
	e.SetHeader(h)

	key := e.AddItem(LineItem{ItemName: "Pen", Quantity: 10, UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, e.AttachLocalImage(key, LocalImage{Filename: "pen.png", Data: []byte("img"), Type: "ARTWORK"}))

	items := e.Items()
	require.NoError(t, e.EditItem(itemByID(t, items, 102).Key, func(li *LineItem) { li.Quantity = 4 }))
	require.NoError(t, e.RemoveItem(itemByID(t, items, 101).Key))

	e.SetBilling(Party{Contact: entity.Contact{Email: "billing@acme.test"}, Address: entity.Address{City: "Austin"}})

	report, err := e.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, 3, f.uploadCalls, "two failures then success")

	assert.Equal(t, []string{
		"update po 1",
		"create item Pen",
		"upload pen.png",
		"upload pen.png",
		"upload pen.png",
		"update item 102",
		"delete item 101",
		"create contact billing",
		"create address billing",
	}, f.calls)
	assert.Equal(t, []string{"img"}, f.uploadedBytes)

	// refetched state
	assert.True(t, e.Refetched())
	assert.Equal(t, entity.POStatusCompleted, e.PurchaseOrder().Status)
	items = e.Items()
	require.Len(t, items, 2)
	pen := itemByID(t, items, 1001)
	assert.True(t, pen.ImagesLoaded)
	require.Len(t, pen.Images, 1)
	assert.Equal(t, "pen.png", pen.Images[0].Filename)
	assert.Empty(t, pen.Pending)
	assert.Equal(t, 4, itemByID(t, items, 102).Quantity)
	assert.Equal(t, "billing@acme.test", e.Billing().Contact.Email)
	assert.Equal(t, "Austin", e.Billing().Address.City)
}

func TestEditor_SaveContinuesAfterFailures(t *testing.T) {
	f := newFakeRemote()
	f.failUpdatePO = true
	f.failUploads = 100
	e := newTestEditor(f)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, 1))

	mugKey := itemByID(t, e.Items(), 101).Key
	require.NoError(t, e.AttachLocalImage(mugKey, LocalImage{Filename: "a.png", Data: []byte("a")}))
	e.AddItem(LineItem{ItemName: "Pen", Quantity: 1})

	report, err := e.Save(ctx)
	require.NoError(t, err)
	require.Error(t, report.Err())
	assert.Len(t, report.Failed(), 2)
	assert.Equal(t, "update purchase order", report.Failed()[0].Step)
	assert.ErrorIs(t, report.Failed()[1].Err, errUnavailable)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, int(DefaultOptions().UploadAttempts), f.uploadCalls)

	// the failed upload stays queued across the refetch
	mug := itemByID(t, e.Items(), 101)
	require.Len(t, mug.Pending, 1)
	gallery := mug.Gallery()
	require.Len(t, gallery, 2)
	assert.Equal(t, reconcile.SourceLocal, gallery[1].Source)
}

func TestEditor_SaveKeepsUnsavedItemWhenCreateFails(t *testing.T) {
	f := newFakeRemote()
	f.failCreate = true
	e := newTestEditor(f)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, 1))

	key := e.AddItem(LineItem{ItemName: "Pen", Quantity: 4})
	require.NoError(t, e.AttachLocalImage(key, LocalImage{Filename: "pen.png", Data: []byte("pen")}))

	report, err := e.Save(ctx)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, `create item "Pen"`, report.Failed()[0].Step)
	assert.Zero(t, f.uploadCalls)

	items := e.Items()
	require.Len(t, items, 3)
	pen := items[2]
	assert.Equal(t, key, pen.Key)
	assert.Zero(t, pen.ID)
	assert.Equal(t, "Pen", pen.ItemName)
	require.Len(t, pen.Pending, 1)
	assert.Equal(t, "pen.png", pen.Pending[0].Filename)

	// the next save creates it and uploads the image
	f.failCreate = false
	report, err = e.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Uploaded)
	assert.Equal(t, []string{"pen"}, f.uploadedBytes)
	for _, li := range e.Items() {
		assert.NotZero(t, li.ID)
		assert.Empty(t, li.Pending)
	}
}

func TestEditor_SaveKeepsEditsWhenUpdateFails(t *testing.T) {
	f := newFakeRemote()
	f.failUpdate = true
	e := newTestEditor(f)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, 1))

	mug := itemByID(t, e.Items(), 101)
	require.NoError(t, e.EditItem(mug.Key, func(li *LineItem) { li.Quantity = 9 }))

	report, err := e.Save(ctx)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "update item 101", report.Failed()[0].Step)

	kept := itemByID(t, e.Items(), 101)
	assert.Equal(t, 9, kept.Quantity)
	assert.Equal(t, mug.Key, kept.Key)
	assert.True(t, kept.ImagesLoaded)
	assert.Len(t, kept.Images, 1)
	assert.Equal(t, 2, f.items[101].Quantity)

	f.failUpdate = false
	report, err = e.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 9, f.items[101].Quantity)
	assert.Equal(t, 9, itemByID(t, e.Items(), 101).Quantity)
}

func TestEditor_SaveKeepsDeletionQueuedWhenDeleteFails(t *testing.T) {
	f := newFakeRemote()
	f.failDelete = true
	e := newTestEditor(f)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, 1))

	require.NoError(t, e.RemoveItem(itemByID(t, e.Items(), 101).Key))

	report, err := e.Save(ctx)
	require.NoError(t, err)
	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "delete item 101", report.Failed()[0].Step)
	assert.Equal(t, []int64{101}, e.removed)
	for _, li := range e.Items() {
		assert.NotEqual(t, int64(101), li.ID)
	}

	f.failDelete = false
	report, err = e.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, e.removed)
	assert.NotContains(t, f.items, int64(101))
	assert.Len(t, e.Items(), 1)
}

func TestEditor_LoadOtherPurchaseOrderDropsLocalWork(t *testing.T) {
	f := newFakeRemote()
	e := newTestEditor(f)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, 1))
	e.AddItem(LineItem{ItemName: "Pen", Quantity: 1})
	require.NoError(t, e.RemoveItem(itemByID(t, e.Items(), 102).Key))

	f.po = &entity.PurchaseOrder{ID: 2, CustomerID: 10, VendorID: 20}
	require.NoError(t, e.Load(ctx, 2))
	assert.Empty(t, e.Items())
	assert.Empty(t, e.removed)
}

func TestEditor_RemoveUnsavedItemIsNotQueued(t *testing.T) {
	f := newFakeRemote()
	e := newTestEditor(f)
	require.NoError(t, e.Load(context.Background(), 1))

	key := e.AddItem(LineItem{ItemName: "Tmp", Quantity: 1})
	require.NoError(t, e.RemoveItem(key))
	assert.Empty(t, e.removed)
	assert.ErrorIs(t, e.RemoveItem(key), ErrUnknownItem)
	assert.ErrorIs(t, e.EditItem(key, func(*LineItem) {}), ErrUnknownItem)
	assert.ErrorIs(t, e.AttachLocalImage(key, LocalImage{}), ErrUnknownItem)
}

func TestEditor_EditItemKeepsIdentity(t *testing.T) {
	e := newTestEditor(newFakeRemote())
	require.NoError(t, e.Load(context.Background(), 1))
	mug := itemByID(t, e.Items(), 101)

	require.NoError(t, e.EditItem(mug.Key, func(li *LineItem) {
		li.ID = 5
		li.ItemName = "Big mug"
	}))
	edited := itemByID(t, e.Items(), 101)
	assert.Equal(t, "Big mug", edited.ItemName)
	assert.Equal(t, mug.Key, edited.Key)
}

func TestEditor_Totals(t *testing.T) {
	e := newTestEditor(newFakeRemote())
	require.NoError(t, e.Load(context.Background(), 1))
	e.AddItem(LineItem{ItemName: "Pen", Quantity: 4, UnitPrice: decimal.RequireFromString("0.25"), Rate: decimal.RequireFromString("0.50")})

	tot := e.Totals()
	assert.Equal(t, 9, tot.Quantity)
	// 2×5 + 3×2.50 + 4×0.25
	assert.True(t, decimal.RequireFromString("18.50").Equal(tot.Subtotal), tot.Subtotal.String())
	assert.True(t, decimal.RequireFromString("1.50").Equal(tot.Rates), tot.Rates.String())
	assert.True(t, decimal.RequireFromString("20.00").Equal(tot.LineTotal), tot.LineTotal.String())
}

func TestEditor_DeleteRemovesItemsThenPurchaseOrder(t *testing.T) {
	f := newFakeRemote()
	e := newTestEditor(f)
	require.NoError(t, e.Load(context.Background(), 1))
	e.AddItem(LineItem{ItemName: "Unsaved"})

	require.NoError(t, e.Delete(context.Background()))
	require.Len(t, f.calls, 3)
	assert.ElementsMatch(t, []string{"delete item 101", "delete item 102"}, f.calls[:2])
	assert.Equal(t, "delete po 1", f.calls[2])
	assert.Nil(t, e.PurchaseOrder())
	assert.ErrorIs(t, e.Delete(context.Background()), ErrNotLoaded)
}

func TestEditor_SaveShippingPartyUpdatesExisting(t *testing.T) {
	f := newFakeRemote()
	e := newTestEditor(f)
	ctx := context.Background()
	require.NoError(t, e.Load(ctx, 1))

	e.SetShipping(Party{Contact: entity.Contact{Email: "dock@acme.test"}, Address: entity.Address{City: "Reno"}})
	report, err := e.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Contains(t, f.calls, "create contact shipping")
	assert.Contains(t, f.calls, "create address shipping")

	shipping := e.Shipping()
	require.NotZero(t, shipping.Contact.ID)
	shipping.Contact.Email = "receiving@acme.test"
	shipping.Address.City = "Sparks"
	e.SetShipping(shipping)

	f.calls = nil
	report, err = e.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Contains(t, f.calls, fmt.Sprintf("update contact %d", shipping.Contact.ID))
	assert.Contains(t, f.calls, fmt.Sprintf("update address %d", shipping.Address.ID))
	assert.Equal(t, "receiving@acme.test", e.Shipping().Contact.Email)
	assert.Equal(t, "Sparks", e.Shipping().Address.City)
	assert.Empty(t, e.Billing().Contact.Email)
}
