package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-crm/internal/client"
	"github.com/bitfantasy/nimo-crm/internal/crm/entity"
	"github.com/bitfantasy/nimo-crm/internal/crm/service"
	"go.uber.org/zap"
)

// StepResult outcome of one save sub-step.
type StepResult struct {
	Step string
	Err  error
}

// SaveReport collects sub-step outcomes of a save.
type SaveReport struct {
	Steps    []StepResult
	Created  int
	Updated  int
	Deleted  int
	Uploaded int
}

func (r *SaveReport) add(step string, err error) {
	r.Steps = append(r.Steps, StepResult{Step: step, Err: err})
}

// Failed the sub-steps that returned an error.
func (r *SaveReport) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Err joins every sub-step error, nil when all succeeded.
func (r *SaveReport) Err() error {
	var errs []error
	for _, s := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", s.Step, s.Err))
	}
	return errors.Join(errs...)
}

// Save validates the header and writes every change back. Sub-step failures
// are recorded in the report and never stop the remaining steps. Afterwards
// the purchase order is fetched again and its images reconciled.
func (e *Editor) Save(ctx context.Context) (*SaveReport, error) {
	if e.po == nil {
		return nil, ErrNotLoaded
	}
	if err := e.validate(ctx); err != nil {
		return nil, err
	}

	poID := e.po.ID
	report := &SaveReport{}

	_, err := e.remote.UpdatePurchaseOrder(ctx, poID, e.updatePORequest())
	report.add("update purchase order", err)

	// 新行项：创建后上传图片
	for i := range e.items {
		li := &e.items[i]
		if li.ID != 0 {
			continue
		}
		created, err := e.remote.CreateItem(ctx, createItemRequest(poID, li))
		report.add(fmt.Sprintf("create item %q", li.ItemName), err)
		if err != nil {
			continue
		}
		li.ID = created.ID
		li.ItemNumber = created.ItemNumber
		li.dirty = false
		report.Created++
		e.uploadPending(ctx, li, report)
	}

	// 已有行项
	for i := range e.items {
		li := &e.items[i]
		if li.ID == 0 || !li.dirty {
			continue
		}
		_, err := e.remote.UpdateItem(ctx, li.ID, updateItemRequest(li))
		report.add(fmt.Sprintf("update item %d", li.ID), err)
		if err != nil {
			continue
		}
		li.dirty = false
		report.Updated++
		e.uploadPending(ctx, li, report)
	}

	var keep []int64
	for _, id := range e.removed {
		err := e.remote.DeleteItem(ctx, id)
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			err = nil
		}
		report.add(fmt.Sprintf("delete item %d", id), err)
		if err != nil {
			keep = append(keep, id)
			continue
		}
		report.Deleted++
	}
	e.removed = keep

	e.saveParty(ctx, poID, entity.ContactTypeBilling, &e.billing, report)
	e.saveParty(ctx, poID, entity.ContactTypeShipping, &e.shipping, report)

	for _, f := range report.Failed() {
		e.logger.Warn("save step failed", zap.Int64("po_id", poID), zap.String("step", f.Step), zap.Error(f.Err))
	}

	e.refetch = !e.refetch
	if err := e.Load(ctx, poID); err != nil {
		report.add("refetch", err)
	}
	e.logger.Info("purchase order saved",
		zap.Int64("po_id", poID),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("deleted", report.Deleted),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("failed", len(report.Failed())))
	return report, nil
}

func (e *Editor) validate(ctx context.Context) error {
	h := e.header
	if h.CustomerID <= 0 {
		return fmt.Errorf("%w: customer is required", ErrValidation)
	}
	if h.VendorID <= 0 {
		return fmt.Errorf("%w: vendor is required", ErrValidation)
	}
	if h.Priority != "" && !h.Priority.Valid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, h.Priority)
	}
	for _, li := range e.items {
		if li.ItemName == "" {
			return fmt.Errorf("%w: line item name is required", ErrValidation)
		}
		if li.Quantity < 0 {
			return fmt.Errorf("%w: quantity of %q is negative", ErrValidation, li.ItemName)
		}
	}

	if _, err := e.remote.GetCustomer(ctx, h.CustomerID); err != nil {
		return partyError("customer", h.CustomerID, err)
	}
	if _, err := e.remote.GetVendor(ctx, h.VendorID); err != nil {
		return partyError("vendor", h.VendorID, err)
	}
	return nil
}

func partyError(kind string, id int64, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return fmt.Errorf("%w: %s %d does not exist", ErrValidation, kind, id)
	}
	return fmt.Errorf("check %s %d: %w", kind, id, err)
}

// uploadPending uploads queued images; failed ones stay queued.
func (e *Editor) uploadPending(ctx context.Context, li *LineItem, report *SaveReport) {
	var left []LocalImage
	for _, img := range li.Pending {
		_, err := e.uploadImage(ctx, li.ID, img)
		report.add(fmt.Sprintf("upload image %s for item %d", img.Filename, li.ID), err)
		if err != nil {
			left = append(left, img)
			continue
		}
		report.Uploaded++
	}
	li.Pending = left
}

func (e *Editor) saveParty(ctx context.Context, poID int64, kind string, p *Party, report *SaveReport) {
	if p.empty() {
		return
	}
	table := entity.RefTablePurchaseOrders

	c := p.Contact
	creq := &service.ContactRequest{
		FKID:          &poID,
		Table:         &table,
		ContactType:   &kind,
		Firstname:     &c.Firstname,
		Lastname:      &c.Lastname,
		Email:         &c.Email,
		PhoneNumber:   &c.PhoneNumber,
		MobileNumber:  &c.MobileNumber,
		PositionTitle: &c.PositionTitle,
	}
	var saved *entity.Contact
	var err error
	if c.ID > 0 {
		saved, err = e.remote.UpdateContact(ctx, c.ID, creq)
	} else {
		saved, err = e.remote.CreateContact(ctx, creq)
	}
	report.add(kind+" contact", err)
	if err == nil {
		p.Contact = *saved
	}

	a := p.Address
	areq := &service.AddressRequest{
		FKID:        &poID,
		Table:       &table,
		AddressType: &kind,
		Address1:    &a.Address1,
		Address2:    &a.Address2,
		City:        &a.City,
		State:       &a.State,
		Zip:         &a.Zip,
		Country:     &a.Country,
	}
	var savedAddr *entity.Address
	if a.ID > 0 {
		savedAddr, err = e.remote.UpdateAddress(ctx, a.ID, areq)
	} else {
		savedAddr, err = e.remote.CreateAddress(ctx, areq)
	}
	report.add(kind+" address", err)
	if err == nil {
		p.Address = *savedAddr
	}
}

func (e *Editor) updatePORequest() *service.UpdatePORequest {
	h := e.header
	priority := string(h.Priority)
	req := &service.UpdatePORequest{
		CustomerID:        &h.CustomerID,
		VendorID:          &h.VendorID,
		FactoryID:         &h.FactoryID,
		ShippingMethodID:  &h.ShippingMethodID,
		ClientName:        &h.ClientName,
		ClientDescription: &h.ClientDescription,
		QuoteApprovedDate: &h.QuoteApprovedDate,
		PDSignedDate:      &h.PDSignedDate,
		ShippingDate:      &h.ShippingDate,
		Notes:             &h.Notes,
	}
	if h.Status != 0 {
		req.Status = &h.Status
	}
	if priority != "" {
		req.Priority = &priority
	}
	return req
}

func createItemRequest(poID int64, li *LineItem) *service.CreateItemRequest {
	return &service.CreateItemRequest{
		PurchaseOrderID:       poID,
		ItemSKU:               li.ItemSKU,
		ItemName:              li.ItemName,
		ItemDescription:       li.ItemDescription,
		ItemSpecifications:    li.Specifications,
		ItemNotes:             li.ItemNotes,
		PackagingInstructions: json.RawMessage(`{}`),
		Quantity:              li.Quantity,
		UnitPrice:             li.UnitPrice,
		Rate:                  li.Rate,
		Currency:              li.Currency,
	}
}

func updateItemRequest(li *LineItem) *service.UpdateItemRequest {
	specs := li.Specifications
	return &service.UpdateItemRequest{
		ItemSKU:            &li.ItemSKU,
		ItemName:           &li.ItemName,
		ItemDescription:    &li.ItemDescription,
		ItemSpecifications: &specs,
		ItemNotes:          &li.ItemNotes,
		Quantity:           &li.Quantity,
		UnitPrice:          &li.UnitPrice,
		Rate:               &li.Rate,
		Currency:           &li.Currency,
	}
}
