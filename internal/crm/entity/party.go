package entity

import "time"

// 供应商状态
const (
	VendorStatusActive  = "ACTIVE"
	VendorStatusBlocked = "BLOCKED"
)

// 工厂状态
const (
	FactoryStatusActive   = "ACTIVE"
	FactoryStatusInactive = "INACTIVE"
	FactoryStatusBlocked  = "BLOCKED"
)

// 联系人/地址归属表
const (
	RefTableCustomers      = "Customers"
	RefTableVendors        = "Vendors"
	RefTableFactories      = "Factories"
	RefTablePurchaseOrders = "PurchaseOrders"
)

// 联系人/地址类型
const (
	ContactTypePrimary  = "primary"
	ContactTypeBilling  = "billing"
	ContactTypeShipping = "shipping"
)

// Customer 客户
type Customer struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string    `json:"name" gorm:"size:200;not null;index"`
	OwnerName    string    `json:"owner_name" gorm:"size:200"`
	Email        string    `json:"email" gorm:"size:200"`
	PhoneNumber  string    `json:"phone_number" gorm:"size:50"`
	MobileNumber string    `json:"mobile_number" gorm:"size:50"`
	WebsiteURL   string    `json:"website_url" gorm:"size:500"`
	Industry     string    `json:"industry" gorm:"size:100"`
	CustomerType string    `json:"customer_type" gorm:"size:50;index"`
	Status       string    `json:"status" gorm:"size:30;index"`
	Source       string    `json:"source" gorm:"size:100"`
	VATNumber    string    `json:"vat_number" gorm:"size:50"`
	TaxID        string    `json:"tax_id" gorm:"size:50"`
	Notes        string    `json:"notes" gorm:"type:text"`
	Tags         JSONB     `json:"tags" gorm:"type:jsonb"`
	UserOwner    string    `json:"user_owner" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Customer) TableName() string {
	return "crm_customers"
}

// Vendor 供应商
type Vendor struct {
	ID                int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name              string    `json:"name" gorm:"size:200;not null;index"`
	Status            string    `json:"status" gorm:"size:20;default:ACTIVE;index"`
	VendorTypeID      int64     `json:"vendor_type_id"`
	ServiceCategoryID int64     `json:"service_category_id"`
	WebsiteURL        string    `json:"website_url" gorm:"size:500"`
	LocationID        int64     `json:"location_id"`
	Tags              JSONB     `json:"tags" gorm:"type:jsonb"`
	Notes             string    `json:"notes" gorm:"type:text"`
	UserOwner         string    `json:"user_owner" gorm:"size:100"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Vendor) TableName() string {
	return "crm_vendors"
}

// Factory 工厂
type Factory struct {
	ID                int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name              string    `json:"name" gorm:"size:200;not null;index"`
	Status            string    `json:"status" gorm:"size:20;default:ACTIVE;index"`
	FactoryTypeID     int64     `json:"factory_type_id"`
	ServiceCategoryID int64     `json:"service_category_id"`
	LocationID        int64     `json:"location_id"`
	Email             string    `json:"email" gorm:"size:200"`
	WebsiteURL        string    `json:"website_url" gorm:"size:500"`
	Industry          string    `json:"industry" gorm:"size:100"`
	Tags              JSONB     `json:"tags" gorm:"type:jsonb"`
	Notes             string    `json:"notes" gorm:"type:text"`
	UserOwner         string    `json:"user_owner" gorm:"size:100"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Factory) TableName() string {
	return "crm_factories"
}

// Contact 联系人（按 fk_id + table 多态归属）
type Contact struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	FKID          int64     `json:"fk_id" gorm:"not null;index:idx_contact_ref"`
	Table         string    `json:"table" gorm:"column:ref_table;size:50;not null;index:idx_contact_ref"`
	ContactType   string    `json:"contact_type" gorm:"size:20;default:primary;index:idx_contact_ref"`
	Firstname     string    `json:"firstname" gorm:"size:100"`
	Lastname      string    `json:"lastname" gorm:"size:100"`
	Email         string    `json:"email" gorm:"size:200"`
	PhoneNumber   string    `json:"phone_number" gorm:"size:50"`
	MobileNumber  string    `json:"mobile_number" gorm:"size:50"`
	PositionTitle string    `json:"position_title" gorm:"size:100"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Contact) TableName() string {
	return "crm_contacts"
}

// Address 地址（按 fk_id + table 多态归属）
type Address struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	FKID        int64     `json:"fk_id" gorm:"not null;index:idx_address_ref"`
	Table       string    `json:"table" gorm:"column:ref_table;size:50;not null;index:idx_address_ref"`
	AddressType string    `json:"address_type" gorm:"size:20;default:primary;index:idx_address_ref"`
	Address1    string    `json:"address1" gorm:"size:255"`
	Address2    string    `json:"address2" gorm:"size:255"`
	City        string    `json:"city" gorm:"size:100"`
	State       string    `json:"state" gorm:"size:100"`
	Zip         string    `json:"zip" gorm:"size:20"`
	Country     string    `json:"country" gorm:"size:100"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Address) TableName() string {
	return "crm_addresses"
}
