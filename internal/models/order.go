package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrOrderNotFound is returned when no order carries the requested item id
var ErrOrderNotFound = errors.New("order not found")

// Platform represents the marketplace an order was sold on
type Platform string

const (
	PlatformAmazon Platform = "Amazon"
	PlatformEbay   Platform = "eBay"
)

// CustomerType distinguishes private buyers from business buyers
type CustomerType string

const (
	CustomerPrivate  CustomerType = "Privat"
	CustomerBusiness CustomerType = "Firma"
)

// ShipmentStatus is derived from the shipping fields, never set directly
type ShipmentStatus string

const (
	StatusOpen    ShipmentStatus = "Offen"
	StatusShipped ShipmentStatus = "Versendet"
)

// OrderSource records which import path created an order
type OrderSource string

const (
	SourceFile   OrderSource = "file"
	SourceRemote OrderSource = "remote"
)

// Order is the canonical line-item record shared by every marketplace.
// OrderItemID is unique across the whole set; OrderID groups items of one purchase.
type Order struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Platform     Platform  `gorm:"type:varchar(20);not null;index:idx_orders_platform" json:"platform"`
	PurchaseDate string    `gorm:"type:varchar(64)" json:"purchaseDate"`
	OrderID      string    `gorm:"type:varchar(255);index:idx_orders_order_id" json:"orderId"`
	OrderItemID  string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_order_item_id" json:"orderItemId"`

	// Buyer
	Email     string `gorm:"type:varchar(255)" json:"email"`
	Phone     string `gorm:"type:varchar(64)" json:"phone"`
	FirstName string `gorm:"type:varchar(255)" json:"firstName"`
	LastName  string `gorm:"type:varchar(255)" json:"lastName"`

	// Address
	Street        string `gorm:"type:varchar(500)" json:"street"`
	ContactPerson string `gorm:"type:varchar(500)" json:"contactPerson"`
	City          string `gorm:"type:varchar(255)" json:"city"`
	PostalCode    string `gorm:"type:varchar(32)" json:"postalCode"`
	Country       string `gorm:"type:varchar(64)" json:"country"`

	// Product
	SKU         string `gorm:"type:varchar(255)" json:"sku"`
	ProductName string `gorm:"type:varchar(1000)" json:"productName"`
	Quantity    int    `gorm:"not null;default:1" json:"quantity"`
	ItemPrice   string `gorm:"type:varchar(64)" json:"itemPrice,omitempty"`

	CustomerType CustomerType `gorm:"type:varchar(20);not null;default:'Privat'" json:"customerType"`

	// Shipping, nil until fulfillment
	ShippingCarrier *string `gorm:"type:varchar(255)" json:"shippingCarrier"`
	TrackingNumber  *string `gorm:"type:varchar(255)" json:"trackingNumber"`
	ShippingDate    *string `gorm:"type:varchar(64)" json:"shippingDate"`
	Shipper         *string `gorm:"type:varchar(255)" json:"shipper"`

	Status ShipmentStatus `gorm:"type:varchar(20);not null;default:'Offen';index:idx_orders_status" json:"status"`
	Source OrderSource    `gorm:"type:varchar(20)" json:"source,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// FullName joins first and last name the way buyers write them on a label
func (o *Order) FullName() string {
	if o.LastName == "" {
		return o.FirstName
	}
	if o.FirstName == "" {
		return o.LastName
	}
	return o.FirstName + " " + o.LastName
}

// OrderUpdate is a partial update of the shipping attributes. Nil fields are left untouched.
type OrderUpdate struct {
	ShippingCarrier *string `json:"shippingCarrier,omitempty"`
	TrackingNumber  *string `json:"trackingNumber,omitempty"`
	ShippingDate    *string `json:"shippingDate,omitempty"`
	Shipper         *string `json:"shipper,omitempty"`
}

// IsEmpty reports whether the update changes nothing
func (u OrderUpdate) IsEmpty() bool {
	return u.ShippingCarrier == nil && u.TrackingNumber == nil && u.ShippingDate == nil && u.Shipper == nil
}

// StrPtr returns a pointer to s
func StrPtr(s string) *string {
	return &s
}

// StrValue dereferences p, returning "" for nil
func StrValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
