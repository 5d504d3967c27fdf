package clients

import (
	"context"
	"time"

	"order-ingestion-service/internal/models"
)

// OrderSource is a remote marketplace that can list orders with their line items
type OrderSource interface {
	// FetchOrders returns one canonical order per line item of every
	// non-cancelled order created inside the window
	FetchOrders(ctx context.Context, createdAfter, createdBefore time.Time) (*FetchResult, error)
}

// FetchResult contains the mapped line items of one remote fetch plus non-fatal warnings
type FetchResult struct {
	Orders     []*models.Order
	OrdersSeen int
	Cancelled  int
	Warnings   []string
}

// OrderListOptions contains the filters of one order-list page request
type OrderListOptions struct {
	CreatedAfter  time.Time
	CreatedBefore time.Time
	PageSize      int
	Cursor        string
}

// OrdersResult contains one page of orders
type OrdersResult struct {
	Orders     []ExternalOrder
	NextCursor string
}

// ExternalOrder represents an order from an external marketplace
type ExternalOrder struct {
	ID              string             `json:"id"`
	PurchaseDate    string             `json:"purchaseDate"`
	Status          string             `json:"status"`
	Email           string             `json:"email,omitempty"`
	BuyerName       string             `json:"buyerName,omitempty"`
	ShippingAddress *ExternalAddress   `json:"shippingAddress,omitempty"`
	LineItems       []ExternalLineItem `json:"lineItems"`
}

// IsCancelled reports whether the marketplace cancelled the order
func (o *ExternalOrder) IsCancelled() bool {
	switch o.Status {
	case "Canceled", "Cancelled", "canceled", "cancelled", "CANCELLED":
		return true
	}
	return false
}

// ExternalLineItem represents an order line item from an external marketplace
type ExternalLineItem struct {
	ID       string `json:"id"`
	SKU      string `json:"sku,omitempty"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// ExternalAddress represents a shipping address from an external marketplace
type ExternalAddress struct {
	Name        string `json:"name,omitempty"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	Address3    string `json:"address3,omitempty"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	CountryCode string `json:"countryCode,omitempty"`
	Phone       string `json:"phone,omitempty"`
}
