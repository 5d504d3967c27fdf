package mapping

import (
	"strings"

	"order-ingestion-service/internal/clients"
	"order-ingestion-service/internal/models"
)

// MapRemoteItem maps one line item of an order fetched from the Amazon order API
func MapRemoteItem(order *clients.ExternalOrder, item *clients.ExternalLineItem) *models.Order {
	if order == nil || item == nil || strings.TrimSpace(item.ID) == "" {
		return nil
	}

	addr := order.ShippingAddress
	if addr == nil {
		addr = &clients.ExternalAddress{}
	}

	name := addr.Name
	if strings.TrimSpace(name) == "" {
		name = order.BuyerName
	}
	first, last := SplitName(name)

	secondary := joinNonEmpty(", ", addr.Address2, addr.Address3)

	quantity := item.Quantity
	if quantity < 1 {
		quantity = 1
	}

	return &models.Order{
		Platform:      models.PlatformAmazon,
		PurchaseDate:  NormalizeISODate(order.PurchaseDate),
		OrderID:       strings.TrimSpace(order.ID),
		OrderItemID:   strings.TrimSpace(item.ID),
		Email:         strings.TrimSpace(order.Email),
		Phone:         strings.TrimSpace(addr.Phone),
		FirstName:     first,
		LastName:      last,
		Street:        strings.TrimSpace(addr.Address1),
		ContactPerson: secondary,
		City:          strings.TrimSpace(addr.City),
		PostalCode:    strings.TrimSpace(addr.Zip),
		Country:       strings.TrimSpace(addr.CountryCode),
		SKU:           strings.TrimSpace(item.SKU),
		ProductName:   strings.TrimSpace(item.Title),
		Quantity:      quantity,
		ItemPrice:     NormalizePrice(item.Price),
		CustomerType:  CustomerTypeFor(secondary),
		Status:        models.StatusOpen,
		Source:        models.SourceRemote,
	}
}
