package mapping

import (
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/tabular"
)

// MapAmazonRow maps one row of an Amazon order report. It returns nil when the
// row carries no order item id.
func MapAmazonRow(row tabular.Row) *models.Order {
	profile, _ := Profile(DialectAmazon)

	itemID := profile.Value(row, FieldOrderItemID)
	if itemID == "" {
		return nil
	}

	name := profile.Value(row, FieldRecipientName)
	if name == "" {
		name = profile.Value(row, FieldBuyerName)
	}
	first, last := SplitName(name)

	secondary := joinNonEmpty(", ", profile.Value(row, FieldAddress2), profile.Value(row, FieldAddress3))

	return &models.Order{
		Platform:      models.PlatformAmazon,
		PurchaseDate:  NormalizeISODate(profile.Value(row, FieldPurchaseDate)),
		OrderID:       profile.Value(row, FieldOrderID),
		OrderItemID:   itemID,
		Email:         profile.Value(row, FieldEmail),
		Phone:         profile.Value(row, FieldPhone),
		FirstName:     first,
		LastName:      last,
		Street:        profile.Value(row, FieldStreet),
		ContactPerson: secondary,
		City:          profile.Value(row, FieldCity),
		PostalCode:    profile.Value(row, FieldPostalCode),
		Country:       profile.Value(row, FieldCountry),
		SKU:           profile.Value(row, FieldSKU),
		ProductName:   profile.Value(row, FieldProductName),
		Quantity:      ParseQuantity(profile.Value(row, FieldQuantity)),
		ItemPrice:     NormalizePrice(profile.Value(row, FieldItemPrice)),
		CustomerType:  CustomerTypeFor(secondary),
		Status:        models.StatusOpen,
		Source:        models.SourceFile,
	}
}
