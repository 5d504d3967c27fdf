package mapping

import (
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/tabular"
)

// EbayItemPrefix marks item ids synthesized from eBay record numbers
const EbayItemPrefix = "EBAY-"

// MapEbayRow maps one row of an eBay sales export. The item id is synthesized from
// the sales record number, then the transaction number, then the order number; rows
// with none of them are unmappable and yield nil.
func MapEbayRow(row tabular.Row) *models.Order {
	profile, _ := Profile(DialectEbay)

	lineRef := profile.Value(row, FieldSalesRecordNumber)
	if lineRef == "" {
		lineRef = profile.Value(row, FieldTransactionID)
	}
	if lineRef == "" {
		lineRef = profile.Value(row, FieldOrderID)
	}
	itemID := EbayItemPrefix + lineRef
	if itemID == EbayItemPrefix {
		return nil
	}

	name := profile.Value(row, FieldRecipientName)
	if name == "" {
		name = profile.Value(row, FieldBuyerName)
	}
	first, last := SplitName(name)

	secondary := profile.Value(row, FieldAddress2)

	return &models.Order{
		Platform:      models.PlatformEbay,
		PurchaseDate:  NormalizeLocalDate(profile.Value(row, FieldPurchaseDate)),
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

// MapRow dispatches to the mapper of dialect d
func MapRow(d Dialect, row tabular.Row) *models.Order {
	switch d {
	case DialectAmazon:
		return MapAmazonRow(row)
	case DialectEbay:
		return MapEbayRow(row)
	default:
		return nil
	}
}
