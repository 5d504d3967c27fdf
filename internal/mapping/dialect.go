// Package mapping classifies marketplace exports and maps their rows onto the canonical order.
//
// Dialects are data: each one is a set of header fragments used for detection and a
// table of column aliases per canonical field. Supporting another export means adding
// an entry to dialects, not another branch of string checks.
package mapping

import (
	"strings"

	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/tabular"
)

// Dialect identifies the column and formatting convention of an export file
type Dialect string

const (
	DialectAmazon  Dialect = "amazon"
	DialectEbay    Dialect = "ebay"
	DialectUnknown Dialect = "unknown"
)

// ParseDialect converts user input to a dialect, returning DialectUnknown when unrecognized
func ParseDialect(s string) Dialect {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "amazon":
		return DialectAmazon
	case "ebay":
		return DialectEbay
	default:
		return DialectUnknown
	}
}

// Field is a canonical source column, independent of the dialect naming it
type Field int

const (
	FieldOrderID Field = iota
	FieldOrderItemID
	FieldSalesRecordNumber
	FieldTransactionID
	FieldPurchaseDate
	FieldEmail
	FieldPhone
	FieldBuyerName
	FieldRecipientName
	FieldStreet
	FieldAddress2
	FieldAddress3
	FieldCity
	FieldPostalCode
	FieldCountry
	FieldSKU
	FieldProductName
	FieldQuantity
	FieldItemPrice
)

// DialectProfile describes one export dialect
type DialectProfile struct {
	Dialect  Dialect
	Platform models.Platform
	// Signals are lower-case header fragments; any match classifies the file
	Signals []string
	// Columns lists accepted header names per field, most specific first
	Columns map[Field][]string
}

// dialects is ordered: the first profile with a matching signal wins
var dialects = []DialectProfile{
	{
		Dialect:  DialectAmazon,
		Platform: models.PlatformAmazon,
		Signals:  []string{"order-item-id", "purchase-date", "buyer-email"},
		Columns: map[Field][]string{
			FieldOrderID:       {"order-id", "amazon-order-id"},
			FieldOrderItemID:   {"order-item-id"},
			FieldPurchaseDate:  {"purchase-date", "payments-date"},
			FieldEmail:         {"buyer-email"},
			FieldPhone:         {"ship-phone-number", "buyer-phone-number"},
			FieldBuyerName:     {"buyer-name"},
			FieldRecipientName: {"recipient-name"},
			FieldStreet:        {"ship-address-1"},
			FieldAddress2:      {"ship-address-2"},
			FieldAddress3:      {"ship-address-3"},
			FieldCity:          {"ship-city"},
			FieldPostalCode:    {"ship-postal-code"},
			FieldCountry:       {"ship-country"},
			FieldSKU:           {"sku"},
			FieldProductName:   {"product-name"},
			FieldQuantity:      {"quantity-purchased", "quantity"},
			FieldItemPrice:     {"item-price"},
		},
	},
	{
		Dialect:  DialectEbay,
		Platform: models.PlatformEbay,
		Signals: []string{
			"bestellnummer", "verkaufsprotokollnummer", "käufer", "empfänger", "angebotstitel", "artikelnummer",
			"order number", "sales record number", "buyer", "recipient", "item title", "item number",
		},
		Columns: map[Field][]string{
			FieldOrderID:           {"Bestellnummer", "Order Number"},
			FieldSalesRecordNumber: {"Verkaufsprotokollnummer", "Sales Record Number"},
			FieldTransactionID:     {"Transaktionsnummer", "Transaction ID"},
			FieldPurchaseDate:      {"Verkaufsdatum", "Sale Date"},
			FieldEmail:             {"E-Mail des Käufers", "Käufer-E-Mail", "Buyer Email"},
			FieldPhone:             {"Telefonnummer des Empfängers", "Empfänger-Telefon", "Ship To Phone", "Buyer Phone"},
			FieldBuyerName:         {"Name des Käufers", "Käufername", "Buyer Name"},
			FieldRecipientName:     {"Name des Empfängers", "Empfängername", "Ship To Name", "Recipient Name"},
			FieldStreet:            {"Adresse 1 des Empfängers", "Empfänger-Adresse 1", "Ship To Address 1"},
			FieldAddress2:          {"Adresse 2 des Empfängers", "Empfänger-Adresse 2", "Ship To Address 2"},
			FieldCity:              {"Ort des Empfängers", "Empfänger-Ort", "Ship To City"},
			FieldPostalCode:        {"Postleitzahl des Empfängers", "Empfänger-PLZ", "Ship To Zip"},
			FieldCountry:           {"Land des Empfängers", "Empfänger-Land", "Ship To Country"},
			FieldSKU:               {"Bestandseinheit", "Custom Label", "Custom label (SKU)"},
			FieldProductName:       {"Angebotstitel", "Artikelbezeichnung", "Item Title"},
			FieldQuantity:          {"Anzahl", "Quantity"},
			FieldItemPrice:         {"Verkauft für", "Sold For"},
		},
	},
}

// Profile returns the dialect table entry for d
func Profile(d Dialect) (*DialectProfile, bool) {
	for i := range dialects {
		if dialects[i].Dialect == d {
			return &dialects[i], true
		}
	}
	return nil, false
}

// DetectDialect classifies a header by case-insensitive fragment match.
// Dialects are checked in table order, so Amazon wins when both match.
// A header with no recognizable fragment is DialectUnknown.
func DetectDialect(header []string) Dialect {
	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, profile := range dialects {
		for _, signal := range profile.Signals {
			for _, h := range lowered {
				if strings.Contains(h, signal) {
					return profile.Dialect
				}
			}
		}
	}
	return DialectUnknown
}

// Value returns the first non-empty cell among the aliases of field
func (s *DialectProfile) Value(row tabular.Row, field Field) string {
	return lookup(row, s.Columns[field])
}

// lookup tries exact header names first and then a case-insensitive match
func lookup(row tabular.Row, aliases []string) string {
	for _, alias := range aliases {
		if v, ok := row[alias]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	for _, alias := range aliases {
		for k, v := range row {
			if strings.EqualFold(strings.TrimSpace(k), alias) && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}
