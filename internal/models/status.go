package models

import "strings"

// DeriveStatus computes the shipment status after applying update over current.
// An order is Versendet only when carrier, tracking number and shipping date are all set.
func DeriveStatus(current *Order, update OrderUpdate) ShipmentStatus {
	var carrier, tracking, date string
	if current != nil {
		carrier = StrValue(current.ShippingCarrier)
		tracking = StrValue(current.TrackingNumber)
		date = StrValue(current.ShippingDate)
	}
	if update.ShippingCarrier != nil {
		carrier = *update.ShippingCarrier
	}
	if update.TrackingNumber != nil {
		tracking = *update.TrackingNumber
	}
	if update.ShippingDate != nil {
		date = *update.ShippingDate
	}

	if strings.TrimSpace(carrier) != "" && strings.TrimSpace(tracking) != "" && strings.TrimSpace(date) != "" {
		return StatusShipped
	}
	return StatusOpen
}
