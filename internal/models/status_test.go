package models

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	shipped := &Order{
		ShippingCarrier: StrPtr("DHL"),
		TrackingNumber:  StrPtr("TRK"),
		ShippingDate:    StrPtr("2024-03-02"),
	}

	tests := []struct {
		name    string
		current *Order
		update  OrderUpdate
		want    ShipmentStatus
	}{
		{"nothing set", &Order{}, OrderUpdate{}, StatusOpen},
		{"nil order", nil, OrderUpdate{ShippingCarrier: StrPtr("DHL"), TrackingNumber: StrPtr("T"), ShippingDate: StrPtr("2024-01-01")}, StatusShipped},
		{"update completes", &Order{ShippingCarrier: StrPtr("DHL")}, OrderUpdate{TrackingNumber: StrPtr("T"), ShippingDate: StrPtr("2024-01-01")}, StatusShipped},
		{"shipper alone", &Order{}, OrderUpdate{Shipper: StrPtr("Lager")}, StatusOpen},
		{"whitespace tracking", shipped, OrderUpdate{TrackingNumber: StrPtr("  ")}, StatusOpen},
		{"untouched shipped", shipped, OrderUpdate{}, StatusShipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.current, tt.update))
		})
	}
}

func TestDeriveStatus_Properties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	field := gen.OneConstOf("", " ", "DHL", "TRK-1", "2024-03-02")

	properties.Property("shipped exactly when carrier, tracking and date are non-blank", prop.ForAll(
		func(carrier, tracking, date string, viaUpdate bool) bool {
			var got ShipmentStatus
			if viaUpdate {
				got = DeriveStatus(&Order{}, OrderUpdate{
					ShippingCarrier: StrPtr(carrier),
					TrackingNumber:  StrPtr(tracking),
					ShippingDate:    StrPtr(date),
				})
			} else {
				got = DeriveStatus(&Order{
					ShippingCarrier: StrPtr(carrier),
					TrackingNumber:  StrPtr(tracking),
					ShippingDate:    StrPtr(date),
				}, OrderUpdate{})
			}
			complete := strings.TrimSpace(carrier) != "" && strings.TrimSpace(tracking) != "" && strings.TrimSpace(date) != ""
			return (got == StatusShipped) == complete
		},
		field, field, field, gen.Bool(),
	))

	properties.Property("the shipper never affects the status", prop.ForAll(
		func(shipper string) bool {
			return DeriveStatus(&Order{}, OrderUpdate{Shipper: StrPtr(shipper)}) == StatusOpen
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
