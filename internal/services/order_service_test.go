package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/repository"
)

func TestUpdateShipping_DerivesStatusFromMergedFields(t *testing.T) {
	store := newTestStore(t)
	seedOrders(t, store, testOrder("I-1", "O-1", "Jane Doe", "", "Berlin"))
	svc := NewOrderService(store, store, nil)
	ctx := context.Background()

	order, err := svc.UpdateShipping(ctx, "I-1", models.OrderUpdate{
		ShippingCarrier: models.StrPtr("DHL"),
		ShippingDate:    models.StrPtr("2024-03-02"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, order.Status)

	order, err = svc.UpdateShipping(ctx, "I-1", models.OrderUpdate{TrackingNumber: models.StrPtr("TRK-1")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.Status)
	assert.Equal(t, "DHL", models.StrValue(order.ShippingCarrier))

	order, err = svc.UpdateShipping(ctx, "I-1", models.OrderUpdate{TrackingNumber: models.StrPtr("")})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, order.Status, "clearing the tracking number reopens the order")
}

func TestUpdateShipping_UnknownItem(t *testing.T) {
	store := newTestStore(t)
	svc := NewOrderService(store, store, nil)

	_, err := svc.UpdateShipping(context.Background(), "missing", models.OrderUpdate{Shipper: models.StrPtr("x")})
	assert.True(t, errors.Is(err, models.ErrOrderNotFound))
}

func TestUpdateShipping_EmptyUpdateIsNoop(t *testing.T) {
	store := newTestStore(t)
	seedOrders(t, store, testOrder("I-1", "O-1", "Jane Doe", "", "Berlin"))
	svc := NewOrderService(store, store, nil)

	order, err := svc.UpdateShipping(context.Background(), "I-1", models.OrderUpdate{})
	require.NoError(t, err)
	assert.Equal(t, "I-1", order.OrderItemID)
	assert.Nil(t, order.ShippingCarrier)
}

func TestListOrders_ClampsPaging(t *testing.T) {
	store := newTestStore(t)
	seedOrders(t, store,
		testOrder("I-1", "O-1", "Jane Doe", "", "Berlin"),
		testOrder("I-2", "O-2", "Max Mustermann", "", "Hamburg"),
	)
	svc := NewOrderService(store, store, nil)

	orders, total, err := svc.ListOrders(context.Background(), repository.ListOptions{Limit: -1, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 2)

	got, err := svc.GetOrder(context.Background(), "I-2")
	require.NoError(t, err)
	assert.Equal(t, "Hamburg", got.City)
}
