package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ingestion-service/internal/clients"
	"order-ingestion-service/internal/mapping"
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/repository"
)

type fakeSource struct {
	result *clients.FetchResult
	err    error
	calls  int
}

func (f *fakeSource) FetchOrders(_ context.Context, _, _ time.Time) (*clients.FetchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func remoteOrder(itemID, orderID string) *models.Order {
	return mapping.MapRemoteItem(
		&clients.ExternalOrder{ID: orderID, PurchaseDate: "2024-03-01T10:00:00Z", BuyerName: "Jane Doe"},
		&clients.ExternalLineItem{ID: itemID, SKU: "SKU-1", Title: "Widget", Quantity: 1},
	)
}

var (
	windowStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
)

func TestFetchRemoteOrders_ImportsAndSurfacesWarnings(t *testing.T) {
	store := newTestStore(t)
	source := &fakeSource{result: &clients.FetchResult{
		Orders:     []*models.Order{remoteOrder("R-1", "302-1"), remoteOrder("R-2", "302-1")},
		OrdersSeen: 2,
		Cancelled:  1,
		Warnings:   []string{"302-2: failed to fetch order items: boom"},
	}}
	svc := NewRemoteImportService(source, NewImportService(store, nil, nil, mapping.DialectUnknown, nil), nil, nil)

	result, err := svc.FetchRemoteOrders(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Report.Imported)
	assert.Equal(t, DialectRemote, result.Report.Dialect)
	assert.Equal(t, []string{"302-2: failed to fetch order items: boom"}, result.Errors)

	order, err := store.LookupByItemID(context.Background(), "R-1")
	require.NoError(t, err)
	assert.Equal(t, models.SourceRemote, order.Source)

	again, err := svc.FetchRemoteOrders(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Report.Imported)
	assert.Equal(t, 2, again.Report.Duplicates)
}

func TestFetchRemoteOrders_TerminalErrorsPropagate(t *testing.T) {
	rateErr := &clients.RateLimitError{Operation: "getOrders", Attempts: 5}
	source := &fakeSource{err: rateErr}
	svc := NewRemoteImportService(source, NewImportService(newTestStore(t), nil, nil, mapping.DialectUnknown, nil), nil, nil)

	_, err := svc.FetchRemoteOrders(context.Background(), windowStart, windowEnd)
	var rl *clients.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 5, rl.Attempts)
}

func TestFetchRemoteOrders_WithoutSourceIsConfigurationError(t *testing.T) {
	svc := NewRemoteImportService(nil, NewImportService(newTestStore(t), nil, nil, mapping.DialectUnknown, nil), nil, nil)

	_, err := svc.FetchRemoteOrders(context.Background(), windowStart, windowEnd)
	var cfgErr *clients.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestFetchRemoteOrders_RejectsBadWindows(t *testing.T) {
	source := &fakeSource{result: &clients.FetchResult{}}
	svc := NewRemoteImportService(source, NewImportService(newTestStore(t), nil, nil, mapping.DialectUnknown, nil), nil, nil)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"missing start", time.Time{}, windowEnd},
		{"inverted", windowEnd, windowStart},
		{"empty", windowStart, windowStart},
		{"too long", windowStart, windowStart.Add(MaxFetchWindow + time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.FetchRemoteOrders(context.Background(), tt.start, tt.end)
			var windowErr *WindowError
			assert.True(t, errors.As(err, &windowErr))
		})
	}
	assert.Zero(t, source.calls, "no remote call for an invalid window")
}

func TestFetchRemoteOrders_RecordsRun(t *testing.T) {
	db := newTestDB(t)
	store := repository.NewOrderRepository(db)
	runRepo := repository.NewImportRunRepository(db)
	tracker := NewRunTracker(runRepo, nil)

	source := &fakeSource{result: &clients.FetchResult{
		Orders:   []*models.Order{remoteOrder("R-1", "302-1")},
		Warnings: []string{"restricted data token unavailable"},
	}}
	svc := NewRemoteImportService(source, NewImportService(store, nil, nil, mapping.DialectUnknown, nil), tracker, nil)

	_, err := svc.FetchRemoteOrders(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)

	runs, total, err := runRepo.List(context.Background(), string(models.RunKindRemoteFetch), 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Imported)
	assert.Equal(t, 1, runs[0].Warnings)
	assert.NotNil(t, runs[0].CompletedAt)
}

func TestFetchRemoteOrders_OverlappingFetchIsBusy(t *testing.T) {
	source := &fakeSource{result: &clients.FetchResult{}}
	svc := NewRemoteImportService(source, NewImportService(newTestStore(t), nil, nil, mapping.DialectUnknown, nil), nil, nil)
	gate := NewImportGate(DefaultGateConfig())
	svc.SetGate(gate)

	release, ok := gate.TryAcquire(models.RunKindRemoteFetch)
	require.True(t, ok)

	_, err := svc.FetchRemoteOrders(context.Background(), windowStart, windowEnd)
	assert.ErrorIs(t, err, ErrImportBusy)
	assert.Equal(t, 0, source.calls)

	release()
	_, err = svc.FetchRemoteOrders(context.Background(), windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
	assert.Equal(t, 0, gate.Active(models.RunKindRemoteFetch))
}
