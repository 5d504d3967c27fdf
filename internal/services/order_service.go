package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/repository"
)

// OrderQuerier lists stored orders for operators
type OrderQuerier interface {
	List(ctx context.Context, opts repository.ListOptions) ([]models.Order, int64, error)
	LookupByItemID(ctx context.Context, itemID string) (*models.Order, error)
}

// OrderService serves manual lookups and shipping corrections
type OrderService struct {
	store   OrderStore
	queries OrderQuerier
	logger  *logrus.Entry
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, queries OrderQuerier, logger *logrus.Entry) *OrderService {
	if logger == nil {
		logger = logrus.WithField("component", "order_service")
	}
	return &OrderService{store: store, queries: queries, logger: logger}
}

// ListOrders returns a page of orders and the total count
func (s *OrderService) ListOrders(ctx context.Context, opts repository.ListOptions) ([]models.Order, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 50
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return s.queries.List(ctx, opts)
}

// GetOrder returns the order with the given item id
func (s *OrderService) GetOrder(ctx context.Context, itemID string) (*models.Order, error) {
	return s.queries.LookupByItemID(ctx, itemID)
}

// UpdateShipping applies a manual shipping correction. The status is always
// re-derived from the merged shipping fields.
func (s *OrderService) UpdateShipping(ctx context.Context, itemID string, update models.OrderUpdate) (*models.Order, error) {
	current, err := s.store.LookupByItemID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return current, nil
	}

	status := models.DeriveStatus(current, update)
	saved, err := s.store.Update(ctx, itemID, update, status)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_item_id": itemID,
		"status":        saved.Status,
	}).Info("shipping updated")
	return saved, nil
}
