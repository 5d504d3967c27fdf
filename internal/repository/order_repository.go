package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"order-ingestion-service/internal/models"
)

// ListOptions filters the order listing
type ListOptions struct {
	Platform string
	Status   string
	OrderID  string
	Search   string
	Limit    int
	Offset   int
}

// OrderRepository handles database operations for canonical orders
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// LookupByItemID retrieves an order by its unique item id
func (r *OrderRepository) LookupByItemID(ctx context.Context, itemID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_item_id = ?", itemID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// BatchInsert inserts every order whose item id is not stored yet. Existing item
// ids are skipped by the unique index and reported as duplicates; the batch
// itself is committed atomically.
func (r *OrderRepository) BatchInsert(ctx context.Context, orders []*models.Order) (*models.BatchInsertResult, error) {
	result := &models.BatchInsertResult{DuplicateIDs: []string{}}
	if len(orders) == 0 {
		return result, nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			if order.ID == uuid.Nil {
				order.ID = uuid.New()
			}

			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_item_id"}},
				DoNothing: true,
			}).Create(order)
			if res.Error != nil {
				return res.Error
			}

			if res.RowsAffected == 0 {
				result.DuplicateIDs = append(result.DuplicateIDs, order.OrderItemID)
				continue
			}
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListAll returns every stored order, oldest first
func (r *OrderRepository) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).Order("created_at ASC, order_item_id ASC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// List retrieves orders with filters and pagination
func (r *OrderRepository) List(ctx context.Context, opts ListOptions) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Order{})

	if opts.Platform != "" {
		query = query.Where("platform = ?", opts.Platform)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}
	if opts.OrderID != "" {
		query = query.Where("order_id = ?", opts.OrderID)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(order_id) LIKE ? OR LOWER(order_item_id) LIKE ?",
			like, like, like, like, like,
		)
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit).Offset(opts.Offset)
	}

	if err := query.Order("created_at DESC, order_item_id ASC").Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// Update applies the non-nil shipping fields and the precomputed status to one order
func (r *OrderRepository) Update(ctx context.Context, itemID string, update models.OrderUpdate, status models.ShipmentStatus) (*models.Order, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if update.ShippingCarrier != nil {
		updates["shipping_carrier"] = *update.ShippingCarrier
	}
	if update.TrackingNumber != nil {
		updates["tracking_number"] = *update.TrackingNumber
	}
	if update.ShippingDate != nil {
		updates["shipping_date"] = *update.ShippingDate
	}
	if update.Shipper != nil {
		updates["shipper"] = *update.Shipper
	}

	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).Where("order_item_id = ?", itemID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrOrderNotFound
		}
		return tx.Where("order_item_id = ?", itemID).First(&order).Error
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Count returns the number of stored orders
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&total).Error
	return total, err
}
