package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.ImportRun{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestStore(t *testing.T) *repository.OrderRepository {
	return repository.NewOrderRepository(newTestDB(t))
}

func seedOrders(t *testing.T, store *repository.OrderRepository, orders ...*models.Order) {
	t.Helper()
	result, err := store.BatchInsert(context.Background(), orders)
	require.NoError(t, err)
	require.Equal(t, len(orders), result.Inserted)
}

func testOrder(itemID, orderID, name, phone, city string) *models.Order {
	o := &models.Order{
		Platform:     models.PlatformAmazon,
		OrderID:      orderID,
		OrderItemID:  itemID,
		Phone:        phone,
		City:         city,
		Quantity:     1,
		CustomerType: models.CustomerPrivate,
		Status:       models.StatusOpen,
		Source:       models.SourceFile,
	}
	o.FirstName, o.LastName = splitTestName(name)
	return o
}

func splitTestName(name string) (string, string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ' ' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

type recordingPublisher struct {
	mu       sync.Mutex
	imported []*models.ImportReport
	itemIDs  [][]string
	shipped  []*models.ShippingReconciliationReport
	err      error
}

func (p *recordingPublisher) PublishOrdersImported(_ context.Context, _ models.OrderSource, report *models.ImportReport, itemIDs []string, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imported = append(p.imported, report)
	p.itemIDs = append(p.itemIDs, itemIDs)
	return p.err
}

func (p *recordingPublisher) PublishOrdersShipped(_ context.Context, report *models.ShippingReconciliationReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shipped = append(p.shipped, report)
	return p.err
}

func (p *recordingPublisher) Close() {}
