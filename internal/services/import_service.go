package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"order-ingestion-service/internal/events"
	"order-ingestion-service/internal/mapping"
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/tabular"
)

// ErrUnknownFormat means the header matched no known export dialect and no dialect was given
var ErrUnknownFormat = errors.New("unrecognized export format")

// OrderStore is the persistence the pipeline relies on
type OrderStore interface {
	LookupByItemID(ctx context.Context, itemID string) (*models.Order, error)
	BatchInsert(ctx context.Context, orders []*models.Order) (*models.BatchInsertResult, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	Update(ctx context.Context, itemID string, update models.OrderUpdate, status models.ShipmentStatus) (*models.Order, error)
}

// ImportOptions controls one file import
type ImportOptions struct {
	// Dialect skips detection when set to a known dialect
	Dialect  mapping.Dialect
	Filename string
}

// BatchMeta describes where a batch of candidates came from
type BatchMeta struct {
	Source     models.OrderSource
	Dialect    string
	Unmappable int
	Warnings   int
}

// ImportService turns export files and fetched orders into stored canonical orders
type ImportService struct {
	store     OrderStore
	publisher events.Publisher
	runs      RunRecorder
	fallback  mapping.Dialect
	gate      *ImportGate
	logger    *logrus.Entry
}

// NewImportService creates a new import service. fallback is used for headers that
// match no dialect; DialectUnknown rejects them instead.
func NewImportService(store OrderStore, publisher events.Publisher, runs RunRecorder, fallback mapping.Dialect, logger *logrus.Entry) *ImportService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if runs == nil {
		runs = noopRunRecorder{}
	}
	if logger == nil {
		logger = logrus.WithField("component", "import_service")
	}
	return &ImportService{
		store:     store,
		publisher: publisher,
		runs:      runs,
		fallback:  fallback,
		logger:    logger,
	}
}

// SetGate bounds how many order files are imported at once
func (s *ImportService) SetGate(gate *ImportGate) {
	s.gate = gate
}

// ImportFile parses an export, classifies it, maps every row and stores the result
func (s *ImportService) ImportFile(ctx context.Context, data []byte, opts ImportOptions) (*models.ImportReport, error) {
	release, err := s.gate.Acquire(ctx, models.RunKindOrderFile)
	if err != nil {
		return nil, err
	}
	defer release()

	run := s.runs.Start(ctx, models.RunKindOrderFile, opts.Filename)

	table, err := tabular.Parse(data)
	if err != nil {
		s.runs.Fail(ctx, run, err)
		return nil, err
	}

	dialect, err := s.resolveDialect(table.Header, opts.Dialect)
	if err != nil {
		s.runs.Fail(ctx, run, err)
		return nil, err
	}

	candidates := make([]*models.Order, 0, len(table.Rows))
	unmappable := 0
	for _, row := range table.Rows {
		order := mapping.MapRow(dialect, row)
		if order == nil {
			unmappable++
			continue
		}
		candidates = append(candidates, order)
	}

	report, err := s.ImportOrders(ctx, candidates, BatchMeta{
		Source:     models.SourceFile,
		Dialect:    string(dialect),
		Unmappable: unmappable,
	})
	if err != nil {
		s.runs.Fail(ctx, run, err)
		return nil, err
	}

	s.runs.CompleteImport(ctx, run, report, 0)
	return report, nil
}

func (s *ImportService) resolveDialect(header []string, requested mapping.Dialect) (mapping.Dialect, error) {
	if requested != "" && requested != mapping.DialectUnknown {
		return requested, nil
	}

	dialect := mapping.DetectDialect(header)
	if dialect != mapping.DialectUnknown {
		return dialect, nil
	}

	if s.fallback != "" && s.fallback != mapping.DialectUnknown {
		s.logger.WithFields(logrus.Fields{
			"header":   strings.Join(header, ","),
			"fallback": s.fallback,
		}).Warn("header matched no dialect, using configured fallback")
		return s.fallback, nil
	}

	return mapping.DialectUnknown, fmt.Errorf("%w: header %q matches neither the Amazon nor the eBay export, pass the dialect explicitly", ErrUnknownFormat, strings.Join(header, ","))
}

// ImportOrders deduplicates a batch and hands it to the store. Candidates with an
// empty item id or an item id already seen in this batch are skipped (first one
// wins); item ids the store already holds are reported as duplicates.
func (s *ImportService) ImportOrders(ctx context.Context, candidates []*models.Order, meta BatchMeta) (*models.ImportReport, error) {
	report := &models.ImportReport{
		DuplicateIDs: []string{},
		Skipped:      meta.Unmappable,
		Dialect:      meta.Dialect,
	}

	seen := make(map[string]struct{}, len(candidates))
	batch := make([]*models.Order, 0, len(candidates))
	for _, order := range candidates {
		if order == nil {
			report.Skipped++
			continue
		}
		key := strings.TrimSpace(order.OrderItemID)
		if key == "" {
			report.Skipped++
			continue
		}
		if _, dup := seen[key]; dup {
			report.Skipped++
			continue
		}
		seen[key] = struct{}{}
		order.OrderItemID = key
		if order.Status == "" {
			order.Status = models.StatusOpen
		}
		if order.Source == "" {
			order.Source = meta.Source
		}
		batch = append(batch, order)
	}

	result, err := s.store.BatchInsert(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to store orders: %w", err)
	}

	report.Imported = result.Inserted
	report.Duplicates = len(result.DuplicateIDs)
	report.DuplicateIDs = append(report.DuplicateIDs, result.DuplicateIDs...)

	s.logger.WithFields(logrus.Fields{
		"source":     meta.Source,
		"dialect":    meta.Dialect,
		"imported":   report.Imported,
		"duplicates": report.Duplicates,
		"skipped":    report.Skipped,
	}).Info("orders imported")

	if report.Imported > 0 {
		if err := s.publisher.PublishOrdersImported(ctx, meta.Source, report, insertedIDs(batch, result.DuplicateIDs), meta.Warnings); err != nil {
			s.logger.WithError(err).Warn("failed to publish orders.imported event")
		}
	}

	return report, nil
}

func insertedIDs(batch []*models.Order, duplicates []string) []string {
	dup := make(map[string]struct{}, len(duplicates))
	for _, id := range duplicates {
		dup[id] = struct{}{}
	}
	ids := make([]string, 0, len(batch))
	for _, order := range batch {
		if _, ok := dup[order.OrderItemID]; !ok {
			ids = append(ids, order.OrderItemID)
		}
	}
	return ids
}
