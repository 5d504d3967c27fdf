package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"order-ingestion-service/internal/events"
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/privacy"
	"order-ingestion-service/internal/tabular"
)

// DefaultShipperTag is stamped on reconciled orders when no shipper tag is configured
const DefaultShipperTag = "Lager"

// ShippingDateLayout is the format of the reconciliation date stamped on shipped orders
const ShippingDateLayout = "2006-01-02"

type manifestField int

const (
	manifestReference manifestField = iota
	manifestCarrier
	manifestTracking
	manifestName
	manifestPhone
	manifestCity
)

// manifestColumns lists accepted header names per manifest field, English and German
var manifestColumns = map[manifestField][]string{
	manifestReference: {"reference", "referenz", "referenznummer", "order-id", "order id", "orderid", "order number", "bestellnummer", "auftragsnummer", "kundenreferenz"},
	manifestCarrier:   {"carrier", "shipping carrier", "versanddienstleister", "paketdienst", "spediteur", "dienstleister"},
	manifestTracking:  {"tracking", "tracking number", "tracking-number", "trackingnummer", "sendungsnummer", "paketnummer", "tracking id"},
	manifestName:      {"name", "recipient", "recipient name", "empfänger", "empfaenger", "empfängername", "name des empfängers"},
	manifestPhone:     {"phone", "phone number", "telefon", "telefonnummer", "tel"},
	manifestCity:      {"city", "ort", "stadt", "empfänger-ort"},
}

// ParseManifestRow resolves the manifest columns of one parsed row
func ParseManifestRow(row tabular.Row) ManifestRow {
	return ManifestRow{
		Reference: manifestValue(row, manifestReference),
		Carrier:   manifestValue(row, manifestCarrier),
		Tracking:  manifestValue(row, manifestTracking),
		Name:      manifestValue(row, manifestName),
		Phone:     manifestValue(row, manifestPhone),
		City:      manifestValue(row, manifestCity),
	}
}

func manifestValue(row tabular.Row, field manifestField) string {
	for _, alias := range manifestColumns[field] {
		for k, v := range row {
			if strings.EqualFold(strings.TrimSpace(k), alias) {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// ReconciliationService applies carrier shipping manifests to stored orders
type ReconciliationService struct {
	store      OrderStore
	matcher    *Matcher
	publisher  events.Publisher
	runs       RunRecorder
	shipperTag string
	gate       *ImportGate
	now        func() time.Time
	logger     *logrus.Entry
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(store OrderStore, matcher *Matcher, publisher events.Publisher, runs RunRecorder, shipperTag string, logger *logrus.Entry) *ReconciliationService {
	if matcher == nil {
		matcher = NewMatcher(DefaultMatchPolicy)
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if runs == nil {
		runs = noopRunRecorder{}
	}
	if logger == nil {
		logger = logrus.WithField("component", "reconciliation_service")
	}
	if strings.TrimSpace(shipperTag) == "" {
		shipperTag = DefaultShipperTag
	}
	return &ReconciliationService{
		store:      store,
		matcher:    matcher,
		publisher:  publisher,
		runs:       runs,
		shipperTag: shipperTag,
		now:        time.Now,
		logger:     logger,
	}
}

// SetClock replaces the clock that produces the reconciliation date
func (s *ReconciliationService) SetClock(now func() time.Time) {
	s.now = now
}

// SetGate serializes manifest reconciliation runs
func (s *ReconciliationService) SetGate(gate *ImportGate) {
	s.gate = gate
}

// ImportShippingManifest parses a manifest and stamps carrier, tracking number,
// reconciliation date and shipper onto every order it resolves.
// A reference equal to a stored order id resolves exactly; otherwise the fuzzy
// matcher decides, and ambiguous references are reported and left untouched.
func (s *ReconciliationService) ImportShippingManifest(ctx context.Context, data []byte, filename string) (*models.ShippingReconciliationReport, error) {
	release, err := s.gate.Acquire(ctx, models.RunKindShippingManifest)
	if err != nil {
		return nil, err
	}
	defer release()

	run := s.runs.Start(ctx, models.RunKindShippingManifest, filename)

	report, err := s.reconcile(ctx, data)
	if err != nil {
		s.runs.Fail(ctx, run, err)
		return nil, err
	}

	s.runs.CompleteReconciliation(ctx, run, report)

	if err := s.publisher.PublishOrdersShipped(ctx, report); err != nil {
		s.logger.WithError(err).Warn("failed to publish orders.shipped event")
	}
	return report, nil
}

func (s *ReconciliationService) reconcile(ctx context.Context, data []byte) (*models.ShippingReconciliationReport, error) {
	table, err := tabular.Parse(data)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	groups, byOrderID := GroupByOrderID(stored)

	report := models.NewShippingReconciliationReport()
	updated := make(map[string]struct{})
	shippingDate := s.now().Format(ShippingDateLayout)

	for _, raw := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row := ParseManifestRow(raw)
		if row.Reference == "" {
			continue
		}

		var targets []*models.Order
		if group, ok := byOrderID[row.Reference]; ok && group.OrderID == row.Reference {
			targets = group.Orders
		} else {
			result := s.matcher.Classify(row, groups)
			switch result.Tier {
			case TierFuzzy:
				targets = result.Candidate.Orders
				first := result.Candidate.Orders[0]
				report.FuzzyMatched = append(report.FuzzyMatched,
					fmt.Sprintf("%s → %s (%s)", row.Reference, result.Candidate.OrderID, first.FullName()))
			case TierAmbiguous:
				names := make([]string, 0, len(result.Candidates))
				for _, candidate := range result.Candidates {
					names = append(names, privacy.MaskName(candidate.Orders[0].FullName()))
				}
				s.logger.WithFields(logrus.Fields{
					"reference":  row.Reference,
					"recipient":  privacy.MaskName(row.Name),
					"phone":      privacy.MaskPhone(row.Phone),
					"candidates": names,
				}).Info("ambiguous manifest reference skipped")
				report.Ambiguous = append(report.Ambiguous, row.Reference)
				continue
			default:
				report.NotFound = append(report.NotFound, row.Reference)
				continue
			}
		}

		update := models.OrderUpdate{
			ShippingDate: models.StrPtr(shippingDate),
			Shipper:      models.StrPtr(s.shipperTag),
		}
		if row.Carrier != "" {
			update.ShippingCarrier = models.StrPtr(row.Carrier)
		}
		if row.Tracking != "" {
			update.TrackingNumber = models.StrPtr(row.Tracking)
		}

		for _, target := range targets {
			status := models.DeriveStatus(target, update)
			saved, err := s.store.Update(ctx, target.OrderItemID, update, status)
			if errors.Is(err, models.ErrOrderNotFound) {
				s.logger.WithField("order_item_id", target.OrderItemID).Warn("order vanished during reconciliation")
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to update order %s: %w", target.OrderItemID, err)
			}
			// later rows for the same order see the new shipping state
			*target = *saved
			updated[target.OrderItemID] = struct{}{}
		}
	}

	report.Updated = len(updated)

	s.logger.WithFields(logrus.Fields{
		"updated":       report.Updated,
		"not_found":     len(report.NotFound),
		"fuzzy_matched": len(report.FuzzyMatched),
		"ambiguous":     len(report.Ambiguous),
	}).Info("shipping manifest reconciled")

	return report, nil
}
