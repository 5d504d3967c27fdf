// Package events publishes import and reconciliation outcomes to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"

	"order-ingestion-service/internal/models"
)

// Order event types
const (
	OrdersImported = "orders.imported"
	OrdersShipped  = "orders.shipped"

	StreamName = "ORDER_EVENTS"
)

// BaseEvent carries the fields shared by every event
type BaseEvent struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// OrdersImportedEvent is published after a file import or remote fetch
type OrdersImportedEvent struct {
	BaseEvent
	Source     models.OrderSource `json:"source"`
	Dialect    string             `json:"dialect,omitempty"`
	Imported   int                `json:"imported"`
	Duplicates int                `json:"duplicates"`
	Skipped    int                `json:"skipped"`
	Warnings   int                `json:"warnings,omitempty"`
	ItemIDs    []string           `json:"itemIds,omitempty"`
}

// OrdersShippedEvent is published after a shipping manifest import
type OrdersShippedEvent struct {
	BaseEvent
	Updated      int      `json:"updated"`
	NotFound     int      `json:"notFound"`
	FuzzyMatched int      `json:"fuzzyMatched"`
	Ambiguous    []string `json:"ambiguous,omitempty"`
}

// Publisher is what the services need from an event sink
type Publisher interface {
	PublishOrdersImported(ctx context.Context, source models.OrderSource, report *models.ImportReport, itemIDs []string, warnings int) error
	PublishOrdersShipped(ctx context.Context, report *models.ShippingReconciliationReport) error
	Close()
}

// NATSPublisher publishes order events to JetStream
type NATSPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Entry
}

// NewNATSPublisher connects to NATS and makes sure the order event stream exists
func NewNATSPublisher(natsURL string, logger *logrus.Logger) (*NATSPublisher, error) {
	log := logger.WithField("component", "events.publisher")

	nc, err := nats.Connect(natsURL,
		nats.Name("order-ingestion-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("reconnected to NATS")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("disconnected from NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &NATSPublisher{nc: nc, js: js, logger: log}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.EnsureStream(ctx); err != nil {
		log.WithError(err).Warn("failed to ensure ORDER_EVENTS stream")
	}

	return p, nil
}

// EnsureStream creates or updates the order event stream
func (p *NATSPublisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{"orders.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	return err
}

func newBase(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

// PublishOrdersImported publishes an orders.imported event
func (p *NATSPublisher) PublishOrdersImported(ctx context.Context, source models.OrderSource, report *models.ImportReport, itemIDs []string, warnings int) error {
	event := &OrdersImportedEvent{
		BaseEvent:  newBase(OrdersImported),
		Source:     source,
		Dialect:    report.Dialect,
		Imported:   report.Imported,
		Duplicates: report.Duplicates,
		Skipped:    report.Skipped,
		Warnings:   warnings,
		ItemIDs:    itemIDs,
	}
	return p.publish(ctx, OrdersImported, event.EventID, event)
}

// PublishOrdersShipped publishes an orders.shipped event
func (p *NATSPublisher) PublishOrdersShipped(ctx context.Context, report *models.ShippingReconciliationReport) error {
	event := &OrdersShippedEvent{
		BaseEvent:    newBase(OrdersShipped),
		Updated:      report.Updated,
		NotFound:     len(report.NotFound),
		FuzzyMatched: len(report.FuzzyMatched),
		Ambiguous:    report.Ambiguous,
	}
	return p.publish(ctx, OrdersShipped, event.EventID, event)
}

func (p *NATSPublisher) publish(ctx context.Context, subject, msgID string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", subject, err)
	}

	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID)); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", subject, err)
	}

	p.logger.WithFields(logrus.Fields{"subject": subject, "event_id": msgID}).Debug("event published")
	return nil
}

// IsConnected returns true if connected to NATS
func (p *NATSPublisher) IsConnected() bool {
	return p.nc != nil && p.nc.IsConnected()
}

// Close closes the publisher connection
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// NoopPublisher drops every event; used when NATS is not configured
type NoopPublisher struct{}

func (NoopPublisher) PublishOrdersImported(context.Context, models.OrderSource, *models.ImportReport, []string, int) error {
	return nil
}

func (NoopPublisher) PublishOrdersShipped(context.Context, *models.ShippingReconciliationReport) error {
	return nil
}

func (NoopPublisher) Close() {}
