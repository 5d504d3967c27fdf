package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ingestion-service/internal/models"
)

type publishedMsg struct {
	subject string
	data    []byte
}

// recordingJetStream records Publish calls; every other method panics through the nil embed
type recordingJetStream struct {
	jetstream.JetStream
	msgs []publishedMsg
}

func (r *recordingJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	r.msgs = append(r.msgs, publishedMsg{subject: subject, data: data})
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(r.msgs))}, nil
}

func newRecordingPublisher() (*NATSPublisher, *recordingJetStream) {
	js := &recordingJetStream{}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return &NATSPublisher{js: js, logger: logger.WithField("component", "events.publisher")}, js
}

func TestPublishOrdersImported(t *testing.T) {
	p, js := newRecordingPublisher()

	report := &models.ImportReport{Imported: 2, Duplicates: 1, DuplicateIDs: []string{"I-3"}, Skipped: 1, Dialect: "amazon"}
	require.NoError(t, p.PublishOrdersImported(context.Background(), models.SourceFile, report, []string{"I-1", "I-2"}, 0))

	require.Len(t, js.msgs, 1)
	assert.Equal(t, OrdersImported, js.msgs[0].subject)

	var event OrdersImportedEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &event))
	assert.Equal(t, OrdersImported, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, models.SourceFile, event.Source)
	assert.Equal(t, 2, event.Imported)
	assert.Equal(t, 1, event.Duplicates)
	assert.Equal(t, []string{"I-1", "I-2"}, event.ItemIDs)
}

func TestPublishOrdersShipped(t *testing.T) {
	p, js := newRecordingPublisher()

	report := models.NewShippingReconciliationReport()
	report.Updated = 3
	report.NotFound = append(report.NotFound, "R-9")
	report.Ambiguous = append(report.Ambiguous, "R-7")
	require.NoError(t, p.PublishOrdersShipped(context.Background(), report))

	require.Len(t, js.msgs, 1)
	assert.Equal(t, OrdersShipped, js.msgs[0].subject)

	var event OrdersShippedEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].data, &event))
	assert.Equal(t, 3, event.Updated)
	assert.Equal(t, 1, event.NotFound)
	assert.Equal(t, []string{"R-7"}, event.Ambiguous)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishOrdersImported(context.Background(), models.SourceRemote, &models.ImportReport{}, nil, 0))
	assert.NoError(t, p.PublishOrdersShipped(context.Background(), models.NewShippingReconciliationReport()))
	p.Close()
}
