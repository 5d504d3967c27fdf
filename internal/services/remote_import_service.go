package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"order-ingestion-service/internal/clients"
	"order-ingestion-service/internal/models"
)

// DialectRemote is the dialect recorded for orders fetched from the marketplace API
const DialectRemote = "remote"

// MaxFetchWindow bounds the creation-time window of one remote fetch
const MaxFetchWindow = 90 * 24 * time.Hour

// RemoteImportResult is the import report of one remote fetch plus its non-fatal errors
type RemoteImportResult struct {
	Report *models.ImportReport `json:"report"`
	Errors []string             `json:"errors"`
}

// RemoteImportService pulls orders from a remote marketplace into the order store
type RemoteImportService struct {
	source   clients.OrderSource
	importer *ImportService
	runs     RunRecorder
	gate     *ImportGate
	logger   *logrus.Entry
}

// NewRemoteImportService creates a new remote import service. A nil source is
// allowed; every fetch then fails with a ConfigurationError.
func NewRemoteImportService(source clients.OrderSource, importer *ImportService, runs RunRecorder, logger *logrus.Entry) *RemoteImportService {
	if runs == nil {
		runs = noopRunRecorder{}
	}
	if logger == nil {
		logger = logrus.WithField("component", "remote_import_service")
	}
	return &RemoteImportService{
		source:   source,
		importer: importer,
		runs:     runs,
		logger:   logger,
	}
}

// SetGate makes overlapping fetches fail fast with ErrImportBusy
func (s *RemoteImportService) SetGate(gate *ImportGate) {
	s.gate = gate
}

// FetchRemoteOrders imports every order created inside [start, end).
// Item fetch failures and a degraded address scope come back in Errors;
// configuration, authorization and rate limit failures abort the fetch.
func (s *RemoteImportService) FetchRemoteOrders(ctx context.Context, start, end time.Time) (*RemoteImportResult, error) {
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}
	if s.source == nil {
		return nil, &clients.ConfigurationError{Missing: []string{"remote order source"}}
	}

	release, ok := s.gate.TryAcquire(models.RunKindRemoteFetch)
	if !ok {
		return nil, ErrImportBusy
	}
	defer release()

	label := fmt.Sprintf("%s/%s", start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	run := s.runs.Start(ctx, models.RunKindRemoteFetch, label)

	fetched, err := s.source.FetchOrders(ctx, start, end)
	if err != nil {
		s.logger.WithError(err).WithField("window", label).Error("remote fetch failed")
		s.runs.Fail(ctx, run, err)
		return nil, err
	}

	warnings := fetched.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	report, err := s.importer.ImportOrders(ctx, fetched.Orders, BatchMeta{
		Source:   models.SourceRemote,
		Dialect:  DialectRemote,
		Warnings: len(warnings),
	})
	if err != nil {
		s.runs.Fail(ctx, run, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"window":      label,
		"orders_seen": fetched.OrdersSeen,
		"cancelled":   fetched.Cancelled,
		"items":       len(fetched.Orders),
		"warnings":    len(warnings),
	}).Info("remote fetch completed")

	s.runs.CompleteImport(ctx, run, report, len(warnings))
	return &RemoteImportResult{Report: report, Errors: warnings}, nil
}

// WindowError is returned for an empty, inverted or oversized fetch window
type WindowError struct {
	Reason string
}

func (e *WindowError) Error() string {
	return "invalid fetch window: " + e.Reason
}

func validateWindow(start, end time.Time) error {
	switch {
	case start.IsZero() || end.IsZero():
		return &WindowError{Reason: "start and end are required"}
	case !end.After(start):
		return &WindowError{Reason: "end must be after start"}
	case end.Sub(start) > MaxFetchWindow:
		return &WindowError{Reason: fmt.Sprintf("window exceeds %d days", int(MaxFetchWindow.Hours()/24))}
	}
	return nil
}
