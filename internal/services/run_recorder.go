package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"order-ingestion-service/internal/models"
)

// RunRecorder keeps the audit trail of import runs. Recording is best effort and
// never fails the operation being recorded.
type RunRecorder interface {
	Start(ctx context.Context, kind models.RunKind, label string) *models.ImportRun
	CompleteImport(ctx context.Context, run *models.ImportRun, report *models.ImportReport, warnings int)
	CompleteReconciliation(ctx context.Context, run *models.ImportRun, report *models.ShippingReconciliationReport)
	Fail(ctx context.Context, run *models.ImportRun, err error)
}

// ImportRunStore persists import runs
type ImportRunStore interface {
	Create(ctx context.Context, run *models.ImportRun) error
	Save(ctx context.Context, run *models.ImportRun) error
}

// RunTracker records import runs in an ImportRunStore
type RunTracker struct {
	store  ImportRunStore
	now    func() time.Time
	logger *logrus.Entry
}

// NewRunTracker creates a new run tracker
func NewRunTracker(store ImportRunStore, logger *logrus.Entry) *RunTracker {
	if logger == nil {
		logger = logrus.WithField("component", "run_tracker")
	}
	return &RunTracker{store: store, now: time.Now, logger: logger}
}

// Start records a running import
func (t *RunTracker) Start(ctx context.Context, kind models.RunKind, label string) *models.ImportRun {
	run := &models.ImportRun{
		Kind:      kind,
		Status:    models.RunStatusRunning,
		Label:     label,
		StartedAt: t.now().UTC(),
	}
	if err := t.store.Create(ctx, run); err != nil {
		t.logger.WithError(err).WithField("kind", kind).Warn("failed to record import run")
		return nil
	}
	return run
}

// CompleteImport stores the counters of a finished order import
func (t *RunTracker) CompleteImport(ctx context.Context, run *models.ImportRun, report *models.ImportReport, warnings int) {
	if run == nil || report == nil {
		return
	}
	run.Dialect = report.Dialect
	run.Imported = report.Imported
	run.Duplicates = report.Duplicates
	run.Skipped = report.Skipped
	run.Warnings = warnings
	t.finish(ctx, run, models.RunStatusCompleted)
}

// CompleteReconciliation stores the counters of a finished manifest reconciliation
func (t *RunTracker) CompleteReconciliation(ctx context.Context, run *models.ImportRun, report *models.ShippingReconciliationReport) {
	if run == nil || report == nil {
		return
	}
	run.Updated = report.Updated
	run.NotFound = len(report.NotFound)
	run.FuzzyMatched = len(report.FuzzyMatched)
	run.Ambiguous = len(report.Ambiguous)
	t.finish(ctx, run, models.RunStatusCompleted)
}

// Fail marks the run as failed
func (t *RunTracker) Fail(ctx context.Context, run *models.ImportRun, err error) {
	if run == nil {
		return
	}
	if err != nil {
		run.ErrorMessage = err.Error()
	}
	t.finish(ctx, run, models.RunStatusFailed)
}

func (t *RunTracker) finish(ctx context.Context, run *models.ImportRun, status models.RunStatus) {
	now := t.now().UTC()
	run.Status = status
	run.CompletedAt = &now
	// the operation may have been cancelled; the audit record is still written
	if err := t.store.Save(context.WithoutCancel(ctx), run); err != nil {
		t.logger.WithError(err).WithField("run_id", run.ID).Warn("failed to update import run")
	}
}

type noopRunRecorder struct{}

func (noopRunRecorder) Start(context.Context, models.RunKind, string) *models.ImportRun { return nil }
func (noopRunRecorder) CompleteImport(context.Context, *models.ImportRun, *models.ImportReport, int) {
}
func (noopRunRecorder) CompleteReconciliation(context.Context, *models.ImportRun, *models.ShippingReconciliationReport) {
}
func (noopRunRecorder) Fail(context.Context, *models.ImportRun, error) {}
