package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ingestion-service/internal/mapping"
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/repository"
)

func TestRunTracker_RecordsImportOutcome(t *testing.T) {
	db := newTestDB(t)
	runRepo := repository.NewImportRunRepository(db)
	tracker := NewRunTracker(runRepo, nil)
	svc := NewImportService(repository.NewOrderRepository(db), nil, tracker, mapping.DialectUnknown, nil)
	ctx := context.Background()

	_, err := svc.ImportFile(ctx, []byte(amazonExport), ImportOptions{Filename: "amazon.csv"})
	require.NoError(t, err)
	_, err = svc.ImportFile(ctx, []byte("foo,bar,baz,qux\n1,2,3,4\n"), ImportOptions{Filename: "junk.csv"})
	require.Error(t, err)

	runs, total, err := runRepo.List(ctx, string(models.RunKindOrderFile), 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	byLabel := map[string]models.ImportRun{}
	for _, r := range runs {
		byLabel[r.Label] = r
	}

	ok := byLabel["amazon.csv"]
	assert.Equal(t, models.RunStatusCompleted, ok.Status)
	assert.Equal(t, "amazon", ok.Dialect)
	assert.Equal(t, 1, ok.Imported)

	failed := byLabel["junk.csv"]
	assert.Equal(t, models.RunStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "unrecognized export format")

	got, err := runRepo.GetByID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, ok.ID, got.ID)
}

type failingRunStore struct{}

func (failingRunStore) Create(context.Context, *models.ImportRun) error {
	return errors.New("db unavailable")
}

func (failingRunStore) Save(context.Context, *models.ImportRun) error {
	return errors.New("db unavailable")
}

func TestRunTracker_StoreFailureDoesNotFailImport(t *testing.T) {
	tracker := NewRunTracker(failingRunStore{}, nil)
	assert.Nil(t, tracker.Start(context.Background(), models.RunKindOrderFile, "x"))

	svc := NewImportService(newTestStore(t), nil, tracker, mapping.DialectUnknown, nil)
	report, err := svc.ImportFile(context.Background(), []byte(amazonExport), ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
}

func TestRunTracker_CompletesAfterCancellation(t *testing.T) {
	db := newTestDB(t)
	runRepo := repository.NewImportRunRepository(db)
	tracker := NewRunTracker(runRepo, nil)

	run := tracker.Start(context.Background(), models.RunKindShippingManifest, "manifest.csv")
	require.NotNil(t, run)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracker.Fail(ctx, run, context.Canceled)

	got, err := runRepo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, got.Status)
	assert.Equal(t, "context canceled", got.ErrorMessage)
}

func TestImportRunRepository_UnknownID(t *testing.T) {
	runRepo := repository.NewImportRunRepository(newTestDB(t))
	_, err := runRepo.GetByID(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, repository.ErrRunNotFound))
}
