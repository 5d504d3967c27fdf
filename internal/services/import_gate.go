package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"order-ingestion-service/internal/models"
)

// ErrImportBusy is returned when no slot frees up for an import run
var ErrImportBusy = errors.New("another import of this kind is already running")

// GateConfig defines how many runs of each kind may execute at once
type GateConfig struct {
	Limits       map[models.RunKind]int64
	QueueTimeout time.Duration // max time a blocking acquire waits for a slot
}

// DefaultGateConfig allows parallel order files but one manifest and one
// remote fetch at a time
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Limits: map[models.RunKind]int64{
			models.RunKindOrderFile:        4,
			models.RunKindShippingManifest: 1,
			models.RunKindRemoteFetch:      1,
		},
		QueueTimeout: 30 * time.Second,
	}
}

// ImportGate bounds concurrent import runs per kind. A nil gate admits everything.
type ImportGate struct {
	mu      sync.Mutex
	sems    map[models.RunKind]*semaphore.Weighted
	active  map[models.RunKind]int
	timeout time.Duration
}

// NewImportGate creates a gate. Kinds without a positive limit are not bounded.
func NewImportGate(cfg GateConfig) *ImportGate {
	g := &ImportGate{
		sems:    make(map[models.RunKind]*semaphore.Weighted),
		active:  make(map[models.RunKind]int),
		timeout: cfg.QueueTimeout,
	}
	for kind, limit := range cfg.Limits {
		if limit > 0 {
			g.sems[kind] = semaphore.NewWeighted(limit)
		}
	}
	return g
}

// Acquire waits for a slot of the given kind until ctx ends or the queue
// timeout passes. The returned release func must be called exactly once.
func (g *ImportGate) Acquire(ctx context.Context, kind models.RunKind) (func(), error) {
	if g == nil {
		return func() {}, nil
	}
	sem, ok := g.sems[kind]
	if !ok {
		return g.track(kind, nil), nil
	}

	queueCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		queueCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := sem.Acquire(queueCtx, 1); err != nil {
		// the caller's own cancellation wins over the queue timeout
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s", ErrImportBusy, kind)
	}
	return g.track(kind, sem), nil
}

// TryAcquire takes a slot without waiting
func (g *ImportGate) TryAcquire(kind models.RunKind) (func(), bool) {
	if g == nil {
		return func() {}, true
	}
	sem, ok := g.sems[kind]
	if !ok {
		return g.track(kind, nil), true
	}
	if !sem.TryAcquire(1) {
		return nil, false
	}
	return g.track(kind, sem), true
}

// Active returns the number of runs of a kind holding a slot
func (g *ImportGate) Active(kind models.RunKind) int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active[kind]
}

func (g *ImportGate) track(kind models.RunKind, sem *semaphore.Weighted) func() {
	g.mu.Lock()
	g.active[kind]++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.active[kind]--
			g.mu.Unlock()
			if sem != nil {
				sem.Release(1)
			}
		})
	}
}
